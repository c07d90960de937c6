package config

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"

	"dario.cat/mergo"

	"github.com/jonathan/court-case-fetcher/internal/schemas"
)

// IndicatorKind selects how a CAPTCHA indicator is evaluated.
type IndicatorKind string

const (
	// IndicatorField matches a form control by CSS selector.
	IndicatorField IndicatorKind = "field"
	// IndicatorImage matches an img whose src contains the value.
	IndicatorImage IndicatorKind = "image"
	// IndicatorText matches elements within Scope whose own text contains the value.
	IndicatorText IndicatorKind = "text"
)

// Indicator is one CAPTCHA check.
type Indicator struct {
	Kind  IndicatorKind `json:"kind"`
	Value string        `json:"value"`
	Scope string        `json:"scope,omitempty"` // CSS scope for text indicators, default "div"
}

// FormLocators lists locators per search-form field, most specific first.
// Locators beginning with "/" or "(" are XPath; everything else is CSS.
type FormLocators struct {
	CaseType     []string `json:"case_type,omitempty"`
	CaseNumber   []string `json:"case_number,omitempty"`
	FilingYear   []string `json:"filing_year,omitempty"`
	Submit       []string `json:"submit,omitempty"`
	ResultsReady []string `json:"results_ready,omitempty"`
}

// FieldRule is the extraction cascade for one case field: CSS selectors are
// tried first, then label-sibling lookups.
type FieldRule struct {
	Selectors []string `json:"selectors,omitempty"`
	Labels    []string `json:"labels,omitempty"`
}

// ExtractionRules holds the extraction cascades for the results page.
type ExtractionRules struct {
	Title           FieldRule `json:"title,omitempty"`
	Petitioner      FieldRule `json:"petitioner,omitempty"`
	Respondent      FieldRule `json:"respondent,omitempty"`
	FilingDate      FieldRule `json:"filing_date,omitempty"`
	NextHearingDate FieldRule `json:"next_hearing_date,omitempty"`
	Status          FieldRule `json:"status,omitempty"`
	Orders          []string  `json:"orders,omitempty"`
}

// SelectorSet is the portal-specific markup knowledge. It is data so it can
// be updated when the portal changes without a rebuild.
type SelectorSet struct {
	Captcha     []Indicator     `json:"captcha,omitempty"`
	Form        FormLocators    `json:"form,omitempty"`
	Extraction  ExtractionRules `json:"extraction,omitempty"`
	TokenFields []string        `json:"token_fields,omitempty"`
}

// DefaultSelectors returns the built-in selector set for the Delhi High Court
// case status page.
func DefaultSelectors() *SelectorSet {
	return &SelectorSet{
		Captcha: []Indicator{
			{Kind: IndicatorField, Value: `input[name="captcha"]`},
			{Kind: IndicatorImage, Value: "captcha"},
			{Kind: IndicatorText, Value: "CAPTCHA", Scope: "div"},
			{Kind: IndicatorText, Value: "captcha", Scope: "div"},
		},
		Form: FormLocators{
			CaseType: []string{
				`[name="case_type"]`,
				`select[name="case_type"]`,
				`select[id*="case_type"]`,
				`input[name="case_type"]`,
			},
			CaseNumber: []string{
				`[name="case_number"]`,
				`input[name="case_number"]`,
				`input[id*="case_number"]`,
				`input[placeholder*="case"]`,
			},
			FilingYear: []string{
				`[name="filing_year"]`,
				`input[name="filing_year"]`,
				`input[id*="filing_year"]`,
				`input[placeholder*="year"]`,
			},
			Submit: []string{
				`button[type="submit"]`,
				`input[type="submit"]`,
				`//button[contains(text(), 'Search')]`,
				`//button[contains(text(), 'Submit')]`,
			},
			ResultsReady: []string{
				`[class*="case-title"]`,
				`table`,
			},
		},
		Extraction: ExtractionRules{
			Title: FieldRule{
				Selectors: []string{
					`h1[class*="case-title"]`,
					`h2[class*="case-title"]`,
					`div[class*="case-title"]`,
					`span[class*="case-title"]`,
				},
				Labels: []string{"Case Title"},
			},
			Petitioner:      FieldRule{Labels: []string{"Petitioner"}},
			Respondent:      FieldRule{Labels: []string{"Respondent"}},
			FilingDate:      FieldRule{Labels: []string{"Filing Date", "Date of Filing"}},
			NextHearingDate: FieldRule{Labels: []string{"Next Hearing", "Next Date"}},
			Status: FieldRule{
				Selectors: []string{`[class*="case-status"]`},
				Labels:    []string{"Case Status", "Status"},
			},
			Orders: []string{
				`tr[class*="order"]`,
				`div[class*="order"]`,
				`table tr:not(:first-child)`,
			},
		},
		TokenFields: []string{
			"csrf_token",
			"_token",
			"__RequestVerificationToken",
			"authenticity_token",
		},
	}
}

// LoadSelectors returns the built-in set overlaid with the file at path.
// An empty path returns the built-in set. The file is validated against the
// selector-set JSON Schema before decoding; keys absent from the file keep
// their built-in values.
func LoadSelectors(path string) (*SelectorSet, error) {
	if path == "" {
		return DefaultSelectors(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read selectors file %s: %w", path, err)
	}
	return ParseSelectors(data)
}

// presentSlices keeps any slice the override document set, including an
// empty one, so "captcha": [] turns the cascade off instead of being refilled.
// Nil slices are left to mergo and receive the built-in values.
type presentSlices struct{}

func (presentSlices) Transformer(t reflect.Type) func(dst, src reflect.Value) error {
	if t.Kind() != reflect.Slice {
		return nil
	}
	return func(dst, src reflect.Value) error { return nil }
}

// ParseSelectors validates and decodes a selector-set document and fills
// missing keys from the built-in set. A key present in the document replaces
// the built-in value even when it is an empty list.
func ParseSelectors(data []byte) (*SelectorSet, error) {
	if err := schemas.ValidateSelectors(data); err != nil {
		return nil, fmt.Errorf("invalid selectors: %w", err)
	}

	var set SelectorSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse selectors JSON: %w", err)
	}

	if err := mergo.Merge(&set, DefaultSelectors(), mergo.WithTransformers(presentSlices{})); err != nil {
		return nil, fmt.Errorf("failed to merge selectors with defaults: %w", err)
	}
	return &set, nil
}
