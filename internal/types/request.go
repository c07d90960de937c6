// Package types provides the request, record and outcome types shared by the
// case search pipeline and its consumers.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// MinFilingYear is the earliest filing year the portal accepts.
const MinFilingYear = 1900

// searchRequestInput carries the validator tags for SearchRequest.
type searchRequestInput struct {
	CaseType   string `json:"case_type" validate:"required"`
	CaseNumber string `json:"case_number" validate:"required"`
	FilingYear int    `json:"filing_year" validate:"required,filingyear"`
}

// requestValidator is safe for concurrent use once configured.
var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("filingyear", func(fl validator.FieldLevel) bool {
		year := int(fl.Field().Int())
		return year >= MinFilingYear && year <= time.Now().Year()
	})
	return v
}

// SearchRequest identifies one case on the portal. It is immutable once built
// by NewSearchRequest.
type SearchRequest struct {
	caseType   string
	caseNumber string
	filingYear int
}

// NewSearchRequest trims and validates the inputs.
// Returns *ValidationError describing the first offending field.
func NewSearchRequest(caseType, caseNumber string, filingYear int) (SearchRequest, error) {
	in := searchRequestInput{
		CaseType:   strings.TrimSpace(caseType),
		CaseNumber: strings.TrimSpace(caseNumber),
		FilingYear: filingYear,
	}
	if err := validateInput(in); err != nil {
		return SearchRequest{}, err
	}
	return SearchRequest{
		caseType:   in.CaseType,
		caseNumber: in.CaseNumber,
		filingYear: in.FilingYear,
	}, nil
}

// Validate re-checks the invariants. A zero SearchRequest is invalid.
func (r SearchRequest) Validate() error {
	return validateInput(searchRequestInput{
		CaseType:   r.caseType,
		CaseNumber: r.caseNumber,
		FilingYear: r.filingYear,
	})
}

// CaseType returns the portal case type, e.g. "W.P.(C)".
func (r SearchRequest) CaseType() string { return r.caseType }

// CaseNumber returns the case number.
func (r SearchRequest) CaseNumber() string { return r.caseNumber }

// FilingYear returns the filing year.
func (r SearchRequest) FilingYear() int { return r.filingYear }

// Key renders the request as "type/number/year".
func (r SearchRequest) Key() string {
	return fmt.Sprintf("%s/%s/%d", r.caseType, r.caseNumber, r.filingYear)
}

func (r SearchRequest) String() string { return r.Key() }

func validateInput(in searchRequestInput) error {
	err := requestValidator.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Field: "request", Message: err.Error()}
	}

	fe := fieldErrs[0]
	switch fe.Field() {
	case "CaseType":
		return &ValidationError{Field: "case_type", Message: "case type is required"}
	case "CaseNumber":
		return &ValidationError{Field: "case_number", Message: "case number is required"}
	default:
		return &ValidationError{
			Field:   "filing_year",
			Message: fmt.Sprintf("filing year must be between %d and %d", MinFilingYear, time.Now().Year()),
		}
	}
}
