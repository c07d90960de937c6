// Package synthetic produces the deterministic placeholder records returned
// when no portal data could be obtained.
package synthetic

import (
	"fmt"
	"time"

	"github.com/jonathan/court-case-fetcher/internal/types"
)

// RawMarkup is the markup attached to synthetic outcomes.
const RawMarkup = "<html><body>Mock HTML content</body></html>"

// Generate returns the fixed-shape case record and its two orders.
// It performs no I/O and never fails.
func Generate(caseType, caseNumber string, filingYear int) (types.CaseRecord, []types.OrderRecord) {
	record := types.CaseRecord{
		Title:           fmt.Sprintf("%s/%s/%d - Sample Case", caseType, caseNumber, filingYear),
		Petitioner:      "Sample Petitioner",
		Respondent:      "Sample Respondent",
		FilingDate:      types.NewDate(2023, time.January, 15),
		NextHearingDate: types.NewDate(2024, time.February, 20),
		Status:          "Pending",
	}

	orders := []types.OrderRecord{
		{
			OrderDate:    time.Date(2023, time.June, 10, 0, 0, 0, 0, time.UTC),
			OrderType:    "Order",
			Title:        "Interim Order",
			Description:  "Interim order for stay of proceedings",
			PDFReference: "https://example.com/sample-order.pdf",
		},
		{
			OrderDate:    time.Date(2023, time.December, 15, 0, 0, 0, 0, time.UTC),
			OrderType:    "Judgment",
			Title:        "Final Judgment",
			Description:  "Final judgment in the matter",
			PDFReference: "https://example.com/sample-judgment.pdf",
		},
	}

	return record, orders
}

// Outcome wraps Generate in a degraded SearchOutcome.
func Outcome(req types.SearchRequest, advisory types.Advisory, attempts []types.Attempt) types.SearchOutcome {
	record, orders := Generate(req.CaseType(), req.CaseNumber(), req.FilingYear())
	return types.SearchOutcome{
		Kind:      types.OutcomeDegraded,
		Origin:    types.OriginSynthetic,
		Advisory:  advisory,
		Case:      record,
		Orders:    orders,
		RawMarkup: RawMarkup,
		Attempts:  attempts,
	}
}
