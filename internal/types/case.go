//nolint:revive // types is a standard Go package name pattern
package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PortalDateLayout is the dd/mm/yyyy form the portal prints dates in.
const PortalDateLayout = "02/01/2006"

// Date is a calendar date without time of day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate builds a Date.
func NewDate(year int, month time.Month, day int) *Date {
	return &Date{Year: year, Month: month, Day: day}
}

// ParseDate parses dd/mm/yyyy text. Unparsable or empty text yields nil.
func ParseDate(text string) *Date {
	t, ok := ParsePortalTime(text)
	if !ok {
		return nil
	}
	return DateOf(t)
}

// ParsePortalTime parses dd/mm/yyyy text into a UTC midnight time.
func ParsePortalTime(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(PortalDateLayout, text)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) *Date {
	y, m, d := t.Date()
	return &Date{Year: y, Month: m, Day: d}
}

// Time returns midnight UTC on d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// String renders d as yyyy-mm-dd.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MarshalJSON encodes d as "yyyy-mm-dd".
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes "yyyy-mm-dd".
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", s, err)
	}
	*d = *DateOf(t)
	return nil
}

// CaseRecord holds the case metadata shown on the portal's status page.
type CaseRecord struct {
	Title           string `json:"title"`
	Petitioner      string `json:"petitioner"`
	Respondent      string `json:"respondent"`
	FilingDate      *Date  `json:"filing_date,omitempty"`
	NextHearingDate *Date  `json:"next_hearing_date,omitempty"`
	Status          string `json:"status"`
}

// OrderRecord is one order or judgment listed for a case.
// OrderDate is never zero.
type OrderRecord struct {
	OrderDate    time.Time `json:"order_date"`
	OrderType    string    `json:"order_type"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	PDFReference string    `json:"pdf_reference,omitempty"`
}
