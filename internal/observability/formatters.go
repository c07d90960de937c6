// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/jonathan/court-case-fetcher/internal/scraper"
	"github.com/jonathan/court-case-fetcher/internal/types"
)

// maxDescription is the widest description cell rendered in order tables.
const maxDescription = 60

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

func (p *Printer) newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.SetStyle(table.StyleRounded)
	if title != "" {
		t.SetTitle(title)
	}
	return t
}

// PrintOutcome renders the case record, its orders and, for degraded
// outcomes, the advisory and the failed stages.
func (p *Printer) PrintOutcome(outcome types.SearchOutcome) {
	summary := p.newTable("CASE")
	summary.AppendRows([]table.Row{
		{"Result", fmt.Sprintf("%s (%s)", outcome.Kind, outcome.Origin)},
		{"Title", outcome.Case.Title},
		{"Petitioner", outcome.Case.Petitioner},
		{"Respondent", outcome.Case.Respondent},
		{"Filing date", formatDate(outcome.Case.FilingDate)},
		{"Next hearing", formatDate(outcome.Case.NextHearingDate)},
		{"Status", outcome.Case.Status},
	})
	if outcome.IsDegraded() {
		summary.AppendRow(table.Row{"Advisory", outcome.Advisory.Message()})
	}
	summary.Render()

	p.PrintOrders(outcome.Orders)

	if len(outcome.Attempts) > 0 {
		p.PrintAttempts(outcome.Attempts)
	}
}

// PrintOrders renders one row per order.
func (p *Printer) PrintOrders(orders []types.OrderRecord) {
	t := p.newTable(fmt.Sprintf("ORDERS (%d)", len(orders)))
	t.AppendHeader(table.Row{"#", "Date", "Type", "Title", "Description", "PDF"})
	for i, o := range orders {
		t.AppendRow(table.Row{
			i + 1,
			o.OrderDate.Format(time.DateOnly),
			o.OrderType,
			o.Title,
			truncate(o.Description, maxDescription),
			o.PDFReference,
		})
	}
	t.Render()
}

// PrintAttempts renders the stage failures behind an outcome.
func (p *Printer) PrintAttempts(attempts []types.Attempt) {
	t := p.newTable("ATTEMPTS")
	t.AppendHeader(table.Row{"Stage", "Kind", "Message"})
	for _, a := range attempts {
		t.AppendRow(table.Row{a.Stage, a.Kind, a.Message})
	}
	t.Render()
}

// PrintProgress writes one line per state transition. It satisfies
// scraper.ProgressCallback.
//
//nolint:errcheck // writing to stderr; errors are not recoverable
func (p *Printer) PrintProgress(event scraper.ProgressEvent) {
	runID := event.RunID
	if len(runID) > 8 {
		runID = runID[:8]
	}
	fmt.Fprintf(p.out, "[%s] %-14s %s\n", runID, event.Stage, event.Message)
}

func formatDate(d *types.Date) string {
	if d == nil {
		return "-"
	}
	return d.String()
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-3]) + "..."
}
