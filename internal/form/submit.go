// Package form fills and submits the portal's case search form.
package form

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jonathan/court-case-fetcher/internal/browser"
	"github.com/jonathan/court-case-fetcher/internal/config"
	"github.com/jonathan/court-case-fetcher/internal/types"
)

// Logical form fields.
const (
	FieldCaseType   = "case_type"
	FieldCaseNumber = "case_number"
	FieldFilingYear = "filing_year"
)

// pollInterval is how often waits re-check the page.
const pollInterval = 200 * time.Millisecond

// FieldResult records how one field was filled.
type FieldResult struct {
	Field   string
	Locator string // empty when no locator found the field
	Value   string
	Err     error
}

// Filled reports whether the field received its value.
func (f FieldResult) Filled() bool {
	return f.Locator != "" && f.Err == nil
}

// Report describes one submission attempt.
type Report struct {
	Fields        []FieldResult
	SubmitLocator string
	Settled       bool
}

// FilledCount returns how many fields were filled.
func (r Report) FilledCount() int {
	n := 0
	for _, f := range r.Fields {
		if f.Filled() {
			n++
		}
	}
	return n
}

// Err returns a form-fill StageError when nothing could be filled or no
// submit control was found, and nil otherwise.
func (r Report) Err() error {
	switch {
	case r.FilledCount() == 0:
		return &types.StageError{Stage: types.StageSubmit, Kind: types.FormFillFailure, Message: "no search field could be filled"}
	case r.SubmitLocator == "":
		return &types.StageError{Stage: types.StageSubmit, Kind: types.FormFillFailure, Message: "no submit control found"}
	default:
		return nil
	}
}

// Submitter drives the search form through locator cascades.
type Submitter struct {
	locators config.FormLocators
	settle   time.Duration
	logger   *slog.Logger
}

// NewSubmitter returns a Submitter. settle bounds both the wait for the form
// to appear and the wait for results after submitting.
func NewSubmitter(locators config.FormLocators, settle time.Duration, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{locators: locators, settle: settle, logger: logger}
}

// Submit fills every field it can find and clicks the first submit control.
// Fields are independent: one missing field does not stop the others.
func (f *Submitter) Submit(ctx context.Context, s browser.Session, req types.SearchRequest) (Report, error) {
	var report Report

	fields := []struct {
		name     string
		value    string
		locators []string
	}{
		{FieldCaseType, req.CaseType(), f.locators.CaseType},
		{FieldCaseNumber, req.CaseNumber(), f.locators.CaseNumber},
		{FieldFilingYear, strconv.Itoa(req.FilingYear()), f.locators.FilingYear},
	}

	var all []string
	for _, fd := range fields {
		all = append(all, fd.locators...)
	}
	if _, err := f.waitFor(ctx, s, all); err != nil {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		f.logger.Warn("search form not ready", "error", err)
	}

	for _, fd := range fields {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res := f.fill(ctx, s, fd.name, fd.value, fd.locators)
		if !res.Filled() {
			f.logger.Warn("form field not filled", "field", fd.name, "error", res.Err)
		}
		report.Fields = append(report.Fields, res)
	}

	if err := ctx.Err(); err != nil {
		return report, err
	}
	report.SubmitLocator = f.click(ctx, s, f.locators.Submit)
	if report.SubmitLocator == "" {
		return report, nil
	}

	ready := append(append([]string{}, f.locators.ResultsReady...), "body")
	if _, err := f.waitFor(ctx, s, ready); err != nil {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		f.logger.Warn("results did not settle", "timeout", f.settle)
	} else {
		report.Settled = true
	}
	return report, nil
}

func (f *Submitter) fill(ctx context.Context, s browser.Session, field, value string, locators []string) FieldResult {
	res := FieldResult{Field: field, Value: value}
	for _, loc := range locators {
		el, err := s.Lookup(ctx, loc)
		if err != nil {
			res.Err = err
			continue
		}
		if el == nil {
			continue
		}

		if el.Tag == "select" {
			opt, ok := BestOption(ParseOptions(el.OuterHTML), value)
			if !ok {
				res.Err = fmt.Errorf("no option for %q in %s", value, loc)
				continue
			}
			err = s.SetValue(ctx, loc, opt.Value)
			res.Value = opt.Value
		} else {
			err = s.Type(ctx, loc, value)
			res.Value = value
		}
		if err != nil {
			res.Err = fmt.Errorf("%s: %w", loc, err)
			continue
		}

		res.Locator = loc
		res.Err = nil
		f.logger.Debug("form field filled", "field", field, "locator", loc, "value", res.Value)
		return res
	}
	if res.Err == nil {
		res.Err = fmt.Errorf("no locator matched %s", field)
	}
	return res
}

func (f *Submitter) click(ctx context.Context, s browser.Session, locators []string) string {
	for _, loc := range locators {
		el, err := s.Lookup(ctx, loc)
		if err != nil || el == nil {
			continue
		}
		if err := s.Click(ctx, loc); err != nil {
			f.logger.Warn("submit click failed", "locator", loc, "error", err)
			continue
		}
		return loc
	}
	return ""
}

// waitFor polls until any locator is present or the settle timeout passes.
// It returns the locator that matched.
func (f *Submitter) waitFor(ctx context.Context, s browser.Session, locators []string) (string, error) {
	deadline := time.Now().Add(f.settle)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		for _, loc := range locators {
			if el, err := s.Lookup(ctx, loc); err == nil && el != nil {
				return loc, nil
			}
		}
		if !time.Now().Before(deadline) {
			return "", fmt.Errorf("none of %d locators present after %v", len(locators), f.settle)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}
