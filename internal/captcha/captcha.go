// Package captcha recognises CAPTCHA gates on the portal's search page.
package captcha

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/jonathan/court-case-fetcher/internal/browser"
	"github.com/jonathan/court-case-fetcher/internal/config"
)

// Result is the outcome of a detection pass.
type Result struct {
	Found     bool
	Indicator string // description of the indicator that matched
}

// Detector evaluates an ordered list of indicators. The first match wins.
type Detector struct {
	indicators []config.Indicator
}

// NewDetector returns a Detector over indicators, in order.
func NewDetector(indicators []config.Indicator) *Detector {
	return &Detector{indicators: indicators}
}

// InSession snapshots the session's current page and checks it.
func (d *Detector) InSession(ctx context.Context, s browser.Session) (Result, error) {
	markup, err := s.HTML(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read page: %w", err)
	}
	return d.InMarkup(markup), nil
}

// InMarkup checks raw markup. Markup that cannot be parsed has no CAPTCHA.
func (d *Detector) InMarkup(markup string) Result {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return Result{}
	}
	return d.InDocument(doc)
}

// InDocument checks a parsed document.
func (d *Detector) InDocument(doc *goquery.Document) Result {
	for _, ind := range d.indicators {
		if matches(doc, ind) {
			return Result{Found: true, Indicator: describe(ind)}
		}
	}
	return Result{}
}

func matches(doc *goquery.Document, ind config.Indicator) bool {
	if ind.Value == "" {
		return false
	}
	switch ind.Kind {
	case config.IndicatorField:
		return doc.Find(ind.Value).Length() > 0
	case config.IndicatorImage:
		found := false
		doc.Find("img[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			src, _ := s.Attr("src")
			found = strings.Contains(src, ind.Value)
			return !found
		})
		return found
	case config.IndicatorText:
		scope := ind.Scope
		if scope == "" {
			scope = "div"
		}
		found := false
		doc.Find(scope).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			found = ownTextContains(s, ind.Value)
			return !found
		})
		return found
	default:
		return false
	}
}

// ownTextContains looks only at the element's direct text nodes.
func ownTextContains(s *goquery.Selection, needle string) bool {
	for _, n := range s.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode && strings.Contains(c.Data, needle) {
				return true
			}
		}
	}
	return false
}

func describe(ind config.Indicator) string {
	return fmt.Sprintf("%s:%s", ind.Kind, ind.Value)
}
