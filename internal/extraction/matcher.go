// Package extraction turns the portal's semi-structured results markup into
// case and order records.
package extraction

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/jonathan/court-case-fetcher/internal/config"
)

// Matcher pulls one value out of a document. It reports false when the
// value is absent or blank.
type Matcher func(doc *goquery.Document) (string, bool)

// First returns the value of the first matcher that succeeds.
func First(doc *goquery.Document, matchers []Matcher) (string, bool) {
	for _, m := range matchers {
		if v, ok := m(doc); ok {
			return v, true
		}
	}
	return "", false
}

// BySelector matches the text of the first element selected by a CSS selector.
func BySelector(selector string) Matcher {
	return func(doc *goquery.Document) (string, bool) {
		var value string
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			value = normalizeSpace(s.Text())
			return value == ""
		})
		return value, value != ""
	}
}

// labelCells are the elements a label can live in.
const labelCells = "td, th, div, span"

// ByLabel matches the text of the element following a cell whose own text
// contains label, as in a two-column details table.
func ByLabel(label string) Matcher {
	return func(doc *goquery.Document) (string, bool) {
		var value string
		doc.Find(labelCells).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if !strings.Contains(ownText(s), label) {
				return true
			}
			value = normalizeSpace(s.Next().Text())
			return value == ""
		})
		return value, value != ""
	}
}

// FromRule builds the cascade for one field: selectors first, then labels.
func FromRule(rule config.FieldRule) []Matcher {
	matchers := make([]Matcher, 0, len(rule.Selectors)+len(rule.Labels))
	for _, sel := range rule.Selectors {
		matchers = append(matchers, BySelector(sel))
	}
	for _, label := range rule.Labels {
		matchers = append(matchers, ByLabel(label))
	}
	return matchers
}

func ownText(s *goquery.Selection) string {
	var b strings.Builder
	for _, n := range s.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
	}
	return b.String()
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
