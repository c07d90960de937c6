package form

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
)

// Option is one entry of a <select>.
type Option struct {
	Value string
	Label string
}

// ParseOptions reads the options of a select element from its outer HTML.
// An option without a value attribute submits its label.
func ParseOptions(outerHTML string) []Option {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body>" + outerHTML + "</body></html>"))
	if err != nil {
		return nil
	}

	var opts []Option
	doc.Find("option").Each(func(_ int, s *goquery.Selection) {
		label := strings.TrimSpace(s.Text())
		value, ok := s.Attr("value")
		if !ok {
			value = label
		}
		opts = append(opts, Option{Value: value, Label: label})
	})
	return opts
}

// minOptionSimilarity is the lowest Jaro-Winkler score accepted as a match.
const minOptionSimilarity = 0.85

// BestOption picks the option closest to want. An exact value or label match
// (ignoring case) wins outright; otherwise the highest Jaro-Winkler
// similarity over values and labels wins, provided it reaches
// minOptionSimilarity. Options with an empty value are placeholders and never
// chosen.
func BestOption(opts []Option, want string) (Option, bool) {
	want = strings.TrimSpace(want)
	for _, o := range opts {
		if o.Value == "" {
			continue
		}
		if strings.EqualFold(o.Value, want) || strings.EqualFold(o.Label, want) {
			return o, true
		}
	}

	var best Option
	var bestScore float64
	upper := strings.ToUpper(want)
	for _, o := range opts {
		if o.Value == "" {
			continue
		}
		score := max(
			matchr.JaroWinkler(upper, strings.ToUpper(o.Value), false),
			matchr.JaroWinkler(upper, strings.ToUpper(o.Label), false),
		)
		if score > bestScore {
			bestScore = score
			best = o
		}
	}
	if bestScore < minOptionSimilarity {
		return Option{}, false
	}
	return best, true
}
