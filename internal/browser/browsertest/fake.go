// Package browsertest provides an in-memory browser.Session for tests.
package browsertest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/court-case-fetcher/internal/browser"
)

// Session is a browser.Session over static markup. CSS locators are
// evaluated with goquery; XPath locators never match.
type Session struct {
	mu sync.Mutex

	html      string
	afterHTML string // markup served once a submit click happens

	// NavigateErr, when set, is returned from Navigate.
	NavigateErr error
	// HTMLErr, when set, is returned from HTML.
	HTMLErr error
	// PanicOn makes the named method panic, to exercise recovery.
	PanicOn string
	// BlockNavigate makes Navigate wait for ctx to finish.
	BlockNavigate bool

	Navigated []string
	Values    map[string]string // locator -> value
	Clicked   []string
	closes    int
}

var _ browser.Session = (*Session)(nil)

// NewSession returns a Session rendering html.
func NewSession(html string) *Session {
	return &Session{html: html, Values: map[string]string{}}
}

// WithResults sets the markup served after the first Click.
func (s *Session) WithResults(html string) *Session {
	s.afterHTML = html
	return s
}

// Closes returns how many times Close was called.
func (s *Session) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

func (s *Session) maybePanic(method string) {
	if s.PanicOn == method {
		panic("browsertest: induced panic in " + method)
	}
}

func (s *Session) doc() (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(s.html))
}

// Navigate implements browser.Session.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.maybePanic("Navigate")
	if s.BlockNavigate {
		<-ctx.Done()
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Navigated = append(s.Navigated, url)
	return s.NavigateErr
}

// Lookup implements browser.Session.
func (s *Session) Lookup(_ context.Context, locator string) (*browser.Element, error) {
	s.maybePanic("Lookup")
	if browser.IsXPath(locator) {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.doc()
	if err != nil {
		return nil, err
	}
	sel := doc.Find(locator).First()
	if sel.Length() == 0 {
		return nil, nil
	}
	outer, err := goquery.OuterHtml(sel)
	if err != nil {
		return nil, err
	}
	return &browser.Element{Tag: goquery.NodeName(sel), OuterHTML: outer}, nil
}

// HTML implements browser.Session.
func (s *Session) HTML(_ context.Context) (string, error) {
	s.maybePanic("HTML")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.HTMLErr != nil {
		return "", s.HTMLErr
	}
	return s.html, nil
}

// SetValue implements browser.Session.
func (s *Session) SetValue(_ context.Context, locator, value string) error {
	s.maybePanic("SetValue")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Values[locator] = value
	return nil
}

// Type implements browser.Session.
func (s *Session) Type(_ context.Context, locator, value string) error {
	s.maybePanic("Type")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Values[locator] = value
	return nil
}

// Click implements browser.Session.
func (s *Session) Click(_ context.Context, locator string) error {
	s.maybePanic("Click")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Clicked = append(s.Clicked, locator)
	if s.afterHTML != "" {
		s.html = s.afterHTML
	}
	return nil
}

// Close implements browser.Session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	if s.closes > 1 {
		return errors.New("browsertest: session closed twice")
	}
	return nil
}

// Acquirer hands out a fixed Session, or fails with Err.
type Acquirer struct {
	Session *Session
	Err     error
	Calls   int
}

// Acquire implements browser.Acquirer.
func (a *Acquirer) Acquire(ctx context.Context) (browser.Session, error) {
	a.Calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if a.Err != nil {
		return nil, a.Err
	}
	return a.Session, nil
}
