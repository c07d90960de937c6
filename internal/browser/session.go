// Package browser provides headless browser sessions for the case status portal
// and the ordered strategies used to obtain one.
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

// Element describes a located DOM element.
type Element struct {
	Tag       string // lower-case tag name, e.g. "select"
	OuterHTML string
}

// Session is a live, controllable browser tab. A Session is owned by exactly
// one search run and must be closed by it.
type Session interface {
	// Navigate loads url and waits until body is ready.
	Navigate(ctx context.Context, url string) error
	// Lookup returns the first element matching locator without waiting,
	// or nil when nothing matches.
	Lookup(ctx context.Context, locator string) (*Element, error)
	// HTML returns the rendered document markup.
	HTML(ctx context.Context) (string, error)
	// SetValue assigns value to a form control (used for select elements).
	SetValue(ctx context.Context, locator, value string) error
	// Type clears a text control and types value into it.
	Type(ctx context.Context, locator, value string) error
	// Click clicks the first element matching locator.
	Click(ctx context.Context, locator string) error
	// Close releases the tab and the browser process behind it.
	Close() error
}

// IsXPath reports whether a locator is an XPath expression rather than CSS.
func IsXPath(locator string) bool {
	return strings.HasPrefix(locator, "/") || strings.HasPrefix(locator, "(")
}

func queryOption(locator string) chromedp.QueryOption {
	if IsXPath(locator) {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// lookupOption is queryOption for presence checks, which must not wait.
func lookupOption(locator string) chromedp.QueryOption {
	if IsXPath(locator) {
		return chromedp.BySearch
	}
	return chromedp.ByQueryAll
}

// chromeSession is a Session backed by a chromedp tab.
type chromeSession struct {
	tabCtx   context.Context
	cancel   func()
	cleanup  func()
	strategy string

	closeOnce sync.Once
	closeErr  error
}

// run executes actions on the tab, aborting when ctx is done.
func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ctx.Err(), err)
		}
		return err
	}
	return nil
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (s *chromeSession) Lookup(ctx context.Context, locator string) (*Element, error) {
	var nodes []*cdp.Node
	if err := s.run(ctx, chromedp.Nodes(locator, &nodes, lookupOption(locator), chromedp.AtLeast(0))); err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}

	var outer string
	if err := s.run(ctx, chromedp.OuterHTML([]cdp.NodeID{nodes[0].NodeID}, &outer, chromedp.ByNodeID)); err != nil {
		return nil, err
	}
	return &Element{Tag: strings.ToLower(nodes[0].NodeName), OuterHTML: outer}, nil
}

func (s *chromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (s *chromeSession) SetValue(ctx context.Context, locator, value string) error {
	return s.run(ctx, chromedp.SetValue(locator, value, queryOption(locator)))
}

func (s *chromeSession) Type(ctx context.Context, locator, value string) error {
	q := queryOption(locator)
	return s.run(ctx,
		chromedp.Clear(locator, q),
		chromedp.SendKeys(locator, value, q),
	)
}

func (s *chromeSession) Click(ctx context.Context, locator string) error {
	return s.run(ctx, chromedp.Click(locator, queryOption(locator)))
}

// Close shuts the tab and the browser. Safe to call more than once.
func (s *chromeSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = chromedp.Cancel(s.tabCtx)
		s.cancel()
		if s.cleanup != nil {
			s.cleanup()
		}
	})
	return s.closeErr
}

func (s *chromeSession) String() string {
	return "chromedp session (" + s.strategy + ")"
}
