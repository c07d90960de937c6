// Package fetch is the browserless path to the portal: it loads the search
// page, carries over any anti-forgery token and posts the search form.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonathan/court-case-fetcher/internal/types"
)

var tracer = otel.Tracer("casefetch/fetch")

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 15 * time.Second

// Page is a fetched and parsed portal page.
type Page struct {
	URL        string
	HTML       string
	StatusCode int
	Doc        *goquery.Document
}

// Error represents an error talking to the portal.
type Error struct {
	URL        string
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures a Client.
type Options struct {
	SearchURL   string
	UserAgent   string
	Timeout     time.Duration
	TokenFields []string // hidden inputs copied from the search page into the POST
}

// Client talks to the portal over plain HTTP. Cookies set by the search page
// are sent back with the search POST.
type Client struct {
	http        *resty.Client
	searchURL   *url.URL
	tokenFields []string
}

// NewClient builds a Client with a cookie jar and a browser-like transport.
func NewClient(opts Options) (*Client, error) {
	searchURL, err := url.Parse(opts.SearchURL)
	if err != nil || searchURL.Scheme == "" || searchURL.Host == "" {
		return nil, &Error{URL: opts.SearchURL, Message: "invalid URL", Cause: err}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}
	client.SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	client.SetHeader("Accept-Language", "en-US,en;q=0.5")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(searchURL.Hostname()))
	client.SetTimeout(opts.Timeout)

	return &Client{
		http:        client,
		searchURL:   searchURL,
		tokenFields: opts.TokenFields,
	}, nil
}

// SearchPage loads the empty search form.
func (c *Client) SearchPage(ctx context.Context) (*Page, error) {
	ctx, span := tracer.Start(ctx, "fetch.SearchPage", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	res, err := c.http.R().
		SetContext(ctx).
		Get(c.searchURL.String())
	page, err := c.page(res, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch search page")
		return page, err
	}
	span.SetAttributes(attribute.Int("http.status_code", page.StatusCode))
	return page, nil
}

// SubmitSearch posts the search form with the given hidden tokens.
func (c *Client) SubmitSearch(ctx context.Context, req types.SearchRequest, tokens map[string]string) (*Page, error) {
	ctx, span := tracer.Start(ctx, "fetch.SubmitSearch", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	form := map[string]string{
		"case_type":   req.CaseType(),
		"case_number": req.CaseNumber(),
		"filing_year": strconv.Itoa(req.FilingYear()),
	}
	for name, value := range tokens {
		form[name] = value
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Referer", c.searchURL.String()).
		SetFormData(form).
		Post(c.searchURL.String())
	page, err := c.page(res, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit search")
		return page, err
	}
	span.SetAttributes(attribute.Int("http.status_code", page.StatusCode))
	return page, nil
}

// Search loads the search page, collects its tokens and submits the form.
func (c *Client) Search(ctx context.Context, req types.SearchRequest) (*Page, error) {
	formPage, err := c.SearchPage(ctx)
	if err != nil {
		return nil, err
	}
	return c.SubmitSearch(ctx, req, FindTokens(formPage.Doc, c.tokenFields))
}

func (c *Client) page(res *resty.Response, err error) (*Page, error) {
	target := c.searchURL.String()
	if err != nil {
		return nil, &Error{URL: target, Message: "HTTP request failed", Cause: err}
	}
	if raw := res.RawResponse; raw != nil && raw.Request != nil {
		target = raw.Request.URL.String()
	}

	page := &Page{
		URL:        target,
		HTML:       string(res.Body()),
		StatusCode: res.StatusCode(),
	}
	if res.StatusCode() < http.StatusOK || res.StatusCode() >= http.StatusMultipleChoices {
		return page, &Error{URL: target, StatusCode: res.StatusCode(), Message: fmt.Sprintf("HTTP status %d", res.StatusCode())}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return page, &Error{URL: target, StatusCode: res.StatusCode(), Message: "failed to parse HTML", Cause: err}
	}
	page.Doc = doc
	return page, nil
}

// FindTokens returns the value of each named input present in doc.
func FindTokens(doc *goquery.Document, fields []string) map[string]string {
	tokens := make(map[string]string)
	if doc == nil {
		return tokens
	}
	for _, name := range fields {
		sel := doc.Find(fmt.Sprintf("input[name=%q]", name)).First()
		if value, ok := sel.Attr("value"); ok {
			tokens[name] = value
		}
	}
	return tokens
}
