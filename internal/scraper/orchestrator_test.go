package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/court-case-fetcher/internal/browser"
	"github.com/jonathan/court-case-fetcher/internal/browser/browsertest"
	"github.com/jonathan/court-case-fetcher/internal/config"
	"github.com/jonathan/court-case-fetcher/internal/fetch"
	"github.com/jonathan/court-case-fetcher/internal/synthetic"
	"github.com/jonathan/court-case-fetcher/internal/types"
)

const searchURL = "https://delhihighcourt.nic.in/case-status"

const searchForm = `<html><body>
<form method="post">
  <select name="case_type"><option value="W.P.(C)">W.P.(C)</option><option value="FAO">FAO</option></select>
  <input name="case_number">
  <input name="filing_year">
  <button type="submit">Search</button>
</form>
</body></html>`

const resultsPage = `<html><body>
<h2 class="case-title">W.P.(C) 1234/2023</h2>
<table>
  <tr><td>Petitioner</td><td>Ram Kumar</td></tr>
  <tr><td>Respondent</td><td>Union of India</td></tr>
</table>
<div class="order-list-item">12/05/2023 Notice issued</div>
</body></html>`

var fixedNow = time.Date(2025, time.March, 31, 12, 0, 0, 0, time.UTC)

type fakePortal struct {
	mu    sync.Mutex
	page  string
	err   error
	panic bool
	calls int
}

func (p *fakePortal) Search(_ context.Context, _ types.SearchRequest) (*fetch.Page, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.panic {
		panic("portal exploded")
	}
	if p.err != nil {
		return nil, p.err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.page))
	if err != nil {
		return nil, err
	}
	return &fetch.Page{URL: searchURL, HTML: p.page, StatusCode: http.StatusOK, Doc: doc}, nil
}

func (p *fakePortal) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func newOrchestrator(t *testing.T, acq browser.Acquirer, portal Portal) *Orchestrator {
	t.Helper()
	o, err := New(Options{
		Acquirer:        acq,
		Portal:          portal,
		SearchURL:       searchURL,
		BaseURL:         "https://delhihighcourt.nic.in/",
		NavigateTimeout: time.Second,
		SettleTimeout:   20 * time.Millisecond,
		SlotTimeout:     50 * time.Millisecond,
		MaxSessions:     1,
		Now:             func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return o
}

func request(t *testing.T) types.SearchRequest {
	t.Helper()
	req, err := types.NewSearchRequest("W.P.(C)", "1234", 2023)
	require.NoError(t, err)
	return req
}

func assertSynthetic(t *testing.T, out types.SearchOutcome, advisory types.Advisory) {
	t.Helper()
	assert.Equal(t, types.OutcomeDegraded, out.Kind)
	assert.Equal(t, types.OriginSynthetic, out.Origin)
	assert.Equal(t, advisory, out.Advisory)
	assert.Equal(t, "W.P.(C)/1234/2023 - Sample Case", out.Case.Title)
	assert.Len(t, out.Orders, 2)
	assert.Equal(t, synthetic.RawMarkup, out.RawMarkup)
}

func TestSearch_BrowserSuccess(t *testing.T) {
	sess := browsertest.NewSession(searchForm).WithResults(resultsPage)
	acq := &browsertest.Acquirer{Session: sess}
	portal := &fakePortal{}

	out, err := newOrchestrator(t, acq, portal).Search(context.Background(), request(t))
	require.NoError(t, err)

	assert.Equal(t, types.OutcomeSuccess, out.Kind)
	assert.Equal(t, types.OriginBrowser, out.Origin)
	assert.Equal(t, types.AdvisoryNone, out.Advisory)
	assert.Equal(t, "W.P.(C) 1234/2023", out.Case.Title)
	assert.Equal(t, "Ram Kumar", out.Case.Petitioner)
	require.Len(t, out.Orders, 1)
	assert.Equal(t, time.Date(2023, time.May, 12, 0, 0, 0, 0, time.UTC), out.Orders[0].OrderDate)
	assert.Equal(t, resultsPage, out.RawMarkup)

	assert.Equal(t, []string{searchURL}, sess.Navigated)
	assert.Equal(t, 1, sess.Closes())
	assert.Zero(t, portal.Calls())
}

func TestSearch_DriverCaptchaDegrades(t *testing.T) {
	page := `<html><body><form><img src="/captcha/image.php"><input name="case_number"></form></body></html>`
	sess := browsertest.NewSession(page)
	portal := &fakePortal{}

	out, err := newOrchestrator(t, &browsertest.Acquirer{Session: sess}, portal).Search(context.Background(), request(t))
	require.NoError(t, err)

	assertSynthetic(t, out, types.AdvisoryCaptcha)
	assert.Equal(t, 1, sess.Closes(), "session released exactly once")
	assert.Empty(t, sess.Clicked, "form never submitted")
	assert.Zero(t, portal.Calls())
	require.Len(t, out.Attempts, 1)
	assert.Equal(t, types.CaptchaEncountered, out.Attempts[0].Kind)
}

func TestSearch_NavigationFailureIsBrowserFailed(t *testing.T) {
	sess := browsertest.NewSession(searchForm)
	sess.NavigateErr = errors.New("net::ERR_NAME_NOT_RESOLVED")
	portal := &fakePortal{page: resultsPage}

	out, err := newOrchestrator(t, &browsertest.Acquirer{Session: sess}, portal).Search(context.Background(), request(t))
	require.NoError(t, err)

	assertSynthetic(t, out, types.AdvisoryBrowserFailed)
	assert.Equal(t, 1, sess.Closes())
	assert.Zero(t, portal.Calls(), "HTTP path is only for acquisition failures")
	require.Len(t, out.Attempts, 1)
	assert.Equal(t, types.StageNavigate, out.Attempts[0].Stage)
}

func TestSearch_FormFailureIsBrowserFailed(t *testing.T) {
	sess := browsertest.NewSession(`<html><body><p>Maintenance</p></body></html>`)

	out, err := newOrchestrator(t, &browsertest.Acquirer{Session: sess}, &fakePortal{}).Search(context.Background(), request(t))
	require.NoError(t, err)

	assertSynthetic(t, out, types.AdvisoryBrowserFailed)
	assert.Equal(t, 1, sess.Closes())
	require.NotEmpty(t, out.Attempts)
	assert.Equal(t, types.FormFillFailure, out.Attempts[len(out.Attempts)-1].Kind)
}

func TestSearch_AcquisitionFailureUsesHTTPPath(t *testing.T) {
	acq := &browsertest.Acquirer{Err: browser.ErrUnavailable}
	portal := &fakePortal{page: resultsPage}

	out, err := newOrchestrator(t, acq, portal).Search(context.Background(), request(t))
	require.NoError(t, err)

	assert.Equal(t, types.OutcomeSuccess, out.Kind)
	assert.Equal(t, types.OriginHTTP, out.Origin)
	assert.Equal(t, "Union of India", out.Case.Respondent)
	assert.Equal(t, 1, portal.Calls())
	require.Len(t, out.Attempts, 1)
	assert.Equal(t, types.AcquisitionFailure, out.Attempts[0].Kind)
}

func TestSearch_HTTPPathCaptcha(t *testing.T) {
	acq := &browsertest.Acquirer{Err: browser.ErrUnavailable}
	portal := &fakePortal{page: `<html><body><div>Enter CAPTCHA</div></body></html>`}

	out, err := newOrchestrator(t, acq, portal).Search(context.Background(), request(t))
	require.NoError(t, err)
	assertSynthetic(t, out, types.AdvisoryCaptcha)
}

func TestSearch_HTTPPathUnmatchedPage(t *testing.T) {
	acq := &browsertest.Acquirer{Err: browser.ErrUnavailable}
	portal := &fakePortal{page: `<html><body><p>No record found</p></body></html>`}

	out, err := newOrchestrator(t, acq, portal).Search(context.Background(), request(t))
	require.NoError(t, err)
	assertSynthetic(t, out, types.AdvisoryUnavailable)
	assert.Equal(t, types.ExtractionGap, out.Attempts[len(out.Attempts)-1].Kind)
}

// No browser and the portal answers 503: the caller still gets sample data.
func TestSearch_NoBrowserPortalDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := fetch.NewClient(fetch.Options{SearchURL: server.URL + "/case-status", Timeout: time.Second})
	require.NoError(t, err)

	acq := &browsertest.Acquirer{Err: browser.ErrUnavailable}
	out, err := newOrchestrator(t, acq, client).Search(context.Background(), request(t))
	require.NoError(t, err)

	assertSynthetic(t, out, types.AdvisoryUnavailable)
	assert.Equal(t, "Sample Petitioner", out.Case.Petitioner)
	assert.Equal(t, "Sample Respondent", out.Case.Respondent)
	assert.Equal(t, types.NewDate(2023, time.January, 15), out.Case.FilingDate)
	assert.Equal(t, types.NewDate(2024, time.February, 20), out.Case.NextHearingDate)
	assert.Equal(t, "Pending", out.Case.Status)
	assert.Equal(t, "Interim Order", out.Orders[0].Title)
	assert.Equal(t, "Final Judgment", out.Orders[1].Title)

	require.Len(t, out.Attempts, 2)
	assert.Equal(t, types.AcquisitionFailure, out.Attempts[0].Kind)
	assert.Equal(t, types.NetworkFailure, out.Attempts[1].Kind)
}

func TestSearch_InvalidRequestDoesNoIO(t *testing.T) {
	_, err := types.NewSearchRequest("W.P.(C)", "1234", 1899)
	var vErr *types.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "filing_year", vErr.Field)

	acq := &browsertest.Acquirer{Session: browsertest.NewSession(searchForm)}
	portal := &fakePortal{}

	out, err := newOrchestrator(t, acq, portal).Search(context.Background(), types.SearchRequest{})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, types.SearchOutcome{}, out)
	assert.Zero(t, acq.Calls)
	assert.Zero(t, portal.Calls())
}

func TestSearch_PanicInDriverPathRecovered(t *testing.T) {
	sess := browsertest.NewSession(searchForm)
	sess.PanicOn = "Click"

	out, err := newOrchestrator(t, &browsertest.Acquirer{Session: sess}, &fakePortal{}).Search(context.Background(), request(t))
	require.NoError(t, err)

	assertSynthetic(t, out, types.AdvisoryBrowserFailed)
	assert.Equal(t, 1, sess.Closes(), "session released during panic")
	require.NotEmpty(t, out.Attempts)
	assert.Contains(t, out.Attempts[len(out.Attempts)-1].Message, "panic")
}

func TestSearch_PanicInHTTPPathRecovered(t *testing.T) {
	acq := &browsertest.Acquirer{Err: browser.ErrUnavailable}

	out, err := newOrchestrator(t, acq, &fakePortal{panic: true}).Search(context.Background(), request(t))
	require.NoError(t, err)
	assertSynthetic(t, out, types.AdvisoryUnavailable)
}

// panicOnceAcquirer panics on its first call and hands out sess afterwards.
type panicOnceAcquirer struct {
	sess  browser.Session
	calls int
}

func (a *panicOnceAcquirer) Acquire(_ context.Context) (browser.Session, error) {
	a.calls++
	if a.calls == 1 {
		panic("launcher crashed")
	}
	return a.sess, nil
}

func TestSearch_PanicInAcquirerFallsBackAndFreesSlot(t *testing.T) {
	sess := browsertest.NewSession(searchForm).WithResults(resultsPage)
	acq := &panicOnceAcquirer{sess: sess}
	portal := &fakePortal{page: resultsPage}
	o := newOrchestrator(t, acq, portal)

	out, err := o.Search(context.Background(), request(t))
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeSuccess, out.Kind)
	assert.Equal(t, types.OriginHTTP, out.Origin, "acquisition failure takes the HTTP path")
	assert.Equal(t, 1, portal.Calls())
	require.NotEmpty(t, out.Attempts)
	assert.Equal(t, types.AcquisitionFailure, out.Attempts[0].Kind)
	assert.Contains(t, out.Attempts[0].Message, "acquirer panicked")

	// The only session slot must be free again.
	out, err = o.Search(context.Background(), request(t))
	require.NoError(t, err)
	assert.Equal(t, types.OriginBrowser, out.Origin)
	assert.Equal(t, 2, acq.calls)
	assert.Equal(t, 1, sess.Closes())
}

func TestSearch_CancelledContextSkipsToSynthetic(t *testing.T) {
	acq := &browsertest.Acquirer{Session: browsertest.NewSession(searchForm)}
	portal := &fakePortal{page: resultsPage}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := newOrchestrator(t, acq, portal).Search(ctx, request(t))
	require.NoError(t, err)
	assertSynthetic(t, out, types.AdvisoryUnavailable)
	assert.Zero(t, portal.Calls())
}

func TestSearch_DeadlineDuringNavigation(t *testing.T) {
	sess := browsertest.NewSession(searchForm)
	sess.BlockNavigate = true

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	out, err := newOrchestrator(t, &browsertest.Acquirer{Session: sess}, &fakePortal{}).Search(ctx, request(t))
	require.NoError(t, err)
	assertSynthetic(t, out, types.AdvisoryBrowserFailed)
	assert.Equal(t, 1, sess.Closes())
}

// signalAcquirer reports each acquisition on entered.
type signalAcquirer struct {
	session *browsertest.Session
	entered chan struct{}
}

func (a *signalAcquirer) Acquire(_ context.Context) (browser.Session, error) {
	a.entered <- struct{}{}
	return a.session, nil
}

func TestSearch_BusySlotFallsBackToHTTP(t *testing.T) {
	sess := browsertest.NewSession(searchForm)
	sess.BlockNavigate = true
	acq := &signalAcquirer{session: sess, entered: make(chan struct{}, 2)}
	portal := &fakePortal{page: resultsPage}
	o := newOrchestrator(t, acq, portal)

	// Hold the only session slot with a run blocked in navigation.
	blockedCtx, release := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = o.Search(blockedCtx, request(t))
	}()
	<-acq.entered

	out, err := o.Search(context.Background(), request(t))
	require.NoError(t, err)
	assert.Equal(t, types.OriginHTTP, out.Origin)
	assert.Equal(t, 1, portal.Calls())

	release()
	<-done
	assert.Equal(t, 1, sess.Closes())
}

func TestSearch_ProgressEvents(t *testing.T) {
	var stages []types.Stage
	o, err := New(Options{
		Acquirer:   &browsertest.Acquirer{Err: browser.ErrUnavailable},
		Portal:     &fakePortal{page: resultsPage},
		SearchURL:  searchURL,
		OnProgress: func(e ProgressEvent) { stages = append(stages, e.Stage) },
	})
	require.NoError(t, err)

	_, err = o.Search(context.Background(), request(t))
	require.NoError(t, err)
	assert.Equal(t, []types.Stage{
		types.StageStart,
		types.StageAcquire,
		types.StageHTTPPath,
		types.StageResolved,
	}, stages)
}

func TestSearch_PanickingProgressCallbackRecovered(t *testing.T) {
	sess := browsertest.NewSession(searchForm)
	o, err := New(Options{
		Acquirer:  &browsertest.Acquirer{Session: sess},
		Portal:    &fakePortal{},
		SearchURL: searchURL,
		OnProgress: func(e ProgressEvent) {
			if e.Stage == types.StageNavigate {
				panic("listener failed")
			}
		},
	})
	require.NoError(t, err)

	out, err := o.Search(context.Background(), request(t))
	require.NoError(t, err)
	assertSynthetic(t, out, types.AdvisoryBrowserFailed)
	assert.Equal(t, 1, sess.Closes())
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Options{Portal: &fakePortal{}, SearchURL: searchURL})
	assert.Error(t, err)
	_, err = New(Options{Acquirer: &browsertest.Acquirer{}, SearchURL: searchURL})
	assert.Error(t, err)
	_, err = New(Options{Acquirer: &browsertest.Acquirer{}, Portal: &fakePortal{}})
	assert.Error(t, err)
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default()
	o, err := NewFromConfig(cfg, nil, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, o)
}
