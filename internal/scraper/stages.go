package scraper

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/court-case-fetcher/internal/browser"
	"github.com/jonathan/court-case-fetcher/internal/types"
)

// driverPath runs NAVIGATE, CAPTCHA_CHECK, SUBMIT and EXTRACT on a live
// session. Any failure here resolves to synthetic data; the HTTP path is
// reserved for acquisition failures.
func (o *Orchestrator) driverPath(ctx context.Context, r *run, sess browser.Session) types.SearchOutcome {
	if !o.navigate(ctx, r, sess) {
		return r.degraded(types.AdvisoryBrowserFailed)
	}

	if found, ok := o.checkCaptcha(ctx, r, sess); found {
		return r.degraded(types.AdvisoryCaptcha)
	} else if !ok {
		return r.degraded(types.AdvisoryBrowserFailed)
	}

	if !o.submit(ctx, r, sess) {
		return r.degraded(types.AdvisoryBrowserFailed)
	}

	r.enter(types.StageExtract, "extracting results")
	ctx, end := o.stageSpan(ctx, types.StageExtract)
	defer end()

	markup, err := sess.HTML(ctx)
	if err != nil {
		r.fail(types.StageExtract, types.ExtractionGap, "failed to read results page", err)
		return r.degraded(types.AdvisoryBrowserFailed)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		r.fail(types.StageExtract, types.ExtractionGap, "failed to parse results page", err)
		return r.degraded(types.AdvisoryBrowserFailed)
	}

	res := o.engine.Extract(doc, o.now())
	if res.Matched == 0 {
		r.logger.Info("results page matched no extraction rule; placeholders used")
	}
	return r.success(types.OriginBrowser, res, markup)
}

func (o *Orchestrator) navigate(ctx context.Context, r *run, sess browser.Session) bool {
	r.enter(types.StageNavigate, "opening search page")
	ctx, end := o.stageSpan(ctx, types.StageNavigate)
	defer end()

	if o.navigateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.navigateTimeout)
		defer cancel()
	}
	if err := sess.Navigate(ctx, o.searchURL); err != nil {
		r.fail(types.StageNavigate, types.NavigationFailure, "failed to load "+o.searchURL, err)
		return false
	}
	return true
}

// checkCaptcha reports whether a CAPTCHA was found, and whether the check
// could run at all. A page that cannot be read is only fatal when the
// caller's context is done.
func (o *Orchestrator) checkCaptcha(ctx context.Context, r *run, sess browser.Session) (found, ok bool) {
	r.enter(types.StageCaptchaCheck, "checking for CAPTCHA")
	ctx, end := o.stageSpan(ctx, types.StageCaptchaCheck)
	defer end()

	res, err := o.detector.InSession(ctx, sess)
	if err != nil {
		if ctx.Err() != nil {
			r.fail(types.StageCaptchaCheck, types.NavigationFailure, "search aborted", ctx.Err())
			return false, false
		}
		r.logger.Warn("captcha check failed; continuing", "error", err)
		return false, true
	}
	if res.Found {
		r.fail(types.StageCaptchaCheck, types.CaptchaEncountered, "CAPTCHA detected ("+res.Indicator+")", nil)
		return true, true
	}
	return false, true
}

func (o *Orchestrator) submit(ctx context.Context, r *run, sess browser.Session) bool {
	r.enter(types.StageSubmit, "filling search form")
	ctx, end := o.stageSpan(ctx, types.StageSubmit)
	defer end()

	report, err := o.submitter.Submit(ctx, sess, r.req)
	if err != nil {
		r.fail(types.StageSubmit, types.FormFillFailure, "form submission aborted", err)
		return false
	}
	if err := report.Err(); err != nil {
		r.fail(types.StageSubmit, types.FormFillFailure, "form submission failed", err)
		return false
	}
	r.logger.Debug("form submitted", "fields", report.FilledCount(), "submit", report.SubmitLocator, "settled", report.Settled)
	return true
}

// httpPath searches without a browser. It runs its own CAPTCHA check, and an
// extraction that matches nothing on the page counts as a failure.
func (o *Orchestrator) httpPath(ctx context.Context, r *run) types.SearchOutcome {
	r.enter(types.StageHTTPPath, "searching without a browser")
	ctx, end := o.stageSpan(ctx, types.StageHTTPPath)
	defer end()

	page, err := o.portal.Search(ctx, r.req)
	if err != nil {
		r.fail(types.StageHTTPPath, types.NetworkFailure, "portal request failed", err)
		return r.degraded(types.AdvisoryUnavailable)
	}

	if res := o.detector.InDocument(page.Doc); res.Found {
		r.fail(types.StageHTTPPath, types.CaptchaEncountered, "CAPTCHA detected ("+res.Indicator+")", nil)
		return r.degraded(types.AdvisoryCaptcha)
	}

	res := o.engine.Extract(page.Doc, o.now())
	if res.Matched == 0 {
		r.fail(types.StageHTTPPath, types.ExtractionGap, "results page matched no extraction rule", nil)
		return r.degraded(types.AdvisoryUnavailable)
	}
	return r.success(types.OriginHTTP, res, page.HTML)
}
