// Package scraper runs a case search end to end: it drives a browser session
// through the portal's search form, falls back to plain HTTP when no browser
// can be had, and degrades to synthetic records when the portal cannot be
// searched at all.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"

	"github.com/jonathan/court-case-fetcher/internal/browser"
	"github.com/jonathan/court-case-fetcher/internal/captcha"
	"github.com/jonathan/court-case-fetcher/internal/config"
	"github.com/jonathan/court-case-fetcher/internal/extraction"
	"github.com/jonathan/court-case-fetcher/internal/fetch"
	"github.com/jonathan/court-case-fetcher/internal/form"
	"github.com/jonathan/court-case-fetcher/internal/synthetic"
	"github.com/jonathan/court-case-fetcher/internal/types"
)

var tracer = otel.Tracer("casefetch/scraper")

// Portal is the browserless path to the search form.
type Portal interface {
	Search(ctx context.Context, req types.SearchRequest) (*fetch.Page, error)
}

// ProgressEvent reports a state transition of one run.
type ProgressEvent struct {
	RunID   string      `json:"run_id"`
	Stage   types.Stage `json:"stage"`
	Message string      `json:"message"`
}

// ProgressCallback is called on every state transition.
type ProgressCallback func(event ProgressEvent)

// Options wires an Orchestrator.
type Options struct {
	Acquirer  browser.Acquirer
	Portal    Portal
	Selectors *config.SelectorSet
	SearchURL string
	BaseURL   string

	NavigateTimeout time.Duration
	SettleTimeout   time.Duration
	// SlotTimeout bounds the wait for a free browser session slot.
	SlotTimeout time.Duration
	MaxSessions int

	Logger     *slog.Logger
	OnProgress ProgressCallback
	Now        func() time.Time
}

// Orchestrator runs searches. It is safe for concurrent use; concurrent
// browser sessions are bounded by MaxSessions.
type Orchestrator struct {
	acquirer  browser.Acquirer
	portal    Portal
	detector  *captcha.Detector
	submitter *form.Submitter
	engine    *extraction.Engine
	searchURL string

	navigateTimeout time.Duration
	slotTimeout     time.Duration
	sessions        *semaphore.Weighted

	logger     *slog.Logger
	onProgress ProgressCallback
	now        func() time.Time
}

// New builds an Orchestrator from explicit collaborators.
func New(opts Options) (*Orchestrator, error) {
	if opts.Acquirer == nil {
		return nil, fmt.Errorf("acquirer is required")
	}
	if opts.Portal == nil {
		return nil, fmt.Errorf("portal is required")
	}
	if opts.SearchURL == "" {
		return nil, fmt.Errorf("search url is required")
	}
	if opts.Selectors == nil {
		opts.Selectors = config.DefaultSelectors()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = opts.SearchURL
	}
	if opts.MaxSessions < 1 {
		opts.MaxSessions = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	engine, err := extraction.NewEngine(opts.Selectors.Extraction, opts.BaseURL)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		acquirer:        opts.Acquirer,
		portal:          opts.Portal,
		detector:        captcha.NewDetector(opts.Selectors.Captcha),
		submitter:       form.NewSubmitter(opts.Selectors.Form, opts.SettleTimeout, opts.Logger),
		engine:          engine,
		searchURL:       opts.SearchURL,
		navigateTimeout: opts.NavigateTimeout,
		slotTimeout:     opts.SlotTimeout,
		sessions:        semaphore.NewWeighted(int64(opts.MaxSessions)),
		logger:          opts.Logger,
		onProgress:      opts.OnProgress,
		now:             opts.Now,
	}, nil
}

// NewFromConfig builds an Orchestrator with a real browser selector and
// portal client.
func NewFromConfig(cfg *config.Config, selectors *config.SelectorSet, logger *slog.Logger, onProgress ProgressCallback) (*Orchestrator, error) {
	if selectors == nil {
		selectors = config.DefaultSelectors()
	}
	portal, err := fetch.NewClient(fetch.Options{
		SearchURL:   cfg.Portal.SearchURL,
		UserAgent:   cfg.Portal.UserAgent,
		Timeout:     cfg.HTTP.Timeout,
		TokenFields: selectors.TokenFields,
	})
	if err != nil {
		return nil, err
	}

	return New(Options{
		Acquirer:        browser.NewSelector(cfg.Browser, cfg.Portal.UserAgent, logger),
		Portal:          portal,
		Selectors:       selectors,
		SearchURL:       cfg.Portal.SearchURL,
		BaseURL:         cfg.Portal.BaseURL,
		NavigateTimeout: cfg.Scraper.NavigateTimeout,
		SettleTimeout:   cfg.Form.SettleTimeout,
		SlotTimeout:     cfg.Browser.LaunchTimeout,
		MaxSessions:     cfg.Scraper.MaxSessions,
		Logger:          logger,
		OnProgress:      onProgress,
	})
}

// Search runs one search. The only error it returns is a
// *types.ValidationError for a malformed request; every valid request
// yields exactly one outcome.
func (o *Orchestrator) Search(ctx context.Context, req types.SearchRequest) (outcome types.SearchOutcome, err error) {
	if err := req.Validate(); err != nil {
		return types.SearchOutcome{}, err
	}

	r := &run{
		id:     uuid.New().String(),
		req:    req,
		stage:  types.StageStart,
		onStep: o.onProgress,
	}
	r.logger = o.logger.With("run_id", r.id, "case", req.Key())

	ctx, span := tracer.Start(ctx, "scraper.Search")
	span.SetAttributes(
		attribute.String("run.id", r.id),
		attribute.String("case.key", req.Key()),
	)
	defer span.End()

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("search panicked", "stage", r.stage, "panic", p)
			stage := r.stage
			r.fail(stage, panicKind(stage), fmt.Sprintf("panic: %v", p), nil)
			// No progress callback here: it may be what panicked.
			r.stage = types.StageResolved
			outcome = synthetic.Outcome(r.req, panicAdvisory(stage), r.attempts)
			err = nil
		}
		span.SetAttributes(
			attribute.String("outcome.kind", string(outcome.Kind)),
			attribute.String("outcome.origin", string(outcome.Origin)),
		)
	}()

	r.enter(types.StageStart, "search started")
	return o.resolve(ctx, r), nil
}

func (o *Orchestrator) resolve(ctx context.Context, r *run) types.SearchOutcome {
	sess, release, err := o.acquire(ctx, r)
	if err != nil {
		if ctx.Err() != nil {
			return r.degraded(types.AdvisoryUnavailable)
		}
		return o.httpPath(ctx, r)
	}
	defer release()
	return o.driverPath(ctx, r, sess)
}

// acquire takes a session slot and a live session. The returned release
// closes the session and frees the slot; it must be called exactly once.
func (o *Orchestrator) acquire(ctx context.Context, r *run) (browser.Session, func(), error) {
	r.enter(types.StageAcquire, "acquiring browser session")
	ctx, span := tracer.Start(ctx, "scraper.acquire")
	defer span.End()

	slotCtx := ctx
	if o.slotTimeout > 0 {
		var cancel context.CancelFunc
		slotCtx, cancel = context.WithTimeout(ctx, o.slotTimeout)
		defer cancel()
	}
	if err := o.sessions.Acquire(slotCtx, 1); err != nil {
		r.fail(types.StageAcquire, types.AcquisitionFailure, "no free browser session slot", err)
		return nil, nil, err
	}

	sess, err := o.launch(ctx)
	if err != nil {
		o.sessions.Release(1)
		r.fail(types.StageAcquire, types.AcquisitionFailure, "no browser available", err)
		return nil, nil, err
	}

	release := func() {
		defer o.sessions.Release(1)
		if err := sess.Close(); err != nil {
			r.logger.Warn("failed to close browser session", "error", err)
		}
		r.logger.Debug("browser session released")
	}
	return sess, release, nil
}

// launch calls the acquirer, turning a panic into an error so the slot taken
// by acquire is always returned and the run can fall back to HTTP.
func (o *Orchestrator) launch(ctx context.Context) (sess browser.Session, err error) {
	defer func() {
		if p := recover(); p != nil {
			sess, err = nil, fmt.Errorf("acquirer panicked: %v", p)
		}
	}()
	sess, err = o.acquirer.Acquire(ctx)
	if err == nil && sess == nil {
		err = browser.ErrUnavailable
	}
	return sess, err
}

func (o *Orchestrator) stageSpan(ctx context.Context, stage types.Stage) (context.Context, func()) {
	ctx, span := tracer.Start(ctx, "scraper."+string(stage))
	return ctx, func() { span.End() }
}

func panicKind(stage types.Stage) types.FailureKind {
	switch stage {
	case types.StageStart, types.StageAcquire:
		return types.AcquisitionFailure
	case types.StageNavigate:
		return types.NavigationFailure
	case types.StageSubmit:
		return types.FormFillFailure
	case types.StageHTTPPath:
		return types.NetworkFailure
	default:
		return types.ExtractionGap
	}
}

func panicAdvisory(stage types.Stage) types.Advisory {
	switch stage {
	case types.StageNavigate, types.StageCaptchaCheck, types.StageSubmit, types.StageExtract:
		return types.AdvisoryBrowserFailed
	default:
		return types.AdvisoryUnavailable
	}
}

// run is the mutable state of one search.
type run struct {
	id       string
	req      types.SearchRequest
	stage    types.Stage
	attempts []types.Attempt
	logger   *slog.Logger
	onStep   ProgressCallback
}

func (r *run) enter(stage types.Stage, message string) {
	r.stage = stage
	r.logger.Debug(message, "stage", stage)
	if r.onStep != nil {
		r.onStep(ProgressEvent{RunID: r.id, Stage: stage, Message: message})
	}
}

func (r *run) fail(stage types.Stage, kind types.FailureKind, message string, cause error) {
	stageErr := &types.StageError{Stage: stage, Kind: kind, Message: message, Cause: cause}
	r.attempts = append(r.attempts, types.Attempt{Stage: stage, Kind: kind, Message: stageErr.Error()})
	r.logger.Warn("stage failed", "stage", stage, "kind", kind, "error", stageErr)
}

func (r *run) degraded(advisory types.Advisory) types.SearchOutcome {
	r.enter(types.StageResolved, "returning sample data: "+string(advisory))
	return synthetic.Outcome(r.req, advisory, r.attempts)
}

func (r *run) success(origin types.Origin, res extraction.Result, markup string) types.SearchOutcome {
	r.enter(types.StageResolved, "search succeeded via "+string(origin))
	return types.SearchOutcome{
		Kind:      types.OutcomeSuccess,
		Origin:    origin,
		Case:      res.Case,
		Orders:    res.Orders,
		RawMarkup: markup,
		Attempts:  r.attempts,
	}
}
