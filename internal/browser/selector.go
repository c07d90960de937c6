package browser

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jonathan/court-case-fetcher/internal/config"
)

var tracer = otel.Tracer("casefetch/browser")

// ErrUnavailable is returned when every acquisition strategy failed.
var ErrUnavailable = errors.New("browser unavailable: all acquisition strategies failed")

// Acquirer obtains a Session for one search run.
type Acquirer interface {
	Acquire(ctx context.Context) (Session, error)
}

// Selector tries its strategies strictly in order and returns the first live
// Session. Strategy failures are logged and swallowed.
type Selector struct {
	strategies []Strategy
	logger     *slog.Logger
}

// NewSelector builds the strategy list from configuration: managed, system,
// explicit, then remote when a DevTools URL is configured.
func NewSelector(cfg config.BrowserConfig, userAgent string, logger *slog.Logger) *Selector {
	opts := LaunchOptions{
		Headless:  cfg.Headless,
		UserAgent: userAgent,
		Timeout:   cfg.LaunchTimeout,
	}

	strategies := []Strategy{
		&ManagedStrategy{CacheDir: cfg.CacheDir, Options: opts},
		&SystemStrategy{Paths: SystemBrowserPaths, Options: opts},
		&ExplicitStrategy{BinaryPath: cfg.BinaryPath, Options: opts},
	}
	if cfg.RemoteURL != "" {
		strategies = append(strategies, &RemoteStrategy{URL: cfg.RemoteURL, Timeout: cfg.LaunchTimeout})
	}
	return NewSelectorWithStrategies(strategies, logger)
}

// NewSelectorWithStrategies builds a Selector over an explicit strategy list.
func NewSelectorWithStrategies(strategies []Strategy, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{strategies: strategies, logger: logger}
}

// Strategies returns the strategy names in the order they are tried.
func (s *Selector) Strategies() []string {
	names := make([]string, len(s.strategies))
	for i, st := range s.strategies {
		names[i] = st.Name()
	}
	return names
}

// Acquire implements Acquirer. It returns ErrUnavailable, never a strategy's
// own error, when no strategy yields a session.
func (s *Selector) Acquire(ctx context.Context) (Session, error) {
	ctx, span := tracer.Start(ctx, "browser.Acquire")
	defer span.End()

	for _, st := range s.strategies {
		if ctx.Err() != nil {
			s.logger.Warn("driver acquisition aborted", "strategy", st.Name(), "error", ctx.Err())
			break
		}

		start := time.Now()
		sess, err := st.Launch(ctx)
		if err != nil {
			s.logger.Warn("driver strategy failed",
				"strategy", st.Name(),
				"elapsed", time.Since(start),
				"error", err)
			continue
		}

		span.SetAttributes(attribute.String("browser.strategy", st.Name()))
		s.logger.Info("driver initialized", "strategy", st.Name(), "session", sess, "elapsed", time.Since(start))
		return sess, nil
	}

	s.logger.Error("all driver strategies failed", "tried", len(s.strategies))
	return nil, ErrUnavailable
}
