package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
)

// Strategy is one way of obtaining a live Session.
type Strategy interface {
	Name() string
	Launch(ctx context.Context) (Session, error)
}

// LaunchOptions are shared by the exec-based strategies.
type LaunchOptions struct {
	Headless  bool
	UserAgent string
	Timeout   time.Duration // bound on launch plus liveness check
}

func (o LaunchOptions) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", o.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.WindowSize(1920, 1080),
	)
	if o.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(o.UserAgent))
	}
	return opts
}

// SystemBrowserPaths are the well-known install locations searched by the
// system strategy, in order.
var SystemBrowserPaths = []string{
	"/usr/bin/google-chrome",
	"/usr/bin/google-chrome-stable",
	"/usr/bin/chromium",
	"/usr/bin/chromium-browser",
	"/snap/bin/chromium",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	`C:\Program Files\Google\Chrome\Application\chrome.exe`,
	`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
}

// errNotConfigured marks a strategy that has nothing to try.
var errNotConfigured = errors.New("not configured")

// ManagedStrategy lets chromedp locate the installed browser and keeps a
// persistent profile under CacheDir.
type ManagedStrategy struct {
	CacheDir string
	Options  LaunchOptions
}

// Name implements Strategy.
func (m *ManagedStrategy) Name() string { return "managed" }

// Launch implements Strategy.
func (m *ManagedStrategy) Launch(ctx context.Context) (Session, error) {
	profile, err := PrepareCache(m.CacheDir)
	if err != nil {
		return nil, err
	}
	opts := append(m.Options.allocatorOptions(), chromedp.UserDataDir(profile))
	return launch(ctx, m.Name(), m.Options.Timeout, opts, nil)
}

// PrepareCache ensures cacheDir/profile exists and returns its path. A cache
// that cannot be prepared is cleared and rebuilt once before giving up.
func PrepareCache(cacheDir string) (string, error) {
	if cacheDir == "" {
		return "", fmt.Errorf("cache dir %w", errNotConfigured)
	}
	profile := filepath.Join(cacheDir, "profile")
	if err := ensureDir(profile); err == nil {
		return profile, nil
	}

	if err := os.RemoveAll(cacheDir); err != nil {
		return "", fmt.Errorf("failed to clear browser cache %s: %w", cacheDir, err)
	}
	if err := ensureDir(profile); err != nil {
		return "", fmt.Errorf("browser cache %s unusable after reset: %w", cacheDir, err)
	}
	return profile, nil
}

func ensureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}

// SystemStrategy launches the first browser found at a well-known path.
type SystemStrategy struct {
	Paths   []string
	Options LaunchOptions
}

// Name implements Strategy.
func (s *SystemStrategy) Name() string { return "system" }

// Launch implements Strategy.
func (s *SystemStrategy) Launch(ctx context.Context) (Session, error) {
	candidates := FindBrowsers(s.Paths)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no browser binary at well-known paths")
	}

	var errs []error
	for _, path := range candidates {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		sess, err := launchWithTempProfile(ctx, s.Name(), path, s.Options)
		if err == nil {
			return sess, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", path, err))
	}
	return nil, errors.Join(errs...)
}

// FindBrowsers returns the entries of paths that exist, in order. Bare names
// are resolved through PATH.
func FindBrowsers(paths []string) []string {
	var found []string
	for _, p := range paths {
		if !filepath.IsAbs(p) && filepath.Base(p) == p {
			if resolved, err := exec.LookPath(p); err == nil {
				found = append(found, resolved)
			}
			continue
		}
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			found = append(found, p)
		}
	}
	return found
}

// ExplicitStrategy launches a configured browser binary with a fresh profile.
type ExplicitStrategy struct {
	BinaryPath string
	Options    LaunchOptions
}

// Name implements Strategy.
func (e *ExplicitStrategy) Name() string { return "explicit" }

// Launch implements Strategy.
func (e *ExplicitStrategy) Launch(ctx context.Context) (Session, error) {
	if e.BinaryPath == "" {
		return nil, fmt.Errorf("browser binary path %w", errNotConfigured)
	}
	if _, err := os.Stat(e.BinaryPath); err != nil {
		return nil, fmt.Errorf("browser binary: %w", err)
	}
	return launchWithTempProfile(ctx, e.Name(), e.BinaryPath, e.Options)
}

// RemoteStrategy attaches to an already running browser's DevTools endpoint.
type RemoteStrategy struct {
	URL     string
	Timeout time.Duration
}

// Name implements Strategy.
func (r *RemoteStrategy) Name() string { return "remote" }

// Launch implements Strategy.
func (r *RemoteStrategy) Launch(ctx context.Context) (Session, error) {
	if r.URL == "" {
		return nil, fmt.Errorf("remote url %w", errNotConfigured)
	}
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), r.URL)
	return start(ctx, r.Name(), r.Timeout, allocCtx, allocCancel, nil)
}

func launchWithTempProfile(ctx context.Context, name, execPath string, o LaunchOptions) (Session, error) {
	dir, err := os.MkdirTemp("", "casefetch-profile-")
	if err != nil {
		return nil, fmt.Errorf("failed to create profile dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	opts := append(o.allocatorOptions(), chromedp.ExecPath(execPath), chromedp.UserDataDir(dir))
	return launch(ctx, name, o.Timeout, opts, cleanup)
}

func launch(ctx context.Context, name string, timeout time.Duration, opts []chromedp.ExecAllocatorOption, cleanup func()) (Session, error) {
	// The allocator must outlive ctx: the session is closed explicitly by its owner.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return start(ctx, name, timeout, allocCtx, allocCancel, cleanup)
}

// start allocates the browser with a liveness check bounded by timeout and ctx.
// The first Run must not use a deadline context, since that would bind the
// browser's lifetime to it, so the bound is enforced from outside.
func start(ctx context.Context, name string, timeout time.Duration, allocCtx context.Context, allocCancel context.CancelFunc, cleanup func()) (Session, error) {
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	cancelAll := func() {
		tabCancel()
		allocCancel()
	}
	fail := func(err error) (Session, error) {
		cancelAll()
		if cleanup != nil {
			cleanup()
		}
		return nil, err
	}

	var sum int
	errc := make(chan error, 1)
	go func() {
		errc <- chromedp.Run(tabCtx, chromedp.Evaluate(`1+1`, &sum))
	}()

	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-errc:
		if err != nil {
			return fail(fmt.Errorf("browser did not start: %w", err))
		}
		if sum != 2 {
			return fail(fmt.Errorf("browser liveness check returned %d", sum))
		}
	case <-timer.C:
		cancelAll()
		<-errc
		return fail(fmt.Errorf("browser did not start within %v", timeout))
	case <-ctx.Done():
		cancelAll()
		<-errc
		return fail(ctx.Err())
	}

	return &chromeSession{
		tabCtx:   tabCtx,
		cancel:   cancelAll,
		cleanup:  cleanup,
		strategy: name,
	}, nil
}
