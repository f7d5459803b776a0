package browser

import (
	"context"
	"fmt"
	"time"

	"boatresearch/internal/logger"

	"github.com/playwright-community/playwright-go"
)

type Options struct {
	Engine            string // chromium, webkit or firefox
	Headless          bool
	ProfileDir        string // persistent profile; empty launches a throwaway context
	NavigationTimeout time.Duration
	RenderWait        time.Duration
	SettleDelay       time.Duration
	ChallengeTitles   []string
}

// session is one open browser page. The playwright implementation is the
// only production one; tests substitute a fake.
type session interface {
	Goto(url string, timeout time.Duration) error
	WaitForRender(timeout time.Duration)
	Title() (string, error)
	Content() (string, error)
	Close() error
}

type launchFunc func(opts Options) (session, error)

// Fetcher renders pages in a headless browser, one session at a time.
type Fetcher struct {
	log       *logger.Logger
	mutex     *Mutex
	opts      Options
	detector  ChallengeDetector
	launch    launchFunc
	sleepFunc func(ctx context.Context, d time.Duration)
}

func NewFetcher(mutex *Mutex, opts Options) *Fetcher {
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}
	return &Fetcher{
		log:       logger.New("PageFetcher"),
		mutex:     mutex,
		opts:      opts,
		detector:  NewChallengeDetector(opts.ChallengeTitles),
		launch:    launchPlaywright,
		sleepFunc: sleepCtx,
	}
}

// Fetch returns the rendered HTML of url. It fails with ErrFetchFailed when
// the browser cannot launch or navigate and with ErrBotChallenge when the
// page title looks like an anti-bot interstitial. A loaded page with no
// content returns "", nil.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	var html string
	err := f.mutex.WithLock(ctx, func() error {
		var ferr error
		html, ferr = f.fetchLocked(ctx, url)
		return ferr
	})
	if err != nil && ctx.Err() != nil && !IsFetchFailure(err) {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return html, err
}

func (f *Fetcher) fetchLocked(ctx context.Context, url string) (string, error) {
	f.log.LogDebugf("launching %s for %s", f.opts.Engine, url)
	s, err := f.launch(f.opts)
	if err != nil {
		f.log.LogErrorf("browser launch failed for %s: %v", url, err)
		return "", fmt.Errorf("%w: launch: %v", ErrFetchFailed, err)
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			f.log.LogWarnf("browser close failed: %v", cerr)
		}
		// Give the engine time to release the profile before the next launch.
		if f.opts.SettleDelay > 0 {
			f.sleepFunc(ctx, f.opts.SettleDelay)
		}
	}()

	if err := s.Goto(url, f.opts.NavigationTimeout); err != nil {
		f.log.LogWarnf("navigation failed for %s: %v", url, err)
		return "", fmt.Errorf("%w: goto %s: %v", ErrFetchFailed, url, err)
	}
	if f.opts.RenderWait > 0 {
		s.WaitForRender(f.opts.RenderWait)
	}

	title, _ := s.Title()
	if f.detector.IsChallenge(title) {
		f.log.LogWarnf("bot challenge detected for %s (title %q)", url, title)
		return "", fmt.Errorf("%w: %q", ErrBotChallenge, title)
	}

	html, err := s.Content()
	if err != nil {
		return "", fmt.Errorf("%w: content: %v", ErrFetchFailed, err)
	}
	return html, nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

type playwrightSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
}

func launchPlaywright(opts Options) (session, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("playwright run: %w", err)
	}
	s := &playwrightSession{pw: pw}

	var bt playwright.BrowserType
	switch opts.Engine {
	case "webkit":
		bt = pw.WebKit
	case "firefox":
		bt = pw.Firefox
	default:
		bt = pw.Chromium
	}
	var args []string
	if opts.Engine == "" || opts.Engine == "chromium" {
		args = []string{
			"--no-sandbox",
			"--disable-dev-shm-usage",
			"--disable-blink-features=AutomationControlled",
			"--no-first-run",
			"--disable-default-apps",
			"--disable-extensions",
		}
	}
	viewport := &playwright.Size{Width: 1440, Height: 900}

	if opts.ProfileDir != "" {
		s.context, err = bt.LaunchPersistentContext(opts.ProfileDir, playwright.BrowserTypeLaunchPersistentContextOptions{
			Headless: playwright.Bool(opts.Headless),
			Args:     args,
			Viewport: viewport,
		})
		if err != nil {
			_ = pw.Stop()
			return nil, fmt.Errorf("launch persistent context: %w", err)
		}
	} else {
		s.browser, err = bt.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(opts.Headless),
			Args:     args,
		})
		if err != nil {
			_ = pw.Stop()
			return nil, fmt.Errorf("launch: %w", err)
		}
		s.context, err = s.browser.NewContext(playwright.BrowserNewContextOptions{Viewport: viewport})
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("new context: %w", err)
		}
	}

	s.page, err = s.context.NewPage()
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("new page: %w", err)
	}
	return s, nil
}

func (s *playwrightSession) Goto(url string, timeout time.Duration) error {
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	return err
}

// WaitForRender gives client-side rendering a bounded chance to settle. A
// timeout is not an error; whatever has rendered is captured.
func (s *playwrightSession) WaitForRender(timeout time.Duration) {
	_ = s.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

func (s *playwrightSession) Title() (string, error)   { return s.page.Title() }
func (s *playwrightSession) Content() (string, error) { return s.page.Content() }

func (s *playwrightSession) Close() error {
	var firstErr error
	if s.context != nil {
		if err := s.context.Close(); err != nil {
			firstErr = err
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.pw.Stop(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
