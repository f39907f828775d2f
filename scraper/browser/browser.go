// Package browser owns the single headless Chrome process shared by every
// scrape and hands out one tab per operation.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"propscout/utils"
)

// Page is one browser tab used exclusively by a single scrape.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// Settle scrolls through the page so lazy-loaded images resolve.
	Settle(ctx context.Context) error
	HTML(ctx context.Context) (string, error)
	Location(ctx context.Context) (string, error)
	// ClickFirst clicks the first element matching any selector, in order.
	ClickFirst(ctx context.Context, selectors []string) (bool, error)
	// FetchJSON runs fetch(url) inside the page. A non-2xx response yields
	// nil bytes and no error.
	FetchJSON(ctx context.Context, url string) ([]byte, error)
	Close() error
}

// Opener hands out pages.
type Opener interface {
	NewPage(ctx context.Context) (Page, error)
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// webdriverMask hides the automation flag from page scripts.
const webdriverMask = `Object.defineProperty(navigator, 'webdriver', { get: () => false });`

// Options configures the browser process and its tabs.
type Options struct {
	ChromeBin      string
	Headless       bool
	UserAgent      string
	AcceptLanguage string
	NavTimeout     time.Duration
	SettleDelay    time.Duration
}

func (o Options) withDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = defaultUserAgent
	}
	if o.AcceptLanguage == "" {
		o.AcceptLanguage = "en-GB,en;q=0.9"
	}
	if o.NavTimeout <= 0 {
		o.NavTimeout = 60 * time.Second
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
	return o
}

// Session lazily launches Chrome on first use and relaunches it when the
// process has died. It is safe for concurrent use, though scrapes are
// normally serialised by the rate limiter.
type Session struct {
	opts   Options
	logger *utils.Logger

	mu            sync.Mutex
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

// NewSession creates a Session. Chrome is not started until NewPage.
func NewSession(opts Options, logger *utils.Logger) *Session {
	return &Session{opts: opts.withDefaults(), logger: logger}
}

var errTabSetup = errors.New("tab setup failed")

// NewPage opens a fresh tab, launching the browser if needed. A tab that
// cannot be opened on the current browser triggers exactly one relaunch.
func (s *Session) NewPage(ctx context.Context) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browserCtx == nil || s.browserCtx.Err() != nil {
		if err := s.launchLocked(); err != nil {
			return nil, err
		}
	}

	p, err := s.openTab(ctx)
	if err == nil {
		return p, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	s.logger.Warn("[browser] Opening tab failed (%v), relaunching browser", err)
	s.closeLocked()
	if err := s.launchLocked(); err != nil {
		return nil, err
	}
	p, err = s.openTab(ctx)
	if err != nil {
		return nil, fmt.Errorf("browser: open tab after relaunch: %w", err)
	}
	return p, nil
}

// Close shuts the browser down. The next NewPage starts a new one.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	return nil
}

func (s *Session) launchLocked() error {
	chromeBin := findChromeBinary(s.opts.ChromeBin)
	s.logger.Info("[browser] Launching browser (binary: %q, headless: %v)", chromeBin, s.opts.Headless)

	// The browser outlives any single request, so it hangs off Background.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocatorOptions(s.opts, chromeBin)...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...any) {}))

	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return fmt.Errorf("browser: launch: %w", err)
	}

	s.browserCtx = browserCtx
	s.cancelBrowser = cancelBrowser
	s.cancelAlloc = cancelAlloc
	return nil
}

func (s *Session) closeLocked() {
	if s.cancelBrowser != nil {
		s.cancelBrowser()
	}
	if s.cancelAlloc != nil {
		s.cancelAlloc()
	}
	s.browserCtx, s.cancelBrowser, s.cancelAlloc = nil, nil, nil
}

func (s *Session) openTab(ctx context.Context) (Page, error) {
	tabCtx, cancel := chromedp.NewContext(s.browserCtx)

	// The first Run binds the target to tabCtx, so it must not carry a
	// deadline of its own; the timer and caller ctx cancel it instead.
	timer := time.AfterFunc(s.opts.NavTimeout, cancel)
	stop := context.AfterFunc(ctx, cancel)
	err := chromedp.Run(tabCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": s.opts.AcceptLanguage}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(webdriverMask).Do(ctx)
			return err
		}),
	)
	timer.Stop()
	stop()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", errTabSetup, err)
	}
	if tabCtx.Err() != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", errTabSetup, tabCtx.Err())
	}

	return &chromePage{ctx: tabCtx, cancel: cancel, opts: s.opts}, nil
}
