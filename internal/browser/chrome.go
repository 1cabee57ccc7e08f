package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

const (
	defaultNavigationTimeout = 20 * time.Second
	pollInterval             = 250 * time.Millisecond
)

type chromeLauncher struct {
	cfg Config
}

func newChromeLauncher(cfg Config) *chromeLauncher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}
	return &chromeLauncher{cfg: cfg}
}

func (l *chromeLauncher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-accelerated-2d-canvas", true),
		chromedp.DisableGPU,
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(l.cfg.UserAgent),
	)
	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}
	return opts
}

// Launch starts Chrome and waits for the first target to come up. The
// browser outlives ctx; ctx only bounds the warm-up.
func (l *chromeLauncher) Launch(ctx context.Context) (Instance, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), l.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	stop := forwardCancel(ctx, browserCancel)
	err := chromedp.Run(browserCtx)
	stop()
	if err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	var tabs chan struct{}
	if l.cfg.MaxTabs > 0 {
		tabs = make(chan struct{}, l.cfg.MaxTabs)
	}
	return &chromeInstance{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		tabs:          tabs,
		userAgent:     l.cfg.UserAgent,
		navTimeout:    l.cfg.NavigationTimeout,
	}, nil
}

type chromeInstance struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	tabs          chan struct{}
	userAgent     string
	navTimeout    time.Duration
}

func (c *chromeInstance) NewPage(ctx context.Context) (Page, error) {
	release, err := c.acquireTab(ctx)
	if err != nil {
		return nil, err
	}
	tabCtx, cancel := chromedp.NewContext(c.browserCtx)
	return &chromePage{
		tabCtx:     tabCtx,
		cancel:     cancel,
		release:    release,
		userAgent:  c.userAgent,
		navTimeout: c.navTimeout,
	}, nil
}

func (c *chromeInstance) acquireTab(ctx context.Context) (func(), error) {
	if c.tabs == nil {
		return func() {}, nil
	}
	select {
	case c.tabs <- struct{}{}:
		return func() { <-c.tabs }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire tab: %w", ctx.Err())
	}
}

func (c *chromeInstance) Close() error {
	if err := chromedp.Cancel(c.browserCtx); err != nil {
		c.browserCancel()
		c.allocCancel()
		return fmt.Errorf("close browser: %w", err)
	}
	c.browserCancel()
	c.allocCancel()
	return nil
}

type chromePage struct {
	tabCtx     context.Context
	cancel     context.CancelFunc
	release    func()
	userAgent  string
	navTimeout time.Duration
	closed     bool
}

func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	taskCtx, cancel := context.WithTimeout(p.tabCtx, timeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()
	return chromedp.Run(taskCtx, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	err := p.run(ctx, p.navTimeout,
		network.Enable(),
		emulation.SetUserAgentOverride(p.userAgent),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (p *chromePage) WaitForAny(ctx context.Context, selectors []string, timeout time.Duration) (string, error) {
	script, err := firstMatchScript(selectors)
	if err != nil {
		return "", err
	}
	deadline := time.Now().Add(timeout)
	for {
		var matched string
		if err := p.run(ctx, p.navTimeout, chromedp.Evaluate(script, &matched)); err != nil {
			return "", fmt.Errorf("wait for selectors: %w", err)
		}
		if matched != "" {
			return matched, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("wait for selectors %v: %w", selectors, context.DeadlineExceeded)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, p.navTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read html: %w", err)
	}
	return html, nil
}

func (p *chromePage) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.cancel()
	p.release()
	return nil
}

// firstMatchScript builds a script returning the first selector present in the DOM.
func firstMatchScript(selectors []string) (string, error) {
	encoded, err := json.Marshal(selectors)
	if err != nil {
		return "", fmt.Errorf("encode selectors: %w", err)
	}
	return fmt.Sprintf(`(() => { for (const s of %s) { try { if (document.querySelector(s)) return s; } catch (e) {} } return ""; })()`, encoded), nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
