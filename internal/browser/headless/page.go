// Package headless drives a headless Chrome tab through chromedp as a browser.Page.
package headless

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/lore-crawler/internal/browser"
	"github.com/JakeFAU/lore-crawler/internal/policy/ratelimit"
)

// Config controls the Chrome session.
type Config struct {
	Headless          bool
	ExecPath          string
	UserAgent         string
	WindowWidth       int
	WindowHeight      int
	NavigationTimeout time.Duration
	// ActionTimeout bounds every query and script call.
	ActionTimeout time.Duration
	// NavigationQPS caps navigations per host; zero disables the budget.
	NavigationQPS float64
	Snapshots     *browser.SnapshotWriter
}

// Page is a single Chrome tab.
type Page struct {
	cfg    Config
	logger *zap.Logger

	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	limiter   *ratelimit.Limiter
	current   string
	closeOnce sync.Once
}

// New launches Chrome and opens one tab.
func New(cfg Config, logger *zap.Logger) (*Page, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = 10 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}
	return &Page{
		cfg:         cfg,
		logger:      logger,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		limiter:     ratelimit.New(ratelimit.Config{RPS: cfg.NavigationQPS, Burst: 1}),
	}, nil
}

// Opener adapts New to browser.Opener.
func Opener(cfg Config, logger *zap.Logger) browser.Opener {
	return func(context.Context) (browser.Page, error) {
		return New(cfg, logger)
	}
}

type element struct {
	node *cdp.Node
}

func (e element) Describe() string {
	if e.node == nil {
		return "<nil>"
	}
	return fmt.Sprintf("<%s> node %d", strings.ToLower(e.node.NodeName), e.node.NodeID)
}

// Navigate loads rawURL in the tab, snapshotting the page being left first.
func (p *Page) Navigate(ctx context.Context, rawURL string) error {
	if err := p.limiter.Wait(ctx, rawURL); err != nil {
		return fmt.Errorf("navigation rate limit: %w", err)
	}
	p.snapshot(ctx)
	if err := p.run(ctx, p.cfg.NavigationTimeout, chromedp.Navigate(rawURL)); err != nil {
		return fmt.Errorf("navigate %s: %w", rawURL, err)
	}
	p.current = rawURL
	return nil
}

// WaitFor waits for selector to be present in the DOM.
func (p *Page) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	err := p.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return browser.ErrElementNotFound
	default:
		return fmt.Errorf("wait for %q: %w", selector, err)
	}
}

// FindAll queries selector without waiting.
func (p *Page) FindAll(ctx context.Context, selector string) ([]browser.Element, error) {
	var nodes []*cdp.Node
	err := p.run(ctx, p.cfg.ActionTimeout,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return nil, fmt.Errorf("find %q: %w", selector, err)
	}
	return wrap(nodes), nil
}

// FindAllWithin queries selector under parent without waiting.
func (p *Page) FindAllWithin(ctx context.Context, parent browser.Element, selector string) ([]browser.Element, error) {
	el, err := unwrap(parent)
	if err != nil {
		return nil, err
	}
	var nodes []*cdp.Node
	err = p.run(ctx, p.cfg.ActionTimeout,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0), chromedp.FromNode(el.node)))
	if err != nil {
		return nil, fmt.Errorf("find %q within %s: %w", selector, el.Describe(), err)
	}
	return wrap(nodes), nil
}

// Attribute reads an attribute from the node as last reported by Chrome.
func (p *Page) Attribute(_ context.Context, el browser.Element, name string) (string, bool, error) {
	e, err := unwrap(el)
	if err != nil {
		return "", false, err
	}
	v, ok := e.node.Attribute(name)
	return v, ok, nil
}

// VisibleText returns the rendered innerText of el.
func (p *Page) VisibleText(ctx context.Context, el browser.Element) (string, error) {
	return p.Evaluate(ctx, el, browser.InnerTextScript)
}

// Evaluate calls fn on the remote node and returns its string result.
func (p *Page) Evaluate(ctx context.Context, el browser.Element, fn string) (string, error) {
	e, err := unwrap(el)
	if err != nil {
		return "", err
	}
	var out string
	err = p.run(ctx, p.cfg.ActionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(e.node.NodeID).Do(ctx)
		if err != nil {
			return fmt.Errorf("resolve node: %w", err)
		}
		defer func() {
			_ = runtime.ReleaseObject(obj.ObjectID).Do(ctx)
		}()
		res, exc, err := runtime.CallFunctionOn(fn).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("call function: %w", err)
		}
		if exc != nil {
			return fmt.Errorf("script exception: %s", exc.Text)
		}
		out = decodeString(res)
		return nil
	}))
	if err != nil {
		return "", fmt.Errorf("evaluate on %s: %w", e.Describe(), err)
	}
	return out, nil
}

// ScrollIntoView centers el in the viewport.
func (p *Page) ScrollIntoView(ctx context.Context, el browser.Element) error {
	_, err := p.Evaluate(ctx, el, browser.ScrollIntoViewScript)
	return err
}

// ScrollWindowBy scrolls the window by the given offset.
func (p *Page) ScrollWindowBy(ctx context.Context, dx, dy int) error {
	var ok bool
	expr := fmt.Sprintf("window.scrollBy(%d, %d); true", dx, dy)
	if err := p.run(ctx, p.cfg.ActionTimeout, chromedp.Evaluate(expr, &ok)); err != nil {
		return fmt.Errorf("scroll window: %w", err)
	}
	return nil
}

// ClickViaScript dispatches a click from inside the page.
func (p *Page) ClickViaScript(ctx context.Context, el browser.Element) error {
	_, err := p.Evaluate(ctx, el, browser.ClickScript)
	return err
}

// Close snapshots the last page and shuts Chrome down. Safe to call twice.
func (p *Page) Close() error {
	p.closeOnce.Do(func() {
		p.snapshot(context.Background())
		p.tabCancel()
		p.allocCancel()
	})
	return nil
}

func (p *Page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(p.tabCtx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(p.tabCtx)
	}
	defer cancel()

	stop := forwardCancel(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func (p *Page) snapshot(ctx context.Context) {
	if p.cfg.Snapshots == nil || p.current == "" {
		return
	}
	var html string
	if err := p.run(context.WithoutCancel(ctx), p.cfg.ActionTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		p.logger.Debug("Snapshot capture failed", zap.String("url", p.current), zap.Error(err))
		return
	}
	if _, err := p.cfg.Snapshots.Save(context.WithoutCancel(ctx), p.current, html); err != nil {
		p.logger.Warn("Snapshot write failed", zap.String("url", p.current), zap.Error(err))
	}
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

func decodeString(res *runtime.RemoteObject) string {
	if res == nil || len(res.Value) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal([]byte(res.Value), &s); err != nil {
		return ""
	}
	return s
}

func wrap(nodes []*cdp.Node) []browser.Element {
	out := make([]browser.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, element{node: n})
	}
	return out
}

func unwrap(el browser.Element) (element, error) {
	e, ok := el.(element)
	if !ok || e.node == nil {
		return element{}, browser.ErrForeignElement
	}
	return e, nil
}
