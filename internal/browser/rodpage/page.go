// Package rodpage implements browser.Page on go-rod, optionally with the
// stealth page patches applied.
package rodpage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"

	"github.com/JakeFAU/lore-crawler/internal/browser"
	"github.com/JakeFAU/lore-crawler/internal/policy/ratelimit"
)

// Config controls the rod-managed browser.
type Config struct {
	Headless          bool
	Bin               string
	UserAgent         string
	Stealth           bool
	NavigationTimeout time.Duration
	NavigationQPS     float64
	Snapshots         *browser.SnapshotWriter
}

// Page wraps one rod page.
type Page struct {
	cfg      Config
	logger   *zap.Logger
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	limiter  *ratelimit.Limiter

	current   string
	closeOnce sync.Once
}

// New launches a browser and opens a page.
func New(cfg Config, logger *zap.Logger) (*Page, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}

	l := launcher.New().Headless(cfg.Headless)
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	var page *rod.Page
	if cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		_ = b.Close()
		l.Kill()
		return nil, fmt.Errorf("open page: %w", err)
	}
	if cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: cfg.UserAgent}); err != nil {
			logger.Warn("Failed to set user agent", zap.Error(err))
		}
	}

	return &Page{
		cfg:      cfg,
		logger:   logger,
		launcher: l,
		browser:  b,
		page:     page,
		limiter:  ratelimit.New(ratelimit.Config{RPS: cfg.NavigationQPS, Burst: 1}),
	}, nil
}

// Opener adapts New to browser.Opener.
func Opener(cfg Config, logger *zap.Logger) browser.Opener {
	return func(context.Context) (browser.Page, error) {
		return New(cfg, logger)
	}
}

type element struct {
	el *rod.Element
}

func (e element) Describe() string {
	if e.el == nil {
		return "<nil>"
	}
	return fmt.Sprintf("rod element %s", e.el.Object.ObjectID)
}

// Navigate loads rawURL and waits for the load event.
func (p *Page) Navigate(ctx context.Context, rawURL string) error {
	if err := p.limiter.Wait(ctx, rawURL); err != nil {
		return fmt.Errorf("navigation rate limit: %w", err)
	}
	if _, err := url.Parse(rawURL); err != nil {
		return fmt.Errorf("parse navigation url: %w", err)
	}
	p.snapshot()

	page := p.page.Context(ctx).Timeout(p.cfg.NavigationTimeout)
	defer page.CancelTimeout()
	if err := page.Navigate(rawURL); err != nil {
		return fmt.Errorf("navigate %s: %w", rawURL, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", rawURL, err)
	}
	p.current = rawURL
	return nil
}

// WaitFor polls for selector until timeout.
func (p *Page) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	page := p.page.Context(ctx).Timeout(timeout)
	defer page.CancelTimeout()
	_, err := page.Element(selector)
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
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("find %q: %w", selector, err)
	}
	return wrap(els), nil
}

// FindAllWithin queries selector under parent without waiting.
func (p *Page) FindAllWithin(ctx context.Context, parent browser.Element, selector string) ([]browser.Element, error) {
	e, err := unwrap(parent)
	if err != nil {
		return nil, err
	}
	els, err := e.el.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("find %q within element: %w", selector, err)
	}
	return wrap(els), nil
}

// Attribute reads a DOM attribute.
func (p *Page) Attribute(ctx context.Context, el browser.Element, name string) (string, bool, error) {
	e, err := unwrap(el)
	if err != nil {
		return "", false, err
	}
	v, err := e.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", false, fmt.Errorf("read attribute %s: %w", name, err)
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

// VisibleText returns the element's rendered text.
func (p *Page) VisibleText(ctx context.Context, el browser.Element) (string, error) {
	e, err := unwrap(el)
	if err != nil {
		return "", err
	}
	text, err := e.el.Context(ctx).Text()
	if err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	return text, nil
}

// Evaluate runs fn with `this` bound to el.
func (p *Page) Evaluate(ctx context.Context, el browser.Element, fn string) (string, error) {
	e, err := unwrap(el)
	if err != nil {
		return "", err
	}
	obj, err := e.el.Context(ctx).Eval(fn)
	if err != nil {
		return "", fmt.Errorf("evaluate: %w", err)
	}
	if obj == nil || obj.Value.Nil() {
		return "", nil
	}
	return obj.Value.Str(), nil
}

// ScrollIntoView centers el in the viewport.
func (p *Page) ScrollIntoView(ctx context.Context, el browser.Element) error {
	_, err := p.Evaluate(ctx, el, browser.ScrollIntoViewScript)
	return err
}

// ScrollWindowBy scrolls the window.
func (p *Page) ScrollWindowBy(ctx context.Context, dx, dy int) error {
	if _, err := p.page.Context(ctx).Eval(`(x, y) => window.scrollBy(x, y)`, dx, dy); err != nil {
		return fmt.Errorf("scroll window: %w", err)
	}
	return nil
}

// ClickViaScript dispatches a click from inside the page.
func (p *Page) ClickViaScript(ctx context.Context, el browser.Element) error {
	_, err := p.Evaluate(ctx, el, browser.ClickScript)
	return err
}

// Close snapshots the last page and tears the browser down. Safe to call twice.
func (p *Page) Close() error {
	var closeErr error
	p.closeOnce.Do(func() {
		p.snapshot()
		if err := p.browser.Close(); err != nil {
			closeErr = fmt.Errorf("close browser: %w", err)
		}
		p.launcher.Kill()
	})
	return closeErr
}

func (p *Page) snapshot() {
	if p.cfg.Snapshots == nil || p.current == "" {
		return
	}
	html, err := p.page.HTML()
	if err != nil {
		p.logger.Debug("Snapshot capture failed", zap.String("url", p.current), zap.Error(err))
		return
	}
	if _, err := p.cfg.Snapshots.Save(context.Background(), p.current, html); err != nil {
		p.logger.Warn("Snapshot write failed", zap.String("url", p.current), zap.Error(err))
	}
}

func wrap(els rod.Elements) []browser.Element {
	out := make([]browser.Element, 0, len(els))
	for _, el := range els {
		out = append(out, element{el: el})
	}
	return out
}

func unwrap(el browser.Element) (element, error) {
	e, ok := el.(element)
	if !ok || e.el == nil {
		return element{}, browser.ErrForeignElement
	}
	return e, nil
}

