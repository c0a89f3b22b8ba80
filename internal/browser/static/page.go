// Package static implements browser.Page over pre-rendered HTML using goquery.
// It replays snapshots recorded by the live drivers and serves as the page
// fake in tests. Scripts are limited to the browser package's known functions.
package static

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/lore-crawler/internal/browser"
)

// ErrNoDocument is returned when a source has no HTML for the requested URL.
var ErrNoDocument = errors.New("no document for url")

// Source resolves a URL to an HTML document.
type Source interface {
	Load(ctx context.Context, url string) (string, error)
}

// MapSource serves documents from memory, keyed by exact URL.
type MapSource map[string]string

// Load returns the document registered for url.
func (m MapSource) Load(_ context.Context, url string) (string, error) {
	html, ok := m[url]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoDocument, url)
	}
	return html, nil
}

// DirSource serves snapshots written by browser.SnapshotWriter.
type DirSource struct {
	Root string
}

// Load reads the snapshot file for url.
func (d DirSource) Load(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("load snapshot: %w", err)
	}
	data, err := os.ReadFile(browser.SnapshotPath(d.Root, url))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNoDocument, url)
		}
		return "", fmt.Errorf("read snapshot: %w", err)
	}
	return string(data), nil
}

type element struct {
	sel *goquery.Selection
}

func (e element) Describe() string {
	if e.sel == nil || e.sel.Length() == 0 {
		return "<empty>"
	}
	name := goquery.NodeName(e.sel)
	if id, ok := e.sel.Attr("id"); ok {
		return name + "#" + id
	}
	if class, ok := e.sel.Attr("class"); ok {
		return name + "." + strings.Join(strings.Fields(class), ".")
	}
	return name
}

// Page is a static browser.Page. It records the interactions it receives so
// tests can assert on them.
type Page struct {
	source Source

	mu       sync.Mutex
	doc      *goquery.Document
	url      string
	visited  []string
	clicks   []string
	scrolls  []string
	closures int
}

// New creates a Page reading documents from source.
func New(source Source) *Page {
	return &Page{source: source}
}

// Navigate loads url from the source.
func (p *Page) Navigate(ctx context.Context, url string) error {
	html, err := p.source.Load(ctx, url)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return fmt.Errorf("parse %s: %w", url, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc = doc
	p.url = url
	p.visited = append(p.visited, url)
	return nil
}

// WaitFor reports immediately: static documents never change.
func (p *Page) WaitFor(ctx context.Context, selector string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("wait for %q: %w", selector, err)
	}
	doc := p.document()
	if doc == nil || doc.Find(selector).Length() == 0 {
		return browser.ErrElementNotFound
	}
	return nil
}

// FindAll returns every element matching selector in document order.
func (p *Page) FindAll(ctx context.Context, selector string) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("find %q: %w", selector, err)
	}
	doc := p.document()
	if doc == nil {
		return nil, nil
	}
	return wrap(doc.Find(selector)), nil
}

// FindAllWithin returns descendants of parent matching selector.
func (p *Page) FindAllWithin(ctx context.Context, parent browser.Element, selector string) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("find %q: %w", selector, err)
	}
	el, err := unwrap(parent)
	if err != nil {
		return nil, err
	}
	return wrap(el.sel.Find(selector)), nil
}

// Attribute reads a raw attribute value.
func (p *Page) Attribute(_ context.Context, el browser.Element, name string) (string, bool, error) {
	e, err := unwrap(el)
	if err != nil {
		return "", false, err
	}
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

// VisibleText returns the element's text.
func (p *Page) VisibleText(_ context.Context, el browser.Element) (string, error) {
	e, err := unwrap(el)
	if err != nil {
		return "", err
	}
	return e.sel.Text(), nil
}

// Evaluate runs one of the browser package's known element functions.
func (p *Page) Evaluate(ctx context.Context, el browser.Element, fn string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("evaluate: %w", err)
	}
	e, err := unwrap(el)
	if err != nil {
		return "", err
	}
	switch fn {
	case browser.TextContentScript, browser.InnerTextScript:
		return e.sel.Text(), nil
	case browser.ClickScript:
		p.mu.Lock()
		p.clicks = append(p.clicks, e.Describe())
		p.mu.Unlock()
		return "", nil
	case browser.ScrollIntoViewScript:
		p.mu.Lock()
		p.scrolls = append(p.scrolls, e.Describe())
		p.mu.Unlock()
		return "", nil
	default:
		return "", browser.ErrUnsupportedScript
	}
}

// ScrollIntoView records the scroll.
func (p *Page) ScrollIntoView(ctx context.Context, el browser.Element) error {
	_, err := p.Evaluate(ctx, el, browser.ScrollIntoViewScript)
	return err
}

// ScrollWindowBy records the window scroll offset.
func (p *Page) ScrollWindowBy(_ context.Context, dx, dy int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scrolls = append(p.scrolls, fmt.Sprintf("window(%d,%d)", dx, dy))
	return nil
}

// ClickViaScript records the click.
func (p *Page) ClickViaScript(ctx context.Context, el browser.Element) error {
	_, err := p.Evaluate(ctx, el, browser.ClickScript)
	return err
}

// Close counts the release; the page stays usable for inspection.
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closures++
	return nil
}

// URL returns the currently loaded URL.
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// Visited lists every URL navigated to, in order.
func (p *Page) Visited() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.visited...)
}

// Clicks lists the elements clicked via script.
func (p *Page) Clicks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

// Scrolls lists scroll actions, element and window.
func (p *Page) Scrolls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.scrolls...)
}

// Closures reports how many times Close was called.
func (p *Page) Closures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closures
}

func (p *Page) document() *goquery.Document {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc
}

func wrap(sel *goquery.Selection) []browser.Element {
	out := make([]browser.Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, element{sel: s})
	})
	return out
}

func unwrap(el browser.Element) (element, error) {
	e, ok := el.(element)
	if !ok || e.sel == nil {
		return element{}, browser.ErrForeignElement
	}
	return e, nil
}
