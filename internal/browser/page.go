// Package browser defines the page client the extractors drive, plus the
// helpers shared by its chromedp, rod and static (replay) implementations.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrElementNotFound is returned by WaitFor when no element matched before the timeout.
	ErrElementNotFound = errors.New("element not found")
	// ErrUnsupportedScript is returned by drivers that cannot run arbitrary scripts.
	ErrUnsupportedScript = errors.New("script not supported by driver")
	// ErrForeignElement is returned when an element handle came from a different driver.
	ErrForeignElement = errors.New("element handle belongs to another driver")
)

// In-page functions understood by every driver. They run with `this` bound to the element.
const (
	TextContentScript    = `function() { return this.textContent || ""; }`
	InnerTextScript      = `function() { return this.innerText || this.textContent || ""; }`
	ClickScript          = `function() { this.click(); return ""; }`
	ScrollIntoViewScript = `function() { this.scrollIntoView({block: "center", inline: "nearest"}); return ""; }`
)

// Element is a handle to a node on the currently loaded page. Handles become
// invalid after the next navigation.
type Element interface {
	// Describe returns a short label for logs.
	Describe() string
}

// Page is a single browser tab. Implementations are not safe for concurrent use.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// WaitFor blocks until selector matches at least one element, returning
	// ErrElementNotFound once timeout elapses.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	FindAll(ctx context.Context, selector string) ([]Element, error)
	FindAllWithin(ctx context.Context, parent Element, selector string) ([]Element, error)
	// Attribute reports the attribute value and whether it was present.
	Attribute(ctx context.Context, el Element, name string) (string, bool, error)
	VisibleText(ctx context.Context, el Element) (string, error)
	// Evaluate calls fn with `this` bound to el and returns its string result.
	Evaluate(ctx context.Context, el Element, fn string) (string, error)
	ScrollIntoView(ctx context.Context, el Element) error
	ScrollWindowBy(ctx context.Context, dx, dy int) error
	ClickViaScript(ctx context.Context, el Element) error
	Close() error
}

// Opener acquires a page for one run. The caller owns the page and closes it.
type Opener func(ctx context.Context) (Page, error)

// ReadText returns the trimmed text of el. With preferScript set it reads
// textContent through an in-page script and only falls back to the driver's
// visible text when the script fails.
func ReadText(ctx context.Context, p Page, el Element, preferScript bool) (string, error) {
	if preferScript {
		text, err := p.Evaluate(ctx, el, TextContentScript)
		if err == nil {
			return strings.TrimSpace(text), nil
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("evaluate text: %w", err)
		}
	}
	text, err := p.VisibleText(ctx, el)
	if err != nil {
		return "", fmt.Errorf("read visible text: %w", err)
	}
	return strings.TrimSpace(text), nil
}
