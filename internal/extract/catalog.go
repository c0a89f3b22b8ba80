package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/lore-crawler/internal/browser"
	"github.com/JakeFAU/lore-crawler/internal/crawler"
)

// CatalogExtractor reads the entity catalog page.
type CatalogExtractor struct {
	opts     Options
	resolver *Resolver
}

// NewCatalogExtractor builds a CatalogExtractor.
func NewCatalogExtractor(opts Options) *CatalogExtractor {
	opts = opts.withDefaults()
	return &CatalogExtractor{opts: opts, resolver: NewResolver(opts.Logger)}
}

// Extract returns the deduplicated catalog in page order. An empty slice with
// a nil error means the page loaded but no anchor tier matched.
func (c *CatalogExtractor) Extract(ctx context.Context, page browser.Page) ([]crawler.CatalogEntry, error) {
	logger := c.opts.Logger.With(zap.String("url", c.opts.CatalogURL))
	if err := page.Navigate(ctx, c.opts.CatalogURL); err != nil {
		return nil, fmt.Errorf("catalog: %w: %w", crawler.ErrNavigation, err)
	}
	c.opts.Pauser.Pause(ctx, c.opts.Timing.CatalogSettle)

	// The first tier with any anchors wins, even if filtering empties it.
	sel := c.opts.Selectors.Catalog
	anchors, err := c.resolver.Resolve(ctx, page, "catalog.anchors", sel.Anchors, c.opts.Timing.CatalogWait)
	if errors.Is(err, ErrNotFound) {
		logger.Warn("No catalog anchors matched any selector tier")
		return []crawler.CatalogEntry{}, nil
	}
	if err != nil {
		return nil, err
	}

	entries := make([]crawler.CatalogEntry, 0, len(anchors))
	seen := make(map[string]struct{}, len(anchors))
	for _, anchor := range anchors {
		if err := ctx.Err(); err != nil {
			return entries, fmt.Errorf("catalog: %w", err)
		}
		entry, ok := c.entryFor(ctx, page, anchor)
		if !ok {
			continue
		}
		if _, dup := seen[entry.Name]; dup {
			logger.Debug("Skipping duplicate catalog entry", zap.String("name", entry.Name))
			continue
		}
		seen[entry.Name] = struct{}{}
		entries = append(entries, entry)
	}
	logger.Info("Catalog extracted", zap.Int("anchors", len(anchors)), zap.Int("entries", len(entries)))
	return entries, nil
}

func (c *CatalogExtractor) entryFor(ctx context.Context, page browser.Page, anchor browser.Element) (crawler.CatalogEntry, bool) {
	raw, ok, err := page.Attribute(ctx, anchor, "href")
	if err != nil || !ok {
		return crawler.CatalogEntry{}, false
	}
	href, err := crawler.ResolveHref(c.opts.CatalogURL, raw)
	if err != nil || !crawler.SameOrigin(c.opts.CatalogURL, href) {
		return crawler.CatalogEntry{}, false
	}
	sel := c.opts.Selectors.Catalog
	name := strings.ToUpper(childText(ctx, page, anchor, sel.Name))
	if name == "" {
		return crawler.CatalogEntry{}, false
	}
	return crawler.CatalogEntry{
		Name:      name,
		Category:  childText(ctx, page, anchor, sel.Category),
		DetailURL: href,
	}, true
}

// childText returns the visible text of the first descendant of parent
// matching selector, or "" when there is none.
func childText(ctx context.Context, page browser.Page, parent browser.Element, selector string) string {
	if selector == "" {
		return ""
	}
	children, err := page.FindAllWithin(ctx, parent, selector)
	if err != nil || len(children) == 0 {
		return ""
	}
	text, err := browser.ReadText(ctx, page, children[0], false)
	if err != nil {
		return ""
	}
	return text
}
