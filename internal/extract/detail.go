package extract

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/lore-crawler/internal/browser"
	"github.com/JakeFAU/lore-crawler/internal/crawler"
)

// DetailExtractor reads the fixed fields of an entity's detail page and works
// out where its biography lives.
type DetailExtractor struct {
	opts     Options
	resolver *Resolver
}

// NewDetailExtractor builds a DetailExtractor.
func NewDetailExtractor(opts Options) *DetailExtractor {
	opts = opts.withDefaults()
	return &DetailExtractor{opts: opts, resolver: NewResolver(opts.Logger)}
}

// Extract loads entry's detail page and reads each field independently. When
// the page fails to load, the error is returned with empty Details and no
// biography URL. A loaded page with no biography link gets the constructed
// fallback.
func (d *DetailExtractor) Extract(ctx context.Context, page browser.Page, entry crawler.CatalogEntry) (crawler.Details, error) {
	details := crawler.Details{RelatedNames: []string{}}
	logger := d.opts.Logger.With(zap.String("entity", entry.Name), zap.String("stage", string(crawler.StageDetail)))

	if err := loadPage(ctx, page, d.opts, entry.DetailURL, d.opts.Selectors.Detail.Body, crawler.StageDetail); err != nil {
		return details, err
	}

	sel := d.opts.Selectors.Detail
	details.Role = d.field(ctx, page, logger, "detail.role", sel.Role, d.opts.Timing.RoleWait)
	details.Subtype = d.field(ctx, page, logger, "detail.subtype", sel.Subtype, 0)
	details.Tagline = d.field(ctx, page, logger, "detail.tagline", sel.Tagline, 0)
	details.ShortDescription = d.shortDescription(ctx, page, logger)
	details.RelatedNames = d.relatedNames(ctx, page, logger)
	details.BiographyURL = d.biographyURL(ctx, page, logger, entry)
	return details, nil
}

// field returns the trimmed visible text of the first match, or "".
func (d *DetailExtractor) field(
	ctx context.Context,
	page browser.Page,
	logger *zap.Logger,
	target string,
	candidates Candidates,
	wait time.Duration,
) string {
	el, err := d.resolver.First(ctx, page, target, candidates, wait)
	if err != nil {
		logFieldMiss(logger, target, err)
		return ""
	}
	text, err := browser.ReadText(ctx, page, el, false)
	if err != nil {
		logger.Warn("Failed to read field text", zap.String("field", target), zap.Error(err))
		return ""
	}
	return text
}

func (d *DetailExtractor) shortDescription(ctx context.Context, page browser.Page, logger *zap.Logger) string {
	sel := d.opts.Selectors.Detail
	if text := d.field(ctx, page, logger, "detail.short_description", sel.ShortDescription, 0); text != "" {
		return text
	}
	container := d.field(ctx, page, logger, "detail.short_description_container", sel.ShortDescriptionContainer, 0)
	return firstLine(container)
}

func (d *DetailExtractor) relatedNames(ctx context.Context, page browser.Page, logger *zap.Logger) []string {
	names := []string{}
	elems, err := d.resolver.Resolve(ctx, page, "detail.related_names", d.opts.Selectors.Detail.RelatedNames, d.opts.Timing.RelatedWait)
	if err != nil {
		logFieldMiss(logger, "detail.related_names", err)
		return names
	}
	seen := make(map[string]struct{}, len(elems))
	for _, el := range elems {
		name, err := browser.ReadText(ctx, page, el, true)
		if err != nil {
			logger.Debug("Failed to read related name", zap.String("element", el.Describe()), zap.Error(err))
			continue
		}
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

func (d *DetailExtractor) biographyURL(ctx context.Context, page browser.Page, logger *zap.Logger, entry crawler.CatalogEntry) string {
	links := d.opts.Selectors.Links
	query := links.LabelledAnchor + ", a[href*='" + links.BiographyMarker + "']"
	matches := findLinks(ctx, page, entry.DetailURL, query, links.Label, links.BiographyLabels,
		func(href string) bool { return strings.Contains(href, links.BiographyMarker) })

	if href := pickLink(matches, func(href string) bool {
		return strings.Contains(href, links.BiographyMarker)
	}); href != "" {
		return href
	}
	fallback := crawler.BiographyFallbackURL(d.opts.SiteBase, entry.Name)
	logger.Warn("No biography link found, using constructed URL", zap.String("url", fallback))
	return fallback
}

// firstLine returns the first non-blank line of text.
func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

func logFieldMiss(logger *zap.Logger, field string, err error) {
	if errors.Is(err, ErrNotFound) {
		logger.Debug("Field absent", zap.String("field", field))
		return
	}
	logger.Warn("Field lookup failed", zap.String("field", field), zap.Error(err))
}
