package extract

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/lore-crawler/internal/browser"
	"github.com/JakeFAU/lore-crawler/internal/crawler"
)

// StoryLinkResolver finds the extended-story link on a loaded biography page.
type StoryLinkResolver struct {
	opts Options
}

// NewStoryLinkResolver builds a StoryLinkResolver.
func NewStoryLinkResolver(opts Options) *StoryLinkResolver {
	return &StoryLinkResolver{opts: opts.withDefaults()}
}

// Resolve returns the story URL for name, falling back to the conventional
// location when the page offers no usable link. pageURL resolves relative
// hrefs and is normally the biography URL that was just loaded.
func (s *StoryLinkResolver) Resolve(ctx context.Context, page browser.Page, name, pageURL string) string {
	links := s.opts.Selectors.Links
	isStory := func(href string) bool {
		return strings.Contains(href, links.StoryMarker) && !strings.Contains(href, links.BiographyMarker)
	}
	query := links.LabelledAnchor + ", a[href*='" + links.StoryMarker + "']"
	if links.StorySuffix != "" {
		query += ", a[href*='" + links.StorySuffix + "']"
	}
	matches := findLinks(ctx, page, pageURL, query, links.Label, links.StoryLabels, func(href string) bool {
		return isStory(href) || (links.StorySuffix != "" && strings.Contains(href, links.StorySuffix))
	})
	if href := pickLink(matches, isStory); href != "" {
		return href
	}
	fallback := crawler.StoryFallbackURL(s.opts.SiteBase, name)
	s.opts.Logger.Warn("No story link found, using constructed URL",
		zap.String("entity", name),
		zap.String("url", fallback),
	)
	return fallback
}
