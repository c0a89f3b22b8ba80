package extract

import (
	"context"
	"strings"

	"github.com/JakeFAU/lore-crawler/internal/browser"
	"github.com/JakeFAU/lore-crawler/internal/crawler"
)

// findLinks returns the resolved hrefs of anchors matching query that either
// satisfy hrefMatch or wrap a caption containing one of labels. Order follows
// the document; an anchor without a usable href contributes "".
func findLinks(
	ctx context.Context,
	page browser.Page,
	pageURL string,
	query string,
	labelSel string,
	labels []string,
	hrefMatch func(string) bool,
) []string {
	anchors, err := page.FindAll(ctx, query)
	if err != nil {
		return nil
	}
	var matches []string
	for _, a := range anchors {
		href := ""
		if raw, ok, err := page.Attribute(ctx, a, "href"); err == nil && ok {
			if abs, err := crawler.ResolveHref(pageURL, raw); err == nil {
				href = abs
			}
		}
		if (href != "" && hrefMatch(href)) || hasCaption(ctx, page, a, labelSel, labels) {
			matches = append(matches, href)
		}
	}
	return matches
}

func hasCaption(ctx context.Context, page browser.Page, anchor browser.Element, labelSel string, labels []string) bool {
	if len(labels) == 0 {
		return false
	}
	captions, err := page.FindAllWithin(ctx, anchor, labelSel)
	if err != nil {
		return false
	}
	for _, c := range captions {
		text, err := browser.ReadText(ctx, page, c, false)
		if err != nil {
			continue
		}
		for _, label := range labels {
			if strings.Contains(text, label) {
				return true
			}
		}
	}
	return false
}

// pickLink prefers the first href satisfying preferred, then the first match.
// A found link always beats a constructed fallback; "" means none is usable.
func pickLink(matches []string, preferred func(string) bool) string {
	for _, href := range matches {
		if href != "" && preferred(href) {
			return href
		}
	}
	if len(matches) > 0 {
		return matches[0]
	}
	return ""
}
