package crawler

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases name and strips every character outside [a-z0-9].
func Slug(name string) string {
	return nonSlugChars.ReplaceAllString(strings.ToLower(name), "")
}

// BiographyFallbackURL builds the conventional biography page location for name.
func BiographyFallbackURL(base, name string) string {
	return strings.TrimRight(base, "/") + "/story/champion/" + Slug(name) + "/"
}

// StoryFallbackURL builds the conventional story page location for name.
func StoryFallbackURL(base, name string) string {
	return strings.TrimRight(base, "/") + "/story/" + Slug(name) + "-color-story/"
}

// ResolveHref turns an anchor href into an absolute URL relative to pageURL.
// Empty hrefs and javascript: links are rejected.
func ResolveHref(pageURL, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return "", fmt.Errorf("unusable href %q", href)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse href: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// SameOrigin reports whether rawURL shares scheme and host with site.
func SameOrigin(site, rawURL string) bool {
	a, err := url.Parse(site)
	if err != nil {
		return false
	}
	b, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if a.Host == "" || b.Host == "" {
		return false
	}
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(a.Host, b.Host)
}
