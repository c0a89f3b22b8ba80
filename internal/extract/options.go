package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/lore-crawler/internal/browser"
	"github.com/JakeFAU/lore-crawler/internal/crawler"
	"github.com/JakeFAU/lore-crawler/internal/metrics"
)

// Timing holds every wait and pause the extractors use.
type Timing struct {
	CatalogSettle   time.Duration
	CatalogWait     time.Duration
	BodyWait        time.Duration
	Settle          crawler.Window
	RoleWait        time.Duration
	RelatedWait     time.Duration
	RevealWait      time.Duration
	RevealPause     time.Duration
	PostRevealPause time.Duration
	RevealScrollY   int
}

// DefaultTiming mirrors the pacing the site tolerates.
func DefaultTiming() Timing {
	return Timing{
		CatalogSettle:   5 * time.Second,
		CatalogWait:     10 * time.Second,
		BodyWait:        15 * time.Second,
		Settle:          crawler.Window{Min: time.Second, Max: 2 * time.Second},
		RoleWait:        5 * time.Second,
		RelatedWait:     3 * time.Second,
		RevealWait:      7 * time.Second,
		RevealPause:     time.Second,
		PostRevealPause: 500 * time.Millisecond,
		RevealScrollY:   150,
	}
}

// Options configures the extractors.
type Options struct {
	// SiteBase is the localized site root used for fallback URLs,
	// e.g. https://universe.leagueoflegends.com/en_US.
	SiteBase   string
	CatalogURL string
	Selectors  Selectors
	Timing     Timing
	Pauser     crawler.Pauser
	Logger     *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Pauser == nil {
		o.Pauser = crawler.TimerPauser{}
	}
	if o.CatalogURL == "" && o.SiteBase != "" {
		o.CatalogURL = strings.TrimRight(o.SiteBase, "/") + "/champions/"
	}
	return o
}

// loadPage navigates, waits for the body and lets client-side rendering settle.
func loadPage(ctx context.Context, page browser.Page, opts Options, rawURL, bodySel string, stage crawler.Stage) error {
	start := time.Now()
	if err := page.Navigate(ctx, rawURL); err != nil {
		return fmt.Errorf("%w: %w", crawler.ErrNavigation, err)
	}
	if err := page.WaitFor(ctx, bodySel, opts.Timing.BodyWait); err != nil {
		return fmt.Errorf("%w: body never appeared on %s: %w", crawler.ErrNavigation, rawURL, err)
	}
	metrics.ObserveNavigation(rawURL, string(stage), time.Since(start))
	crawler.PauseWithin(ctx, opts.Pauser, opts.Timing.Settle)
	return nil
}
