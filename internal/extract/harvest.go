package extract

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/lore-crawler/internal/browser"
	"github.com/JakeFAU/lore-crawler/internal/crawler"
)

// Harvester reads the paragraph body of biography and story pages.
type Harvester struct {
	opts     Options
	resolver *Resolver
}

// NewHarvester builds a Harvester.
func NewHarvester(opts Options) *Harvester {
	opts = opts.withDefaults()
	return &Harvester{opts: opts, resolver: NewResolver(opts.Logger)}
}

// Harvest loads url, triggers the reveal gesture when one is offered, and
// joins the non-empty paragraphs of the content container with a blank line.
// A missing container yields an empty Harvest and a nil error; only a failed
// load is reported, wrapped in crawler.ErrNavigation.
func (h *Harvester) Harvest(ctx context.Context, page browser.Page, url string, stage crawler.Stage) (crawler.Harvest, error) {
	sel := h.opts.Selectors.Content
	if err := loadPage(ctx, page, h.opts, url, sel.Body, stage); err != nil {
		return crawler.Harvest{}, err
	}
	logger := h.opts.Logger.With(zap.String("url", url), zap.String("stage", string(stage)))
	h.reveal(ctx, page, logger)

	containers, err := page.FindAll(ctx, sel.Container)
	if err != nil || len(containers) == 0 {
		logger.Warn("Content container not found", zap.String("selector", sel.Container), zap.Error(err))
		return crawler.Harvest{}, nil
	}
	paragraphs, err := page.FindAllWithin(ctx, containers[0], sel.Paragraph)
	if err != nil {
		logger.Warn("Paragraph lookup failed", zap.Error(err))
		return crawler.Harvest{}, nil
	}

	texts := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		text, err := browser.ReadText(ctx, page, p, true)
		if err != nil {
			logger.Debug("Failed to read paragraph", zap.String("element", p.Describe()), zap.Error(err))
			continue
		}
		if text != "" {
			texts = append(texts, text)
		}
	}
	logger.Debug("Harvested paragraphs", zap.Int("matched", len(paragraphs)), zap.Int("kept", len(texts)))
	return crawler.Harvest{Text: strings.Join(texts, "\n\n"), Paragraphs: len(paragraphs)}, nil
}

// reveal performs the scroll-to-begin gesture. Every failure is swallowed.
func (h *Harvester) reveal(ctx context.Context, page browser.Page, logger *zap.Logger) {
	t := h.opts.Timing
	trigger, err := h.resolver.First(ctx, page, "content.reveal_trigger", h.opts.Selectors.Content.RevealTrigger, t.RevealWait)
	if err != nil {
		logger.Debug("No reveal trigger on page", zap.Error(err))
		return
	}
	if err := page.ScrollIntoView(ctx, trigger); err != nil {
		logger.Debug("Reveal scroll failed", zap.Error(err))
		return
	}
	h.opts.Pauser.Pause(ctx, t.RevealPause)
	if err := page.ClickViaScript(ctx, trigger); err != nil {
		logger.Debug("Reveal click failed", zap.Error(err))
		return
	}
	if err := page.ScrollWindowBy(ctx, 0, t.RevealScrollY); err != nil {
		logger.Debug("Post-reveal scroll failed", zap.Error(err))
		return
	}
	h.opts.Pauser.Pause(ctx, t.PostRevealPause)
}
