package orchestrator

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/lore-crawler/internal/crawler"
	"github.com/JakeFAU/lore-crawler/internal/metrics"
	"github.com/JakeFAU/lore-crawler/internal/progress"
)

// processEntity walks one entity from SEEDED to STORIED. A failed stage keeps
// its defaults, so a failed detail page leaves no biography URL and a failed
// biography page leaves no story URL. The boolean is false when ctx was
// cancelled before the entity finished, in which case the record is dropped.
func (r *run) processEntity(ctx context.Context, pos int, entry crawler.CatalogEntry) (crawler.EntityRecord, bool) {
	ctx, span := r.tracer.Start(ctx, "lore.entity", trace.WithAttributes(
		attribute.String("entity.name", entry.Name),
		attribute.Int("entity.position", pos),
	))
	defer span.End()

	logger := r.logger.With(zap.String("entity", entry.Name), zap.Int("position", pos))
	logger.Info("Processing entity", zap.Int("of", r.summary.CatalogSize), zap.String("url", entry.DetailURL))

	rec := crawler.NewEntityRecord(entry)
	r.transition(rec.Name, pos, crawler.StateSeeded)
	failures := 0

	err := r.stage(ctx, crawler.StageDetail, func(ctx context.Context) error {
		details, err := r.detail.Extract(ctx, r.page, entry)
		rec.ApplyDetails(details)
		return err
	})
	if ctx.Err() != nil {
		return rec, false
	}
	if err != nil {
		r.stageFailed(logger, rec.Name, pos, crawler.StageDetail, err)
		failures++
	}
	r.transition(rec.Name, pos, crawler.StateDetailed)

	if rec.BiographyURL == "" {
		logger.Warn("No biography URL, skipping biography stage")
	} else {
		err = r.stage(ctx, crawler.StageBiography, func(ctx context.Context) error {
			h, err := r.harvester.Harvest(ctx, r.page, rec.BiographyURL, crawler.StageBiography)
			if err != nil {
				return err
			}
			rec.ExtendedBiography = h.Text
			rec.StoryURL = r.stories.Resolve(ctx, r.page, rec.Name, rec.BiographyURL)
			return nil
		})
		if ctx.Err() != nil {
			return rec, false
		}
		if err != nil {
			r.stageFailed(logger, rec.Name, pos, crawler.StageBiography, err)
			failures++
		}
	}
	r.transition(rec.Name, pos, crawler.StateBiographied)

	switch {
	case rec.StoryURL == "":
		logger.Debug("No story URL, skipping story stage")
	case !crawler.SameOrigin(r.siteBase, rec.StoryURL):
		logger.Warn("Story URL is off-site, skipping story stage", zap.String("url", rec.StoryURL))
	default:
		err = r.stage(ctx, crawler.StageStory, func(ctx context.Context) error {
			h, err := r.harvester.Harvest(ctx, r.page, rec.StoryURL, crawler.StageStory)
			if err != nil {
				return err
			}
			rec.ExtendedStory = h.Text
			return nil
		})
		if ctx.Err() != nil {
			return rec, false
		}
		if err != nil {
			r.stageFailed(logger, rec.Name, pos, crawler.StageStory, err)
			failures++
		}
	}
	r.transition(rec.Name, pos, crawler.StateStoried)

	outcome := "complete"
	if failures > 0 {
		outcome = "partial"
	}
	metrics.ObserveEntity(outcome)
	span.SetAttributes(attribute.String("entity.outcome", outcome))
	logger.Info("Entity finished",
		zap.String("outcome", outcome),
		zap.Int("biography_chars", len(rec.ExtendedBiography)),
		zap.Int("story_chars", len(rec.ExtendedStory)),
	)
	return rec, true
}

// stage runs fn inside a child span named after the stage.
func (r *run) stage(ctx context.Context, stage crawler.Stage, fn func(context.Context) error) error {
	ctx, span := r.tracer.Start(ctx, "lore.stage."+string(stage))
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (r *run) stageFailed(logger *zap.Logger, name string, pos int, stage crawler.Stage, err error) {
	r.summary.StageFailures[stage]++
	metrics.ObserveStageFailure(string(stage))
	logger.Warn("Stage failed, keeping defaults", zap.String("stage", string(stage)), zap.Error(err))
	r.emit(progress.Event{
		Kind:     progress.KindStageFailed,
		Entity:   name,
		Position: pos,
		Stage:    stage,
		Note:     err.Error(),
	})
}
