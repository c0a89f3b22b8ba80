// Package orchestrator drives one crawl run: it reads the catalog, walks every
// entity through the detail, biography and story stages on a single page, and
// persists the growing result after each recorded entity.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/lore-crawler/internal/browser"
	"github.com/JakeFAU/lore-crawler/internal/crawler"
	"github.com/JakeFAU/lore-crawler/internal/extract"
	"github.com/JakeFAU/lore-crawler/internal/metrics"
	"github.com/JakeFAU/lore-crawler/internal/progress"
)

// ErrCatalogUnavailable is returned when the catalog page yields no entities.
var ErrCatalogUnavailable = errors.New("catalog unavailable")

const tracerName = "github.com/JakeFAU/lore-crawler/internal/orchestrator"

// Config controls run-level behavior.
type Config struct {
	// RunID pins the run id, for collaborators built per run. Empty means
	// one is generated on every Run.
	RunID string
	// Limit caps how many catalog entries are processed. Zero means all.
	Limit int
	// Pacing is the pause drawn before every entity except the first.
	Pacing crawler.Window
}

// DefaultConfig returns the production pacing with no limit.
func DefaultConfig() Config {
	return Config{
		Pacing: crawler.Window{Min: 1500 * time.Millisecond, Max: 3500 * time.Millisecond},
	}
}

// Deps are the collaborators a run needs.
type Deps struct {
	Open    browser.Opener
	Store   crawler.ResultStore
	Extract extract.Options
	Events  progress.Emitter
	Clock   crawler.Clock
	IDs     crawler.IDGenerator
	Logger  *zap.Logger
}

// Summary describes how a run ended.
type Summary struct {
	RunID         string
	CatalogSize   int
	Recorded      int
	StageFailures map[crawler.Stage]int
	// CheckpointFailures counts checkpoints that could not be written.
	CheckpointFailures int
	Interrupted        bool
	FinalSaved         bool
	Started            time.Time
	Finished           time.Time
}

// Duration is the wall time of the run.
func (s Summary) Duration() time.Duration {
	return s.Finished.Sub(s.Started)
}

// Orchestrator runs the crawl pipeline. A single Orchestrator may run
// several times, but never concurrently.
type Orchestrator struct {
	cfg       Config
	siteBase  string
	open      browser.Opener
	store     crawler.ResultStore
	catalog   *extract.CatalogExtractor
	detail    *extract.DetailExtractor
	harvester *extract.Harvester
	stories   *extract.StoryLinkResolver
	pauser    crawler.Pauser
	events    progress.Emitter
	clock     crawler.Clock
	ids       crawler.IDGenerator
	logger    *zap.Logger
	tracer    trace.Tracer
}

// New validates deps and builds an Orchestrator.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Open == nil:
		return nil, errors.New("browser opener is required")
	case deps.Store == nil:
		return nil, errors.New("result store is required")
	case deps.Clock == nil:
		return nil, errors.New("clock is required")
	case deps.IDs == nil && cfg.RunID == "":
		return nil, errors.New("id generator is required")
	case deps.Extract.SiteBase == "":
		return nil, errors.New("site base is required")
	}
	if cfg.Limit < 0 {
		return nil, fmt.Errorf("limit must be >= 0, got %d", cfg.Limit)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Events == nil {
		deps.Events = progress.Discard
	}
	if deps.Extract.Pauser == nil {
		deps.Extract.Pauser = crawler.TimerPauser{}
	}
	if deps.Extract.Logger == nil {
		deps.Extract.Logger = deps.Logger
	}
	return &Orchestrator{
		cfg:       cfg,
		siteBase:  deps.Extract.SiteBase,
		open:      deps.Open,
		store:     deps.Store,
		catalog:   extract.NewCatalogExtractor(deps.Extract),
		detail:    extract.NewDetailExtractor(deps.Extract),
		harvester: extract.NewHarvester(deps.Extract),
		stories:   extract.NewStoryLinkResolver(deps.Extract),
		pauser:    deps.Extract.Pauser,
		events:    deps.Events,
		clock:     deps.Clock,
		ids:       deps.IDs,
		logger:    deps.Logger,
		tracer:    otel.Tracer(tracerName),
	}, nil
}

// run carries the state of one Run call.
type run struct {
	*Orchestrator
	id      string
	logger  *zap.Logger
	page    browser.Page
	result  crawler.RunResult
	summary Summary
}

// Run executes a full crawl. Cancelling ctx stops the run between stages:
// the entity in flight is discarded and every entity already recorded is
// still written by the final save. An interrupted run returns a nil error
// with Summary.Interrupted set.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	runID := o.cfg.RunID
	if runID == "" {
		id, err := o.ids.NewID()
		if err != nil {
			return Summary{}, fmt.Errorf("generate run id: %w", err)
		}
		runID = id
	}
	r := &run{
		Orchestrator: o,
		id:           runID,
		logger:       o.logger.With(zap.String("run_id", runID)),
		summary: Summary{
			RunID:         runID,
			StageFailures: map[crawler.Stage]int{},
			Started:       o.clock.Now(),
		},
	}

	ctx, span := o.tracer.Start(ctx, "lore.run", trace.WithAttributes(attribute.String("run.id", runID)))
	defer span.End()

	r.logger.Info("Crawl run starting", zap.String("site", o.siteBase), zap.Int("limit", o.cfg.Limit))
	r.emit(progress.Event{Kind: progress.KindRunStart, Note: o.siteBase})

	err := r.crawl(ctx)
	r.summary.Recorded = r.result.Len()
	if saveErr := r.saveFinal(ctx); saveErr != nil {
		err = errors.Join(err, saveErr)
	}
	r.summary.Finished = o.clock.Now()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Error("Crawl run failed", zap.Error(err), zap.Int("recorded", r.summary.Recorded))
		r.emit(progress.Event{
			Kind:     progress.KindRunError,
			Recorded: r.summary.Recorded,
			Dur:      r.summary.Duration(),
			Note:     err.Error(),
		})
		return r.summary, err
	}

	span.SetAttributes(
		attribute.Int("run.recorded", r.summary.Recorded),
		attribute.Bool("run.interrupted", r.summary.Interrupted),
	)
	r.logger.Info("Crawl run finished",
		zap.Int("catalog", r.summary.CatalogSize),
		zap.Int("recorded", r.summary.Recorded),
		zap.Bool("interrupted", r.summary.Interrupted),
		zap.Duration("duration", r.summary.Duration()),
	)
	r.emit(progress.Event{
		Kind:        progress.KindRunDone,
		Recorded:    r.summary.Recorded,
		Dur:         r.summary.Duration(),
		Interrupted: r.summary.Interrupted,
	})
	return r.summary, nil
}

// crawl owns the page for the whole run and releases it on every path.
func (r *run) crawl(ctx context.Context) error {
	page, err := r.open(ctx)
	if err != nil {
		if ctx.Err() != nil {
			r.interrupt("browser start")
			return nil
		}
		return fmt.Errorf("open browser: %w", err)
	}
	r.page = page
	defer func() {
		if err := page.Close(); err != nil {
			r.logger.Warn("Failed to release browser", zap.Error(err))
		}
	}()

	entries, err := r.catalog.Extract(ctx, page)
	if ctx.Err() != nil {
		r.interrupt("catalog")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	if len(entries) == 0 {
		return ErrCatalogUnavailable
	}
	if r.cfg.Limit > 0 && len(entries) > r.cfg.Limit {
		entries = entries[:r.cfg.Limit]
	}
	r.summary.CatalogSize = len(entries)
	metrics.SetCatalogEntries(len(entries))
	r.emit(progress.Event{Kind: progress.KindCatalog, CatalogSize: len(entries)})

	for i, entry := range entries {
		if i > 0 {
			crawler.PauseWithin(ctx, r.pauser, r.cfg.Pacing)
		}
		if ctx.Err() != nil {
			r.interrupt("between entities")
			return nil
		}
		pos := i + 1
		rec, ok := r.processEntity(ctx, pos, entry)
		if !ok {
			metrics.ObserveEntity("discarded")
			r.logger.Info("Discarding unfinished entity", zap.String("entity", entry.Name), zap.Int("position", pos))
			r.interrupt("entity " + entry.Name)
			return nil
		}
		r.result.Append(rec)
		r.transition(rec.Name, pos, crawler.StateRecorded)
		r.checkpoint(ctx)
	}
	return nil
}

func (r *run) interrupt(where string) {
	r.summary.Interrupted = true
	r.logger.Warn("Crawl interrupted", zap.String("at", where), zap.Int("recorded", r.result.Len()))
}

// checkpoint persists the whole result so far. Failures are logged and the
// run carries on.
func (r *run) checkpoint(ctx context.Context) {
	start := r.clock.Now()
	if err := r.store.WriteCheckpoint(context.WithoutCancel(ctx), &r.result); err != nil {
		r.summary.CheckpointFailures++
		r.logger.Error("Checkpoint failed", zap.Int("recorded", r.result.Len()), zap.Error(err))
		return
	}
	r.emit(progress.Event{
		Kind:     progress.KindCheckpoint,
		Recorded: r.result.Len(),
		Dur:      nonNegative(r.clock.Now().Sub(start)),
	})
}

// saveFinal writes the final artifacts when at least one entity was recorded.
// It runs even after cancellation.
func (r *run) saveFinal(ctx context.Context) error {
	if r.result.Len() == 0 {
		r.logger.Warn("No entities recorded, skipping final save")
		return nil
	}
	if err := r.store.WriteFinal(context.WithoutCancel(ctx), &r.result); err != nil {
		return fmt.Errorf("final save: %w", err)
	}
	r.summary.FinalSaved = true
	return nil
}

func (r *run) emit(evt progress.Event) {
	evt.RunID = r.id
	if evt.TS.IsZero() {
		evt.TS = r.clock.Now()
	}
	r.events.Emit(evt)
}

func (r *run) transition(name string, pos int, state crawler.EntityState) {
	r.emit(progress.Event{Kind: progress.KindEntityState, Entity: name, Position: pos, State: state})
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
