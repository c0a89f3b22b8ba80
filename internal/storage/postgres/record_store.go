// Package postgres mirrors recorded entities into a Postgres table.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/lore-crawler/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for entity rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Ping(context.Context) error
	Close()
}

// RecordStore upserts entity records keyed by (run_id, position). It
// satisfies crawler.ResultStore: each checkpoint writes the newest record and
// the final save rewrites the whole run.
type RecordStore struct {
	pool  execCloser
	table string
	runID string
	clock crawler.Clock
}

// NewRecordStore connects to Postgres and returns a store for runID.
func NewRecordStore(ctx context.Context, cfg Config, runID string, clock crawler.Clock) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewRecordStoreWithPool(pool, cfg.Table, runID, clock)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewRecordStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRecordStoreWithPool(pool execCloser, table, runID string, clock crawler.Clock) (*RecordStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "lore_entities"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	return &RecordStore{pool: pool, table: table, runID: runID, clock: clock}, nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks that the database is reachable.
func (s *RecordStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// EnsureSchema creates the entity table when it does not exist yet.
func (s *RecordStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id             TEXT        NOT NULL,
	position           INTEGER     NOT NULL,
	name               TEXT        NOT NULL,
	category           TEXT        NOT NULL DEFAULT '',
	detail_url         TEXT        NOT NULL DEFAULT '',
	role               TEXT        NOT NULL DEFAULT '',
	subtype            TEXT        NOT NULL DEFAULT '',
	tagline            TEXT        NOT NULL DEFAULT '',
	short_description  TEXT        NOT NULL DEFAULT '',
	related_names      TEXT[]      NOT NULL DEFAULT '{}',
	biography_url      TEXT        NOT NULL DEFAULT '',
	story_url          TEXT        NOT NULL DEFAULT '',
	extended_biography TEXT        NOT NULL DEFAULT '',
	extended_story     TEXT        NOT NULL DEFAULT '',
	recorded_at        TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, position)
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// WriteCheckpoint upserts the most recently recorded entity.
func (s *RecordStore) WriteCheckpoint(ctx context.Context, result *crawler.RunResult) error {
	n := result.Len()
	if n == 0 {
		return nil
	}
	return s.upsert(ctx, n-1, result.Records()[n-1])
}

// WriteFinal upserts every recorded entity.
func (s *RecordStore) WriteFinal(ctx context.Context, result *crawler.RunResult) error {
	for i, rec := range result.Records() {
		if err := s.upsert(ctx, i, rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *RecordStore) upsert(ctx context.Context, position int, rec crawler.EntityRecord) error {
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	position,
	name,
	category,
	detail_url,
	role,
	subtype,
	tagline,
	short_description,
	related_names,
	biography_url,
	story_url,
	extended_biography,
	extended_story,
	recorded_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
)
ON CONFLICT (run_id, position) DO UPDATE SET
	name = EXCLUDED.name,
	category = EXCLUDED.category,
	detail_url = EXCLUDED.detail_url,
	role = EXCLUDED.role,
	subtype = EXCLUDED.subtype,
	tagline = EXCLUDED.tagline,
	short_description = EXCLUDED.short_description,
	related_names = EXCLUDED.related_names,
	biography_url = EXCLUDED.biography_url,
	story_url = EXCLUDED.story_url,
	extended_biography = EXCLUDED.extended_biography,
	extended_story = EXCLUDED.extended_story,
	recorded_at = EXCLUDED.recorded_at`, s.table)

	args := []any{
		s.runID,
		position,
		rec.Name,
		rec.Category,
		rec.DetailURL,
		rec.Role,
		rec.Subtype,
		rec.Tagline,
		rec.ShortDescription,
		rec.RelatedNames,
		rec.BiographyURL,
		rec.StoryURL,
		rec.ExtendedBiography,
		rec.ExtendedStory,
		s.clock.Now(),
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert entity %s: %w", rec.Name, err)
	}
	return nil
}
