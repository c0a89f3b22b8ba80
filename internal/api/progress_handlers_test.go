package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/lore-crawler/internal/crawler"
	"github.com/JakeFAU/lore-crawler/internal/progress"
	"github.com/JakeFAU/lore-crawler/internal/progress/sinks"
)

func TestProgressHandlerServesSnapshotSink(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	sink := sinks.NewSnapshotSink()
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: "run-7", TS: ts, Kind: progress.KindRunStart},
		{RunID: "run-7", TS: ts, Kind: progress.KindCatalog, CatalogSize: 2},
		{RunID: "run-7", TS: ts, Kind: progress.KindStageFailed, Entity: "Jinx", Position: 1, Stage: crawler.StageBiography},
		{RunID: "run-7", TS: ts, Kind: progress.KindCheckpoint, Recorded: 1},
		{RunID: "run-7", TS: ts, Kind: progress.KindEntityState, Entity: "Vi", Position: 2, State: crawler.StateDetailed},
	}))

	handler := NewProgressHandler(sink, zap.NewNop())
	rec := httptest.NewRecorder()
	handler.GetProgress(rec, httptest.NewRequest(http.MethodGet, "/v1/progress", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp struct {
		Progress sinks.Snapshot `json:"progress"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	got := resp.Progress
	require.Equal(t, "run-7", got.RunID)
	require.Equal(t, sinks.StatusRunning, got.Status)
	require.Equal(t, 2, got.CatalogSize)
	require.Equal(t, 1, got.Recorded)
	require.Equal(t, "Vi", got.CurrentEntity)
	require.Equal(t, 2, got.CurrentPosition)
	require.Equal(t, string(crawler.StateDetailed), got.CurrentState)
	require.Equal(t, map[string]int{string(crawler.StageBiography): 1}, got.StageFailures)
	require.NotNil(t, got.LastCheckpointAt)
	require.True(t, got.LastCheckpointAt.Equal(ts))
}

func TestProgressHandlerIdleBeforeRun(t *testing.T) {
	t.Parallel()

	handler := NewProgressHandler(sinks.NewSnapshotSink(), nil)
	rec := httptest.NewRecorder()
	handler.GetProgress(rec, httptest.NewRequest(http.MethodGet, "/v1/progress", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"progress":{"status":"idle","catalog_size":0,"recorded":0,"stage_failures":{}}}`, rec.Body.String())
}

func TestProgressHandlerWithoutSource(t *testing.T) {
	t.Parallel()

	handler := NewProgressHandler(nil, zap.NewNop())
	rec := httptest.NewRecorder()
	handler.GetProgress(rec, httptest.NewRequest(http.MethodGet, "/v1/progress", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.JSONEq(t, `{"error":"progress tracking unavailable"}`, rec.Body.String())
}
