package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/lore-crawler/internal/crawler"
	"github.com/JakeFAU/lore-crawler/internal/progress"
)

func TestSnapshotSinkTracksRun(t *testing.T) {
	t.Parallel()

	sink := NewSnapshotSink()
	require.Equal(t, StatusIdle, sink.Snapshot().Status)

	now := time.Unix(1700000000, 0).UTC()
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: "r1", TS: now, Kind: progress.KindRunStart},
		{RunID: "r1", TS: now, Kind: progress.KindCatalog, CatalogSize: 3},
		{RunID: "r1", TS: now, Kind: progress.KindEntityState, Entity: "JINX", Position: 1, State: crawler.StateDetailed},
		{RunID: "r1", TS: now, Kind: progress.KindStageFailed, Entity: "JINX", Stage: crawler.StageStory},
		{RunID: "r1", TS: now.Add(time.Second), Kind: progress.KindCheckpoint, Recorded: 1},
		{RunID: "stale", TS: now, Kind: progress.KindCheckpoint, Recorded: 99},
	}))

	snap := sink.Snapshot()
	require.Equal(t, "r1", snap.RunID)
	require.Equal(t, StatusRunning, snap.Status)
	require.Equal(t, 3, snap.CatalogSize)
	require.Equal(t, 1, snap.Recorded)
	require.Equal(t, "JINX", snap.CurrentEntity)
	require.Equal(t, string(crawler.StateDetailed), snap.CurrentState)
	require.Equal(t, map[string]int{"story": 1}, snap.StageFailures)
	require.Equal(t, now.Add(time.Second), *snap.LastCheckpointAt)

	snap.StageFailures["story"] = 42
	require.Equal(t, 1, sink.Snapshot().StageFailures["story"])

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: "r1", TS: now, Kind: progress.KindRunDone, Recorded: 1, Interrupted: true},
	}))
	require.Equal(t, StatusInterrupted, sink.Snapshot().Status)
}

func TestSnapshotSinkRunError(t *testing.T) {
	t.Parallel()

	sink := NewSnapshotSink()
	now := time.Now()
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: "r1", TS: now, Kind: progress.KindRunStart},
		{RunID: "r1", TS: now, Kind: progress.KindRunError, Note: "catalog unavailable"},
	}))
	snap := sink.Snapshot()
	require.Equal(t, StatusError, snap.Status)
	require.Equal(t, "catalog unavailable", snap.Error)
}
