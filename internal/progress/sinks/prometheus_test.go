package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/lore-crawler/internal/crawler"
	"github.com/JakeFAU/lore-crawler/internal/progress"
)

func TestPrometheusSinkRecordsRun(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	now := time.Now()
	batch := []progress.Event{
		{RunID: "r", TS: now, Kind: progress.KindRunStart},
		{RunID: "r", TS: now, Kind: progress.KindCatalog, CatalogSize: 2},
		{RunID: "r", TS: now, Kind: progress.KindEntityState, Entity: "JINX", State: crawler.StateSeeded},
		{RunID: "r", TS: now, Kind: progress.KindEntityState, Entity: "JINX", State: crawler.StateRecorded},
		{RunID: "r", TS: now, Kind: progress.KindCheckpoint, Recorded: 1},
		{RunID: "r", TS: now, Kind: progress.KindRunDone, Recorded: 1, Interrupted: true, Dur: 90 * time.Second},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsStarted))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsRunning))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("interrupted")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.recordedGauge))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.transitions.WithLabelValues(string(crawler.StateRecorded))))
	require.Equal(t, 1, testutil.CollectAndCount(sink.runDuration, "lore_run_duration_seconds"))
}

func TestPrometheusSinkRejectsDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
