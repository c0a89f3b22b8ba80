package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/lore-crawler/internal/progress"
)

// PrometheusSink exports run-level collectors fed from progress events.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runsRunning   prometheus.Gauge
	runDuration   *prometheus.HistogramVec
	transitions   *prometheus.CounterVec
	recordedGauge prometheus.Gauge
}

// NewPrometheusSink registers the collectors against reg.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lore_runs_started_total",
			Help: "Crawl runs started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lore_runs_completed_total",
			Help: "Crawl runs finished, partitioned by result (success, interrupted, error).",
		}, []string{"result"}),
		runsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lore_runs_running",
			Help: "Crawl runs currently in progress.",
		}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lore_run_duration_seconds",
			Help:    "Wall time per finished run.",
			Buckets: []float64{30, 60, 300, 600, 1200, 1800, 3600, 7200},
		}, []string{"result"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lore_entity_transitions_total",
			Help: "Entity pipeline state transitions.",
		}, []string{"state"}),
		recordedGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lore_run_recorded_entities",
			Help: "Entities recorded by the current run as of the last checkpoint.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runsRunning,
		s.runDuration,
		s.transitions,
		s.recordedGauge,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Kind {
		case progress.KindRunStart:
			s.runsStarted.Inc()
			s.runsRunning.Inc()
			s.recordedGauge.Set(0)
		case progress.KindEntityState:
			s.transitions.WithLabelValues(string(evt.State)).Inc()
		case progress.KindCheckpoint:
			s.recordedGauge.Set(float64(evt.Recorded))
		case progress.KindRunDone, progress.KindRunError:
			s.finish(evt)
		}
	}
	return nil
}

func (s *PrometheusSink) finish(evt progress.Event) {
	result := "success"
	switch {
	case evt.Kind == progress.KindRunError:
		result = "error"
	case evt.Interrupted:
		result = "interrupted"
	}
	s.runsCompleted.WithLabelValues(result).Inc()
	s.runsRunning.Dec()
	s.recordedGauge.Set(float64(evt.Recorded))
	if evt.Dur > 0 {
		s.runDuration.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
