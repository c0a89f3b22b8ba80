package sinks

import (
	"context"
	"sync"
	"time"

	"github.com/JakeFAU/lore-crawler/internal/progress"
)

// Run statuses reported by Snapshot.
const (
	StatusIdle        = "idle"
	StatusRunning     = "running"
	StatusDone        = "done"
	StatusInterrupted = "interrupted"
	StatusError       = "error"
)

// Snapshot is the live view of a run served by the ops API.
type Snapshot struct {
	RunID            string         `json:"run_id,omitempty"`
	Status           string         `json:"status"`
	CatalogSize      int            `json:"catalog_size"`
	Recorded         int            `json:"recorded"`
	CurrentEntity    string         `json:"current_entity,omitempty"`
	CurrentPosition  int            `json:"current_position,omitempty"`
	CurrentState     string         `json:"current_state,omitempty"`
	StageFailures    map[string]int `json:"stage_failures"`
	StartedAt        *time.Time     `json:"started_at,omitempty"`
	LastCheckpointAt *time.Time     `json:"last_checkpoint_at,omitempty"`
	UpdatedAt        *time.Time     `json:"updated_at,omitempty"`
	Error            string         `json:"error,omitempty"`
}

// SnapshotSink folds events into the latest Snapshot.
type SnapshotSink struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewSnapshotSink returns an idle SnapshotSink.
func NewSnapshotSink() *SnapshotSink {
	return &SnapshotSink{snap: Snapshot{Status: StatusIdle, StageFailures: map[string]int{}}}
}

// Consume applies batch to the snapshot.
func (s *SnapshotSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		s.apply(evt)
	}
	return nil
}

func (s *SnapshotSink) apply(evt progress.Event) {
	ts := evt.TS
	if evt.Kind == progress.KindRunStart {
		s.snap = Snapshot{
			RunID:         evt.RunID,
			Status:        StatusRunning,
			StageFailures: map[string]int{},
			StartedAt:     &ts,
		}
	}
	if evt.RunID != s.snap.RunID {
		return
	}
	s.snap.UpdatedAt = &ts
	switch evt.Kind {
	case progress.KindCatalog:
		s.snap.CatalogSize = evt.CatalogSize
	case progress.KindEntityState:
		s.snap.CurrentEntity = evt.Entity
		s.snap.CurrentPosition = evt.Position
		s.snap.CurrentState = string(evt.State)
	case progress.KindStageFailed:
		s.snap.StageFailures[string(evt.Stage)]++
	case progress.KindCheckpoint:
		s.snap.Recorded = evt.Recorded
		s.snap.LastCheckpointAt = &ts
	case progress.KindRunDone:
		s.snap.Status = StatusDone
		if evt.Interrupted {
			s.snap.Status = StatusInterrupted
		}
		s.snap.Recorded = evt.Recorded
	case progress.KindRunError:
		s.snap.Status = StatusError
		s.snap.Recorded = evt.Recorded
		s.snap.Error = evt.Note
	}
}

// Snapshot returns a copy of the latest view.
func (s *SnapshotSink) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.snap
	out.StageFailures = make(map[string]int, len(s.snap.StageFailures))
	for k, v := range s.snap.StageFailures {
		out.StageFailures[k] = v
	}
	return out
}

// Close implements the Sink interface; the snapshot stays readable.
func (s *SnapshotSink) Close(context.Context) error {
	return nil
}
