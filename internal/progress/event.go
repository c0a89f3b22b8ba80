package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/lore-crawler/internal/crawler"
)

// Kind is the type of milestone an Event reports.
type Kind string

// Supported event kinds.
const (
	KindRunStart    Kind = "RUN_START"
	KindCatalog     Kind = "CATALOG"
	KindEntityState Kind = "ENTITY_STATE"
	KindStageFailed Kind = "STAGE_FAILED"
	KindCheckpoint  Kind = "CHECKPOINT"
	KindRunDone     Kind = "RUN_DONE"
	KindRunError    Kind = "RUN_ERROR"
)

// Event is one progress milestone of a crawl run.
type Event struct {
	RunID string
	TS    time.Time
	Kind  Kind
	// Entity and Position (1-based catalog index) scope entity events.
	Entity   string
	Position int
	State    crawler.EntityState
	Stage    crawler.Stage
	// CatalogSize is set on CATALOG; Recorded on CHECKPOINT and run completion.
	CatalogSize int
	Recorded    int
	Dur         time.Duration
	// Interrupted marks a RUN_DONE caused by cancellation.
	Interrupted bool
	Note        string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Kind {
	case KindRunStart, KindCatalog, KindCheckpoint, KindRunDone, KindRunError:
	case KindEntityState:
		if e.Entity == "" || e.State == "" {
			return errors.New("entity state requires entity and state")
		}
	case KindStageFailed:
		if e.Entity == "" || e.Stage == "" {
			return errors.New("stage failure requires entity and stage")
		}
	default:
		return fmt.Errorf("unknown kind %q", e.Kind)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
