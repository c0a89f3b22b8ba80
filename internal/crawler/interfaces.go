package crawler

import (
	"context"
	"io"
	"time"
)

// ResultStore persists the run result: an overwriting checkpoint after every
// recorded entity, and a final save at the end of the run.
type ResultStore interface {
	WriteCheckpoint(ctx context.Context, result *RunResult) error
	WriteFinal(ctx context.Context, result *RunResult) error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes entity notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
