package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/lore-crawler/internal/progress/sinks"
)

// ProgressSource exposes the latest run snapshot. sinks.SnapshotSink
// satisfies it.
type ProgressSource interface {
	Snapshot() sinks.Snapshot
}

// ProgressHandler exposes the read-only run progress endpoint.
type ProgressHandler struct {
	source ProgressSource
	logger *zap.Logger
}

// NewProgressHandler wires the snapshot source and logger.
func NewProgressHandler(source ProgressSource, logger *zap.Logger) *ProgressHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressHandler{source: source, logger: logger}
}

// GetProgress handles GET /v1/progress. It returns {"progress": {...}} with
// the current run snapshot, or 503 when progress tracking is not wired.
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, _ *http.Request) {
	if h.source == nil {
		writeError(w, http.StatusServiceUnavailable, "progress tracking unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"progress": h.source.Snapshot()})
}
