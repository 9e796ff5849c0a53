package server

import (
	"encoding/json"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/jobsync/internal/models"
	"github.com/desertthunder/jobsync/internal/tasks"
	"github.com/desertthunder/jobsync/internal/telemetry"
)

// SnapshotSource reports the client state served at /status.
type SnapshotSource interface {
	Snapshot() tasks.Snapshot
}

// StatusHandler serves the current job, overlay, review counts and processes as JSON.
type StatusHandler struct {
	source SnapshotSource
}

func NewStatusHandler(source SnapshotSource) *StatusHandler {
	return &StatusHandler{source: source}
}

func (h *StatusHandler) Routes() []string {
	return []string{"/status"}
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := h.source.Snapshot()
	if snap.Processes == nil {
		snap.Processes = []models.Process{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		http.Error(w, "Failed to encode status", http.StatusInternalServerError)
	}
}

// NewStatusRouter wires /status and /metrics behind the logging and recovery middleware.
func NewStatusRouter(source SnapshotSource, logger *log.Logger) *BasicRouter {
	r := NewBasicRouter()
	r.Use(Recover(logger), Logging(logger))
	r.Handler(NewStatusHandler(source))
	r.Handle(http.MethodGet, "/metrics", telemetry.Handler())
	return r
}
