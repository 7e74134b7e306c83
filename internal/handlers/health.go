package handlers

import (
	"net/http"
)

// HealthHandler responds with service health information.
type HealthHandler struct {
	Snapshots SnapshotSource
}

// Handle implements GET /healthz. The service reports "starting" until the
// first catalog snapshot has loaded.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	payload := map[string]any{
		"status": "ok",
	}
	status := http.StatusOK

	if h.Snapshots != nil {
		snap, ok := h.Snapshots.Current()
		if !ok {
			payload["status"] = "starting"
			status = http.StatusServiceUnavailable
		} else {
			payload["catalogVersion"] = snap.Version
		}
	}

	respondJSON(r.Context(), w, status, payload)
}
