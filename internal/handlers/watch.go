package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ibrbtv/backend/internal/catalog"
	"github.com/ibrbtv/backend/internal/logging"
	"github.com/ibrbtv/backend/internal/models"
	"github.com/ibrbtv/backend/internal/viewer"
)

// WatchHandler serves the public watch page state.
type WatchHandler struct {
	Snapshots SnapshotSource
	Sessions  ViewerSessions
	Heartbeat time.Duration
}

type publicSettings struct {
	LogoURL        string `json:"logoUrl"`
	DefaultSummary string `json:"defaultSummary"`
}

func newPublicSettings(s models.Settings) publicSettings {
	return publicSettings{LogoURL: s.LogoURL, DefaultSummary: s.DefaultSummary}
}

type watchResponse struct {
	SessionID string         `json:"sessionId"`
	View      catalog.View   `json:"view"`
	Settings  publicSettings `json:"settings"`
}

type selectRequest struct {
	SessionID string `json:"sessionId"`
	VideoID   string `json:"videoId"`
}

type filterRequest struct {
	SessionID string  `json:"sessionId"`
	Category  *string `json:"category"`
	Search    *string `json:"search"`
}

// View handles GET /api/v1/watch. It opens a session when none is given and
// applies the optional video deep link.
func (h WatchHandler) View(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	ctx := r.Context()
	snap, ok := h.Snapshots.Current()
	if !ok {
		respondJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{"error": "catalog is loading, please try again"})
		return
	}

	session := h.open(r)
	view := session.View(snap)
	respondJSON(logging.WithViewerSession(ctx, session.ID), w, http.StatusOK, watchResponse{
		SessionID: session.ID,
		View:      view,
		Settings:  newPublicSettings(snap.Settings),
	})
}

// Stream handles GET /api/v1/watch/stream, pushing a fresh view on every
// snapshot and every session-local change until the client disconnects.
func (h WatchHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	session := h.open(r)
	ctx := logging.WithViewerSession(r.Context(), session.ID)
	logger := logging.FromContext(ctx)

	snapshots, unsubscribe := h.Snapshots.Subscribe()
	defer unsubscribe()
	changes, release := session.Changes()
	defer release()

	stream, err := openEventStream(w)
	if err != nil {
		logger.Warn("open watch stream", slog.Any("error", err))
		return
	}
	if err := stream.send("session", map[string]string{"sessionId": session.ID}); err != nil {
		return
	}

	heartbeat := h.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	var settings publicSettings
	for {
		var view catalog.View
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			settings = newPublicSettings(snap.Settings)
			view = session.View(snap)
		case <-changes:
			view = session.Current()
		case <-ticker.C:
			if err := stream.ping(); err != nil {
				logger.Debug("watch stream closed", slog.Any("error", err))
				return
			}
			continue
		}

		if err := stream.send("view", watchResponse{SessionID: session.ID, View: view, Settings: settings}); err != nil {
			logger.Debug("watch stream closed", slog.Any("error", err))
			return
		}
	}
}

// Select handles POST /api/v1/watch/select.
func (h WatchHandler) Select(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	ctx := r.Context()
	var req selectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.VideoID) == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "video id is required", "field": "videoId"})
		return
	}

	session, ok := h.session(w, r, req.SessionID)
	if !ok {
		return
	}
	ctx = logging.WithViewerSession(ctx, session.ID)

	view, err := session.Select(ctx, strings.TrimSpace(req.VideoID))
	if err != nil {
		respondError(ctx, w, err, "unable to select video")
		return
	}
	respondJSON(ctx, w, http.StatusOK, watchResponse{SessionID: session.ID, View: view, Settings: h.settings()})
}

// Filter handles POST /api/v1/watch/filter.
func (h WatchHandler) Filter(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	ctx := r.Context()
	var req filterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	session, ok := h.session(w, r, req.SessionID)
	if !ok {
		return
	}

	view := session.SetFilter(req.Category, req.Search)
	respondJSON(logging.WithViewerSession(ctx, session.ID), w, http.StatusOK, watchResponse{SessionID: session.ID, View: view, Settings: h.settings()})
}

func (h WatchHandler) open(r *http.Request) *viewer.Session {
	query := r.URL.Query()
	session, created := h.Sessions.Open(strings.TrimSpace(query.Get("session")))
	if created {
		logging.FromContext(r.Context()).Debug("viewer session opened", slog.String("viewer_session", session.ID))
	}
	if video := query.Get("video"); video != "" {
		session.Request(video)
	}
	return session
}

func (h WatchHandler) session(w http.ResponseWriter, r *http.Request, id string) (*viewer.Session, bool) {
	session, ok := h.Sessions.Get(strings.TrimSpace(id))
	if !ok {
		respondJSON(r.Context(), w, http.StatusNotFound, map[string]string{"error": "watch session expired, please reload", "field": "sessionId"})
		return nil, false
	}
	return session, true
}

func (h WatchHandler) settings() publicSettings {
	snap, _ := h.Snapshots.Current()
	return newPublicSettings(snap.Settings)
}

// PublicHandler serves read-only catalog metadata.
type PublicHandler struct {
	Snapshots SnapshotSource
}

// Settings handles GET /api/v1/settings.
func (h PublicHandler) Settings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	snap, ok := h.Snapshots.Current()
	if !ok {
		respondJSON(r.Context(), w, http.StatusServiceUnavailable, map[string]string{"error": "catalog is loading, please try again"})
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, newPublicSettings(snap.Settings))
}

// Categories handles GET /api/v1/categories.
func (h PublicHandler) Categories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	snap, ok := h.Snapshots.Current()
	if !ok {
		respondJSON(r.Context(), w, http.StatusServiceUnavailable, map[string]string{"error": "catalog is loading, please try again"})
		return
	}
	respondJSON(r.Context(), w, http.StatusOK, map[string]any{
		"categories": catalog.CountByCategory(snap.Videos, snap.Categories),
		"total":      len(snap.Videos),
	})
}
