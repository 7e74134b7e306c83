package handlers

import (
	"bufio"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ibrbtv/backend/internal/admin"
	"github.com/ibrbtv/backend/internal/logging"
)

const maxLogoSize = 5 << 20

// AdminHandler exposes the admin forms over HTTP. Routes are expected to sit
// behind middleware.RequireAdmin.
type AdminHandler struct {
	Catalog   CatalogAdmin
	Failures  FailureFeed
	Heartbeat time.Duration
}

type liveRequest struct {
	Live *bool `json:"live"`
}

type categoryRequest struct {
	Name string `json:"name"`
}

// Videos handles GET and POST /api/v1/admin/videos.
func (h AdminHandler) Videos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		list, err := h.Catalog.ListVideos(ctx)
		if err != nil {
			respondError(ctx, w, err, "unable to load videos")
			return
		}
		respondJSON(ctx, w, http.StatusOK, map[string]any{"videos": list})
	case http.MethodPost:
		var req admin.AddVideoInput
		if err := decodeJSON(w, r, &req); err != nil {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		video, err := h.Catalog.AddVideo(ctx, req)
		if err != nil {
			respondError(ctx, w, err, "unable to add video")
			return
		}
		respondJSON(ctx, w, http.StatusCreated, video)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// VideoItem handles PUT and DELETE /api/v1/admin/videos/item?id=.
func (h AdminHandler) VideoItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := requireID(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req admin.UpdateVideoInput
		if err := decodeJSON(w, r, &req); err != nil {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		video, err := h.Catalog.UpdateVideo(ctx, id, req)
		if err != nil {
			respondError(ctx, w, err, "unable to update video")
			return
		}
		respondJSON(ctx, w, http.StatusOK, video)
	case http.MethodDelete:
		if err := h.Catalog.DeleteVideo(ctx, id); err != nil {
			respondError(ctx, w, err, "unable to delete video")
			return
		}
		logging.FromContext(ctx).Info("video deleted", slog.String("videoId", id))
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, http.MethodPut, http.MethodDelete)
	}
}

// WatchNow handles POST /api/v1/admin/videos/watch-now?id=. The response
// carries the watch page deep link for the released video.
func (h AdminHandler) WatchNow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	ctx := r.Context()
	id, ok := requireID(w, r)
	if !ok {
		return
	}

	video, err := h.Catalog.WatchNow(ctx, id)
	if err != nil {
		respondError(ctx, w, err, "unable to release video")
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"video":    video,
		"watchUrl": "/watch?video=" + video.ID,
	})
}

// Live handles POST /api/v1/admin/videos/live?id=, toggling the live flag
// from the video list without opening the edit form.
func (h AdminHandler) Live(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	ctx := r.Context()
	id, ok := requireID(w, r)
	if !ok {
		return
	}

	var req liveRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Live == nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "live flag is required", "field": "live"})
		return
	}

	settings, err := h.Catalog.SetLive(ctx, id, *req.Live)
	if err != nil {
		respondError(ctx, w, err, "unable to update live video")
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]string{"liveVideoId": settings.LiveVideoID})
}

// Categories handles GET, POST and DELETE /api/v1/admin/categories.
func (h AdminHandler) Categories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		list, err := h.Catalog.ListCategories(ctx)
		if err != nil {
			respondError(ctx, w, err, "unable to load categories")
			return
		}
		respondJSON(ctx, w, http.StatusOK, map[string]any{"categories": list})
	case http.MethodPost:
		var req categoryRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		category, err := h.Catalog.AddCategory(ctx, req.Name)
		if err != nil {
			respondError(ctx, w, err, "unable to add category")
			return
		}
		respondJSON(ctx, w, http.StatusCreated, category)
	case http.MethodDelete:
		id, ok := requireID(w, r)
		if !ok {
			return
		}
		if err := h.Catalog.DeleteCategory(ctx, id); err != nil {
			respondError(ctx, w, err, "unable to delete category")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

// Settings handles GET and PUT /api/v1/admin/settings.
func (h AdminHandler) Settings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		settings, err := h.Catalog.GetSettings(ctx)
		if err != nil {
			respondError(ctx, w, err, "unable to load settings")
			return
		}
		respondJSON(ctx, w, http.StatusOK, settings)
	case http.MethodPut:
		var req admin.SettingsInput
		if err := decodeJSON(w, r, &req); err != nil {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		settings, err := h.Catalog.UpdateSettings(ctx, req)
		if err != nil {
			respondError(ctx, w, err, "unable to save settings")
			return
		}
		respondJSON(ctx, w, http.StatusOK, settings)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut)
	}
}

// Logo handles POST /api/v1/admin/settings/logo with a multipart "logo" file.
func (h AdminHandler) Logo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxLogoSize+1<<10)
	file, header, err := r.FormFile("logo")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondJSON(ctx, w, http.StatusRequestEntityTooLarge, map[string]string{"error": "logo must be 5MB or smaller", "field": "logo"})
			return
		}
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "logo file is required", "field": "logo"})
		return
	}
	defer file.Close()

	if header.Size > maxLogoSize {
		respondJSON(ctx, w, http.StatusRequestEntityTooLarge, map[string]string{"error": "logo must be 5MB or smaller", "field": "logo"})
		return
	}

	body := bufio.NewReader(file)
	contentType := strings.TrimSpace(header.Header.Get("Content-Type"))
	if contentType == "" || contentType == "application/octet-stream" {
		head, _ := body.Peek(512)
		contentType = http.DetectContentType(head)
	}

	settings, err := h.Catalog.UploadLogo(ctx, header.Filename, contentType, body)
	if err != nil {
		respondError(ctx, w, err, "unable to upload logo")
		return
	}
	respondJSON(ctx, w, http.StatusOK, settings)
}

// Errors handles GET /api/v1/admin/errors, streaming background write
// failures as they happen.
func (h AdminHandler) Errors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	ctx := r.Context()
	if h.Failures == nil {
		respondJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{"error": "error stream unavailable"})
		return
	}

	failures, unsubscribe := h.Failures.Subscribe()
	defer unsubscribe()

	stream, err := openEventStream(w)
	if err != nil {
		logging.FromContext(ctx).Warn("open error stream", slog.Any("error", err))
		return
	}

	heartbeat := h.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case failure, ok := <-failures:
			if !ok {
				return
			}
			if err := stream.send("write-failure", failure); err != nil {
				return
			}
		case <-ticker.C:
			if err := stream.ping(); err != nil {
				return
			}
		}
	}
}

func requireID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		respondJSON(r.Context(), w, http.StatusBadRequest, map[string]string{"error": "id is required", "field": "id"})
		return "", false
	}
	return id, true
}
