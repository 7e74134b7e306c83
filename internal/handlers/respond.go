package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/ibrbtv/backend/internal/admin"
	"github.com/ibrbtv/backend/internal/logging"
	"github.com/ibrbtv/backend/internal/repositories"
	"github.com/ibrbtv/backend/internal/viewer"
)

const maxJSONBody = 1 << 20

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", slog.Int("status", status), slog.Any("error", err))
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", slog.Int("status", status), slog.Any("response", payload))
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", slog.Int("status", status), slog.Any("response", payload))
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// respondError translates domain errors into HTTP responses.
func respondError(ctx context.Context, w http.ResponseWriter, err error, fallback string) {
	var validation *admin.ValidationError
	var external *admin.ExternalError

	switch {
	case errors.As(err, &validation):
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": validation.Message, "field": validation.Field})
	case errors.As(err, &external):
		logging.FromContext(ctx).Error("external service failed", slog.Any("error", err))
		respondJSON(ctx, w, http.StatusBadGateway, map[string]string{"error": external.Message})
	case errors.Is(err, repositories.ErrNotFound), errors.Is(err, viewer.ErrUnknownVideo):
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, admin.ErrDuplicateCategory):
		respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": err.Error(), "field": "name"})
	case errors.Is(err, repositories.ErrConflict):
		respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "record already exists"})
	case errors.Is(err, viewer.ErrNotYetAvailable):
		respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, admin.ErrUploadsDisabled):
		respondJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{"error": "request timed out"})
	default:
		logging.FromContext(ctx).Error(fallback, slog.Any("error", err))
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": fallback})
	}
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	for _, m := range allowed {
		w.Header().Add("Allow", m)
	}
	w.WriteHeader(http.StatusMethodNotAllowed)
}
