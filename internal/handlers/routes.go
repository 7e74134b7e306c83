package handlers

import (
	"net/http"
	"time"

	"github.com/ibrbtv/backend/internal/middleware"
)

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Snapshots: deps.Snapshots}
	auth := AuthHandler{Users: deps.Users, Sessions: deps.Sessions, Resets: deps.Resets, Notifier: deps.ResetNotifier}
	watch := WatchHandler{Snapshots: deps.Snapshots, Sessions: deps.Viewers, Heartbeat: deps.Heartbeat}
	public := PublicHandler{Snapshots: deps.Snapshots}
	adminAPI := AdminHandler{Catalog: deps.Admin, Failures: deps.Failures, Heartbeat: deps.Heartbeat}

	limit := func(scope string, h http.HandlerFunc) http.Handler {
		return middleware.RateLimit(deps.Limiter, scope)(h)
	}
	protect := func(h http.Handler) http.Handler {
		return middleware.RequireAdmin(deps.Verifier)(h)
	}

	mux.HandleFunc("/healthz", health.Handle)

	mux.Handle("/api/v1/auth/login", limit("login", auth.Login))
	mux.HandleFunc("/api/v1/auth/refresh", auth.Refresh)
	mux.HandleFunc("/api/v1/auth/logout", auth.Logout)
	mux.Handle("/api/v1/auth/password-reset", limit("password-reset", auth.RequestPasswordReset))
	mux.Handle("/api/v1/auth/password-reset/confirm", limit("password-reset", auth.ConfirmPasswordReset))

	mux.HandleFunc("/api/v1/watch", watch.View)
	mux.HandleFunc("/api/v1/watch/stream", watch.Stream)
	mux.HandleFunc("/api/v1/watch/select", watch.Select)
	mux.HandleFunc("/api/v1/watch/filter", watch.Filter)
	mux.HandleFunc("/api/v1/settings", public.Settings)
	mux.HandleFunc("/api/v1/categories", public.Categories)

	mux.Handle("/api/v1/admin/videos", protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			limit("add-video", adminAPI.Videos).ServeHTTP(w, r)
			return
		}
		adminAPI.Videos(w, r)
	})))
	mux.Handle("/api/v1/admin/videos/item", protect(http.HandlerFunc(adminAPI.VideoItem)))
	mux.Handle("/api/v1/admin/videos/watch-now", protect(http.HandlerFunc(adminAPI.WatchNow)))
	mux.Handle("/api/v1/admin/videos/live", protect(http.HandlerFunc(adminAPI.Live)))
	mux.Handle("/api/v1/admin/categories", protect(http.HandlerFunc(adminAPI.Categories)))
	mux.Handle("/api/v1/admin/settings", protect(http.HandlerFunc(adminAPI.Settings)))
	mux.Handle("/api/v1/admin/settings/logo", protect(http.HandlerFunc(adminAPI.Logo)))
	mux.Handle("/api/v1/admin/errors", protect(http.HandlerFunc(adminAPI.Errors)))

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(r.Context(), w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
	mux.Handle("/", PageGate{Verifier: deps.Verifier, Pages: deps.Pages})
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users         AdminUserStore
	Sessions      SessionManager
	Verifier      middleware.TokenVerifier
	Resets        ResetTokenIssuer
	ResetNotifier ResetNotifier
	Limiter       middleware.RateLimiter
	Snapshots     SnapshotSource
	Viewers       ViewerSessions
	Admin         CatalogAdmin
	Failures      FailureFeed
	Pages         http.Handler
	Heartbeat     time.Duration
}
