package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ibrbtv/backend/internal/auth"
	"github.com/ibrbtv/backend/internal/logging"
)

// TokenVerifier validates access tokens.
type TokenVerifier interface {
	Verify(accessToken string) (string, error)
}

// AccessToken extracts a bearer token, falling back to the access cookie.
func AccessToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(auth.AccessCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// RequireAdmin rejects requests without a valid admin access token and stores
// the admin id on the request context.
func RequireAdmin(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userID, err := verifier.Verify(AccessToken(r))
			if err != nil {
				logging.FromContext(ctx).Warn("admin authentication failed", slog.Any("error", err))
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="ibrbtv"`)
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
				return
			}

			ctx = auth.WithUserID(ctx, userID)
			ctx = logging.WithLogger(ctx, logging.FromContext(ctx).With(slog.String("admin_id", userID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
