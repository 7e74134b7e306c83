package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ibrbtv/backend/internal/auth"
)

func postJSON(path string, body any) *http.Request {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestAuthHandlerLogin(t *testing.T) {
	f := newFixture(t)
	handler := AuthHandler{Users: f.deps.Users, Sessions: f.sessions}

	rec := serve(http.HandlerFunc(handler.Login), postJSON("/api/v1/auth/login", loginRequest{Email: " Admin@IBRB.tv ", Password: testAdminPassword}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp authResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Tokens.AccessToken == "" || resp.Tokens.RefreshToken == "" {
		t.Fatalf("expected tokens to be issued, got %+v", resp.Tokens)
	}
	if userID, err := f.sessions.Verify(resp.Tokens.AccessToken); err != nil || userID != "admin-1" {
		t.Fatalf("access token should verify for admin-1, got %q, %v", userID, err)
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.AccessCookieName {
			cookie = c
		}
	}
	if cookie == nil || !cookie.HttpOnly || cookie.Value != resp.Tokens.AccessToken {
		t.Fatalf("expected http-only access cookie, got %+v", cookie)
	}
}

func TestAuthHandlerLoginDoesNotRevealAccounts(t *testing.T) {
	f := newFixture(t)
	handler := http.HandlerFunc(AuthHandler{Users: f.deps.Users, Sessions: f.sessions}.Login)

	unknown := serve(handler, postJSON("/api/v1/auth/login", loginRequest{Email: "nobody@ibrb.tv", Password: testAdminPassword}))
	wrong := serve(handler, postJSON("/api/v1/auth/login", loginRequest{Email: testAdminEmail, Password: "not-the-password"}))

	if unknown.Code != http.StatusUnauthorized || wrong.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for both, got %d and %d", unknown.Code, wrong.Code)
	}
	if unknown.Body.String() != wrong.Body.String() {
		t.Fatalf("responses differ: %q vs %q", unknown.Body.String(), wrong.Body.String())
	}
	if !strings.Contains(wrong.Body.String(), "invalid email or password") {
		t.Fatalf("unexpected message %s", wrong.Body.String())
	}
}

func TestAuthHandlerLoginValidation(t *testing.T) {
	f := newFixture(t)
	handler := http.HandlerFunc(AuthHandler{Users: f.deps.Users, Sessions: f.sessions}.Login)

	tests := []struct {
		name   string
		req    *http.Request
		status int
		want   string
	}{
		{name: "malformed email", req: postJSON("/api/v1/auth/login", loginRequest{Email: "not-an-email", Password: "x"}), status: http.StatusBadRequest, want: "invalid email format"},
		{name: "missing password", req: postJSON("/api/v1/auth/login", loginRequest{Email: testAdminEmail}), status: http.StatusBadRequest, want: "required"},
		{name: "bad body", req: httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader("{")), status: http.StatusBadRequest, want: "invalid request body"},
		{name: "wrong method", req: httptest.NewRequest(http.MethodGet, "/api/v1/auth/login", nil), status: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(handler, tt.req)
			if rec.Code != tt.status {
				t.Fatalf("expected status %d got %d", tt.status, rec.Code)
			}
			if tt.want != "" && !strings.Contains(rec.Body.String(), tt.want) {
				t.Fatalf("expected %q in %s", tt.want, rec.Body.String())
			}
		})
	}
}

func TestAuthHandlerRefreshAndLogout(t *testing.T) {
	f := newFixture(t)
	handler := AuthHandler{Users: f.deps.Users, Sessions: f.sessions}

	login := serve(http.HandlerFunc(handler.Login), postJSON("/api/v1/auth/login", loginRequest{Email: testAdminEmail, Password: testAdminPassword}))
	var first authResponse
	if err := json.NewDecoder(login.Body).Decode(&first); err != nil {
		t.Fatalf("decode login: %v", err)
	}

	rec := serve(http.HandlerFunc(handler.Refresh), postJSON("/api/v1/auth/refresh", refreshRequest{RefreshToken: first.Tokens.RefreshToken}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected refresh to succeed, got %d", rec.Code)
	}
	var second authResponse
	if err := json.NewDecoder(rec.Body).Decode(&second); err != nil {
		t.Fatalf("decode refresh: %v", err)
	}
	if second.Tokens.RefreshToken == first.Tokens.RefreshToken {
		t.Fatal("refresh tokens should rotate")
	}

	rec = serve(http.HandlerFunc(handler.Refresh), postJSON("/api/v1/auth/refresh", refreshRequest{RefreshToken: first.Tokens.RefreshToken}))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("rotated refresh token should be rejected, got %d", rec.Code)
	}

	rec = serve(http.HandlerFunc(handler.Logout), postJSON("/api/v1/auth/logout", refreshRequest{RefreshToken: second.Tokens.RefreshToken}))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on logout, got %d", rec.Code)
	}
	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.AccessCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("logout should clear the access cookie")
	}

	rec = serve(http.HandlerFunc(handler.Refresh), postJSON("/api/v1/auth/refresh", refreshRequest{RefreshToken: second.Tokens.RefreshToken}))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("revoked refresh token should be rejected, got %d", rec.Code)
	}
}

func TestAuthHandlerPasswordReset(t *testing.T) {
	f := newFixture(t)
	handler := AuthHandler{Users: f.deps.Users, Sessions: f.sessions, Resets: f.deps.Resets, Notifier: f.notifier}

	unknown := serve(http.HandlerFunc(handler.RequestPasswordReset), postJSON("/api/v1/auth/password-reset", passwordResetRequest{Email: "nobody@ibrb.tv"}))
	known := serve(http.HandlerFunc(handler.RequestPasswordReset), postJSON("/api/v1/auth/password-reset", passwordResetRequest{Email: testAdminEmail}))
	if unknown.Code != http.StatusAccepted || known.Code != http.StatusAccepted {
		t.Fatalf("expected 202 for both, got %d and %d", unknown.Code, known.Code)
	}
	if unknown.Body.String() != known.Body.String() {
		t.Fatal("reset responses must not reveal whether the account exists")
	}

	sent, ok := f.notifier.last()
	if !ok || sent.email != testAdminEmail || sent.token == "" {
		t.Fatalf("expected a reset token for the admin, got %+v", sent)
	}

	confirm := http.HandlerFunc(handler.ConfirmPasswordReset)
	rec := serve(confirm, postJSON("/api/v1/auth/password-reset/confirm", confirmResetRequest{Token: sent.token, Password: "short"}))
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), `"field":"password"`) {
		t.Fatalf("expected weak password rejection, got %d %s", rec.Code, rec.Body.String())
	}

	rec = serve(confirm, postJSON("/api/v1/auth/password-reset/confirm", confirmResetRequest{Token: sent.token, Password: "a-brand-new-secret"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected reset to succeed, got %d %s", rec.Code, rec.Body.String())
	}

	rec = serve(confirm, postJSON("/api/v1/auth/password-reset/confirm", confirmResetRequest{Token: sent.token, Password: "another-new-secret"}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("reset tokens must be single use, got %d", rec.Code)
	}

	login := serve(http.HandlerFunc(handler.Login), postJSON("/api/v1/auth/login", loginRequest{Email: testAdminEmail, Password: "a-brand-new-secret"}))
	if login.Code != http.StatusOK {
		t.Fatalf("expected login with the new password, got %d", login.Code)
	}
}
