package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ibrbtv/backend/internal/logging"
)

// ErrResetTokenInvalid indicates a reset token is unknown, used or expired.
var ErrResetTokenInvalid = errors.New("reset token is invalid or expired")

// ResetNotifier delivers password reset tokens to admins.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, email, token string, expiresAt time.Time) error
}

// LogResetNotifier writes reset tokens to the structured log. It stands in for
// an e-mail channel in development.
type LogResetNotifier struct{}

// SendPasswordReset implements ResetNotifier.
func (LogResetNotifier) SendPasswordReset(ctx context.Context, email, token string, expiresAt time.Time) error {
	logging.FromContext(ctx).Info("password reset requested",
		slog.String("email", email),
		slog.String("reset_token", token),
		slog.Time("expires_at", expiresAt),
	)
	return nil
}

type resetEntry struct {
	email     string
	expiresAt time.Time
}

// ResetTokens tracks single-use password reset tokens in memory.
type ResetTokens struct {
	mu     sync.Mutex
	ttl    time.Duration
	tokens map[string]resetEntry
	now    func() time.Time
}

// NewResetTokens constructs a token registry whose tokens live for ttl.
func NewResetTokens(ttl time.Duration) *ResetTokens {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ResetTokens{
		ttl:    ttl,
		tokens: make(map[string]resetEntry),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Issue creates a reset token for the admin account with the given e-mail,
// invalidating any token issued to it before.
func (r *ResetTokens) Issue(email string) (string, time.Time, error) {
	token, err := randomToken()
	if err != nil {
		return "", time.Time{}, err
	}
	now := r.now()
	expiresAt := now.Add(r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()
	for key, entry := range r.tokens {
		if entry.email == email || now.After(entry.expiresAt) {
			delete(r.tokens, key)
		}
	}
	r.tokens[token] = resetEntry{email: email, expiresAt: expiresAt}
	return token, expiresAt, nil
}

// Consume redeems a token, returning the e-mail it was issued to.
func (r *ResetTokens) Consume(token string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.tokens[token]
	if !ok {
		return "", ErrResetTokenInvalid
	}
	delete(r.tokens, token)
	if r.now().After(entry.expiresAt) {
		return "", ErrResetTokenInvalid
	}
	return entry.email, nil
}
