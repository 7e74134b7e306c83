package auth

import (
	"errors"
	"net/mail"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest admin password accepted.
const MinPasswordLength = 8

var (
	// ErrInvalidEmail indicates the submitted address is not a valid e-mail.
	ErrInvalidEmail = errors.New("invalid email format")
	// ErrInvalidCredentials covers both unknown accounts and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrWeakPassword indicates the password is shorter than MinPasswordLength.
	ErrWeakPassword = errors.New("password must be at least 8 characters")
)

var (
	decoyOnce sync.Once
	decoyHash []byte
)

// NormalizeEmail lowercases and validates an e-mail address.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// HashPassword returns the bcrypt hash for an admin password.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrWeakPassword
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckPassword compares a stored hash with a candidate password and returns
// ErrInvalidCredentials on mismatch.
func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// RejectUnknownAccount burns a bcrypt comparison so lookups for missing
// accounts take as long as a wrong password, then returns ErrInvalidCredentials.
func RejectUnknownAccount(password string) error {
	decoyOnce.Do(func() {
		decoyHash, _ = bcrypt.GenerateFromPassword([]byte("decoy-password"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(decoyHash, []byte(password))
	return ErrInvalidCredentials
}

// LoginMessage maps a sign-in failure to the message shown to the user.
func LoginMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidEmail):
		return ErrInvalidEmail.Error()
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrWeakPassword):
		return ErrInvalidCredentials.Error()
	default:
		return "unable to sign in right now, please try again"
	}
}
