package auth

import (
	"errors"
	"testing"
	"time"
)

func TestNormalizeEmail(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "  Admin@Example.COM ", want: "admin@example.com"},
		{in: "", wantErr: true},
		{in: "not-an-email", wantErr: true},
		{in: "Admin <admin@example.com>", wantErr: true},
	}
	for _, tc := range cases {
		got, err := NormalizeEmail(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidEmail) {
				t.Fatalf("NormalizeEmail(%q) expected ErrInvalidEmail, got %v", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("NormalizeEmail(%q) = %q, %v", tc.in, got, err)
		}
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	if _, err := HashPassword("short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected weak password error, got %v", err)
	}

	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := CheckPassword(hash, "correct horse"); err != nil {
		t.Fatalf("expected password to match: %v", err)
	}
	if err := CheckPassword(hash, "battery staple"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestLoginMessageDoesNotRevealAccounts(t *testing.T) {
	unknown := LoginMessage(RejectUnknownAccount("whatever"))
	wrong := LoginMessage(CheckPassword("$2a$10$invalidinvalidinvalidinvalidinvalidinvalidinvalidinva", "x"))
	if unknown != wrong {
		t.Fatalf("messages differ: %q vs %q", unknown, wrong)
	}
	if LoginMessage(ErrInvalidEmail) != "invalid email format" {
		t.Fatalf("unexpected invalid email message %q", LoginMessage(ErrInvalidEmail))
	}
	if LoginMessage(errors.New("boom")) == unknown {
		t.Fatal("infrastructure failures should not look like credential failures")
	}
}

func TestResetTokens(t *testing.T) {
	tokens := NewResetTokens(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return now }

	first, _, err := tokens.Issue("admin@ibrb.tv")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	second, _, err := tokens.Issue("admin@ibrb.tv")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := tokens.Consume(first); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("reissue should invalidate earlier token, got %v", err)
	}

	email, err := tokens.Consume(second)
	if err != nil || email != "admin@ibrb.tv" {
		t.Fatalf("consume = %q, %v", email, err)
	}
	if _, err := tokens.Consume(second); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("tokens must be single use, got %v", err)
	}

	expiring, _, _ := tokens.Issue("other@ibrb.tv")
	now = now.Add(2 * time.Minute)
	if _, err := tokens.Consume(expiring); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
}
