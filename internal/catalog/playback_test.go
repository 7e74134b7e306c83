package catalog

import (
	"strings"
	"testing"
	"time"
)

func TestPlaybackURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "adds autoplay", in: "https://www.youtube.com/embed/abc", want: "https://www.youtube.com/embed/abc?autoplay=1"},
		{name: "keeps other params", in: "https://www.youtube.com/embed/abc?start=30", want: "https://www.youtube.com/embed/abc?autoplay=1&start=30"},
		{name: "already present", in: "https://www.youtube.com/embed/abc?rel=0&autoplay=1", want: "https://www.youtube.com/embed/abc?rel=0&autoplay=1"},
		{name: "disabled autoplay replaced", in: "https://www.youtube.com/embed/abc?autoplay=0", want: "https://www.youtube.com/embed/abc?autoplay=1"},
		{name: "malformed", in: "://not a url", want: "://not a url"},
		{name: "relative", in: "embed/abc", want: "embed/abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlaybackURL(tt.in); got != tt.want {
				t.Fatalf("PlaybackURL(%q) = %q want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPlaybackURLIdempotent(t *testing.T) {
	url := "https://www.youtube.com/embed/abc?start=10"
	once := PlaybackURL(url)
	twice := PlaybackURL(once)
	if once != twice {
		t.Fatalf("expected idempotent rewrite: %q vs %q", once, twice)
	}
	if strings.Count(twice, "autoplay=1") != 1 {
		t.Fatalf("expected exactly one autoplay parameter in %q", twice)
	}
}

func TestCountdown(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		target    time.Time
		wantLabel string
		wantDone  bool
	}{
		{name: "seconds", target: now.Add(42 * time.Second), wantLabel: "00:00:42"},
		{name: "hours", target: now.Add(3*time.Hour + 4*time.Minute + 5*time.Second), wantLabel: "03:04:05"},
		{name: "days", target: now.Add(50 * time.Hour), wantLabel: "2d:02:00:00"},
		{name: "truncates fractions", target: now.Add(1500 * time.Millisecond), wantLabel: "00:00:01"},
		{name: "reached", target: now, wantLabel: "00:00:00", wantDone: true},
		{name: "passed", target: now.Add(-time.Minute), wantLabel: "00:00:00", wantDone: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, label, done := Countdown(tt.target, now)
			if label != tt.wantLabel || done != tt.wantDone {
				t.Fatalf("Countdown() = %q, %v want %q, %v", label, done, tt.wantLabel, tt.wantDone)
			}
		})
	}
}
