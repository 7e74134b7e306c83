package videos

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubProvider struct {
	metadata Metadata
	err      error
	calls    int
}

func (s *stubProvider) Lookup(context.Context, string) (Metadata, error) {
	s.calls++
	if s.err != nil {
		return Metadata{}, s.err
	}
	return s.metadata, nil
}

func TestCachingProviderLookup(t *testing.T) {
	base := &stubProvider{metadata: Metadata{Title: "Test"}}
	cache := NewCachingProvider(base, time.Minute)

	ctx := context.Background()

	meta, err := cache.Lookup(ctx, "https://youtu.be/abc123")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if meta.Title != "Test" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}

	if _, err := cache.Lookup(ctx, "https://www.youtube.com/watch?v=abc123"); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if base.calls != 1 {
		t.Fatalf("expected watch and short links to share a cache entry, got %d calls", base.calls)
	}
}

func TestCachingProviderLookupErrors(t *testing.T) {
	var nilCache *CachingProvider
	if _, err := nilCache.Lookup(context.Background(), "https://example.com"); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected provider unavailable got %v", err)
	}

	cache := NewCachingProvider(nil, time.Minute)
	if _, err := cache.Lookup(context.Background(), "https://example.com"); err != ErrProviderUnavailable {
		t.Fatalf("expected provider unavailable got %v", err)
	}

	base := &stubProvider{err: ErrVideoNotFound}
	cache = NewCachingProvider(base, time.Minute)
	for i := 0; i < 2; i++ {
		if _, err := cache.Lookup(context.Background(), "https://example.com"); !errors.Is(err, ErrVideoNotFound) {
			t.Fatalf("expected not found got %v", err)
		}
	}
	if base.calls != 2 {
		t.Fatalf("failures must not be cached, got %d calls", base.calls)
	}
}

func TestCachingProviderExpiry(t *testing.T) {
	base := &stubProvider{metadata: Metadata{Title: "Test"}}
	cache := NewCachingProvider(base, time.Minute)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	if _, err := cache.Lookup(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("lookup: %v", err)
	}

	now = now.Add(2 * time.Minute)

	if _, err := cache.Lookup(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if base.calls != 2 {
		t.Fatalf("expected cache miss after expiry got %d calls", base.calls)
	}
}

func TestCachingProviderDefaultTTL(t *testing.T) {
	cache := NewCachingProvider(&stubProvider{}, 0)
	if cache.ttl <= 0 {
		t.Fatalf("expected ttl to default positive got %v", cache.ttl)
	}
}

func TestFallbackProvider(t *testing.T) {
	failing := &stubProvider{err: errors.New("quota exceeded")}
	empty := &stubProvider{}
	working := &stubProvider{metadata: Metadata{Title: "Replay"}}

	chain := NewFallbackProvider(failing, nil, empty, working)
	meta, err := chain.Lookup(context.Background(), "https://youtu.be/abc")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if meta.Title != "Replay" {
		t.Fatalf("unexpected title %q", meta.Title)
	}
	if failing.calls != 1 || empty.calls != 1 || working.calls != 1 {
		t.Fatalf("unexpected call counts %d %d %d", failing.calls, empty.calls, working.calls)
	}

	chain = NewFallbackProvider(&stubProvider{err: ErrVideoNotFound})
	if _, err := chain.Lookup(context.Background(), "https://youtu.be/abc"); !errors.Is(err, ErrVideoNotFound) {
		t.Fatalf("expected joined error to wrap not found, got %v", err)
	}

	if _, err := NewFallbackProvider().Lookup(context.Background(), "x"); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected unavailable for empty chain, got %v", err)
	}
}
