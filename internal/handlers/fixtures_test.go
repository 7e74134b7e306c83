package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ibrbtv/backend/internal/admin"
	"github.com/ibrbtv/backend/internal/auth"
	"github.com/ibrbtv/backend/internal/live"
	"github.com/ibrbtv/backend/internal/models"
	"github.com/ibrbtv/backend/internal/repositories"
	"github.com/ibrbtv/backend/internal/videos"
	"github.com/ibrbtv/backend/internal/viewer"
)

const (
	testAdminEmail    = "admin@ibrb.tv"
	testAdminPassword = "correct-horse"
)

type capturedReset struct {
	email string
	token string
}

type captureNotifier struct {
	mu   sync.Mutex
	sent []capturedReset
}

func (c *captureNotifier) SendPasswordReset(_ context.Context, email, token string, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, capturedReset{email: email, token: token})
	return nil
}

func (c *captureNotifier) last() (capturedReset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return capturedReset{}, false
	}
	return c.sent[len(c.sent)-1], true
}

type stubImages struct {
	location string
	names    []string
}

func (s *stubImages) SaveImage(_ context.Context, name, _ string, r io.Reader) (string, error) {
	_, _ = io.ReadAll(r)
	s.names = append(s.names, name)
	return s.location, nil
}

type fixture struct {
	store    *repositories.MemoryStore
	sessions *auth.Manager
	hub      *live.Hub
	viewers  *viewer.Registry
	reporter *live.Reporter
	notifier *captureNotifier
	images   *stubImages
	service  *admin.Service
	deps     Dependencies
}

var fixtureNow = time.Date(2024, 3, 10, 19, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := repositories.NewMemoryStore()

	hash, err := auth.HashPassword(testAdminPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if err := store.AdminUsers().Create(ctx, models.AdminUser{ID: "admin-1", Email: testAdminEmail, PasswordHash: hash}); err != nil {
		t.Fatalf("create admin: %v", err)
	}

	for _, name := range []string{"Cultos", "Estudos", "Eventos"} {
		if err := store.Categories().Create(ctx, models.Category{ID: "cat-" + strings.ToLower(name), Name: name}); err != nil {
			t.Fatalf("create category: %v", err)
		}
	}

	soon := time.Now().UTC().Add(24 * time.Hour)
	seed := []models.Video{
		{ID: "live", Title: "Culto ao vivo", Category: "Cultos", YouTubeURL: "https://www.youtube.com/embed/live", CreatedAt: fixtureNow},
		{ID: "soon", Title: "Conferencia", Category: "Eventos", FinalCategory: "Estudos", YouTubeURL: "https://www.youtube.com/embed/soon", ScheduledAt: &soon, CreatedAt: fixtureNow.Add(-time.Hour)},
		{ID: "r1", Title: "Estudo de Romanos", Category: "Estudos", YouTubeURL: "https://www.youtube.com/embed/r1", CreatedAt: fixtureNow.Add(-2 * time.Hour)},
		{ID: "r2", Title: "Culto de domingo", Category: "Cultos", YouTubeURL: "https://www.youtube.com/embed/r2", CreatedAt: fixtureNow.Add(-3 * time.Hour)},
	}
	for _, v := range seed {
		if err := store.Videos().Create(ctx, v); err != nil {
			t.Fatalf("create video: %v", err)
		}
	}

	liveID := "live"
	logo := "https://cdn.ibrb.tv/logo.png"
	if _, err := store.Settings().Upsert(ctx, models.SettingsPatch{LiveVideoID: &liveID, LogoURL: &logo}); err != nil {
		t.Fatalf("upsert settings: %v", err)
	}

	f := &fixture{
		store:    store,
		sessions: auth.NewManager([]byte("test-secret"), time.Minute, time.Hour, auth.NewInMemorySessionStore()),
		reporter: live.NewReporter(),
		notifier: &captureNotifier{},
		images:   &stubImages{location: "https://cdn.ibrb.tv/logos/new.png"},
	}
	f.hub = live.NewHub(store.Videos(), store.Categories(), store.Settings(), nil, time.Minute)
	f.viewers = viewer.NewRegistry(viewer.Options{
		Recorder:      store.Videos(),
		Reporter:      f.reporter,
		IdleTTL:       time.Minute,
		RecordTimeout: time.Second,
	})
	t.Cleanup(f.viewers.Close)

	f.service = &admin.Service{
		Videos:     store.Videos(),
		Categories: store.Categories(),
		Settings:   store.Settings(),
		Titles: videos.ProviderFunc(func(context.Context, string) (videos.Metadata, error) {
			return videos.Metadata{Title: "Pregacao especial"}, nil
		}),
		Images:   f.images,
		Location: time.UTC,
	}

	f.deps = Dependencies{
		Users:         store.AdminUsers(),
		Sessions:      f.sessions,
		Verifier:      f.sessions,
		Resets:        auth.NewResetTokens(time.Hour),
		ResetNotifier: f.notifier,
		Snapshots:     f.hub,
		Viewers:       f.viewers,
		Admin:         f.service,
		Failures:      f.reporter,
		Heartbeat:     time.Hour,
	}
	return f
}

func (f *fixture) refresh(t *testing.T) {
	t.Helper()
	if err := f.hub.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh hub: %v", err)
	}
}

func (f *fixture) mux() *http.ServeMux {
	mux := http.NewServeMux()
	RegisterRoutes(mux, f.deps)
	return mux
}

func (f *fixture) accessToken(t *testing.T) string {
	t.Helper()
	tokens, err := f.sessions.Issue(context.Background(), "admin-1")
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}
	return tokens.AccessToken
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}
