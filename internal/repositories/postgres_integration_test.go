package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ibrbtv/backend/internal/auth"
	"github.com/ibrbtv/backend/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cockroach test server unavailable, postgres tests will be skipped: %v\n", err)
		os.Exit(m.Run())
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func requirePool(t *testing.T) {
	t.Helper()
	if testPool == nil {
		t.Skip("cockroach test server not available")
	}
}

func TestPostgresAdminUserRepository_CreateFindAndUpdate(t *testing.T) {
	requirePool(t)
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresAdminUserRepository(testPool)

	user := models.AdminUser{
		ID:           uuid.NewString(),
		Email:        "admin@ibrb.tv",
		PasswordHash: "secret-hash",
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
		UpdatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}

	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("create admin user: %v", err)
	}

	dup := user
	dup.ID = uuid.NewString()
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict when creating duplicate email, got %v", err)
	}

	fetched, err := repo.FindByEmail(ctx, user.Email)
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if fetched.ID != user.ID || fetched.PasswordHash != user.PasswordHash {
		t.Fatalf("unexpected admin user fetched: %+v", fetched)
	}

	updated := user
	updated.PasswordHash = "rotated-hash"
	updated.UpdatedAt = time.Now().UTC().Add(time.Minute)
	if err := repo.Update(ctx, updated); err != nil {
		t.Fatalf("update admin user: %v", err)
	}

	fetched, err = repo.FindByEmail(ctx, user.Email)
	if err != nil {
		t.Fatalf("find after update: %v", err)
	}
	if fetched.PasswordHash != "rotated-hash" {
		t.Fatalf("expected rotated hash, got %+v", fetched)
	}

	missing := models.AdminUser{ID: uuid.NewString(), Email: "missing@ibrb.tv", UpdatedAt: time.Now().UTC()}
	if err := repo.Update(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating missing user, got %v", err)
	}
}

func TestPostgresVideoRepository_Lifecycle(t *testing.T) {
	requirePool(t)
	ctx := context.Background()
	resetDatabase(t)

	notifier := &recordingNotifier{}
	repo := NewPostgresVideoRepository(testPool, notifier)

	base := time.Now().UTC().Truncate(time.Millisecond)
	older := models.Video{ID: uuid.NewString(), YouTubeURL: "https://www.youtube.com/embed/old", Title: "Old", Category: "Estudo", CreatedAt: base.Add(-time.Hour)}
	scheduled := base.Add(24 * time.Hour)
	newer := models.Video{ID: uuid.NewString(), YouTubeURL: "https://www.youtube.com/embed/new", Title: "New", Category: "Evento Especial", FinalCategory: "Estudo", ScheduledAt: &scheduled, CreatedAt: base}

	for _, v := range []models.Video{older, newer} {
		if err := repo.Create(ctx, v); err != nil {
			t.Fatalf("create video %s: %v", v.Title, err)
		}
	}

	videos, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list videos: %v", err)
	}
	if len(videos) != 2 || videos[0].ID != newer.ID || videos[1].ID != older.ID {
		t.Fatalf("expected newest first, got %+v", videos)
	}
	if videos[0].ScheduledAt == nil || !timesClose(*videos[0].ScheduledAt, scheduled, time.Millisecond) {
		t.Fatalf("expected schedule to round-trip, got %v", videos[0].ScheduledAt)
	}

	category := "Estudo"
	updated, err := repo.Update(ctx, newer.ID, models.VideoPatch{Category: &category, ClearSchedule: true})
	if err != nil {
		t.Fatalf("update video: %v", err)
	}
	if updated.ScheduledAt != nil || updated.Category != "Estudo" || updated.Title != "New" {
		t.Fatalf("unexpected updated video: %+v", updated)
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.IncrementViews(ctx, older.ID); err != nil {
				t.Errorf("increment views: %v", err)
			}
		}()
	}
	wg.Wait()

	fetched, err := repo.Get(ctx, older.ID)
	if err != nil {
		t.Fatalf("get video: %v", err)
	}
	if fetched.ViewCount != 5 {
		t.Fatalf("expected 5 views, got %d", fetched.ViewCount)
	}

	if err := repo.Delete(ctx, older.ID); err != nil {
		t.Fatalf("delete video: %v", err)
	}
	if _, err := repo.Get(ctx, older.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.IncrementViews(ctx, older.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound incrementing deleted video, got %v", err)
	}

	if notifier.count(CollectionVideos) == 0 {
		t.Fatal("expected video change notifications")
	}
}

func TestPostgresCategoryRepository_CaseInsensitiveUniqueness(t *testing.T) {
	requirePool(t)
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresCategoryRepository(testPool, nil)

	if err := repo.Create(ctx, models.Category{ID: uuid.NewString(), Name: "Estudo", CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("create category: %v", err)
	}
	if err := repo.Create(ctx, models.Category{ID: uuid.NewString(), Name: "estudo", CreatedAt: time.Now().UTC()}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for case variant, got %v", err)
	}

	categories, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(categories) != 1 {
		t.Fatalf("expected a single category, got %+v", categories)
	}

	if err := repo.Delete(ctx, categories[0].ID); err != nil {
		t.Fatalf("delete category: %v", err)
	}
	if err := repo.Delete(ctx, categories[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestPostgresSettingsRepository_MergeAndLivePointer(t *testing.T) {
	requirePool(t)
	ctx := context.Background()
	resetDatabase(t)

	settings := NewPostgresSettingsRepository(testPool, nil)
	videos := NewPostgresVideoRepository(testPool, nil)

	initial, err := settings.Get(ctx)
	if err != nil {
		t.Fatalf("get empty settings: %v", err)
	}
	if initial != (models.Settings{}) {
		t.Fatalf("expected zero settings, got %+v", initial)
	}

	logo := "https://cdn.ibrb.tv/logo.png"
	if _, err := settings.Upsert(ctx, models.SettingsPatch{LogoURL: &logo}); err != nil {
		t.Fatalf("upsert logo: %v", err)
	}
	summary := "Cultos e estudos"
	merged, err := settings.Upsert(ctx, models.SettingsPatch{DefaultSummary: &summary})
	if err != nil {
		t.Fatalf("upsert summary: %v", err)
	}
	if merged.LogoURL != logo || merged.DefaultSummary != summary {
		t.Fatalf("expected merge semantics, got %+v", merged)
	}

	missing := uuid.NewString()
	if _, err := settings.Upsert(ctx, models.SettingsPatch{LiveVideoID: &missing}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown live video, got %v", err)
	}

	live := models.Video{ID: uuid.NewString(), YouTubeURL: "https://www.youtube.com/embed/live", Title: "Ao vivo", Category: "Culto", CreatedAt: time.Now().UTC()}
	if err := videos.Create(ctx, live); err != nil {
		t.Fatalf("create live video: %v", err)
	}
	withLive, err := settings.Upsert(ctx, models.SettingsPatch{LiveVideoID: &live.ID})
	if err != nil {
		t.Fatalf("set live video: %v", err)
	}
	if withLive.LiveVideoID != live.ID || withLive.LogoURL != logo {
		t.Fatalf("unexpected settings after live update: %+v", withLive)
	}

	if err := videos.Delete(ctx, live.ID); err != nil {
		t.Fatalf("delete live video: %v", err)
	}
	afterDelete, err := settings.Get(ctx)
	if err != nil {
		t.Fatalf("get settings after delete: %v", err)
	}
	if afterDelete.LiveVideoID != "" {
		t.Fatalf("expected live pointer cleared, got %q", afterDelete.LiveVideoID)
	}
}

func TestPostgresSessionStore_SaveFindAndDelete(t *testing.T) {
	requirePool(t)
	ctx := context.Background()
	resetDatabase(t)

	user := createTestAdmin(t, "owner@ibrb.tv")

	store := NewPostgresSessionStore(testPool)
	expires := time.Now().UTC().Add(24 * time.Hour)
	session := auth.Session{RefreshToken: uuid.NewString(), UserID: user.ID, ExpiresAt: expires}

	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save session: %v", err)
	}

	loaded, err := store.Find(ctx, session.RefreshToken)
	if err != nil {
		t.Fatalf("find session: %v", err)
	}
	if loaded.UserID != session.UserID || !timesClose(loaded.ExpiresAt, expires, time.Millisecond) {
		t.Fatalf("unexpected session loaded: %+v", loaded)
	}

	stale := auth.Session{RefreshToken: uuid.NewString(), UserID: user.ID, ExpiresAt: time.Now().UTC().Add(-time.Hour)}
	if err := store.Save(ctx, stale); err != nil {
		t.Fatalf("save stale session: %v", err)
	}
	purged, err := store.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected one purged session, got %d", purged)
	}

	if err := store.Delete(ctx, session.RefreshToken); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := store.Find(ctx, session.RefreshToken); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, session.RefreshToken); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound deleting twice, got %v", err)
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events map[string]int
}

func (n *recordingNotifier) Notify(_ context.Context, collection string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.events == nil {
		n.events = make(map[string]int)
	}
	n.events[collection]++
}

func (n *recordingNotifier) count(collection string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.events[collection]
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE settings, videos, categories, sessions, admin_users CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestAdmin(t *testing.T, email string) models.AdminUser {
	t.Helper()
	user := models.AdminUser{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: "password-hash",
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if err := NewPostgresAdminUserRepository(testPool).Create(context.Background(), user); err != nil {
		t.Fatalf("create test admin: %v", err)
	}
	return user
}

func timesClose(a, b time.Time, delta time.Duration) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= delta
}
