package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"

	"github.com/ibrbtv/backend/internal/models"
)

// MemoryStore keeps every catalog collection in memory. It backs local
// development without a database and the package tests of its callers.
type MemoryStore struct {
	mu          sync.RWMutex
	videos      map[string]models.Video
	categories  map[string]models.Category
	settings    models.Settings
	users       map[string]models.AdminUser
	now         func() time.Time
	subMu       sync.Mutex
	subscribers map[chan ChangeEvent]struct{}
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		videos:      make(map[string]models.Video),
		categories:  make(map[string]models.Category),
		users:       make(map[string]models.AdminUser),
		now:         func() time.Time { return time.Now().UTC() },
		subscribers: make(map[chan ChangeEvent]struct{}),
	}
}

// Videos returns the video repository view of the store.
func (s *MemoryStore) Videos() *MemoryVideoRepository { return &MemoryVideoRepository{store: s} }

// Categories returns the category repository view of the store.
func (s *MemoryStore) Categories() *MemoryCategoryRepository {
	return &MemoryCategoryRepository{store: s}
}

// Settings returns the settings repository view of the store.
func (s *MemoryStore) Settings() *MemorySettingsRepository {
	return &MemorySettingsRepository{store: s}
}

// AdminUsers returns the admin user repository view of the store.
func (s *MemoryStore) AdminUsers() *MemoryAdminUserRepository {
	return &MemoryAdminUserRepository{store: s}
}

// Watch delivers change events until ctx is cancelled. Events are dropped
// for subscribers whose buffer is full.
func (s *MemoryStore) Watch(ctx context.Context) (<-chan ChangeEvent, error) {
	ch := make(chan ChangeEvent, 16)

	s.subMu.Lock()
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()

	go func() {
		<-ctx.Done()
		s.subMu.Lock()
		delete(s.subscribers, ch)
		close(ch)
		s.subMu.Unlock()
	}()

	return ch, nil
}

func (s *MemoryStore) publish(collection string) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- ChangeEvent{Collection: collection}:
		default:
		}
	}
}

// MemoryVideoRepository implements VideoRepository on a MemoryStore.
type MemoryVideoRepository struct {
	store *MemoryStore
}

// List returns every video, newest first.
func (r *MemoryVideoRepository) List(context.Context) ([]models.Video, error) {
	r.store.mu.RLock()
	videos := make([]models.Video, 0, len(r.store.videos))
	for _, v := range r.store.videos {
		videos = append(videos, v)
	}
	r.store.mu.RUnlock()

	sort.Slice(videos, func(i, j int) bool {
		if !videos[i].CreatedAt.Equal(videos[j].CreatedAt) {
			return videos[i].CreatedAt.After(videos[j].CreatedAt)
		}
		return videos[i].ID < videos[j].ID
	})
	return videos, nil
}

// Get loads a single video.
func (r *MemoryVideoRepository) Get(_ context.Context, id string) (models.Video, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	v, ok := r.store.videos[id]
	if !ok {
		return models.Video{}, ErrNotFound
	}
	return v, nil
}

// Create stores a new video.
func (r *MemoryVideoRepository) Create(_ context.Context, video models.Video) error {
	r.store.mu.Lock()
	if _, exists := r.store.videos[video.ID]; exists {
		r.store.mu.Unlock()
		return ErrConflict
	}
	r.store.videos[video.ID] = video
	r.store.mu.Unlock()

	r.store.publish(CollectionVideos)
	return nil
}

// Update applies patch to the stored video.
func (r *MemoryVideoRepository) Update(_ context.Context, id string, patch models.VideoPatch) (models.Video, error) {
	r.store.mu.Lock()
	v, ok := r.store.videos[id]
	if !ok {
		r.store.mu.Unlock()
		return models.Video{}, ErrNotFound
	}
	v = ApplyVideoPatch(v, patch)
	r.store.videos[id] = v
	r.store.mu.Unlock()

	r.store.publish(CollectionVideos)
	return v, nil
}

// Delete removes a video and clears the live pointer when it referenced it.
func (r *MemoryVideoRepository) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	if _, ok := r.store.videos[id]; !ok {
		r.store.mu.Unlock()
		return ErrNotFound
	}
	delete(r.store.videos, id)
	clearedLive := r.store.settings.LiveVideoID == id
	if clearedLive {
		r.store.settings.LiveVideoID = ""
		r.store.settings.UpdatedAt = r.store.now()
	}
	r.store.mu.Unlock()

	r.store.publish(CollectionVideos)
	if clearedLive {
		r.store.publish(CollectionSettings)
	}
	return nil
}

// IncrementViews bumps the view counter under the store lock.
func (r *MemoryVideoRepository) IncrementViews(_ context.Context, id string) error {
	r.store.mu.Lock()
	v, ok := r.store.videos[id]
	if !ok {
		r.store.mu.Unlock()
		return ErrNotFound
	}
	v.ViewCount++
	r.store.videos[id] = v
	r.store.mu.Unlock()

	r.store.publish(CollectionVideos)
	return nil
}

// MemoryCategoryRepository implements CategoryRepository on a MemoryStore.
type MemoryCategoryRepository struct {
	store *MemoryStore
}

// List returns categories ordered by name.
func (r *MemoryCategoryRepository) List(context.Context) ([]models.Category, error) {
	r.store.mu.RLock()
	categories := make([]models.Category, 0, len(r.store.categories))
	for _, c := range r.store.categories {
		categories = append(categories, c)
	}
	r.store.mu.RUnlock()

	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

// Create stores a category; names clash case-insensitively.
func (r *MemoryCategoryRepository) Create(_ context.Context, category models.Category) error {
	key := cases.Fold().String(strings.TrimSpace(category.Name))

	r.store.mu.Lock()
	for _, existing := range r.store.categories {
		if existing.ID == category.ID || cases.Fold().String(existing.Name) == key {
			r.store.mu.Unlock()
			return ErrConflict
		}
	}
	r.store.categories[category.ID] = category
	r.store.mu.Unlock()

	r.store.publish(CollectionCategories)
	return nil
}

// Delete removes a category.
func (r *MemoryCategoryRepository) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	if _, ok := r.store.categories[id]; !ok {
		r.store.mu.Unlock()
		return ErrNotFound
	}
	delete(r.store.categories, id)
	r.store.mu.Unlock()

	r.store.publish(CollectionCategories)
	return nil
}

// MemorySettingsRepository implements SettingsRepository on a MemoryStore.
type MemorySettingsRepository struct {
	store *MemoryStore
}

// Get returns the current settings.
func (r *MemorySettingsRepository) Get(context.Context) (models.Settings, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.store.settings, nil
}

// Upsert merges patch into the settings.
func (r *MemorySettingsRepository) Upsert(_ context.Context, patch models.SettingsPatch) (models.Settings, error) {
	r.store.mu.Lock()
	if patch.LiveVideoID != nil && *patch.LiveVideoID != "" {
		if _, ok := r.store.videos[*patch.LiveVideoID]; !ok {
			r.store.mu.Unlock()
			return models.Settings{}, ErrNotFound
		}
	}
	s := r.store.settings
	if patch.LogoURL != nil {
		s.LogoURL = *patch.LogoURL
	}
	if patch.DefaultSummary != nil {
		s.DefaultSummary = *patch.DefaultSummary
	}
	if patch.LiveVideoID != nil {
		s.LiveVideoID = *patch.LiveVideoID
	}
	s.UpdatedAt = r.store.now()
	r.store.settings = s
	r.store.mu.Unlock()

	r.store.publish(CollectionSettings)
	return s, nil
}

// MemoryAdminUserRepository implements AdminUserRepository on a MemoryStore.
type MemoryAdminUserRepository struct {
	store *MemoryStore
}

// Create persists a new admin account.
func (r *MemoryAdminUserRepository) Create(_ context.Context, user models.AdminUser) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.users {
		if existing.ID == user.ID || existing.Email == user.Email {
			return ErrConflict
		}
	}
	r.store.users[user.ID] = user
	return nil
}

// FindByEmail fetches an admin account by email address.
func (r *MemoryAdminUserRepository) FindByEmail(_ context.Context, email string) (models.AdminUser, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, user := range r.store.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.AdminUser{}, ErrNotFound
}

// Update replaces an existing admin account.
func (r *MemoryAdminUserRepository) Update(_ context.Context, user models.AdminUser) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.users[user.ID]; !ok {
		return ErrNotFound
	}
	r.store.users[user.ID] = user
	return nil
}

var _ VideoRepository = (*MemoryVideoRepository)(nil)
var _ CategoryRepository = (*MemoryCategoryRepository)(nil)
var _ SettingsRepository = (*MemorySettingsRepository)(nil)
var _ AdminUserRepository = (*MemoryAdminUserRepository)(nil)
var _ Watcher = (*MemoryStore)(nil)
