package repositories

import (
	"context"

	"github.com/ibrbtv/backend/internal/models"
)

// VideoRepository exposes data access for catalog videos. List returns
// videos newest first; IsLive is left for callers to resolve from settings.
type VideoRepository interface {
	List(ctx context.Context) ([]models.Video, error)
	Get(ctx context.Context, id string) (models.Video, error)
	Create(ctx context.Context, video models.Video) error
	Update(ctx context.Context, id string, patch models.VideoPatch) (models.Video, error)
	Delete(ctx context.Context, id string) error
	// IncrementViews atomically adds one to the view counter.
	IncrementViews(ctx context.Context, id string) error
}

// CategoryRepository exposes data access for categories.
type CategoryRepository interface {
	List(ctx context.Context) ([]models.Category, error)
	Create(ctx context.Context, category models.Category) error
	Delete(ctx context.Context, id string) error
}

// SettingsRepository reads and merges the settings singleton. Get returns the
// zero Settings when the document has never been written.
type SettingsRepository interface {
	Get(ctx context.Context) (models.Settings, error)
	Upsert(ctx context.Context, patch models.SettingsPatch) (models.Settings, error)
}
