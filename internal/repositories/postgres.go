package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ibrbtv/backend/internal/db"
	"github.com/ibrbtv/backend/internal/models"
)

// PostgresAdminUserRepository provides PostgreSQL-backed persistence for admin accounts.
type PostgresAdminUserRepository struct {
	pool db.Pool
}

// NewPostgresAdminUserRepository constructs an admin user repository backed by PostgreSQL.
func NewPostgresAdminUserRepository(pool db.Pool) *PostgresAdminUserRepository {
	return &PostgresAdminUserRepository{pool: pool}
}

// Create persists a new admin account.
func (r *PostgresAdminUserRepository) Create(ctx context.Context, user models.AdminUser) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO admin_users (id, email, password_hash, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5)
    `, user.ID, user.Email, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert admin user: %w", err)
	}

	return nil
}

// FindByEmail fetches an admin account by email address.
func (r *PostgresAdminUserRepository) FindByEmail(ctx context.Context, email string) (models.AdminUser, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.AdminUser{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, email, password_hash, created_at, updated_at
        FROM admin_users
        WHERE email = $1
    `, email)

	var user models.AdminUser
	if err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.AdminUser{}, ErrNotFound
		}
		return models.AdminUser{}, fmt.Errorf("select admin user by email: %w", err)
	}

	return user, nil
}

// Update modifies an existing admin account.
func (r *PostgresAdminUserRepository) Update(ctx context.Context, user models.AdminUser) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE admin_users
        SET email = $2, password_hash = $3, updated_at = $4
        WHERE id = $1
    `, user.ID, user.Email, user.PasswordHash, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("update admin user: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// PostgresVideoRepository provides PostgreSQL-backed persistence for catalog videos.
type PostgresVideoRepository struct {
	pool     db.Pool
	notifier ChangeNotifier
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
// notifier may be nil when nobody listens for changes.
func NewPostgresVideoRepository(pool db.Pool, notifier ChangeNotifier) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool, notifier: notifierOrNop(notifier)}
}

const videoColumns = `id, youtube_url, title, summary, category, final_category, scheduled_at, view_count, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (models.Video, error) {
	var v models.Video
	if err := row.Scan(&v.ID, &v.YouTubeURL, &v.Title, &v.Summary, &v.Category, &v.FinalCategory, &v.ScheduledAt, &v.ViewCount, &v.CreatedAt); err != nil {
		return models.Video{}, err
	}
	v.CreatedAt = v.CreatedAt.UTC()
	if v.ScheduledAt != nil {
		t := v.ScheduledAt.UTC()
		v.ScheduledAt = &t
	}
	return v, nil
}

// List returns every video, newest first.
func (r *PostgresVideoRepository) List(ctx context.Context) ([]models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT `+videoColumns+` FROM videos ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	videos := make([]models.Video, 0)
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}

	return videos, nil
}

// Get loads a single video.
func (r *PostgresVideoRepository) Get(ctx context.Context, id string) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	v, err := scanVideo(conn.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("select video: %w", err)
	}
	return v, nil
}

// Create stores a new video.
func (r *PostgresVideoRepository) Create(ctx context.Context, video models.Video) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO videos (id, youtube_url, title, summary, category, final_category, scheduled_at, view_count, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, video.ID, video.YouTubeURL, video.Title, video.Summary, video.Category, video.FinalCategory, video.ScheduledAt, video.ViewCount, video.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert video: %w", err)
	}

	r.notifier.Notify(ctx, CollectionVideos)
	return nil
}

// Update applies patch to the stored video and returns the result.
func (r *PostgresVideoRepository) Update(ctx context.Context, id string, patch models.VideoPatch) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("begin video update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := scanVideo(tx.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("select video for update: %w", err)
	}

	updated := ApplyVideoPatch(current, patch)

	if _, err := tx.Exec(ctx, `
        UPDATE videos
        SET title = $2, summary = $3, category = $4, final_category = $5, scheduled_at = $6
        WHERE id = $1
    `, id, updated.Title, updated.Summary, updated.Category, updated.FinalCategory, updated.ScheduledAt); err != nil {
		return models.Video{}, fmt.Errorf("update video: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Video{}, fmt.Errorf("commit video update: %w", err)
	}

	r.notifier.Notify(ctx, CollectionVideos)
	return updated, nil
}

// Delete removes a video. The settings live pointer is cleared by the foreign key.
func (r *PostgresVideoRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	r.notifier.Notify(ctx, CollectionVideos)
	r.notifier.Notify(ctx, CollectionSettings)
	return nil
}

// IncrementViews atomically bumps the view counter.
func (r *PostgresVideoRepository) IncrementViews(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `UPDATE videos SET view_count = view_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment video views: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	r.notifier.Notify(ctx, CollectionVideos)
	return nil
}

// PostgresCategoryRepository provides PostgreSQL-backed persistence for categories.
type PostgresCategoryRepository struct {
	pool     db.Pool
	notifier ChangeNotifier
}

// NewPostgresCategoryRepository constructs a category repository backed by PostgreSQL.
func NewPostgresCategoryRepository(pool db.Pool, notifier ChangeNotifier) *PostgresCategoryRepository {
	return &PostgresCategoryRepository{pool: pool, notifier: notifierOrNop(notifier)}
}

// List returns categories ordered by name.
func (r *PostgresCategoryRepository) List(ctx context.Context) ([]models.Category, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `SELECT id, name, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	categories := make([]models.Category, 0)
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.CreatedAt = c.CreatedAt.UTC()
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}

	return categories, nil
}

// Create stores a new category. A case-insensitive name clash yields ErrConflict.
func (r *PostgresCategoryRepository) Create(ctx context.Context, category models.Category) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO categories (id, name, created_at)
        VALUES ($1, $2, $3)
    `, category.ID, category.Name, category.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert category: %w", err)
	}

	r.notifier.Notify(ctx, CollectionCategories)
	return nil
}

// Delete removes a category. Videos keep their category label.
func (r *PostgresCategoryRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	r.notifier.Notify(ctx, CollectionCategories)
	return nil
}

// PostgresSettingsRepository stores the settings singleton row.
type PostgresSettingsRepository struct {
	pool     db.Pool
	notifier ChangeNotifier
	now      func() time.Time
}

// NewPostgresSettingsRepository constructs a settings repository backed by PostgreSQL.
func NewPostgresSettingsRepository(pool db.Pool, notifier ChangeNotifier) *PostgresSettingsRepository {
	return &PostgresSettingsRepository{pool: pool, notifier: notifierOrNop(notifier), now: func() time.Time { return time.Now().UTC() }}
}

// Get loads the settings row, returning zero Settings when it does not exist yet.
func (r *PostgresSettingsRepository) Get(ctx context.Context) (models.Settings, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Settings{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var s models.Settings
	err = conn.QueryRow(ctx, `
        SELECT logo_url, default_summary, COALESCE(live_video_id, ''), updated_at
        FROM settings
        WHERE id = $1
    `, models.SettingsDocumentID).Scan(&s.LogoURL, &s.DefaultSummary, &s.LiveVideoID, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Settings{}, nil
		}
		return models.Settings{}, fmt.Errorf("select settings: %w", err)
	}
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}

// Upsert merges patch into the settings row, creating it when absent. An
// empty LiveVideoID clears the live pointer.
func (r *PostgresSettingsRepository) Upsert(ctx context.Context, patch models.SettingsPatch) (models.Settings, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Settings{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var s models.Settings
	err = conn.QueryRow(ctx, `
        INSERT INTO settings (id, logo_url, default_summary, live_video_id, updated_at)
        VALUES ($1, COALESCE($2::TEXT, ''), COALESCE($3::TEXT, ''), NULLIF($4::TEXT, ''), $5)
        ON CONFLICT (id) DO UPDATE SET
            logo_url = COALESCE($2::TEXT, settings.logo_url),
            default_summary = COALESCE($3::TEXT, settings.default_summary),
            live_video_id = CASE WHEN $4::TEXT IS NULL THEN settings.live_video_id ELSE NULLIF($4::TEXT, '') END,
            updated_at = $5
        RETURNING logo_url, default_summary, COALESCE(live_video_id, ''), updated_at
    `, models.SettingsDocumentID, patch.LogoURL, patch.DefaultSummary, patch.LiveVideoID, r.now()).
		Scan(&s.LogoURL, &s.DefaultSummary, &s.LiveVideoID, &s.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return models.Settings{}, ErrNotFound
		}
		return models.Settings{}, fmt.Errorf("upsert settings: %w", err)
	}

	s.UpdatedAt = s.UpdatedAt.UTC()
	r.notifier.Notify(ctx, CollectionSettings)
	return s, nil
}

// ApplyVideoPatch returns v with the non-nil patch fields applied.
func ApplyVideoPatch(v models.Video, patch models.VideoPatch) models.Video {
	if patch.Title != nil {
		v.Title = *patch.Title
	}
	if patch.Summary != nil {
		v.Summary = *patch.Summary
	}
	if patch.Category != nil {
		v.Category = *patch.Category
	}
	if patch.FinalCategory != nil {
		v.FinalCategory = *patch.FinalCategory
	}
	switch {
	case patch.ClearSchedule:
		v.ScheduledAt = nil
	case patch.ScheduledAt != nil:
		t := patch.ScheduledAt.UTC()
		v.ScheduledAt = &t
	}
	return v
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ AdminUserRepository = (*PostgresAdminUserRepository)(nil)
var _ VideoRepository = (*PostgresVideoRepository)(nil)
var _ CategoryRepository = (*PostgresCategoryRepository)(nil)
var _ SettingsRepository = (*PostgresSettingsRepository)(nil)
