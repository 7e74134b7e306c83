package handlers

import (
	"context"
	"io"
	"time"

	"github.com/ibrbtv/backend/internal/admin"
	"github.com/ibrbtv/backend/internal/live"
	"github.com/ibrbtv/backend/internal/models"
	"github.com/ibrbtv/backend/internal/viewer"
)

// AdminUserStore captures the persistence operations required by the auth handlers.
type AdminUserStore interface {
	FindByEmail(ctx context.Context, email string) (models.AdminUser, error)
	Update(ctx context.Context, user models.AdminUser) error
}

// SessionManager issues, refreshes and revokes admin tokens.
type SessionManager interface {
	Issue(ctx context.Context, userID string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Revoke(ctx context.Context, refreshToken string)
}

// ResetTokenIssuer hands out and redeems single-use password reset tokens.
type ResetTokenIssuer interface {
	Issue(email string) (string, time.Time, error)
	Consume(token string) (string, error)
}

// ResetNotifier delivers reset tokens to admins.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, email, token string, expiresAt time.Time) error
}

// SnapshotSource publishes the latest catalog snapshot.
type SnapshotSource interface {
	Current() (live.Snapshot, bool)
	Subscribe() (<-chan live.Snapshot, func())
}

// ViewerSessions tracks watch-page sessions.
type ViewerSessions interface {
	Open(id string) (*viewer.Session, bool)
	Get(id string) (*viewer.Session, bool)
}

// FailureFeed streams background write failures.
type FailureFeed interface {
	Subscribe() (<-chan live.WriteFailure, func())
}

// CatalogAdmin is the set of admin form operations.
type CatalogAdmin interface {
	ListVideos(ctx context.Context) ([]models.Video, error)
	AddVideo(ctx context.Context, in admin.AddVideoInput) (models.Video, error)
	UpdateVideo(ctx context.Context, id string, in admin.UpdateVideoInput) (models.Video, error)
	DeleteVideo(ctx context.Context, id string) error
	WatchNow(ctx context.Context, id string) (models.Video, error)
	SetLive(ctx context.Context, id string, live bool) (models.Settings, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	AddCategory(ctx context.Context, name string) (models.Category, error)
	DeleteCategory(ctx context.Context, id string) error
	GetSettings(ctx context.Context) (models.Settings, error)
	UpdateSettings(ctx context.Context, in admin.SettingsInput) (models.Settings, error)
	UploadLogo(ctx context.Context, name, contentType string, r io.Reader) (models.Settings, error)
}

var _ CatalogAdmin = (*admin.Service)(nil)
var _ SnapshotSource = (*live.Hub)(nil)
var _ ViewerSessions = (*viewer.Registry)(nil)
var _ FailureFeed = (*live.Reporter)(nil)
