package repositories

import (
	"context"

	"github.com/ibrbtv/backend/internal/models"
)

// AdminUserRepository defines the data access contract for admin accounts.
type AdminUserRepository interface {
	Create(ctx context.Context, user models.AdminUser) error
	FindByEmail(ctx context.Context, email string) (models.AdminUser, error)
	Update(ctx context.Context, user models.AdminUser) error
}
