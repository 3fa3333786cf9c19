package repositories

import (
	"context"

	"github.com/alexrendlerCS/aicademy-sub000/internal/models"
)

// UserRepository stores application profiles
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.User, error)

	// Search matches full name or email, case-insensitive
	Search(ctx context.Context, filters UserFilters) ([]*models.User, int64, error)

	// Delete removes the profile and everything the user owns
	Delete(ctx context.Context, id string) error
}

// IdentityRepository talks to the external identity provider
type IdentityRepository interface {
	// ParseToken verifies a provider-issued JWT
	ParseToken(token string) (*models.Identity, error)

	GetByID(ctx context.Context, id string) (*models.Identity, error)
	GetByEmail(ctx context.Context, email string) (*models.Identity, error)
	List(ctx context.Context) ([]*models.Identity, error)

	Create(ctx context.Context, identity *models.Identity, password string) (*models.Identity, error)
	UpdateMetadata(ctx context.Context, id string, metadata map[string]string) error
	Delete(ctx context.Context, id string) error
}
