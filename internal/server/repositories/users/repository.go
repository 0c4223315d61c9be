// Package users persists coach and administrator accounts.
package users

import (
	"context"

	"github.com/google/uuid"

	"github.com/woodraft/draftauth/internal/server/models"
)

// Repository is the user record store. Lookups return common.ErrNotFound
// when no row matches; other failures wrap common.ErrPersistence.
type Repository interface {
	// FindByEmail looks a user up by email, case-insensitively.
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByInviteToken(ctx context.Context, token string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// ListNonAdmin returns every non-admin user ordered by creation time.
	ListNonAdmin(ctx context.Context) ([]*models.User, error)

	// Create inserts a new record and fills in its ID and CreatedAt. It fails
	// with common.ErrDuplicateEmail or common.ErrDuplicateToken when a
	// uniqueness constraint is violated.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	// Save overwrites the mutable columns of an existing record.
	Save(ctx context.Context, user *models.User) error
	// CompleteRegistration stores user only if its row still holds token.
	// The losing side of a concurrent redemption gets common.ErrNotFound.
	CompleteRegistration(ctx context.Context, user *models.User, token string) error
	// SetAdmin raises the admin flag of the user with the given email.
	SetAdmin(ctx context.Context, email string) error
}
