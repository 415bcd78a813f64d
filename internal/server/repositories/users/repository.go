// Package users declares the server-side repository contract for user
// records in persistent storage.
package users

import (
	"context"

	"github.com/avoronin/authkeeper/internal/server/models"
)

// Repository defines operations for creating, retrieving, and deleting users.
type Repository interface {
	// Create stores a new user and returns it with server-assigned fields
	// populated. A duplicate email yields common.ErrAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByIDOrEmail looks a user up by either their id or their email.
	// Implementations return common.ErrNotFound when the user is absent.
	GetByIDOrEmail(ctx context.Context, idOrEmail string) (*models.User, error)

	// Delete removes a user by id. Deleting a non-existent user yields
	// common.ErrNotFound.
	Delete(ctx context.Context, id string) error
}
