// Package refreshtokens declares the server-side repository contract for
// managing refresh tokens in persistent storage.
package refreshtokens

import (
	"context"
	"time"

	"github.com/avoronin/authkeeper/internal/server/models"
)

// Repository defines operations for issuing, consuming, and revoking refresh
// tokens. Every operation is a single atomic statement against the backing
// store; callers never compose a read with a dependent write.
type Repository interface {
	// Upsert writes the refresh token row for the (userID, userAgent) pair
	// in one conditional statement: an existing row for the pair gets the
	// new token value and expiry in place, otherwise a new row is inserted.
	// The expiry is now+validity. Returns the persisted row.
	Upsert(ctx context.Context, userID, userAgent, token string, validity time.Duration) (*models.RefreshToken, error)

	// Consume deletes the row matching the token value and returns it.
	// The row is removed whether or not it has expired, so a presented
	// token can never be replayed. Returns common.ErrNotFound when no row
	// matched.
	Consume(ctx context.Context, token string) (*models.RefreshToken, error)

	// Find looks up a refresh token without consuming it. Returns
	// common.ErrNotFound when the token is absent.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete removes a refresh token by its token string. Deleting a
	// non-existent token is not an error.
	Delete(ctx context.Context, token string) error

	// DeleteExpired removes all rows whose expiry has passed and reports
	// how many were removed.
	DeleteExpired(ctx context.Context) (int64, error)
}
