// Package cache defines the user-lookup cache abstraction injected into the
// user service. Caching is an optimization only: a miss or a cache fault must
// never fail a lookup, and every user mutation invalidates the affected keys.
package cache

import (
	"context"
	"time"

	"github.com/avoronin/authkeeper/internal/server/models"
)

// UserCache stores user records keyed by id or email.
type UserCache interface {
	// Get returns the cached user for the key or common.ErrNotFound on a miss.
	Get(ctx context.Context, key string) (*models.User, error)

	// Set stores the user under the key with the given TTL.
	Set(ctx context.Context, key string, user *models.User, ttl time.Duration) error

	// Invalidate removes the entries for the given keys. Missing keys are
	// not an error.
	Invalidate(ctx context.Context, keys ...string) error
}

// Noop is a UserCache that caches nothing. It is used when no Redis address
// is configured.
type Noop struct{}

func (Noop) Get(ctx context.Context, key string) (*models.User, error) {
	return nil, errNotCached
}

func (Noop) Set(ctx context.Context, key string, user *models.User, ttl time.Duration) error {
	return nil
}

func (Noop) Invalidate(ctx context.Context, keys ...string) error {
	return nil
}
