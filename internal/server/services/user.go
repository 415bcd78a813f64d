// Package services contains server-side business logic. This file implements
// UserService, the user-management collaborator: registration, cached lookup,
// and deletion with cache invalidation.
package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/avoronin/authkeeper/internal/common"
	"github.com/avoronin/authkeeper/internal/logging"
	"github.com/avoronin/authkeeper/internal/server/auth"
	"github.com/avoronin/authkeeper/internal/server/cache"
	"github.com/avoronin/authkeeper/internal/server/config"
	"github.com/avoronin/authkeeper/internal/server/models"
	"github.com/avoronin/authkeeper/internal/server/repositories/repomanager"
)

// UserService provides user-management operations:
// - Register: create local users with hashed passwords
// - Find: cached lookup by id or email
// - Delete: remove a user (self or admin), invalidating cache entries
// - CreateProviderUser: create provider-only accounts for federated login
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	cache       cache.UserCache
	logger      logging.Logger
	cacheTTL    time.Duration
}

// NewUserService constructs a UserService using repositories, the user cache,
// and server config. Cached entries live as long as an access token stays
// valid, so a stale entry can never outlive the token minted from it.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, c cache.UserCache, l logging.Logger, cfg *config.Config) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		cache:       c,
		logger:      l.With("module", "user_service"),
		cacheTTL:    cfg.AccessTokenValidityDuration,
	}
}

// Register creates a local user with a bcrypt password hash and the default
// role set. A duplicate email yields common.ErrAlreadyExists.
func (s *UserService) Register(ctx context.Context, email, password string) (*models.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, common.ErrInternal
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		Roles:        []string{models.RoleUser},
	}

	created, err := s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, common.ErrAlreadyExists
		}
		s.logger.Error(ctx, "user create failed", "error", err)
		return nil, common.ErrStorageUnavailable
	}
	return created, nil
}

// CreateProviderUser creates a provider-only account: no usable password
// hash, the provider tag set, default roles.
func (s *UserService) CreateProviderUser(ctx context.Context, email, provider string) (*models.User, error) {
	user := &models.User{
		Email:    email,
		Roles:    []string{models.RoleUser},
		Provider: provider,
	}

	created, err := s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, common.ErrAlreadyExists
		}
		s.logger.Error(ctx, "provider user create failed", "error", err, "provider", provider)
		return nil, common.ErrStorageUnavailable
	}
	return created, nil
}

// Find returns the user for the given id or email, consulting the cache
// first. A miss populates the cache. Absent users yield common.ErrNotFound;
// storage faults are never conflated with absence.
func (s *UserService) Find(ctx context.Context, idOrEmail string) (*models.User, error) {
	if user, err := s.cache.Get(ctx, idOrEmail); err == nil {
		return user, nil
	} else if !errors.Is(err, common.ErrNotFound) {
		s.logger.Warn(ctx, "cache get failed", "error", err)
	}

	user, err := s.repomanager.Users(s.db).GetByIDOrEmail(ctx, idOrEmail)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		s.logger.Error(ctx, "user lookup failed", "error", err)
		return nil, common.ErrStorageUnavailable
	}

	if err := s.cache.Set(ctx, idOrEmail, user, s.cacheTTL); err != nil {
		s.logger.Warn(ctx, "cache set failed", "error", err)
	}
	return user, nil
}

// Delete removes a user. Only the user themselves or a caller holding the
// ADMIN role may delete; others get common.ErrForbidden. Cache entries for
// both the id and the email are invalidated before the row is removed.
func (s *UserService) Delete(ctx context.Context, id string, actor *auth.Claims) error {
	if actor.UserID != id && !hasRole(actor.Roles, models.RoleAdmin) {
		return common.ErrForbidden
	}

	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByIDOrEmail(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		s.logger.Error(ctx, "user lookup failed", "error", err)
		return common.ErrStorageUnavailable
	}

	if err := s.cache.Invalidate(ctx, user.ID, user.Email); err != nil {
		s.logger.Warn(ctx, "cache invalidate failed", "error", err)
	}

	if err := repo.Delete(ctx, user.ID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		s.logger.Error(ctx, "user delete failed", "error", err)
		return common.ErrStorageUnavailable
	}
	return nil
}

func hasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
