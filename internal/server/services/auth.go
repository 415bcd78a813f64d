// This file implements AuthService: the token issuance engine (login,
// refresh-token rotation, logout) and the federated provider login adapter.
package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/avoronin/authkeeper/internal/common"
	"github.com/avoronin/authkeeper/internal/logging"
	"github.com/avoronin/authkeeper/internal/server/auth"
	"github.com/avoronin/authkeeper/internal/server/config"
	"github.com/avoronin/authkeeper/internal/server/models"
	"github.com/avoronin/authkeeper/internal/server/repositories/repomanager"
)

// UserProvider is the slice of the user-management collaborator the issuance
// engine needs: cached lookup and lazy provider-account creation.
type UserProvider interface {
	Find(ctx context.Context, idOrEmail string) (*models.User, error)
	CreateProviderUser(ctx context.Context, email, provider string) (*models.User, error)
}

// AuthService orchestrates credential verification, the refresh token store,
// and the access token signer to produce token pairs. It enforces at most one
// live refresh token per (user, agent) and atomic rotation.
type AuthService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	users                        UserProvider
	logger                       logging.Logger
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
}

// NewAuthService constructs an AuthService using repositories, the user
// collaborator, and server config.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, users UserProvider, l logging.Logger, cfg *config.Config) *AuthService {
	return &AuthService{
		db:                           db,
		repomanager:                  m,
		users:                        users,
		logger:                       l.With("module", "auth_service"),
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
	}
}

// Login verifies the email/password pair and, on success, issues a token
// pair bound to the presented user agent. A missing user, a mismatched
// password, or a provider-only account all fail with ErrInvalidCredentials,
// never revealing which was the case. Blocked users are rejected with
// ErrForbidden.
func (s *AuthService) Login(ctx context.Context, email, password, userAgent string) (*models.TokenPair, error) {
	user, err := s.users.Find(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, common.ErrStorageUnavailable
	}

	if !auth.CheckPassword(password, user.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}

	if user.Blocked {
		return nil, common.ErrForbidden
	}

	return s.generateTokenPair(ctx, user, userAgent)
}

// Refresh exchanges a presented refresh token for a new pair. The presented
// row is consumed (deleted) in a single statement whether or not it has
// expired, so it can never be replayed; expiry, absence, and a dangling user
// reference all surface as ErrUnauthenticated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, userAgent string) (*models.TokenPair, error) {
	if refreshToken == "" {
		return nil, common.ErrUnauthenticated
	}

	repo := s.repomanager.RefreshTokens(s.db)

	row, err := repo.Consume(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthenticated
		}
		s.logger.Error(ctx, "refresh token consume failed", "error", err)
		return nil, common.ErrStorageUnavailable
	}

	if row.Expired(time.Now()) {
		return nil, common.ErrUnauthenticated
	}

	user, err := s.users.Find(ctx, row.UserID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthenticated
		}
		return nil, common.ErrStorageUnavailable
	}

	if user.Blocked {
		return nil, common.ErrUnauthenticated
	}

	return s.generateTokenPair(ctx, user, userAgent)
}

// Logout deletes the presented refresh token. A missing value and an unknown
// token are both a successful no-op.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	if err := s.repomanager.RefreshTokens(s.db).Delete(ctx, refreshToken); err != nil {
		s.logger.Error(ctx, "refresh token delete failed", "error", err)
		return common.ErrStorageUnavailable
	}
	return nil
}

// ProviderAuth handles federated login with an already-verified email. An
// existing user is issued a pair directly; an unknown email lazily creates a
// provider-only account, which is issued a pair in the same call. Creation
// failure yields ErrProviderUserCreation with no pair.
func (s *AuthService) ProviderAuth(ctx context.Context, email, userAgent, provider string) (*models.TokenPair, error) {
	user, err := s.users.Find(ctx, email)
	if err == nil {
		if user.Blocked {
			return nil, common.ErrForbidden
		}
		return s.generateTokenPair(ctx, user, userAgent)
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, common.ErrStorageUnavailable
	}

	created, err := s.users.CreateProviderUser(ctx, email, provider)
	if err != nil {
		s.logger.Error(ctx, "provider user creation failed", "error", err, "provider", provider)
		return nil, common.ErrProviderUserCreation
	}

	return s.generateTokenPair(ctx, created, userAgent)
}

// generateTokenPair signs a short-lived access token carrying {id, email,
// roles} and rotates the refresh token for (user, agent): a fresh random
// token value and expiry replace any existing row for the pair in one
// conditional upsert, otherwise a new row is inserted.
func (s *AuthService) generateTokenPair(ctx context.Context, user *models.User, userAgent string) (*models.TokenPair, error) {
	accessToken, err := auth.GenerateToken(user, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrInternal
	}

	row, err := s.repomanager.RefreshTokens(s.db).
		Upsert(ctx, user.ID, userAgent, uuid.NewString(), s.refreshTokenValidityDuration)
	if err != nil {
		s.logger.Error(ctx, "refresh token upsert failed", "error", err)
		return nil, common.ErrStorageUnavailable
	}

	return &models.TokenPair{AccessToken: accessToken, RefreshToken: row}, nil
}
