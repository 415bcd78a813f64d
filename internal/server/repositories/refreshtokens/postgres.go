// Package refreshtokens provides a PostgreSQL-backed repository for managing
// refresh tokens used in the server's authentication flow.
package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/avoronin/authkeeper/internal/common"
	"github.com/avoronin/authkeeper/internal/dbx"
	"github.com/avoronin/authkeeper/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert relies on the UNIQUE (user_id, user_agent) constraint: two
// concurrent writes for the same pair serialize on the conflict target
// instead of racing into duplicate rows.
func (r *PostgresRepository) Upsert(ctx context.Context, userID, userAgent, token string, validity time.Duration) (*models.RefreshToken, error) {
	query := `
		INSERT INTO refresh_tokens (token, user_id, user_agent, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, user_agent)
		DO UPDATE SET token = EXCLUDED.token, expires_at = EXCLUDED.expires_at
		RETURNING id, token, user_id, user_agent, expires_at, created_at
	`
	row := &models.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, token, userID, userAgent, time.Now().Add(validity)).
		Scan(&row.ID, &row.Token, &row.UserID, &row.UserAgent, &row.ExpiresAt, &row.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return row, nil
}

// Consume removes the row in the same statement that reads it, so only one
// of several concurrent callers presenting the same token gets the row back.
func (r *PostgresRepository) Consume(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE token = $1
		RETURNING id, token, user_id, user_agent, expires_at, created_at
	`
	row := &models.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, token).
		Scan(&row.ID, &row.Token, &row.UserID, &row.UserAgent, &row.ExpiresAt, &row.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return row, nil
}

// Find returns the refresh token row for the given token string.
// If not found, it returns common.ErrNotFound.
func (r *PostgresRepository) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `
		SELECT id, token, user_id, user_agent, expires_at, created_at
		FROM refresh_tokens
		WHERE token = $1
	`
	row := &models.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, token).
		Scan(&row.ID, &row.Token, &row.UserID, &row.UserAgent, &row.ExpiresAt, &row.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return row, nil
}

// Delete removes a refresh token by its token string.
func (r *PostgresRepository) Delete(ctx context.Context, token string) error {
	query := `
		DELETE FROM refresh_tokens
		WHERE token = $1
	`
	if _, err := r.db.ExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// DeleteExpired removes rows whose expiry has passed.
func (r *PostgresRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE expires_at <= now()
	`
	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return affected, nil
}
