package services

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avoronin/authkeeper/internal/common"
	"github.com/avoronin/authkeeper/internal/dbx"
	"github.com/avoronin/authkeeper/internal/logging"
	"github.com/avoronin/authkeeper/internal/server/models"
	refreshtokensrepo "github.com/avoronin/authkeeper/internal/server/repositories/refreshtokens"
	usersrepo "github.com/avoronin/authkeeper/internal/server/repositories/users"
)

// ---- test logger ----

type nopLogger struct{}

func (n nopLogger) Info(context.Context, string, ...any)  {}
func (n nopLogger) Warn(context.Context, string, ...any)  {}
func (n nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger            { return n }

// ---- in-memory refresh token repo ----

// memRefreshRepo mirrors the semantics of the PostgreSQL repository: Upsert
// keys on (user, agent), Consume is delete-returning, so at most one of
// several concurrent consumers of the same token wins.
type memRefreshRepo struct {
	mu   sync.Mutex
	rows map[string]*models.RefreshToken // keyed by token value
}

func newMemRefreshRepo() *memRefreshRepo {
	return &memRefreshRepo{rows: map[string]*models.RefreshToken{}}
}

func (m *memRefreshRepo) Upsert(ctx context.Context, userID, userAgent, token string, validity time.Duration) (*models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row := &models.RefreshToken{
		ID:        uuid.NewString(),
		Token:     token,
		UserID:    userID,
		UserAgent: userAgent,
		ExpiresAt: time.Now().Add(validity),
		CreatedAt: time.Now(),
	}
	for k, existing := range m.rows {
		if existing.UserID == userID && existing.UserAgent == userAgent {
			row.ID = existing.ID
			row.CreatedAt = existing.CreatedAt
			delete(m.rows, k)
			break
		}
	}
	m.rows[token] = row
	out := *row
	return &out, nil
}

func (m *memRefreshRepo) Consume(ctx context.Context, token string) (*models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[token]
	if !ok {
		return nil, common.ErrNotFound
	}
	delete(m.rows, token)
	out := *row
	return &out, nil
}

func (m *memRefreshRepo) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[token]
	if !ok {
		return nil, common.ErrNotFound
	}
	out := *row
	return &out, nil
}

func (m *memRefreshRepo) Delete(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.rows, token)
	return nil
}

func (m *memRefreshRepo) DeleteExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	now := time.Now()
	for k, row := range m.rows {
		if row.Expired(now) {
			delete(m.rows, k)
			n++
		}
	}
	return n, nil
}

func (m *memRefreshRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// countFor returns the live rows for a (user, agent) pair.
func (m *memRefreshRepo) countFor(userID, userAgent string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, row := range m.rows {
		if row.UserID == userID && row.UserAgent == userAgent {
			n++
		}
	}
	return n
}

// expire rewrites a row's expiry so it is already in the past.
func (m *memRefreshRepo) expire(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[token]; ok {
		row.ExpiresAt = time.Now().Add(-time.Minute)
	}
}

// ---- in-memory users repo ----

type memUsersRepo struct {
	mu        sync.Mutex
	byID      map[string]*models.User
	createErr error
}

func newMemUsersRepo() *memUsersRepo {
	return &memUsersRepo{byID: map[string]*models.User{}}
}

func (m *memUsersRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return nil, m.createErr
	}
	for _, u := range m.byID {
		if u.Email == user.Email {
			return nil, common.ErrAlreadyExists
		}
	}
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.byID[user.ID] = user
	out := *user
	return &out, nil
}

func (m *memUsersRepo) GetByIDOrEmail(ctx context.Context, idOrEmail string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.byID {
		if u.ID == idOrEmail || u.Email == idOrEmail {
			out := *u
			return &out, nil
		}
	}
	return nil, common.ErrNotFound
}

func (m *memUsersRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[id]; !ok {
		return common.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

// ---- fake repo manager ----

type fakeRepoManager struct {
	u *memUsersRepo
	r *memRefreshRepo
}

func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository { return m.u }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository {
	return m.r
}
func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }

// ---- recording cache ----

type recordingCache struct {
	mu          sync.Mutex
	entries     map[string]*models.User
	sets        int
	invalidated []string
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: map[string]*models.User{}}
}

func (c *recordingCache) Get(ctx context.Context, key string) (*models.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if u, ok := c.entries[key]; ok {
		out := *u
		return &out, nil
	}
	return nil, common.ErrNotFound
}

func (c *recordingCache) Set(ctx context.Context, key string, user *models.User, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sets++
	out := *user
	c.entries[key] = &out
	return nil
}

func (c *recordingCache) Invalidate(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		delete(c.entries, k)
		c.invalidated = append(c.invalidated, k)
	}
	return nil
}
