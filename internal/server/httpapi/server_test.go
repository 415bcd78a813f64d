package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avoronin/authkeeper/internal/common"
	"github.com/avoronin/authkeeper/internal/logging"
	"github.com/avoronin/authkeeper/internal/server/auth"
	"github.com/avoronin/authkeeper/internal/server/config"
	"github.com/avoronin/authkeeper/internal/server/models"
)

// ---- test logger ----

type nopLogger struct{}

func (n nopLogger) Info(context.Context, string, ...any)  {}
func (n nopLogger) Warn(context.Context, string, ...any)  {}
func (n nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger            { return n }

// ---- fakes ----

type stubAuth struct {
	loginPair   *models.TokenPair
	loginErr    error
	refreshPair *models.TokenPair
	refreshErr  error
	logoutErr   error
	loggedOut   []string

	providerPair   *models.TokenPair
	providerErr    error
	providerEmails []string
	providerAgents []string
}

func (f *stubAuth) Login(ctx context.Context, email, password, userAgent string) (*models.TokenPair, error) {
	return f.loginPair, f.loginErr
}

func (f *stubAuth) Refresh(ctx context.Context, refreshToken, userAgent string) (*models.TokenPair, error) {
	return f.refreshPair, f.refreshErr
}

func (f *stubAuth) Logout(ctx context.Context, refreshToken string) error {
	f.loggedOut = append(f.loggedOut, refreshToken)
	return f.logoutErr
}

func (f *stubAuth) ProviderAuth(ctx context.Context, email, userAgent, provider string) (*models.TokenPair, error) {
	f.providerEmails = append(f.providerEmails, email)
	f.providerAgents = append(f.providerAgents, userAgent)
	return f.providerPair, f.providerErr
}

type stubUsers struct {
	registerOut *models.User
	registerErr error

	findOut *models.User
	findErr error

	deleteErr error
	deleted   []string
}

func (f *stubUsers) Register(ctx context.Context, email, password string) (*models.User, error) {
	return f.registerOut, f.registerErr
}

func (f *stubUsers) Find(ctx context.Context, idOrEmail string) (*models.User, error) {
	return f.findOut, f.findErr
}

func (f *stubUsers) Delete(ctx context.Context, id string, actor *auth.Claims) error {
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

type stubFetcher struct {
	email string
	err   error
}

func (f *stubFetcher) FetchEmail(ctx context.Context, accessToken string) (string, error) {
	return f.email, f.err
}

// ---- helpers ----

func testServerConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "k"
	return cfg
}

func newTestServer(a *stubAuth, u *stubUsers, google *stubFetcher) *Server {
	if google == nil {
		return NewServer(testServerConfig(), nopLogger{}, a, u, nil, nil)
	}
	return NewServer(testServerConfig(), nopLogger{}, a, u, google, nil)
}

func testPair(token string) *models.TokenPair {
	return &models.TokenPair{
		AccessToken: "access-jwt",
		RefreshToken: &models.RefreshToken{
			Token:     token,
			UserID:    "u1",
			UserAgent: "Chrome",
			ExpiresAt: time.Now().Add(time.Hour).Truncate(time.Second),
		},
	}
}

func findCookie(t *testing.T, resp *http.Response, name string) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ---- tests ----

func TestRegister_Created(t *testing.T) {
	users := &stubUsers{registerOut: &models.User{
		ID:           "u1",
		Email:        "a@x.com",
		PasswordHash: "hash-never-leaves",
		Roles:        []string{models.RoleUser},
	}}
	s := newTestServer(&stubAuth{}, users, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"email":"a@x.com","password":"pass123"}`))
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "u1", body["id"])
	assert.Equal(t, "a@x.com", body["email"])
	assert.NotContains(t, rec.Body.String(), "hash-never-leaves")
}

func TestRegister_Validation(t *testing.T) {
	s := newTestServer(&stubAuth{}, &stubUsers{}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"email":"a@x.com"}`))
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegister_Duplicate(t *testing.T) {
	s := newTestServer(&stubAuth{}, &stubUsers{registerErr: common.ErrAlreadyExists}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"email":"a@x.com","password":"pass123"}`))
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLogin_SetsCookieAndReturnsAccessToken(t *testing.T) {
	s := newTestServer(&stubAuth{loginPair: testPair("refresh-1")}, &stubUsers{}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"a@x.com","password":"pass123"}`))
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	cookie := findCookie(t, rec.Result(), refreshTokenCookie)
	require.NotNil(t, cookie, "refresh cookie must be set")
	assert.Equal(t, "refresh-1", cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.WithinDuration(t, time.Now().Add(time.Hour), cookie.Expires, 5*time.Second)

	var body tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "access-jwt", body.AccessToken)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	s := newTestServer(&stubAuth{loginErr: common.ErrInvalidCredentials}, &stubUsers{}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"a@x.com","password":"bad"}`))
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, findCookie(t, rec.Result(), refreshTokenCookie))
}

func TestLogout_WithoutCookie(t *testing.T) {
	a := &stubAuth{}
	s := newTestServer(a, &stubUsers{}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/logout", nil)
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{""}, a.loggedOut)
}

func TestLogout_WithCookie(t *testing.T) {
	a := &stubAuth{}
	s := newTestServer(a, &stubUsers{}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: refreshTokenCookie, Value: "refresh-1"})
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"refresh-1"}, a.loggedOut)

	cookie := findCookie(t, rec.Result(), refreshTokenCookie)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value, "cookie must be cleared")
}

func TestRefresh_WithoutCookie(t *testing.T) {
	s := newTestServer(&stubAuth{}, &stubUsers{}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/refresh-tokens", nil)
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefresh_RotatesCookie(t *testing.T) {
	s := newTestServer(&stubAuth{refreshPair: testPair("refresh-2")}, &stubUsers{}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/refresh-tokens", nil)
	req.AddCookie(&http.Cookie{Name: refreshTokenCookie, Value: "refresh-1"})
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	cookie := findCookie(t, rec.Result(), refreshTokenCookie)
	require.NotNil(t, cookie)
	assert.Equal(t, "refresh-2", cookie.Value)
}

func TestRefresh_Unauthenticated_ClearsCookie(t *testing.T) {
	s := newTestServer(&stubAuth{refreshErr: common.ErrUnauthenticated}, &stubUsers{}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/refresh-tokens", nil)
	req.AddCookie(&http.Cookie{Name: refreshTokenCookie, Value: "stale"})
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	cookie := findCookie(t, rec.Result(), refreshTokenCookie)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
}

func TestProviderSuccess_Google(t *testing.T) {
	a := &stubAuth{providerPair: testPair("refresh-3")}
	s := newTestServer(a, &stubUsers{}, &stubFetcher{email: "fed@x.com"})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/success-google?token=prov-token", nil)
	req.Header.Set("User-Agent", "Chrome")
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{"fed@x.com"}, a.providerEmails)
	assert.Equal(t, []string{"Chrome"}, a.providerAgents)

	cookie := findCookie(t, rec.Result(), refreshTokenCookie)
	require.NotNil(t, cookie)
	assert.Equal(t, "refresh-3", cookie.Value)
}

func TestProviderSuccess_FetchFailure(t *testing.T) {
	s := newTestServer(&stubAuth{}, &stubUsers{}, &stubFetcher{err: context.DeadlineExceeded})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/success-google?token=prov-token", nil)
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestProviderSuccess_CreationFailure(t *testing.T) {
	a := &stubAuth{providerErr: common.ErrProviderUserCreation}
	s := newTestServer(a, &stubUsers{}, &stubFetcher{email: "fed@x.com"})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/success-google?token=prov-token", nil)
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUser_RequiresAuth(t *testing.T) {
	s := newTestServer(&stubAuth{}, &stubUsers{}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/user/u1", nil)
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func bearerFor(t *testing.T, user *models.User) string {
	t.Helper()
	tok, err := auth.GenerateToken(user, []byte("k"), time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestGetUser_Found(t *testing.T) {
	target := &models.User{ID: "u2", Email: "b@x.com", Roles: []string{models.RoleUser}}
	s := newTestServer(&stubAuth{}, &stubUsers{findOut: target}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/user/b@x.com", nil)
	req.Header.Set("Authorization", bearerFor(t, &models.User{ID: "u1", Roles: []string{models.RoleUser}}))
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"b@x.com"`)
}

func TestDeleteUser_Forbidden(t *testing.T) {
	users := &stubUsers{deleteErr: common.ErrForbidden}
	s := newTestServer(&stubAuth{}, users, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/user/u2", nil)
	req.Header.Set("Authorization", bearerFor(t, &models.User{ID: "u1", Roles: []string{models.RoleUser}}))
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeleteUser_Self(t *testing.T) {
	users := &stubUsers{}
	s := newTestServer(&stubAuth{}, users, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/user/u1", nil)
	req.Header.Set("Authorization", bearerFor(t, &models.User{ID: "u1", Roles: []string{models.RoleUser}}))
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"u1"}, users.deleted)
}
