// Package httpapi exposes the session endpoints over HTTP: registration,
// login, logout, refresh-token rotation, federated provider callbacks, and
// the user resource. It owns cookie plumbing and access-token middleware;
// all business rules live in the services package.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/avoronin/authkeeper/internal/logging"
	"github.com/avoronin/authkeeper/internal/server/auth"
	"github.com/avoronin/authkeeper/internal/server/config"
	"github.com/avoronin/authkeeper/internal/server/models"
	"github.com/avoronin/authkeeper/internal/server/providers"
)

// authSvc is the slice of the issuance engine the HTTP layer consumes.
type authSvc interface {
	Login(ctx context.Context, email, password, userAgent string) (*models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken, userAgent string) (*models.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	ProviderAuth(ctx context.Context, email, userAgent, provider string) (*models.TokenPair, error)
}

// userSvc is the slice of the user collaborator the HTTP layer consumes.
type userSvc interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	Find(ctx context.Context, idOrEmail string) (*models.User, error)
	Delete(ctx context.Context, id string, actor *auth.Claims) error
}

// Server translates HTTP requests (cookies, headers, JSON bodies) into calls
// against the issuance engine and user service.
type Server struct {
	address      string
	mux          *http.ServeMux
	auth         authSvc
	users        userSvc
	google       providers.EmailFetcher
	yandex       providers.EmailFetcher
	logger       logging.Logger
	jwtSecret    []byte
	cookieSecure bool
}

// NewServer wires the HTTP surface. The provider fetchers may be nil, which
// disables the corresponding callback routes.
func NewServer(cfg *config.Config, l logging.Logger, authService authSvc, userService userSvc, google, yandex providers.EmailFetcher) *Server {
	s := &Server{
		address:      cfg.EndpointAddr,
		mux:          http.NewServeMux(),
		auth:         authService,
		users:        userService,
		google:       google,
		yandex:       yandex,
		logger:       l.With("module", "http_server"),
		jwtSecret:    []byte(cfg.SecretKey),
		cookieSecure: cfg.CookieSecure,
	}
	s.initRoutes()
	return s
}

func (s *Server) initRoutes() {
	s.mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.HandleFunc("GET /api/auth/logout", s.handleLogout)
	s.mux.HandleFunc("GET /api/auth/refresh-tokens", s.handleRefresh)

	if s.google != nil {
		s.mux.HandleFunc("GET /api/auth/success-google", s.handleProviderSuccess(s.google, models.ProviderGoogle))
	}
	if s.yandex != nil {
		s.mux.HandleFunc("GET /api/auth/success-yandex", s.handleProviderSuccess(s.yandex, models.ProviderYandex))
	}

	s.mux.Handle("GET /api/user/{idOrEmail}", s.requireAuth(http.HandlerFunc(s.handleGetUser)))
	s.mux.Handle("DELETE /api/user/{id}", s.requireAuth(http.HandlerFunc(s.handleDeleteUser)))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
