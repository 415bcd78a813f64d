// Package server initializes and runs the authentication server.
// It wires the database, the optional Redis user cache, the token services
// and the HTTP API, and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/avoronin/authkeeper/internal/logging"
	"github.com/avoronin/authkeeper/internal/server/cache"
	"github.com/avoronin/authkeeper/internal/server/config"
	"github.com/avoronin/authkeeper/internal/server/httpapi"
	"github.com/avoronin/authkeeper/internal/server/providers"
	"github.com/avoronin/authkeeper/internal/server/repositories/repomanager"
	"github.com/avoronin/authkeeper/internal/server/services"
)

// expiredTokenSweepInterval is how often the background janitor removes
// refresh tokens whose expiry has passed. Expired rows are already rejected
// on use, so the sweep only reclaims space and its cadence is not critical.
const expiredTokenSweepInterval = 1 * time.Hour

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	repoManager repomanager.RepositoryManager
	authService *services.AuthService
	userService *services.UserService
	httpServer  *httpapi.Server
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	var userCache cache.UserCache = cache.Noop{}
	if c.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		userCache = cache.NewRedisUserCache(client)
	}

	us := services.NewUserService(db, rm, userCache, logger, c)
	as := services.NewAuthService(db, rm, us, logger, c)

	hs := httpapi.NewServer(c, logger, as, us,
		providers.NewGoogle(c.GoogleTokenInfoURL),
		providers.NewYandex(c.YandexLoginInfoURL))

	return &App{
		config:      c,
		logger:      logger,
		db:          db,
		repoManager: rm,
		authService: as,
		userService: us,
		httpServer:  hs,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.httpServer.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// runExpiredTokenJanitor periodically purges refresh tokens past their
// expiry. It exits when the context is cancelled.
func (app *App) runExpiredTokenJanitor(ctx context.Context) {
	ticker := time.NewTicker(expiredTokenSweepInterval)
	defer ticker.Stop()

	repo := app.repoManager.RefreshTokens(app.db)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := repo.DeleteExpired(ctx)
			if err != nil {
				app.logger.Error(ctx, "expired token sweep failed", "error", err)
				continue
			}
			if deleted > 0 {
				app.logger.Info(ctx, "expired tokens removed", "count", deleted)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.runExpiredTokenJanitor(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, err.Error())
	}
}
