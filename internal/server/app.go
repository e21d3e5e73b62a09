// Package server initializes and runs the vaultd server: it selects the
// storage and state-store backends, runs migrations, wires the OIDC
// provider and services, and serves the HTTP API until shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/akarpov91/vaultd/internal/logging"
	"github.com/akarpov91/vaultd/internal/server/config"
	"github.com/akarpov91/vaultd/internal/server/httpapi"
	"github.com/akarpov91/vaultd/internal/server/keys"
	"github.com/akarpov91/vaultd/internal/server/models"
	"github.com/akarpov91/vaultd/internal/server/oidc"
	"github.com/akarpov91/vaultd/internal/server/repositories/repomanager"
	"github.com/akarpov91/vaultd/internal/server/services"
	"github.com/akarpov91/vaultd/internal/server/statestore"
)

const (
	sweepInterval   = 10 * time.Minute
	shutdownTimeout = 10 * time.Second
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	auth    *services.AuthService
	records *services.RecordService
	tags    *services.TagService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	var db *sql.DB
	var m repomanager.RepositoryManager

	switch c.StorageBackend {
	case "postgres":
		var err error
		db, err = sql.Open("pgx", c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		m = repomanager.NewPostgresRepositoryManager()
		if err := m.RunMigrations(ctx, db); err != nil {
			return nil, fmt.Errorf("db migration error: %w", err)
		}
	case "memory":
		m = repomanager.NewMemoryRepositoryManager()
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", c.StorageBackend)
	}

	var states statestore.Store[models.OAuthState]
	switch c.StateStoreBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		states = statestore.NewRedis[models.OAuthState](client, "oauth_state:")
	case "memory":
		states = statestore.NewMemory[models.OAuthState]()
	default:
		return nil, fmt.Errorf("unknown state store backend: %s", c.StateStoreBackend)
	}

	provider := oidc.NewProvider(oidc.Config{
		Issuer:       c.OIDCIssuer,
		ClientID:     c.OIDCClientID,
		ClientSecret: c.OIDCClientSecret,
		RedirectURL:  c.OIDCRedirectURL,
	})
	deriver := keys.NewDeriver(c.AppSecret, c.KDFIterations)

	return &App{
		config:  c,
		logger:  logger,
		db:      db,
		auth:    services.NewAuthService(db, m, provider, states, c),
		records: services.NewRecordService(db, m, deriver, c),
		tags:    services.NewTagService(db, m),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	handler := httpapi.NewHandler(app.auth, app.records, app.tags,
		[]byte(app.config.SecretKey), app.logger)

	server := &http.Server{
		Addr:    app.config.EndpointAddrHTTP,
		Handler: handler.Routes(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(shutdownCtx, "http shutdown error", "error", err)
		}
	}()

	app.logger.Info(ctx, "http server listening", "addr", app.config.EndpointAddrHTTP)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, "http server error", "error", err)
		cancelFunc()
	}
}

// startSessionSweeper periodically removes expired sessions and OAuth
// states so abandoned logins do not accumulate.
func (app *App) startSessionSweeper(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.auth.SweepSessions(ctx)
			if err != nil {
				app.logger.Error(ctx, "session sweep error", "error", err)
				continue
			}
			if n > 0 {
				app.logger.Info(ctx, "swept expired sessions", "count", n)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting vaultd",
		"storage", app.config.StorageBackend,
		"state_store", app.config.StateStoreBackend)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startSessionSweeper(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error(ctx, "db close error", "error", err)
		}
	}
}
