package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/authflow/internal/auth/http"
	"github.com/aussiebroadwan/authflow/internal/auth/service"
	"github.com/aussiebroadwan/authflow/internal/auth/store"
	"github.com/aussiebroadwan/authflow/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/authflow/internal/auth/store/drivers/redis"
	"github.com/aussiebroadwan/authflow/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/authflow/pkg/cryptox"
	"github.com/aussiebroadwan/authflow/pkg/jwtx"
	"github.com/aussiebroadwan/authflow/pkg/notify"
	"github.com/aussiebroadwan/authflow/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db         store.Store
	challenges store.MFAChallenges // nil for the sql backend
	redis      *redis.Challenges   // nil unless AUTH_MFA_BACKEND=redis
	jwt        *jwtx.Manager
	hasher     *cryptox.Hasher
	sender     notify.Mux

	// Services
	sessionService      *service.SessionService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "auth-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	pepper, err := cryptox.LoadOrCreatePepper(cfg.PepperFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}
	app.hasher = cryptox.NewHasher(pepper)

	app.jwt, err = InitSigningKeys(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize signing keys: %w", err)
	}

	app.sender, err = NewSender(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize notifications: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := app.initChallenges(ctx); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion,
		"database", app.cfg.DatabaseDriver, "mfa_backend", app.cfg.MFABackend)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		app.housekeepingService.Stop()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	var errs []error
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis", "error", err)
			errs = append(errs, err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		errs = append(errs, err)
	}

	app.logger.Info("auth service stopped")
	return errors.Join(errs...)
}

// initDatabase opens the configured store and applies migrations
func (app *Application) initDatabase(ctx context.Context) error {
	var (
		db  store.Store
		err error
	)
	switch app.cfg.DatabaseDriver {
	case "sqlite":
		db, err = sqlite.NewStore(app.cfg.DatabaseFile)
	case "postgres":
		if app.cfg.DatabaseDSN == "" {
			return errors.New("AUTH_DATABASE_DSN is required for the postgres driver")
		}
		db, err = postgres.NewStore(ctx, app.cfg.DatabaseDSN)
	default:
		return fmt.Errorf("unknown database driver %q", app.cfg.DatabaseDriver)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.DatabaseDriver)
	return nil
}

// initChallenges picks where pending MFA challenges are kept
func (app *Application) initChallenges(ctx context.Context) error {
	switch app.cfg.MFABackend {
	case "sql", "":
		// Left nil: challenges live in the database and share its transactions.
	case "redis":
		if app.cfg.RedisURL == "" {
			return errors.New("AUTH_REDIS_URL is required for the redis MFA backend")
		}
		rc, err := redis.Dial(ctx, app.cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.redis = rc
		app.challenges = rc
		app.logger.Info("mfa challenges stored in redis")
	default:
		return fmt.Errorf("unknown mfa backend %q", app.cfg.MFABackend)
	}
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	mfa := &service.MFAService{
		Store:        app.db,
		Challenges:   app.challenges,
		Sender:       app.sender,
		Issuer:       app.cfg.Issuer,
		ChallengeTTL: app.cfg.MFAChallengeTTL,
	}

	app.sessionService = &service.SessionService{
		Credentials: &service.CredentialService{
			Store:         app.db,
			Hasher:        app.hasher,
			DefaultRole:   app.cfg.DefaultRole,
			DefaultTenant: app.cfg.DefaultTenant,
		},
		Tokens: &service.TokenService{
			Store: app.db,
			JWT:   app.jwt,
			TTL:   app.cfg.TokenTTL,
		},
		MFA: mfa,
		OAuth: &service.OAuthService{
			Providers:        service.OAuthProviders(app.cfg.OAuthClientIDs),
			AllowedRedirects: app.cfg.OAuthAllowedRedirects,
		},
		Timeout: app.cfg.OperationTimeout,
	}

	app.housekeepingService = service.NewHousekeepingService(
		mfa,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.sessionService,
		app.db,
		BuildVersion,
		app.cfg.RateLimits,
		app.logger,
	)
	if app.redis != nil {
		router.Challenges = app.redis
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
