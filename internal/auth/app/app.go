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

	httpapi "github.com/aussiebroadwan/campus/internal/auth/http"
	"github.com/aussiebroadwan/campus/internal/auth/metrics"
	"github.com/aussiebroadwan/campus/internal/auth/service"
	"github.com/aussiebroadwan/campus/internal/auth/store"
	"github.com/aussiebroadwan/campus/internal/auth/store/drivers/memory"
	"github.com/aussiebroadwan/campus/internal/auth/store/drivers/redis"
	"github.com/aussiebroadwan/campus/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/campus/pkg/cryptox"
	"github.com/aussiebroadwan/campus/pkg/idx"
	"github.com/aussiebroadwan/campus/pkg/jwtx"
	"github.com/aussiebroadwan/campus/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application owns every long-lived dependency of the auth service and
// hands them to each other explicitly.
type Application struct {
	cfg    Config
	logger *slog.Logger

	hasher      *cryptox.Hasher
	directory   *sqlite.Store
	revocations store.Revocations
	keys        *jwtx.KeyProvider
	metrics     *metrics.Metrics

	authority           *service.Authority
	userService         *service.UserService
	housekeepingService *service.HousekeepingService // memory backend only
	housekeepingRunning bool

	server *http.Server
	router *httpapi.Router
}

// Option adjusts an Application before it is built.
type Option func(*Application)

// WithLogger replaces the logger built from Config.
func WithLogger(l *slog.Logger) Option {
	return func(app *Application) { app.logger = l }
}

// New creates a new Application instance with all dependencies initialized.
// On error everything opened so far is closed again.
func New(ctx context.Context, cfg Config, opts ...Option) (_ *Application, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "campus-auth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		metrics: metrics.New(),
	}
	for _, opt := range opts {
		opt(app)
	}

	defer func() {
		if err != nil {
			app.closeStores()
		}
	}()

	pepper, err := cryptox.LoadOrGeneratePepper(cfg.PepperFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}
	app.hasher = cryptox.NewHasher(pepper)

	if err := app.initDirectory(); err != nil {
		return nil, err
	}
	if err := app.initRevocations(ctx); err != nil {
		return nil, err
	}

	app.keys, err = InitKeyProvider(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize signing key: %w", err)
	}

	if err := app.initServices(); err != nil {
		return nil, err
	}

	created, err := app.userService.BootstrapAdmin(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword)
	if err != nil {
		return nil, err
	}
	if created {
		app.logger.Info("bootstrap admin created", "email", cfg.BootstrapAdminEmail)
	}

	app.initHTTP()

	return app, nil
}

// Handler is the fully wired HTTP handler.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	if app.housekeepingService != nil {
		app.housekeepingService.Start()
		app.housekeepingRunning = true
	}

	app.logger.Info("auth service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"revocation_backend", app.cfg.RevocationBackend,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.stopHousekeeping()
			return errors.Join(fmt.Errorf("server failed: %w", err), app.closeStores())
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains the HTTP server and closes both stores.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.stopHousekeeping()

	if err := app.closeStores(); err != nil {
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

func (app *Application) stopHousekeeping() {
	if app.housekeepingRunning {
		app.housekeepingService.Stop()
		app.housekeepingRunning = false
	}
}

func (app *Application) closeStores() error {
	var errs []error
	if app.revocations != nil {
		if err := app.revocations.Close(); err != nil {
			app.logger.Error("error closing revocation store", "error", err)
			errs = append(errs, err)
		}
	}
	if app.directory != nil {
		if err := app.directory.Close(); err != nil {
			app.logger.Error("error closing database", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// initDirectory opens the user database and applies migrations.
func (app *Application) initDirectory() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn, app.hasher)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.directory = db

	if err := db.ApplyMigrations(); err != nil {
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initRevocations connects the configured revocation backend. The memory
// backend only suits a single instance and gets a pruning worker.
func (app *Application) initRevocations(ctx context.Context) error {
	switch app.cfg.RevocationBackend {
	case BackendMemory:
		revs := memory.New(memory.WithLogger(app.logger))
		app.revocations = revs
		app.housekeepingService = service.NewHousekeepingService(revs, app.logger, app.cfg.HousekeepingInterval)
		app.logger.Warn("using in-memory revocation store, revocations are per instance and lost on restart")
		return nil

	case BackendRedis:
		client, err := redis.Dial(ctx, redis.Options{
			Addr:     app.cfg.RedisAddr,
			Username: app.cfg.RedisUsername,
			Password: app.cfg.RedisPassword,
			DB:       app.cfg.RedisDB,
			Timeout:  app.cfg.Session.StoreTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.revocations = redis.New(client, redis.Config{
			Namespace: app.cfg.RevocationNamespace,
			Logger:    app.logger,
		})
		app.logger.Info("redis revocation store connected", "addr", app.cfg.RedisAddr, "namespace", app.cfg.RevocationNamespace)
		return nil

	default:
		return fmt.Errorf("unknown revocation backend %q", app.cfg.RevocationBackend)
	}
}

func (app *Application) initServices() error {
	codec := jwtx.NewCodec(app.keys, app.cfg.Issuer)

	authority, err := service.NewAuthority(codec, app.directory, app.revocations, app.cfg.Session,
		service.WithLogger(app.logger),
		service.WithRecorder(app.metrics),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize session authority: %w", err)
	}
	app.authority = authority

	app.userService = &service.UserService{
		Directory: app.directory,
		Hasher:    app.hasher,
		IDs:       idx.NewSource(),
		Issuer:    app.cfg.Issuer,
		Logger:    app.logger,
	}
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(app.keys.KeySet(), app.cfg.RateLimits, BuildVersion, app.logger)

	router.Authority = app.authority
	router.UserService = app.userService
	router.Directory = app.directory
	router.Revocations = app.revocations
	router.Metrics = app.metrics
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
