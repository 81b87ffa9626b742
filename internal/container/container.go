package container

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/FACorreiaa/go-credential-auth/app/db"
	"github.com/FACorreiaa/go-credential-auth/app/observability/metrics"
	"github.com/FACorreiaa/go-credential-auth/config"
	"github.com/FACorreiaa/go-credential-auth/internal/api/auth"
	api "github.com/FACorreiaa/go-credential-auth/internal/router"
)

// Container holds all application dependencies.
type Container struct {
	Config      *config.Config
	Logger      *slog.Logger
	Metrics     *metrics.AppMetrics
	Pool        *pgxpool.Pool
	Registry    *auth.MemoryRegistry
	AuthService *auth.AuthServiceImpl
	AuthHandler *auth.AuthHandler
	Gate        *auth.Gate
	Router      http.Handler
}

type Option func(*options)

type options struct {
	clock func() time.Time
}

// WithClock makes the service and the gate read time from clock.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// NewContainer wires the auth subsystem. With postgres enabled the registry
// is backed by the users table; otherwise it lives in memory only.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger, m *metrics.AppMetrics, opts ...Option) (*Container, error) {
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Container{Config: cfg, Logger: logger, Metrics: m}

	if cfg.Repositories.Postgres.Enabled {
		dbConfig, err := database.NewDatabaseConfig(cfg, logger)
		if err != nil {
			return nil, err
		}
		if err := database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
			return nil, err
		}
		pool, err := database.Init(ctx, dbConfig.ConnectionURL, logger)
		if err != nil {
			return nil, err
		}
		if !database.WaitForDB(ctx, pool, logger) {
			pool.Close()
			return nil, fmt.Errorf("database not ready")
		}
		c.Pool = pool

		registry, err := auth.NewPersistentRegistry(ctx, auth.NewPostgresUserStore(pool, logger, m), logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		c.Registry = registry
	} else {
		logger.Warn("Postgres disabled, users are kept in memory only")
		c.Registry = auth.NewMemoryRegistry(logger)
	}

	hasher := auth.NewHasher(cfg.Hasher)
	issuer := auth.NewTokenIssuer(cfg.JWT)
	verifier := auth.NewCachingVerifier(auth.NewTokenVerifier(cfg.JWT), cfg.JWT.CacheCleanup)

	c.Gate = auth.NewGate(verifier, auth.WithGateClock(o.clock))
	c.AuthService = auth.NewAuthService(c.Registry, hasher, issuer, logger,
		auth.WithClock(o.clock),
		auth.WithHashPool(auth.NewHashPool(hasher, cfg.Hasher.MaxConcurrent)),
	)
	c.AuthHandler = auth.NewAuthHandler(c.AuthService, logger, m)

	c.Router = api.SetupRouter(&api.Config{
		AuthHandler:            c.AuthHandler,
		AuthenticateMiddleware: auth.Authenticate(logger, c.Gate, m),
		AllowedOrigins:         cfg.Server.AllowedOrigins,
	})
	return c, nil
}

// Close releases the database pool, if any.
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}
