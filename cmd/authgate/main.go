// authgate - standalone authentication and authorization service
//
// authgate issues and validates JWT bearer tokens over a REST API,
// backed by bcrypt-hashed credentials and role-based access control
// in SQLite. It is designed to sit in front of (or beside) resource
// services that only need to verify its access tokens.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/halcyonlabs/authgate/migrations"

	"github.com/halcyonlabs/authgate/internal/api"
	"github.com/halcyonlabs/authgate/internal/audit"
	"github.com/halcyonlabs/authgate/internal/auth"
	"github.com/halcyonlabs/authgate/internal/infrastructure/config"
	"github.com/halcyonlabs/authgate/internal/infrastructure/database"
	"github.com/halcyonlabs/authgate/internal/infrastructure/influxdb"
	"github.com/halcyonlabs/authgate/internal/infrastructure/logging"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// revocationSweepInterval is how often the in-memory revocation store
// drops expired entries when Redis is not in use.
const revocationSweepInterval = 5 * time.Minute

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting authgate",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Repositories
	userRepo := auth.NewUserRepository(db.DB)
	rbacRepo := auth.NewRBACRepository(db.DB)
	auditRepo := audit.NewSQLiteRepository(db.DB)

	// Token revocation store: Redis when configured, in-process otherwise
	var revocations auth.RevocationStore
	if cfg.Redis.Enabled {
		redisStore, redisErr := auth.NewRedisRevocationStore(cfg.Redis)
		if redisErr != nil {
			return fmt.Errorf("connecting to Redis: %w", redisErr)
		}
		revocations = redisStore
		log.Info("Redis revocation store connected", "addr", cfg.Redis.Addr)
	} else {
		revocations = auth.NewMemoryRevocationStore(revocationSweepInterval)
		log.Info("in-memory revocation store initialised",
			"sweep_interval", revocationSweepInterval,
		)
	}
	defer func() {
		log.Info("closing revocation store")
		if closeErr := revocations.Close(); closeErr != nil {
			log.Error("error closing revocation store", "error", closeErr)
		}
	}()

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Seed the admin account on first run
	if _, seedErr := auth.SeedAdmin(ctx, userRepo, rbacRepo, log); seedErr != nil {
		return fmt.Errorf("seeding admin account: %w", seedErr)
	}

	// Auth service and guard
	codec := auth.NewTokenCodec(cfg.Security.JWT)
	authService := auth.NewService(userRepo, rbacRepo, codec, revocations, log)
	guard := auth.NewGuard(codec, revocations, userRepo)

	// API server
	server, err := api.New(api.Deps{
		Config:    cfg.API,
		Security:  cfg.Security,
		Logger:    log,
		Auth:      authService,
		Guard:     guard,
		Users:     userRepo,
		RBAC:      rbacRepo,
		AuditRepo: auditRepo,
		Metrics:   influxClient,
		DB:        db,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, server, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server (graceful drain)
	// 2. InfluxDB (if enabled)
	// 3. Revocation store
	// 4. Database

	log.Info("authgate stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses AUTHGATE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("AUTHGATE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, server *api.Server, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	// InfluxDB (if enabled)
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
