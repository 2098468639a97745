package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"filippo.io/csrf"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"github.com/ltiernan/tracescope/internal/access"
	"github.com/ltiernan/tracescope/internal/auth"
	"github.com/ltiernan/tracescope/internal/credentials"
	"github.com/ltiernan/tracescope/internal/logger"
	"github.com/ltiernan/tracescope/internal/server"
	"github.com/ltiernan/tracescope/internal/store"
	memorystore "github.com/ltiernan/tracescope/internal/store/memory"
	postgresstore "github.com/ltiernan/tracescope/internal/store/postgres"
	redisstore "github.com/ltiernan/tracescope/internal/store/redis"
	"github.com/ltiernan/tracescope/internal/telemetry"
	"github.com/ltiernan/tracescope/internal/worker"
	"github.com/ltiernan/tracescope/internal/workspace"
)

type ServerCmd struct {
	// Server configuration
	Listen string `help:"HTTP server listen address" default:"0.0.0.0:8080" env:"TRACESCOPE_LISTEN"`
	Cert   string `help:"path to TLS cert file" default:"" env:"TRACESCOPE_TLS_CERT"`
	Key    string `help:"path to TLS key file" default:"" env:"TRACESCOPE_TLS_KEY"`

	// CORS configuration
	CORSOrigins []string `help:"allowed CORS origins for API requests" default:"https://localhost" env:"TRACESCOPE_CORS_ORIGINS"`

	// Session configuration
	SessionTTL    time.Duration `help:"session TTL" default:"168h" env:"TRACESCOPE_SESSION_TTL"`
	SweepInterval time.Duration `help:"interval between expired-session sweeps" default:"15m" env:"TRACESCOPE_SWEEP_INTERVAL"`

	// Development and operational modes
	Tracing bool `help:"enable tracing" default:"false" env:"TRACESCOPE_TRACING"`

	// Store configuration
	StoreType     string             `help:"store type (memory or postgres)" default:"memory" env:"TRACESCOPE_STORE_TYPE" enum:"memory,postgres"`
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`

	// Session store configuration. "primary" keeps sessions alongside the
	// other entities; "redis" moves them to a Redis instance.
	SessionStoreType string `help:"session store type (primary or redis)" default:"primary" env:"TRACESCOPE_SESSION_STORE_TYPE" enum:"primary,redis"`
	RedisAddr        string `help:"redis address for the session store" default:"localhost:6379" env:"TRACESCOPE_REDIS_ADDR"`
}

type PostgresStoreFlags struct {
	// Connection Configuration
	ConnString string `help:"PostgreSQL connection string" env:"POSTGRES_CONNECTION_STRING"`

	// Connection Pool Configuration
	MaxConns        int32 `help:"maximum number of connections in pool" default:"20"`
	MinConns        int32 `help:"minimum number of connections in pool" default:"5"`
	MaxConnLifetime int32 `help:"maximum connection lifetime in seconds" default:"3600"`
	MaxConnIdleTime int32 `help:"maximum connection idle time in seconds" default:"1800"`

	// Migration Configuration
	AutoMigrate bool `help:"run database migrations on startup" default:"false" env:"TRACESCOPE_POSTGRES_AUTO_MIGRATE"`
}

func (s *PostgresStoreFlags) Validate() error {
	if s.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}
	return nil
}

func (c *ServerCmd) Run(globals *Globals) error {
	log := logger.Setup(globals.Debug)
	ctx := context.Background()

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting server")

	// Setup telemetry if enabled
	if c.Tracing {
		log.Info().Msg("Tracing is enabled")
		shutdown, err := telemetry.Init(ctx, "tracescope-server", globals.Version)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
			shutdown = func(ctx context.Context) error { return nil }
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to shutdown telemetry")
			}
		}()
	}

	// Create stores based on store type
	var stores store.Stores

	switch c.StoreType {
	case "postgres":
		if err := c.PostgresStore.Validate(); err != nil {
			return err
		}

		// Shared connection pool for all PostgreSQL stores
		poolCfg := &postgresstore.PoolConfig{
			ConnString:      c.PostgresStore.ConnString,
			MaxConns:        c.PostgresStore.MaxConns,
			MinConns:        c.PostgresStore.MinConns,
			MaxConnLifetime: c.PostgresStore.MaxConnLifetime,
			MaxConnIdleTime: c.PostgresStore.MaxConnIdleTime,
		}
		pool, err := postgresstore.NewPool(ctx, poolCfg)
		if err != nil {
			return fmt.Errorf("failed to create connection pool: %w", err)
		}
		defer pool.Close()

		if c.PostgresStore.AutoMigrate {
			if err := postgresstore.RunMigrations(ctx, pool); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info().Msg("Database migrations completed")
		}

		stores = postgresstore.NewStores(pool)
		log.Info().Msg("Using PostgreSQL stores")

	default:
		stores = memorystore.NewStores()
		log.Warn().Msg("Using in-memory stores; all data is lost on restart")
	}

	// Optionally move sessions to Redis
	if c.SessionStoreType == "redis" {
		client := goredis.NewClient(&goredis.Options{Addr: c.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis at %s: %w", c.RedisAddr, err)
		}
		defer func() {
			if err := client.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close redis client")
			}
		}()

		stores.Sessions = redisstore.NewSessionStore(client)
		log.Info().Str("addr", c.RedisAddr).Msg("Using Redis session store")
	}

	// Wire the workspace core
	index := access.NewMembershipIndex(stores.Memberships, stores.Organizations)
	guard := access.NewGuard(index, stores.Projects, stores.APIKeys)
	keys := credentials.NewManager(guard, stores.APIKeys, stores.Projects)
	selector := workspace.NewSelector(guard, stores.Sessions)

	secureCookies := c.Cert != "" && c.Key != ""
	sessions := auth.NewSessions(stores.Users, stores.Sessions, c.SessionTTL, secureCookies)

	// Key lifecycle events go to the structured log; durable consumers hang
	// off the same subscription point.
	keys.Subscribe(credentials.SubscriberFunc(func(ctx context.Context, event credentials.Event) {
		log.Info().
			Str("event", string(event.Type)).
			Str("key_id", event.KeyID.String()).
			Str("project_id", event.ProjectID.String()).
			Str("org_id", event.OrgID.String()).
			Time("at", event.At).
			Msg("Key lifecycle event")
	}))

	sweeper := worker.NewSessionSweeper(stores.Sessions, c.SweepInterval)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	router := server.New(stores, guard, keys, selector, sessions).Router(log)

	// Browser-facing routes get CSRF protection; the ingest surface is
	// called by non-browser clients and gets CORS instead.
	protection := csrf.New()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isIngestRoute(r.URL.Path) {
			withCORS(c.CORSOrigins, router).ServeHTTP(w, r)
		} else {
			protection.Handler(router).ServeHTTP(w, r)
		}
	})

	srv := configureHTTPServer(c.Listen, handler)

	if secureCookies {
		if _, err := os.Stat(c.Cert); err != nil {
			return fmt.Errorf("TLS certificate not found at %s: %w", c.Cert, err)
		}
		if _, err := os.Stat(c.Key); err != nil {
			return fmt.Errorf("TLS key not found at %s: %w", c.Key, err)
		}

		log.Info().Str("addr", c.Listen).Msg("Starting HTTPS server")
		return srv.ListenAndServeTLS(c.Cert, c.Key)
	}

	log.Warn().Str("addr", c.Listen).Msg("Starting plain HTTP server; cookies are not marked Secure")
	return srv.ListenAndServe()
}

// isIngestRoute returns true for the API-key-authenticated surface.
func isIngestRoute(path string) bool {
	return strings.HasPrefix(path, "/v1/ingest/")
}

// withCORS adds CORS support for cross-origin API clients.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true, // Required for cookie-based authentication
	})
	return middleware.Handler(h)
}
