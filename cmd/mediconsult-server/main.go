package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mediconsult/mediconsult/internal/config"
	"github.com/mediconsult/mediconsult/internal/domain/consultation"
	"github.com/mediconsult/mediconsult/internal/domain/dashboard"
	"github.com/mediconsult/mediconsult/internal/domain/identity"
	"github.com/mediconsult/mediconsult/internal/platform/auth"
	"github.com/mediconsult/mediconsult/internal/platform/credential"
	"github.com/mediconsult/mediconsult/internal/platform/docstore"
	"github.com/mediconsult/mediconsult/internal/platform/middleware"
	"github.com/mediconsult/mediconsult/internal/seed"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "mediconsult-server",
		Short: "MediConsult patient-doctor consultation API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(indexesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the admin account and sample doctors if missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			store, closeStore, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()
			if err := store.EnsureIndexes(ctx, allIndexes()); err != nil {
				return fmt.Errorf("ensure indexes: %w", err)
			}

			users := identity.NewService(identity.NewUserRepo(store), credential.NewHasher(cfg.BcryptCost), logger)
			res, err := seed.EnsureSeedData(ctx, users, seedConfig(cfg), logger)
			if err != nil {
				return err
			}
			fmt.Printf("Created %d user(s), %d already present.\n", len(res.Created), len(res.Skipped))
			return nil
		},
	}
}

func indexesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "indexes",
		Short: "Create the document store indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			store, closeStore, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			indexes := allIndexes()
			if err := store.EnsureIndexes(ctx, indexes); err != nil {
				return fmt.Errorf("ensure indexes: %w", err)
			}
			fmt.Printf("%-16s %-32s %s\n", "COLLECTION", "KEYS", "UNIQUE")
			for _, idx := range indexes {
				fmt.Printf("%-16s %-32v %t\n", idx.Collection, idx.Keys, idx.Unique)
			}
			return nil
		},
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		return nil, logger, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, logger, nil
}

func allIndexes() []docstore.Index {
	var out []docstore.Index
	out = append(out, identity.Indexes...)
	out = append(out, consultation.Indexes...)
	return out
}

func seedConfig(cfg *config.Config) seed.Config {
	return seed.Config{
		AdminEmail:    cfg.SeedAdminEmail,
		AdminPassword: cfg.SeedAdminPassword,
		SampleDoctors: cfg.SeedSampleDoctors,
	}
}

// openStore connects the configured document store. The returned func
// releases it.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (docstore.Store, func(), error) {
	if cfg.StoreDriver == config.StoreMemory {
		logger.Warn().Msg("using in-memory store; data is lost on restart")
		return docstore.NewMemoryStore(), func() {}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.MongoTimeout)
	defer cancel()
	store, err := docstore.Connect(connectCtx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoTimeout)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Str("database", cfg.MongoDatabase).Msg("connected to mongodb")
	return store, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(ctx); err != nil {
			logger.Error().Err(err).Msg("mongodb disconnect failed")
		}
	}, nil
}

// openRevocations returns the Redis revocation store when REDIS_URL is set,
// and an in-process one otherwise.
func openRevocations(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (auth.RevocationStore, func(), error) {
	if cfg.RedisURL == "" {
		mem := auth.NewMemoryRevocationStore(time.Minute)
		return mem, mem.Close, nil
	}
	client, err := auth.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Msg("using redis for session revocation")
	return auth.NewRedisRevocationStore(client), func() { _ = client.Close() }, nil
}

// newServer wires the services and routes onto a new echo instance.
func newServer(cfg *config.Config, logger zerolog.Logger, store docstore.Store, revocations auth.RevocationStore) (*echo.Echo, *identity.Service, error) {
	key, err := cfg.SigningKey()
	if err != nil {
		return nil, nil, err
	}
	issuer := auth.NewTokenIssuer(key, cfg.SessionTTL)

	users := identity.NewService(identity.NewUserRepo(store), credential.NewHasher(cfg.BcryptCost), logger)
	consultations := consultation.NewService(
		consultation.NewRepo(store),
		consultation.NewLabReportRepo(store),
		users,
		logger,
	)
	dash := dashboard.NewService(users, consultations, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", docstore.HealthHandler(store))

	// Rate limiting keys on the session, so it runs after it.
	apiV1 := e.Group("/api/v1")
	apiV1.Use(auth.SessionMiddleware(issuer, revocations, auth.AuthSkipper))
	apiV1.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))

	identity.NewHandler(users, issuer, revocations).RegisterRoutes(apiV1)
	consultation.NewHandler(consultations).RegisterRoutes(apiV1)
	dashboard.NewHandler(dash).RegisterRoutes(apiV1)

	return e, users, nil
}

func runServer() error {
	cfg, logger, err := loadConfig()
	if err != nil {
		logger.Error().Err(err).Msg("failed to load config")
		return err
	}

	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open document store")
	}
	defer closeStore()

	if err := store.EnsureIndexes(ctx, allIndexes()); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure indexes")
	}

	revocations, closeRevocations, err := openRevocations(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open revocation store")
	}
	defer closeRevocations()

	e, users, err := newServer(cfg, logger, store, revocations)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}

	if _, err := seed.EnsureSeedData(ctx, users, seedConfig(cfg), logger); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed data")
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
