package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"pcbuilder/internal/config"
	"pcbuilder/internal/keepa"
	"pcbuilder/internal/logging"
	"pcbuilder/internal/store"
)

const defaultAppName = "pcbuilder"

var (
	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   defaultAppName,
	Short: "PC build component selection service",
	Long: `pcbuilder assembles a complete, compatible PC build from a component
catalog for a given budget and purpose.

Commands:
  serve           run the HTTP and gRPC APIs
  build           run a single build and print it as JSON
  refresh-prices  refresh catalog prices and ratings from Keepa`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.AddCommand(serveCmd, buildCmd, refreshCmd)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, _ []string) error {
	envErr := godotenv.Load()

	c, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger = logging.Init(logging.Config{
		Level:  c.LogLevel,
		Format: logging.FormatFor(c.AppEnv, c.LogFormat),
	})
	if envErr != nil {
		logger.Debug().Msg("No .env file found or failed to load, relying on system environment")
	}
	logger.Info().Str("app_env", c.AppEnv).Str("log_level", c.LogLevel).Str("command", cmd.Name()).Msg("Configuration loaded")
	cfg = c
	return nil
}

// openStore connects to Postgres and verifies the connection.
func openStore(ctx context.Context) (*sql.DB, *store.PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.Postgres.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info().Int("max_open_conns", cfg.Postgres.MaxOpenConns).Msg("Database connection established")
	return db, store.NewPostgresStore(db), nil
}

func newKeepaClient() *keepa.Client {
	return keepa.NewClient(keepa.Config{
		APIKey:            cfg.Keepa.APIKey,
		BaseURL:           cfg.Keepa.BaseURL,
		Domain:            cfg.Keepa.Domain,
		Timeout:           cfg.Keepa.Timeout,
		RequestsPerMinute: cfg.Keepa.RequestsPerMinute,
	})
}
