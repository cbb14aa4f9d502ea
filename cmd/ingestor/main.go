package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"mailfeed/ingestor/internal/auth"
	"mailfeed/ingestor/internal/config"
	"mailfeed/ingestor/internal/database"
	"mailfeed/ingestor/internal/ingest"
	"mailfeed/ingestor/internal/provider"
	"mailfeed/ingestor/internal/server"
	"mailfeed/ingestor/internal/server/api"
	"mailfeed/ingestor/internal/storage"
)

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"})
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

func usage() {
	fmt.Println("Usage: ingestor [command] [options]")
	fmt.Println("Commands: connect, sync, server")
	fmt.Println("\nFor command-specific options, use: ingestor [command] -h")
}

func main() {
	// Local .env, if present, feeds the environment-backed defaults below.
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("Loaded environment from .env")
	}

	cfg := config.DefaultConfig()

	connectCmd := flag.NewFlagSet("connect", flag.ExitOnError)
	connectCmd.StringVar(&cfg.DBPath, "db", config.GetEnvString("MAILFEED_DB_PATH", config.DefaultDBPath),
		"Path to the SQLite database file (env: MAILFEED_DB_PATH)")
	var connectUser, accessToken, refreshToken string
	connectCmd.StringVar(&connectUser, "user", "", "User id to connect the mail account for")
	connectCmd.StringVar(&accessToken, "access-token", "", "OAuth access token for the mail provider")
	connectCmd.StringVar(&refreshToken, "refresh-token", "", "OAuth refresh token for the mail provider")

	syncCmd := flag.NewFlagSet("sync", flag.ExitOnError)
	syncCmd.StringVar(&cfg.DBPath, "db", config.GetEnvString("MAILFEED_DB_PATH", config.DefaultDBPath),
		"Path to the SQLite database file (env: MAILFEED_DB_PATH)")
	var syncUserID string
	syncCmd.StringVar(&syncUserID, "user", "", "User id to sync")
	var syncLogLevelStr string
	syncCmd.StringVar(&syncLogLevelStr, "log-level", config.GetEnvString("MAILFEED_LOG_LEVEL", config.DefaultLogLevel),
		"Log level: debug, info, warn, error (env: MAILFEED_LOG_LEVEL)")
	var intervalMinutes int
	syncCmd.IntVar(&intervalMinutes, "interval", config.GetEnvInt("MAILFEED_INTERVAL", config.DefaultInterval),
		"Interval in minutes between sync runs, 0 for one-shot mode (env: MAILFEED_INTERVAL)")

	serverCmd := flag.NewFlagSet("server", flag.ExitOnError)
	serverCmd.StringVar(&cfg.DBPath, "db", config.GetEnvString("MAILFEED_DB_PATH", config.DefaultDBPath),
		"Path to the SQLite database file (env: MAILFEED_DB_PATH)")
	serverCmd.StringVar(&cfg.ServerHost, "host", config.GetEnvString("MAILFEED_HOST", config.DefaultServerHost),
		"Host to bind the server to (env: MAILFEED_HOST)")
	serverCmd.IntVar(&cfg.ServerPort, "port", config.GetEnvInt("MAILFEED_PORT", config.DefaultServerPort),
		"Port to listen on (env: MAILFEED_PORT)")
	var serverLogLevelStr string
	serverCmd.StringVar(&serverLogLevelStr, "log-level", config.GetEnvString("MAILFEED_LOG_LEVEL", config.DefaultLogLevel),
		"Log level: debug, info, warn, error (env: MAILFEED_LOG_LEVEL)")

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "connect":
		connectCmd.Parse(os.Args[2:])
		zerolog.SetGlobalLevel(cfg.LogLevel)

		if err := runConnect(cfg, connectUser, accessToken, refreshToken); err != nil {
			log.Error().Err(err).Msg("Connect failed")
			os.Exit(1)
		}

	case "sync":
		syncCmd.Parse(os.Args[2:])

		if level, err := zerolog.ParseLevel(syncLogLevelStr); err == nil {
			cfg.LogLevel = level
		}
		cfg.Interval = time.Duration(intervalMinutes) * time.Minute
		zerolog.SetGlobalLevel(cfg.LogLevel)

		if err := runSync(cfg, syncUserID); err != nil {
			log.Error().Err(err).Msg("Sync failed")
			os.Exit(1)
		}

	case "server":
		serverCmd.Parse(os.Args[2:])

		if level, err := zerolog.ParseLevel(serverLogLevelStr); err == nil {
			cfg.LogLevel = level
		}
		zerolog.SetGlobalLevel(cfg.LogLevel)

		if err := runServer(cfg); err != nil {
			log.Error().Err(err).Msg("Server failed")
			os.Exit(1)
		}

	case "-h", "--help", "help":
		usage()
		os.Exit(0)

	default:
		log.Error().Str("command", os.Args[1]).Msg("Unknown command")
		usage()
		os.Exit(1)
	}
}

// runConnect stores a user's mail provider OAuth tokens so sync runs can
// build a token source for them.
func runConnect(cfg *config.Config, userID, accessToken, refreshToken string) error {
	if userID == "" {
		return fmt.Errorf("-user is required")
	}
	if accessToken == "" && refreshToken == "" {
		return fmt.Errorf("at least one of -access-token or -refresh-token is required")
	}

	db, err := database.NewDB(database.NewConfig(cfg.DBPath))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	accounts := auth.NewAccountStore(db, auth.OAuthConfig(cfg))
	token := &oauth2.Token{AccessToken: accessToken, RefreshToken: refreshToken}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := accounts.Save(ctx, userID, token); err != nil {
		return err
	}
	log.Info().Str("user_id", userID).Msg("Mail account connected")
	return nil
}

// runSync executes the ingestion pipeline for one user, either once or
// periodically based on configuration.
func runSync(cfg *config.Config, userID string) error {
	if userID == "" {
		return fmt.Errorf("-user is required")
	}

	if cfg.Interval <= 0 {
		log.Info().Msg("Running in one-shot mode")
	} else {
		log.Info().Int64("interval_minutes", int64(cfg.Interval.Minutes())).Msg("Running in periodic mode")
	}

	db, err := database.NewDB(database.NewConfig(cfg.DBPath))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	repo := storage.NewRepository(db)
	accounts := auth.NewAccountStore(db, auth.OAuthConfig(cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-shutdown
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
	}()

	if err := runSyncCycle(ctx, cfg, repo, accounts, userID); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info().Msg("Sync cycle canceled by shutdown signal")
			return nil
		}
		return err
	}

	if cfg.Interval == 0 {
		log.Info().Msg("One-shot sync completed, exiting")
		return nil
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	log.Info().
		Dur("interval", cfg.Interval).
		Time("next_run", time.Now().Add(cfg.Interval)).
		Msg("Waiting for next sync cycle")

	for {
		select {
		case <-ticker.C:
			log.Info().Msg("Starting scheduled sync cycle")

			if err := runSyncCycle(ctx, cfg, repo, accounts, userID); err != nil {
				if errors.Is(err, context.Canceled) {
					log.Info().Msg("Sync cycle canceled by shutdown signal")
					return nil
				}
				log.Error().Err(err).Msg("Sync cycle failed")
				// Continue to the next cycle rather than exiting
			}

			log.Info().
				Time("next_run", time.Now().Add(cfg.Interval)).
				Msg("Waiting for next sync cycle")

		case <-ctx.Done():
			log.Info().Msg("Shutting down periodic sync")
			return nil
		}
	}
}

// runSyncCycle executes a single sync run for the user.
func runSyncCycle(ctx context.Context, cfg *config.Config, repo storage.Repository, accounts *auth.AccountStore, userID string) error {
	runCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	startTime := time.Now()
	result, err := syncUser(runCtx, cfg, repo, accounts, userID)
	if err != nil {
		if ctxErr := runCtx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return ctx.Err() // Propagate cancellation
		}
		return fmt.Errorf("sync error: %w", err)
	}

	log.Info().
		Dur("duration", time.Since(startTime)).
		Int("inserted", result.Inserted).
		Int("failed", len(result.Errors)).
		Msg("Sync cycle finished")

	for _, itemErr := range result.Errors {
		log.Warn().Str("id", itemErr.ID).Str("reason", itemErr.Reason).Msg("Message skipped")
	}
	return nil
}

// syncUser builds the provider client from the user's stored credentials
// and runs one ingestion pass.
func syncUser(ctx context.Context, cfg *config.Config, repo storage.Repository, accounts *auth.AccountStore, userID string) (*ingest.Result, error) {
	tokenSource, err := accounts.TokenSource(ctx, userID)
	if err != nil {
		return nil, err
	}

	client, err := provider.NewGmailClient(ctx, tokenSource)
	if err != nil {
		return nil, err
	}

	syncer := ingest.NewSyncer(client, repo,
		ingest.WithPageSize(cfg.SyncPageSize),
		ingest.WithFetchConcurrency(cfg.FetchConcurrency),
		ingest.WithFetchTimeout(cfg.FetchTimeout),
		ingest.WithLogger(log.Logger),
	)
	return syncer.Sync(ctx, userID)
}

// runServer starts the HTTP API server with the provided configuration.
func runServer(cfg *config.Config) error {
	db, err := database.NewDB(database.NewConfig(cfg.DBPath))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	repo := storage.NewRepository(db)
	accounts := auth.NewAccountStore(db, auth.OAuthConfig(cfg))

	runner := api.RunnerFunc(func(ctx context.Context, userID string) (*ingest.Result, error) {
		return syncUser(ctx, cfg, repo, accounts, userID)
	})

	return server.RunServer(repo, runner, cfg.ListenAddr(), log.Logger, cfg.APIKey)
}
