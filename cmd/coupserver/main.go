// coupserver runs the REST API, the Phase Clock, and the Phase Transition
// Orchestrator in a single process: a session's durable timing and the
// handlers that react to it share one connection pool, same as a single
// monolithic binary. Flags/env wiring follows a cobra+viper pattern;
// config-file loading follows a layered Initialize entry point.
package main

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log/slog"
	mrand "math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/coup-league/coupd/pkg/api"
	"github.com/coup-league/coupd/pkg/chat"
	"github.com/coup-league/coupd/pkg/config"
	"github.com/coup-league/coupd/pkg/database"
	"github.com/coup-league/coupd/pkg/orchestrator"
	"github.com/coup-league/coupd/pkg/scheduler"
	"github.com/coup-league/coupd/pkg/store"
)

const releaseVersion = "0.1.0"

type cliFlags struct {
	configPath    string
	envFile       string
	listenAddr    string
	dbHost        string
	dbPort        int
	dbUser        string
	dbPassword    string
	dbName        string
	publicBaseURL string
	reasoningURL  string
	migrate       bool
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	flags := &cliFlags{}
	if err := newRootCmd(flags).Execute(); err != nil {
		slog.Error("coupserver exited with error", "error", err)
		os.Exit(1)
	}
}

func newRootCmd(flags *cliFlags) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("COUP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "coupserver",
		Short:         "REST API, Phase Clock, and orchestrator for distributed Coup sessions.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), flags)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&flags.envFile, "env-file", ".env", "path to a .env file to load before reading other flags (env: COUP_ENV_FILE)")
	fs.StringVar(&flags.configPath, "config", "config/coup.yaml", "path to the layered YAML config file (env: COUP_CONFIG)")
	fs.StringVar(&flags.listenAddr, "listen-addr", "", "override the REST listen address, e.g. :8080 (env: COUP_LISTEN_ADDR)")
	fs.StringVar(&flags.dbHost, "db-host", "localhost", "PostgreSQL host (env: COUP_DB_HOST)")
	fs.IntVar(&flags.dbPort, "db-port", 5432, "PostgreSQL port (env: COUP_DB_PORT)")
	fs.StringVar(&flags.dbUser, "db-user", "coup", "PostgreSQL user (env: COUP_DB_USER)")
	fs.StringVar(&flags.dbPassword, "db-password", "", "PostgreSQL password (env: COUP_DB_PASSWORD)")
	fs.StringVar(&flags.dbName, "db-name", "coup", "PostgreSQL database name (env: COUP_DB_NAME)")
	fs.StringVar(&flags.publicBaseURL, "public-base-url", "http://localhost:8080", "base URL embedded in QR join links (env: COUP_PUBLIC_BASE_URL)")
	fs.StringVar(&flags.reasoningURL, "reasoning-url", "", "base URL of the LLM reasoning server for chat event pushes; empty disables it (env: COUP_REASONING_URL)")
	fs.BoolVar(&flags.migrate, "migrate", true, "apply pending database migrations on startup (env: COUP_MIGRATE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SilenceUsage = true
	return cmd
}

func run(ctx context.Context, flags *cliFlags) error {
	if err := godotenv.Load(flags.envFile); err != nil {
		slog.Warn("no .env file loaded, continuing with existing environment", "path", flags.envFile, "error", err)
	}

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Database.Host = flags.dbHost
	cfg.Database.Port = flags.dbPort
	cfg.Database.User = flags.dbUser
	cfg.Database.Password = flags.dbPassword
	cfg.Database.Database = flags.dbName
	if flags.listenAddr != "" {
		cfg.Server.ListenAddr = flags.listenAddr
	}
	if flags.reasoningURL != "" {
		cfg.Chat.ReasoningURL = flags.reasoningURL
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := database.NewClient(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("error closing database client", "error", err)
		}
	}()
	slog.Info("connected to PostgreSQL")

	if flags.migrate {
		if err := dbClient.Migrate(); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		slog.Info("database schema up to date")
	}

	sessions := store.NewSessionStore(dbClient)
	players := store.NewPlayerStore(dbClient)
	reactions := store.NewReactionStore(dbClient)
	turns := store.NewTurnResultStore(dbClient)
	bindings := store.NewChannelBindingStore(dbClient)
	chatStore := store.NewChatStore(dbClient)

	broadcaster := chat.New(chatStore, &http.Client{Timeout: 15 * time.Second}, cfg.Chat.ReasoningURL)

	r := newSeededRand()
	orch := orchestrator.New(sessions, players, reactions, turns, broadcaster, r)

	clock := scheduler.New(cfg.Scheduler, sessions, orch)
	scheduler.RescheduleActiveSessions(ctx, sessions)
	clock.Start(ctx)
	defer clock.Stop()
	slog.Info("phase clock started", "poll_interval", cfg.Scheduler.PollInterval)

	server := api.NewServer(sessions, players, reactions, turns, bindings, chatStore, broadcaster, r, flags.publicBaseURL)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("REST API listening", "addr", cfg.Server.ListenAddr)
		errCh <- server.Start(cfg.Server.ListenAddr)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("REST server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("error during graceful shutdown", "error", err)
	}
	return nil
}

// newSeededRand builds the process-wide PRNG that drives deck shuffles,
// including the Turn Resolver's challenge-vindication redraws and
// swap_influence returns, seeded from crypto-random entropy. Tests construct their own fixed-seed rand.Rand
// instead of calling this.
func newSeededRand() *mrand.Rand {
	var seed [16]byte
	if _, err := rand.Read(seed[:]); err != nil {
		slog.Warn("crypto/rand unavailable, falling back to a time-based seed", "error", err)
		binary.LittleEndian.PutUint64(seed[:8], uint64(time.Now().UnixNano()))
	}
	return mrand.New(mrand.NewPCG(
		binary.LittleEndian.Uint64(seed[:8]),
		binary.LittleEndian.Uint64(seed[8:]),
	))
}
