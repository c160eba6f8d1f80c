package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/slipstream/decisionengine/internal/api"
	"github.com/slipstream/decisionengine/internal/config"
	"github.com/slipstream/decisionengine/internal/database"
	"github.com/slipstream/decisionengine/internal/logger"
	"github.com/slipstream/decisionengine/internal/policy"
	"github.com/slipstream/decisionengine/internal/scheduler"
	"github.com/slipstream/decisionengine/internal/scheduler/tasks"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	envFile := flag.String("env-file", ".env", "Optional dotenv file loaded before the config")
	flag.Parse()

	// A missing .env is normal outside development.
	_ = godotenv.Load(*envFile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer log.Close()

	log.Info().
		Str("version", config.Version).
		Str("logLevel", cfg.Logging.Level).
		Msg("starting decision engine")

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	log.Info().Msg("running database migrations")
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	server := api.NewServer(db, cfg, log.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var reloader *tasks.PolicyReloader
	if cfg.Policy.SeedFile != "" {
		reloader = tasks.NewPolicyReloader(policy.NewLoader(nil), server.PolicyStore(), cfg.Policy.SeedFile, log.WithComponent("scheduler"))
		if err := reloader.Run(ctx); err != nil {
			log.Fatal().Err(err).Str("path", cfg.Policy.SeedFile).Msg("failed to import seed policy")
		}
	}

	sched, err := scheduler.New(log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scheduler")
	}
	if err := registerTasks(sched, server, cfg, reloader, log); err != nil {
		log.Fatal().Err(err).Msg("failed to register scheduled tasks")
	}
	server.SetScheduler(sched)
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}

	go func() {
		addr := cfg.Server.Address()
		if err := server.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	if err := sched.Stop(); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown error")
	}

	log.Info().Msg("server stopped")
}

func registerTasks(sched *scheduler.Scheduler, server *api.Server, cfg *config.Config, reloader *tasks.PolicyReloader, log *logger.Logger) error {
	taskLog := log.WithComponent("scheduler")

	if err := tasks.RegisterPendingGrabsTask(sched, server.GrabTracker(), taskLog); err != nil {
		return err
	}
	if err := tasks.RegisterIndexerBackoffTask(sched, server.StatusService(), cfg.Decision.IndexerGrace); err != nil {
		return err
	}
	if err := tasks.RegisterDecisionLogCleanupTask(sched, server.DecisionStore(), cfg.Decision.LogRetention, taskLog); err != nil {
		return err
	}
	if cfg.Policy.Watch && reloader != nil {
		if err := tasks.RegisterPolicyReloadTask(sched, reloader); err != nil {
			return err
		}
	}
	return nil
}
