package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nadmax/taskplan/internal/config"
	"github.com/nadmax/taskplan/internal/logging"
	"github.com/nadmax/taskplan/internal/notifier"
	"github.com/nadmax/taskplan/internal/reminder"
	"github.com/nadmax/taskplan/internal/repository"
	"github.com/nadmax/taskplan/internal/worker"
)

func main() {
	cfg, err := config.Load(os.Getenv)
	if err != nil {
		fallback := logging.New(logging.Config{})
		fallback.Fatal().Err(err).Msg("invalid configuration")
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}).
		With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var repo repository.ReminderRepository
	if cfg.PostgresDSN != "" {
		pg, err := repository.NewPostgresReminderRepository(cfg.PostgresDSN, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open reminder history")
		}
		defer func() {
			if err := pg.Close(); err != nil {
				logger.Error().Err(err).Msg("failed to close Postgres repository")
			}
		}()

		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare reminder history schema")
		}
		repo = pg
	}

	sinks := notifier.Multi{notifier.NewPrinter(os.Stdout), notifier.NewLogNotifier(logger)}
	if cfg.Email.Enabled() {
		sinks = append(sinks, notifier.NewEmailNotifier(cfg.Email, logger))
		logger.Info().Str("to", cfg.Email.To).Msg("Email reminders enabled")
	}

	q, err := reminder.NewQueue(cfg.RedisAddr, sinks, repo, reminder.WithLogger(logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect reminder queue")
	}
	defer func() {
		if err := q.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close worker queue")
		}
	}()

	w := worker.NewWorker(cfg.WorkerID, q, logger)
	w.SetPollInterval(cfg.PollInterval)

	w.Start(ctx)
	logger.Info().Msg("Shutting down worker...")
}
