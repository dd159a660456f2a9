package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/nadmax/taskplan/internal/api"
	"github.com/nadmax/taskplan/internal/config"
	"github.com/nadmax/taskplan/internal/logging"
	"github.com/nadmax/taskplan/internal/middleware"
	"github.com/nadmax/taskplan/internal/notifier"
	"github.com/nadmax/taskplan/internal/reminder"
	"github.com/nadmax/taskplan/internal/report"
	"github.com/nadmax/taskplan/internal/repository"
)

func main() {
	cfg, err := config.Load(os.Getenv)
	if err != nil {
		fallback := logging.New(logging.Config{})
		fallback.Fatal().Err(err).Msg("invalid configuration")
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}).
		With().Str("component", "server").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []api.Option{api.WithLogger(logger)}
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
		opts = append(opts, api.WithHistory(pg, report.NewGenerator(pg.DB(), logger)))
		logger.Info().Msg("Reminder history enabled")
	}

	// the server only schedules; delivery belongs to cmd/worker
	q, err := reminder.NewQueue(cfg.RedisAddr, notifier.NewLogNotifier(logger), repo, reminder.WithLogger(logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect reminder queue")
	}
	defer func() {
		if err := q.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close server queue")
		}
	}()

	go startMetricsCollector(ctx, q, logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", api.NewAPI(q, opts...))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           middleware.MetricsMiddleware(middleware.RequestLogger(logger)(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go shutdownOnDone(ctx, srv, logger)

	logger.Info().Str("addr", srv.Addr).Str("redis", cfg.RedisAddr).Msg("Server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server failed")
	}
}

func shutdownOnDone(ctx context.Context, srv *http.Server, logger zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info().Msg("Shutting down server...")
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
}
