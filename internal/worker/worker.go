// Package worker polls the reminder dispatcher and delivers reminders as they come due.
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/nadmax/taskplan/internal/metrics"
)

// PendingRunner delivers whatever is due and reports how many were delivered.
type PendingRunner interface {
	RunPending(ctx context.Context) (int, error)
}

type Worker struct {
	id           string
	runner       PendingRunner
	stop         chan struct{}
	pollInterval time.Duration
	logger       zerolog.Logger
}

func NewWorker(id string, runner PendingRunner, logger zerolog.Logger) *Worker {
	return &Worker{
		id:           id,
		runner:       runner,
		stop:         make(chan struct{}),
		pollInterval: time.Second,
		logger:       logger.With().Str("worker_id", id).Logger(),
	}
}

func (w *Worker) SetPollInterval(d time.Duration) {
	w.pollInterval = d
}

// Start blocks until Stop is called or ctx is done.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info().Dur("poll_interval", w.pollInterval).Msg("worker started")
	metrics.UpdateActiveWorkers(1)
	defer metrics.UpdateActiveWorkers(0)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		w.poll(ctx)

		select {
		case <-w.stop:
			w.logger.Info().Msg("worker stopped")
			return
		case <-ctx.Done():
			w.logger.Info().Msg("worker stopped")
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) poll(ctx context.Context) {
	delivered, err := w.runner.RunPending(ctx)
	if err != nil && ctx.Err() == nil {
		w.logger.Error().Err(err).Msg("failed to run pending reminders")
	}
	if delivered > 0 {
		w.logger.Debug().Int("delivered", delivered).Msg("reminders delivered")
	}
}

func (w *Worker) Stop() {
	close(w.stop)
}
