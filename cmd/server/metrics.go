package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/nadmax/taskplan/internal/metrics"
	"github.com/nadmax/taskplan/internal/reminder"
)

func startMetricsCollector(ctx context.Context, q *reminder.Queue, logger zerolog.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		updateReminderMetrics(ctx, q, logger)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func updateReminderMetrics(ctx context.Context, q *reminder.Queue, logger zerolog.Logger) {
	pending, err := q.PendingCount(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn().Err(err).Msg("Failed to count pending reminders for metrics")
		}
		return
	}

	metrics.UpdatePendingReminders(pending)
}
