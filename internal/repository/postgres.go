// Package repository provides PostgreSQL persistence for reminder delivery history.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/nadmax/taskplan/internal/repository/models"
	"github.com/nadmax/taskplan/internal/task"
)

const Schema = `
	CREATE TABLE IF NOT EXISTS reminder_history (
		reminder_id    TEXT PRIMARY KEY,
		task_name      TEXT NOT NULL,
		category       TEXT NOT NULL,
		deadline       DOUBLE PRECISION NOT NULL,
		fire_at        TIMESTAMPTZ NOT NULL,
		status         TEXT NOT NULL,
		attempts       INTEGER NOT NULL DEFAULT 0,
		failure_reason TEXT,
		created_at     TIMESTAMPTZ NOT NULL,
		delivered_at   TIMESTAMPTZ
	);
	CREATE INDEX IF NOT EXISTS idx_reminder_history_created_at ON reminder_history (created_at DESC);
`

type PostgresReminderRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPostgresReminderRepository(connectionString string, logger zerolog.Logger) (*PostgresReminderRepository, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresReminderRepository{db: db, logger: logger}, nil
}

func (r *PostgresReminderRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create reminder_history: %w", err)
	}
	return nil
}

func (r *PostgresReminderRepository) GetReminder(ctx context.Context, reminderID string) (*task.Reminder, error) {
	query := `
		SELECT
			reminder_id, task_name, category, deadline, fire_at,
			status, attempts, failure_reason, created_at, delivered_at
		FROM reminder_history
		WHERE reminder_id = $1
	`

	var rem task.Reminder
	var failureReason sql.NullString
	var deliveredAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, reminderID).Scan(
		&rem.ID,
		&rem.Task.Name,
		&rem.Task.Category,
		&rem.Task.Deadline,
		&rem.FireAt,
		&rem.Status,
		&rem.Attempts,
		&failureReason,
		&rem.CreatedAt,
		&deliveredAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, reminderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder %s: %w", reminderID, err)
	}

	if failureReason.Valid {
		rem.Error = failureReason.String
	}
	if deliveredAt.Valid {
		rem.DeliveredAt = &deliveredAt.Time
	}

	return &rem, nil
}

func (r *PostgresReminderRepository) SaveReminder(ctx context.Context, rem *task.Reminder) error {
	query := `
		INSERT INTO reminder_history (
			reminder_id, task_name, category, deadline, fire_at,
			status, attempts, failure_reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (reminder_id) DO UPDATE SET
			status = EXCLUDED.status,
			attempts = EXCLUDED.attempts,
			failure_reason = EXCLUDED.failure_reason,
			fire_at = EXCLUDED.fire_at
	`

	var failureReason any
	if rem.Error != "" {
		failureReason = rem.Error
	}

	_, err := r.db.ExecContext(
		ctx,
		query,
		rem.ID,
		rem.Task.Name,
		string(rem.Task.Category),
		rem.Task.Deadline,
		rem.FireAt,
		string(rem.Status),
		rem.Attempts,
		failureReason,
		rem.CreatedAt,
	)

	return err
}

func (r *PostgresReminderRepository) MarkDelivered(ctx context.Context, reminderID string, deliveredAt time.Time, attempts int) error {
	query := `
		UPDATE reminder_history
		SET status = 'delivered',
		    delivered_at = $1,
		    attempts = $2
		WHERE reminder_id = $3
	`
	_, err := r.db.ExecContext(ctx, query, deliveredAt, attempts, reminderID)

	return err
}

func (r *PostgresReminderRepository) MarkFailed(ctx context.Context, reminderID string, reason string, attempts int) error {
	query := `
		UPDATE reminder_history
		SET status = 'failed',
		    failure_reason = $1,
		    attempts = $2
		WHERE reminder_id = $3
	`
	_, err := r.db.ExecContext(ctx, query, reason, attempts, reminderID)

	return err
}

func (r *PostgresReminderRepository) MarkCancelled(ctx context.Context, reminderID string) error {
	query := `
		UPDATE reminder_history
		SET status = 'cancelled'
		WHERE reminder_id = $1
	`
	_, err := r.db.ExecContext(ctx, query, reminderID)

	return err
}

func (r *PostgresReminderRepository) GetReminderStats(ctx context.Context, hours int) ([]models.ReminderStats, error) {
	query := `
		SELECT
			category, status, COUNT(*) AS count,
			COALESCE(AVG(EXTRACT(EPOCH FROM (delivered_at - fire_at)) * 1000), 0) AS avg_latency_ms,
			COALESCE(MAX(EXTRACT(EPOCH FROM (delivered_at - fire_at)) * 1000), 0)::INTEGER AS max_latency_ms,
			COALESCE(AVG(attempts), 0) AS avg_attempts
		FROM reminder_history
		WHERE created_at > NOW() - INTERVAL '1 hour' * $1
		GROUP BY category, status
		ORDER BY category, status
	`
	rows, err := r.db.QueryContext(ctx, query, hours)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Error().Err(err).Msg("failed to close rows")
		}
	}()

	var stats []models.ReminderStats
	for rows.Next() {
		var s models.ReminderStats
		if err := rows.Scan(
			&s.Category,
			&s.Status,
			&s.Count,
			&s.AvgLatencyMs,
			&s.MaxLatencyMs,
			&s.AvgAttempts,
		); err != nil {
			return nil, err
		}

		stats = append(stats, s)
	}

	return stats, rows.Err()
}

func (r *PostgresReminderRepository) GetRecentReminders(ctx context.Context, limit int) ([]models.RecentReminder, error) {
	query := `
		SELECT
			reminder_id, task_name, category, status, fire_at,
			created_at, delivered_at, attempts, COALESCE(failure_reason, '')
		FROM reminder_history
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.Error().Err(err).Msg("failed to close rows")
		}
	}()

	var reminders []models.RecentReminder
	for rows.Next() {
		var rr models.RecentReminder
		if err := rows.Scan(
			&rr.ReminderID,
			&rr.TaskName,
			&rr.Category,
			&rr.Status,
			&rr.FireAt,
			&rr.CreatedAt,
			&rr.DeliveredAt,
			&rr.Attempts,
			&rr.FailureReason,
		); err != nil {
			return nil, err
		}

		reminders = append(reminders, rr)
	}

	return reminders, rows.Err()
}

func (r *PostgresReminderRepository) DB() *sql.DB {
	return r.db
}

func (r *PostgresReminderRepository) Close() error {
	return r.db.Close()
}
