package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nadmax/taskplan/internal/repository/models"
	"github.com/nadmax/taskplan/internal/task"
)

var ErrNotFound = errors.New("reminder not found in history")

type ReminderRepository interface {
	GetReminder(ctx context.Context, reminderID string) (*task.Reminder, error)
	SaveReminder(ctx context.Context, r *task.Reminder) error
	MarkDelivered(ctx context.Context, reminderID string, deliveredAt time.Time, attempts int) error
	MarkFailed(ctx context.Context, reminderID string, reason string, attempts int) error
	MarkCancelled(ctx context.Context, reminderID string) error
	GetReminderStats(ctx context.Context, hours int) ([]models.ReminderStats, error)
	GetRecentReminders(ctx context.Context, limit int) ([]models.RecentReminder, error)
	Close() error
}
