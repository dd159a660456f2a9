package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nadmax/taskplan/internal/repository/models"
	"github.com/nadmax/taskplan/internal/task"
)

type MockPostgresRepository struct {
	mu                 sync.Mutex
	GetReminderCalls   []string
	SaveReminderCalls  []SaveReminderCall
	MarkDeliveredCalls []MarkDeliveredCall
	MarkFailedCalls    []MarkFailedCall
	MarkCancelledCalls []string
	Reminders          map[string]*task.Reminder
	ReminderStats      []models.ReminderStats
	RecentReminders    []models.RecentReminder
	GetReminderError   error
	SaveReminderError  error
	MarkDeliveredError error
	MarkFailedError    error
	MarkCancelledError error
	GetStatsError      error
	GetRecentError     error
}

type SaveReminderCall struct {
	Reminder task.Reminder
}

type MarkDeliveredCall struct {
	ReminderID  string
	DeliveredAt time.Time
	Attempts    int
}

type MarkFailedCall struct {
	ReminderID string
	Reason     string
	Attempts   int
}

func NewMockPostgresRepository() *MockPostgresRepository {
	return &MockPostgresRepository{
		Reminders:       make(map[string]*task.Reminder),
		ReminderStats:   make([]models.ReminderStats, 0),
		RecentReminders: make([]models.RecentReminder, 0),
	}
}

func (m *MockPostgresRepository) GetReminder(ctx context.Context, reminderID string) (*task.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetReminderCalls = append(m.GetReminderCalls, reminderID)

	if m.GetReminderError != nil {
		return nil, m.GetReminderError
	}

	r, exists := m.Reminders[reminderID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, reminderID)
	}

	reminderCopy := *r
	return &reminderCopy, nil
}

func (m *MockPostgresRepository) SaveReminder(ctx context.Context, r *task.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveReminderCalls = append(m.SaveReminderCalls, SaveReminderCall{Reminder: *r})

	if m.SaveReminderError != nil {
		return m.SaveReminderError
	}

	reminderCopy := *r
	m.Reminders[r.ID] = &reminderCopy
	return nil
}

func (m *MockPostgresRepository) MarkDelivered(ctx context.Context, reminderID string, deliveredAt time.Time, attempts int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.MarkDeliveredCalls = append(m.MarkDeliveredCalls, MarkDeliveredCall{
		ReminderID:  reminderID,
		DeliveredAt: deliveredAt,
		Attempts:    attempts,
	})

	if m.MarkDeliveredError != nil {
		return m.MarkDeliveredError
	}

	if r, exists := m.Reminders[reminderID]; exists {
		r.Status = task.ReminderDelivered
		r.DeliveredAt = &deliveredAt
		r.Attempts = attempts
	}

	return nil
}

func (m *MockPostgresRepository) MarkFailed(ctx context.Context, reminderID string, reason string, attempts int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.MarkFailedCalls = append(m.MarkFailedCalls, MarkFailedCall{
		ReminderID: reminderID,
		Reason:     reason,
		Attempts:   attempts,
	})

	if m.MarkFailedError != nil {
		return m.MarkFailedError
	}

	if r, exists := m.Reminders[reminderID]; exists {
		r.Status = task.ReminderFailed
		r.Error = reason
		r.Attempts = attempts
	}

	return nil
}

func (m *MockPostgresRepository) MarkCancelled(ctx context.Context, reminderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.MarkCancelledCalls = append(m.MarkCancelledCalls, reminderID)

	if m.MarkCancelledError != nil {
		return m.MarkCancelledError
	}

	if r, exists := m.Reminders[reminderID]; exists {
		r.Status = task.ReminderCancelled
	}

	return nil
}

func (m *MockPostgresRepository) GetReminderStats(ctx context.Context, hours int) ([]models.ReminderStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetStatsError != nil {
		return nil, m.GetStatsError
	}

	return m.ReminderStats, nil
}

func (m *MockPostgresRepository) GetRecentReminders(ctx context.Context, limit int) ([]models.RecentReminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetRecentError != nil {
		return nil, m.GetRecentError
	}

	if len(m.RecentReminders) > limit {
		return m.RecentReminders[:limit], nil
	}

	return m.RecentReminders, nil
}

func (m *MockPostgresRepository) Close() error {
	return nil
}

func (m *MockPostgresRepository) GetSaveReminderCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.SaveReminderCalls)
}

func (m *MockPostgresRepository) GetMarkDeliveredCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.MarkDeliveredCalls)
}

func (m *MockPostgresRepository) GetMarkFailedCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.MarkFailedCalls)
}

func (m *MockPostgresRepository) GetReminderStatus(reminderID string) (task.ReminderStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, exists := m.Reminders[reminderID]
	if !exists {
		return "", false
	}

	return r.Status, true
}
