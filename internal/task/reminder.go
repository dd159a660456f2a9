package task

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

type ReminderStatus string

const (
	ReminderPending   ReminderStatus = "pending"
	ReminderDelivered ReminderStatus = "delivered"
	ReminderFailed    ReminderStatus = "failed"
	ReminderCancelled ReminderStatus = "cancelled"
)

// Reminder is a one-shot notification that a task's deadline has arrived.
type Reminder struct {
	ID          string         `json:"id"`
	Seq         int64          `json:"seq"`
	Task        Task           `json:"task"`
	FireAt      time.Time      `json:"fire_at"`
	Status      ReminderStatus `json:"status"`
	Attempts    int            `json:"attempts"`
	MaxAttempts int            `json:"max_attempts"`
	CreatedAt   time.Time      `json:"created_at"`
	DeliveredAt *time.Time     `json:"delivered_at,omitempty"`
	Error       string         `json:"error,omitempty"`
}

func NewReminder(t Task, fireAt time.Time) *Reminder {
	return &Reminder{
		ID:          uuid.New().String(),
		Task:        t,
		FireAt:      fireAt,
		Status:      ReminderPending,
		MaxAttempts: 3,
		CreatedAt:   time.Now(),
	}
}

func (r *Reminder) Message() string {
	return fmt.Sprintf("Reminder: %s is due!", r.Task.Name)
}

func (r *Reminder) ShouldRetry() bool {
	return r.Attempts < r.MaxAttempts
}

func (r *Reminder) ToJSON() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

func ReminderFromJSON(data string) (*Reminder, error) {
	var r Reminder
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, err
	}

	return &r, nil
}

// maxDeadline is 9999-12-31T23:59:59Z, the latest fire time accepted.
const maxDeadline = 253402300799

// DeadlineTime reads the deadline as seconds since the Unix epoch, clamped to
// [epoch, year 9999]. Earlier deadlines are already past and fire at once.
func (t Task) DeadlineTime() time.Time {
	d := t.Deadline
	if math.IsNaN(d) || d < 0 {
		d = 0
	}
	if d > maxDeadline {
		d = maxDeadline
	}
	sec, frac := math.Modf(d)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}

// FireTime is when a deadline reminder for t should go off: at the deadline,
// or immediately when the deadline is already behind now.
func FireTime(t Task, now time.Time) time.Time {
	at := t.DeadlineTime()
	if at.Before(now) {
		return now
	}
	return at
}
