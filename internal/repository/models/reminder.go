// Package models contains data structures used by the reminder repository layer.
package models

import "time"

type ReminderStats struct {
	Category     string  `json:"category"`
	Status       string  `json:"status"`
	Count        int     `json:"count"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	MaxLatencyMs int     `json:"max_latency_ms"`
	AvgAttempts  float64 `json:"avg_attempts"`
}

type RecentReminder struct {
	ReminderID    string     `json:"reminder_id"`
	TaskName      string     `json:"task_name"`
	Category      string     `json:"category"`
	Status        string     `json:"status"`
	FireAt        time.Time  `json:"fire_at"`
	CreatedAt     time.Time  `json:"created_at"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
	Attempts      int        `json:"attempts"`
	FailureReason string     `json:"failure_reason,omitempty"`
}
