// Package metrics provides Prometheus metrics for the planner, the HTTP API and the reminder dispatcher.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nadmax/taskplan/internal/task"
)

var (
	TasksSorted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskplan_tasks_sorted_total",
			Help: "Total number of tasks ordered by the sort endpoint",
		},
		[]string{"key"},
	)
	DeadlineSearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskplan_deadline_searches_total",
			Help: "Total number of deadline lookups by outcome",
		},
		[]string{"outcome"},
	)
	OptimizerRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskplan_optimizer_runs_total",
			Help: "Total number of duration maximizations by mode",
		},
		[]string{"mode"},
	)
	OptimizerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskplan_optimizer_duration_seconds",
			Help:    "Time spent computing a plan",
			Buckets: []float64{.00001, .0001, .001, .01, .1, 1},
		},
		[]string{"mode"},
	)
	OptimizerInputSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskplan_optimizer_input_tasks",
			Help:    "Number of tasks handed to the optimizer",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
	RemindersScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskplan_reminders_scheduled_total",
			Help: "Total number of reminders scheduled",
		},
		[]string{"category"},
	)
	RemindersDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskplan_reminders_delivered_total",
			Help: "Total number of reminders delivered",
		},
		[]string{"category"},
	)
	RemindersFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskplan_reminders_failed_total",
			Help: "Total number of reminders that failed permanently",
		},
		[]string{"category"},
	)
	RemindersRetried = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskplan_reminders_retried_total",
			Help: "Total number of reminder delivery retries",
		},
		[]string{"category"},
	)
	ReminderLateness = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskplan_reminder_lateness_seconds",
			Help:    "Delay between a reminder's fire time and its delivery",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300},
		},
		[]string{"category"},
	)
	PendingReminders = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskplan_pending_reminders",
			Help: "Current number of reminders waiting to fire",
		},
	)
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskplan_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskplan_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "taskplan_workers_active",
			Help: "Number of currently active reminder workers",
		},
	)
)

func RecordTasksSorted(key task.Key, count int) {
	TasksSorted.WithLabelValues(key.String()).Add(float64(count))
}

func RecordDeadlineSearch(found bool) {
	outcome := "miss"
	if found {
		outcome = "hit"
	}
	DeadlineSearches.WithLabelValues(outcome).Inc()
}

func RecordOptimizerRun(mode string, tasks int, duration time.Duration) {
	OptimizerRuns.WithLabelValues(mode).Inc()
	OptimizerDuration.WithLabelValues(mode).Observe(duration.Seconds())
	OptimizerInputSize.Observe(float64(tasks))
}

func RecordReminderScheduled(category task.Category) {
	RemindersScheduled.WithLabelValues(string(category)).Inc()
}

func RecordReminderDelivered(category task.Category, lateness time.Duration) {
	RemindersDelivered.WithLabelValues(string(category)).Inc()
	if lateness < 0 {
		lateness = 0
	}
	ReminderLateness.WithLabelValues(string(category)).Observe(lateness.Seconds())
}

func RecordReminderFailed(category task.Category) {
	RemindersFailed.WithLabelValues(string(category)).Inc()
}

func RecordReminderRetried(category task.Category) {
	RemindersRetried.WithLabelValues(string(category)).Inc()
}

func UpdatePendingReminders(count int) {
	PendingReminders.Set(float64(count))
}

func UpdateActiveWorkers(count int) {
	WorkersActive.Set(float64(count))
}

func RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
