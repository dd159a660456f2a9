// Package dashboard serves reminder statistics, delivery history and reports for the monitoring UI.
package dashboard

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/nadmax/taskplan/internal/httputil"
	"github.com/nadmax/taskplan/internal/reminder"
	"github.com/nadmax/taskplan/internal/report"
	"github.com/nadmax/taskplan/internal/repository"
	"github.com/nadmax/taskplan/internal/repository/models"
	"github.com/nadmax/taskplan/internal/task"
)

const defaultHistoryLimit = 50

type Dashboard struct {
	queue   *reminder.Queue
	repo    repository.ReminderRepository
	reports *report.Generator
	now     func() time.Time
}

type Stats struct {
	TotalReminders      int            `json:"total_reminders"`
	PendingReminders    int            `json:"pending_reminders"`
	DeliveredReminders  int            `json:"delivered_reminders"`
	FailedReminders     int            `json:"failed_reminders"`
	CancelledReminders  int            `json:"cancelled_reminders"`
	RemindersByCategory map[string]int `json:"reminders_by_category"`
	AverageLateness     string         `json:"average_lateness"`
	NextFireAt          *time.Time     `json:"next_fire_at,omitempty"`
	LastUpdated         time.Time      `json:"last_updated"`
}

// NewDashboard accepts a nil repo or reports generator when PostgreSQL is not configured.
func NewDashboard(q *reminder.Queue, repo repository.ReminderRepository, reports *report.Generator) *Dashboard {
	return &Dashboard{queue: q, repo: repo, reports: reports, now: time.Now}
}

func (d *Dashboard) GetStats(w http.ResponseWriter, r *http.Request) {
	reminders, err := d.queue.All(r.Context())
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	stats := Stats{
		TotalReminders:      len(reminders),
		RemindersByCategory: make(map[string]int),
		LastUpdated:         d.now(),
	}

	var totalLateness time.Duration
	deliveredCount := 0

	for _, rem := range reminders {
		switch rem.Status {
		case task.ReminderPending:
			stats.PendingReminders++
		case task.ReminderDelivered:
			stats.DeliveredReminders++
		case task.ReminderFailed:
			stats.FailedReminders++
		case task.ReminderCancelled:
			stats.CancelledReminders++
		}

		stats.RemindersByCategory[string(rem.Task.Category)]++

		if rem.DeliveredAt != nil {
			totalLateness += max(rem.DeliveredAt.Sub(rem.FireAt), 0)
			deliveredCount++
		}
	}

	if deliveredCount > 0 {
		avg := totalLateness / time.Duration(deliveredCount)
		stats.AverageLateness = avg.Round(time.Millisecond).String()
	} else {
		stats.AverageLateness = "N/A"
	}

	next, ok, err := d.queue.NextFireAt(r.Context())
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if ok {
		stats.NextFireAt = &next
	}

	httputil.WriteJSON(w, http.StatusOK, stats)
}

// GetHistory lists recent reminders, newest first. It reads PostgreSQL when
// configured and otherwise the last 24 hours held in Redis.
func (d *Dashboard) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	if d.repo != nil {
		history, err := d.repo.GetRecentReminders(r.Context(), limit)
		if err != nil {
			httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, history)
		return
	}

	reminders, err := d.queue.All(r.Context())
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cutoff := d.now().Add(-24 * time.Hour)
	history := []models.RecentReminder{}
	for _, rem := range reminders {
		if rem.CreatedAt.Before(cutoff) {
			continue
		}
		history = append(history, toRecent(rem))
	}

	sort.Slice(history, func(i, j int) bool {
		return history[i].CreatedAt.After(history[j].CreatedAt)
	})
	if len(history) > limit {
		history = history[:limit]
	}

	httputil.WriteJSON(w, http.StatusOK, history)
}

func (d *Dashboard) GetReport(w http.ResponseWriter, r *http.Request) {
	if d.reports == nil {
		httputil.WriteJSONError(w, "PostgreSQL not configured", http.StatusServiceUnavailable)
		return
	}

	now := d.now()
	req, err := report.ParseRequest(r.URL.Query(), now)
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := d.reports.Generate(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, report.ErrUnsupported) {
			status = http.StatusBadRequest
		}
		httputil.WriteJSONError(w, err.Error(), status)
		return
	}

	contentType := "text/csv"
	if req.Format == report.FormatJSON {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+report.Filename(req, now))

	if err := report.Write(w, req.Format, data, now); err != nil {
		httputil.WriteJSONError(w, "Failed to encode report", http.StatusInternalServerError)
	}
}

func toRecent(rem *task.Reminder) models.RecentReminder {
	return models.RecentReminder{
		ReminderID:    rem.ID,
		TaskName:      rem.Task.Name,
		Category:      string(rem.Task.Category),
		Status:        string(rem.Status),
		FireAt:        rem.FireAt,
		CreatedAt:     rem.CreatedAt,
		DeliveredAt:   rem.DeliveredAt,
		Attempts:      rem.Attempts,
		FailureReason: rem.Error,
	}
}
