package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadmax/taskplan/internal/notifier"
	"github.com/nadmax/taskplan/internal/reminder"
	"github.com/nadmax/taskplan/internal/report"
	"github.com/nadmax/taskplan/internal/repository"
	"github.com/nadmax/taskplan/internal/repository/models"
	"github.com/nadmax/taskplan/internal/task"
)

var discard = notifier.NotifierFunc(func(context.Context, notifier.Notification) error { return nil })

func setupTestDashboard(t *testing.T, repo repository.ReminderRepository, reports *report.Generator) (*Dashboard, *reminder.Queue, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	q, err := reminder.NewQueue(mr.Addr(), discard, nil)
	require.NoError(t, err)

	return NewDashboard(q, repo, reports), q, mr
}

func gym() task.Task {
	return task.Task{Name: "Gym", Category: task.CategoryPersonal, Deadline: 15, StartTime: 12, Duration: 2, Priority: 2}
}

func study() task.Task {
	return task.Task{Name: "Study OOP", Category: task.CategoryAcademic, Deadline: 10, StartTime: 2, Duration: 3, Priority: 1}
}

func TestNewDashboard(t *testing.T) {
	dash, q, mr := setupTestDashboard(t, nil, nil)
	defer mr.Close()
	defer func() { _ = q.Close() }()

	assert.NotNil(t, dash)
	assert.NotNil(t, dash.queue)
	assert.Nil(t, dash.repo)
}

func TestGetStats_Empty(t *testing.T) {
	dash, q, mr := setupTestDashboard(t, nil, nil)
	defer mr.Close()
	defer func() { _ = q.Close() }()

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard/stats", nil)
	w := httptest.NewRecorder()

	dash.GetStats(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var stats Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))

	assert.Equal(t, 0, stats.TotalReminders)
	assert.Equal(t, 0, stats.PendingReminders)
	assert.Equal(t, "N/A", stats.AverageLateness)
	assert.Nil(t, stats.NextFireAt)
	assert.NotZero(t, stats.LastUpdated)
}

func TestGetStats_WithReminders(t *testing.T) {
	dash, q, mr := setupTestDashboard(t, nil, nil)
	defer mr.Close()
	defer func() { _ = q.Close() }()

	ctx := context.Background()
	_, err := q.Schedule(ctx, gym(), time.Now().Add(-time.Second))
	require.NoError(t, err)
	_, err = q.Schedule(ctx, study(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	cancelled, err := q.Schedule(ctx, study(), time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	require.NoError(t, q.Cancel(ctx, cancelled.ID))

	n, err := q.RunPending(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard/stats", nil)
	w := httptest.NewRecorder()

	dash.GetStats(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var stats Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))

	assert.Equal(t, 3, stats.TotalReminders)
	assert.Equal(t, 1, stats.PendingReminders)
	assert.Equal(t, 1, stats.DeliveredReminders)
	assert.Equal(t, 1, stats.CancelledReminders)
	assert.Equal(t, 1, stats.RemindersByCategory["personal"])
	assert.Equal(t, 2, stats.RemindersByCategory["academic"])
	assert.NotEqual(t, "N/A", stats.AverageLateness)
	assert.NotNil(t, stats.NextFireAt)
}

func TestGetHistory_FromRedis(t *testing.T) {
	dash, q, mr := setupTestDashboard(t, nil, nil)
	defer mr.Close()
	defer func() { _ = q.Close() }()

	ctx := context.Background()
	_, err := q.Schedule(ctx, gym(), time.Now())
	require.NoError(t, err)
	_, err = q.Schedule(ctx, study(), time.Now())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard/history?limit=1", nil)
	w := httptest.NewRecorder()

	dash.GetHistory(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var history []models.RecentReminder
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	assert.Len(t, history, 1)
}

func TestGetHistory_FromRepository(t *testing.T) {
	repo := repository.NewMockPostgresRepository()
	repo.RecentReminders = []models.RecentReminder{
		{ReminderID: "r-1", TaskName: "Gym", Category: "personal", Status: "delivered", CreatedAt: time.Now()},
		{ReminderID: "r-2", TaskName: "Study OOP", Category: "academic", Status: "failed", CreatedAt: time.Now()},
	}

	dash, q, mr := setupTestDashboard(t, repo, nil)
	defer mr.Close()
	defer func() { _ = q.Close() }()

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard/history", nil)
	w := httptest.NewRecorder()

	dash.GetHistory(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var history []models.RecentReminder
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history, 2)
	assert.Equal(t, "r-1", history[0].ReminderID)
}

func TestGetHistory_RepositoryError(t *testing.T) {
	repo := repository.NewMockPostgresRepository()
	repo.GetRecentError = errors.New("database connection failed")

	dash, q, mr := setupTestDashboard(t, repo, nil)
	defer mr.Close()
	defer func() { _ = q.Close() }()

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard/history", nil)
	w := httptest.NewRecorder()

	dash.GetHistory(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "database connection failed")
}

func TestGetReport_NotConfigured(t *testing.T) {
	dash, q, mr := setupTestDashboard(t, nil, nil)
	defer mr.Close()
	defer func() { _ = q.Close() }()

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard/report?type=reminder_summary", nil)
	w := httptest.NewRecorder()

	dash.GetReport(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetReport_CSV(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`FROM reminder_history`).
		WillReturnRows(sqlmock.NewRows([]string{
			"category", "total", "delivered", "failed", "cancelled", "avg_attempts", "avg_lateness_ms", "delivery_rate",
		}).AddRow("personal", 2, 2, 0, 0, 1.0, 12.0, 100.0))

	dash, q, mr := setupTestDashboard(t, nil, report.NewGenerator(db, zerolog.Nop()))
	defer mr.Close()
	defer func() { _ = q.Close() }()

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard/report?type=reminder_summary", nil)
	w := httptest.NewRecorder()

	dash.GetReport(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "taskplan_reminder_summary_")
	assert.Contains(t, w.Body.String(), "personal,2,2,0,0,1.00,12,100.00")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetReport_BadRequest(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	dash, q, mr := setupTestDashboard(t, nil, report.NewGenerator(db, zerolog.Nop()))
	defer mr.Close()
	defer func() { _ = q.Close() }()

	tests := []string{
		"/api/dashboard/report",
		"/api/dashboard/report?type=reminder_summary&format=xml",
		"/api/dashboard/report?type=worker_performance",
	}

	for _, target := range tests {
		t.Run(target, func(t *testing.T) {
			w := httptest.NewRecorder()
			dash.GetReport(w, httptest.NewRequest(http.MethodGet, target, nil))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}
