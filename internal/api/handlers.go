// Package api exposes the scheduler, the reminder dispatcher and reminder history over HTTP.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nadmax/taskplan/internal/dashboard"
	"github.com/nadmax/taskplan/internal/dataset"
	"github.com/nadmax/taskplan/internal/httputil"
	"github.com/nadmax/taskplan/internal/metrics"
	"github.com/nadmax/taskplan/internal/reminder"
	"github.com/nadmax/taskplan/internal/report"
	"github.com/nadmax/taskplan/internal/repository"
	"github.com/nadmax/taskplan/internal/schedule"
	"github.com/nadmax/taskplan/internal/task"
)

type API struct {
	queue   *reminder.Queue
	repo    repository.ReminderRepository
	reports *report.Generator
	logger  zerolog.Logger
	mux     *http.ServeMux
}

type Option func(*API)

// WithHistory enables the history and report endpoints backed by PostgreSQL.
func WithHistory(repo repository.ReminderRepository, reports *report.Generator) Option {
	return func(a *API) {
		a.repo = repo
		a.reports = reports
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(a *API) { a.logger = logger }
}

// NewAPI serves the scheduling endpoints always; reminder and dashboard
// endpoints answer 503 when q is nil.
func NewAPI(q *reminder.Queue, opts ...Option) *API {
	api := &API{
		queue:  q,
		logger: zerolog.Nop(),
		mux:    http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(api)
	}

	api.setupRoutes()
	return api
}

func (a *API) setupRoutes() {
	a.mux.HandleFunc("/api/tasks/sort", a.handleSort)
	a.mux.HandleFunc("/api/tasks/search", a.handleSearch)
	a.mux.HandleFunc("/api/schedule/maximize", a.handleMaximize)

	a.mux.HandleFunc("/api/reminders", a.handleReminders)
	a.mux.HandleFunc("/api/reminders/", a.handleReminderByID)

	a.mux.HandleFunc("/api/history/stats", a.handleHistoryStats)
	a.mux.HandleFunc("/api/history/recent", a.handleRecentHistory)
	a.mux.HandleFunc("/api/history/reminder/", a.handleReminderHistory)

	if a.queue != nil {
		dash := dashboard.NewDashboard(a.queue, a.repo, a.reports)
		a.mux.HandleFunc("/api/dashboard/stats", dash.GetStats)
		a.mux.HandleFunc("/api/dashboard/history", dash.GetHistory)
		a.mux.HandleFunc("/api/dashboard/report", dash.GetReport)
	}
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

func (a *API) handleSort(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	keyName := r.URL.Query().Get("key")
	if keyName == "" {
		keyName = task.KeyDeadline.String()
	}
	key, err := task.ParseKey(keyName)
	if err != nil {
		writeError(w, err)
		return
	}

	tasks, ok := a.decodeTasks(w, r)
	if !ok {
		return
	}

	sorted := schedule.Sort(tasks, key)
	metrics.RecordTasksSorted(key, len(sorted))

	httputil.WriteJSON(w, http.StatusOK, sorted)
}

func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	raw := r.URL.Query().Get("deadline")
	if raw == "" {
		httputil.WriteJSONError(w, "deadline is required", http.StatusBadRequest)
		return
	}
	deadline, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		httputil.WriteJSONError(w, fmt.Sprintf("invalid deadline %q", raw), http.StatusBadRequest)
		return
	}

	tasks, ok := a.decodeTasks(w, r)
	if !ok {
		return
	}

	found, ok, err := schedule.FindByDeadline(tasks, deadline)
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.RecordDeadlineSearch(ok)

	if !ok {
		httputil.WriteJSONError(w, fmt.Sprintf("no task with deadline %g", deadline), http.StatusNotFound)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, found)
}

func (a *API) handleMaximize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	mode, err := schedule.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	tasks, ok := a.decodeTasks(w, r)
	if !ok {
		return
	}

	start := time.Now()
	plan, err := schedule.Optimizer{Mode: mode}.Maximize(tasks)
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.RecordOptimizerRun(string(mode), len(tasks), time.Since(start))

	httputil.WriteJSON(w, http.StatusOK, plan)
}

func (a *API) handleReminders(w http.ResponseWriter, r *http.Request) {
	if a.queue == nil {
		httputil.WriteJSONError(w, "Redis not configured", http.StatusServiceUnavailable)
		return
	}

	switch r.Method {
	case http.MethodPost:
		a.scheduleReminders(w, r)
	case http.MethodGet:
		a.listReminders(w, r)
	default:
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (a *API) scheduleReminders(w http.ResponseWriter, r *http.Request) {
	tasks, ok := a.decodeTasks(w, r)
	if !ok {
		return
	}
	if len(tasks) == 0 {
		httputil.WriteJSONError(w, "at least one task is required", http.StatusBadRequest)
		return
	}

	handles, err := a.queue.ScheduleAll(r.Context(), tasks)
	if err != nil {
		writeError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, handles)
}

func (a *API) listReminders(w http.ResponseWriter, r *http.Request) {
	var (
		reminders []*task.Reminder
		err       error
	)
	if r.URL.Query().Get("pending") == "true" {
		reminders, err = a.queue.Pending(r.Context())
	} else {
		reminders, err = a.queue.All(r.Context())
	}
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, reminders)
}

func (a *API) handleReminderByID(w http.ResponseWriter, r *http.Request) {
	if a.queue == nil {
		httputil.WriteJSONError(w, "Redis not configured", http.StatusServiceUnavailable)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/reminders/")
	if id == "" {
		httputil.WriteJSONError(w, "Reminder ID is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		rem, err := a.queue.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, rem)
	case http.MethodDelete:
		if err := a.queue.Cancel(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{
			"message":     "Reminder cancelled",
			"reminder_id": id,
		})
	default:
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (a *API) handleHistoryStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if a.repo == nil {
		httputil.WriteJSONError(w, "PostgreSQL not configured", http.StatusServiceUnavailable)
		return
	}

	hours := 24
	if h := r.URL.Query().Get("hours"); h != "" {
		if parsed, err := strconv.Atoi(h); err == nil && parsed > 0 {
			hours = parsed
		}
	}

	stats, err := a.repo.GetReminderStats(r.Context(), hours)
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (a *API) handleRecentHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if a.repo == nil {
		httputil.WriteJSONError(w, "PostgreSQL not configured", http.StatusServiceUnavailable)
		return
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	recent, err := a.repo.GetRecentReminders(r.Context(), limit)
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, recent)
}

func (a *API) handleReminderHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if a.repo == nil {
		httputil.WriteJSONError(w, "PostgreSQL not configured", http.StatusServiceUnavailable)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/history/reminder/")
	if id == "" {
		httputil.WriteJSONError(w, "Reminder ID is required", http.StatusBadRequest)
		return
	}

	rem, err := a.repo.GetReminder(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, rem)
}

func (a *API) decodeTasks(w http.ResponseWriter, r *http.Request) ([]task.Task, bool) {
	defer func() {
		if err := r.Body.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to close request body")
		}
	}()

	tasks, err := dataset.Decode(r.Body)
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}

	return tasks, true
}

// writeError maps domain errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, schedule.ErrNotSorted):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, schedule.ErrEmptyInput),
		errors.Is(err, task.ErrInvalidTask),
		errors.Is(err, task.ErrUnknownKey):
		status = http.StatusBadRequest
	case errors.Is(err, reminder.ErrNotFound), errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	}

	httputil.WriteJSONError(w, err.Error(), status)
}
