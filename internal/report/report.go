// Package report builds tabular reports over reminder history and schedule plans
// and writes them as CSV or JSON.
package report

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/nadmax/taskplan/internal/schedule"
)

const (
	TypeReminderSummary = "reminder_summary"
	TypeFailureAnalysis = "failure_analysis"
	TypeHourlyBreakdown = "hourly_breakdown"
	TypeRetryAnalysis   = "retry_analysis"

	FormatCSV  = "csv"
	FormatJSON = "json"
)

var ErrUnsupported = errors.New("unsupported report")

type Request struct {
	Type   string
	Format string
	Start  time.Time
	End    time.Time
}

// ParseRequest reads type, format, start and end from query values.
// The window defaults to the 24 hours before now.
func ParseRequest(values url.Values, now time.Time) (Request, error) {
	req := Request{
		Type:   values.Get("type"),
		Format: values.Get("format"),
		Start:  now.Add(-24 * time.Hour),
		End:    now,
	}

	if req.Type == "" {
		return Request{}, errors.New("missing required field: type")
	}
	if req.Format == "" {
		req.Format = FormatCSV
	}
	if req.Format != FormatCSV && req.Format != FormatJSON {
		return Request{}, fmt.Errorf("%w: format %q", ErrUnsupported, req.Format)
	}

	if s := values.Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return Request{}, fmt.Errorf("invalid start format: %w", err)
		}
		req.Start = t
	}
	if s := values.Get("end"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return Request{}, fmt.Errorf("invalid end format: %w", err)
		}
		req.End = t
	}
	if req.End.Before(req.Start) {
		return Request{}, errors.New("end is before start")
	}

	return req, nil
}

// Filename names a report file for req generated at now.
func Filename(req Request, now time.Time) string {
	return fmt.Sprintf("taskplan_%s_%s.%s", req.Type, now.Format("20060102_150405"), req.Format)
}

type Generator struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewGenerator(db *sql.DB, logger zerolog.Logger) *Generator {
	return &Generator{db: db, logger: logger}
}

// Generate runs the query for req.Type. The first row holds the headers.
func (g *Generator) Generate(ctx context.Context, req Request) ([][]string, error) {
	var (
		data [][]string
		err  error
	)

	switch req.Type {
	case TypeReminderSummary:
		data, err = g.reminderSummary(ctx, req.Start, req.End)
	case TypeFailureAnalysis:
		data, err = g.failureAnalysis(ctx, req.Start, req.End)
	case TypeHourlyBreakdown:
		data, err = g.hourlyBreakdown(ctx, req.Start, req.End)
	case TypeRetryAnalysis:
		data, err = g.retryAnalysis(ctx, req.Start, req.End)
	default:
		return nil, fmt.Errorf("%w: type %q (available: reminder_summary, failure_analysis, hourly_breakdown, retry_analysis)", ErrUnsupported, req.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to generate report: %w", err)
	}

	g.logger.Info().
		Str("type", req.Type).
		Int("rows", len(data)-1).
		Msg("report generated")

	return data, nil
}

func (g *Generator) reminderSummary(ctx context.Context, start, end time.Time) ([][]string, error) {
	query := `
		SELECT
			category,
			COUNT(*) as total,
			COUNT(*) FILTER (WHERE status = 'delivered') as delivered,
			COUNT(*) FILTER (WHERE status = 'failed') as failed,
			COUNT(*) FILTER (WHERE status = 'cancelled') as cancelled,
			AVG(attempts) as avg_attempts,
			AVG(EXTRACT(EPOCH FROM (delivered_at - fire_at)) * 1000) FILTER (WHERE delivered_at IS NOT NULL) as avg_lateness_ms,
			ROUND(100.0 * COUNT(*) FILTER (WHERE status = 'delivered') / NULLIF(COUNT(*), 0), 2) as delivery_rate
		FROM reminder_history
		WHERE created_at BETWEEN $1 AND $2
		GROUP BY category
		ORDER BY total DESC
	`

	rows, err := g.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer g.closeRows(rows)

	data := [][]string{
		{"Category", "Total", "Delivered", "Failed", "Cancelled", "Avg Attempts", "Avg Lateness (ms)", "Delivery Rate (%)"},
	}

	for rows.Next() {
		var category string
		var total, delivered, failed, cancelled int
		var avgAttempts, avgLateness, rate sql.NullFloat64

		if err := rows.Scan(&category, &total, &delivered, &failed, &cancelled, &avgAttempts, &avgLateness, &rate); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}

		data = append(data, []string{
			category,
			strconv.Itoa(total),
			strconv.Itoa(delivered),
			strconv.Itoa(failed),
			strconv.Itoa(cancelled),
			formatFloat(avgAttempts, 2),
			formatFloat(avgLateness, 0),
			formatFloat(rate, 2),
		})
	}

	return data, rows.Err()
}

func (g *Generator) failureAnalysis(ctx context.Context, start, end time.Time) ([][]string, error) {
	query := `
		SELECT
			category,
			LEFT(COALESCE(failure_reason, 'unknown'), 100) as reason,
			COUNT(*) as occurrences,
			MAX(created_at) as last_occurrence
		FROM reminder_history
		WHERE created_at BETWEEN $1 AND $2
			AND status = 'failed'
		GROUP BY category, LEFT(COALESCE(failure_reason, 'unknown'), 100)
		ORDER BY occurrences DESC
		LIMIT 50
	`

	rows, err := g.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer g.closeRows(rows)

	data := [][]string{
		{"Category", "Reason", "Occurrences", "Last Occurrence"},
	}

	for rows.Next() {
		var category, reason string
		var occurrences int
		var last time.Time

		if err := rows.Scan(&category, &reason, &occurrences, &last); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}

		data = append(data, []string{
			category,
			reason,
			strconv.Itoa(occurrences),
			last.Format("2006-01-02 15:04:05"),
		})
	}

	return data, rows.Err()
}

func (g *Generator) hourlyBreakdown(ctx context.Context, start, end time.Time) ([][]string, error) {
	query := `
		SELECT
			DATE_TRUNC('hour', fire_at) as hour,
			COUNT(*) as total,
			COUNT(*) FILTER (WHERE status = 'delivered') as delivered,
			COUNT(*) FILTER (WHERE status = 'failed') as failed
		FROM reminder_history
		WHERE created_at BETWEEN $1 AND $2
		GROUP BY DATE_TRUNC('hour', fire_at)
		ORDER BY hour DESC
	`

	rows, err := g.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer g.closeRows(rows)

	data := [][]string{
		{"Hour", "Total", "Delivered", "Failed"},
	}

	for rows.Next() {
		var hour time.Time
		var total, delivered, failed int

		if err := rows.Scan(&hour, &total, &delivered, &failed); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}

		data = append(data, []string{
			hour.Format("2006-01-02 15:00"),
			strconv.Itoa(total),
			strconv.Itoa(delivered),
			strconv.Itoa(failed),
		})
	}

	return data, rows.Err()
}

func (g *Generator) retryAnalysis(ctx context.Context, start, end time.Time) ([][]string, error) {
	query := `
		SELECT
			category,
			attempts,
			COUNT(*) as reminders,
			COUNT(*) FILTER (WHERE status = 'delivered') as eventually_delivered,
			COUNT(*) FILTER (WHERE status = 'failed') as failed
		FROM reminder_history
		WHERE created_at BETWEEN $1 AND $2
			AND attempts > 1
		GROUP BY category, attempts
		ORDER BY category, attempts
	`

	rows, err := g.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer g.closeRows(rows)

	data := [][]string{
		{"Category", "Attempts", "Reminders", "Eventually Delivered", "Failed"},
	}

	for rows.Next() {
		var category string
		var attempts, reminders, delivered, failed int

		if err := rows.Scan(&category, &attempts, &reminders, &delivered, &failed); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}

		data = append(data, []string{
			category,
			strconv.Itoa(attempts),
			strconv.Itoa(reminders),
			strconv.Itoa(delivered),
			strconv.Itoa(failed),
		})
	}

	return data, rows.Err()
}

func (g *Generator) closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		g.logger.Error().Err(err).Msg("failed to close rows")
	}
}

// PlanRows tabulates the tasks a plan selected, followed by a total row.
func PlanRows(plan schedule.Plan) [][]string {
	data := [][]string{
		{"Task", "Category", "Start", "Duration", "Deadline", "Priority"},
	}

	for _, t := range plan.Tasks {
		data = append(data, []string{
			t.Name,
			string(t.Category),
			strconv.FormatFloat(t.StartTime, 'g', -1, 64),
			strconv.FormatFloat(t.Duration, 'g', -1, 64),
			strconv.FormatFloat(t.Deadline, 'g', -1, 64),
			strconv.Itoa(t.Priority),
		})
	}

	data = append(data, []string{"Total", "", "", strconv.FormatFloat(plan.Total, 'g', -1, 64), "", ""})
	return data
}

// Write encodes data, headers first, in the given format.
func Write(w io.Writer, format string, data [][]string, generatedAt time.Time) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, data)
	case FormatJSON:
		return writeJSON(w, data, generatedAt)
	default:
		return fmt.Errorf("%w: format %q", ErrUnsupported, format)
	}
}

func writeCSV(w io.Writer, data [][]string) error {
	writer := csv.NewWriter(w)
	return writer.WriteAll(data)
}

func writeJSON(w io.Writer, data [][]string, generatedAt time.Time) error {
	if len(data) == 0 {
		return errors.New("insufficient data for JSON export")
	}

	headers := data[0]
	records := make([]map[string]string, 0, len(data)-1)
	for _, row := range data[1:] {
		record := make(map[string]string, len(headers))
		for i, header := range headers {
			if i < len(row) {
				record[header] = row[i]
			}
		}
		records = append(records, record)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(map[string]any{
		"generated_at": generatedAt.Format(time.RFC3339),
		"data":         records,
		"total_rows":   len(records),
	})
}

func formatFloat(val sql.NullFloat64, precision int) string {
	if !val.Valid {
		return "0"
	}
	return strconv.FormatFloat(val.Float64, 'f', precision, 64)
}
