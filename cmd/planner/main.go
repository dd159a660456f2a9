package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/nadmax/taskplan/internal/dataset"
	"github.com/nadmax/taskplan/internal/logging"
	"github.com/nadmax/taskplan/internal/notifier"
	"github.com/nadmax/taskplan/internal/reminder"
	"github.com/nadmax/taskplan/internal/render"
	"github.com/nadmax/taskplan/internal/report"
	"github.com/nadmax/taskplan/internal/schedule"
	"github.com/nadmax/taskplan/internal/task"
)

type options struct {
	tasksPath  string
	deadline   float64
	sortKey    string
	mode       string
	width      int
	reportPath string
	reminders  bool
	redisAddr  string
	logLevel   string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("planner", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.tasksPath, "tasks", "", "YAML or JSON task file (default: built-in sample)")
	fs.Float64Var(&opts.deadline, "deadline", 15, "deadline to search for")
	fs.StringVar(&opts.sortKey, "sort", task.KeyPriority.String(), "display order: deadline, priority, start_time or duration")
	fs.StringVar(&opts.mode, "mode", string(schedule.ModeFirstMatch), "optimizer mode: first-match or strict")
	fs.IntVar(&opts.width, "width", render.DefaultWidth, "Gantt chart width in columns")
	fs.StringVar(&opts.reportPath, "report", "", "write the chosen plan to this .csv or .json file")
	fs.BoolVar(&opts.reminders, "reminders", false, "schedule deadline reminders in Redis and run them")
	fs.StringVar(&opts.redisAddr, "redis", envOr("REDIS_ADDR", "localhost:6379"), "Redis address for reminders")
	fs.StringVar(&opts.logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "log level")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	logger := logging.NewWithWriter(stderr, logging.Config{Level: opts.logLevel})

	tasks := dataset.Sample()
	if opts.tasksPath != "" {
		if tasks, err = dataset.LoadFile(opts.tasksPath); err != nil {
			return err
		}
	}

	sorted, err := schedule.SortBy(tasks, opts.sortKey)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Tasks sorted by %s:\n", opts.sortKey)
	for _, t := range sorted {
		fmt.Fprintln(stdout, t)
	}

	// search needs deadline order regardless of the display order
	byDeadline := schedule.Sort(tasks, task.KeyDeadline)
	fmt.Fprintf(stdout, "\nSearching for a task with deadline %g:\n", opts.deadline)
	found, ok, err := schedule.FindByDeadline(byDeadline, opts.deadline)
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintln(stdout, found)
	} else {
		fmt.Fprintln(stdout, "No task found with this deadline.")
	}

	mode, err := schedule.ParseMode(opts.mode)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, "\nMaximum task duration achievable:")
	plan, err := schedule.Optimizer{Mode: mode}.Maximize(tasks)
	if err != nil {
		fmt.Fprintf(stdout, "unavailable: %v\n", err)
	} else {
		fmt.Fprintf(stdout, "%g\n", plan.Total)
		if opts.reportPath != "" {
			if err := writePlanReport(opts.reportPath, plan); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Plan written to %s\n", opts.reportPath)
		}
	}

	fmt.Fprintln(stdout)
	if err := render.NewChart(stdout, opts.width).Render(tasks); err != nil {
		return err
	}

	if !opts.reminders {
		return nil
	}
	return runReminders(ctx, opts.redisAddr, tasks, stdout, logger)
}

func runReminders(ctx context.Context, redisAddr string, tasks []task.Task, stdout io.Writer, logger zerolog.Logger) error {
	q, err := reminder.NewQueue(redisAddr, notifier.NewPrinter(stdout), nil, reminder.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		if err := q.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close reminder queue")
		}
	}()

	fmt.Fprintln(stdout, "\nScheduling reminders...")
	if _, err := q.ScheduleAll(ctx, tasks); err != nil {
		return err
	}

	fmt.Fprintln(stdout, "Running reminders...")
	return q.Run(ctx)
}

func writePlanReport(path string, plan schedule.Plan) error {
	format := report.FormatCSV
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = report.FormatJSON
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}

	if err := report.Write(f, format, report.PlanRows(plan), time.Now()); err != nil {
		_ = f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
