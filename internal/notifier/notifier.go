// Package notifier delivers reminder messages to their sinks.
// Each sink implements Notifier and can be combined with Multi.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nadmax/taskplan/internal/task"
)

type Notification struct {
	ReminderID string
	Task       task.Task
	Message    string
	FireAt     time.Time
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// Printer writes the bare message line, one per notification.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) Notify(_ context.Context, n Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, err := fmt.Fprintln(p.w, n.Message)
	return err
}

type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	l.logger.Info().
		Str("reminder_id", n.ReminderID).
		Str("task", n.Task.Name).
		Str("category", string(n.Task.Category)).
		Time("fire_at", n.FireAt).
		Msg(n.Message)
	return nil
}

// Multi delivers to every sink and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
