// Package reminder schedules one-shot deadline reminders in Redis and delivers them when due.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/nadmax/taskplan/internal/metrics"
	"github.com/nadmax/taskplan/internal/notifier"
	"github.com/nadmax/taskplan/internal/repository"
	"github.com/nadmax/taskplan/internal/task"
)

const (
	remindersKey = "reminders"
	queueKey     = "reminder_queue"
	seqKey       = "reminder_seq"
)

var ErrNotFound = errors.New("reminder not found")

// Handle identifies a scheduled reminder.
type Handle struct {
	ID       string    `json:"id"`
	TaskName string    `json:"task_name"`
	FireAt   time.Time `json:"fire_at"`
}

// Dispatcher is the boundary the planner uses for reminders. Nothing fires
// until RunPending or Run is called.
type Dispatcher interface {
	Schedule(ctx context.Context, t task.Task, fireAt time.Time) (Handle, error)
	Cancel(ctx context.Context, reminderID string) error
	RunPending(ctx context.Context) (int, error)
	Run(ctx context.Context) error
}

type Option func(*Queue)

func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(q *Queue) { q.logger = logger }
}

// WithRetryDelay sets the base backoff; attempt n is retried n*d after it failed.
func WithRetryDelay(d time.Duration) Option {
	return func(q *Queue) { q.retryDelay = d }
}

type Queue struct {
	client     *redis.Client
	notifier   notifier.Notifier
	repo       repository.ReminderRepository
	now        func() time.Time
	retryDelay time.Duration
	logger     zerolog.Logger
}

var _ Dispatcher = (*Queue)(nil)

func NewQueue(redisAddr string, n notifier.Notifier, repo repository.ReminderRepository, opts ...Option) (*Queue, error) {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	q := &Queue{
		client:     client,
		notifier:   n,
		repo:       repo,
		now:        time.Now,
		retryDelay: 10 * time.Second,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(q)
	}

	return q, nil
}

func (q *Queue) Schedule(ctx context.Context, t task.Task, fireAt time.Time) (Handle, error) {
	if err := t.Validate(); err != nil {
		return Handle{}, err
	}

	r := task.NewReminder(t, fireAt)
	r.CreatedAt = q.now()

	seq, err := q.client.Incr(ctx, seqKey).Result()
	if err != nil {
		return Handle{}, fmt.Errorf("failed to allocate reminder sequence: %w", err)
	}
	r.Seq = seq

	if err := q.store(ctx, r); err != nil {
		return Handle{}, err
	}
	if err := q.push(ctx, r, fireAt); err != nil {
		return Handle{}, err
	}

	if q.repo != nil {
		if err := q.repo.SaveReminder(ctx, r); err != nil {
			q.logger.Error().Err(err).Str("reminder_id", r.ID).Msg("failed to save reminder history")
		}
	}

	metrics.RecordReminderScheduled(t.Category)
	q.logger.Debug().
		Str("reminder_id", r.ID).
		Str("task", t.Name).
		Time("fire_at", fireAt).
		Msg("reminder scheduled")

	return Handle{ID: r.ID, TaskName: t.Name, FireAt: fireAt}, nil
}

// ScheduleAtDeadline schedules a reminder at the task's deadline, read as Unix seconds.
func (q *Queue) ScheduleAtDeadline(ctx context.Context, t task.Task) (Handle, error) {
	return q.Schedule(ctx, t, task.FireTime(t, q.now()))
}

func (q *Queue) ScheduleAll(ctx context.Context, tasks []task.Task) ([]Handle, error) {
	handles := make([]Handle, 0, len(tasks))
	for _, t := range tasks {
		h, err := q.ScheduleAtDeadline(ctx, t)
		if err != nil {
			return handles, err
		}
		handles = append(handles, h)
	}

	return handles, nil
}

func (q *Queue) Cancel(ctx context.Context, reminderID string) error {
	r, err := q.Get(ctx, reminderID)
	if err != nil {
		return err
	}

	removed, err := q.client.ZRem(ctx, queueKey, member(r)).Result()
	if err != nil {
		return err
	}
	if removed == 0 {
		return fmt.Errorf("%w: %s is no longer pending", ErrNotFound, reminderID)
	}

	r.Status = task.ReminderCancelled
	if err := q.store(ctx, r); err != nil {
		return err
	}

	if q.repo != nil {
		if err := q.repo.MarkCancelled(ctx, r.ID); err != nil {
			q.logger.Error().Err(err).Str("reminder_id", r.ID).Msg("failed to record cancellation")
		}
	}

	return nil
}

func (q *Queue) Get(ctx context.Context, reminderID string) (*task.Reminder, error) {
	data, err := q.client.HGet(ctx, remindersKey, reminderID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, reminderID)
	}
	if err != nil {
		return nil, err
	}

	return task.ReminderFromJSON(data)
}

func (q *Queue) All(ctx context.Context) ([]*task.Reminder, error) {
	entries, err := q.client.HGetAll(ctx, remindersKey).Result()
	if err != nil {
		return nil, err
	}

	reminders := make([]*task.Reminder, 0, len(entries))
	for _, data := range entries {
		r, err := task.ReminderFromJSON(data)
		if err != nil {
			continue
		}
		reminders = append(reminders, r)
	}

	return reminders, nil
}

// Pending lists reminders that have not fired yet, in firing order.
func (q *Queue) Pending(ctx context.Context) ([]*task.Reminder, error) {
	members, err := q.client.ZRange(ctx, queueKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	pending := make([]*task.Reminder, 0, len(members))
	for _, m := range members {
		r, err := q.Get(ctx, idFromMember(m))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		pending = append(pending, r)
	}

	return pending, nil
}

func (q *Queue) PendingCount(ctx context.Context) (int, error) {
	n, err := q.client.ZCard(ctx, queueKey).Result()
	return int(n), err
}

// NextFireAt reports when the earliest pending reminder is due.
func (q *Queue) NextFireAt(ctx context.Context) (time.Time, bool, error) {
	results, err := q.client.ZRangeWithScores(ctx, queueKey, 0, 0).Result()
	if err != nil {
		return time.Time{}, false, err
	}
	if len(results) == 0 {
		return time.Time{}, false, nil
	}

	return time.UnixMilli(int64(results[0].Score)), true, nil
}

// RunPending delivers every reminder that is due now and returns how many were delivered.
func (q *Queue) RunPending(ctx context.Context) (int, error) {
	delivered := 0
	for {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}

		r, err := q.claimDue(ctx)
		if err != nil {
			return delivered, err
		}
		if r == nil {
			break
		}

		if q.deliver(ctx, r) {
			delivered++
		}
	}

	if depth, err := q.PendingCount(ctx); err == nil {
		metrics.UpdatePendingReminders(depth)
	}

	return delivered, nil
}

// Run keeps delivering reminders, waiting for each fire time, until none are pending.
func (q *Queue) Run(ctx context.Context) error {
	for {
		if _, err := q.RunPending(ctx); err != nil {
			return err
		}

		next, ok, err := q.NextFireAt(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		wait := next.Sub(q.now())
		if wait <= 0 {
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (q *Queue) Close() error {
	return q.client.Close()
}

func (q *Queue) claimDue(ctx context.Context) (*task.Reminder, error) {
	maxScore := fmt.Sprintf("%d", q.now().UnixMilli())

	for {
		results, err := q.client.ZRangeByScoreWithScores(ctx, queueKey, &redis.ZRangeBy{
			Min:   "-inf",
			Max:   maxScore,
			Count: 1,
		}).Result()
		if err != nil || len(results) == 0 {
			return nil, err
		}
		entry := results[0]
		m, _ := entry.Member.(string)

		removed, err := q.client.ZRem(ctx, queueKey, m).Result()
		if err != nil {
			return nil, err
		}
		if removed == 0 {
			// another worker claimed it first
			continue
		}

		data, err := q.client.HGet(ctx, remindersKey, idFromMember(m)).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			// give the entry back so a later pass can claim it
			if rerr := q.client.ZAdd(context.WithoutCancel(ctx), queueKey, entry).Err(); rerr != nil {
				q.logger.Error().Err(rerr).Str("member", m).Msg("failed to requeue reminder")
			}
			return nil, fmt.Errorf("failed to load reminder %s: %w", idFromMember(m), err)
		}

		r, err := task.ReminderFromJSON(data)
		if err != nil {
			q.logger.Error().Err(err).Str("member", m).Msg("dropping unreadable reminder")
			continue
		}
		return r, nil
	}
}

func (q *Queue) deliver(ctx context.Context, r *task.Reminder) bool {
	r.Attempts++
	err := q.notifier.Notify(ctx, notifier.Notification{
		ReminderID: r.ID,
		Task:       r.Task,
		Message:    r.Message(),
		FireAt:     r.FireAt,
	})
	now := q.now()

	if err == nil {
		r.Status = task.ReminderDelivered
		r.DeliveredAt = &now
		r.Error = ""
		if err := q.store(ctx, r); err != nil {
			q.logger.Error().Err(err).Str("reminder_id", r.ID).Msg("failed to update delivered reminder")
		}
		if q.repo != nil {
			if err := q.repo.MarkDelivered(ctx, r.ID, now, r.Attempts); err != nil {
				q.logger.Error().Err(err).Str("reminder_id", r.ID).Msg("failed to record delivery")
			}
		}
		metrics.RecordReminderDelivered(r.Task.Category, now.Sub(r.FireAt))
		q.logger.Info().Str("reminder_id", r.ID).Str("task", r.Task.Name).Msg("reminder delivered")
		return true
	}

	r.Error = err.Error()
	if r.ShouldRetry() {
		retryAt := now.Add(time.Duration(r.Attempts) * q.retryDelay)
		if err := q.store(ctx, r); err != nil {
			q.logger.Error().Err(err).Str("reminder_id", r.ID).Msg("failed to update reminder")
		}
		if err := q.push(ctx, r, retryAt); err != nil {
			q.logger.Error().Err(err).Str("reminder_id", r.ID).Msg("failed to re-enqueue reminder")
		}
		if q.repo != nil {
			if err := q.repo.SaveReminder(ctx, r); err != nil {
				q.logger.Error().Err(err).Str("reminder_id", r.ID).Msg("failed to save reminder history")
			}
		}
		metrics.RecordReminderRetried(r.Task.Category)
		q.logger.Warn().Err(err).
			Str("reminder_id", r.ID).
			Int("attempt", r.Attempts).
			Int("max_attempts", r.MaxAttempts).
			Msg("reminder delivery failed, will retry")
		return false
	}

	r.Status = task.ReminderFailed
	if err := q.store(ctx, r); err != nil {
		q.logger.Error().Err(err).Str("reminder_id", r.ID).Msg("failed to update failed reminder")
	}
	if q.repo != nil {
		if err := q.repo.MarkFailed(ctx, r.ID, r.Error, r.Attempts); err != nil {
			q.logger.Error().Err(err).Str("reminder_id", r.ID).Msg("failed to record failure")
		}
	}
	metrics.RecordReminderFailed(r.Task.Category)
	q.logger.Error().Err(err).Str("reminder_id", r.ID).Msg("reminder failed permanently")
	return false
}

func (q *Queue) store(ctx context.Context, r *task.Reminder) error {
	data, err := r.ToJSON()
	if err != nil {
		return err
	}
	return q.client.HSet(ctx, remindersKey, r.ID, data).Err()
}

func (q *Queue) push(ctx context.Context, r *task.Reminder, at time.Time) error {
	return q.client.ZAdd(ctx, queueKey, redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: member(r),
	}).Err()
}

// member orders reminders sharing a fire time by scheduling sequence.
func member(r *task.Reminder) string {
	return fmt.Sprintf("%020d:%s", r.Seq, r.ID)
}

func idFromMember(m string) string {
	if _, id, ok := strings.Cut(m, ":"); ok {
		return id
	}
	return m
}
