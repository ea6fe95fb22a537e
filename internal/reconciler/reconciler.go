package reconciler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"chronoloom/internal/models"
	"chronoloom/internal/scheduler"
	"chronoloom/pkg/logger"
)

const (
	// DefaultLeadTime is how long before the due date a notification fires.
	DefaultLeadTime    = 10 * time.Minute
	defaultConcurrency = 8
	idPrefix           = "reminder:"
	notificationTitle  = "Reminder from Chronoloom"
)

// Change is one notification created or cancelled by a pass.
type Change struct {
	ReminderID     string    `json:"reminderId"`
	NotificationID string    `json:"notificationId"`
	TriggerTime    time.Time `json:"triggerTime"`
}

// Skip is a reminder left without a notification because its notify time has passed.
type Skip struct {
	ReminderID  string    `json:"reminderId"`
	Description string    `json:"description"`
	NotifyAt    time.Time `json:"notifyAt"`
}

// Failure is a scheduler operation that did not succeed.
type Failure struct {
	ReminderID     string              `json:"reminderId"`
	NotificationID string              `json:"notificationId"`
	Op             string              `json:"op"` // create, cancel
	Kind           scheduler.ErrorKind `json:"kind"`
	Error          string              `json:"error"`
	Err            error               `json:"-"`
}

// Result summarizes a reconcile pass.
type Result struct {
	Created   []Change  `json:"created"`
	Cancelled []Change  `json:"cancelled"`
	Skipped   []Skip    `json:"skipped"`
	Failures  []Failure `json:"failures"`
}

// Changed reports how many scheduler calls succeeded.
func (r Result) Changed() int {
	return len(r.Created) + len(r.Cancelled)
}

// Reconciler drives a Scheduler towards the notification set implied by a
// reminder collection.
type Reconciler struct {
	sched       scheduler.Scheduler
	leadTime    time.Duration
	concurrency int
	inFlight    chan struct{}
}

type Option func(*Reconciler)

// WithLeadTime sets how long before Date the notification fires.
func WithLeadTime(d time.Duration) Option {
	return func(r *Reconciler) { r.leadTime = d }
}

// WithConcurrency bounds the number of reminders processed at once.
func WithConcurrency(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

func New(sched scheduler.Scheduler, opts ...Option) *Reconciler {
	r := &Reconciler{
		sched:       sched,
		leadTime:    DefaultLeadTime,
		concurrency: defaultConcurrency,
		inFlight:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LeadTime returns the configured lead time.
func (r *Reconciler) LeadTime() time.Duration {
	return r.leadTime
}

// NotificationID returns the id of the notification owned by reminderID.
func (r *Reconciler) NotificationID(reminderID string) string {
	return idPrefix + reminderID + ":" + r.leadTime.String()
}

// ParseNotificationID splits a managed notification id into the reminder id
// and the lead-time tag. ok is false for ids this package did not create.
func ParseNotificationID(id string) (reminderID, leadTag string, ok bool) {
	rest, found := strings.CutPrefix(id, idPrefix)
	if !found {
		return "", "", false
	}
	i := strings.LastIndex(rest, ":")
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}

// PayloadFor builds the notification text for a reminder.
func PayloadFor(rem models.Reminder) models.Payload {
	return models.Payload{
		Title: notificationTitle,
		Body:  "Reminder: " + rem.Description,
	}
}

// NotifyAt returns when the notification for rem should fire.
func (r *Reconciler) NotifyAt(rem models.Reminder) time.Time {
	return rem.Date.Add(-r.leadTime)
}

// task is the scheduler work for one reminder id: cancels first, then an
// optional create.
type task struct {
	reminderID string
	cancels    []models.ScheduledNotification
	create     *models.ScheduledNotification
}

type outcome struct {
	created   []Change
	cancelled []Change
	failures  []Failure
}

// Reconcile brings the scheduler in line with reminders as of now. It waits
// for any pass already running. Per-notification failures are reported in
// the Result; an error is returned only when the scheduled set cannot be
// listed or ctx ends while waiting.
func (r *Reconciler) Reconcile(ctx context.Context, reminders []models.Reminder, now time.Time) (Result, error) {
	select {
	case r.inFlight <- struct{}{}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	defer func() { <-r.inFlight }()

	start := time.Now()
	active, err := r.sched.ListActive(ctx)
	if err != nil {
		reconcileRuns.WithLabelValues("error").Inc()
		logger.Error(ctx, "Reconcile could not list scheduled notifications", "error", err)
		return Result{}, fmt.Errorf("list active notifications: %w", err)
	}

	tasks, skipped := r.plan(ctx, reminders, active, now)
	outcomes := make([]outcome, len(tasks))

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i := range tasks {
		g.Go(func() error {
			outcomes[i] = r.apply(ctx, tasks[i])
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Skipped: skipped}
	for _, o := range outcomes {
		res.Created = append(res.Created, o.created...)
		res.Cancelled = append(res.Cancelled, o.cancelled...)
		res.Failures = append(res.Failures, o.failures...)
	}

	reconcileRuns.WithLabelValues("ok").Inc()
	reconcileDuration.Observe(time.Since(start).Seconds())
	observe(res)
	logger.Info(ctx, "Reconcile finished",
		"reminders", len(reminders),
		"created", len(res.Created),
		"cancelled", len(res.Cancelled),
		"skipped", len(res.Skipped),
		"failed", len(res.Failures))
	return res, nil
}

func (r *Reconciler) plan(ctx context.Context, reminders []models.Reminder, active []models.ScheduledNotification, now time.Time) ([]task, []Skip) {
	scheduled := make(map[string][]models.ScheduledNotification)
	for _, n := range active {
		reminderID, _, ok := ParseNotificationID(n.ID)
		if !ok {
			continue
		}
		scheduled[reminderID] = append(scheduled[reminderID], n)
	}

	var (
		tasks   []task
		skipped []Skip
		seen    = make(map[string]bool, len(reminders))
	)
	for _, rem := range reminders {
		if seen[rem.ID] {
			logger.Warn(ctx, "Duplicate reminder id ignored by reconcile", "reminder_id", rem.ID)
			continue
		}
		seen[rem.ID] = true

		t := task{reminderID: rem.ID}
		notifyAt := r.NotifyAt(rem)
		if !notifyAt.After(now) {
			skipped = append(skipped, Skip{ReminderID: rem.ID, Description: rem.Description, NotifyAt: notifyAt})
			t.cancels = scheduled[rem.ID]
		} else {
			want := models.ScheduledNotification{ID: r.NotificationID(rem.ID), TriggerTime: notifyAt, Payload: PayloadFor(rem)}
			matched := false
			for _, n := range scheduled[rem.ID] {
				if !matched && n.ID == want.ID && n.TriggerTime.Equal(want.TriggerTime) && n.Payload == want.Payload {
					matched = true
					continue
				}
				t.cancels = append(t.cancels, n)
			}
			if !matched {
				t.create = &want
			}
		}
		if len(t.cancels) > 0 || t.create != nil {
			tasks = append(tasks, t)
		}
	}

	var orphans []string
	for reminderID := range scheduled {
		if !seen[reminderID] {
			orphans = append(orphans, reminderID)
		}
	}
	sort.Strings(orphans)
	for _, reminderID := range orphans {
		tasks = append(tasks, task{reminderID: reminderID, cancels: scheduled[reminderID]})
	}
	return tasks, skipped
}

// apply runs one task. The create is skipped when a cancel for the same
// reminder fails, so a reminder never holds two live triggers.
func (r *Reconciler) apply(ctx context.Context, t task) outcome {
	var o outcome
	for _, n := range t.cancels {
		if err := r.sched.Cancel(ctx, n.ID); err != nil {
			o.failures = append(o.failures, failure(t.reminderID, n.ID, "cancel", err))
			logger.Warn(ctx, "Cancel notification failed", "reminder_id", t.reminderID, "notification_id", n.ID, "error", err)
			continue
		}
		o.cancelled = append(o.cancelled, Change{ReminderID: t.reminderID, NotificationID: n.ID, TriggerTime: n.TriggerTime})
	}
	if t.create == nil || len(o.failures) > 0 {
		return o
	}
	n := t.create
	if err := r.sched.Create(ctx, n.ID, n.Payload, models.AtTime(n.TriggerTime)); err != nil {
		o.failures = append(o.failures, failure(t.reminderID, n.ID, "create", err))
		logger.Warn(ctx, "Create notification failed", "reminder_id", t.reminderID, "notification_id", n.ID, "error", err)
		return o
	}
	o.created = append(o.created, Change{ReminderID: t.reminderID, NotificationID: n.ID, TriggerTime: n.TriggerTime})
	logger.Debug(ctx, "Notification scheduled", "reminder_id", t.reminderID, "trigger_time", n.TriggerTime)
	return o
}

func failure(reminderID, notificationID, op string, err error) Failure {
	return Failure{
		ReminderID:     reminderID,
		NotificationID: notificationID,
		Op:             op,
		Kind:           scheduler.KindOf(err),
		Error:          err.Error(),
		Err:            err,
	}
}
