package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"chronoloom/internal/models"
	"chronoloom/internal/query"
	"chronoloom/internal/reconciler"
	"chronoloom/internal/repository"
	"chronoloom/internal/scheduler"
	"chronoloom/pkg/logger"
)

// Trigger names why a reconcile pass ran.
type Trigger string

const (
	TriggerStartup  Trigger = "startup"
	TriggerMutation Trigger = "mutation"
	TriggerPush     Trigger = "push"
	TriggerPeriodic Trigger = "periodic"
	TriggerManual   Trigger = "manual"
)

// Repository is the persistence the service needs.
type Repository interface {
	Load(ctx context.Context) []models.Reminder
	LoadStrict(ctx context.Context) ([]models.Reminder, error)
	Save(ctx context.Context, reminders []models.Reminder) error
	PushToken(ctx context.Context) (string, error)
	SetPushToken(ctx context.Context, token string) error
}

// Reconciler is the notification reconciliation the service drives.
type Reconciler interface {
	Reconcile(ctx context.Context, reminders []models.Reminder, now time.Time) (reconciler.Result, error)
}

// Reminders applies user edits to the stored collection and reconciles
// notifications after every change. Mutations and reconcile passes are
// serialized so a pass never works from a collection older than the last save.
type Reminders struct {
	repo       Repository
	reconciler Reconciler
	now        func() time.Time
	newID      func() string

	mu    sync.Mutex
	loads singleflight.Group
}

type Option func(*Reminders)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Reminders) { s.now = now }
}

// WithIDGenerator overrides how new reminder ids are assigned.
func WithIDGenerator(f func() string) Option {
	return func(s *Reminders) { s.newID = f }
}

func NewReminders(repo Repository, rec Reconciler, opts ...Option) *Reminders {
	s := &Reminders{
		repo:       repo,
		reconciler: rec,
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the stored reminders transformed by q.
func (s *Reminders) List(ctx context.Context, q query.Query) []models.Reminder {
	return q.Apply(s.load(ctx))
}

// Get returns the reminder with id.
func (s *Reminders) Get(ctx context.Context, id string) (models.Reminder, error) {
	for _, r := range s.load(ctx) {
		if r.ID == id {
			return r, nil
		}
	}
	return models.Reminder{}, fmt.Errorf("%w: %s", repository.ErrNotFound, id)
}

// load coalesces concurrent reads of the collection.
func (s *Reminders) load(ctx context.Context) []models.Reminder {
	v, _, _ := s.loads.Do("reminders", func() (interface{}, error) {
		return s.repo.Load(context.WithoutCancel(ctx)), nil
	})
	return v.([]models.Reminder)
}

// Create validates in, stores a new reminder and reconciles.
func (s *Reminders) Create(ctx context.Context, in models.ReminderInput) (models.Reminder, reconciler.Result, error) {
	if err := in.Validate(); err != nil {
		return models.Reminder{}, reconciler.Result{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r := models.Reminder{ID: s.newID(), CreatedAt: s.now().UTC()}
	in.Apply(&r)
	reminders, err := s.repo.LoadStrict(ctx)
	if err != nil {
		return models.Reminder{}, reconciler.Result{}, err
	}
	res, err := s.commit(ctx, append(reminders, r))
	if err != nil {
		return models.Reminder{}, reconciler.Result{}, err
	}
	logger.Info(ctx, "Reminder created", "reminder_id", r.ID)
	return r, res, nil
}

// Update replaces the editable fields of reminder id and reconciles.
func (s *Reminders) Update(ctx context.Context, id string, in models.ReminderInput) (models.Reminder, reconciler.Result, error) {
	if err := in.Validate(); err != nil {
		return models.Reminder{}, reconciler.Result{}, err
	}
	return s.modify(ctx, id, func(r *models.Reminder) { in.Apply(r) })
}

// Complete stamps completedAt on reminder id. Completing an already
// completed reminder keeps the first timestamp.
func (s *Reminders) Complete(ctx context.Context, id string) (models.Reminder, reconciler.Result, error) {
	return s.modify(ctx, id, func(r *models.Reminder) {
		if r.CompletedAt == nil {
			at := s.now().UTC()
			r.CompletedAt = &at
		}
	})
}

// Delete removes reminder id and reconciles, cancelling its notification.
func (s *Reminders) Delete(ctx context.Context, id string) (reconciler.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reminders, err := s.repo.LoadStrict(ctx)
	if err != nil {
		return reconciler.Result{}, err
	}
	kept := reminders[:0:0]
	for _, r := range reminders {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(reminders) {
		return reconciler.Result{}, fmt.Errorf("%w: %s", repository.ErrNotFound, id)
	}
	res, err := s.commit(ctx, kept)
	if err != nil {
		return reconciler.Result{}, err
	}
	logger.Info(ctx, "Reminder deleted", "reminder_id", id)
	return res, nil
}

func (s *Reminders) modify(ctx context.Context, id string, edit func(*models.Reminder)) (models.Reminder, reconciler.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reminders, err := s.repo.LoadStrict(ctx)
	if err != nil {
		return models.Reminder{}, reconciler.Result{}, err
	}
	idx := -1
	for i := range reminders {
		if reminders[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return models.Reminder{}, reconciler.Result{}, fmt.Errorf("%w: %s", repository.ErrNotFound, id)
	}
	edit(&reminders[idx])
	res, err := s.commit(ctx, reminders)
	if err != nil {
		return models.Reminder{}, reconciler.Result{}, err
	}
	logger.Info(ctx, "Reminder updated", "reminder_id", id)
	return reminders[idx], res, nil
}

// commit saves reminders and reconciles. A failed reconcile is logged and
// left for the next pass; only the save can fail the mutation.
func (s *Reminders) commit(ctx context.Context, reminders []models.Reminder) (reconciler.Result, error) {
	if err := s.repo.Save(ctx, reminders); err != nil {
		return reconciler.Result{}, err
	}
	res, err := s.reconcile(ctx, reminders, TriggerMutation)
	if err != nil {
		logger.Warn(ctx, "Reconcile after mutation failed", "error", err)
		return reconciler.Result{}, nil
	}
	return res, nil
}

// Resync reloads the collection and reconciles it. An unreadable store
// aborts the pass so live notifications are not cancelled.
func (s *Reminders) Resync(ctx context.Context, trigger Trigger) (reconciler.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reminders, err := s.repo.LoadStrict(ctx)
	if err != nil {
		return reconciler.Result{}, fmt.Errorf("reconcile (%s): %w", trigger, err)
	}
	return s.reconcile(ctx, reminders, trigger)
}

func (s *Reminders) reconcile(ctx context.Context, reminders []models.Reminder, trigger Trigger) (reconciler.Result, error) {
	ctx = logger.With(ctx, "trigger", string(trigger))
	res, err := s.reconciler.Reconcile(ctx, reminders, s.now())
	if err != nil {
		return reconciler.Result{}, fmt.Errorf("reconcile (%s): %w", trigger, err)
	}
	for _, skip := range res.Skipped {
		logger.Debug(ctx, "Skipped scheduling for past reminder", "reminder_id", skip.ReminderID, "description", skip.Description)
	}
	return res, nil
}

// RunPeriodic resyncs every interval until ctx is done, catching reminders
// that crossed the lead-time boundary since the last pass.
func (s *Reminders) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Resync(ctx, TriggerPeriodic); err != nil && ctx.Err() == nil {
				logger.Error(ctx, "Periodic reconcile failed", "error", err)
			}
		}
	}
}

const (
	dueSoonPrefix = "due-soon:"
	dueSoonTitle  = "Reminder"
)

// NotifyDueSoon sends sender an immediate notification for every open
// reminder due within window from now, as a start-up digest. Send failures
// are logged and skipped. A non-positive window disables it.
func (s *Reminders) NotifyDueSoon(ctx context.Context, sender scheduler.Sender, window time.Duration) (int, error) {
	if window <= 0 || sender == nil {
		return 0, nil
	}
	reminders, err := s.repo.LoadStrict(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	sent := 0
	for _, r := range reminders {
		left := r.Date.Sub(now)
		if left <= 0 || left >= window || r.CompletedAt != nil {
			continue
		}
		n := models.ScheduledNotification{
			ID:          dueSoonPrefix + r.ID,
			TriggerTime: now,
			Payload:     models.Payload{Title: dueSoonTitle, Body: r.Description},
		}
		if err := sender.Send(ctx, n); err != nil {
			logger.Warn(ctx, "Due-soon notification failed", "reminder_id", r.ID, "error", err)
			continue
		}
		sent++
	}
	logger.Info(ctx, "Due-soon digest sent", "sent", sent, "window", window.String())
	return sent, nil
}

// PushToken returns the stored push token.
func (s *Reminders) PushToken(ctx context.Context) (string, error) {
	return s.repo.PushToken(ctx)
}

// RegisterPushToken stores token when it differs from the stored one.
func (s *Reminders) RegisterPushToken(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("%w: push token is required", models.ErrValidation)
	}
	current, err := s.repo.PushToken(ctx)
	if err != nil {
		logger.Warn(ctx, "Push token read failed, overwriting", "error", err)
	} else if current == token {
		return nil
	}
	return s.repo.SetPushToken(ctx, token)
}
