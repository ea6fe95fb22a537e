package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronoloom/internal/kv"
	"chronoloom/internal/models"
	"chronoloom/internal/query"
	"chronoloom/internal/reconciler"
	"chronoloom/internal/repository"
	"chronoloom/internal/scheduler"
)

var now = time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc   *Reminders
	store *kv.Memory
	sched *scheduler.Local
	clock *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := kv.NewMemory()
	sched := scheduler.NewLocal(scheduler.LogSender{}, time.Second)
	clock := now
	seq := 0
	svc := NewReminders(
		repository.NewReminders(store, repository.DefaultKeys),
		reconciler.New(sched),
		WithClock(func() time.Time { return clock }),
		WithIDGenerator(func() string { seq++; return fmt.Sprintf("r%d", seq) }),
	)
	return &fixture{svc: svc, store: store, sched: sched, clock: &clock}
}

func (f *fixture) active(t *testing.T) []models.ScheduledNotification {
	t.Helper()
	out, err := f.sched.ListActive(context.Background())
	require.NoError(t, err)
	return out
}

func input(desc string, date time.Time) models.ReminderInput {
	return models.ReminderInput{Description: desc, Category: models.CategoryWork, Frequency: models.FrequencyMonthly, Date: date}
}

func TestCreate_PersistsAndSchedules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	r, res, err := f.svc.Create(ctx, input("Pay rent", now.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "r1", r.ID)
	assert.True(t, r.CreatedAt.Equal(now))
	require.Len(t, res.Created, 1)

	stored := f.svc.List(ctx, query.Query{})
	require.Len(t, stored, 1)
	assert.Equal(t, "Pay rent", stored[0].Description)

	active := f.active(t)
	require.Len(t, active, 1)
	assert.True(t, active[0].TriggerTime.Equal(now.Add(50*time.Minute)))
}

func TestCreate_PastReminderReportedAsSkipped(t *testing.T) {
	f := newFixture(t)
	_, res, err := f.svc.Create(context.Background(), input("Too late", now.Add(5*time.Minute)))
	require.NoError(t, err)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "Too late", res.Skipped[0].Description)
	assert.Empty(t, f.active(t))
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.Create(context.Background(), models.ReminderInput{Description: " ", Date: now})
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Empty(t, f.svc.List(context.Background(), query.Query{}))
}

func TestUpdate_ReschedulesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r, _, err := f.svc.Create(ctx, input("Pay rent", now.Add(time.Hour)))
	require.NoError(t, err)

	updated, res, err := f.svc.Update(ctx, r.ID, input("Pay rent", now.Add(2*time.Hour)))
	require.NoError(t, err)
	assert.True(t, updated.CreatedAt.Equal(r.CreatedAt))
	assert.Len(t, res.Cancelled, 1)
	assert.Len(t, res.Created, 1)

	active := f.active(t)
	require.Len(t, active, 1)
	assert.True(t, active[0].TriggerTime.Equal(now.Add(110*time.Minute)))
}

func TestUpdate_NotFound(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.Update(context.Background(), "nope", input("x", now.Add(time.Hour)))
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDelete_CancelsNotification(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r1, _, err := f.svc.Create(ctx, input("one", now.Add(time.Hour)))
	require.NoError(t, err)
	_, _, err = f.svc.Create(ctx, input("two", now.Add(time.Hour)))
	require.NoError(t, err)

	res, err := f.svc.Delete(ctx, r1.ID)
	require.NoError(t, err)
	require.Len(t, res.Cancelled, 1)
	assert.Equal(t, r1.ID, res.Cancelled[0].ReminderID)

	remaining := f.svc.List(ctx, query.Query{})
	require.Len(t, remaining, 1)
	assert.Equal(t, "two", remaining[0].Description)
	assert.Len(t, f.active(t), 1)

	_, err = f.svc.Delete(ctx, r1.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestComplete_StampsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	r, _, err := f.svc.Create(ctx, input("one", now.Add(time.Hour)))
	require.NoError(t, err)

	*f.clock = now.Add(time.Minute)
	done, _, err := f.svc.Complete(ctx, r.ID)
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)
	assert.True(t, done.CompletedAt.Equal(now.Add(time.Minute)))

	*f.clock = now.Add(2 * time.Minute)
	again, _, err := f.svc.Complete(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, again.CompletedAt.Equal(now.Add(time.Minute)))

	got, err := f.svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.CompletedAt)
}

func TestResync_CatchesBoundaryCrossing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, _, err := f.svc.Create(ctx, input("one", now.Add(time.Hour)))
	require.NoError(t, err)

	res, err := f.svc.Resync(ctx, TriggerStartup)
	require.NoError(t, err)
	assert.Zero(t, res.Changed())

	*f.clock = now.Add(51 * time.Minute)
	res, err = f.svc.Resync(ctx, TriggerPeriodic)
	require.NoError(t, err)
	assert.Len(t, res.Skipped, 1)
	assert.Len(t, res.Cancelled, 1)
	assert.Empty(t, f.active(t))
}

type failingRepo struct {
	Repository
}

func (failingRepo) Load(context.Context) []models.Reminder { return []models.Reminder{} }

func (failingRepo) LoadStrict(context.Context) ([]models.Reminder, error) {
	return []models.Reminder{}, nil
}

func (failingRepo) Save(context.Context, []models.Reminder) error {
	return fmt.Errorf("%w: disk full", repository.ErrStorage)
}

func TestCreate_SaveFailureSchedulesNothing(t *testing.T) {
	sched := scheduler.NewLocal(scheduler.LogSender{}, time.Second)
	svc := NewReminders(failingRepo{}, reconciler.New(sched), WithClock(func() time.Time { return now }))

	_, _, err := svc.Create(context.Background(), input("one", now.Add(time.Hour)))
	assert.ErrorIs(t, err, repository.ErrStorage)
	active, err := sched.ListActive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)
}

// flakyStore fails the next failReads reads, then behaves like its Memory.
type flakyStore struct {
	*kv.Memory
	failReads int
}

func (f *flakyStore) GetString(ctx context.Context, key string) (string, bool, error) {
	if f.failReads > 0 {
		f.failReads--
		return "", false, errors.New("connection reset")
	}
	return f.Memory.GetString(ctx, key)
}

func newFlakyFixture(t *testing.T) (*Reminders, *flakyStore, *scheduler.Local) {
	t.Helper()
	store := &flakyStore{Memory: kv.NewMemory()}
	sched := scheduler.NewLocal(scheduler.LogSender{}, time.Second)
	seq := 0
	svc := NewReminders(
		repository.NewReminders(store, repository.DefaultKeys),
		reconciler.New(sched),
		WithClock(func() time.Time { return now }),
		WithIDGenerator(func() string { seq++; return fmt.Sprintf("r%d", seq) }),
	)
	return svc, store, sched
}

func TestMutations_ReadFailureKeepsStoredReminders(t *testing.T) {
	ctx := context.Background()
	svc, store, sched := newFlakyFixture(t)
	for _, desc := range []string{"one", "two", "three"} {
		_, _, err := svc.Create(ctx, input(desc, now.Add(time.Hour)))
		require.NoError(t, err)
	}

	store.failReads = 1
	_, _, err := svc.Create(ctx, input("new", now.Add(time.Hour)))
	assert.ErrorIs(t, err, repository.ErrStorage)

	store.failReads = 1
	_, _, err = svc.Update(ctx, "r1", input("edited", now.Add(2*time.Hour)))
	assert.ErrorIs(t, err, repository.ErrStorage)

	store.failReads = 1
	_, _, err = svc.Complete(ctx, "r1")
	assert.ErrorIs(t, err, repository.ErrStorage)

	store.failReads = 1
	_, err = svc.Delete(ctx, "r2")
	assert.ErrorIs(t, err, repository.ErrStorage)

	store.failReads = 1
	_, err = svc.Resync(ctx, TriggerPeriodic)
	assert.ErrorIs(t, err, repository.ErrStorage)

	left := svc.List(ctx, query.Query{})
	require.Len(t, left, 3)
	assert.Equal(t, "one", left[0].Description)
	assert.Nil(t, left[0].CompletedAt)

	active, err := sched.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 3)

	_, _, err = svc.Create(ctx, input("new", now.Add(time.Hour)))
	require.NoError(t, err)
	assert.Len(t, svc.List(ctx, query.Query{}), 4)
}

func TestRegisterPushToken_ReadFailureStillStores(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newFlakyFixture(t)

	store.failReads = 1
	require.NoError(t, svc.RegisterPushToken(ctx, "tok-9"))

	tok, err := svc.PushToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-9", tok)
}

type recordingSender struct {
	sent []models.ScheduledNotification
	fail map[string]bool
}

func (r *recordingSender) Send(_ context.Context, n models.ScheduledNotification) error {
	if r.fail[n.ID] {
		return errors.New("device offline")
	}
	r.sent = append(r.sent, n)
	return nil
}

func TestNotifyDueSoon(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for _, in := range []models.ReminderInput{
		input("in an hour", now.Add(time.Hour)),
		input("tomorrow morning", now.Add(23*time.Hour)),
		input("next week", now.Add(7*24*time.Hour)),
		input("overdue", now.Add(-time.Hour)),
		input("done already", now.Add(2*time.Hour)),
		input("exactly a day", now.Add(24*time.Hour)),
	} {
		_, _, err := f.svc.Create(ctx, in)
		require.NoError(t, err)
	}
	_, _, err := f.svc.Complete(ctx, "r5")
	require.NoError(t, err)

	sender := &recordingSender{}
	n, err := f.svc.NotifyDueSoon(ctx, sender, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, sender.sent, 2)
	assert.Equal(t, "due-soon:r1", sender.sent[0].ID)
	assert.Equal(t, models.Payload{Title: "Reminder", Body: "tomorrow morning"}, sender.sent[1].Payload)
	assert.True(t, sender.sent[1].TriggerTime.Equal(now))

	n, err = f.svc.NotifyDueSoon(ctx, &recordingSender{fail: map[string]bool{"due-soon:r1": true}}, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.svc.NotifyDueSoon(ctx, sender, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNotifyDueSoon_ReadFailure(t *testing.T) {
	svc, store, _ := newFlakyFixture(t)
	store.failReads = 1
	_, err := svc.NotifyDueSoon(context.Background(), &recordingSender{}, 24*time.Hour)
	assert.ErrorIs(t, err, repository.ErrStorage)
}

type brokenReconciler struct{}

func (brokenReconciler) Reconcile(context.Context, []models.Reminder, time.Time) (reconciler.Result, error) {
	return reconciler.Result{}, errors.New("scheduler offline")
}

func TestCreate_ReconcileFailureKeepsReminder(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewReminders(kv.NewMemory(), repository.DefaultKeys)
	svc := NewReminders(repo, brokenReconciler{}, WithClock(func() time.Time { return now }))

	r, res, err := svc.Create(ctx, input("one", now.Add(time.Hour)))
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.Zero(t, res.Changed())
	assert.Len(t, repo.Load(ctx), 1)

	_, err = svc.Resync(ctx, TriggerManual)
	assert.ErrorContains(t, err, "manual")
}

func TestRegisterPushToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	assert.ErrorIs(t, f.svc.RegisterPushToken(ctx, ""), models.ErrValidation)
	require.NoError(t, f.svc.RegisterPushToken(ctx, "tok-1"))
	require.NoError(t, f.svc.RegisterPushToken(ctx, "tok-1"))

	tok, err := f.svc.PushToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	raw, ok, err := f.store.GetString(ctx, "fcmToken")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-1", raw)
}

func TestRunPeriodic_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.svc.RunPeriodic(ctx, 5*time.Millisecond)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunPeriodic did not stop")
	}
}
