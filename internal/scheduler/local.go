package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"chronoloom/internal/models"
	"chronoloom/pkg/logger"
)

// Sender delivers a notification that has come due.
type Sender interface {
	Send(ctx context.Context, n models.ScheduledNotification) error
}

// LogSender writes due notifications to the log.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, n models.ScheduledNotification) error {
	logger.Info(ctx, "Notification due", "id", n.ID, "title", n.Payload.Title, "body", n.Payload.Body, "trigger_time", n.TriggerTime)
	return nil
}

// Local keeps pending notifications in memory and fires them from Run.
// One-shot notifications leave the active set once fired; interval
// notifications are re-armed.
type Local struct {
	sender      Sender
	checkPeriod time.Duration
	maxPending  int
	now         func() time.Time

	mu      sync.Mutex
	pending entryHeap
	byID    map[string]*entry
}

// LocalOption configures a Local scheduler.
type LocalOption func(*Local)

// WithMaxPending caps the number of pending notifications; Create beyond the
// cap fails with ErrQuotaExceeded. Zero means unlimited.
func WithMaxPending(n int) LocalOption {
	return func(l *Local) { l.maxPending = n }
}

// WithClock overrides the time source used by Run.
func WithClock(now func() time.Time) LocalOption {
	return func(l *Local) { l.now = now }
}

func NewLocal(sender Sender, checkPeriod time.Duration, opts ...LocalOption) *Local {
	l := &Local{
		sender:      sender,
		checkPeriod: checkPeriod,
		now:         time.Now,
		byID:        make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(l)
	}
	heap.Init(&l.pending)
	return l
}

func (l *Local) Create(_ context.Context, id string, payload models.Payload, trigger models.Trigger) error {
	if trigger.Type == models.TriggerInterval && trigger.Interval <= 0 {
		return fmt.Errorf("interval trigger for %s needs a positive interval", id)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.byID[id]; ok {
		e.payload = payload
		e.trigger = trigger
		e.next = trigger.At
		heap.Fix(&l.pending, e.index)
		return nil
	}
	if l.maxPending > 0 && len(l.byID) >= l.maxPending {
		return fmt.Errorf("%w: %d pending", ErrQuotaExceeded, len(l.byID))
	}
	e := &entry{id: id, payload: payload, trigger: trigger, next: trigger.At}
	heap.Push(&l.pending, e)
	l.byID[id] = e
	return nil
}

func (l *Local) Cancel(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.byID[id]; ok {
		heap.Remove(&l.pending, e.index)
		delete(l.byID, id)
	}
	return nil
}

// ListActive returns pending notifications ordered by next fire time.
func (l *Local) ListActive(_ context.Context) ([]models.ScheduledNotification, error) {
	l.mu.Lock()
	out := make([]models.ScheduledNotification, 0, len(l.byID))
	for _, e := range l.byID {
		at := e.trigger.At
		if e.trigger.Type == models.TriggerInterval {
			at = e.next
		}
		out = append(out, models.ScheduledNotification{ID: e.id, TriggerTime: at, Payload: e.payload})
	}
	l.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].TriggerTime.Equal(out[j].TriggerTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].TriggerTime.Before(out[j].TriggerTime)
	})
	return out, nil
}

// Run fires due notifications every check period until ctx is done.
func (l *Local) Run(ctx context.Context) {
	ticker := time.NewTicker(l.checkPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.FireDue(ctx, l.now())
		}
	}
}

// FireDue sends every notification due at or before now and returns how many were sent.
func (l *Local) FireDue(ctx context.Context, now time.Time) int {
	sent := 0
	for {
		l.mu.Lock()
		e := l.pending.Peek()
		if e == nil || e.next.After(now) {
			l.mu.Unlock()
			return sent
		}
		n := models.ScheduledNotification{ID: e.id, TriggerTime: e.next, Payload: e.payload}
		if e.trigger.Type == models.TriggerInterval {
			for !e.next.After(now) {
				e.next = e.next.Add(e.trigger.Interval)
			}
			heap.Fix(&l.pending, e.index)
		} else {
			heap.Pop(&l.pending)
			delete(l.byID, e.id)
		}
		l.mu.Unlock()

		if err := l.sender.Send(ctx, n); err != nil {
			logger.Error(ctx, "Notification send failed", "id", n.ID, "error", err)
			continue
		}
		sent++
	}
}
