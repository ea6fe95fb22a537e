package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"chronoloom/internal/kv"
	"chronoloom/internal/models"
	"chronoloom/pkg/logger"
)

type shadowRecord struct {
	Payload models.Payload `json:"payload"`
	Trigger models.Trigger `json:"trigger"`
}

// Shadow records every notification handed to a Dispatcher under one
// key-value entry, so the last scheduled set survives restarts and can be
// listed for reconciliation.
type Shadow struct {
	dispatcher Dispatcher
	store      kv.Store
	key        string

	mu sync.Mutex
}

func NewShadow(dispatcher Dispatcher, store kv.Store, key string) *Shadow {
	return &Shadow{dispatcher: dispatcher, store: store, key: key}
}

// Create dispatches first and records only on success.
func (s *Shadow) Create(ctx context.Context, id string, payload models.Payload, trigger models.Trigger) error {
	if err := s.dispatcher.Schedule(ctx, id, payload, trigger); err != nil {
		return err
	}
	return s.update(ctx, func(set map[string]shadowRecord) {
		set[id] = shadowRecord{Payload: payload, Trigger: trigger}
	})
}

// Cancel dispatches first; the record stays if the dispatcher fails so the
// next reconcile retries the cancel.
func (s *Shadow) Cancel(ctx context.Context, id string) error {
	if err := s.dispatcher.Cancel(ctx, id); err != nil {
		return err
	}
	return s.update(ctx, func(set map[string]shadowRecord) {
		delete(set, id)
	})
}

func (s *Shadow) ListActive(ctx context.Context) ([]models.ScheduledNotification, error) {
	s.mu.Lock()
	set, err := s.load(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([]models.ScheduledNotification, 0, len(set))
	for id, rec := range set {
		out = append(out, models.ScheduledNotification{ID: id, TriggerTime: rec.Trigger.At, Payload: rec.Payload})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Shadow) update(ctx context.Context, mutate func(map[string]shadowRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, err := s.load(ctx)
	if err != nil {
		return err
	}
	mutate(set)
	b, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encode scheduled set: %w", err)
	}
	if err := s.store.Set(ctx, s.key, string(b)); err != nil {
		return fmt.Errorf("%w: persist scheduled set: %v", ErrUnavailable, err)
	}
	return nil
}

// load returns the recorded set. An unparsable value is treated as empty;
// the next reconcile re-creates what is missing.
func (s *Shadow) load(ctx context.Context) (map[string]shadowRecord, error) {
	raw, ok, err := s.store.GetString(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("%w: read scheduled set: %v", ErrUnavailable, err)
	}
	set := make(map[string]shadowRecord)
	if !ok || raw == "" {
		return set, nil
	}
	if err := json.Unmarshal([]byte(raw), &set); err != nil {
		logger.Warn(ctx, "Scheduled set unreadable, starting empty", "error", err)
		return make(map[string]shadowRecord), nil
	}
	return set, nil
}
