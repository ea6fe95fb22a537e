package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"chronoloom/internal/kv"
	"chronoloom/internal/models"
	"chronoloom/pkg/logger"
)

var (
	// ErrStorage wraps key-value store write failures.
	ErrStorage = errors.New("storage error")
	// ErrNotFound is returned when no reminder has the requested id.
	ErrNotFound = errors.New("reminder not found")
)

// Keys names the store keys the repository owns.
type Keys struct {
	Reminders string
	PushToken string
}

// DefaultKeys matches the keys used by the mobile client.
var DefaultKeys = Keys{Reminders: "reminders", PushToken: "fcmToken"}

// Reminders persists the whole reminder collection as one JSON array.
type Reminders struct {
	store kv.Store
	keys  Keys
}

func NewReminders(store kv.Store, keys Keys) *Reminders {
	return &Reminders{store: store, keys: keys}
}

// Load returns the stored reminders in insertion order. A missing key, a
// read failure or unparsable JSON yields an empty collection. Use it for
// reads only; writers must start from LoadStrict.
func (r *Reminders) Load(ctx context.Context) []models.Reminder {
	reminders, err := r.LoadStrict(ctx)
	if err != nil {
		logger.Warn(ctx, "Repository load failed, using empty collection", "error", err)
		return []models.Reminder{}
	}
	return reminders
}

// LoadStrict is Load for read-modify-write callers: a store read failure is
// returned wrapped in ErrStorage instead of an empty collection, so a save
// never overwrites reminders that could not be read. Unparsable JSON still
// yields an empty collection.
func (r *Reminders) LoadStrict(ctx context.Context) ([]models.Reminder, error) {
	raw, ok, err := r.store.GetString(ctx, r.keys.Reminders)
	if err != nil {
		return nil, fmt.Errorf("%w: read reminders: %v", ErrStorage, err)
	}
	if !ok || raw == "" {
		return []models.Reminder{}, nil
	}
	var reminders []models.Reminder
	if err := json.Unmarshal([]byte(raw), &reminders); err != nil {
		logger.Warn(ctx, "Repository parse failed, using empty collection", "error", err)
		return []models.Reminder{}, nil
	}
	if reminders == nil {
		reminders = []models.Reminder{}
	}
	return reminders, nil
}

// Save overwrites the stored collection.
func (r *Reminders) Save(ctx context.Context, reminders []models.Reminder) error {
	if reminders == nil {
		reminders = []models.Reminder{}
	}
	b, err := json.Marshal(reminders)
	if err != nil {
		return fmt.Errorf("%w: encode reminders: %v", ErrStorage, err)
	}
	if err := r.store.Set(ctx, r.keys.Reminders, string(b)); err != nil {
		logger.Error(ctx, "Repository save failed", "error", err, "count", len(reminders))
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// PushToken returns the stored push-messaging token, or "" when none is stored.
func (r *Reminders) PushToken(ctx context.Context) (string, error) {
	v, _, err := r.store.GetString(ctx, r.keys.PushToken)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return v, nil
}

// SetPushToken stores token, replacing any previous one.
func (r *Reminders) SetPushToken(ctx context.Context, token string) error {
	if err := r.store.Set(ctx, r.keys.PushToken, token); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}
