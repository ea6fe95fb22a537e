package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronoloom/internal/kv"
	"chronoloom/internal/models"
)

type fakeDispatcher struct {
	scheduled []string
	cancelled []string
	err       error
}

func (f *fakeDispatcher) Schedule(_ context.Context, id string, _ models.Payload, _ models.Trigger) error {
	if f.err != nil {
		return f.err
	}
	f.scheduled = append(f.scheduled, id)
	return nil
}

func (f *fakeDispatcher) Cancel(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.cancelled = append(f.cancelled, id)
	return nil
}

func TestShadow_RecordsAndSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	d := &fakeDispatcher{}
	s := NewShadow(d, store, "scheduledNotifications")

	at := time.Date(2025, 3, 5, 9, 20, 0, 0, time.UTC)
	require.NoError(t, s.Create(ctx, "reminder:1:10m0s", models.Payload{Title: "t", Body: "b"}, models.AtTime(at)))
	require.NoError(t, s.Create(ctx, "reminder:2:10m0s", models.Payload{}, models.AtTime(at)))
	require.NoError(t, s.Cancel(ctx, "reminder:2:10m0s"))

	restarted := NewShadow(&fakeDispatcher{}, store, "scheduledNotifications")
	active, err := restarted.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "reminder:1:10m0s", active[0].ID)
	assert.True(t, active[0].TriggerTime.Equal(at))
	assert.Equal(t, "b", active[0].Payload.Body)

	assert.Equal(t, []string{"reminder:1:10m0s", "reminder:2:10m0s"}, d.scheduled)
	assert.Equal(t, []string{"reminder:2:10m0s"}, d.cancelled)
}

func TestShadow_DispatchFailureLeavesSetUntouched(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	d := &fakeDispatcher{}
	s := NewShadow(d, store, "k")
	require.NoError(t, s.Create(ctx, "a", models.Payload{}, models.AtTime(time.Now())))

	d.err = ErrPermissionDenied
	assert.ErrorIs(t, s.Create(ctx, "b", models.Payload{}, models.AtTime(time.Now())), ErrPermissionDenied)
	assert.ErrorIs(t, s.Cancel(ctx, "a"), ErrPermissionDenied)

	active, err := s.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "a", active[0].ID)
}

type brokenStore struct{ kv.Store }

func (brokenStore) GetString(context.Context, string) (string, bool, error) {
	return "", false, errors.New("io")
}

func TestShadow_ReadErrorIsUnavailable(t *testing.T) {
	s := NewShadow(&fakeDispatcher{}, brokenStore{}, "k")
	_, err := s.ListActive(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestShadow_CorruptSetTreatedAsEmpty(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	require.NoError(t, store.Set(ctx, "k", "]["))

	active, err := NewShadow(&fakeDispatcher{}, store, "k").ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}
