package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronoloom/internal/config"
	"chronoloom/internal/models"
	"chronoloom/internal/query"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Kafka.Brokers = nil
	return cfg
}

func exercise(t *testing.T, a *App) {
	t.Helper()
	ctx := context.Background()
	_, res, err := a.Service.Create(ctx, models.ReminderInput{
		Description: "Call mom",
		Category:    models.CategoryPersonal,
		Frequency:   models.FrequencyDaily,
		Date:        time.Now().Add(2 * time.Hour),
	})
	require.NoError(t, err)
	assert.Len(t, res.Created, 1)
	assert.Len(t, a.Service.List(ctx, query.Query{}), 1)

	active, err := a.Scheduler.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestNew_Memory(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = config.BackendMemory

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Local)
	assert.NotNil(t, a.Sender)
	assert.Nil(t, a.Consumer)
	assert.Empty(t, a.Checks)
	exercise(t, a)
}

func TestNew_SQLite(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = config.BackendSQLite
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "reminders.db")

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.Contains(t, a.Checks, "database")
	exercise(t, a)
}

func TestNew_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Storage.Backend = config.BackendRedis
	cfg.Storage.RedisURL = "redis://" + mr.Addr()

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	exercise(t, a)
	assert.True(t, mr.Exists("chronoloom:reminders"))
}

func TestNew_UnreachableRedis(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = config.BackendRedis
	cfg.Storage.RedisURL = "redis://127.0.0.1:1"

	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestSeed(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = config.BackendMemory
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	inputs := SampleReminders(time.Now(), 10)
	require.Len(t, inputs, 10)
	for _, in := range inputs {
		require.NoError(t, in.Validate())
	}
	assert.Equal(t, "Team standup notes #2", inputs[8].Description)

	n, res, err := a.Seed(context.Background(), inputs)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Len(t, res.Created, 10)
	assert.Len(t, a.Service.List(context.Background(), query.Query{}), 10)
}
