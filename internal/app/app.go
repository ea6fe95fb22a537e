// Package app assembles the reminder service from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"chronoloom/internal/cache"
	"chronoloom/internal/config"
	"chronoloom/internal/controller"
	"chronoloom/internal/database"
	"chronoloom/internal/kv"
	"chronoloom/internal/queue"
	"chronoloom/internal/reconciler"
	"chronoloom/internal/repository"
	"chronoloom/internal/scheduler"
	"chronoloom/internal/service"
	"chronoloom/internal/worker"
	"chronoloom/pkg/logger"
)

const redisKeyPrefix = "chronoloom:"

// App holds the wired components. Close releases every connection it opened.
type App struct {
	Config     *config.Config
	Store      kv.Store
	Repository *repository.Reminders
	Scheduler  scheduler.Scheduler
	Reconciler *reconciler.Reconciler
	Service    *service.Reminders

	// Sender delivers immediate notifications such as the due-soon digest.
	Sender scheduler.Sender
	// Local is set when notifications are delivered in-process.
	Local *scheduler.Local
	// Consumer is set when push messages are read from Kafka.
	Consumer *worker.Consumer
	// Checks are the dependencies Ready pings.
	Checks map[string]controller.Pinger

	closers []io.Closer
}

// New connects the configured storage and scheduler backends.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, Checks: map[string]controller.Pinger{}}

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = store
	a.Repository = repository.NewReminders(store, repository.Keys{
		Reminders: cfg.Storage.RemindersKey,
		PushToken: cfg.Storage.PushTokenKey,
	})

	queue.EnsureTopics(ctx, cfg.Kafka.Brokers, cfg.Kafka.Partitions, cfg.Kafka.TriggerTopic, cfg.Kafka.PushTopic)
	switch cfg.Scheduler.Backend {
	case config.SchedulerKafka:
		w := queue.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.TriggerTopic)
		a.closers = append(a.closers, w)
		d := queue.NewDispatcher(w, a.Repository)
		a.Sender = d
		a.Scheduler = scheduler.NewShadow(d, store, cfg.Storage.ShadowKey)
		logger.Info(ctx, "Kafka trigger dispatcher ready", "topic", cfg.Kafka.TriggerTopic)
	default:
		var sender scheduler.Sender = scheduler.LogSender{}
		if len(cfg.Kafka.Brokers) > 0 {
			w := queue.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.TriggerTopic)
			a.closers = append(a.closers, w)
			sender = queue.NewDispatcher(w, a.Repository)
		}
		a.Sender = sender
		a.Local = scheduler.NewLocal(sender, cfg.Scheduler.CheckPeriod,
			scheduler.WithMaxPending(cfg.Scheduler.MaxPending))
		a.Scheduler = a.Local
	}

	a.Reconciler = reconciler.New(a.Scheduler,
		reconciler.WithLeadTime(cfg.Reconciler.LeadTime),
		reconciler.WithConcurrency(cfg.Reconciler.Concurrency),
	)
	a.Service = service.NewReminders(a.Repository, a.Reconciler)

	if len(cfg.Kafka.Brokers) > 0 {
		r := worker.NewReader(cfg.Kafka.Brokers, cfg.Kafka.PushTopic, cfg.Kafka.GroupID)
		a.closers = append(a.closers, r)
		a.Consumer = worker.NewConsumer(r, a.Service)
	}
	return a, nil
}

func (a *App) openStore(ctx context.Context) (kv.Store, error) {
	cfg := a.Config.Storage
	switch cfg.Backend {
	case config.BackendMemory:
		return kv.NewMemory(), nil
	case config.BackendRedis:
		client, err := cache.NewClient(ctx, cfg.RedisURL, cfg.RedisPoolSize)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client)
		s := cache.NewStore(client, redisKeyPrefix)
		a.Checks["redis"] = s
		return s, nil
	case config.BackendSQLite, config.BackendPostgres:
		dialect, dsn := database.SQLite, cfg.SQLitePath
		if cfg.Backend == config.BackendPostgres {
			dialect, dsn = database.Postgres, cfg.DatabaseURL
		}
		db, err := database.Open(ctx, dialect, dsn, cfg.DBPoolSize)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db)
		if err := database.MigrateOrCreateSchema(ctx, db); err != nil {
			return nil, err
		}
		s := database.NewStore(db)
		a.Checks["database"] = s
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
