package main

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/DaDevFox/task-systems/feeding-core/internal/config"
	"github.com/DaDevFox/task-systems/feeding-core/internal/events"
	"github.com/DaDevFox/task-systems/feeding-core/internal/logging"
	"github.com/DaDevFox/task-systems/feeding-core/internal/notify"
	"github.com/DaDevFox/task-systems/feeding-core/internal/prediction"
	"github.com/DaDevFox/task-systems/feeding-core/internal/repository"
	"github.com/DaDevFox/task-systems/feeding-core/internal/scheduler"
	"github.com/DaDevFox/task-systems/feeding-core/internal/service"
)

const serviceName = "feeding-core"

// app holds the wired components shared by every command.
type app struct {
	config     *config.Config
	logger     *logrus.Logger
	store      repository.Store
	eventBus   *events.EventBus
	feeding    *service.FeedingService
	inventory  *service.InventoryService
	dispatcher *notify.Dispatcher
	scheduler  *scheduler.ReminderScheduler
	location   *time.Location
}

func (a *app) now() time.Time {
	return time.Now().In(a.location)
}

func newApp(ctx context.Context, flags *rootFlags) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.dbType != "" {
		cfg.Database.Type = flags.dbType
	}
	if flags.dbPath != "" {
		cfg.Database.Path = flags.dbPath
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	location, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	table, err := prediction.LoadTable(cfg.IntervalsFile)
	if err != nil {
		return nil, errors.Wrap(err, "load interval table")
	}

	store, err := repository.NewStore(ctx, cfg.StoreOptions(), logger)
	if err != nil {
		return nil, errors.Wrap(err, "open store")
	}
	logger.WithFields(logrus.Fields{
		"db_type": cfg.Database.Type,
		"db_path": cfg.Database.Path,
	}).Info("store opened")

	a := &app{
		config:   cfg,
		logger:   logger,
		store:    store,
		eventBus: events.NewEventBus(serviceName, logger),
		location: location,
	}

	a.feeding = service.NewFeedingService(store, a.eventBus, table, logger)
	a.feeding.SetClock(a.now)
	a.inventory = service.NewInventoryService(store, a.eventBus, logger)
	a.inventory.SetClock(a.now)
	a.inventory.SetLookbackDays(cfg.Forecast.LookbackDays)

	a.dispatcher, err = notify.NewDispatcherFromSettings(ctx, cfg.Notifications, nil, logger)
	if err != nil {
		a.close()
		return nil, err
	}

	schedCfg, err := cfg.SchedulerOptions()
	if err != nil {
		a.close()
		return nil, err
	}
	a.scheduler, err = scheduler.NewReminderScheduler(schedCfg, a.feeding, a.dispatcher, a.eventBus, logger)
	if err != nil {
		a.close()
		return nil, err
	}

	alerter := scheduler.NewDepletionAlerter(a.dispatcher, cfg.Notifications.Recipients, cfg.Scheduler.SendTimeout, logger)
	a.eventBus.Subscribe(events.StockDepleted, alerter.Handle)

	return a, nil
}

// close waits for in-flight event handlers before closing the store.
func (a *app) close() {
	a.eventBus.Wait()
	if err := a.store.Close(); err != nil {
		a.logger.WithError(err).Error("failed to close store")
	}
}
