package app

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"service-scheduling/internal/artifact"
	"service-scheduling/internal/config"
	"service-scheduling/internal/notify"
	"service-scheduling/internal/repository"
	"service-scheduling/internal/schedule"
)

// App wires the engine and its collaborators. Everything is constructed
// here once and passed by reference; no package-level singletons.
type App struct {
	Scheduler  *schedule.Service
	dispatcher *notify.Dispatcher
}

func New(db *sql.DB, cfg config.Config, logger *zap.Logger) (*App, error) {
	days, err := cfg.Weekdays()
	if err != nil {
		return nil, err
	}
	dayStart, err := config.MinuteOf(cfg.DayStartHHMM)
	if err != nil {
		return nil, err
	}
	dayEnd, err := config.MinuteOf(cfg.DayEndHHMM)
	if err != nil {
		return nil, err
	}
	if dayStart >= dayEnd || cfg.SlotStepMins <= 0 {
		return nil, fmt.Errorf("invalid grid configuration: %s-%s step %d",
			cfg.DayStartHHMM, cfg.DayEndHHMM, cfg.SlotStepMins)
	}

	txManager := repository.NewPostgresTxManager(db)

	renderer, err := artifact.NewCSVRenderer(cfg.ArtifactDir)
	if err != nil {
		return nil, err
	}

	scheduler := schedule.NewService(txManager, renderer, logger, schedule.Config{
		LectureDays: days,
		DayStart:    dayStart,
		DayEnd:      dayEnd,
		Step:        cfg.SlotStepMins,
	})

	var notifier notify.Notifier
	if cfg.SendgridAPIKey != "" {
		notifier = notify.NewSendgridNotifier(cfg.SendgridAPIKey, cfg.NotifyFromName, cfg.NotifyFrom, cfg.NotifyTo)
	} else {
		notifier = notify.NewConsoleNotifier(logger)
	}
	dispatcher := notify.NewDispatcher(txManager, notifier, logger, cfg.DispatchInterval)

	return &App{Scheduler: scheduler, dispatcher: dispatcher}, nil
}

// RunDispatcher blocks, draining the outbox until ctx is cancelled.
func (a *App) RunDispatcher(ctx context.Context) {
	a.dispatcher.Run(ctx)
}
