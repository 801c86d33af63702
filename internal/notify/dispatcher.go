package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"service-scheduling/internal/repository"
)

const dispatchBatchSize = 50

// Dispatcher drains unpublished outbox events to a Notifier on a ticker.
// Delivery failures are logged and retried on the next tick; an event is
// marked published only after its notification went out.
type Dispatcher struct {
	txManager repository.TxManager
	notifier  Notifier
	logger    *zap.Logger
	interval  time.Duration
}

func NewDispatcher(txManager repository.TxManager, notifier Notifier, logger *zap.Logger, interval time.Duration) *Dispatcher {
	return &Dispatcher{
		txManager: txManager,
		notifier:  notifier,
		logger:    logger,
		interval:  interval,
	}
}

// Run blocks until ctx is cancelled, dispatching once immediately and
// then on every tick.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	if err := d.DispatchPending(ctx); err != nil {
		d.logger.Error("outbox dispatch failed", zap.Error(err))
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.DispatchPending(ctx); err != nil {
				d.logger.Error("outbox dispatch failed", zap.Error(err))
			}
		}
	}
}

// DispatchPending sends every unpublished event, oldest first. A failed
// delivery stops the batch so ordering is preserved across retries.
func (d *Dispatcher) DispatchPending(ctx context.Context) error {
	var events []repository.OutboxEvent
	err := d.txManager.WithTx(ctx, func(ctx context.Context, repos repository.TxRepositories) error {
		var err error
		events, err = repos.Outbox.ListUnpublished(ctx, dispatchBatchSize)
		return err
	})
	if err != nil {
		return err
	}

	for _, event := range events {
		if err := d.notifier.Notify(ctx, event.EventType, event.Payload); err != nil {
			d.logger.Warn("notification delivery failed",
				zap.String("event_type", event.EventType),
				zap.String("event_id", event.ID.String()),
				zap.Error(err),
			)
			return nil
		}

		err := d.txManager.WithTx(ctx, func(ctx context.Context, repos repository.TxRepositories) error {
			return repos.Outbox.MarkPublished(ctx, event.ID)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
