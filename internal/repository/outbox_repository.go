package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"service-scheduling/internal/domain"
)

type OutboxEvent struct {
	ID        uuid.UUID
	EventType string
	Payload   json.RawMessage
	CreatedAt time.Time
}

type OutboxRepository interface {
	Insert(ctx context.Context, event domain.SchedulingEvent) error
	ListUnpublished(ctx context.Context, limit int) ([]OutboxEvent, error)
	MarkPublished(ctx context.Context, id uuid.UUID) error
}

type OutboxPostgresRepository struct {
	execer Execer
}

func NewOutboxPostgresRepository(execer Execer) *OutboxPostgresRepository {
	return &OutboxPostgresRepository{execer: execer}
}

func (r *OutboxPostgresRepository) Insert(ctx context.Context, event domain.SchedulingEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	const query = `
INSERT INTO scheduling.outbox_events (
	id,
	event_type,
	payload,
	created_at,
	published
) VALUES ($1, $2, $3, now(), false)
`

	_, err = r.execer.ExecContext(ctx, query, uuid.New(), event.EventType, payload)
	return err
}

func (r *OutboxPostgresRepository) ListUnpublished(ctx context.Context, limit int) ([]OutboxEvent, error) {
	const query = `
SELECT id, event_type, payload, created_at
FROM scheduling.outbox_events
WHERE published = false
ORDER BY created_at ASC
LIMIT $1
`
	rows, err := r.execer.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []OutboxEvent
	for rows.Next() {
		var event OutboxEvent
		if err := rows.Scan(&event.ID, &event.EventType, &event.Payload, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

func (r *OutboxPostgresRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	const query = `
UPDATE scheduling.outbox_events
SET published = true, published_at = now()
WHERE id = $1
`
	_, err := r.execer.ExecContext(ctx, query, id)
	return err
}
