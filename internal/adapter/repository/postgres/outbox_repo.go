package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/usecase"
)

// OutboxRepository implements usecase.OutboxRepository.
type OutboxRepository struct {
	db dbtx
}

// NewOutboxRepository creates a new OutboxRepository.
func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{db: pool}
}

// Create creates a new outbox event within a transaction.
func (r *OutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	pgxTx, err := pgxTxFrom(tx)
	if err != nil {
		return err
	}
	return insertOutboxEvent(ctx, pgxTx, event)
}

// GetUnpublished retrieves unpublished events.
func (r *OutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	rows, err := r.db.Query(ctx, unpublishedEventsSQL, int32(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.OutboxEvent
	for rows.Next() {
		var (
			e           domain.OutboxEvent
			payload     []byte
			publishedAt pgtype.Timestamptz
		)
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.AggregateType, &e.EventType, &payload,
			&e.CreatedAt, &publishedAt, &e.Published); err != nil {
			return nil, err
		}
		if payload != nil {
			_ = json.Unmarshal(payload, &e.Payload)
		}
		if publishedAt.Valid {
			t := publishedAt.Time
			e.PublishedAt = &t
		}
		events = append(events, &e)
	}

	return events, rows.Err()
}

// MarkPublished marks an event as published.
func (r *OutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	_, err := r.db.Exec(ctx, markEventPublishedSQL, id, timeToPgTimestamptz(publishedAt))
	return err
}

// DeletePublished deletes published events older than the given time.
func (r *OutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	_, err := r.db.Exec(ctx, deletePublishedEventsSQL, timeToPgTimestamptz(before))
	return err
}

func insertOutboxEvent(ctx context.Context, db dbtx, event *domain.OutboxEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	_, err = db.Exec(ctx, insertOutboxEventSQL,
		event.ID,
		event.AggregateID,
		event.AggregateType,
		event.EventType,
		payload,
		timeToPgTimestamptz(event.CreatedAt),
		event.Published,
	)

	return err
}
