package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/polkiloo/payouts/internal/domain/model"
)

type outboxRepository struct {
	q       querier
	storage *Storage
	inTx    bool
}

func (r *outboxRepository) Append(ctx context.Context, event model.OutboxEvent) error {
	const query = `INSERT INTO outbox_events (id, aggregate, aggregate_id, event_type, payload, created_at)
                   VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.Exec(ctx, query, event.ID, event.Aggregate, event.AggregateID, event.Type, []byte(event.Payload), event.CreatedAt)
	return err
}

func (r *outboxRepository) Drain(ctx context.Context, limit int, publish func(context.Context, []model.OutboxEvent) error) (int, error) {
	if r.inTx {
		return drainOutbox(ctx, r.q, limit, publish)
	}

	var n int
	err := r.storage.WithinTransaction(ctx, func(tx pgx.Tx) error {
		var err error
		n, err = drainOutbox(ctx, tx, limit, publish)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func drainOutbox(ctx context.Context, q querier, limit int, publish func(context.Context, []model.OutboxEvent) error) (int, error) {
	const selectQuery = `SELECT id, aggregate, aggregate_id, event_type, payload, created_at
                         FROM outbox_events
                         WHERE published_at IS NULL
                         ORDER BY seq
                         LIMIT $1
                         FOR UPDATE SKIP LOCKED`

	rows, err := q.Query(ctx, selectQuery, limit)
	if err != nil {
		return 0, err
	}

	var events []model.OutboxEvent
	for rows.Next() {
		var (
			e       model.OutboxEvent
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.Aggregate, &e.AggregateID, &e.Type, &payload, &e.CreatedAt); err != nil {
			rows.Close()
			return 0, err
		}
		e.Payload = payload
		events = append(events, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	if err := publish(ctx, events); err != nil {
		return 0, err
	}

	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID.String()
	}
	const markQuery = `UPDATE outbox_events SET published_at = NOW() WHERE id::text = ANY($1)`
	if _, err := q.Exec(ctx, markQuery, ids); err != nil {
		return 0, err
	}
	return len(events), nil
}
