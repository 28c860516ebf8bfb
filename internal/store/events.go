package store

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EventFilter narrows event listings.
type EventFilter struct {
	Type        string
	Aggregate   string
	AggregateID int64
	Since       time.Time
	Limit       int
}

// AppendEvents writes events to the log, assigning IDs to any that lack one.
func AppendEvents(ctx context.Context, q db.DBTX, events []model.Event) error {
	for i := range events {
		e := &events[i]
		if e.ID == "" {
			e.ID = uuid.NewString()
		}

		payload := []byte("{}")
		if len(e.Payload) > 0 {
			var err error
			if payload, err = json.Marshal(e.Payload); err != nil {
				return fmt.Errorf("encoding %s payload: %w", e.Type, err)
			}
		}

		_, err := q.ExecContext(ctx,
			`INSERT INTO events (id, type, aggregate, aggregate_id, actor_id, payload, occurred_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.Type, e.Aggregate, e.AggregateID, e.ActorID, string(payload), e.OccurredAt,
		)
		if err != nil {
			return fmt.Errorf("appending %s event: %w", e.Type, err)
		}
	}
	return nil
}

// ListEvents returns events matching the filter, oldest first.
func ListEvents(ctx context.Context, q db.DBTX, f EventFilter) ([]model.Event, error) {
	ds := dialect.From("events").
		Select("id", "type", "aggregate", "aggregate_id", "actor_id", "payload", "occurred_at")
	if f.Type != "" {
		ds = ds.Where(goqu.C("type").Eq(f.Type))
	}
	if f.Aggregate != "" {
		ds = ds.Where(goqu.C("aggregate").Eq(f.Aggregate))
	}
	if f.AggregateID > 0 {
		ds = ds.Where(goqu.C("aggregate_id").Eq(f.AggregateID))
	}
	if !f.Since.IsZero() {
		ds = ds.Where(goqu.C("occurred_at").Gte(f.Since))
	}

	limit := f.Limit
	if limit <= 0 || limit > DefaultLimit {
		limit = DefaultLimit
	}
	ds = ds.Order(goqu.C("occurred_at").Asc(), goqu.C("rowid").Asc()).Limit(uint(limit))

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building event query: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		var payload string
		if err := rows.Scan(&e.ID, &e.Type, &e.Aggregate, &e.AggregateID, &e.ActorID,
			&payload, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		if err := json.UnmarshalFromString(payload, &e.Payload); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", e.Type, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
