package store

import (
	"context"
	"testing"
	"time"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
)

func TestAppendAndListEvents(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	events := []model.Event{
		{Type: model.EventLoanIssued, Aggregate: model.AggregateLoan, AggregateID: 7, ActorID: 2,
			Payload: map[string]any{"ref": "abc"}, OccurredAt: at},
		{Type: model.EventFineAssessed, Aggregate: model.AggregateFine, AggregateID: 1, ActorID: 0,
			OccurredAt: at.Add(time.Minute)},
	}
	if err := AppendEvents(ctx, database, events); err != nil {
		t.Fatalf("AppendEvents: %v", err)
	}
	if events[0].ID == "" || events[0].ID == events[1].ID {
		t.Fatalf("expected distinct generated IDs, got %q and %q", events[0].ID, events[1].ID)
	}

	all, err := ListEvents(ctx, database, EventFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 events, got %d", len(all))
	}
	if all[0].Type != model.EventLoanIssued || all[0].Payload["ref"] != "abc" {
		t.Errorf("unexpected first event %+v", all[0])
	}

	loans, _ := ListEvents(ctx, database, EventFilter{Aggregate: model.AggregateLoan, AggregateID: 7})
	if len(loans) != 1 {
		t.Errorf("expected 1 loan event, got %d", len(loans))
	}
}
