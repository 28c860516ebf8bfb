package circulation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// statusTransitions lists the allowed patron status changes.
var statusTransitions = map[string][]string{
	model.PatronStatusPending:   {model.PatronStatusActive},
	model.PatronStatusActive:    {model.PatronStatusSuspended},
	model.PatronStatusSuspended: {model.PatronStatusActive},
}

func canTransition(from, to string) bool {
	for _, s := range statusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// SetPatronStatus approves, suspends or reactivates a patron. Staff cannot
// change the status of someone who outranks them.
func (s *Service) SetPatronStatus(ctx context.Context, actor model.Actor, patronID int64, status string) (*Result, error) {
	if err := authorize(actor, model.RoleLibrarian); err != nil {
		return nil, err
	}
	if _, ok := statusTransitions[status]; !ok {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, status)
	}

	var from string
	res, err := s.mutate(ctx, &actor, model.RoleLibrarian, func(tx *sql.Tx, now time.Time, res *Result) error {
		p, err := store.GetPatron(ctx, tx, patronID)
		if err != nil {
			return err
		}
		if p == nil || p.DeletedAt != nil {
			return fmt.Errorf("%w: patron %d", ErrNotFound, patronID)
		}
		if p.Role.Rank() > actor.Role.Rank() {
			return fmt.Errorf("%w: patron %d outranks actor", ErrPermissionDenied, patronID)
		}
		if !canTransition(p.Status, status) {
			return fmt.Errorf("%w: patron %d cannot go from %s to %s", ErrInvalidState, patronID, p.Status, status)
		}

		ok, err := store.UpdatePatronStatus(ctx, tx, patronID, p.Status, status)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: patron %d changed concurrently", ErrInvalidState, patronID)
		}

		from = p.Status
		p.Status = status
		res.Patron = p
		res.emit(model.EventPatronStatusChanged, model.AggregatePatron, patronID, actor, now, map[string]any{
			"from": from,
			"to":   status,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("patron status changed", "patron", patronID, "from", from, "to", status, "by", actor.ID)
	return res, nil
}
