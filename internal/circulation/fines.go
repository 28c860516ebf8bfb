package circulation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// PayFine records payment of an unpaid fine.
func (s *Service) PayFine(ctx context.Context, actor model.Actor, fineID int64) (*Result, error) {
	if err := authorize(actor, model.RoleLibrarian); err != nil {
		return nil, err
	}

	res, err := s.mutate(ctx, &actor, model.RoleLibrarian, func(tx *sql.Tx, now time.Time, res *Result) error {
		fine, err := store.GetFine(ctx, tx, fineID)
		if err != nil {
			return err
		}
		if fine == nil {
			return fmt.Errorf("%w: fine %d", ErrNotFound, fineID)
		}
		if fine.PaidStatus == model.FinePaid {
			return fmt.Errorf("%w: fine %d is paid", ErrAlreadySettled, fineID)
		}

		ok, err := store.MarkFinePaid(ctx, tx, fineID, actor.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: fine %d is paid", ErrAlreadySettled, fineID)
		}

		if res.Fine, err = store.GetFine(ctx, tx, fineID); err != nil {
			return err
		}
		res.emit(model.EventFinePaid, model.AggregateFine, fineID, actor, now, map[string]any{
			"loan_id": fine.LoanID,
			"amount":  fine.Amount.String(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("fine paid", "fine", fineID, "amount", s.money(res.Fine.Amount), "recorded_by", actor.ID)
	return res, nil
}
