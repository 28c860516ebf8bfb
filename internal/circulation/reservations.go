package circulation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// CreateReservation places a pending hold by the actor on a title,
// whatever its current availability.
func (s *Service) CreateReservation(ctx context.Context, actor model.Actor, titleID int64, notes string) (*Result, error) {
	if err := authorize(actor, model.RoleMember); err != nil {
		return nil, err
	}

	res, err := s.mutate(ctx, &actor, model.RoleMember, func(tx *sql.Tx, now time.Time, res *Result) error {
		if _, err := activePatron(ctx, tx, actor.ID); err != nil {
			return err
		}
		title, err := liveTitle(ctx, tx, titleID)
		if err != nil {
			return err
		}

		r, err := store.InsertReservation(ctx, tx, title.ID, actor.ID, notes, now)
		if err != nil {
			return err
		}

		res.Reservation = r
		res.emit(model.EventReservationCreated, model.AggregateReservation, r.ID, actor, now, map[string]any{
			"title_id":  title.ID,
			"patron_id": actor.ID,
			"available": title.AvailableCopies,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("reservation created", "reservation", res.Reservation.ID, "title", titleID, "patron", actor.ID)
	return res, nil
}

// FulfillReservation issues a loan against a pending reservation.
func (s *Service) FulfillReservation(ctx context.Context, actor model.Actor, reservationID int64, notes string) (*Result, error) {
	if err := authorize(actor, model.RoleLibrarian); err != nil {
		return nil, err
	}

	res, err := s.mutate(ctx, &actor, model.RoleLibrarian, func(tx *sql.Tx, now time.Time, res *Result) error {
		r, err := store.GetReservation(ctx, tx, reservationID)
		if err != nil {
			return err
		}
		if r == nil {
			return fmt.Errorf("%w: reservation %d", ErrNotFound, reservationID)
		}
		if r.Status != model.ReservationStatusPending {
			return fmt.Errorf("%w: reservation %d is %s", ErrInvalidState, reservationID, r.Status)
		}
		if _, err := activePatron(ctx, tx, r.PatronID); err != nil {
			return err
		}
		title, err := liveTitle(ctx, tx, r.TitleID)
		if err != nil {
			return err
		}

		loan := &model.Loan{PatronID: r.PatronID, ReservationID: &r.ID}
		if err := s.issue(ctx, tx, now, actor, title, loan, s.policy.LoanPeriod, res); err != nil {
			return err
		}

		ok, err := store.FulfillReservation(ctx, tx, reservationID, loan.ID, actor.ID, notes, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: reservation %d is no longer pending", ErrInvalidState, reservationID)
		}

		if res.Reservation, err = store.GetReservation(ctx, tx, reservationID); err != nil {
			return err
		}
		res.emit(model.EventReservationFulfilled, model.AggregateReservation, reservationID, actor, now, map[string]any{
			"loan_id":   loan.ID,
			"loan_ref":  loan.Ref,
			"patron_id": r.PatronID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("reservation fulfilled", "reservation", reservationID, "loan", res.Loan.Ref)
	return res, nil
}

// CancelReservation withdraws a pending reservation. Members may cancel
// only their own; staff may cancel any.
func (s *Service) CancelReservation(ctx context.Context, actor model.Actor, reservationID int64, notes string) (*Result, error) {
	if err := authorize(actor, model.RoleMember); err != nil {
		return nil, err
	}

	res, err := s.mutate(ctx, &actor, model.RoleMember, func(tx *sql.Tx, now time.Time, res *Result) error {
		r, err := store.GetReservation(ctx, tx, reservationID)
		if err != nil {
			return err
		}
		if r == nil {
			return fmt.Errorf("%w: reservation %d", ErrNotFound, reservationID)
		}
		if r.PatronID != actor.ID && !model.HasPermission(actor.Role, model.RoleLibrarian) {
			return fmt.Errorf("%w: reservation %d belongs to another patron", ErrPermissionDenied, reservationID)
		}
		if r.Status != model.ReservationStatusPending {
			return fmt.Errorf("%w: reservation %d is %s", ErrInvalidState, reservationID, r.Status)
		}

		ok, err := store.CancelReservation(ctx, tx, reservationID, actor.ID, notes, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: reservation %d is no longer pending", ErrInvalidState, reservationID)
		}

		if res.Reservation, err = store.GetReservation(ctx, tx, reservationID); err != nil {
			return err
		}
		res.emit(model.EventReservationCancelled, model.AggregateReservation, reservationID, actor, now, map[string]any{
			"title_id":  r.TitleID,
			"patron_id": r.PatronID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("reservation cancelled", "reservation", reservationID, "by", actor.ID)
	return res, nil
}
