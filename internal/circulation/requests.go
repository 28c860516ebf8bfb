package circulation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// Decision is a reviewer's verdict on a pending request.
type Decision string

// Review decisions.
const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// SubmitRequest files a pending request by the actor for a title. Titles
// with no available copies can still be requested.
func (s *Service) SubmitRequest(ctx context.Context, actor model.Actor, titleID int64, notes string) (*Result, error) {
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

		req, err := store.InsertRequest(ctx, tx, title.ID, actor.ID, notes, now)
		if err != nil {
			return err
		}

		res.Request = req
		res.emit(model.EventRequestSubmitted, model.AggregateRequest, req.ID, actor, now, map[string]any{
			"title_id":  title.ID,
			"patron_id": actor.ID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("request submitted", "request", res.Request.ID, "title", titleID, "patron", actor.ID)
	return res, nil
}

// ReviewRequest approves or rejects a pending request.
func (s *Service) ReviewRequest(ctx context.Context, actor model.Actor, requestID int64, decision Decision, notes string) (*Result, error) {
	if err := authorize(actor, model.RoleLibrarian); err != nil {
		return nil, err
	}

	var status, eventType string
	switch decision {
	case DecisionApprove:
		status, eventType = model.RequestStatusApproved, model.EventRequestApproved
	case DecisionReject:
		status, eventType = model.RequestStatusRejected, model.EventRequestRejected
	default:
		return nil, fmt.Errorf("%w: decision must be approve or reject", ErrInvalidArgument)
	}

	res, err := s.mutate(ctx, &actor, model.RoleLibrarian, func(tx *sql.Tx, now time.Time, res *Result) error {
		req, err := store.GetRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if req == nil {
			return fmt.Errorf("%w: request %d", ErrNotFound, requestID)
		}
		if req.Status != model.RequestStatusPending {
			return fmt.Errorf("%w: request %d is already %s", ErrInvalidState, requestID, req.Status)
		}

		ok, err := store.ReviewRequest(ctx, tx, requestID, status, actor.ID, notes, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: request %d is no longer pending", ErrInvalidState, requestID)
		}

		if res.Request, err = store.GetRequest(ctx, tx, requestID); err != nil {
			return err
		}
		res.emit(eventType, model.AggregateRequest, requestID, actor, now, map[string]any{
			"title_id":  req.TitleID,
			"patron_id": req.PatronID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("request reviewed", "request", requestID, "status", status, "reviewer", actor.ID)
	return res, nil
}

// FulfillRequest issues a loan for an approved request. With no copies on
// the shelf it fails with ErrOutOfStock and the request stays approved.
func (s *Service) FulfillRequest(ctx context.Context, actor model.Actor, requestID int64) (*Result, error) {
	if err := authorize(actor, model.RoleLibrarian); err != nil {
		return nil, err
	}

	res, err := s.mutate(ctx, &actor, model.RoleLibrarian, func(tx *sql.Tx, now time.Time, res *Result) error {
		req, err := store.GetRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if req == nil {
			return fmt.Errorf("%w: request %d", ErrNotFound, requestID)
		}
		if req.Status != model.RequestStatusApproved {
			return fmt.Errorf("%w: request %d is %s, not approved", ErrInvalidState, requestID, req.Status)
		}
		if _, err := activePatron(ctx, tx, req.PatronID); err != nil {
			return err
		}
		title, err := liveTitle(ctx, tx, req.TitleID)
		if err != nil {
			return err
		}

		loan := &model.Loan{PatronID: req.PatronID, RequestID: &req.ID}
		if err := s.issue(ctx, tx, now, actor, title, loan, s.policy.LoanPeriod, res); err != nil {
			return err
		}

		ok, err := store.FulfillRequest(ctx, tx, requestID, loan.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: request %d is no longer approved", ErrInvalidState, requestID)
		}

		if res.Request, err = store.GetRequest(ctx, tx, requestID); err != nil {
			return err
		}
		res.emit(model.EventRequestFulfilled, model.AggregateRequest, requestID, actor, now, map[string]any{
			"loan_id":  loan.ID,
			"loan_ref": loan.Ref,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("request fulfilled", "request", requestID, "loan", res.Loan.Ref,
		"available", res.Title.AvailableCopies)
	return res, nil
}

// IssueLoan lends a copy directly at the desk, without a prior request.
// A loanDays of zero uses the configured loan period.
func (s *Service) IssueLoan(ctx context.Context, actor model.Actor, patronID, titleID int64, loanDays int, notes string) (*Result, error) {
	if err := authorize(actor, model.RoleLibrarian); err != nil {
		return nil, err
	}
	if loanDays < 0 {
		return nil, fmt.Errorf("%w: loan days must not be negative", ErrInvalidArgument)
	}
	period := s.policy.LoanPeriod
	if loanDays > 0 {
		period = time.Duration(loanDays) * 24 * time.Hour
	}

	res, err := s.mutate(ctx, &actor, model.RoleLibrarian, func(tx *sql.Tx, now time.Time, res *Result) error {
		if _, err := activePatron(ctx, tx, patronID); err != nil {
			return err
		}
		title, err := liveTitle(ctx, tx, titleID)
		if err != nil {
			return err
		}

		loan := &model.Loan{PatronID: patronID, Notes: notes}
		return s.issue(ctx, tx, now, actor, title, loan, period, res)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("loan issued", "loan", res.Loan.Ref, "title", titleID, "patron", patronID, "by", actor.ID)
	return res, nil
}
