package circulation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// ReturnLoan closes an open loan and puts the copy back on the shelf. A
// late return assesses the fine as of the return time.
func (s *Service) ReturnLoan(ctx context.Context, actor model.Actor, loanID int64, notes string) (*Result, error) {
	if err := authorize(actor, model.RoleLibrarian); err != nil {
		return nil, err
	}

	res, err := s.mutate(ctx, &actor, model.RoleLibrarian, func(tx *sql.Tx, now time.Time, res *Result) error {
		loan, err := store.GetLoan(ctx, tx, loanID)
		if err != nil {
			return err
		}
		if loan == nil {
			return fmt.Errorf("%w: loan %d", ErrNotFound, loanID)
		}
		if !loan.Open() {
			return fmt.Errorf("%w: loan %s was returned", ErrAlreadySettled, loan.Ref)
		}

		ok, err := store.MarkLoanReturned(ctx, tx, loan.ID, notes, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: loan %s was returned", ErrAlreadySettled, loan.Ref)
		}

		title, err := store.GetTitle(ctx, tx, loan.TitleID)
		if err != nil {
			return err
		}
		if title == nil {
			return fmt.Errorf("%w: title %d", ErrNotFound, loan.TitleID)
		}
		err = store.IncrementAvailable(ctx, tx, title)
		switch {
		case errors.Is(err, store.ErrInventoryInconsistency):
			res.Warnings = append(res.Warnings, fmt.Sprintf("title %d: %d of %d copies available after return",
				title.ID, title.AvailableCopies, title.TotalCopies))
			res.emit(model.EventInventoryInconsistency, model.AggregateTitle, title.ID, actor, now, map[string]any{
				"available_copies": title.AvailableCopies,
				"total_copies":     title.TotalCopies,
				"loan_id":          loan.ID,
			})
		case err != nil:
			return fmt.Errorf("title %d: %w", title.ID, err)
		}

		loan.Status = model.LoanStatusReturned
		loan.ReturnedAt = &now
		if notes != "" {
			loan.Notes = notes
		}
		res.Loan = loan
		res.Title = title
		res.emit(model.EventLoanReturned, model.AggregateLoan, loan.ID, actor, now, map[string]any{
			"ref":       loan.Ref,
			"title_id":  loan.TitleID,
			"patron_id": loan.PatronID,
			"late":      now.After(loan.DueAt),
		})

		if now.After(loan.DueAt) {
			if _, err := s.settleFine(ctx, tx, actor, loan, now, res); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("loan returned", "loan", res.Loan.Ref, "available", res.Title.AvailableCopies, "by", actor.ID)
	return res, nil
}

// SweepResult summarizes one overdue sweep.
type SweepResult struct {
	Flipped       int           `json:"flipped"`
	FinesAssessed int           `json:"fines_assessed"`
	Events        []model.Event `json:"events"`
}

// SweepOverdue marks every issued loan past its due time as overdue and
// brings each open overdue loan's unpaid fine up to date. Running it again
// at the same instant changes nothing.
func (s *Service) SweepOverdue(ctx context.Context, actor model.Actor) (*SweepResult, error) {
	if err := authorize(actor, model.RoleLibrarian); err != nil {
		return nil, err
	}

	var flipped, assessed int
	res, err := s.mutate(ctx, &actor, model.RoleLibrarian, func(tx *sql.Tx, now time.Time, res *Result) error {
		flipped, assessed = 0, 0

		loans, err := store.ListOpenLoans(ctx, tx)
		if err != nil {
			return err
		}

		for i := range loans {
			loan := &loans[i]
			if !loan.DueAt.Before(now) {
				continue
			}

			if loan.Status == model.LoanStatusIssued {
				ok, err := store.MarkLoanOverdue(ctx, tx, loan.ID)
				if err != nil {
					return err
				}
				if ok {
					flipped++
					loan.Status = model.LoanStatusOverdue
					res.emit(model.EventLoanOverdue, model.AggregateLoan, loan.ID, actor, now, map[string]any{
						"ref":       loan.Ref,
						"patron_id": loan.PatronID,
						"due_at":    loan.DueAt,
					})
				}
			}

			changed, err := s.settleFine(ctx, tx, actor, loan, now, res)
			if err != nil {
				return err
			}
			if changed {
				assessed++
			}
		}
		res.Fine = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("overdue sweep finished", "flipped", flipped, "fines_assessed", assessed)
	return &SweepResult{Flipped: flipped, FinesAssessed: assessed, Events: res.Events}, nil
}
