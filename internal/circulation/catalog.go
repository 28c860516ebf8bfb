package circulation

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// CreateTitle adds a catalog entry with every copy on the shelf.
func (s *Service) CreateTitle(ctx context.Context, actor model.Actor, t *model.Title) (*Result, error) {
	if err := authorize(actor, model.RoleLibrarian); err != nil {
		return nil, err
	}
	if strings.TrimSpace(t.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidArgument)
	}
	if t.TotalCopies < 0 {
		return nil, fmt.Errorf("%w: total copies must not be negative", ErrInvalidArgument)
	}

	res, err := s.mutate(ctx, &actor, model.RoleLibrarian, func(tx *sql.Tx, _ time.Time, res *Result) error {
		created, err := store.CreateTitle(ctx, tx, t)
		if err != nil {
			return err
		}
		res.Title = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("title created", "title", res.Title.ID, "copies", res.Title.TotalCopies, "by", actor.ID)
	return res, nil
}

// UpdateTitle changes bibliographic fields. Copy counts go through SetTotal.
func (s *Service) UpdateTitle(ctx context.Context, actor model.Actor, t *model.Title) (*Result, error) {
	if err := authorize(actor, model.RoleLibrarian); err != nil {
		return nil, err
	}
	if strings.TrimSpace(t.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidArgument)
	}

	return s.mutate(ctx, &actor, model.RoleLibrarian, func(tx *sql.Tx, _ time.Time, res *Result) error {
		if _, err := liveTitle(ctx, tx, t.ID); err != nil {
			return err
		}
		if err := store.UpdateTitle(ctx, tx, t); err != nil {
			return err
		}
		var err error
		res.Title, err = store.GetTitle(ctx, tx, t.ID)
		return err
	})
}

// SetTotal changes how many copies the library owns. Available copies are
// left as they are, and the new total must cover the copies on the shelf
// plus those out on loan.
func (s *Service) SetTotal(ctx context.Context, actor model.Actor, titleID int64, total int) (*Result, error) {
	if err := authorize(actor, model.RoleLibrarian); err != nil {
		return nil, err
	}
	if total < 0 {
		return nil, fmt.Errorf("%w: total copies must not be negative", ErrInvalidArgument)
	}

	res, err := s.mutate(ctx, &actor, model.RoleLibrarian, func(tx *sql.Tx, _ time.Time, res *Result) error {
		title, err := liveTitle(ctx, tx, titleID)
		if err != nil {
			return err
		}
		out, err := store.CountOpenLoans(ctx, tx, titleID)
		if err != nil {
			return err
		}
		if total < title.AvailableCopies+out {
			return fmt.Errorf("%w: %d copies on the shelf and %d on loan, total cannot be %d",
				ErrInvalidArgument, title.AvailableCopies, out, total)
		}
		if err := store.SetTotal(ctx, tx, title, total); err != nil {
			return err
		}
		res.Title = title
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("title total changed", "title", titleID, "total", total, "by", actor.ID)
	return res, nil
}

// DeleteTitle removes a title from the catalog. Titles with copies on loan
// cannot be removed.
func (s *Service) DeleteTitle(ctx context.Context, actor model.Actor, titleID int64) error {
	if err := authorize(actor, model.RoleLibrarian); err != nil {
		return err
	}

	_, err := s.mutate(ctx, &actor, model.RoleLibrarian, func(tx *sql.Tx, _ time.Time, _ *Result) error {
		if _, err := liveTitle(ctx, tx, titleID); err != nil {
			return err
		}
		out, err := store.CountOpenLoans(ctx, tx, titleID)
		if err != nil {
			return err
		}
		if out > 0 {
			return fmt.Errorf("%w: title %d has %d copies on loan", ErrInvalidState, titleID, out)
		}
		return store.DeleteTitle(ctx, tx, titleID)
	})
	if err != nil {
		return err
	}

	s.log.Info("title deleted", "title", titleID, "by", actor.ID)
	return nil
}
