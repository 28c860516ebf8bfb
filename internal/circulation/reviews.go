package circulation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// SubmitReview files a pending review of a title by the actor. It stays
// hidden from the catalog until a librarian approves it.
func (s *Service) SubmitReview(ctx context.Context, actor model.Actor, titleID int64, rating int, text string) (*Result, error) {
	if err := authorize(actor, model.RoleMember); err != nil {
		return nil, err
	}
	if rating < model.MinRating || rating > model.MaxRating {
		return nil, fmt.Errorf("%w: rating must be between %d and %d", ErrInvalidArgument, model.MinRating, model.MaxRating)
	}

	res, err := s.mutate(ctx, &actor, model.RoleMember, func(tx *sql.Tx, now time.Time, res *Result) error {
		if _, err := activePatron(ctx, tx, actor.ID); err != nil {
			return err
		}
		title, err := liveTitle(ctx, tx, titleID)
		if err != nil {
			return err
		}

		review, err := store.InsertReview(ctx, tx, title.ID, actor.ID, rating, text, now)
		if err != nil {
			return err
		}

		res.Review = review
		res.emit(model.EventReviewSubmitted, model.AggregateReview, review.ID, actor, now, map[string]any{
			"title_id":  title.ID,
			"patron_id": actor.ID,
			"rating":    rating,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("review submitted", "review", res.Review.ID, "title", titleID, "patron", actor.ID)
	return res, nil
}

// ModerateReview approves or rejects a pending review.
func (s *Service) ModerateReview(ctx context.Context, actor model.Actor, reviewID int64, decision Decision, notes string) (*Result, error) {
	if err := authorize(actor, model.RoleLibrarian); err != nil {
		return nil, err
	}

	var status, eventType string
	switch decision {
	case DecisionApprove:
		status, eventType = model.ReviewStatusApproved, model.EventReviewApproved
	case DecisionReject:
		status, eventType = model.ReviewStatusRejected, model.EventReviewRejected
	default:
		return nil, fmt.Errorf("%w: decision must be approve or reject", ErrInvalidArgument)
	}

	res, err := s.mutate(ctx, &actor, model.RoleLibrarian, func(tx *sql.Tx, now time.Time, res *Result) error {
		review, err := store.GetReview(ctx, tx, reviewID)
		if err != nil {
			return err
		}
		if review == nil {
			return fmt.Errorf("%w: review %d", ErrNotFound, reviewID)
		}
		if review.Status != model.ReviewStatusPending {
			return fmt.Errorf("%w: review %d is already %s", ErrInvalidState, reviewID, review.Status)
		}

		ok, err := store.ModerateReview(ctx, tx, reviewID, status, actor.ID, notes, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: review %d is no longer pending", ErrInvalidState, reviewID)
		}

		if res.Review, err = store.GetReview(ctx, tx, reviewID); err != nil {
			return err
		}
		res.emit(eventType, model.AggregateReview, reviewID, actor, now, map[string]any{
			"title_id":  review.TitleID,
			"patron_id": review.PatronID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("review moderated", "review", reviewID, "status", status, "reviewer", actor.ID)
	return res, nil
}
