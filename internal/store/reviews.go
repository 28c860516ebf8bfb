package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
)

var reviewColumns = []any{"id", "title_id", "patron_id", "rating", "review_text", "status",
	"created_at", "reviewed_at", "reviewed_by", "review_notes"}

func scanReview(row interface{ Scan(...any) error }, r *model.Review) error {
	var text, notes sql.NullString
	if err := row.Scan(&r.ID, &r.TitleID, &r.PatronID, &r.Rating, &text, &r.Status,
		&r.CreatedAt, &r.ReviewedAt, &r.ReviewedBy, &notes); err != nil {
		return err
	}
	r.Text = text.String
	r.ReviewNotes = notes.String
	return nil
}

// InsertReview records a new pending review.
func InsertReview(ctx context.Context, q db.DBTX, titleID, patronID int64, rating int, text string, at time.Time) (*model.Review, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO book_reviews (title_id, patron_id, rating, review_text, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		titleID, patronID, rating, nullString(text), model.ReviewStatusPending, at,
	)
	if err != nil {
		return nil, fmt.Errorf("creating review: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting review id: %w", err)
	}

	return GetReview(ctx, q, id)
}

// GetReview returns a review by ID.
func GetReview(ctx context.Context, q db.DBTX, id int64) (*model.Review, error) {
	query, args, err := dialect.From("book_reviews").Select(reviewColumns...).
		Where(goqu.C("id").Eq(id)).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building review query: %w", err)
	}

	r := &model.Review{}
	err = scanReview(q.QueryRowContext(ctx, query, args...), r)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting review: %w", err)
	}
	return r, nil
}

// ListReviews returns reviews matching the filter, newest first.
func ListReviews(ctx context.Context, q db.DBTX, f Filter) ([]model.Review, error) {
	ds := f.apply(dialect.From("book_reviews").Select(reviewColumns...)).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Desc())
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building review query: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing reviews: %w", err)
	}
	defer rows.Close()

	var reviews []model.Review
	for rows.Next() {
		var r model.Review
		if err := scanReview(rows, &r); err != nil {
			return nil, fmt.Errorf("scanning review: %w", err)
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

// ModerateReview moves a pending review to approved or rejected. It reports
// false when the review was no longer pending.
func ModerateReview(ctx context.Context, q db.DBTX, id int64, status string, reviewerID int64, notes string, at time.Time) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE book_reviews
		 SET status = ?, reviewed_by = ?, reviewed_at = ?, review_notes = ?
		 WHERE id = ? AND status = ?`,
		status, reviewerID, at, nullString(notes), id, model.ReviewStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("moderating review: %w", err)
	}
	return affectedOne(result)
}
