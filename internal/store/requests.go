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

var requestColumns = []any{"id", "title_id", "patron_id", "status", "notes", "created_at",
	"reviewed_at", "reviewed_by", "fulfilled_at", "loan_id"}

func scanRequest(row interface{ Scan(...any) error }, r *model.CirculationRequest) error {
	var notes sql.NullString
	if err := row.Scan(&r.ID, &r.TitleID, &r.PatronID, &r.Status, &notes, &r.CreatedAt,
		&r.ReviewedAt, &r.ReviewedBy, &r.FulfilledAt, &r.LoanID); err != nil {
		return err
	}
	r.Notes = notes.String
	return nil
}

// InsertRequest records a new pending request.
func InsertRequest(ctx context.Context, q db.DBTX, titleID, patronID int64, notes string, at time.Time) (*model.CirculationRequest, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO circulation_requests (title_id, patron_id, status, notes, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		titleID, patronID, model.RequestStatusPending, nullString(notes), at,
	)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting request id: %w", err)
	}

	return GetRequest(ctx, q, id)
}

// GetRequest returns a request by ID.
func GetRequest(ctx context.Context, q db.DBTX, id int64) (*model.CirculationRequest, error) {
	query, args, err := dialect.From("circulation_requests").Select(requestColumns...).
		Where(goqu.C("id").Eq(id)).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building request query: %w", err)
	}

	r := &model.CirculationRequest{}
	err = scanRequest(q.QueryRowContext(ctx, query, args...), r)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting request: %w", err)
	}
	return r, nil
}

// ListRequests returns requests matching the filter, newest first.
func ListRequests(ctx context.Context, q db.DBTX, f Filter) ([]model.CirculationRequest, error) {
	ds := f.apply(dialect.From("circulation_requests").Select(requestColumns...)).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Desc())
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building request query: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	defer rows.Close()

	var requests []model.CirculationRequest
	for rows.Next() {
		var r model.CirculationRequest
		if err := scanRequest(rows, &r); err != nil {
			return nil, fmt.Errorf("scanning request: %w", err)
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

// ReviewRequest moves a pending request to approved or rejected. It reports
// false when the request was no longer pending.
func ReviewRequest(ctx context.Context, q db.DBTX, id int64, status string, reviewerID int64, notes string, at time.Time) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE circulation_requests
		 SET status = ?, reviewed_by = ?, reviewed_at = ?, notes = COALESCE(?, notes)
		 WHERE id = ? AND status = ?`,
		status, reviewerID, at, nullString(notes), id, model.RequestStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("reviewing request: %w", err)
	}
	return affectedOne(result)
}

// FulfillRequest marks an approved request fulfilled by the given loan.
func FulfillRequest(ctx context.Context, q db.DBTX, id, loanID int64, at time.Time) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE circulation_requests SET status = ?, fulfilled_at = ?, loan_id = ?
		 WHERE id = ? AND status = ?`,
		model.RequestStatusFulfilled, at, loanID, id, model.RequestStatusApproved,
	)
	if err != nil {
		return false, fmt.Errorf("fulfilling request: %w", err)
	}
	return affectedOne(result)
}

func affectedOne(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking affected rows: %w", err)
	}
	return n == 1, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
