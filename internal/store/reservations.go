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

var reservationColumns = []any{"id", "title_id", "patron_id", "status", "notes", "created_at",
	"fulfilled_at", "cancelled_at", "handled_by", "loan_id"}

func scanReservation(row interface{ Scan(...any) error }, r *model.Reservation) error {
	var notes sql.NullString
	if err := row.Scan(&r.ID, &r.TitleID, &r.PatronID, &r.Status, &notes, &r.CreatedAt,
		&r.FulfilledAt, &r.CancelledAt, &r.HandledBy, &r.LoanID); err != nil {
		return err
	}
	r.Notes = notes.String
	return nil
}

// InsertReservation records a new pending reservation.
func InsertReservation(ctx context.Context, q db.DBTX, titleID, patronID int64, notes string, at time.Time) (*model.Reservation, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO reservations (title_id, patron_id, status, notes, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		titleID, patronID, model.ReservationStatusPending, nullString(notes), at,
	)
	if err != nil {
		return nil, fmt.Errorf("creating reservation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting reservation id: %w", err)
	}

	return GetReservation(ctx, q, id)
}

// GetReservation returns a reservation by ID.
func GetReservation(ctx context.Context, q db.DBTX, id int64) (*model.Reservation, error) {
	query, args, err := dialect.From("reservations").Select(reservationColumns...).
		Where(goqu.C("id").Eq(id)).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building reservation query: %w", err)
	}

	r := &model.Reservation{}
	err = scanReservation(q.QueryRowContext(ctx, query, args...), r)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting reservation: %w", err)
	}
	return r, nil
}

// ListReservations returns reservations matching the filter, oldest first
// so the queue order is visible.
func ListReservations(ctx context.Context, q db.DBTX, f Filter) ([]model.Reservation, error) {
	ds := f.apply(dialect.From("reservations").Select(reservationColumns...)).
		Order(goqu.C("created_at").Asc(), goqu.C("id").Asc())
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building reservation query: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing reservations: %w", err)
	}
	defer rows.Close()

	var reservations []model.Reservation
	for rows.Next() {
		var r model.Reservation
		if err := scanReservation(rows, &r); err != nil {
			return nil, fmt.Errorf("scanning reservation: %w", err)
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

// FulfillReservation marks a pending reservation fulfilled by the given loan.
func FulfillReservation(ctx context.Context, q db.DBTX, id, loanID, handledBy int64, notes string, at time.Time) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE reservations
		 SET status = ?, fulfilled_at = ?, loan_id = ?, handled_by = ?, notes = COALESCE(?, notes)
		 WHERE id = ? AND status = ?`,
		model.ReservationStatusFulfilled, at, loanID, handledBy, nullString(notes),
		id, model.ReservationStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("fulfilling reservation: %w", err)
	}
	return affectedOne(result)
}

// CancelReservation marks a pending reservation cancelled.
func CancelReservation(ctx context.Context, q db.DBTX, id, handledBy int64, notes string, at time.Time) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE reservations
		 SET status = ?, cancelled_at = ?, handled_by = ?, notes = COALESCE(?, notes)
		 WHERE id = ? AND status = ?`,
		model.ReservationStatusCancelled, at, handledBy, nullString(notes),
		id, model.ReservationStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("cancelling reservation: %w", err)
	}
	return affectedOne(result)
}
