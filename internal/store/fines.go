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

var fineColumns = []any{"id", "loan_id", "amount", "paid_status", "assessed_at", "paid_at", "paid_recorded_by"}

func scanFine(row interface{ Scan(...any) error }, f *model.Fine) error {
	var amount int64
	if err := row.Scan(&f.ID, &f.LoanID, &amount, &f.PaidStatus, &f.AssessedAt,
		&f.PaidAt, &f.PaidRecordedBy); err != nil {
		return err
	}
	f.Amount = model.Money(amount)
	return nil
}

// FineFilter narrows fine listings.
type FineFilter struct {
	PaidStatus string
	PatronID   int64
	Limit      int
	Offset     int
}

// InsertFine records a new unpaid fine for a loan.
func InsertFine(ctx context.Context, q db.DBTX, loanID int64, amount model.Money, at time.Time) (*model.Fine, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO fines (loan_id, amount, paid_status, assessed_at) VALUES (?, ?, ?, ?)`,
		loanID, int64(amount), model.FineUnpaid, at,
	)
	if err != nil {
		return nil, fmt.Errorf("creating fine: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting fine id: %w", err)
	}

	return GetFine(ctx, q, id)
}

// UpdateFineAmount reassesses an unpaid fine. Paid fines are never touched;
// the call reports false for them.
func UpdateFineAmount(ctx context.Context, q db.DBTX, id int64, amount model.Money, at time.Time) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE fines SET amount = ?, assessed_at = ? WHERE id = ? AND paid_status = ?`,
		int64(amount), at, id, model.FineUnpaid,
	)
	if err != nil {
		return false, fmt.Errorf("updating fine: %w", err)
	}
	return affectedOne(result)
}

func getFineWhere(ctx context.Context, q db.DBTX, where goqu.Expression) (*model.Fine, error) {
	query, args, err := dialect.From("fines").Select(fineColumns...).
		Where(where).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building fine query: %w", err)
	}

	f := &model.Fine{}
	err = scanFine(q.QueryRowContext(ctx, query, args...), f)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting fine: %w", err)
	}
	return f, nil
}

// GetFine returns a fine by ID.
func GetFine(ctx context.Context, q db.DBTX, id int64) (*model.Fine, error) {
	return getFineWhere(ctx, q, goqu.C("id").Eq(id))
}

// GetFineByLoan returns the fine attached to a loan, if any.
func GetFineByLoan(ctx context.Context, q db.DBTX, loanID int64) (*model.Fine, error) {
	return getFineWhere(ctx, q, goqu.C("loan_id").Eq(loanID))
}

// ListFines returns fines matching the filter, newest assessment first.
func ListFines(ctx context.Context, q db.DBTX, f FineFilter) ([]model.Fine, error) {
	cols := make([]any, len(fineColumns))
	for i, c := range fineColumns {
		cols[i] = goqu.T("fines").Col(c.(string))
	}
	ds := dialect.From("fines").Select(cols...)
	if f.PaidStatus != "" {
		ds = ds.Where(goqu.T("fines").Col("paid_status").Eq(f.PaidStatus))
	}
	if f.PatronID > 0 {
		ds = ds.Join(goqu.T("loans"), goqu.On(goqu.T("loans").Col("id").Eq(goqu.T("fines").Col("loan_id")))).
			Where(goqu.T("loans").Col("patron_id").Eq(f.PatronID))
	}

	limit := f.Limit
	if limit <= 0 || limit > DefaultLimit {
		limit = DefaultLimit
	}
	ds = ds.Order(goqu.T("fines").Col("assessed_at").Desc(), goqu.T("fines").Col("id").Desc()).
		Limit(uint(limit))
	if f.Offset > 0 {
		ds = ds.Offset(uint(f.Offset))
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building fine query: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing fines: %w", err)
	}
	defer rows.Close()

	var fines []model.Fine
	for rows.Next() {
		var fine model.Fine
		if err := scanFine(rows, &fine); err != nil {
			return nil, fmt.Errorf("scanning fine: %w", err)
		}
		fines = append(fines, fine)
	}
	return fines, rows.Err()
}

// MarkFinePaid settles an unpaid fine. It reports false when the fine was
// already paid.
func MarkFinePaid(ctx context.Context, q db.DBTX, id, recordedBy int64, at time.Time) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE fines SET paid_status = ?, paid_at = ?, paid_recorded_by = ?
		 WHERE id = ? AND paid_status = ?`,
		model.FinePaid, at, recordedBy, id, model.FineUnpaid,
	)
	if err != nil {
		return false, fmt.Errorf("paying fine: %w", err)
	}
	return affectedOne(result)
}
