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

var loanColumns = []any{"id", "ref", "title_id", "patron_id", "issued_by", "request_id",
	"reservation_id", "issued_at", "due_at", "returned_at", "status", "notes"}

func scanLoan(row interface{ Scan(...any) error }, l *model.Loan) error {
	var issuedBy sql.NullInt64
	var notes sql.NullString
	if err := row.Scan(&l.ID, &l.Ref, &l.TitleID, &l.PatronID, &issuedBy, &l.RequestID,
		&l.ReservationID, &l.IssuedAt, &l.DueAt, &l.ReturnedAt, &l.Status, &notes); err != nil {
		return err
	}
	l.IssuedBy = issuedBy.Int64
	l.Notes = notes.String
	return nil
}

// InsertLoan records a newly issued loan and fills in its ID.
func InsertLoan(ctx context.Context, q db.DBTX, l *model.Loan) error {
	if l.Status == "" {
		l.Status = model.LoanStatusIssued
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO loans (ref, title_id, patron_id, issued_by, request_id, reservation_id,
		                    issued_at, due_at, status, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.Ref, l.TitleID, l.PatronID, l.IssuedBy, l.RequestID, l.ReservationID,
		l.IssuedAt, l.DueAt, l.Status, nullString(l.Notes),
	)
	if err != nil {
		return fmt.Errorf("creating loan: %w", err)
	}

	l.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting loan id: %w", err)
	}
	return nil
}

func getLoanWhere(ctx context.Context, q db.DBTX, where goqu.Expression) (*model.Loan, error) {
	query, args, err := dialect.From("loans").Select(loanColumns...).
		Where(where).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building loan query: %w", err)
	}

	l := &model.Loan{}
	err = scanLoan(q.QueryRowContext(ctx, query, args...), l)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting loan: %w", err)
	}
	return l, nil
}

// GetLoan returns a loan by ID.
func GetLoan(ctx context.Context, q db.DBTX, id int64) (*model.Loan, error) {
	return getLoanWhere(ctx, q, goqu.C("id").Eq(id))
}

// GetLoanByRef returns a loan by its public reference.
func GetLoanByRef(ctx context.Context, q db.DBTX, ref string) (*model.Loan, error) {
	return getLoanWhere(ctx, q, goqu.C("ref").Eq(ref))
}

// ListLoans returns loans matching the filter, newest first.
func ListLoans(ctx context.Context, q db.DBTX, f Filter) ([]model.Loan, error) {
	ds := f.apply(dialect.From("loans").Select(loanColumns...)).
		Order(goqu.C("issued_at").Desc(), goqu.C("id").Desc())
	return queryLoans(ctx, q, ds)
}

// ListOpenLoans returns every issued or overdue loan, oldest due date first.
// It is not paginated; the overdue sweep needs the full set.
func ListOpenLoans(ctx context.Context, q db.DBTX) ([]model.Loan, error) {
	ds := dialect.From("loans").Select(loanColumns...).
		Where(goqu.C("status").In(model.LoanStatusIssued, model.LoanStatusOverdue)).
		Order(goqu.C("due_at").Asc(), goqu.C("id").Asc())
	return queryLoans(ctx, q, ds)
}

func queryLoans(ctx context.Context, q db.DBTX, ds *goqu.SelectDataset) ([]model.Loan, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("building loan query: %w", err)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing loans: %w", err)
	}
	defer rows.Close()

	var loans []model.Loan
	for rows.Next() {
		var l model.Loan
		if err := scanLoan(rows, &l); err != nil {
			return nil, fmt.Errorf("scanning loan: %w", err)
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

// MarkLoanReturned closes an open loan. It reports false when the loan was
// already returned.
func MarkLoanReturned(ctx context.Context, q db.DBTX, id int64, notes string, at time.Time) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE loans SET status = ?, returned_at = ?, notes = COALESCE(?, notes)
		 WHERE id = ? AND status IN (?, ?)`,
		model.LoanStatusReturned, at, nullString(notes),
		id, model.LoanStatusIssued, model.LoanStatusOverdue,
	)
	if err != nil {
		return false, fmt.Errorf("returning loan: %w", err)
	}
	return affectedOne(result)
}

// MarkLoanOverdue flips an issued loan to overdue.
func MarkLoanOverdue(ctx context.Context, q db.DBTX, id int64) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE loans SET status = ? WHERE id = ? AND status = ?`,
		model.LoanStatusOverdue, id, model.LoanStatusIssued,
	)
	if err != nil {
		return false, fmt.Errorf("marking loan overdue: %w", err)
	}
	return affectedOne(result)
}

// CountOpenLoans returns how many copies of a title are currently out.
func CountOpenLoans(ctx context.Context, q db.DBTX, titleID int64) (int, error) {
	query, args, err := dialect.From("loans").Select(goqu.COUNT("*")).
		Where(goqu.C("title_id").Eq(titleID),
			goqu.C("status").In(model.LoanStatusIssued, model.LoanStatusOverdue)).
		Prepared(true).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("building loan count query: %w", err)
	}

	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting open loans: %w", err)
	}
	return n, nil
}
