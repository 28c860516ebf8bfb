package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/knjiznica/internal/model"
)

// Stats is a point-in-time summary of the catalog and circulation.
type Stats struct {
	Titles          int         `db:"titles" json:"titles"`
	TotalCopies     int         `db:"total_copies" json:"total_copies"`
	AvailableCopies int         `db:"available_copies" json:"available_copies"`
	ActivePatrons   int         `db:"active_patrons" json:"active_patrons"`
	PendingPatrons  int         `db:"pending_patrons" json:"pending_patrons"`
	PendingRequests int         `db:"pending_requests" json:"pending_requests"`
	OpenLoans       int         `db:"open_loans" json:"open_loans"`
	OverdueLoans    int         `db:"overdue_loans" json:"overdue_loans"`
	PendingHolds    int         `db:"pending_reservations" json:"pending_reservations"`
	UnpaidFines     model.Money `db:"unpaid_fines" json:"unpaid_fines"`
	CollectedFines  model.Money `db:"collected_fines" json:"collected_fines"`
}

const statsQuery = `
SELECT
    (SELECT COUNT(*) FROM titles WHERE deleted_at IS NULL) AS titles,
    (SELECT COALESCE(SUM(total_copies), 0) FROM titles WHERE deleted_at IS NULL) AS total_copies,
    (SELECT COALESCE(SUM(available_copies), 0) FROM titles WHERE deleted_at IS NULL) AS available_copies,
    (SELECT COUNT(*) FROM patrons WHERE deleted_at IS NULL AND status = 'active') AS active_patrons,
    (SELECT COUNT(*) FROM patrons WHERE deleted_at IS NULL AND status = 'pending') AS pending_patrons,
    (SELECT COUNT(*) FROM circulation_requests WHERE status = 'pending') AS pending_requests,
    (SELECT COUNT(*) FROM loans WHERE status IN ('issued', 'overdue')) AS open_loans,
    (SELECT COUNT(*) FROM loans WHERE status = 'overdue') AS overdue_loans,
    (SELECT COUNT(*) FROM reservations WHERE status = 'pending') AS pending_reservations,
    (SELECT COALESCE(SUM(amount), 0) FROM fines WHERE paid_status = 'unpaid') AS unpaid_fines,
    (SELECT COALESCE(SUM(amount), 0) FROM fines WHERE paid_status = 'paid') AS collected_fines
`

// GetStats computes the dashboard summary.
func GetStats(ctx context.Context, database *sql.DB) (*Stats, error) {
	x := sqlx.NewDb(database, "sqlite")

	var s Stats
	if err := x.GetContext(ctx, &s, statsQuery); err != nil {
		return nil, fmt.Errorf("computing stats: %w", err)
	}
	return &s, nil
}
