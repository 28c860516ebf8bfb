package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
)

const patronColumns = `id, username, password_hash, full_name, email, role, status, created_at, deleted_at`

func scanPatron(row interface{ Scan(...any) error }, p *model.Patron) error {
	return row.Scan(&p.ID, &p.Username, &p.PasswordHash, &p.FullName, &p.Email, &p.Role, &p.Status,
		&p.CreatedAt, &p.DeletedAt)
}

// CreatePatron creates a new patron. An empty status defaults to pending.
func CreatePatron(ctx context.Context, q db.DBTX, p *model.Patron) (*model.Patron, error) {
	status := p.Status
	if status == "" {
		status = model.PatronStatusPending
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO patrons (username, password_hash, full_name, email, role, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.Username, p.PasswordHash, p.FullName, p.Email, p.Role, status,
	)
	if err != nil {
		return nil, fmt.Errorf("creating patron: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting patron id: %w", err)
	}

	return GetPatron(ctx, q, id)
}

// GetPatron returns a patron by ID.
func GetPatron(ctx context.Context, q db.DBTX, id int64) (*model.Patron, error) {
	p := &model.Patron{}
	err := scanPatron(q.QueryRowContext(ctx,
		`SELECT `+patronColumns+` FROM patrons WHERE id = ?`, id), p)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting patron: %w", err)
	}
	return p, nil
}

// GetPatronByUsername returns the active (non-deleted) patron with the given
// username.
func GetPatronByUsername(ctx context.Context, q db.DBTX, username string) (*model.Patron, error) {
	p := &model.Patron{}
	err := scanPatron(q.QueryRowContext(ctx,
		`SELECT `+patronColumns+` FROM patrons WHERE username = ? AND deleted_at IS NULL`, username), p)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting patron by username: %w", err)
	}
	return p, nil
}

// ListPatrons returns all non-deleted patrons, optionally filtered by status.
func ListPatrons(ctx context.Context, q db.DBTX, status string) ([]model.Patron, error) {
	query := `SELECT ` + patronColumns + ` FROM patrons WHERE deleted_at IS NULL`
	var args []any
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing patrons: %w", err)
	}
	defer rows.Close()

	var patrons []model.Patron
	for rows.Next() {
		var p model.Patron
		if err := scanPatron(rows, &p); err != nil {
			return nil, fmt.Errorf("scanning patron: %w", err)
		}
		patrons = append(patrons, p)
	}
	return patrons, rows.Err()
}

// UpdatePatronProfile updates a patron's name and email.
func UpdatePatronProfile(ctx context.Context, q db.DBTX, id int64, fullName, email string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE patrons SET full_name = ?, email = ? WHERE id = ? AND deleted_at IS NULL`,
		fullName, email, id,
	)
	if err != nil {
		return fmt.Errorf("updating patron profile: %w", err)
	}
	return nil
}

// UpdatePatronRole updates a patron's role.
func UpdatePatronRole(ctx context.Context, q db.DBTX, id int64, role model.Role) error {
	_, err := q.ExecContext(ctx,
		`UPDATE patrons SET role = ? WHERE id = ? AND deleted_at IS NULL`,
		role, id,
	)
	if err != nil {
		return fmt.Errorf("updating patron role: %w", err)
	}
	return nil
}

// UpdatePatronStatus moves a patron from one status to another. It reports
// false when the patron was not in the expected status.
func UpdatePatronStatus(ctx context.Context, q db.DBTX, id int64, from, to string) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE patrons SET status = ? WHERE id = ? AND status = ? AND deleted_at IS NULL`,
		to, id, from,
	)
	if err != nil {
		return false, fmt.Errorf("updating patron status: %w", err)
	}
	return affectedOne(result)
}

// UpdatePatronPassword updates a patron's password hash.
func UpdatePatronPassword(ctx context.Context, q db.DBTX, id int64, passwordHash string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE patrons SET password_hash = ? WHERE id = ? AND deleted_at IS NULL`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating patron password: %w", err)
	}
	return nil
}

// DeletePatron soft-deletes a patron.
func DeletePatron(ctx context.Context, q db.DBTX, id int64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE patrons SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting patron: %w", err)
	}
	return nil
}
