package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
)

// Inventory ledger errors.
var (
	// ErrOutOfStock is returned when no copy of a title is available.
	ErrOutOfStock = errors.New("no copies available")
	// ErrVersionConflict is returned when a title changed between read and write.
	ErrVersionConflict = errors.New("title was modified concurrently")
	// ErrInventoryInconsistency reports a return that pushed available copies
	// above the total. The increment is still applied.
	ErrInventoryInconsistency = errors.New("available copies exceed total copies")
)

const titleColumns = `id, isbn, title, author, publisher, year, genre, total_copies, available_copies,
	version, created_at, updated_at, deleted_at`

func scanTitle(row interface{ Scan(...any) error }, t *model.Title) error {
	return row.Scan(&t.ID, &t.ISBN, &t.Title, &t.Author, &t.Publisher, &t.Year, &t.Genre,
		&t.TotalCopies, &t.AvailableCopies, &t.Version, &t.CreatedAt, &t.UpdatedAt, &t.DeletedAt)
}

// CreateTitle adds a catalog entry with every copy available.
func CreateTitle(ctx context.Context, q db.DBTX, t *model.Title) (*model.Title, error) {
	if t.TotalCopies < 0 {
		return nil, fmt.Errorf("total copies must not be negative")
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO titles (isbn, title, author, publisher, year, genre, total_copies, available_copies)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ISBN, t.Title, t.Author, t.Publisher, t.Year, t.Genre, t.TotalCopies, t.TotalCopies,
	)
	if err != nil {
		return nil, fmt.Errorf("creating title: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting title id: %w", err)
	}

	return GetTitle(ctx, q, id)
}

// GetTitle returns a title by ID, including soft-deleted ones.
func GetTitle(ctx context.Context, q db.DBTX, id int64) (*model.Title, error) {
	t := &model.Title{}
	err := scanTitle(q.QueryRowContext(ctx,
		`SELECT `+titleColumns+` FROM titles WHERE id = ?`, id), t)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting title: %w", err)
	}
	return t, nil
}

// ListTitles returns non-deleted titles whose title, author or ISBN
// contains search.
func ListTitles(ctx context.Context, q db.DBTX, search string) ([]model.Title, error) {
	query := `SELECT ` + titleColumns + ` FROM titles WHERE deleted_at IS NULL`
	var args []any
	if search != "" {
		query += ` AND (title LIKE ? OR author LIKE ? OR isbn LIKE ?)`
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern, pattern)
	}
	query += ` ORDER BY title`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing titles: %w", err)
	}
	defer rows.Close()

	var titles []model.Title
	for rows.Next() {
		var t model.Title
		if err := scanTitle(rows, &t); err != nil {
			return nil, fmt.Errorf("scanning title: %w", err)
		}
		titles = append(titles, t)
	}
	return titles, rows.Err()
}

// UpdateTitle updates bibliographic fields. Copy counters are left alone.
func UpdateTitle(ctx context.Context, q db.DBTX, t *model.Title) error {
	_, err := q.ExecContext(ctx,
		`UPDATE titles SET isbn = ?, title = ?, author = ?, publisher = ?, year = ?, genre = ?,
		        updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		t.ISBN, t.Title, t.Author, t.Publisher, t.Year, t.Genre, t.ID,
	)
	if err != nil {
		return fmt.Errorf("updating title: %w", err)
	}
	return nil
}

// SetTotal changes the number of copies the library owns. Available copies
// are not adjusted; callers must not drop the total below them.
func SetTotal(ctx context.Context, q db.DBTX, t *model.Title, total int) error {
	if total < 0 {
		return fmt.Errorf("total copies must not be negative")
	}

	result, err := q.ExecContext(ctx,
		`UPDATE titles SET total_copies = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND version = ?`,
		total, t.ID, t.Version,
	)
	if err != nil {
		return fmt.Errorf("setting total copies: %w", err)
	}
	if err := expectOneRow(result); err != nil {
		return err
	}

	t.TotalCopies = total
	t.Version++
	return nil
}

// DeleteTitle soft-deletes a title.
func DeleteTitle(ctx context.Context, q db.DBTX, id int64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE titles SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting title: %w", err)
	}
	return nil
}

// DecrementAvailable takes one copy off the shelf. The write is checked
// against the version read from t, so a concurrent change yields
// ErrVersionConflict instead of a lost update.
func DecrementAvailable(ctx context.Context, q db.DBTX, t *model.Title) error {
	if t.AvailableCopies <= 0 {
		return ErrOutOfStock
	}

	result, err := q.ExecContext(ctx,
		`UPDATE titles SET available_copies = available_copies - 1, version = version + 1,
		        updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND version = ? AND available_copies > 0`,
		t.ID, t.Version,
	)
	if err != nil {
		return fmt.Errorf("decrementing available copies: %w", err)
	}
	if err := expectOneRow(result); err != nil {
		return err
	}

	t.AvailableCopies--
	t.Version++
	return nil
}

// IncrementAvailable puts one copy back on the shelf. When the title already
// has every copy available the increment is applied anyway and
// ErrInventoryInconsistency is returned for the caller to report.
func IncrementAvailable(ctx context.Context, q db.DBTX, t *model.Title) error {
	result, err := q.ExecContext(ctx,
		`UPDATE titles SET available_copies = available_copies + 1, version = version + 1,
		        updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND version = ?`,
		t.ID, t.Version,
	)
	if err != nil {
		return fmt.Errorf("incrementing available copies: %w", err)
	}
	if err := expectOneRow(result); err != nil {
		return err
	}

	t.AvailableCopies++
	t.Version++
	if t.AvailableCopies > t.TotalCopies {
		return ErrInventoryInconsistency
	}
	return nil
}

// expectOneRow maps a zero-row versioned write to ErrVersionConflict.
func expectOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n != 1 {
		return ErrVersionConflict
	}
	return nil
}
