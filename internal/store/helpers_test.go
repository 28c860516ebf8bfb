package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/erazemk/knjiznica/internal/model"
)

func seedPatron(t *testing.T, q *sql.DB, username string) *model.Patron {
	t.Helper()
	p, err := CreatePatron(context.Background(), q, &model.Patron{
		Username:     username,
		PasswordHash: "hash",
		Role:         model.RoleMember,
		Status:       model.PatronStatusActive,
	})
	if err != nil {
		t.Fatalf("CreatePatron(%s): %v", username, err)
	}
	return p
}

func seedTitle(t *testing.T, q *sql.DB, name string, copies int) *model.Title {
	t.Helper()
	title, err := CreateTitle(context.Background(), q, &model.Title{Title: name, TotalCopies: copies})
	if err != nil {
		t.Fatalf("CreateTitle(%s): %v", name, err)
	}
	return title
}
