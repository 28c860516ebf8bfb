package worker

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/knjiznica/internal/circulation"
	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time { return c.t }

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestSweeperOnce(t *testing.T) {
	ctx := context.Background()
	database := db.NewTestDB(t)
	clk := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	svc := circulation.New(database, circulation.Policy{
		LoanPeriod: 14 * 24 * time.Hour,
		FinePerDay: 50,
	}, circulation.WithClock(clk), circulation.WithLogger(quiet))

	patron, err := store.CreatePatron(ctx, database, &model.Patron{
		Username: "ana", PasswordHash: "hash", Role: model.RoleMember, Status: model.PatronStatusActive,
	})
	require.NoError(t, err)
	title, err := store.CreateTitle(ctx, database, &model.Title{Title: "Dune", TotalCopies: 1})
	require.NoError(t, err)

	issued, err := svc.IssueLoan(ctx, model.SystemActor, patron.ID, title.ID, 0, "")
	require.NoError(t, err)

	require.NoError(t, store.RevokeToken(ctx, database, "expired", time.Now().Add(-time.Hour)))
	require.NoError(t, store.RevokeToken(ctx, database, "live", time.Now().Add(time.Hour)))

	sw := NewSweeper(svc, database, time.Hour, quiet)

	// Nothing is due yet.
	res, err := sw.Once(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Flipped)

	clk.t = clk.t.Add(20 * 24 * time.Hour)
	res, err = sw.Once(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Flipped)
	assert.Equal(t, 1, res.FinesAssessed)

	loan, err := store.GetLoan(ctx, database, issued.Loan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LoanStatusOverdue, loan.Status)

	fine, err := store.GetFineByLoan(ctx, database, loan.ID)
	require.NoError(t, err)
	require.NotNil(t, fine)
	assert.Equal(t, model.Money(6*50), fine.Amount)

	revoked, err := store.IsTokenRevoked(ctx, database, "expired")
	require.NoError(t, err)
	assert.False(t, revoked)
	revoked, err = store.IsTokenRevoked(ctx, database, "live")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	database := db.NewTestDB(t)
	svc := circulation.New(database, circulation.DefaultPolicy, circulation.WithLogger(quiet))
	sw := NewSweeper(svc, database, time.Hour, quiet)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestSweeperDisabled(t *testing.T) {
	database := db.NewTestDB(t)
	svc := circulation.New(database, circulation.DefaultPolicy, circulation.WithLogger(quiet))

	// Returns immediately without a ticker.
	NewSweeper(svc, database, 0, quiet).Run(context.Background())
}
