package circulation

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) New(time.Time) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("LOAN-%04d", g.n), nil
}

const day = 24 * time.Hour

// rate is 10.00 per day.
const rate model.Money = 1000

func memberActor(id int64) model.Actor {
	return model.Actor{ID: id, Role: model.RoleMember}
}

type fixture struct {
	db    *sql.DB
	svc   *Service
	clock *fakeClock
	staff model.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, db.NewTestDB(t))
}

// newFileFixture uses an on-disk database so that several connections can
// contend for the write lock.
func newFileFixture(t *testing.T) *fixture {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "circulation.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.EnsureSchema(database))
	return newFixtureOn(t, database)
}

func newFixtureOn(t *testing.T, database *sql.DB) *fixture {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	svc := New(database, Policy{LoanPeriod: 14 * day, FinePerDay: rate},
		WithClock(clock),
		WithIDGen(&seqIDs{}),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithRetry(WithBaseDelay(0)),
	)

	f := &fixture{db: database, svc: svc, clock: clock}
	staff := f.patron(t, "desk", model.RoleLibrarian, model.PatronStatusActive)
	f.staff = model.Actor{ID: staff.ID, Role: model.RoleLibrarian}
	return f
}

func (f *fixture) patron(t *testing.T, username string, role model.Role, status string) *model.Patron {
	t.Helper()
	p, err := store.CreatePatron(context.Background(), f.db, &model.Patron{
		Username: username, PasswordHash: "x", Role: role, Status: status,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) member(t *testing.T, username string) model.Actor {
	t.Helper()
	return memberActor(f.patron(t, username, model.RoleMember, model.PatronStatusActive).ID)
}

func (f *fixture) title(t *testing.T, copies int) *model.Title {
	t.Helper()
	res, err := f.svc.CreateTitle(context.Background(), f.staff, &model.Title{Title: "Dune", TotalCopies: copies})
	require.NoError(t, err)
	return res.Title
}

func (f *fixture) available(t *testing.T, titleID int64) int {
	t.Helper()
	title, err := store.GetTitle(context.Background(), f.db, titleID)
	require.NoError(t, err)
	require.NotNil(t, title)
	return title.AvailableCopies
}

// approved submits a request for the patron and approves it.
func (f *fixture) approved(t *testing.T, patron model.Actor, titleID int64) int64 {
	t.Helper()
	ctx := context.Background()

	res, err := f.svc.SubmitRequest(ctx, patron, titleID, "")
	require.NoError(t, err)
	_, err = f.svc.ReviewRequest(ctx, f.staff, res.Request.ID, DecisionApprove, "")
	require.NoError(t, err)
	return res.Request.ID
}

func eventTypes(events []model.Event) []string {
	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	return types
}

func dayCount(n int) time.Duration {
	return time.Duration(n) * day
}
