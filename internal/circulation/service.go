// Package circulation implements the request, reservation, loan and fine
// workflows on top of the inventory ledger. Every transition runs in a
// single transaction and returns the domain events it emitted.
package circulation

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/fines"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

// IDGen generates public loan references for loans issued at the given time.
type IDGen interface {
	New(at time.Time) (string, error)
}

type ulidGen struct{}

func (ulidGen) New(at time.Time) (string, error) {
	id, err := ulid.New(ulid.Timestamp(at), ulid.Monotonic(rand.Reader, 0))
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Policy holds the circulation parameters supplied by configuration.
type Policy struct {
	LoanPeriod time.Duration
	FinePerDay model.Money
}

// DefaultPolicy is a 14-day loan with no fine.
var DefaultPolicy = Policy{LoanPeriod: 14 * 24 * time.Hour}

// Service runs circulation transitions against the database.
type Service struct {
	db        *sql.DB
	policy    Policy
	clock     Clock
	ids       IDGen
	log       *slog.Logger
	formatter *fines.Formatter
	retry     []RetryOption
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithIDGen replaces the loan reference generator.
func WithIDGen(g IDGen) Option {
	return func(s *Service) { s.ids = g }
}

// WithLogger sets the logger used for audit lines and warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithFormatter renders fine amounts in log lines with a currency symbol.
func WithFormatter(f *fines.Formatter) Option {
	return func(s *Service) { s.formatter = f }
}

// WithRetry tunes the version-conflict retry loop.
func WithRetry(opts ...RetryOption) Option {
	return func(s *Service) { s.retry = opts }
}

// New creates a Service. A zero loan period falls back to DefaultPolicy's.
func New(database *sql.DB, policy Policy, opts ...Option) *Service {
	if policy.LoanPeriod <= 0 {
		policy.LoanPeriod = DefaultPolicy.LoanPeriod
	}
	s := &Service{
		db:     database,
		policy: policy,
		clock:  realClock{},
		ids:    ulidGen{},
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the parameters the service was configured with.
func (s *Service) Policy() Policy {
	return s.policy
}

// Result carries the entities touched by a transition and the events it
// emitted. Warnings are non-fatal conditions, such as an over-return.
type Result struct {
	Request     *model.CirculationRequest `json:"request,omitempty"`
	Reservation *model.Reservation        `json:"reservation,omitempty"`
	Loan        *model.Loan               `json:"loan,omitempty"`
	Fine        *model.Fine               `json:"fine,omitempty"`
	Title       *model.Title              `json:"title,omitempty"`
	Patron      *model.Patron             `json:"patron,omitempty"`
	Review      *model.Review             `json:"review,omitempty"`
	Events      []model.Event             `json:"events"`
	Warnings    []string                  `json:"warnings,omitempty"`
}

func (r *Result) emit(typ, aggregate string, id int64, actor model.Actor, at time.Time, payload map[string]any) {
	r.Events = append(r.Events, model.Event{
		Type:        typ,
		Aggregate:   aggregate,
		AggregateID: id,
		ActorID:     actor.ID,
		Payload:     payload,
		OccurredAt:  at,
	})
}

// mutate runs fn in a transaction, appends the events it emitted to the
// outbox, and retries the whole attempt on a ledger version conflict. The
// actor is checked against its stored patron row first and its role is
// replaced with the stored one, so fn sees the current role.
func (s *Service) mutate(ctx context.Context, actor *model.Actor, required model.Role, fn func(tx *sql.Tx, now time.Time, res *Result) error) (*Result, error) {
	var res *Result
	err := retryOnConflict(ctx, func(ctx context.Context) error {
		res = &Result{Events: []model.Event{}}
		now := s.clock.Now().UTC()
		return db.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
			if err := checkActor(ctx, tx, actor, required); err != nil {
				return err
			}
			if err := fn(tx, now, res); err != nil {
				return err
			}
			return store.AppendEvents(ctx, tx, res.Events)
		})
	}, s.retry...)
	if err != nil {
		return nil, err
	}

	for _, w := range res.Warnings {
		s.log.Warn("circulation warning", "warning", w)
	}
	return res, nil
}

func (s *Service) money(m model.Money) string {
	if s.formatter == nil {
		return m.String()
	}
	return s.formatter.Format(m)
}

func authorize(actor model.Actor, required model.Role) error {
	if !model.HasPermission(actor.Role, required) {
		return fmt.Errorf("%w: role %q below %q", ErrPermissionDenied, actor.Role, required)
	}
	return nil
}

// checkActor verifies that the acting patron still exists, is active and
// holds the required role. Tokens outlive status and role changes.
func checkActor(ctx context.Context, q db.DBTX, actor *model.Actor, required model.Role) error {
	if *actor == model.SystemActor {
		return nil
	}
	p, err := store.GetPatron(ctx, q, actor.ID)
	if err != nil {
		return err
	}
	if p == nil || p.DeletedAt != nil {
		return fmt.Errorf("%w: patron %d no longer exists", ErrPermissionDenied, actor.ID)
	}
	if p.Status != model.PatronStatusActive {
		return fmt.Errorf("%w: acting patron %d is %s", ErrInvalidState, actor.ID, p.Status)
	}
	actor.Role = p.Role
	return authorize(*actor, required)
}

// activePatron loads a patron that may borrow.
func activePatron(ctx context.Context, q db.DBTX, id int64) (*model.Patron, error) {
	p, err := store.GetPatron(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if p == nil || p.DeletedAt != nil {
		return nil, fmt.Errorf("%w: patron %d", ErrNotFound, id)
	}
	if p.Status != model.PatronStatusActive {
		return nil, fmt.Errorf("%w: patron %d is %s", ErrInvalidState, id, p.Status)
	}
	return p, nil
}

// liveTitle loads a title that has not been removed from the catalog.
func liveTitle(ctx context.Context, q db.DBTX, id int64) (*model.Title, error) {
	t, err := store.GetTitle(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if t == nil || t.DeletedAt != nil {
		return nil, fmt.Errorf("%w: title %d", ErrNotFound, id)
	}
	return t, nil
}

// issue takes a copy off the shelf and records the loan.
func (s *Service) issue(ctx context.Context, tx *sql.Tx, now time.Time, actor model.Actor, title *model.Title, loan *model.Loan, period time.Duration, res *Result) error {
	if err := store.DecrementAvailable(ctx, tx, title); err != nil {
		return fmt.Errorf("title %d: %w", title.ID, err)
	}

	ref, err := s.ids.New(now)
	if err != nil {
		return fmt.Errorf("generating loan ref: %w", err)
	}
	loan.Ref = ref
	loan.TitleID = title.ID
	loan.IssuedBy = actor.ID
	loan.IssuedAt = now
	loan.DueAt = now.Add(period)
	loan.Status = model.LoanStatusIssued
	if err := store.InsertLoan(ctx, tx, loan); err != nil {
		return err
	}

	res.Loan = loan
	res.Title = title
	res.emit(model.EventLoanIssued, model.AggregateLoan, loan.ID, actor, now, map[string]any{
		"ref":       loan.Ref,
		"title_id":  loan.TitleID,
		"patron_id": loan.PatronID,
		"due_at":    loan.DueAt,
	})
	return nil
}

// settleFine brings the loan's unpaid fine in line with the amount owed at
// the given settlement time. Paid fines are left as they are. It reports
// whether the stored fine changed.
func (s *Service) settleFine(ctx context.Context, tx *sql.Tx, actor model.Actor, loan *model.Loan, settlement time.Time, res *Result) (bool, error) {
	amount := fines.Assess(loan.DueAt, settlement, s.policy.FinePerDay)

	fine, err := store.GetFineByLoan(ctx, tx, loan.ID)
	if err != nil {
		return false, err
	}

	switch {
	case fine == nil && amount == 0:
		return false, nil
	case fine == nil:
		if fine, err = store.InsertFine(ctx, tx, loan.ID, amount, settlement); err != nil {
			return false, err
		}
	case fine.PaidStatus == model.FinePaid || fine.Amount == amount:
		res.Fine = fine
		return false, nil
	default:
		if _, err := store.UpdateFineAmount(ctx, tx, fine.ID, amount, settlement); err != nil {
			return false, err
		}
		fine.Amount = amount
		fine.AssessedAt = settlement
	}

	res.Fine = fine
	res.emit(model.EventFineAssessed, model.AggregateFine, fine.ID, actor, settlement, map[string]any{
		"loan_id":      loan.ID,
		"patron_id":    loan.PatronID,
		"amount":       fine.Amount.String(),
		"days_overdue": fines.DaysOverdue(loan.DueAt, settlement),
	})
	s.log.Info("fine assessed", "loan", loan.Ref, "amount", s.money(fine.Amount))
	return true, nil
}
