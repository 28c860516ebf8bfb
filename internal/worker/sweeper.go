// Package worker runs periodic background jobs for the server.
package worker

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/erazemk/knjiznica/internal/circulation"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// Sweeper periodically flags overdue loans, assesses their running fines,
// and clears expired entries from the token revocation list.
type Sweeper struct {
	svc      *circulation.Service
	db       *sql.DB
	interval time.Duration
	log      *slog.Logger
	now      func() time.Time
}

// NewSweeper creates a Sweeper. A nil logger uses slog.Default.
func NewSweeper(svc *circulation.Service, database *sql.DB, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		svc:      svc,
		db:       database,
		interval: interval,
		log:      logger,
		now:      time.Now,
	}
}

// Run sweeps once immediately and then on every tick until ctx is done.
// A non-positive interval disables the sweeper.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.log.Info("overdue sweep disabled")
		return
	}

	s.log.Info("overdue sweep started", "interval", s.interval)
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("overdue sweep stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	if _, err := s.Once(ctx); err != nil && ctx.Err() == nil {
		s.log.Error("overdue sweep failed", "error", err)
	}
}

// Once runs a single sweep as the system actor.
func (s *Sweeper) Once(ctx context.Context) (*circulation.SweepResult, error) {
	res, err := s.svc.SweepOverdue(ctx, model.SystemActor)
	if err != nil {
		return nil, fmt.Errorf("sweeping overdue loans: %w", err)
	}
	if res.Flipped > 0 || res.FinesAssessed > 0 {
		s.log.Info("overdue sweep", "flipped", res.Flipped, "fines_assessed", res.FinesAssessed)
	}

	purged, err := store.PurgeRevokedTokens(ctx, s.db, s.now())
	if err != nil {
		return res, err
	}
	if purged > 0 {
		s.log.Debug("purged revoked tokens", "count", purged)
	}
	return res, nil
}
