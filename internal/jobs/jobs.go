// Package jobs runs periodic maintenance on a cron schedule: the category
// reconcile sweep and the purge of expired idempotency records. An empty
// schedule disables the corresponding job.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/leadops-backend/internal/repo"
)

// Reconciler is satisfied by services.CategoryService.
type Reconciler interface {
	ReconcileBestEffort(ctx context.Context)
}

// Schedules holds cron expressions (standard 5-field or descriptors such as
// "@hourly").
type Schedules struct {
	Reconcile        string
	IdempotencyPurge string
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron   *cron.Cron
	db     *gorm.DB
	rec    Reconciler
	logger zerolog.Logger
	now    func() time.Time
}

// New registers the enabled jobs. It fails on an invalid expression.
func New(ctx context.Context, sch Schedules, db *gorm.DB, rec Reconciler) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(),
		db:     db,
		rec:    rec,
		logger: log.With().Str("component", "jobs").Logger(),
		now:    time.Now,
	}
	jobCtx := s.logger.WithContext(ctx)

	if sch.Reconcile != "" && rec != nil {
		if _, err := s.cron.AddFunc(sch.Reconcile, func() { s.reconcile(jobCtx) }); err != nil {
			return nil, fmt.Errorf("invalid RECONCILE_CRON: %w", err)
		}
	}
	if sch.IdempotencyPurge != "" && db != nil {
		if _, err := s.cron.AddFunc(sch.IdempotencyPurge, func() { s.purgeIdempotency(jobCtx) }); err != nil {
			return nil, fmt.Errorf("invalid IDEMPOTENCY_PURGE_CRON: %w", err)
		}
	}
	return s, nil
}

// Len returns the number of registered jobs.
func (s *Scheduler) Len() int { return len(s.cron.Entries()) }

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	if s.Len() == 0 {
		return
	}
	s.cron.Start()
	s.logger.Info().Int("jobs", s.Len()).Msg("scheduler started")
}

// Stop halts scheduling and waits for running jobs or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) reconcile(ctx context.Context) {
	s.rec.ReconcileBestEffort(ctx)
}

func (s *Scheduler) purgeIdempotency(ctx context.Context) {
	n, err := repo.PurgeExpiredIdempotency(ctx, s.db, s.now().UTC())
	if err != nil {
		s.logger.Error().Err(err).Msg("idempotency purge failed")
		return
	}
	if n > 0 {
		s.logger.Info().Int64("deleted", n).Msg("expired idempotency keys purged")
	}
}
