// Package workers runs the periodic jobs of the ledger: finalizing expired
// rounds and shipping snapshots.
package workers

import (
	"context"
	"fmt"
	"time"

	"lottery-ledger/internal/backup"
	"lottery-ledger/internal/models"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/logger"
)

// Finalizer closes every expired round it can find.
type Finalizer interface {
	FinalizeExpired(ctx context.Context) ([]*models.Round, error)
}

// SnapshotUploader ships one snapshot of src.
type SnapshotUploader interface {
	Upload(ctx context.Context, src backup.Snapshotter, now time.Time) (string, error)
}

// Scheduler wraps a gocron scheduler with the ledger jobs.
type Scheduler struct {
	sched gocron.Scheduler
}

func NewScheduler() (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{sched: sched}, nil
}

// AddFinalizer runs f every interval. A run still in progress makes the
// next one wait rather than overlap.
func (s *Scheduler) AddFinalizer(ctx context.Context, f Finalizer, interval time.Duration) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { FinalizeOnce(ctx, f) }),
		gocron.WithName("finalize-expired-rounds"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("schedule finalizer: %w", err)
	}
	return nil
}

// AddSnapshots uploads a snapshot of src every interval.
func (s *Scheduler) AddSnapshots(ctx context.Context, u SnapshotUploader, src backup.Snapshotter, interval time.Duration) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if _, err := u.Upload(ctx, src, time.Now()); err != nil {
				logger.Errorf("[Scheduler] Snapshot upload failed: %v", err)
			}
		}),
		gocron.WithName("ledger-snapshot"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule snapshots: %w", err)
	}
	return nil
}

func (s *Scheduler) Start() { s.sched.Start() }

// Shutdown stops the scheduler and waits for running jobs.
func (s *Scheduler) Shutdown() error { return s.sched.Shutdown() }

// FinalizeOnce runs one finalizer pass and logs the outcome.
func FinalizeOnce(ctx context.Context, f Finalizer) int {
	if ctx.Err() != nil {
		return 0
	}
	rounds, err := f.FinalizeExpired(ctx)
	if err != nil {
		logger.Errorf("[Scheduler] Finalize pass failed: %v", err)
	}
	for _, r := range rounds {
		logger.Infof("[Scheduler] Round %d is now %s", r.Number, r.Status)
	}
	return len(rounds)
}
