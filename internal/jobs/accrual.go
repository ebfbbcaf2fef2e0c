// Package jobs runs the periodic accrual sweep, on River when the service is
// backed by PostgreSQL and on an in-process cron otherwise.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"github.com/sirupsen/logrus"
)

// Sweeper is the ledger operation the sweep drives.
type Sweeper interface {
	AccrueAll(ctx context.Context) (int, error)
}

type AccrualSweepArgs struct{}

func (AccrualSweepArgs) Kind() string { return "accrual_sweep" }

func (AccrualSweepArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: 3}
}

type AccrualSweepWorker struct {
	river.WorkerDefaults[AccrualSweepArgs]
	sweeper Sweeper
	log     logrus.FieldLogger
}

func NewAccrualSweepWorker(s Sweeper, log logrus.FieldLogger) *AccrualSweepWorker {
	return &AccrualSweepWorker{sweeper: s, log: log.WithField("component", "accrual_sweep")}
}

// Timeout bounds one sweep.
func (w *AccrualSweepWorker) Timeout(*river.Job[AccrualSweepArgs]) time.Duration {
	return 10 * time.Minute
}

// Work runs one sweep. A per-account failure is returned so River records
// and retries the job; accounts already paid are no-ops on retry.
func (w *AccrualSweepWorker) Work(ctx context.Context, _ *river.Job[AccrualSweepArgs]) error {
	return runSweep(ctx, w.sweeper, w.log)
}

func runSweep(ctx context.Context, s Sweeper, log logrus.FieldLogger) error {
	start := time.Now()
	paid, err := s.AccrueAll(ctx)
	entry := log.WithFields(logrus.Fields{
		"accounts_paid": paid,
		"duration":      time.Since(start).String(),
	})
	if err != nil {
		entry.WithError(err).Error("accrual sweep finished with errors")
		return fmt.Errorf("accrual sweep: %w", err)
	}
	entry.Info("accrual sweep finished")
	return nil
}
