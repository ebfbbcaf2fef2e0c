package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// MigrateRiver applies River's own schema.
func MigrateRiver(ctx context.Context, pool *pgxpool.Pool, log logrus.FieldLogger) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("create river migrator: %w", err)
	}
	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return fmt.Errorf("river migrate up: %w", err)
	}
	log.WithField("versions", len(res.Versions)).Info("river migrations applied")
	return nil
}

// NewRiverClient builds a River client that runs the accrual sweep on
// cronSpec. An empty cronSpec registers the worker without a schedule.
func NewRiverClient(pool *pgxpool.Pool, sweeper Sweeper, cronSpec string, log logrus.FieldLogger) (*river.Client[pgx.Tx], error) {
	workers := river.NewWorkers()
	river.AddWorker(workers, NewAccrualSweepWorker(sweeper, log))

	var periodic []*river.PeriodicJob
	if cronSpec != "" {
		schedule, err := cron.ParseStandard(cronSpec)
		if err != nil {
			return nil, fmt.Errorf("parse sweep schedule %q: %w", cronSpec, err)
		}
		periodic = append(periodic, river.NewPeriodicJob(
			schedule,
			func() (river.JobArgs, *river.InsertOpts) {
				return AccrualSweepArgs{}, sweepInsertOpts(schedule, time.Now())
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		))
	}

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 2},
		},
		Workers:      workers,
		PeriodicJobs: periodic,
	})
	if err != nil {
		return nil, fmt.Errorf("create river client: %w", err)
	}
	return client, nil
}

// sweepInsertOpts makes a sweep unique within one schedule interval.
func sweepInsertOpts(schedule cron.Schedule, now time.Time) *river.InsertOpts {
	opts := AccrualSweepArgs{}.InsertOpts()
	if period := sweepInterval(schedule, now); period > 0 {
		opts.UniqueOpts = river.UniqueOpts{ByPeriod: period}
	}
	return &opts
}

// sweepInterval is the gap between the next two runs of schedule after now.
func sweepInterval(schedule cron.Schedule, now time.Time) time.Duration {
	next := schedule.Next(now)
	if next.IsZero() {
		return 0
	}
	after := schedule.Next(next)
	if after.IsZero() {
		return 0
	}
	return after.Sub(next)
}
