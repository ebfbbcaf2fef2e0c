package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler runs the accrual sweep in-process. It is used when there is no
// database for River to queue on.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	log     logrus.FieldLogger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewScheduler(sweeper Sweeper, spec string, log logrus.FieldLogger) (*Scheduler, error) {
	log = log.WithField("component", "accrual_sweep")
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.PrintfLogger(log)),
			cron.SkipIfStillRunning(cron.PrintfLogger(log)),
		)),
		sweeper: sweeper,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
	if _, err := s.cron.AddFunc(spec, s.RunOnce); err != nil {
		cancel()
		return nil, fmt.Errorf("parse sweep schedule %q: %w", spec, err)
	}
	return s, nil
}

// RunOnce performs one sweep. Errors are logged.
func (s *Scheduler) RunOnce() {
	_ = runSweep(s.ctx, s.sweeper, s.log)
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop cancels a running sweep and waits for it to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}
