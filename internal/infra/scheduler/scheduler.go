package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ticket_dispatcher/internal/app"
	"ticket_dispatcher/internal/infra/logger"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Reporter publishes the periodic statistics summary.
type Reporter interface {
	Report(ctx context.Context) error
}

// TicketScheduler drives the poll loop and the stats report on fixed intervals.
type TicketScheduler struct {
	cronEngine    *cron.Cron
	poller        app.Poller
	reporter      Reporter
	logger        *logrus.Entry
	pollInterval  time.Duration
	statsInterval time.Duration
	cycleTimeout  time.Duration

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewTicketScheduler(
	poller app.Poller,
	reporter Reporter,
	log *logrus.Entry,
	pollInterval time.Duration, // e.g. 10s
	statsInterval time.Duration, // e.g. 5m
	cycleTimeout time.Duration, // upper bound for one poll cycle
) *TicketScheduler {
	cronLogger := cron.PrintfLogger(logger.Log)
	return &TicketScheduler{
		cronEngine: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger)),
		),
		poller:        poller,
		reporter:      reporter,
		logger:        log,
		pollInterval:  pollInterval,
		statsInterval: statsInterval,
		cycleTimeout:  cycleTimeout,
	}
}

// Start schedules both jobs and runs the first poll right away.
func (s *TicketScheduler) Start(ctx context.Context) error {
	s.logger.Info("Starting ticket scheduler...")
	s.baseCtx, s.cancel = context.WithCancel(ctx)

	pollJob := cron.NewChain(cron.SkipIfStillRunning(cron.PrintfLogger(logger.Log))).Then(cron.FuncJob(s.poll))
	if _, err := s.cronEngine.AddJob(everySpec(s.pollInterval), pollJob); err != nil {
		return fmt.Errorf("could not add poll job: %w", err)
	}

	if s.reporter != nil {
		if _, err := s.cronEngine.AddFunc(everySpec(s.statsInterval), s.report); err != nil {
			return fmt.Errorf("could not add stats job: %w", err)
		}
	}

	s.cronEngine.Start()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		pollJob.Run()
	}()

	s.logger.WithFields(logrus.Fields{
		"poll_interval":  s.pollInterval.String(),
		"stats_interval": s.statsInterval.String(),
	}).Info("Ticket scheduler started with jobs.")
	return nil
}

func (s *TicketScheduler) poll() {
	ctx, cancel := context.WithTimeout(s.baseCtx, s.cycleTimeout)
	defer cancel()

	res, err := s.poller.RunCycle(ctx)
	switch {
	case errors.Is(err, app.ErrCycleInProgress):
		s.logger.Debug("Poll skipped: previous cycle still running")
	case err != nil:
		s.logger.WithError(err).Warn("Poll cycle ended with error")
	case res != nil && (res.Sent > 0 || res.Failed > 0):
		s.logger.WithFields(logrus.Fields{
			"cursor": res.Cursor,
			"sent":   res.Sent,
			"failed": res.Failed,
		}).Info("Poll cycle completed")
	}
}

func (s *TicketScheduler) report() {
	ctx, cancel := context.WithTimeout(s.baseCtx, time.Minute)
	defer cancel()
	if err := s.reporter.Report(ctx); err != nil {
		s.logger.WithError(err).Error("Error during stats report")
	}
}

// Stop cancels in-flight work at the next row boundary and waits for it.
func (s *TicketScheduler) Stop() {
	s.logger.Info("Stopping ticket scheduler...")
	if s.cancel != nil {
		s.cancel()
	}
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()
	s.wg.Wait()
	s.logger.Info("Ticket scheduler gracefully stopped.")
}

func everySpec(d time.Duration) string {
	return "@every " + d.String()
}
