// Package cron provides a periodic job scheduler as a singleton provider.
//
// Jobs run under a lease so that two schedulers sharing a leaser never run
// the same job concurrently.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/alecthomas/errors"

	"github.com/alecthomas/providence"
	"github.com/alecthomas/providence/providers/leases"
	"github.com/alecthomas/providence/providers/logging"
)

// Job is a scheduled callback.
type Job func(ctx context.Context) error

// Schedule is a registered job and its cadence.
type Schedule struct {
	name    string
	lastRun time.Time
	period  time.Duration
	run     Job
}

// NextRun returns the next time the job should run.
func (s *Schedule) NextRun() time.Time {
	return nextRun(s.period, s.lastRun)
}

func (s *Schedule) String() string {
	return fmt.Sprintf("Schedule(%q, nextRun=%s)", s.name, time.Until(s.NextRun()))
}

// Provider is the scheduler singleton. It requires the logging and leases
// providers, which therefore always initialize first.
var Provider *providence.Provider

var scheduler *providence.Field[*Scheduler]

func init() {
	Provider = providence.MustDeclare("cron",
		providence.Requires(logging.Provider, leases.Provider),
		providence.Init(initialize),
	)
	scheduler = providence.NewField[*Scheduler](Provider, "scheduler")
}

func initialize(ctx context.Context) error {
	logger, err := logging.Logger(ctx)
	if err != nil {
		return err
	}
	s := newScheduler(logger, leases.Acquire, time.Now)
	go s.run()
	return scheduler.Set(ctx, s)
}

// Register a new cron job with the process-wide scheduler, initializing it
// on first use.
func Register(ctx context.Context, name string, period time.Duration, job Job) error {
	s, err := scheduler.Get(ctx)
	if err != nil {
		return err
	}
	return s.Register(name, period, job)
}

type acquireFunc func(ctx context.Context, key string, timeout time.Duration) (leases.Release, error)

// Scheduler runs registered jobs on period boundaries.
type Scheduler struct {
	lock      sync.Mutex
	logger    *slog.Logger
	acquire   acquireFunc
	now       func() time.Time
	schedules []*Schedule
	stop      chan struct{}
}

func newScheduler(logger *slog.Logger, acquire acquireFunc, now func() time.Time) *Scheduler {
	return &Scheduler{
		logger:  logger,
		acquire: acquire,
		now:     now,
		stop:    make(chan struct{}),
	}
}

// Register a new cron job.
func (s *Scheduler) Register(name string, period time.Duration, job Job) error {
	if period < 5*time.Second {
		return errors.New("schedule period must be at least 5 seconds")
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	schedule := &Schedule{name: name, period: period, run: job, lastRun: s.now()}
	s.schedules = append(s.schedules, schedule)
	s.logger.Debug("Scheduled new cron job", "job", schedule.name)
	s.sortSchedulesNoLock()
	return nil
}

// Stop the scheduler's background loop. Test harnesses only.
func (s *Scheduler) Stop() {
	close(s.stop)
}

func (s *Scheduler) run() {
	ticker := time.NewTicker(time.Millisecond * 100)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}
		s.runPending(context.Background(), s.now())
	}
}

// runPending runs every schedule that is due at now.
func (s *Scheduler) runPending(ctx context.Context, now time.Time) {
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, schedule := range s.schedules {
		if !schedule.NextRun().Before(now) {
			continue
		}
		release, err := s.acquire(ctx, "cron/"+schedule.name, schedule.period/2)
		if err != nil {
			s.logger.Error("Failed to acquire lease for cron job", "job", schedule.name, "error", err)
			continue
		}
		schedule.lastRun = now
		if err := schedule.run(ctx); err != nil {
			s.logger.Error("Cron job failed", "job", schedule.name, "error", err)
		}
		if err := release(ctx); err != nil {
			s.logger.Error("Failed to release lease for cron job", "job", schedule.name, "error", err)
		}
	}
	s.sortSchedulesNoLock()
}

func (s *Scheduler) sortSchedulesNoLock() {
	slices.SortFunc(s.schedules, func(a, b *Schedule) int { return a.NextRun().Compare(b.NextRun()) })
}

// nextRun floors lastRun to the nearest period boundary and advances one
// period.
//
// eg. If period=5m, and lastRun=5:01 it will return 5:05.
func nextRun(period time.Duration, lastRun time.Time) time.Time {
	lastBoundary := time.Duration(lastRun.UnixNano()) / period * period
	return time.Unix(0, (lastBoundary + period).Nanoseconds()).UTC()
}
