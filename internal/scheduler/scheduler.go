// Package scheduler repeats post cycles on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job represents a scheduled task
type Job func(ctx context.Context) error

// DefaultJobTimeout bounds one job run.
const DefaultJobTimeout = 30 * time.Minute

// Scheduler manages periodic tasks. Runs of the same job never overlap.
type Scheduler struct {
	mu         sync.Mutex
	cron       *cron.Cron
	jobs       map[string]cron.EntryID
	timezone   *time.Location
	jobTimeout time.Duration
	parent     context.Context
	log        *zap.Logger
}

// New creates a new scheduler with the given timezone. Jobs run under ctx, so cancelling
// it cancels running jobs.
func New(ctx context.Context, timezone string, logger *zap.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", timezone, err)
	}

	log := logger.Named("scheduler")
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log})),
	)

	return &Scheduler{
		cron:       c,
		jobs:       make(map[string]cron.EntryID),
		timezone:   loc,
		jobTimeout: DefaultJobTimeout,
		parent:     ctx,
		log:        log,
	}, nil
}

// SetJobTimeout changes the per-run timeout for jobs added afterwards.
func (s *Scheduler) SetJobTimeout(d time.Duration) {
	if d > 0 {
		s.jobTimeout = d
	}
}

// AddJob adds a job with a cron schedule
// schedule format: "0 */3 * * *" (every three hours)
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	timeout := s.jobTimeout
	entryID, err := s.cron.AddFunc(schedule, func() {
		if err := s.run(name, timeout, job); err != nil {
			s.log.Error("Job failed", zap.String("job", name), zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.mu.Lock()
	s.jobs[name] = entryID
	s.mu.Unlock()
	s.log.Info("Added job", zap.String("job", name), zap.String("schedule", schedule))

	return nil
}

// AddDailyJob adds a job at a specific time of day
// timeStr format: "07:00" or "18:00"
func (s *Scheduler) AddDailyJob(name, timeStr string, job Job) error {
	t, err := time.Parse("15:04", timeStr)
	if err != nil {
		return fmt.Errorf("invalid time format %s: %w", timeStr, err)
	}

	schedule := fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour())
	return s.AddJob(name, schedule, job)
}

func (s *Scheduler) run(name string, timeout time.Duration, job Job) error {
	if err := s.parent.Err(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(s.parent, timeout)
	defer cancel()

	s.log.Info("Starting job", zap.String("job", name))
	start := time.Now()
	if err := job(ctx); err != nil {
		return err
	}
	s.log.Info("Job completed", zap.String("job", name), zap.Duration("took", time.Since(start)))
	return nil
}

// Start begins running scheduled jobs
func (s *Scheduler) Start() {
	s.log.Info("Starting scheduler", zap.String("timezone", s.timezone.String()))
	s.cron.Start()
}

// Stop halts the scheduler. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	s.log.Info("Stopping scheduler")
	return s.cron.Stop()
}

// RunNow immediately executes a job outside the schedule
func (s *Scheduler) RunNow(name string, job Job) error {
	return s.run(name, s.jobTimeout, job)
}

// ListJobs returns info about scheduled jobs
func (s *Scheduler) ListJobs() []JobInfo {
	entries := s.cron.Entries()
	s.mu.Lock()
	defer s.mu.Unlock()
	infos := make([]JobInfo, 0, len(entries))

	for name, entryID := range s.jobs {
		for _, entry := range entries {
			if entry.ID == entryID {
				infos = append(infos, JobInfo{
					Name:    name,
					NextRun: entry.Next,
					LastRun: entry.Prev,
				})
				break
			}
		}
	}

	return infos
}

// JobInfo contains information about a scheduled job
type JobInfo struct {
	Name    string
	NextRun time.Time
	LastRun time.Time
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
