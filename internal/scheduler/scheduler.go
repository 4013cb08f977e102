// Package scheduler drives periodic jobs on top of robfig/cron.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/ibeckermayer/replyscout/internal/logger"
)

// Job represents a scheduled task
type Job func(ctx context.Context) error

// Scheduler manages periodic tasks
type Scheduler struct {
	cron     *cron.Cron
	jobs     map[string]cron.EntryID
	timezone *time.Location
	log      zerolog.Logger
}

// New creates a new scheduler with the given timezone. A job that is
// still running when its next activation arrives is skipped.
func New(timezone string, log zerolog.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %s: %w", timezone, err)
	}

	log = log.With().Str("component", "scheduler").Logger()
	cl := logger.CronLogger{Log: log}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	return &Scheduler{
		cron:     c,
		jobs:     make(map[string]cron.EntryID),
		timezone: loc,
		log:      log,
	}, nil
}

// AddJob adds a job with a cron schedule. Each run gets a context that
// expires after deadline.
// schedule format: "0 7 * * *" (at 7:00 AM daily) or "@every 1m"
func (s *Scheduler) AddJob(name, schedule string, deadline time.Duration, job Job) error {
	entryID, err := s.cron.AddFunc(schedule, func() {
		s.run(name, deadline, job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.jobs[name] = entryID
	s.log.Info().Str("job", name).Str("schedule", schedule).Msg("added job")
	return nil
}

// AddTickJob adds the scan tick, fired every interval.
func (s *Scheduler) AddTickJob(interval, deadline time.Duration, job Job) error {
	if interval < time.Second {
		return fmt.Errorf("tick interval must be at least 1s, got %s", interval)
	}
	return s.AddJob("tick", fmt.Sprintf("@every %s", interval), deadline, job)
}

func (s *Scheduler) run(name string, deadline time.Duration, job Job) error {
	ctx := context.Background()
	if deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	s.log.Debug().Str("job", name).Msg("starting job")
	start := time.Now()

	err := job(ctx)
	if err != nil {
		s.log.Error().Err(err).Str("job", name).Msg("job failed")
	} else {
		s.log.Debug().Str("job", name).Dur("took", time.Since(start)).Msg("job completed")
	}
	return err
}

// RemoveJob removes a scheduled job
func (s *Scheduler) RemoveJob(name string) {
	if entryID, ok := s.jobs[name]; ok {
		s.cron.Remove(entryID)
		delete(s.jobs, name)
		s.log.Info().Str("job", name).Msg("removed job")
	}
}

// Start begins running scheduled jobs
func (s *Scheduler) Start() {
	s.log.Info().Str("timezone", s.timezone.String()).Msg("starting scheduler")
	s.cron.Start()
}

// Stop halts the scheduler. The returned context is done once running
// jobs have finished.
func (s *Scheduler) Stop() context.Context {
	s.log.Info().Msg("stopping scheduler")
	return s.cron.Stop()
}

// RunNow immediately executes a job with the same deadline handling as
// scheduled runs.
func (s *Scheduler) RunNow(name string, deadline time.Duration, job Job) error {
	return s.run(name, deadline, job)
}

// ListJobs returns info about scheduled jobs
func (s *Scheduler) ListJobs() []JobInfo {
	entries := s.cron.Entries()
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
