// Package jobs holds the background work of the service: closing the week's
// rewards, pruning old rows and backing up the database.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron"

	"github.com/tahcohcat/pizzeria-ops/internal/logger"
	"github.com/tahcohcat/pizzeria-ops/internal/services"
)

const (
	JobWeeklyRewards = "weekly_rewards"
	JobCleanup       = "cleanup"
	JobBackup        = "backup"
)

var (
	ErrUnknownJob       = errors.New("unknown job")
	ErrSchedulerStopped = errors.New("scheduler stopped")
)

// Func is one unit of scheduled work.
type Func func(ctx context.Context) error

// Scheduler runs named jobs on cron schedules and on demand. Every run is
// tagged with a fresh run id in the logs.
type Scheduler struct {
	cron     *cron.Cron
	jobs     map[string]Func
	mu       sync.RWMutex
	ctx      context.Context
	stopping bool
	wg       sync.WaitGroup
	log      *logger.Log
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		jobs: map[string]Func{},
		ctx:  context.Background(),
		log:  logger.New().With("component", "scheduler"),
	}
}

// Register adds a job. spec uses the six-field cron format (seconds first)
// or a descriptor such as "@daily"; an empty spec registers the job for
// manual runs only.
func (s *Scheduler) Register(name, spec string, fn Func) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("job %s already registered", name)
	}

	if spec != "" {
		if _, err := cron.Parse(spec); err != nil {
			return fmt.Errorf("invalid schedule for %s: %w", name, err)
		}
		if err := s.cron.AddFunc(spec, func() { _ = s.run(s.baseContext(), name, fn) }); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", name, err)
		}
	}

	s.jobs[name] = fn
	s.log.Info("job registered", "job", name, "schedule", spec)
	return nil
}

func (s *Scheduler) baseContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx
}

// Start begins firing scheduled jobs with ctx as their parent context.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
}

// Stop stops the cron loop and waits for running jobs to return. Runs
// requested after Stop fail with ErrSchedulerStopped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()

	s.cron.Stop()
	s.wg.Wait()
}

// begin counts a run in wg unless Stop was called. The Add happens under mu
// so it can never race with Stop's Wait.
func (s *Scheduler) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return false
	}
	s.wg.Add(1)
	return true
}

// Names lists registered jobs.
func (s *Scheduler) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunNow runs a job synchronously and returns its run id.
func (s *Scheduler) RunNow(ctx context.Context, name string) (string, error) {
	s.mu.RLock()
	fn, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	runID := uuid.NewString()
	return runID, s.runWithID(ctx, runID, name, fn)
}

func (s *Scheduler) run(ctx context.Context, name string, fn Func) error {
	return s.runWithID(ctx, uuid.NewString(), name, fn)
}

// runWithID runs fn and reports a panic as an error.
func (s *Scheduler) runWithID(ctx context.Context, runID, name string, fn Func) (err error) {
	log := s.log.With("job", name, "run_id", runID)
	if !s.begin() {
		log.Warn("job not started", "reason", ErrSchedulerStopped.Error())
		return fmt.Errorf("%w: %s not started", ErrSchedulerStopped, name)
	}
	defer s.wg.Done()

	log.Info("job started")
	started := time.Now()

	defer func() {
		if p := recover(); p != nil {
			log.Error("job panicked", "panic", p, "duration", time.Since(started))
			err = fmt.Errorf("job %s panicked: %v", name, p)
		}
	}()

	if err = fn(ctx); err != nil {
		log.WithError(err).Error("job failed", "duration", time.Since(started))
		return err
	}
	log.Info("job finished", "duration", time.Since(started))
	return nil
}

// WeeklyRewardsJob aggregates the current week's shifts and then closes it.
func WeeklyRewardsJob(shifts *services.ShiftService, weekly *WeeklyRewards, now func() time.Time) Func {
	return func(ctx context.Context) error {
		week := services.StartOfWeek(now())
		if _, err := shifts.AggregateWeek(ctx, week); err != nil {
			return err
		}
		_, err := weekly.Run(ctx, week)
		return err
	}
}

func CleanupJob(c *Cleanup) Func {
	return func(ctx context.Context) error {
		_, err := c.Run(ctx)
		return err
	}
}

// BackupJob treats an unsupported driver as a skipped run.
func BackupJob(b *Backup) Func {
	return func(ctx context.Context) error {
		_, err := b.Run(ctx)
		if errors.Is(err, ErrBackupUnsupported) {
			b.log.Warn("backup skipped", "reason", err.Error())
			return nil
		}
		return err
	}
}
