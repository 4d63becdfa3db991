package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	ferrors "git.home.luguber.info/inful/sorrydb-sync/internal/foundation/errors"
	"git.home.luguber.info/inful/sorrydb-sync/internal/logfields"
	"git.home.luguber.info/inful/sorrydb-sync/internal/services"
)

// Scheduler wraps gocron. Every job runs in singleton mode: a tick that
// arrives while the previous run is still going is skipped and rescheduled.
type Scheduler struct {
	scheduler gocron.Scheduler

	mu      sync.Mutex
	tasks   map[uuid.UUID]func()
	running bool
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(opts ...gocron.SchedulerOption) (*Scheduler, error) {
	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryDaemon, "failed to create gocron scheduler").Fatal().Build()
	}
	return &Scheduler{scheduler: s, tasks: make(map[uuid.UUID]func())}, nil
}

// Name implements services.ManagedService.
func (s *Scheduler) Name() string { return "scheduler" }

// Dependencies implements services.ManagedService.
func (s *Scheduler) Dependencies() []string { return nil }

// Start begins the scheduler.
func (s *Scheduler) Start(_ context.Context) error {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	return nil
}

// Stop shuts the scheduler down, waiting for running jobs to return.
func (s *Scheduler) Stop(_ context.Context) error {
	slog.Info("Stopping scheduler")
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return s.scheduler.Shutdown()
}

// Health implements services.ManagedService.
func (s *Scheduler) Health() services.HealthStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return services.Healthy()
	}
	return services.Unhealthy("scheduler not running")
}

func jobOptions(name string) []gocron.JobOption {
	return []gocron.JobOption{
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
}

// ScheduleCron schedules task on a five-field cron expression and returns the job ID.
func (s *Scheduler) ScheduleCron(name, expr string, task func()) (string, error) {
	return s.schedule(name, gocron.CronJob(expr, false), task, logfields.Schedule(expr))
}

func (s *Scheduler) schedule(name string, def gocron.JobDefinition, task func(), attr slog.Attr) (string, error) {
	job, err := s.scheduler.NewJob(def, gocron.NewTask(task), jobOptions(name)...)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryDaemon, "failed to schedule job").
			Fatal().
			WithContext("job", name).
			Build()
	}

	s.mu.Lock()
	s.tasks[job.ID()] = task
	s.mu.Unlock()

	slog.Info("Scheduled job", slog.String("job", name), logfields.JobID(job.ID().String()), attr)
	return job.ID().String(), nil
}

// Reschedule moves an existing job to a new cron expression, keeping its ID and task.
func (s *Scheduler) Reschedule(jobID, expr string) error {
	id, job, err := s.lookup(jobID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	task := s.tasks[id]
	s.mu.Unlock()

	if _, err := s.scheduler.Update(id, gocron.CronJob(expr, false), gocron.NewTask(task), jobOptions(job.Name())...); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryDaemon, "failed to reschedule job").
			WithContext("job", job.Name()).
			WithContext("schedule", expr).
			Build()
	}
	slog.Info("Rescheduled job", logfields.JobID(jobID), logfields.Schedule(expr))
	return nil
}

// RunNow triggers the job immediately without moving its schedule.
func (s *Scheduler) RunNow(jobID string) error {
	_, job, err := s.lookup(jobID)
	if err != nil {
		return err
	}
	if err := job.RunNow(); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryDaemon, "failed to trigger job").Build()
	}
	return nil
}

// NextRun returns when the job fires next.
func (s *Scheduler) NextRun(jobID string) (time.Time, error) {
	_, job, err := s.lookup(jobID)
	if err != nil {
		return time.Time{}, err
	}
	return job.NextRun()
}

func (s *Scheduler) lookup(jobID string) (uuid.UUID, gocron.Job, error) {
	id, err := uuid.Parse(jobID)
	if err != nil {
		return uuid.Nil, nil, ferrors.WrapError(err, ferrors.CategoryValidation, "invalid job id").Build()
	}
	for _, job := range s.scheduler.Jobs() {
		if job.ID() == id {
			return id, job, nil
		}
	}
	return uuid.Nil, nil, ferrors.DaemonError("job not found").WithContext("job_id", jobID).Build()
}
