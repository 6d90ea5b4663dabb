package backup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rmuseum/naskban-go/internal/events"
	"github.com/rmuseum/naskban-go/internal/jobqueue"
	"github.com/rmuseum/naskban-go/internal/logger"
	"github.com/rmuseum/naskban-go/internal/notification"
)

const (
	backupJobName = "BackupEntityStore"
	backupJobStep = "Snapshot database"
)

// Submitter runs work in the background
type Submitter interface {
	Submit(name string, action jobqueue.Action) error
}

// JobTracker records long-running job progress
type JobTracker interface {
	NewJob(ctx context.Context, name, step string) (uuid.UUID, error)
	UpdateJob(ctx context.Context, id uuid.UUID, progress float64, step string, succeeded bool, errText string) error
}

// Job runs backups on the background queue and records them as
// long-running jobs.
type Job struct {
	manager  *Manager
	queue    Submitter
	tracker  JobTracker
	notifier notification.Notifier
	events   events.Publisher
	log      logger.Logger
}

// NewJob creates a Job. Nil notifier and publisher disable notifications
// and events.
func NewJob(manager *Manager, queue Submitter, tracker JobTracker, notifier notification.Notifier, publisher events.Publisher, log logger.Logger) *Job {
	if notifier == nil {
		notifier = notification.Noop{}
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	if log == nil {
		log = logger.Global().Module(componentBackup)
	}
	return &Job{
		manager:  manager,
		queue:    queue,
		tracker:  tracker,
		notifier: notifier,
		events:   publisher,
		log:      log.Module("job"),
	}
}

// Start records a job and submits a backup run. It returns as soon as the
// run is queued.
func (j *Job) Start(ctx context.Context) (uuid.UUID, error) {
	jobID, err := j.tracker.NewJob(ctx, backupJobName, backupJobStep)
	if err != nil {
		return uuid.Nil, err
	}

	err = j.queue.Submit(backupJobName, func(runCtx context.Context) error {
		return j.run(runCtx, jobID)
	})
	if err != nil {
		if uerr := j.tracker.UpdateJob(ctx, jobID, 100, "", false, err.Error()); uerr != nil {
			j.log.Error("failed to close rejected job", logger.Error(uerr))
		}
		return uuid.Nil, err
	}
	return jobID, nil
}

func (j *Job) run(ctx context.Context, jobID uuid.UUID) error {
	log := j.log.With(logger.String("job_id", jobID.String()))

	md, err := j.manager.Run(ctx)

	outcome := notification.JobOutcome{ID: jobID, Name: backupJobName, Succeeded: err == nil}
	step := ""
	if err != nil {
		outcome.Error = err.Error()
	}
	if md != nil {
		step = fmt.Sprintf("Stored %s (%d bytes)", md.FileName(), md.Size)
	}

	closeCtx := context.WithoutCancel(ctx)
	if uerr := j.tracker.UpdateJob(closeCtx, jobID, 100, step, outcome.Succeeded, outcome.Error); uerr != nil {
		log.Error("failed to record job outcome", logger.Error(uerr))
	}
	if nerr := j.notifier.NotifyJob(closeCtx, outcome); nerr != nil {
		log.Warn("job notification failed", logger.Error(nerr))
	}

	data := map[string]any{
		"job_id":    jobID.String(),
		"succeeded": outcome.Succeeded,
	}
	if md != nil {
		data["backup_id"] = md.ID
		data["size"] = md.Size
	}
	j.events.TryPublish(events.New(events.KindBackupFinished, data))
	return err
}

// Scheduler starts a backup job at a fixed interval
type Scheduler struct {
	job      *Job
	interval time.Duration
	log      logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	lastRun time.Time
}

// NewScheduler creates a Scheduler. It does nothing until Start.
func NewScheduler(job *Job, interval time.Duration, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Global().Module(componentBackup)
	}
	return &Scheduler{job: job, interval: interval, log: log.Module("scheduler")}
}

// Start launches the schedule loop. The first backup runs one interval
// after Start. Calling Start on a running scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil || s.interval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
	s.log.Info("backup schedule started", logger.Duration("interval", s.interval))
}

// Stop ends the schedule loop and waits for it. Queued backups still run.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// LastRun returns when the scheduler last submitted a backup
func (s *Scheduler) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

func (s *Scheduler) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			id, err := s.job.Start(ctx)
			if err != nil {
				s.log.Error("failed to start scheduled backup", logger.Error(err))
				continue
			}
			s.mu.Lock()
			s.lastRun = time.Now()
			s.mu.Unlock()
			s.log.Info("scheduled backup queued", logger.String("job_id", id.String()))
		}
	}
}
