package jobqueue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rmuseum/naskban-go/internal/datastore/entities"
	"github.com/rmuseum/naskban-go/internal/datastore/repository"
	"github.com/rmuseum/naskban-go/internal/errors"
	"github.com/rmuseum/naskban-go/internal/logger"
)

// jobListLimit caps List so the jobs endpoint stays bounded
const jobListLimit = 100

// Tracker persists the progress of long-running jobs so operators can
// follow work that outlives the request that started it.
type Tracker struct {
	jobs repository.JobRepository
	log  logger.Logger
	now  func() time.Time
}

// NewTracker creates a Tracker over db
func NewTracker(db *gorm.DB, log logger.Logger) *Tracker {
	if log == nil {
		log = logger.Global().Module(componentJobQueue)
	}
	return &Tracker{
		jobs: repository.NewJobRepository(db),
		log:  log.Module("tracker"),
		now:  time.Now,
	}
}

// NewJob records a job that starts now at the given step
func (t *Tracker) NewJob(ctx context.Context, name, step string) (uuid.UUID, error) {
	job := &entities.LongRunningJob{
		Name:      name,
		Step:      step,
		StartTime: t.now(),
	}
	if err := t.jobs.Create(ctx, job); err != nil {
		return uuid.Nil, t.storeError(err, "new_job").Context("job_name", name).Build()
	}

	t.log.Info("job started",
		logger.String("job_id", job.ID.String()),
		logger.String("job_name", name),
		logger.String("step", step))
	return job.ID, nil
}

// UpdateJob records progress. An empty step keeps the previous one. The job
// is closed (EndTime stamped) once progress reaches 100 or errText is set.
func (t *Tracker) UpdateJob(ctx context.Context, id uuid.UUID, progress float64, step string, succeeded bool, errText string) error {
	job, err := t.jobs.GetByID(ctx, id)
	if err != nil {
		return t.lookupError(err, id, "update_job")
	}

	job.Progress = progress
	if step != "" {
		job.Step = step
	}
	job.Succeeded = succeeded
	if errText != "" {
		job.Exception = errText
	}
	if progress >= 100 || errText != "" {
		end := t.now()
		job.EndTime = &end
	}

	if err := t.jobs.Save(ctx, job); err != nil {
		return t.storeError(err, "update_job").Context("job_id", id.String()).Build()
	}

	if job.EndTime != nil {
		t.log.Info("job finished",
			logger.String("job_id", id.String()),
			logger.String("job_name", job.Name),
			logger.Bool("succeeded", succeeded),
			logger.Duration("elapsed", job.EndTime.Sub(job.StartTime)))
	}
	return nil
}

// Get returns one job
func (t *Tracker) Get(ctx context.Context, id uuid.UUID) (*entities.LongRunningJob, error) {
	job, err := t.jobs.GetByID(ctx, id)
	if err != nil {
		return nil, t.lookupError(err, id, "get_job")
	}
	return job, nil
}

// List returns recent jobs, newest first
func (t *Tracker) List(ctx context.Context) ([]entities.LongRunningJob, error) {
	jobs, err := t.jobs.List(ctx, jobListLimit)
	if err != nil {
		return nil, t.storeError(err, "list_jobs").Build()
	}
	return jobs, nil
}

func (t *Tracker) lookupError(err error, id uuid.UUID, operation string) error {
	if errors.Is(err, repository.ErrJobNotFound) {
		return errors.New(err).
			Component(componentJobQueue).
			Category(errors.CategoryNotFound).
			Context("operation", operation).
			Context("job_id", id.String()).
			Build()
	}
	return t.storeError(err, operation).Context("job_id", id.String()).Build()
}

func (t *Tracker) storeError(err error, operation string) *errors.ErrorBuilder {
	return errors.New(err).
		Component(componentJobQueue).
		Category(errors.CategoryDatabase).
		Context("operation", operation)
}
