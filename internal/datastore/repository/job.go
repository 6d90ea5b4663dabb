package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rmuseum/naskban-go/internal/datastore/entities"
)

// JobRepository persists long-running job progress.
type JobRepository interface {
	Create(ctx context.Context, job *entities.LongRunningJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.LongRunningJob, error)
	Save(ctx context.Context, job *entities.LongRunningJob) error
	// List returns jobs newest first, at most limit rows when limit > 0.
	List(ctx context.Context, limit int) ([]entities.LongRunningJob, error)
}

// jobRepository implements JobRepository.
type jobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) Create(ctx context.Context, job *entities.LongRunningJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *jobRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.LongRunningJob, error) {
	var job entities.LongRunningJob
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		return nil, translate(err, ErrJobNotFound)
	}
	return &job, nil
}

func (r *jobRepository) Save(ctx context.Context, job *entities.LongRunningJob) error {
	return r.db.WithContext(ctx).Save(job).Error
}

func (r *jobRepository) List(ctx context.Context, limit int) ([]entities.LongRunningJob, error) {
	query := r.db.WithContext(ctx).Order("start_time DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var jobs []entities.LongRunningJob
	err := query.Find(&jobs).Error
	return jobs, err
}
