package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/rmuseum/naskban-go/internal/datastore/entities"
)

// VisitRepository records reader activity.
type VisitRepository interface {
	Create(ctx context.Context, visit *entities.VisitRecord) error
	// RecentWithBook returns the user's latest visits that reference a book,
	// newest first.
	RecentWithBook(ctx context.Context, userID string, limit int) ([]entities.VisitRecord, error)
}

// visitRepository implements VisitRepository.
type visitRepository struct {
	db *gorm.DB
}

// NewVisitRepository creates a new VisitRepository.
func NewVisitRepository(db *gorm.DB) VisitRepository {
	return &visitRepository{db: db}
}

func (r *visitRepository) Create(ctx context.Context, visit *entities.VisitRecord) error {
	return r.db.WithContext(ctx).Create(visit).Error
}

func (r *visitRepository) RecentWithBook(ctx context.Context, userID string, limit int) ([]entities.VisitRecord, error) {
	var visits []entities.VisitRecord
	err := r.db.WithContext(ctx).Table(tableVisits).
		Where("user_id = ? AND book_id IS NOT NULL", userID).
		Order("date_time DESC, id DESC").
		Limit(limit).
		Find(&visits).Error
	return visits, err
}
