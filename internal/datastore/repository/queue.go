package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/rmuseum/naskban-go/internal/datastore/entities"
)

// QueueRepository manages the claim markers of one processing queue.
type QueueRepository interface {
	// HighWaterMark returns the largest claimed book id, or 0.
	HighWaterMark(ctx context.Context) (uint, error)
	// Claim records bookID as handed out.
	Claim(ctx context.Context, bookID uint) error
	// Reset deletes every marker and returns how many were removed.
	Reset(ctx context.Context) (int64, error)
}

// queueRepository implements QueueRepository over one marker table.
type queueRepository struct {
	db    *gorm.DB
	table string
}

// NewOCRQueueRepository creates a QueueRepository for the OCR queue.
func NewOCRQueueRepository(db *gorm.DB) QueueRepository {
	return &queueRepository{db: db, table: tableOCRQueue}
}

// NewAIQueueRepository creates a QueueRepository for the AI revision queue.
func NewAIQueueRepository(db *gorm.DB) QueueRepository {
	return &queueRepository{db: db, table: tableAIQueue}
}

func (r *queueRepository) HighWaterMark(ctx context.Context) (uint, error) {
	var mark uint
	err := r.db.WithContext(ctx).Table(r.table).
		Select("COALESCE(MAX(book_id), 0)").
		Scan(&mark).Error
	return mark, err
}

func (r *queueRepository) Claim(ctx context.Context, bookID uint) error {
	marker := entities.QueueMarker{BookID: bookID}
	return r.db.WithContext(ctx).Table(r.table).Create(&marker).Error
}

func (r *queueRepository) Reset(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Table(r.table).
		Where("1 = 1").
		Delete(&entities.QueueMarker{})
	return result.RowsAffected, result.Error
}
