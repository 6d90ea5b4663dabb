package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/rmuseum/naskban-go/internal/datastore/entities"
)

// BackupRepository stores the unrevised text log. Rows are only appended.
type BackupRepository interface {
	Append(ctx context.Context, pageID uint, text string) error
	// ListByPage returns backups in insertion order.
	ListByPage(ctx context.Context, pageID uint) ([]entities.UnrevisedTextBackup, error)
}

// backupRepository implements BackupRepository.
type backupRepository struct {
	db *gorm.DB
}

// NewBackupRepository creates a new BackupRepository.
func NewBackupRepository(db *gorm.DB) BackupRepository {
	return &backupRepository{db: db}
}

func (r *backupRepository) Append(ctx context.Context, pageID uint, text string) error {
	backup := entities.UnrevisedTextBackup{PageID: pageID, PageText: text}
	return r.db.WithContext(ctx).Create(&backup).Error
}

func (r *backupRepository) ListByPage(ctx context.Context, pageID uint) ([]entities.UnrevisedTextBackup, error) {
	var backups []entities.UnrevisedTextBackup
	err := r.db.WithContext(ctx).
		Where("page_id = ?", pageID).
		Order("created_at ASC, id ASC").
		Find(&backups).Error
	return backups, err
}
