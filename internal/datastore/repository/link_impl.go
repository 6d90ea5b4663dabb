package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rmuseum/naskban-go/internal/datastore/entities"
)

// linkRepository implements LinkRepository.
type linkRepository struct {
	db *gorm.DB
}

// NewLinkRepository creates a new LinkRepository.
func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) Create(ctx context.Context, link *entities.GanjoorLink) error {
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	return translate(r.db.WithContext(ctx).Create(link).Error, ErrLinkNotFound)
}

func (r *linkRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.GanjoorLink, error) {
	var link entities.GanjoorLink
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&link).Error; err != nil {
		return nil, translate(err, ErrLinkNotFound)
	}
	return &link, nil
}

func (r *linkRepository) ExistsActive(ctx context.Context, postID int, bookID uint, pageNumber int) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Table(tableGanjoorLinks).
		Where("ganjoor_post_id = ? AND book_id = ? AND page_number = ? AND review_result <> ?",
			postID, bookID, pageNumber, entities.ReviewRejected).
		Count(&count).Error
	return count > 0, err
}

func (r *linkRepository) awaiting(ctx context.Context, onlyMachine bool) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&entities.GanjoorLink{}).
		Where("review_result = ?", entities.ReviewAwaiting)
	if onlyMachine {
		query = query.Where("suggested_by_machine = ?", true)
	}
	return query
}

func (r *linkRepository) NextAwaiting(ctx context.Context, skip int, onlyMachine bool) (*entities.GanjoorLink, error) {
	if skip < 0 {
		skip = 0
	}

	var links []entities.GanjoorLink
	err := r.awaiting(ctx, onlyMachine).
		Order("suggestion_date ASC, id ASC").
		Offset(skip).
		Limit(1).
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, ErrLinkNotFound
	}
	return &links[0], nil
}

func (r *linkRepository) CountAwaiting(ctx context.Context, onlyMachine bool) (int64, error) {
	var count int64
	err := r.awaiting(ctx, onlyMachine).Count(&count).Error
	return count, err
}

func (r *linkRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	result := r.db.WithContext(ctx).Model(&entities.GanjoorLink{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}
	return nil
}

func (r *linkRepository) Unsynced(ctx context.Context) ([]entities.GanjoorLink, error) {
	var links []entities.GanjoorLink
	err := r.db.WithContext(ctx).
		Where("review_result = ? AND synchronized = ?", entities.ReviewApproved, false).
		Order("review_date ASC, id ASC").
		Find(&links).Error
	return links, err
}

func (r *linkRepository) ExistsRelated(ctx context.Context, bookID uint, postID int) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Table(tableGanjoorLinks).
		Where("book_id = ? AND ganjoor_post_id = ? AND review_result <> ?", bookID, postID, entities.ReviewRejected).
		Count(&count).Error
	return count > 0, err
}
