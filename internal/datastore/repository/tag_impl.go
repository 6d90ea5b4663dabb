package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/rmuseum/naskban-go/internal/datastore/entities"
	"github.com/rmuseum/naskban-go/internal/errors"
)

// tagRepository implements TagRepository.
type tagRepository struct {
	db *gorm.DB
}

// NewTagRepository creates a new TagRepository.
func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{db: db}
}

// GetOrCreate relies on the unique name index so concurrent callers converge
// on one row: a losing insert re-reads the winner.
func (r *tagRepository) GetOrCreate(ctx context.Context, name string) (*entities.Tag, error) {
	if name == "" {
		return nil, errors.NewStd("tag name must not be empty")
	}

	var tag entities.Tag
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&tag).Error
	if err == nil {
		return &tag, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	tag = entities.Tag{Name: name}
	if err := r.db.WithContext(ctx).Create(&tag).Error; err != nil {
		if !isDuplicateKey(err) {
			return nil, err
		}
		if err := r.db.WithContext(ctx).Where("name = ?", name).First(&tag).Error; err != nil {
			return nil, translate(err, ErrTagNotFound)
		}
	}
	return &tag, nil
}

func (r *tagRepository) GetByName(ctx context.Context, name string) (*entities.Tag, error) {
	var tag entities.Tag
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&tag).Error; err != nil {
		return nil, translate(err, ErrTagNotFound)
	}
	return &tag, nil
}

func (r *tagRepository) AddValue(ctx context.Context, value *entities.TagValue) error {
	return r.db.WithContext(ctx).Omit("Tag").Create(value).Error
}

func (r *tagRepository) CountValues(ctx context.Context, pageID, tagID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Table(tableTagValues).
		Where("page_id = ? AND tag_id = ?", pageID, tagID).
		Count(&count).Error
	return count, err
}

func (r *tagRepository) ValueExists(ctx context.Context, pageID, tagID uint, value string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Table(tableTagValues).
		Where("page_id = ? AND tag_id = ? AND value = ?", pageID, tagID, value).
		Count(&count).Error
	return count > 0, err
}

func (r *tagRepository) ListValues(ctx context.Context, pageID, tagID uint) ([]entities.TagValue, error) {
	var values []entities.TagValue
	err := r.db.WithContext(ctx).
		Where("page_id = ? AND tag_id = ?", pageID, tagID).
		Order("value_order ASC, id ASC").
		Find(&values).Error
	return values, err
}

func (r *tagRepository) BookValues(ctx context.Context, bookID, tagID uint) ([]TOCRow, error) {
	var rows []TOCRow
	err := r.db.WithContext(ctx).Table(tableTagValues).
		Select(tableTagValues+".page_id, "+tablePages+".page_number, "+
			tableTagValues+".value, "+tableTagValues+".value_supplement, "+
			tableTagValues+".value_order").
		Joins("JOIN "+tablePages+" ON "+tablePages+".id = "+tableTagValues+".page_id").
		Where(tablePages+".book_id = ? AND "+tableTagValues+".tag_id = ?", bookID, tagID).
		Order(tablePages + ".page_number ASC, " + tableTagValues + ".value_order ASC, " + tableTagValues + ".id ASC").
		Scan(&rows).Error
	return rows, err
}
