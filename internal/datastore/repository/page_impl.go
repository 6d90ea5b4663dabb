package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/rmuseum/naskban-go/internal/datastore/entities"
)

// pageRepository implements PageRepository.
type pageRepository struct {
	db *gorm.DB
}

// NewPageRepository creates a new PageRepository.
func NewPageRepository(db *gorm.DB) PageRepository {
	return &pageRepository{db: db}
}

func (r *pageRepository) Create(ctx context.Context, page *entities.Page) error {
	return translate(r.db.WithContext(ctx).Create(page).Error, ErrPageNotFound)
}

func (r *pageRepository) GetByID(ctx context.Context, id uint) (*entities.Page, error) {
	var page entities.Page
	if err := r.db.WithContext(ctx).First(&page, id).Error; err != nil {
		return nil, translate(err, ErrPageNotFound)
	}
	return &page, nil
}

func (r *pageRepository) GetByNumber(ctx context.Context, bookID uint, pageNumber int) (*entities.Page, error) {
	var page entities.Page
	err := r.db.WithContext(ctx).
		Where("book_id = ? AND page_number = ?", bookID, pageNumber).
		First(&page).Error
	if err != nil {
		return nil, translate(err, ErrPageNotFound)
	}
	return &page, nil
}

func (r *pageRepository) ListByBook(ctx context.Context, bookID uint) ([]entities.Page, error) {
	var pages []entities.Page
	err := r.db.WithContext(ctx).
		Where("book_id = ?", bookID).
		Order("page_number ASC").
		Find(&pages).Error
	return pages, err
}

func (r *pageRepository) Save(ctx context.Context, page *entities.Page) error {
	if page.ID == 0 {
		return fmt.Errorf("page id must be set before saving")
	}
	// Omit associations so tag values are never rewritten as a side effect.
	return translate(r.db.WithContext(ctx).Omit("Tags").Save(page).Error, ErrPageNotFound)
}

func (r *pageRepository) CountWithout(ctx context.Context, bookID uint, flag PageFlag) (int64, error) {
	switch flag {
	case PageFlagOCRed, PageFlagAIRevised:
	default:
		return 0, fmt.Errorf("unknown page flag %q", flag)
	}

	var count int64
	err := r.db.WithContext(ctx).Table(tablePages).
		Where("book_id = ? AND "+string(flag)+" = ?", bookID, false).
		Count(&count).Error
	return count, err
}

func (r *pageRepository) Thumbnails(ctx context.Context, keys []PageKey) (map[PageKey]string, error) {
	result := make(map[PageKey]string, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	bookIDs := make([]uint, 0, len(keys))
	seen := make(map[uint]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k.BookID]; !ok {
			seen[k.BookID] = struct{}{}
			bookIDs = append(bookIDs, k.BookID)
		}
	}

	var rows []struct {
		BookID            uint
		PageNumber        int
		ThumbnailImageURL string
	}
	err := r.db.WithContext(ctx).Table(tablePages).
		Select("book_id", "page_number", "thumbnail_image_url").
		Where("book_id IN ?", bookIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	wanted := make(map[PageKey]struct{}, len(keys))
	for _, k := range keys {
		wanted[k] = struct{}{}
	}
	for _, row := range rows {
		key := PageKey{BookID: row.BookID, PageNumber: row.PageNumber}
		if _, ok := wanted[key]; ok {
			result[key] = row.ThumbnailImageURL
		}
	}
	return result, nil
}
