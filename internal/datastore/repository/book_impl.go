package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/rmuseum/naskban-go/internal/datastore/entities"
)

// bookRepository implements BookRepository.
type bookRepository struct {
	db *gorm.DB
}

// NewBookRepository creates a new BookRepository.
func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepository{db: db}
}

func (r *bookRepository) Create(ctx context.Context, book *entities.Book) error {
	return translate(r.db.WithContext(ctx).Create(book).Error, ErrBookNotFound)
}

func (r *bookRepository) GetByID(ctx context.Context, id uint) (*entities.Book, error) {
	var book entities.Book
	if err := r.db.WithContext(ctx).First(&book, id).Error; err != nil {
		return nil, translate(err, ErrBookNotFound)
	}
	return &book, nil
}

func (r *bookRepository) GetPublished(ctx context.Context, id uint) (*entities.Book, error) {
	var book entities.Book
	err := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, entities.BookStatusPublished).
		First(&book).Error
	if err != nil {
		return nil, translate(err, ErrBookNotFound)
	}
	return &book, nil
}

func (r *bookRepository) FirstPublishedAfter(ctx context.Context, afterID uint, q BookQuery) (*entities.Book, error) {
	query := r.db.WithContext(ctx).
		Omit("book_text").
		Where("status = ? AND ocred = ? AND id > ?", entities.BookStatusPublished, q.OCRed, afterID)
	if q.AIRevised != nil {
		query = query.Where("ai_revised = ?", *q.AIRevised)
	}

	var book entities.Book
	err := query.
		Preload("Pages", func(db *gorm.DB) *gorm.DB {
			return db.Order("page_number ASC")
		}).
		Order("id ASC").
		First(&book).Error
	if err != nil {
		return nil, translate(err, ErrBookNotFound)
	}
	return &book, nil
}

func (r *bookRepository) UpdateFields(ctx context.Context, id uint, fields map[string]any) error {
	result := r.db.WithContext(ctx).Model(&entities.Book{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return translate(result.Error, ErrBookNotFound)
	}
	if result.RowsAffected == 0 {
		return ErrBookNotFound
	}
	return nil
}

func (r *bookRepository) IDsMissingText(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Table(tableBooks).
		Where("ocred = ? AND (book_text IS NULL OR book_text = '')", true).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *bookRepository) Summaries(ctx context.Context, ids []uint) (map[uint]entities.Book, error) {
	result := make(map[uint]entities.Book, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var books []entities.Book
	err := r.db.WithContext(ctx).
		Select("id", "title", "authors_line", "cover_image_url", "status").
		Where("id IN ?", ids).
		Find(&books).Error
	if err != nil {
		return nil, err
	}
	for i := range books {
		result[books[i].ID] = books[i]
	}
	return result, nil
}
