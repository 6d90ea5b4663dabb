package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rmuseum/naskban-go/internal/datastore/entities"
)

// BookmarkRepository handles reader bookmarks.
type BookmarkRepository interface {
	// Find returns the bookmark of a user on a book, or on one page of it
	// when pageID is set.
	Find(ctx context.Context, userID string, bookID uint, pageID *uint) (*entities.Bookmark, error)
	Create(ctx context.Context, bookmark *entities.Bookmark) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns bookmarks newest first. Zero bookID and nil pageID list
	// every bookmark of the user; a pageID of 0 keeps book-level bookmarks.
	List(ctx context.Context, userID string, bookID uint, pageID *uint, skip, take int) ([]entities.Bookmark, error)
}

// bookmarkRepository implements BookmarkRepository.
type bookmarkRepository struct {
	db *gorm.DB
}

// NewBookmarkRepository creates a new BookmarkRepository.
func NewBookmarkRepository(db *gorm.DB) BookmarkRepository {
	return &bookmarkRepository{db: db}
}

func (r *bookmarkRepository) scope(ctx context.Context, userID string, bookID uint, pageID *uint) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&entities.Bookmark{}).Where("user_id = ?", userID)
	if bookID != 0 {
		query = query.Where("book_id = ?", bookID)
	}
	switch {
	case pageID == nil:
	case *pageID == 0:
		query = query.Where("page_id IS NULL")
	default:
		query = query.Where("page_id = ?", *pageID)
	}
	return query
}

func (r *bookmarkRepository) Find(ctx context.Context, userID string, bookID uint, pageID *uint) (*entities.Bookmark, error) {
	query := r.scope(ctx, userID, bookID, pageID)
	if pageID == nil {
		query = query.Where("page_id IS NULL")
	}

	var bookmark entities.Bookmark
	if err := query.First(&bookmark).Error; err != nil {
		return nil, translate(err, ErrBookmarkNotFound)
	}
	return &bookmark, nil
}

func (r *bookmarkRepository) Create(ctx context.Context, bookmark *entities.Bookmark) error {
	if bookmark.ID == uuid.Nil {
		bookmark.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(bookmark).Error
}

func (r *bookmarkRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entities.Bookmark{}).Error
}

func (r *bookmarkRepository) List(ctx context.Context, userID string, bookID uint, pageID *uint, skip, take int) ([]entities.Bookmark, error) {
	query := r.scope(ctx, userID, bookID, pageID).Order("date_time DESC")
	if skip > 0 {
		query = query.Offset(skip)
	}
	if take > 0 {
		query = query.Limit(take)
	}

	var bookmarks []entities.Bookmark
	err := query.Find(&bookmarks).Error
	return bookmarks, err
}
