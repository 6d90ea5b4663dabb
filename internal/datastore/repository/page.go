package repository

import (
	"context"

	"github.com/rmuseum/naskban-go/internal/datastore/entities"
)

// PageFlag names a per-page processing flag column.
type PageFlag string

const (
	PageFlagOCRed     PageFlag = "ocred"
	PageFlagAIRevised PageFlag = "ai_revised"
)

// PageRepository handles page persistence.
type PageRepository interface {
	Create(ctx context.Context, page *entities.Page) error
	GetByID(ctx context.Context, id uint) (*entities.Page, error)
	GetByNumber(ctx context.Context, bookID uint, pageNumber int) (*entities.Page, error)
	// ListByBook returns the pages of a book ordered by page number.
	ListByBook(ctx context.Context, bookID uint) ([]entities.Page, error)
	// Save writes all page columns.
	Save(ctx context.Context, page *entities.Page) error
	// CountWithout counts pages of a book whose flag is false.
	CountWithout(ctx context.Context, bookID uint, flag PageFlag) (int64, error)
	// Thumbnails maps (bookID, pageNumber) pairs to page thumbnails.
	Thumbnails(ctx context.Context, keys []PageKey) (map[PageKey]string, error)
}

// PageKey identifies a page by book and number.
type PageKey struct {
	BookID     uint
	PageNumber int
}
