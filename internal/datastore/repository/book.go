package repository

import (
	"context"

	"github.com/rmuseum/naskban-go/internal/datastore/entities"
)

// BookQuery narrows the processing-queue scan done by FirstPublishedAfter.
type BookQuery struct {
	// OCRed selects books by their OCR flag.
	OCRed bool
	// AIRevised, when set, selects books by their AI revision flag.
	AIRevised *bool
}

// BookRepository handles book persistence.
type BookRepository interface {
	Create(ctx context.Context, book *entities.Book) error
	GetByID(ctx context.Context, id uint) (*entities.Book, error)
	// GetPublished returns the book only when it is published.
	GetPublished(ctx context.Context, id uint) (*entities.Book, error)
	// FirstPublishedAfter returns the lowest-id published book matching q
	// with an id above afterID, with pages ordered by page number and
	// BookText left empty.
	FirstPublishedAfter(ctx context.Context, afterID uint, q BookQuery) (*entities.Book, error)
	// UpdateFields updates only the given columns.
	UpdateFields(ctx context.Context, id uint, fields map[string]any) error
	// IDsMissingText returns OCRed books whose aggregated text is empty.
	IDsMissingText(ctx context.Context) ([]uint, error)
	// Summaries maps ids to title and cover data for activity views.
	Summaries(ctx context.Context, ids []uint) (map[uint]entities.Book, error)
}
