package repository

import (
	"context"

	"github.com/rmuseum/naskban-go/internal/datastore/entities"
)

// TOCRow is one "Title in TOC" value joined with its page number.
type TOCRow struct {
	PageID          uint
	PageNumber      int
	Value           string
	ValueSupplement string
	ValueOrder      int
}

// TagRepository handles tags and page tag values.
type TagRepository interface {
	// GetOrCreate returns the tag with the given name, creating it when absent.
	GetOrCreate(ctx context.Context, name string) (*entities.Tag, error)
	// GetByName returns the tag with the given name or ErrTagNotFound.
	GetByName(ctx context.Context, name string) (*entities.Tag, error)
	AddValue(ctx context.Context, value *entities.TagValue) error
	// CountValues counts values of tagID on a page.
	CountValues(ctx context.Context, pageID, tagID uint) (int64, error)
	// ValueExists reports whether the page already carries tagID with value.
	ValueExists(ctx context.Context, pageID, tagID uint, value string) (bool, error)
	// ListValues returns the values of tagID on a page in order.
	ListValues(ctx context.Context, pageID, tagID uint) ([]entities.TagValue, error)
	// BookValues returns the values of tagID across a book ordered by page
	// number and then by value order.
	BookValues(ctx context.Context, bookID, tagID uint) ([]TOCRow, error)
}
