package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/rmuseum/naskban-go/internal/datastore/entities"
)

// LinkRepository handles Ganjoor link suggestions.
type LinkRepository interface {
	Create(ctx context.Context, link *entities.GanjoorLink) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.GanjoorLink, error)
	// ExistsActive reports whether a non-rejected link exists for the target.
	ExistsActive(ctx context.Context, postID int, bookID uint, pageNumber int) (bool, error)
	// NextAwaiting returns the skip-th awaiting link by suggestion date.
	NextAwaiting(ctx context.Context, skip int, onlyMachine bool) (*entities.GanjoorLink, error)
	CountAwaiting(ctx context.Context, onlyMachine bool) (int64, error)
	// UpdateFields updates only the given columns.
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
	// Unsynced returns approved links not yet absorbed by Ganjoor.
	Unsynced(ctx context.Context) ([]entities.GanjoorLink, error)
	// ExistsRelated reports whether a non-rejected link ties the book to the poem.
	ExistsRelated(ctx context.Context, bookID uint, postID int) (bool, error)
}
