package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/rmuseum/naskban-go/internal/datastore/entities"
)

// FindingRepository handles poem-match findings.
type FindingRepository interface {
	// Create inserts a finding. A second finding for the same category and
	// book fails with ErrDuplicateKey.
	Create(ctx context.Context, finding *entities.PoemMatchFinding) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.PoemMatchFinding, error)
	Exists(ctx context.Context, catID int, bookID uint) (bool, error)
	// List filters by the two flags; false means "do not filter".
	List(ctx context.Context, notStarted, notFinished bool) ([]entities.PoemMatchFinding, error)
	Save(ctx context.Context, finding *entities.PoemMatchFinding) error
}
