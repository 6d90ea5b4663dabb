package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rmuseum/naskban-go/internal/datastore/entities"
)

// findingRepository implements FindingRepository.
type findingRepository struct {
	db *gorm.DB
}

// NewFindingRepository creates a new FindingRepository.
func NewFindingRepository(db *gorm.DB) FindingRepository {
	return &findingRepository{db: db}
}

func (r *findingRepository) Create(ctx context.Context, finding *entities.PoemMatchFinding) error {
	if finding.ID == uuid.Nil {
		finding.ID = uuid.New()
	}
	return translate(r.db.WithContext(ctx).Create(finding).Error, ErrFindingNotFound)
}

func (r *findingRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.PoemMatchFinding, error) {
	var finding entities.PoemMatchFinding
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&finding).Error; err != nil {
		return nil, translate(err, ErrFindingNotFound)
	}
	return &finding, nil
}

func (r *findingRepository) Exists(ctx context.Context, catID int, bookID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.PoemMatchFinding{}).
		Where("ganjoor_cat_id = ? AND book_id = ?", catID, bookID).
		Count(&count).Error
	return count > 0, err
}

func (r *findingRepository) List(ctx context.Context, notStarted, notFinished bool) ([]entities.PoemMatchFinding, error) {
	query := r.db.WithContext(ctx).Model(&entities.PoemMatchFinding{})
	if notStarted {
		query = query.Where("started = ?", false)
	}
	if notFinished {
		query = query.Where("finished = ?", false)
	}

	var findings []entities.PoemMatchFinding
	err := query.Find(&findings).Error
	return findings, err
}

func (r *findingRepository) Save(ctx context.Context, finding *entities.PoemMatchFinding) error {
	return translate(r.db.WithContext(ctx).Save(finding).Error, ErrFindingNotFound)
}
