package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/competency-engine/internal/logger"
	"github.com/yungbote/competency-engine/internal/types"
)

// TaxonomyRepo reads taxonomy metadata owned by the tagging subsystem. No
// write methods: the engine consumes tagging data read-only.
type TaxonomyRepo interface {
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Taxonomy, error)
	ListCompetencyTaxonomies(ctx context.Context, tx *gorm.DB) ([]*types.Taxonomy, error)
}

type taxonomyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTaxonomyRepo(db *gorm.DB, baseLog *logger.Logger) TaxonomyRepo {
	return &taxonomyRepo{db: db, log: baseLog.With("repo", "TaxonomyRepo")}
}

func (r *taxonomyRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Taxonomy, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Taxonomy
	if len(ids) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *taxonomyRepo) ListCompetencyTaxonomies(ctx context.Context, tx *gorm.DB) ([]*types.Taxonomy, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Taxonomy
	if err := transaction.WithContext(ctx).
		Where("taxonomy_type = ?", types.TaxonomyTypeCompetency).
		Order("name ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
