package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/competency-engine/internal/logger"
	"github.com/yungbote/competency-engine/internal/types"
)

type TagRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Tag, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Tag, error)
	GetByTaxonomyID(ctx context.Context, tx *gorm.DB, taxonomyID uuid.UUID) ([]*types.Tag, error)
}

type tagRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTagRepo(db *gorm.DB, baseLog *logger.Logger) TagRepo {
	return &tagRepo{db: db, log: baseLog.With("repo", "TagRepo")}
}

func (r *tagRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Tag, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var tag types.Tag
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&tag).Error
	if err != nil {
		return nil, err
	}
	if tag.ID == uuid.Nil {
		return nil, nil
	}
	return &tag, nil
}

func (r *tagRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Tag, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Tag
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

func (r *tagRepo) GetByTaxonomyID(ctx context.Context, tx *gorm.DB, taxonomyID uuid.UUID) ([]*types.Tag, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Tag
	if taxonomyID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("taxonomy_id = ?", taxonomyID).
		Order("value ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
