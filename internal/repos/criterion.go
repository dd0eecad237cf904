package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/competency-engine/internal/logger"
	"github.com/yungbote/competency-engine/internal/types"
)

type CriterionRepo interface {
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Criterion, error)
	GetByGroupIDs(ctx context.Context, tx *gorm.DB, groupIDs []uuid.UUID) ([]*types.Criterion, error)
	GetByObjectTagIDs(ctx context.Context, tx *gorm.DB, objectTagIDs []uuid.UUID) ([]*types.Criterion, error)
}

type criterionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCriterionRepo(db *gorm.DB, baseLog *logger.Logger) CriterionRepo {
	return &criterionRepo{db: db, log: baseLog.With("repo", "CriterionRepo")}
}

func (r *criterionRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Criterion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Criterion
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

func (r *criterionRepo) GetByGroupIDs(ctx context.Context, tx *gorm.DB, groupIDs []uuid.UUID) ([]*types.Criterion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Criterion
	if len(groupIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("group_id IN ?", groupIDs).
		Order("ordering ASC, id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *criterionRepo) GetByObjectTagIDs(ctx context.Context, tx *gorm.DB, objectTagIDs []uuid.UUID) ([]*types.Criterion, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Criterion
	if len(objectTagIDs) == 0 {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("object_tag_id IN ?", objectTagIDs).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
