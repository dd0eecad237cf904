package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/competency-engine/internal/logger"
	"github.com/yungbote/competency-engine/internal/types"
)

type ObjectTagRepo interface {
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.ObjectTag, error)
	GetByObjectID(ctx context.Context, tx *gorm.DB, objectID string) ([]*types.ObjectTag, error)
}

type objectTagRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewObjectTagRepo(db *gorm.DB, baseLog *logger.Logger) ObjectTagRepo {
	return &objectTagRepo{db: db, log: baseLog.With("repo", "ObjectTagRepo")}
}

func (r *objectTagRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.ObjectTag, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ObjectTag
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

func (r *objectTagRepo) GetByObjectID(ctx context.Context, tx *gorm.DB, objectID string) ([]*types.ObjectTag, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ObjectTag
	if objectID == "" {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("object_id = ?", objectID).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
