package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/competency-engine/internal/logger"
	"github.com/yungbote/competency-engine/internal/types"
)

type CriteriaGroupRepo interface {
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.CriteriaGroup, error)
	// GetByCompetencyTag returns every group for a competency tag, scoped to
	// a course when courseID is non-nil (course-agnostic groups always
	// match).
	GetByCompetencyTag(ctx context.Context, tx *gorm.DB, competencyTagID uuid.UUID, courseID *string) ([]*types.CriteriaGroup, error)
}

type criteriaGroupRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCriteriaGroupRepo(db *gorm.DB, baseLog *logger.Logger) CriteriaGroupRepo {
	return &criteriaGroupRepo{db: db, log: baseLog.With("repo", "CriteriaGroupRepo")}
}

func (r *criteriaGroupRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.CriteriaGroup, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.CriteriaGroup
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

func (r *criteriaGroupRepo) GetByCompetencyTag(ctx context.Context, tx *gorm.DB, competencyTagID uuid.UUID, courseID *string) ([]*types.CriteriaGroup, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.CriteriaGroup
	if competencyTagID == uuid.Nil {
		return results, nil
	}
	q := transaction.WithContext(ctx).
		Where("competency_tag_id = ?", competencyTagID)
	if courseID != nil && *courseID != "" {
		q = q.Where("course_id IS NULL OR course_id = '' OR course_id = ?", *courseID)
	}
	if err := q.Order("ordering ASC, id ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
