package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/competency-engine/internal/logger"
	"github.com/yungbote/competency-engine/internal/types"
)

type RuleProfileRepo interface {
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.RuleProfile, error)
	GetByTaxonomyID(ctx context.Context, tx *gorm.DB, taxonomyID uuid.UUID) ([]*types.RuleProfile, error)
	GetByCourseID(ctx context.Context, tx *gorm.DB, courseID string) ([]*types.RuleProfile, error)
	GetByOrgID(ctx context.Context, tx *gorm.DB, orgID string) ([]*types.RuleProfile, error)
}

type ruleProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRuleProfileRepo(db *gorm.DB, baseLog *logger.Logger) RuleProfileRepo {
	return &ruleProfileRepo{db: db, log: baseLog.With("repo", "RuleProfileRepo")}
}

func (r *ruleProfileRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.RuleProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.RuleProfile
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

func (r *ruleProfileRepo) GetByTaxonomyID(ctx context.Context, tx *gorm.DB, taxonomyID uuid.UUID) ([]*types.RuleProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.RuleProfile
	if taxonomyID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("scope = ? AND taxonomy_id = ?", types.RuleScopeTaxonomy, taxonomyID).
		Order("created_at ASC, id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *ruleProfileRepo) GetByCourseID(ctx context.Context, tx *gorm.DB, courseID string) ([]*types.RuleProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.RuleProfile
	if courseID == "" {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("scope = ? AND course_id = ?", types.RuleScopeCourse, courseID).
		Order("created_at ASC, id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *ruleProfileRepo) GetByOrgID(ctx context.Context, tx *gorm.DB, orgID string) ([]*types.RuleProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.RuleProfile
	if orgID == "" {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("scope = ? AND org_id = ?", types.RuleScopeOrganization, orgID).
		Order("created_at ASC, id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
