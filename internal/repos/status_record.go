package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/competency-engine/internal/logger"
	"github.com/yungbote/competency-engine/internal/types"
)

type StatusRecordRepo interface {
	// Upsert writes a verdict for one (learner, node_kind, node_id) key.
	// The stored row only changes when the incoming last_computed_at is not
	// older than the stored one, so a slow stale recomputation can never
	// overwrite a newer result.
	Upsert(ctx context.Context, tx *gorm.DB, rec *types.StatusRecord) error
	Get(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, kind types.NodeKind, nodeID uuid.UUID) (*types.StatusRecord, error)
	GetByLearner(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID) ([]*types.StatusRecord, error)
	GetByLearnerAndKind(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, kind types.NodeKind) ([]*types.StatusRecord, error)
}

type statusRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStatusRecordRepo(db *gorm.DB, baseLog *logger.Logger) StatusRecordRepo {
	return &statusRecordRepo{db: db, log: baseLog.With("repo", "StatusRecordRepo")}
}

func (r *statusRecordRepo) Upsert(ctx context.Context, tx *gorm.DB, rec *types.StatusRecord) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if rec == nil {
		return nil
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "learner_id"},
				{Name: "node_kind"},
				{Name: "node_id"},
			},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"verdict":          rec.Verdict,
				"last_computed_at": rec.LastComputedAt,
			}),
			Where: clause.Where{
				Exprs: []clause.Expression{
					clause.Expr{SQL: "status_record.last_computed_at <= excluded.last_computed_at"},
				},
			},
		}).
		Create(rec).Error
}

func (r *statusRecordRepo) Get(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, kind types.NodeKind, nodeID uuid.UUID) (*types.StatusRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if learnerID == uuid.Nil || nodeID == uuid.Nil {
		return nil, nil
	}
	var rec types.StatusRecord
	err := transaction.WithContext(ctx).
		Where("learner_id = ? AND node_kind = ? AND node_id = ?", learnerID, kind, nodeID).
		Limit(1).
		Find(&rec).Error
	if err != nil {
		return nil, err
	}
	if rec.ID == uuid.Nil {
		return nil, nil
	}
	return &rec, nil
}

func (r *statusRecordRepo) GetByLearner(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID) ([]*types.StatusRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.StatusRecord
	if learnerID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("learner_id = ?", learnerID).
		Order("last_computed_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *statusRecordRepo) GetByLearnerAndKind(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, kind types.NodeKind) ([]*types.StatusRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.StatusRecord
	if learnerID == uuid.Nil {
		return results, nil
	}
	if err := transaction.WithContext(ctx).
		Where("learner_id = ? AND node_kind = ?", learnerID, kind).
		Order("last_computed_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
