package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/competency-engine/internal/logger"
	"github.com/yungbote/competency-engine/internal/repos"
	"github.com/yungbote/competency-engine/internal/types"
)

// StatusService is the sole mutation surface for cached verdicts. Writes are
// idempotent: re-committing the same result only advances timestamps, and
// the per-row last-writer-wins guard (keyed by evaluation start time) drops
// stale recomputations that finish late.
type StatusService interface {
	// CommitCompetency writes one evaluation run's full record set in a
	// single transaction, so a competency's criterion/group/competency rows
	// are always internally consistent.
	CommitCompetency(ctx context.Context, learnerID uuid.UUID, res *EvaluationResult) error
	GetCompetencyStatus(ctx context.Context, learnerID, competencyTagID uuid.UUID) (*types.StatusRecord, error)
	GetNodeStatus(ctx context.Context, learnerID uuid.UUID, kind types.NodeKind, nodeID uuid.UUID) (*types.StatusRecord, error)
	ListForLearner(ctx context.Context, learnerID uuid.UUID) ([]*types.StatusRecord, error)
	ListForLearnerByKind(ctx context.Context, learnerID uuid.UUID, kind types.NodeKind) ([]*types.StatusRecord, error)
}

type statusService struct {
	db    *gorm.DB
	log   *logger.Logger
	repo  repos.StatusRecordRepo
	locks *keyedMutex
}

func NewStatusService(db *gorm.DB, baseLog *logger.Logger, repo repos.StatusRecordRepo) StatusService {
	return &statusService{
		db:    db,
		log:   baseLog.With("service", "StatusService"),
		repo:  repo,
		locks: newKeyedMutex(),
	}
}

func (s *statusService) CommitCompetency(ctx context.Context, learnerID uuid.UUID, res *EvaluationResult) error {
	if res == nil {
		return nil
	}
	unlock := s.locks.Lock(learnerID.String() + "|" + res.CompetencyTagID.String())
	defer unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for id, v := range res.Criteria {
			if err := s.repo.Upsert(ctx, tx, &types.StatusRecord{
				LearnerID:      learnerID,
				NodeKind:       types.NodeKindCriterion,
				NodeID:         id,
				Verdict:        v,
				LastComputedAt: res.StartedAt,
			}); err != nil {
				return err
			}
		}
		for id, v := range res.Groups {
			if err := s.repo.Upsert(ctx, tx, &types.StatusRecord{
				LearnerID:      learnerID,
				NodeKind:       types.NodeKindGroup,
				NodeID:         id,
				Verdict:        v,
				LastComputedAt: res.StartedAt,
			}); err != nil {
				return err
			}
		}
		if res.RootEvaluated {
			if err := s.repo.Upsert(ctx, tx, &types.StatusRecord{
				LearnerID:      learnerID,
				NodeKind:       types.NodeKindCompetency,
				NodeID:         res.CompetencyTagID,
				Verdict:        res.RootVerdict,
				LastComputedAt: res.StartedAt,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit competency status: %w", err)
	}
	s.log.Debug("Competency status committed",
		"learner_id", learnerID,
		"competency_tag_id", res.CompetencyTagID,
		"criteria", len(res.Criteria),
		"groups", len(res.Groups),
		"root_evaluated", res.RootEvaluated)
	return nil
}

func (s *statusService) GetCompetencyStatus(ctx context.Context, learnerID, competencyTagID uuid.UUID) (*types.StatusRecord, error) {
	return s.repo.Get(ctx, nil, learnerID, types.NodeKindCompetency, competencyTagID)
}

func (s *statusService) GetNodeStatus(ctx context.Context, learnerID uuid.UUID, kind types.NodeKind, nodeID uuid.UUID) (*types.StatusRecord, error) {
	return s.repo.Get(ctx, nil, learnerID, kind, nodeID)
}

func (s *statusService) ListForLearner(ctx context.Context, learnerID uuid.UUID) ([]*types.StatusRecord, error) {
	return s.repo.GetByLearner(ctx, nil, learnerID)
}

func (s *statusService) ListForLearnerByKind(ctx context.Context, learnerID uuid.UUID, kind types.NodeKind) ([]*types.StatusRecord, error) {
	return s.repo.GetByLearnerAndKind(ctx, nil, learnerID, kind)
}
