package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/competency-engine/internal/logger"
	"github.com/yungbote/competency-engine/internal/repos"
	"github.com/yungbote/competency-engine/internal/types"
)

// How many competencies of one event evaluate in parallel.
const competencyFanout = 4

// IngestorService drives the event pipeline: received → mapped → evaluating
// → committed (or failed). Events are claimed from the queue table, mapped
// to the criteria referencing the event's content object, and each matched
// competency is re-evaluated and committed. Replay after a crash is safe:
// evaluation reads current learner signals, not event history.
type IngestorService interface {
	Enqueue(ctx context.Context, ev *types.CompletionEvent) error
	// StartWorkers launches the claim loop pool. Two events for the same
	// (learner, competency) never evaluate concurrently; everything else
	// proceeds in parallel.
	StartWorkers(ctx context.Context)
}

type ingestorService struct {
	db         *gorm.DB
	log        *logger.Logger
	events     repos.CompletionEventRepo
	objTags    repos.ObjectTagRepo
	criteria   repos.CriterionRepo
	trees      CriteriaService
	evaluator  GroupEvaluator
	status     StatusService
	partitions *keyedMutex

	workerCount   int
	claimInterval time.Duration
}

func NewIngestorService(
	db *gorm.DB,
	baseLog *logger.Logger,
	events repos.CompletionEventRepo,
	objTags repos.ObjectTagRepo,
	criteria repos.CriterionRepo,
	trees CriteriaService,
	evaluator GroupEvaluator,
	status StatusService,
	workerCount int,
	claimInterval time.Duration,
) IngestorService {
	if workerCount < 1 {
		workerCount = 1
	}
	if claimInterval <= 0 {
		claimInterval = time.Second
	}
	return &ingestorService{
		db:            db,
		log:           baseLog.With("service", "IngestorService"),
		events:        events,
		objTags:       objTags,
		criteria:      criteria,
		trees:         trees,
		evaluator:     evaluator,
		status:        status,
		partitions:    newKeyedMutex(),
		workerCount:   workerCount,
		claimInterval: claimInterval,
	}
}

func (s *ingestorService) Enqueue(ctx context.Context, ev *types.CompletionEvent) error {
	if ev == nil {
		return nil
	}
	if ev.LearnerID == uuid.Nil || ev.ObjectID == "" {
		return fmt.Errorf("completion event requires learner_id and object_id")
	}
	switch ev.EventType {
	case types.EventTypeGraded, types.EventTypeCompleted, types.EventTypeMastered:
	default:
		return fmt.Errorf("unknown event type %q", ev.EventType)
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	err := s.events.Enqueue(ctx, nil, ev)
	if errors.Is(err, repos.ErrDuplicateEvent) {
		s.log.Debug("Duplicate completion event ignored", "event_id", ev.ID)
		return nil
	}
	return err
}

func (s *ingestorService) StartWorkers(ctx context.Context) {
	const maxAttempts = 5
	retryDelay := 30 * time.Second
	staleRunning := 2 * time.Minute

	for i := 0; i < s.workerCount; i++ {
		go func(worker int) {
			wlog := s.log.With("worker", worker)
			ticker := time.NewTicker(s.claimInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					ev, err := s.events.ClaimNextRunnable(ctx, nil, maxAttempts, retryDelay, staleRunning)
					if err != nil {
						wlog.Warn("ClaimNextRunnable failed", "error", err)
						continue
					}
					if ev == nil {
						continue
					}
					s.processEvent(ctx, wlog, ev)
				}
			}
		}(i)
	}
	s.log.Info("Ingestor workers started", "count", s.workerCount)
}

func (s *ingestorService) processEvent(ctx context.Context, wlog *logger.Logger, ev *types.CompletionEvent) {
	elog := wlog.With("event_id", ev.ID, "learner_id", ev.LearnerID, "object_id", ev.ObjectID)

	fail := func(stage string, err error) {
		now := time.Now()
		_ = s.events.UpdateFields(ctx, nil, ev.ID, map[string]interface{}{
			"status":        types.EventStatusFailed,
			"error":         fmt.Sprintf("%s: %v", stage, err),
			"last_error_at": now,
			"locked_at":     nil,
			"updated_at":    now,
		})
		elog.Warn("Completion event failed", "stage", stage, "error", err)
	}

	commit := func(note string) {
		now := time.Now()
		_ = s.events.UpdateFields(ctx, nil, ev.ID, map[string]interface{}{
			"status":     types.EventStatusCommitted,
			"error":      note,
			"locked_at":  nil,
			"updated_at": now,
		})
	}

	tagIDs, err := s.mapEvent(ctx, ev)
	if err != nil {
		fail("map", err)
		return
	}
	if len(tagIDs) == 0 {
		elog.Debug("No criteria reference the event object, committing as no-op")
		commit("")
		return
	}

	if err := s.events.UpdateFields(ctx, nil, ev.ID, map[string]interface{}{
		"status":     types.EventStatusEvaluating,
		"updated_at": time.Now(),
	}); err != nil {
		fail("evaluate", err)
		return
	}

	var notesMu sync.Mutex
	notes := make([]string, 0)
	addNote := func(n string) {
		notesMu.Lock()
		notes = append(notes, n)
		notesMu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(competencyFanout)
	for _, tagID := range tagIDs {
		tagID := tagID
		g.Go(func() error {
			return s.evaluateCompetency(gctx, elog, ev, tagID, addNote)
		})
	}
	if err := g.Wait(); err != nil {
		fail("evaluate", err)
		return
	}

	if len(notes) == len(tagIDs) {
		fail("evaluate", fmt.Errorf("all competencies failed: %s", strings.Join(notes, "; ")))
		return
	}
	commit(strings.Join(notes, "; "))
	elog.Info("Completion event committed", "competencies", len(tagIDs), "problems", len(notes))
}

// mapEvent resolves the event's content object to the distinct competency
// tags whose criteria reference it.
func (s *ingestorService) mapEvent(ctx context.Context, ev *types.CompletionEvent) ([]uuid.UUID, error) {
	objTags, err := s.objTags.GetByObjectID(ctx, nil, ev.ObjectID)
	if err != nil {
		return nil, fmt.Errorf("load object tags: %w", err)
	}
	if len(objTags) == 0 {
		return nil, nil
	}
	objTagIDs := make([]uuid.UUID, 0, len(objTags))
	for _, ot := range objTags {
		objTagIDs = append(objTagIDs, ot.ID)
	}
	criteria, err := s.criteria.GetByObjectTagIDs(ctx, nil, objTagIDs)
	if err != nil {
		return nil, fmt.Errorf("load criteria: %w", err)
	}
	seen := map[uuid.UUID]bool{}
	var tagIDs []uuid.UUID
	for _, c := range criteria {
		if !seen[c.CompetencyTagID] {
			seen[c.CompetencyTagID] = true
			tagIDs = append(tagIDs, c.CompetencyTagID)
		}
	}
	return tagIDs, nil
}

func (s *ingestorService) evaluateCompetency(ctx context.Context, elog *logger.Logger, ev *types.CompletionEvent, tagID uuid.UUID, addNote func(string)) error {
	unlock := s.partitions.Lock(ev.LearnerID.String() + "|" + tagID.String())
	defer unlock()

	// A later event for the same partition recomputes from the same current
	// signals, so this run can be abandoned without rollback.
	newer, err := s.events.HasNewerQueued(ctx, nil, ev.LearnerID, ev.ObjectID, ev.CreatedAt)
	if err == nil && newer {
		elog.Debug("Evaluation superseded by newer queued event", "competency_tag_id", tagID)
		return nil
	}

	tree, err := s.trees.TreeFor(ctx, tagID, ev.CourseID)
	if err != nil {
		if errors.Is(err, ErrNoCriteriaTree) {
			return nil
		}
		if IsConfigurationError(err) {
			// Incomplete setup: reported, prior status records untouched,
			// other competencies unaffected.
			addNote(err.Error())
			elog.Warn("Competency evaluation skipped", "competency_tag_id", tagID, "error", err)
			return nil
		}
		return fmt.Errorf("build criteria tree for %s: %w", tagID, err)
	}

	res, err := s.evaluator.Evaluate(ctx, tree, ev.LearnerID)
	if err != nil {
		return fmt.Errorf("evaluate competency %s: %w", tagID, err)
	}
	if err := s.status.CommitCompetency(ctx, ev.LearnerID, res); err != nil {
		return err
	}
	for _, p := range res.Problems {
		elog.Warn("Criterion problem during evaluation",
			"competency_tag_id", tagID,
			"node_id", p.NodeID,
			"reason", p.Reason)
	}
	return nil
}
