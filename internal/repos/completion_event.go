package repos

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/competency-engine/internal/logger"
	"github.com/yungbote/competency-engine/internal/types"
)

// ErrDuplicateEvent reports an enqueue with an event id already on record.
// Replayed deliveries hit this and are safe to drop.
var ErrDuplicateEvent = errors.New("completion event already enqueued")

type CompletionEventRepo interface {
	Enqueue(ctx context.Context, tx *gorm.DB, ev *types.CompletionEvent) error
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.CompletionEvent, error)
	// ClaimNextRunnable claims the oldest runnable event: queued, retryable
	// failed, or stale in-flight rows whose heartbeat lapsed.
	ClaimNextRunnable(ctx context.Context, tx *gorm.DB, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*types.CompletionEvent, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	// HasNewerQueued reports whether a later event for the same learner and
	// object is waiting, in which case an in-flight evaluation may be
	// abandoned and left to the superseding run.
	HasNewerQueued(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, objectID string, after time.Time) (bool, error)
}

type completionEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCompletionEventRepo(db *gorm.DB, baseLog *logger.Logger) CompletionEventRepo {
	return &completionEventRepo{db: db, log: baseLog.With("repo", "CompletionEventRepo")}
}

func (r *completionEventRepo) Enqueue(ctx context.Context, tx *gorm.DB, ev *types.CompletionEvent) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if ev == nil {
		return nil
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.Status == "" {
		ev.Status = types.EventStatusQueued
	}
	if err := transaction.WithContext(ctx).Create(ev).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateEvent
		}
		return err
	}
	return nil
}

func (r *completionEventRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.CompletionEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.CompletionEvent
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

func (r *completionEventRepo) ClaimNextRunnable(ctx context.Context, tx *gorm.DB, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*types.CompletionEvent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	retryCutoff := now.Add(-retryDelay)
	staleCutoff := now.Add(-staleRunning)
	var claimed *types.CompletionEvent
	err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		var ev types.CompletionEvent
		q := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where(`
				(
					status = ?
					OR (
						status = ?
						AND attempts < ?
						AND (last_error_at IS NULL OR last_error_at < ?)
					)
					OR (
						status IN (?, ?)
						AND heartbeat_at IS NOT NULL
						AND heartbeat_at < ?
					)
				)
			`, types.EventStatusQueued,
				types.EventStatusFailed, maxAttempts, retryCutoff,
				types.EventStatusMapped, types.EventStatusEvaluating, staleCutoff).
			Order("created_at ASC")
		qErr := q.First(&ev).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		updates := map[string]interface{}{
			"status":       types.EventStatusMapped,
			"attempts":     ev.Attempts + 1,
			"locked_at":    now,
			"heartbeat_at": now,
			"updated_at":   now,
		}
		if err := txx.Model(&types.CompletionEvent{}).
			Where("id = ?", ev.ID).
			Updates(updates).Error; err != nil {
			return err
		}
		ev.Status = types.EventStatusMapped
		ev.Attempts = ev.Attempts + 1
		ev.LockedAt = &now
		ev.HeartbeatAt = &now
		claimed = &ev
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *completionEventRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.CompletionEvent{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *completionEventRepo) Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return r.UpdateFields(ctx, tx, id, map[string]interface{}{
		"heartbeat_at": time.Now(),
	})
}

func (r *completionEventRepo) HasNewerQueued(ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, objectID string, after time.Time) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if learnerID == uuid.Nil || objectID == "" {
		return false, nil
	}
	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.CompletionEvent{}).
		Where("learner_id = ? AND object_id = ? AND status = ? AND created_at > ?",
			learnerID, objectID, types.EventStatusQueued, after).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	// sqlite (used in tests) reports constraint failures as plain strings.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
