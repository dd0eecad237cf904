package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Completion event types accepted on the intake path.
const (
	EventTypeGraded    = "graded"
	EventTypeCompleted = "completed"
	EventTypeMastered  = "mastered"
)

// CompletionEvent lifecycle. Committed and failed are terminal.
const (
	EventStatusQueued     = "queued"
	EventStatusMapped     = "mapped"
	EventStatusEvaluating = "evaluating"
	EventStatusCommitted  = "committed"
	EventStatusFailed     = "failed"
)

// CompletionEvent is one queued learner completion signal. The ingestor
// claims rows from this table; replaying a row after a crash is safe because
// evaluation depends only on current learner signals.
type CompletionEvent struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	LearnerID   uuid.UUID      `gorm:"type:uuid;not null;index:idx_event_learner_object" json:"learner_id"`
	ObjectID    string         `gorm:"column:object_id;not null;index:idx_event_learner_object" json:"object_id"`
	CourseID    *string        `gorm:"column:course_id;index" json:"course_id,omitempty"`
	EventType   string         `gorm:"column:event_type;not null" json:"event_type"`
	OccurredAt  time.Time      `gorm:"column:occurred_at;not null" json:"occurred_at"`
	Status      string         `gorm:"column:status;not null;index" json:"status"`
	Attempts    int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	Error       string         `gorm:"column:error" json:"error"`
	LastErrorAt *time.Time     `gorm:"column:last_error_at" json:"last_error_at,omitempty"`
	LockedAt    *time.Time     `gorm:"column:locked_at;index" json:"locked_at,omitempty"`
	HeartbeatAt *time.Time     `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	Metadata    datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata"`
	CreatedAt   time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (CompletionEvent) TableName() string { return "completion_event" }
