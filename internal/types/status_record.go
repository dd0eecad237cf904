package types

import (
	"time"

	"github.com/google/uuid"
)

// StatusRecord is the cached verdict for one (learner, node) pair, at
// criterion, group, or competency granularity. At most one current record
// exists per key; re-evaluation overwrites in place. LastComputedAt is the
// start time of the evaluation that produced the verdict, which is what the
// last-writer-wins conflict rule compares. No soft delete: status rows are
// runtime state, not authored content.
type StatusRecord struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	LearnerID      uuid.UUID `gorm:"type:uuid;not null;index:idx_learner_node,unique;index:idx_learner_kind" json:"learner_id"`
	NodeKind       NodeKind  `gorm:"column:node_kind;not null;index:idx_learner_node,unique;index:idx_learner_kind" json:"node_kind"`
	NodeID         uuid.UUID `gorm:"type:uuid;not null;index:idx_learner_node,unique" json:"node_id"`
	Verdict        Verdict   `gorm:"column:verdict;not null" json:"verdict"`
	LastComputedAt time.Time `gorm:"column:last_computed_at;not null" json:"last_computed_at"`
	CreatedAt      time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (StatusRecord) TableName() string { return "status_record" }
