package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Criterion is a leaf rule: one content object assessed against one rule,
// attached to exactly one group. CompetencyTagID is denormalized and must
// equal the group's competency tag (enforced at write time; the model loader
// re-checks it as a configuration invariant).
type Criterion struct {
	ID                  uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	GroupID             uuid.UUID      `gorm:"type:uuid;not null;index:idx_criterion_group" json:"group_id"`
	Group               *CriteriaGroup `gorm:"constraint:OnDelete:CASCADE;foreignKey:GroupID;references:ID" json:"group,omitempty"`
	ObjectTagID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"object_tag_id"`
	ObjectTag           *ObjectTag     `gorm:"constraint:OnDelete:RESTRICT;foreignKey:ObjectTagID;references:ID" json:"object_tag,omitempty"`
	CompetencyTagID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"competency_tag_id"`
	CompetencyTag       *Tag           `gorm:"constraint:OnDelete:RESTRICT;foreignKey:CompetencyTagID;references:ID" json:"competency_tag,omitempty"`
	Ordering            int            `gorm:"column:ordering;not null;default:0" json:"ordering"`
	RuleProfileID       *uuid.UUID     `gorm:"type:uuid;index" json:"rule_profile_id,omitempty"`
	RuleProfile         *RuleProfile   `gorm:"constraint:OnDelete:SET NULL;foreignKey:RuleProfileID;references:ID" json:"rule_profile,omitempty"`
	RuleTypeOverride    *string        `gorm:"column:rule_type_override" json:"rule_type_override,omitempty"`
	RulePayloadOverride datatypes.JSON `gorm:"type:jsonb;column:rule_payload_override" json:"rule_payload_override,omitempty"`
	RetakeRule          string         `gorm:"column:retake_rule;not null;default:'MostRecent'" json:"retake_rule"`
	CreatedAt           time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Criterion) TableName() string { return "criterion" }
