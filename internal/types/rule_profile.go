package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RuleProfile is a named, reusable rule definition scoped to a taxonomy, a
// course, or an organization. Exactly one of the scope reference columns is
// populated, matching Scope.
type RuleProfile struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name        string         `gorm:"column:name;not null" json:"name"`
	RuleType    string         `gorm:"column:rule_type;not null" json:"rule_type"`
	RulePayload datatypes.JSON `gorm:"type:jsonb;column:rule_payload;not null" json:"rule_payload"`
	Scope       string         `gorm:"column:scope;not null;index:idx_profile_scope" json:"scope"`
	TaxonomyID  *uuid.UUID     `gorm:"type:uuid;index:idx_profile_scope" json:"taxonomy_id,omitempty"`
	CourseID    *string        `gorm:"column:course_id;index:idx_profile_scope" json:"course_id,omitempty"`
	OrgID       *string        `gorm:"column:org_id;index:idx_profile_scope" json:"org_id,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (RuleProfile) TableName() string { return "rule_profile" }
