package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CriteriaGroup is a node in a criteria tree. A group with no parent is the
// root of its competency's tree. LogicOperator must be set whenever the
// group has more than one child; a childless group passes its single
// criterion's verdict through.
type CriteriaGroup struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ParentID        *uuid.UUID     `gorm:"type:uuid;index:idx_group_parent" json:"parent_id,omitempty"`
	Parent          *CriteriaGroup `gorm:"constraint:OnDelete:CASCADE;foreignKey:ParentID;references:ID" json:"parent,omitempty"`
	CompetencyTagID uuid.UUID      `gorm:"type:uuid;not null;index:idx_group_tag_course" json:"competency_tag_id"`
	CompetencyTag   *Tag           `gorm:"constraint:OnDelete:RESTRICT;foreignKey:CompetencyTagID;references:ID" json:"competency_tag,omitempty"`
	CourseID        *string        `gorm:"column:course_id;index:idx_group_tag_course" json:"course_id,omitempty"`
	Name            string         `gorm:"column:name;not null" json:"name"`
	Ordering        int            `gorm:"column:ordering;not null;default:0" json:"ordering"`
	LogicOperator   *string        `gorm:"column:logic_operator" json:"logic_operator,omitempty"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (CriteriaGroup) TableName() string { return "criteria_group" }
