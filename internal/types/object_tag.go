package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ObjectTag associates a tag with a content object (course, subsection,
// unit). Owned by the tagging subsystem; the engine only reads it.
type ObjectTag struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TagID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"tag_id"`
	Tag       *Tag           `gorm:"constraint:OnDelete:CASCADE;foreignKey:TagID;references:ID" json:"tag,omitempty"`
	ObjectID  string         `gorm:"column:object_id;not null;index" json:"object_id"`
	CourseID  *string        `gorm:"column:course_id;index" json:"course_id,omitempty"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ObjectTag) TableName() string { return "object_tag" }
