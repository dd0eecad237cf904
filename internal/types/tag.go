package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tag is a value within a taxonomy. A tag in a competency taxonomy
// represents one competency. Read-only here.
type Tag struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TaxonomyID uuid.UUID      `gorm:"type:uuid;not null;index" json:"taxonomy_id"`
	Taxonomy   *Taxonomy      `gorm:"constraint:OnDelete:CASCADE;foreignKey:TaxonomyID;references:ID" json:"taxonomy,omitempty"`
	Value      string         `gorm:"column:value;not null;index" json:"value"`
	ExternalID string         `gorm:"column:external_id;index" json:"external_id,omitempty"`
	CreatedAt  time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Tag) TableName() string { return "tag" }
