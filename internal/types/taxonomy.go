package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Taxonomy kinds. Competency taxonomies are the only ones the engine
// evaluates; plain tag taxonomies are ignored.
const (
	TaxonomyTypeCompetency = "competency"
	TaxonomyTypeTag        = "tag"
)

// Taxonomy is a read model of the tagging subsystem. The engine never
// mutates it.
type Taxonomy struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name         string         `gorm:"column:name;not null" json:"name"`
	TaxonomyType string         `gorm:"column:taxonomy_type;not null;default:'tag';index" json:"taxonomy_type"`
	CreatedAt    time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Taxonomy) TableName() string { return "taxonomy" }
