package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Exercise is one catalog entry. Difficulty is the canonical author-assigned
// value; the performance tracker keeps its own recalibrated copy.
type Exercise struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Title           string         `gorm:"column:title;not null" json:"title"`
	Topic           string         `gorm:"column:topic;not null;index" json:"topic"`
	ExerciseType    string         `gorm:"column:exercise_type;not null;index" json:"exercise_type"`
	Description     string         `gorm:"column:description" json:"description"`
	Difficulty      int            `gorm:"column:difficulty;not null;default:5" json:"difficulty"` // 1..10
	SpeciesInvolved datatypes.JSON `gorm:"type:jsonb;column:species_involved" json:"species_involved,omitempty"`
	Approved        bool           `gorm:"column:approved;not null;default:false;index" json:"approved"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Exercise) TableName() string { return "exercise" }

// SpeciesList decodes the jsonb species column. Malformed or empty payloads
// decode to nil.
func (e *Exercise) SpeciesList() []string {
	if e == nil || len(e.SpeciesInvolved) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(e.SpeciesInvolved, &out); err != nil {
		return nil
	}
	return out
}

func StringListJSON(values []string) datatypes.JSON {
	if len(values) == 0 {
		return nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
