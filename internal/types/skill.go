package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SkillEntry is one mastery record per (user, skill). Rows are never hard
// deleted; the history is part of the learner's record.
type SkillEntry struct {
	ID                 uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID             uuid.UUID      `gorm:"type:uuid;not null;index:idx_user_skill,unique,priority:1" json:"user_id"`
	SkillName          string         `gorm:"column:skill_name;not null;index:idx_user_skill,unique,priority:2" json:"skill_name"`
	Level              int            `gorm:"column:level;not null;default:1" json:"level"`
	LastPracticed      time.Time      `gorm:"column:last_practiced;not null;default:now()" json:"last_practiced"`
	ExercisesCompleted int            `gorm:"column:exercises_completed;not null;default:0" json:"exercises_completed"`
	SuccessRate        float64        `gorm:"column:success_rate;not null;default:0" json:"success_rate"` // 0..1
	CreatedAt          time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (SkillEntry) TableName() string { return "skill_entry" }
