package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// PerformanceRecord holds the raw numbers from one completed activity.
type PerformanceRecord struct {
	Score            int     `json:"score"`      // 0..100
	TimeSpentSeconds float64 `json:"time_spent"` // seconds
	AttemptsUsed     int     `json:"attempts_used"`
	HintsUsed        int     `json:"hints_used"`
}

// LearningEpisode is the caller-facing record of one completed activity. It is
// immutable once recorded and only ever derived into a ReflexionEpisode before
// persistence.
type LearningEpisode struct {
	UserID           uuid.UUID         `json:"user_id"`
	SessionID        uuid.UUID         `json:"session_id"`
	Timestamp        time.Time         `json:"timestamp"`
	Topic            string            `json:"topic"`
	Activity         string            `json:"activity"`
	Performance      PerformanceRecord `json:"performance"`
	MasteredConcepts []string          `json:"mastered_concepts,omitempty"`
	StruggledWith    []string          `json:"struggled_with,omitempty"`
	SpeciesInvolved  []string          `json:"species_involved,omitempty"`
	VocabularyUsed   []string          `json:"vocabulary_used,omitempty"`
	EmotionalState   string            `json:"emotional_state,omitempty"`
}

// ReflexionEpisode is the persisted, retrievable form of an episode:
// situation/action/outcome/reflection text plus the derived success flag and
// difficulty estimate. It deliberately does not retain the raw performance
// numbers.
type ReflexionEpisode struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	SessionID  uuid.UUID      `gorm:"type:uuid" json:"session_id"`
	Timestamp  time.Time      `gorm:"column:timestamp;not null;default:now()" json:"timestamp"`
	Topic      string         `gorm:"column:topic;not null;index" json:"topic"`
	Activity   string         `gorm:"column:activity;not null" json:"activity"`
	Situation  string         `gorm:"column:situation;not null" json:"situation"`
	Action     string         `gorm:"column:action;not null" json:"action"`
	Outcome    string         `gorm:"column:outcome;not null" json:"outcome"`
	Reflection string         `gorm:"column:reflection;not null" json:"reflection"`
	Success    bool           `gorm:"column:success;not null" json:"success"`
	Difficulty int            `gorm:"column:difficulty;not null" json:"difficulty"` // 1..10
	Metadata   datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (ReflexionEpisode) TableName() string { return "reflexion_episode" }
