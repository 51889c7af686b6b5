package types

import (
	"time"

	"github.com/google/uuid"
)

// PerformanceMetrics is the rolling per-exercise record kept by the
// performance tracker. In-process cache scope: created lazily on the first
// attempt, mutated on every attempt, never deleted.
type PerformanceMetrics struct {
	ExerciseID           uuid.UUID `json:"exercise_id"`
	TotalAttempts        int       `json:"total_attempts"`
	SuccessfulAttempts   int       `json:"successful_attempts"`
	AvgTimeSpent         float64   `json:"avg_time_spent"` // EMA, seconds
	AvgHintsUsed         float64   `json:"avg_hints_used"` // EMA
	CalculatedDifficulty float64   `json:"calculated_difficulty"` // 1..10
}

// SpacedRepetitionState governs when a (user, exercise) pair re-enters the
// due-for-review pool.
type SpacedRepetitionState struct {
	UserID               uuid.UUID `json:"user_id"`
	ExerciseID           uuid.UUID `json:"exercise_id"`
	LastAttempt          time.Time `json:"last_attempt"`
	ConsecutiveSuccesses int       `json:"consecutive_successes"`
	NextReview           time.Time `json:"next_review"`
	IntervalMultiplier   float64   `json:"interval_multiplier"` // >= 1
}

// ExerciseRecommendation is an output-only value produced by the scorer.
// RelevanceScore is clamped to [0,1] at build time but may exceed 1 after the
// spaced-review priority boost; that bias is part of the contract.
type ExerciseRecommendation struct {
	ExerciseID           uuid.UUID `json:"exercise_id"`
	Topic                string    `json:"topic"`
	RelevanceScore       float64   `json:"relevance_score"`
	Reasoning            string    `json:"reasoning"`
	PredictedDifficulty  int       `json:"predicted_difficulty"`  // 1..10
	EstimatedSuccessRate float64   `json:"estimated_success_rate"` // 0..1
}
