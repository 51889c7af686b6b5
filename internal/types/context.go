package types

// ProgressAnalysis is the strengths/weaknesses breakdown of a learner's skill
// set. With six or fewer skills the same skill can legitimately appear in both
// Strengths and Weaknesses; callers must not assume the lists are disjoint.
type ProgressAnalysis struct {
	Strengths      []string `json:"strengths"`
	Weaknesses     []string `json:"weaknesses"`
	StaleSkills    []string `json:"stale_skills"`
	SuggestedFocus []string `json:"suggested_focus"`
}

// EnhancedUserContext is the per-request snapshot driving recommendations.
// It is recomputed on every request and never persisted.
type EnhancedUserContext struct {
	UserID              string            `json:"user_id"`
	CurrentLevel        int               `json:"current_level"`
	TotalExercises      int               `json:"total_exercises"`
	OverallAccuracy     float64           `json:"overall_accuracy"` // 0..1
	RecentStrengths     []string          `json:"recent_strengths"`
	RecentWeaknesses    []string          `json:"recent_weaknesses"`
	RelevantExperiences []LearningEpisode `json:"relevant_experiences"`
	SuggestedFocus      []string          `json:"suggested_focus"`
	LearningVelocity    float64           `json:"learning_velocity"` // 0..10
}
