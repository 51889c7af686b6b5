package services

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/avocetlabs/fledge-backend/internal/platform/logger"
	"github.com/avocetlabs/fledge-backend/internal/repos"
	"github.com/avocetlabs/fledge-backend/internal/types"
)

const (
	staleSkillAge      = 7 * 24 * time.Hour
	recentEpisodeQuery = "recent learning activities"
	recentEpisodeLimit = 10

	focusFallback    = "Keep practicing to maintain your progress"
	focusStartBasics = "Start with basic exercises to build your foundation"

	// Scores assigned when reconstructing episodes from reflexions, which do
	// not retain the original numbers.
	reconstructedSuccessScore = 85
	reconstructedFailureScore = 45
)

// ContextService composes skill records and retrieved episodes into the
// per-request snapshot used by every higher component. Empty inputs degrade
// to contextual defaults; this path never fails.
type ContextService interface {
	BuildEnhancedContext(ctx context.Context, userID uuid.UUID) *types.EnhancedUserContext
	// AnalyzeUserProgress is pure; exported for callers that already hold the
	// skill rows.
	AnalyzeUserProgress(skills []*types.SkillEntry) types.ProgressAnalysis
}

type contextService struct {
	log    *logger.Logger
	skills repos.SkillRepo
	memory EpisodicMemoryService
	now    func() time.Time
}

func NewContextService(log *logger.Logger, skills repos.SkillRepo, memory EpisodicMemoryService) ContextService {
	return &contextService{
		log:    log.With("service", "ContextService"),
		skills: skills,
		memory: memory,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *contextService) BuildEnhancedContext(ctx context.Context, userID uuid.UUID) *types.EnhancedUserContext {
	skills, err := s.skills.ListByUser(ctx, nil, userID)
	if err != nil {
		s.log.Warn("skill fetch degraded; building context from empty history",
			"user_id", userID.String(),
			"error", err,
		)
		skills = nil
	}

	totalExercises := 0
	levelSum := 0
	accuracySum := 0.0
	for _, skill := range skills {
		totalExercises += skill.ExercisesCompleted
		levelSum += skill.Level
		accuracySum += skill.SuccessRate
	}
	currentLevel := 1
	overallAccuracy := 0.0
	if len(skills) > 0 {
		currentLevel = int(math.Round(float64(levelSum) / float64(len(skills))))
		overallAccuracy = accuracySum / float64(len(skills))
	}

	analysis := s.AnalyzeUserProgress(skills)
	experiences := s.recentExperiences(ctx, userID)

	return &types.EnhancedUserContext{
		UserID:              userID.String(),
		CurrentLevel:        currentLevel,
		TotalExercises:      totalExercises,
		OverallAccuracy:     overallAccuracy,
		RecentStrengths:     analysis.Strengths,
		RecentWeaknesses:    analysis.Weaknesses,
		RelevantExperiences: experiences,
		SuggestedFocus:      analysis.SuggestedFocus,
		LearningVelocity:    s.learningVelocity(skills),
	}
}

func (s *contextService) AnalyzeUserProgress(skills []*types.SkillEntry) types.ProgressAnalysis {
	if len(skills) == 0 {
		return types.ProgressAnalysis{
			Strengths:      []string{},
			Weaknesses:     []string{},
			StaleSkills:    []string{},
			SuggestedFocus: []string{focusStartBasics},
		}
	}

	sorted := make([]*types.SkillEntry, len(skills))
	copy(sorted, skills)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SuccessRate > sorted[j].SuccessRate
	})

	strengths := []string{}
	for i := 0; i < len(sorted) && i < 3; i++ {
		if sorted[i].SuccessRate > 0.7 {
			strengths = append(strengths, sorted[i].SkillName)
		}
	}

	// Bottom three of the descending sort. With six or fewer skills this can
	// overlap with the strengths window; that behavior is part of the
	// contract and deliberately not deduplicated.
	weaknesses := []string{}
	start := len(sorted) - 3
	if start < 0 {
		start = 0
	}
	for i := start; i < len(sorted); i++ {
		if sorted[i].SuccessRate < 0.6 {
			weaknesses = append(weaknesses, sorted[i].SkillName)
		}
	}

	cutoff := s.now().Add(-staleSkillAge)
	stale := []string{}
	for _, skill := range sorted {
		if skill.LastPracticed.Before(cutoff) {
			stale = append(stale, skill.SkillName)
		}
	}

	focus := make([]string, 0, len(weaknesses)+2)
	seen := make(map[string]struct{}, len(weaknesses)+2)
	for _, name := range weaknesses {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		focus = append(focus, name)
	}
	for i := 0; i < len(stale) && i < 2; i++ {
		if _, ok := seen[stale[i]]; ok {
			continue
		}
		seen[stale[i]] = struct{}{}
		focus = append(focus, stale[i])
	}
	if len(focus) == 0 {
		focus = []string{focusFallback}
	}

	return types.ProgressAnalysis{
		Strengths:      strengths,
		Weaknesses:     weaknesses,
		StaleSkills:    stale,
		SuggestedFocus: focus,
	}
}

// recentExperiences reconstructs LearningEpisode values from stored
// reflexions for context display. Reflexions do not retain the original
// numeric performance, so success maps to score 85 and failure to 45; the
// remaining performance fields stay zero. The round-trip is lossy on purpose.
func (s *contextService) recentExperiences(ctx context.Context, userID uuid.UUID) []types.LearningEpisode {
	reflexions := s.memory.QueryExperiences(ctx, userID, recentEpisodeQuery, recentEpisodeLimit)
	out := make([]types.LearningEpisode, 0, len(reflexions))
	for _, r := range reflexions {
		score := reconstructedFailureScore
		if r.Success {
			score = reconstructedSuccessScore
		}
		out = append(out, types.LearningEpisode{
			UserID:      r.UserID,
			SessionID:   r.SessionID,
			Timestamp:   r.Timestamp,
			Topic:       r.Topic,
			Activity:    r.Activity,
			Performance: types.PerformanceRecord{Score: score},
		})
	}
	return out
}

// learningVelocity is an exponential-decay-weighted mean of per-skill
// throughput. Skills practiced recently dominate; a 7-day decay constant
// halves the weight roughly weekly.
func (s *contextService) learningVelocity(skills []*types.SkillEntry) float64 {
	if len(skills) == 0 {
		return 0
	}
	now := s.now()
	weightedSum := 0.0
	weightTotal := 0.0
	for _, skill := range skills {
		days := now.Sub(skill.LastPracticed).Hours() / 24
		if days < 0 {
			days = 0
		}
		weight := math.Exp(-days / 7)
		velocity := float64(skill.ExercisesCompleted) * skill.SuccessRate * float64(skill.Level)
		weightedSum += weight * velocity
		weightTotal += weight
	}
	if weightTotal == 0 {
		return 0
	}
	out := weightedSum / weightTotal / 10
	if out < 0 {
		return 0
	}
	if out > 10 {
		return 10
	}
	return out
}
