package services

import (
	"context"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/avocetlabs/fledge-backend/internal/platform/logger"
	"github.com/avocetlabs/fledge-backend/internal/repos"
	"github.com/avocetlabs/fledge-backend/internal/types"
)

const (
	performanceEMAAlpha = 0.2
	defaultDifficulty   = 5.0
)

// SpeciesKnowledgeProvider scores a learner's familiarity with a set of
// species on [0,1]. The production implementation lives outside this engine;
// the default stub reports neutral knowledge.
type SpeciesKnowledgeProvider interface {
	Knowledge(ctx context.Context, userID uuid.UUID, species []string) float64
}

type neutralSpeciesKnowledge struct{}

func (neutralSpeciesKnowledge) Knowledge(context.Context, uuid.UUID, []string) float64 { return 0.5 }

func NewNeutralSpeciesKnowledge() SpeciesKnowledgeProvider { return neutralSpeciesKnowledge{} }

// PerformanceService keeps rolling per-exercise statistics and recalibrates
// difficulty from observed success rates. Recording an attempt also advances
// the spaced-repetition state for the same (user, exercise) pair.
type PerformanceService interface {
	RecordAttempt(ctx context.Context, exerciseID, userID uuid.UUID, success bool, timeSpentSeconds float64, hintsUsed int) types.PerformanceMetrics
	// PredictDifficulty resolves the exercise and user context itself; the
	// result is always an integer in [1,10].
	PredictDifficulty(ctx context.Context, exerciseID, userID uuid.UUID) int
	// PredictDifficultyFor is the same prediction for callers that already
	// hold the exercise and context. exercise may be nil; the tracker's
	// recalibrated difficulty for exerciseID fills in when it is.
	PredictDifficultyFor(ctx context.Context, exerciseID, userID uuid.UUID, exercise *types.Exercise, userCtx *types.EnhancedUserContext) int
	Metrics(exerciseID uuid.UUID) (types.PerformanceMetrics, bool)
	RecordCommonMistake(ctx context.Context, exerciseType, mistake string) error
	GetCommonMistakes(ctx context.Context, exerciseType string) []string
}

type metricsEntry struct {
	mu      sync.Mutex
	metrics types.PerformanceMetrics
}

type performanceService struct {
	log       *logger.Logger
	exercises repos.ExerciseRepo
	mistakes  repos.MistakeRepo
	scheduler SpacedRepetitionService
	contexts  ContextService
	species   SpeciesKnowledgeProvider

	// Load-or-create arena keyed by exercise; entries are mutated in place
	// under their own lock and never deleted.
	mu      sync.Mutex
	entries map[uuid.UUID]*metricsEntry
}

func NewPerformanceService(
	log *logger.Logger,
	exercises repos.ExerciseRepo,
	mistakes repos.MistakeRepo,
	scheduler SpacedRepetitionService,
	contexts ContextService,
	species SpeciesKnowledgeProvider,
) PerformanceService {
	if species == nil {
		species = NewNeutralSpeciesKnowledge()
	}
	return &performanceService{
		log:       log.With("service", "PerformanceService"),
		exercises: exercises,
		mistakes:  mistakes,
		scheduler: scheduler,
		contexts:  contexts,
		species:   species,
		entries:   make(map[uuid.UUID]*metricsEntry),
	}
}

func (s *performanceService) entryFor(exerciseID uuid.UUID) *metricsEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[exerciseID]
	if !ok {
		entry = &metricsEntry{
			metrics: types.PerformanceMetrics{
				ExerciseID:           exerciseID,
				CalculatedDifficulty: defaultDifficulty,
			},
		}
		s.entries[exerciseID] = entry
	}
	return entry
}

func (s *performanceService) RecordAttempt(ctx context.Context, exerciseID, userID uuid.UUID, success bool, timeSpentSeconds float64, hintsUsed int) types.PerformanceMetrics {
	if exerciseID == uuid.Nil {
		return types.PerformanceMetrics{}
	}
	entry := s.entryFor(exerciseID)

	entry.mu.Lock()
	m := &entry.metrics
	m.TotalAttempts++
	if success {
		m.SuccessfulAttempts++
	}
	m.AvgTimeSpent = m.AvgTimeSpent*(1-performanceEMAAlpha) + timeSpentSeconds*performanceEMAAlpha
	m.AvgHintsUsed = m.AvgHintsUsed*(1-performanceEMAAlpha) + float64(hintsUsed)*performanceEMAAlpha

	successRate := float64(m.SuccessfulAttempts) / float64(m.TotalAttempts)
	switch {
	case successRate > 0.9:
		m.CalculatedDifficulty = math.Max(1, m.CalculatedDifficulty-0.5)
	case successRate < 0.5:
		m.CalculatedDifficulty = math.Min(10, m.CalculatedDifficulty+0.5)
	}
	snapshot := *m
	entry.mu.Unlock()

	if userID != uuid.Nil {
		s.scheduler.UpdateSpacedRepetition(userID, exerciseID, success)
	}
	return snapshot
}

func (s *performanceService) Metrics(exerciseID uuid.UUID) (types.PerformanceMetrics, bool) {
	s.mu.Lock()
	entry, ok := s.entries[exerciseID]
	s.mu.Unlock()
	if !ok {
		return types.PerformanceMetrics{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.metrics, true
}

func (s *performanceService) PredictDifficulty(ctx context.Context, exerciseID, userID uuid.UUID) int {
	exercise, err := s.exercises.Get(ctx, nil, exerciseID)
	if err != nil {
		s.log.Warn("exercise lookup degraded during difficulty prediction",
			"error", err,
		)
		exercise = nil
	}
	userCtx := s.contexts.BuildEnhancedContext(ctx, userID)
	return s.PredictDifficultyFor(ctx, exerciseID, userID, exercise, userCtx)
}

func (s *performanceService) PredictDifficultyFor(ctx context.Context, exerciseID, userID uuid.UUID, exercise *types.Exercise, userCtx *types.EnhancedUserContext) int {
	base := defaultDifficulty
	var topic string
	var speciesList []string
	if exercise != nil {
		base = float64(exercise.Difficulty)
		topic = exercise.Topic
		speciesList = exercise.SpeciesList()
	} else if m, ok := s.Metrics(exerciseID); ok {
		base = m.CalculatedDifficulty
	}

	level := 1.0
	if userCtx != nil {
		level = float64(userCtx.CurrentLevel)
	}

	predicted := base + (base-level)*0.5
	predicted -= topicFamiliarity(topic, userCtx) * 2
	if len(speciesList) > 0 {
		predicted -= s.species.Knowledge(ctx, userID, speciesList) * 1.5
	}

	if predicted < 1 {
		predicted = 1
	}
	if predicted > 10 {
		predicted = 10
	}
	return int(math.Round(predicted))
}

func topicFamiliarity(topic string, userCtx *types.EnhancedUserContext) float64 {
	if topic == "" || userCtx == nil {
		return 0.5
	}
	for _, s := range userCtx.RecentStrengths {
		if s == topic {
			return 0.8
		}
	}
	for _, w := range userCtx.RecentWeaknesses {
		if w == topic {
			return 0.2
		}
	}
	return 0.5
}

func (s *performanceService) RecordCommonMistake(ctx context.Context, exerciseType, mistake string) error {
	return s.mistakes.Record(ctx, exerciseType, mistake)
}

func (s *performanceService) GetCommonMistakes(ctx context.Context, exerciseType string) []string {
	out, err := s.mistakes.List(ctx, exerciseType)
	if err != nil {
		s.log.Warn("mistake lookup degraded; returning empty list",
			"exercise_type", exerciseType,
			"error", err,
		)
		return []string{}
	}
	return out
}
