package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/avocetlabs/fledge-backend/internal/observability"
	"github.com/avocetlabs/fledge-backend/internal/platform/logger"
	"github.com/avocetlabs/fledge-backend/internal/platform/vector"
	"github.com/avocetlabs/fledge-backend/internal/repos"
	"github.com/avocetlabs/fledge-backend/internal/types"
)

const (
	weaknessStrategyTopics     = 2
	weaknessCandidatesPerTopic = 3
	challengeStrategyTopics    = 1
	challengeCandidates        = 2
	reviewCandidates           = 2
	reviewPriorityBoost        = 1.2

	baseRelevanceScore     = 0.5
	difficultyMatchWeight  = 0.15
	weaknessTopicBonus     = 0.2
	minEstimatedSuccess    = 0.2
	maxEstimatedSuccess    = 0.95
	optimalNextSampleLimit = 10
)

// RecommendationService blends three candidate strategies into one ranked
// list: weakness targeting, progressive challenge, and spaced review. A
// failed strategy contributes nothing; the list itself is always returned.
type RecommendationService interface {
	GetRecommendations(ctx context.Context, userID uuid.UUID, limit int) []types.ExerciseRecommendation
	// GetOptimalNextExercise returns the top recommendation, optionally
	// restricted to one topic. Nil when nothing qualifies.
	GetOptimalNextExercise(ctx context.Context, userID uuid.UUID, topic string) *types.ExerciseRecommendation
}

type recommendationService struct {
	log         *logger.Logger
	contexts    ContextService
	retrieval   SemanticIndexService
	exercises   repos.ExerciseRepo
	performance PerformanceService
	scheduler   SpacedRepetitionService
	metrics     *observability.Metrics
}

func NewRecommendationService(
	log *logger.Logger,
	contexts ContextService,
	retrieval SemanticIndexService,
	exercises repos.ExerciseRepo,
	performance PerformanceService,
	scheduler SpacedRepetitionService,
	metrics *observability.Metrics,
) RecommendationService {
	return &recommendationService{
		log:         log.With("service", "RecommendationService"),
		contexts:    contexts,
		retrieval:   retrieval,
		exercises:   exercises,
		performance: performance,
		scheduler:   scheduler,
		metrics:     metrics,
	}
}

func (s *recommendationService) GetRecommendations(ctx context.Context, userID uuid.UUID, limit int) []types.ExerciseRecommendation {
	if userID == uuid.Nil || limit <= 0 {
		return []types.ExerciseRecommendation{}
	}
	start := time.Now()
	userCtx := s.contexts.BuildEnhancedContext(ctx, userID)

	// Strategies retrieve concurrently but merge in fixed slot order so the
	// pre-sort concatenation is deterministic.
	slots := make([][]types.ExerciseRecommendation, 3)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slots[0] = s.weaknessCandidates(gctx, userID, userCtx)
		return nil
	})
	g.Go(func() error {
		slots[1] = s.challengeCandidates(gctx, userID, userCtx)
		return nil
	})
	g.Go(func() error {
		slots[2] = s.reviewCandidates(gctx, userID, userCtx)
		return nil
	})
	_ = g.Wait()

	s.metrics.AddStrategyCandidates("weakness", len(slots[0]))
	s.metrics.AddStrategyCandidates("challenge", len(slots[1]))
	s.metrics.AddStrategyCandidates("review", len(slots[2]))

	merged := make([]types.ExerciseRecommendation, 0, limit)
	for _, slot := range slots {
		merged = append(merged, slot...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].RelevanceScore > merged[j].RelevanceScore
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	s.metrics.ObserveRecommendation(time.Since(start))
	return merged
}

func (s *recommendationService) GetOptimalNextExercise(ctx context.Context, userID uuid.UUID, topic string) *types.ExerciseRecommendation {
	recs := s.GetRecommendations(ctx, userID, optimalNextSampleLimit)
	for i := range recs {
		if topic != "" && recs[i].Topic != topic {
			continue
		}
		return &recs[i]
	}
	return nil
}

func (s *recommendationService) weaknessCandidates(ctx context.Context, userID uuid.UUID, userCtx *types.EnhancedUserContext) []types.ExerciseRecommendation {
	var out []types.ExerciseRecommendation
	weaknesses := userCtx.RecentWeaknesses
	if len(weaknesses) > weaknessStrategyTopics {
		weaknesses = weaknesses[:weaknessStrategyTopics]
	}
	for _, weakness := range weaknesses {
		candidates, err := s.searchExerciseCandidates(ctx, weakness, weaknessCandidatesPerTopic)
		if err != nil {
			s.log.Warn("weakness strategy degraded for topic",
				"topic", weakness,
				"error", err,
			)
			continue
		}
		reasoning := fmt.Sprintf("Recommended to improve understanding of %s", weakness)
		for _, exercise := range candidates {
			out = append(out, s.buildRecommendation(ctx, userID, userCtx, exercise, reasoning))
		}
	}
	return out
}

func (s *recommendationService) challengeCandidates(ctx context.Context, userID uuid.UUID, userCtx *types.EnhancedUserContext) []types.ExerciseRecommendation {
	var out []types.ExerciseRecommendation
	strengths := userCtx.RecentStrengths
	if len(strengths) > challengeStrategyTopics {
		strengths = strengths[:challengeStrategyTopics]
	}
	for _, strength := range strengths {
		candidates, err := s.searchExerciseCandidates(ctx, strength, challengeCandidates)
		if err != nil {
			s.log.Warn("challenge strategy degraded for topic",
				"topic", strength,
				"error", err,
			)
			continue
		}
		reasoning := fmt.Sprintf("Challenge exercise to advance beyond current level in %s", strength)
		for _, exercise := range candidates {
			rec := s.buildRecommendation(ctx, userID, userCtx, exercise, reasoning)
			// Challenges only qualify when they stretch past the user's level.
			if rec.PredictedDifficulty <= userCtx.CurrentLevel+1 {
				continue
			}
			out = append(out, rec)
		}
	}
	return out
}

func (s *recommendationService) reviewCandidates(ctx context.Context, userID uuid.UUID, userCtx *types.EnhancedUserContext) []types.ExerciseRecommendation {
	due := s.scheduler.GetDueForReview(userID, reviewCandidates)
	if len(due) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(due))
	for _, state := range due {
		ids = append(ids, state.ExerciseID)
	}
	exercises, err := s.exercises.GetByIDs(ctx, nil, ids)
	if err != nil {
		s.log.Warn("review strategy degraded; skipping due exercises",
			"error", err,
		)
		return nil
	}
	out := make([]types.ExerciseRecommendation, 0, len(exercises))
	for _, exercise := range exercises {
		rec := s.buildRecommendation(ctx, userID, userCtx, exercise, "Scheduled review to reinforce learning")
		// Review boost lands after the clamp; scores above 1 bias ordering.
		rec.RelevanceScore *= reviewPriorityBoost
		out = append(out, rec)
	}
	return out
}

func (s *recommendationService) searchExerciseCandidates(ctx context.Context, topic string, limit int) ([]*types.Exercise, error) {
	matches, err := s.retrieval.SearchExercises(ctx, topic, limit)
	if err != nil {
		return nil, err
	}
	return s.resolveMatches(ctx, matches)
}

func (s *recommendationService) resolveMatches(ctx context.Context, matches []vector.Match) ([]*types.Exercise, error) {
	if len(matches) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(matches))
	for _, m := range matches {
		id, err := uuid.Parse(m.ID)
		if err != nil {
			s.log.Warn("skipping candidate with malformed id",
				"vector_id", m.ID,
			)
			continue
		}
		ids = append(ids, id)
	}
	return s.exercises.GetByIDs(ctx, nil, ids)
}

func (s *recommendationService) buildRecommendation(ctx context.Context, userID uuid.UUID, userCtx *types.EnhancedUserContext, exercise *types.Exercise, reasoning string) types.ExerciseRecommendation {
	predicted := s.performance.PredictDifficultyFor(ctx, exercise.ID, userID, exercise, userCtx)
	level := userCtx.CurrentLevel

	score := baseRelevanceScore
	score += (3 - math.Abs(float64(predicted-level))) * difficultyMatchWeight
	if containsString(userCtx.RecentWeaknesses, exercise.Topic) {
		score += weaknessTopicBonus
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	estimated := 1 - float64(predicted-level)*0.1
	if estimated < minEstimatedSuccess {
		estimated = minEstimatedSuccess
	}
	if estimated > maxEstimatedSuccess {
		estimated = maxEstimatedSuccess
	}

	return types.ExerciseRecommendation{
		ExerciseID:           exercise.ID,
		Topic:                exercise.Topic,
		RelevanceScore:       score,
		Reasoning:            reasoning,
		PredictedDifficulty:  predicted,
		EstimatedSuccessRate: estimated,
	}
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
