package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avocetlabs/fledge-backend/internal/platform/logger"
	"github.com/avocetlabs/fledge-backend/internal/repos"
	"github.com/avocetlabs/fledge-backend/internal/types"
)

// EpisodicMemoryService records completed activities as reflexion episodes
// and retrieves them by semantic similarity. Writes propagate storage
// failures; reads degrade to an empty list so a recommendation request never
// hard-fails on missing history.
type EpisodicMemoryService interface {
	// BuildReflexion derives the persistable reflexion form of an episode.
	// Pure and deterministic: the same episode always yields the same text.
	BuildReflexion(episode types.LearningEpisode) *types.ReflexionEpisode
	RecordEpisode(ctx context.Context, episode types.LearningEpisode) (*types.ReflexionEpisode, error)
	// QueryExperiences returns up to limit episodes for the user, similarity
	// descending. Unreachable retrieval is treated as "no results".
	QueryExperiences(ctx context.Context, userID uuid.UUID, query string, limit int) []*types.ReflexionEpisode
}

type episodicMemoryService struct {
	db         *gorm.DB
	log        *logger.Logger
	reflexions repos.ReflexionRepo
	index      SemanticIndexService
}

func NewEpisodicMemoryService(db *gorm.DB, log *logger.Logger, reflexions repos.ReflexionRepo, index SemanticIndexService) EpisodicMemoryService {
	return &episodicMemoryService{
		db:         db,
		log:        log.With("service", "EpisodicMemoryService"),
		reflexions: reflexions,
		index:      index,
	}
}

func (s *episodicMemoryService) BuildReflexion(episode types.LearningEpisode) *types.ReflexionEpisode {
	perf := episode.Performance
	timestamp := episode.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}
	return &types.ReflexionEpisode{
		ID:         uuid.New(),
		UserID:     episode.UserID,
		SessionID:  episode.SessionID,
		Timestamp:  timestamp,
		Topic:      episode.Topic,
		Activity:   episode.Activity,
		Situation:  buildSituation(episode),
		Action:     buildAction(perf),
		Outcome:    buildOutcome(episode),
		Reflection: buildReflection(perf, episode.StruggledWith),
		Success:    episodeSuccess(perf),
		Difficulty: estimateEpisodeDifficulty(perf),
	}
}

func (s *episodicMemoryService) RecordEpisode(ctx context.Context, episode types.LearningEpisode) (*types.ReflexionEpisode, error) {
	if episode.UserID == uuid.Nil {
		return nil, fmt.Errorf("user id required")
	}
	reflexion := s.BuildReflexion(episode)

	// The row and its vector entry commit together: an index failure rolls
	// the row back so a caller retry cannot leave a duplicate behind.
	if s.db != nil {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.reflexions.Create(ctx, tx, reflexion); err != nil {
				return fmt.Errorf("persist reflexion: %w", err)
			}
			if err := s.index.IndexEpisode(ctx, reflexion); err != nil {
				return fmt.Errorf("index reflexion: %w", err)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return reflexion, nil
	}

	// Without a shared handle the pair is sequential, so a failed index
	// deletes the row it just wrote.
	if err := s.reflexions.Create(ctx, nil, reflexion); err != nil {
		return nil, fmt.Errorf("persist reflexion: %w", err)
	}
	if err := s.index.IndexEpisode(ctx, reflexion); err != nil {
		if cleanupErr := s.reflexions.Delete(ctx, nil, reflexion.ID); cleanupErr != nil {
			s.log.Warn("orphaned reflexion row after index failure",
				"reflexion_id", reflexion.ID.String(),
				"error", cleanupErr,
			)
		}
		return nil, fmt.Errorf("index reflexion: %w", err)
	}
	return reflexion, nil
}

func (s *episodicMemoryService) QueryExperiences(ctx context.Context, userID uuid.UUID, query string, limit int) []*types.ReflexionEpisode {
	if userID == uuid.Nil || limit <= 0 {
		return []*types.ReflexionEpisode{}
	}
	matches, err := s.index.SearchEpisodes(ctx, userID, query, limit)
	if err != nil {
		s.log.Warn("episode retrieval degraded; returning no experiences",
			"user_id", userID.String(),
			"error", err,
		)
		return []*types.ReflexionEpisode{}
	}
	if len(matches) == 0 {
		return []*types.ReflexionEpisode{}
	}

	ids := make([]uuid.UUID, 0, len(matches))
	for _, m := range matches {
		id, err := uuid.Parse(m.ID)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	rows, err := s.reflexions.GetByIDs(ctx, nil, ids)
	if err != nil {
		s.log.Warn("reflexion load degraded; returning no experiences",
			"user_id", userID.String(),
			"error", err,
		)
		return []*types.ReflexionEpisode{}
	}
	return rows
}

func buildSituation(episode types.LearningEpisode) string {
	parts := []string{
		"topic: " + episode.Topic,
		"activity: " + episode.Activity,
	}
	if len(episode.SpeciesInvolved) > 0 {
		parts = append(parts, "species: "+strings.Join(episode.SpeciesInvolved, ", "))
	}
	if len(episode.VocabularyUsed) > 0 {
		parts = append(parts, "vocabulary: "+strings.Join(episode.VocabularyUsed, ", "))
	}
	return strings.Join(parts, " | ")
}

func buildAction(perf types.PerformanceRecord) string {
	return fmt.Sprintf("completed in %ds, %d attempts, %d hints",
		int(math.Round(perf.TimeSpentSeconds)), perf.AttemptsUsed, perf.HintsUsed)
}

func buildOutcome(episode types.LearningEpisode) string {
	parts := []string{fmt.Sprintf("score: %d%%", episode.Performance.Score)}
	if len(episode.MasteredConcepts) > 0 {
		parts = append(parts, "mastered: "+strings.Join(episode.MasteredConcepts, ", "))
	}
	if len(episode.StruggledWith) > 0 {
		parts = append(parts, "struggled with: "+strings.Join(episode.StruggledWith, ", "))
	}
	if episode.EmotionalState != "" {
		parts = append(parts, "feeling: "+episode.EmotionalState)
	}
	return strings.Join(parts, " | ")
}

// buildReflection is a fixed rule table keyed on score bands. The bands and
// their conditional branches are a contract: generated text must stay
// deterministic so stored reflexions remain comparable over time.
func buildReflection(perf types.PerformanceRecord, struggledWith []string) string {
	switch {
	case perf.Score >= 90 && perf.HintsUsed == 0 && perf.AttemptsUsed == 1:
		return "Excellent understanding, immediate success without hints."
	case perf.Score >= 70:
		if perf.HintsUsed > 0 {
			return "Good progress, though hints were needed to get there."
		}
		return "Good progress with independent problem solving."
	case perf.Score >= 50:
		focus := "core concepts"
		if len(struggledWith) > 0 {
			focus = strings.Join(struggledWith, ", ")
		}
		return "Moderate understanding, review " + focus + " before moving on."
	default:
		return "Challenging topic, focus on fundamentals before retrying."
	}
}

func episodeSuccess(perf types.PerformanceRecord) bool {
	if perf.Score >= 70 {
		return true
	}
	return perf.Score >= 50 && perf.HintsUsed <= 1 && perf.AttemptsUsed <= 2
}

// estimateEpisodeDifficulty sums three terms: inverse score, capped time
// pressure, capped struggle (extra attempts plus hints), then clamps to
// [1,10] and rounds.
func estimateEpisodeDifficulty(perf types.PerformanceRecord) int {
	difficulty := 10 - float64(perf.Score)/10
	difficulty += math.Min(perf.TimeSpentSeconds/300, 2)
	difficulty += math.Min(float64(perf.AttemptsUsed-1)+float64(perf.HintsUsed), 3)
	if difficulty < 1 {
		difficulty = 1
	}
	if difficulty > 10 {
		difficulty = 10
	}
	return int(math.Round(difficulty))
}
