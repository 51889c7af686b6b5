package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/avocetlabs/fledge-backend/internal/platform/logger"
	"github.com/avocetlabs/fledge-backend/internal/platform/openai"
	"github.com/avocetlabs/fledge-backend/internal/platform/vector"
	"github.com/avocetlabs/fledge-backend/internal/types"
)

const (
	namespaceEpisodes  = "episodes"
	namespaceExercises = "exercises"

	metadataTypeEpisode  = "episode"
	metadataTypeExercise = "exercise"
)

// SemanticIndexService pairs the embeddings client with the vector store.
// Callers hand it text; it never exposes raw vectors upward.
type SemanticIndexService interface {
	IndexEpisode(ctx context.Context, episode *types.ReflexionEpisode) error
	// SearchEpisodes returns episode IDs scoped to one user, similarity
	// descending.
	SearchEpisodes(ctx context.Context, userID uuid.UUID, query string, limit int) ([]vector.Match, error)
	IndexExercise(ctx context.Context, exercise *types.Exercise) error
	// SearchExercises returns approved exercise IDs for a topic query,
	// similarity descending.
	SearchExercises(ctx context.Context, topic string, limit int) ([]vector.Match, error)
}

type semanticIndexService struct {
	log      *logger.Logger
	embedder openai.Client
	store    vector.Store
}

func NewSemanticIndexService(log *logger.Logger, embedder openai.Client, store vector.Store) SemanticIndexService {
	return &semanticIndexService{
		log:      log.With("service", "SemanticIndexService"),
		embedder: embedder,
		store:    store,
	}
}

func (s *semanticIndexService) IndexEpisode(ctx context.Context, episode *types.ReflexionEpisode) error {
	if episode == nil || episode.ID == uuid.Nil {
		return fmt.Errorf("episode with id required")
	}
	text := embeddableEpisodeText(episode)
	vecs, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return fmt.Errorf("embed episode: %w", err)
	}
	return s.store.Upsert(ctx, namespaceEpisodes, []vector.Vector{{
		ID:     episode.ID.String(),
		Values: vecs[0],
		Metadata: map[string]any{
			"type":    metadataTypeEpisode,
			"user_id": episode.UserID.String(),
			"topic":   episode.Topic,
		},
	}})
}

func (s *semanticIndexService) SearchEpisodes(ctx context.Context, userID uuid.UUID, query string, limit int) ([]vector.Match, error) {
	if userID == uuid.Nil || strings.TrimSpace(query) == "" {
		return nil, nil
	}
	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed episode query: %w", err)
	}
	return s.store.QueryMatches(ctx, namespaceEpisodes, vecs[0], limit, map[string]any{
		"type":    metadataTypeEpisode,
		"user_id": userID.String(),
	})
}

func (s *semanticIndexService) IndexExercise(ctx context.Context, exercise *types.Exercise) error {
	if exercise == nil || exercise.ID == uuid.Nil {
		return fmt.Errorf("exercise with id required")
	}
	text := embeddableExerciseText(exercise)
	vecs, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return fmt.Errorf("embed exercise: %w", err)
	}
	metadata := map[string]any{
		"type":     metadataTypeExercise,
		"topic":    exercise.Topic,
		"approved": exercise.Approved,
	}
	if species := exercise.SpeciesList(); len(species) > 0 {
		metadata["species_involved"] = species
	}
	return s.store.Upsert(ctx, namespaceExercises, []vector.Vector{{
		ID:       exercise.ID.String(),
		Values:   vecs[0],
		Metadata: metadata,
	}})
}

func (s *semanticIndexService) SearchExercises(ctx context.Context, topic string, limit int) ([]vector.Match, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, nil
	}
	vecs, err := s.embedder.Embed(ctx, []string{topic})
	if err != nil {
		return nil, fmt.Errorf("embed exercise query: %w", err)
	}
	return s.store.QueryMatches(ctx, namespaceExercises, vecs[0], limit, map[string]any{
		"type":     metadataTypeExercise,
		"approved": true,
	})
}

func embeddableEpisodeText(episode *types.ReflexionEpisode) string {
	return strings.Join([]string{episode.Situation, episode.Action, episode.Outcome}, " ")
}

func embeddableExerciseText(exercise *types.Exercise) string {
	parts := []string{exercise.Title, exercise.Topic, exercise.Description}
	if species := exercise.SpeciesList(); len(species) > 0 {
		parts = append(parts, strings.Join(species, " "))
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
