package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/avocetlabs/fledge-backend/internal/platform/apierr"
	"github.com/avocetlabs/fledge-backend/internal/platform/logger"
	"github.com/avocetlabs/fledge-backend/internal/repos"
	"github.com/avocetlabs/fledge-backend/internal/types"
)

// ExerciseService owns the exercise catalog: create persists the row and
// indexes it for retrieval in one call. An exercise only becomes a
// recommendation candidate once both writes succeed.
type ExerciseService interface {
	CreateExercise(ctx context.Context, exercise *types.Exercise) error
	GetExercise(ctx context.Context, id uuid.UUID) (*types.Exercise, error)
}

type exerciseService struct {
	log       *logger.Logger
	exercises repos.ExerciseRepo
	index     SemanticIndexService
}

func NewExerciseService(log *logger.Logger, exercises repos.ExerciseRepo, index SemanticIndexService) ExerciseService {
	return &exerciseService{
		log:       log.With("service", "ExerciseService"),
		exercises: exercises,
		index:     index,
	}
}

func (s *exerciseService) CreateExercise(ctx context.Context, exercise *types.Exercise) error {
	if exercise == nil {
		return apierr.New(http.StatusBadRequest, "exercise_required", fmt.Errorf("exercise required"))
	}
	if exercise.ID == uuid.Nil {
		exercise.ID = uuid.New()
	}
	if exercise.Difficulty < 1 || exercise.Difficulty > 10 {
		return apierr.New(http.StatusBadRequest, "invalid_difficulty", fmt.Errorf("difficulty must be in [1,10]"))
	}
	if err := s.exercises.Create(ctx, nil, exercise); err != nil {
		return apierr.New(http.StatusInternalServerError, "persist_failed", fmt.Errorf("persist exercise: %w", err))
	}
	if err := s.index.IndexExercise(ctx, exercise); err != nil {
		return apierr.New(http.StatusInternalServerError, "index_failed", fmt.Errorf("index exercise: %w", err))
	}
	return nil
}

func (s *exerciseService) GetExercise(ctx context.Context, id uuid.UUID) (*types.Exercise, error) {
	return s.exercises.Get(ctx, nil, id)
}
