package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/avocetlabs/fledge-backend/internal/platform/logger"
	"github.com/avocetlabs/fledge-backend/internal/services"
	"github.com/avocetlabs/fledge-backend/internal/types"
)

type ExerciseHandler struct {
	log         *logger.Logger
	exerciseSvc services.ExerciseService
}

func NewExerciseHandler(log *logger.Logger, exerciseSvc services.ExerciseService) *ExerciseHandler {
	return &ExerciseHandler{
		log:         log.With("handler", "ExerciseHandler"),
		exerciseSvc: exerciseSvc,
	}
}

type createExerciseRequest struct {
	Title           string   `json:"title" binding:"required"`
	Topic           string   `json:"topic" binding:"required"`
	Description     string   `json:"description"`
	ExerciseType    string   `json:"exercise_type" binding:"required"`
	Difficulty      int      `json:"difficulty"`
	SpeciesInvolved []string `json:"species_involved"`
	Approved        bool     `json:"approved"`
}

// POST /api/exercises
func (h *ExerciseHandler) CreateExercise(c *gin.Context) {
	var req createExerciseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if req.Difficulty == 0 {
		req.Difficulty = 5
	}
	exercise := &types.Exercise{
		Title:           req.Title,
		Topic:           req.Topic,
		Description:     req.Description,
		ExerciseType:    req.ExerciseType,
		Difficulty:      req.Difficulty,
		SpeciesInvolved: types.StringListJSON(req.SpeciesInvolved),
		Approved:        req.Approved,
	}
	if err := h.exerciseSvc.CreateExercise(c.Request.Context(), exercise); err != nil {
		RespondAPIError(c, err)
		return
	}
	c.JSON(http.StatusCreated, exercise)
}

// GET /api/exercises/:id
func (h *ExerciseHandler) GetExercise(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_exercise_id", fmt.Errorf("invalid exercise id"))
		return
	}
	exercise, err := h.exerciseSvc.GetExercise(c.Request.Context(), id)
	if err != nil {
		RespondError(c, http.StatusNotFound, "exercise_not_found", err)
		return
	}
	RespondOK(c, exercise)
}
