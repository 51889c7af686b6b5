package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/avocetlabs/fledge-backend/internal/observability"
	"github.com/avocetlabs/fledge-backend/internal/platform/logger"
	"github.com/avocetlabs/fledge-backend/internal/services"
)

type AttemptHandler struct {
	log     *logger.Logger
	perfSvc services.PerformanceService
	metrics *observability.Metrics
}

func NewAttemptHandler(log *logger.Logger, perfSvc services.PerformanceService, metrics *observability.Metrics) *AttemptHandler {
	return &AttemptHandler{
		log:     log.With("handler", "AttemptHandler"),
		perfSvc: perfSvc,
		metrics: metrics,
	}
}

type recordAttemptRequest struct {
	ExerciseID uuid.UUID `json:"exercise_id" binding:"required"`
	Success    bool      `json:"success"`
	TimeSpent  float64   `json:"time_spent"`
	HintsUsed  int       `json:"hints_used"`
}

// POST /api/users/:id/attempts
// { exercise_id, success, time_spent, hints_used }
func (h *AttemptHandler) RecordAttempt(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	var req recordAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if req.TimeSpent < 0 || req.HintsUsed < 0 {
		RespondError(c, http.StatusBadRequest, "invalid_body", fmt.Errorf("time_spent and hints_used must be non-negative"))
		return
	}
	metrics := h.perfSvc.RecordAttempt(c.Request.Context(), req.ExerciseID, userID, req.Success, req.TimeSpent, req.HintsUsed)
	h.metrics.IncAttempt(req.Success)
	RespondOK(c, metrics)
}

// GET /api/users/:id/exercises/:exercise_id/predicted-difficulty
func (h *AttemptHandler) GetPredictedDifficulty(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	exerciseID, err := uuid.Parse(c.Param("exercise_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_exercise_id", fmt.Errorf("invalid exercise id"))
		return
	}
	predicted := h.perfSvc.PredictDifficulty(c.Request.Context(), exerciseID, userID)
	RespondOK(c, gin.H{"exercise_id": exerciseID, "predicted_difficulty": predicted})
}
