package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/avocetlabs/fledge-backend/internal/platform/logger"
	"github.com/avocetlabs/fledge-backend/internal/services"
)

type MistakeHandler struct {
	log     *logger.Logger
	perfSvc services.PerformanceService
}

func NewMistakeHandler(log *logger.Logger, perfSvc services.PerformanceService) *MistakeHandler {
	return &MistakeHandler{
		log:     log.With("handler", "MistakeHandler"),
		perfSvc: perfSvc,
	}
}

type recordMistakeRequest struct {
	Mistake string `json:"mistake" binding:"required"`
}

// POST /api/exercise-types/:type/mistakes
// { mistake }
func (h *MistakeHandler) RecordMistake(c *gin.Context) {
	exerciseType := strings.TrimSpace(c.Param("type"))
	if exerciseType == "" {
		RespondError(c, http.StatusBadRequest, "invalid_exercise_type", fmt.Errorf("exercise type required"))
		return
	}
	var req recordMistakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := h.perfSvc.RecordCommonMistake(c.Request.Context(), exerciseType, req.Mistake); err != nil {
		RespondError(c, http.StatusInternalServerError, "mistake_record_failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/exercise-types/:type/mistakes
func (h *MistakeHandler) GetMistakes(c *gin.Context) {
	exerciseType := strings.TrimSpace(c.Param("type"))
	if exerciseType == "" {
		RespondError(c, http.StatusBadRequest, "invalid_exercise_type", fmt.Errorf("exercise type required"))
		return
	}
	mistakes := h.perfSvc.GetCommonMistakes(c.Request.Context(), exerciseType)
	RespondOK(c, gin.H{"exercise_type": exerciseType, "mistakes": mistakes})
}
