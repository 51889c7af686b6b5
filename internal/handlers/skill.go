package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/avocetlabs/fledge-backend/internal/platform/logger"
	"github.com/avocetlabs/fledge-backend/internal/services"
)

type SkillHandler struct {
	log      *logger.Logger
	skillSvc services.SkillService
}

func NewSkillHandler(log *logger.Logger, skillSvc services.SkillService) *SkillHandler {
	return &SkillHandler{
		log:      log.With("handler", "SkillHandler"),
		skillSvc: skillSvc,
	}
}

type updateSkillRequest struct {
	SkillName          string  `json:"skill_name" binding:"required"`
	Level              int     `json:"level"`
	ExercisesCompleted int     `json:"exercises_completed"`
	SuccessRate        float64 `json:"success_rate"`
}

// POST /api/users/:id/skills
// { skill_name, level, exercises_completed, success_rate }
func (h *SkillHandler) UpdateSkill(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	var req updateSkillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if req.SuccessRate < 0 || req.SuccessRate > 1 {
		RespondError(c, http.StatusBadRequest, "invalid_body", fmt.Errorf("success_rate must be in [0,1]"))
		return
	}
	if err := h.skillSvc.UpdateSkill(c.Request.Context(), userID, req.SkillName, req.Level, req.ExercisesCompleted, req.SuccessRate); err != nil {
		RespondError(c, http.StatusInternalServerError, "skill_update_failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/users/:id/skills
func (h *SkillHandler) ListSkills(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	skills, err := h.skillSvc.ListUserSkills(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "skill_list_failed", err)
		return
	}
	RespondOK(c, gin.H{"skills": skills})
}
