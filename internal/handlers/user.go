package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/avocetlabs/fledge-backend/internal/observability"
	"github.com/avocetlabs/fledge-backend/internal/platform/logger"
	"github.com/avocetlabs/fledge-backend/internal/services"
)

const defaultRecommendationLimit = 5

type UserHandler struct {
	log         *logger.Logger
	contextSvc  services.ContextService
	recSvc      services.RecommendationService
	scheduleSvc services.SpacedRepetitionService
	metrics     *observability.Metrics
}

func NewUserHandler(log *logger.Logger, contextSvc services.ContextService, recSvc services.RecommendationService, scheduleSvc services.SpacedRepetitionService, metrics *observability.Metrics) *UserHandler {
	return &UserHandler{
		log:         log.With("handler", "UserHandler"),
		contextSvc:  contextSvc,
		recSvc:      recSvc,
		scheduleSvc: scheduleSvc,
		metrics:     metrics,
	}
}

// GET /api/users/:id/context
func (h *UserHandler) GetContext(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	RespondOK(c, h.contextSvc.BuildEnhancedContext(c.Request.Context(), userID))
}

// GET /api/users/:id/recommendations?limit=5
func (h *UserHandler) GetRecommendations(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	limit := defaultRecommendationLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			RespondError(c, http.StatusBadRequest, "invalid_limit", fmt.Errorf("limit must be a positive integer"))
			return
		}
		limit = n
	}
	recs := h.recSvc.GetRecommendations(c.Request.Context(), userID, limit)
	RespondOK(c, gin.H{"recommendations": recs})
}

// GET /api/users/:id/next-exercise?topic=beak-id
func (h *UserHandler) GetNextExercise(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	rec := h.recSvc.GetOptimalNextExercise(c.Request.Context(), userID, c.Query("topic"))
	if rec == nil {
		c.Status(http.StatusNoContent)
		return
	}
	RespondOK(c, rec)
}

// GET /api/users/:id/due-reviews?limit=10
func (h *UserHandler) GetDueReviews(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	limit := defaultExperienceLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			RespondError(c, http.StatusBadRequest, "invalid_limit", fmt.Errorf("limit must be a positive integer"))
			return
		}
		limit = n
	}
	due := h.scheduleSvc.GetDueForReview(userID, limit)
	h.metrics.SetDueReviews(userID.String(), len(due))
	RespondOK(c, gin.H{"due": due})
}

func parseUserID(c *gin.Context) (uuid.UUID, bool) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_user_id", fmt.Errorf("invalid user id"))
		return uuid.Nil, false
	}
	return userID, true
}
