package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/avocetlabs/fledge-backend/internal/platform/logger"
	"github.com/avocetlabs/fledge-backend/internal/services"
	"github.com/avocetlabs/fledge-backend/internal/types"
)

const defaultExperienceLimit = 10

type EpisodeHandler struct {
	log       *logger.Logger
	memorySvc services.EpisodicMemoryService
}

func NewEpisodeHandler(log *logger.Logger, memorySvc services.EpisodicMemoryService) *EpisodeHandler {
	return &EpisodeHandler{
		log:       log.With("handler", "EpisodeHandler"),
		memorySvc: memorySvc,
	}
}

// POST /api/users/:id/episodes
// Body is a LearningEpisode; user_id comes from the path.
func (h *EpisodeHandler) RecordEpisode(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	var episode types.LearningEpisode
	if err := c.ShouldBindJSON(&episode); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	episode.UserID = userID
	if episode.Performance.Score < 0 || episode.Performance.Score > 100 {
		RespondError(c, http.StatusBadRequest, "invalid_body", fmt.Errorf("performance.score must be in [0,100]"))
		return
	}
	reflexion, err := h.memorySvc.RecordEpisode(c.Request.Context(), episode)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "episode_record_failed", err)
		return
	}
	c.JSON(http.StatusCreated, reflexion)
}

// GET /api/users/:id/episodes?query=...&limit=10
func (h *EpisodeHandler) QueryEpisodes(c *gin.Context) {
	userID, ok := parseUserID(c)
	if !ok {
		return
	}
	query := c.Query("query")
	if query == "" {
		RespondError(c, http.StatusBadRequest, "missing_query", fmt.Errorf("query parameter required"))
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
	episodes := h.memorySvc.QueryExperiences(c.Request.Context(), userID, query, limit)
	RespondOK(c, gin.H{"episodes": episodes})
}
