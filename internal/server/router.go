package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/avocetlabs/fledge-backend/internal/handlers"
	"github.com/avocetlabs/fledge-backend/internal/middleware"
	"github.com/avocetlabs/fledge-backend/internal/observability"
)

type RouterConfig struct {
	UserHandler     *handlers.UserHandler
	AttemptHandler  *handlers.AttemptHandler
	SkillHandler    *handlers.SkillHandler
	EpisodeHandler  *handlers.EpisodeHandler
	ExerciseHandler *handlers.ExerciseHandler
	MistakeHandler  *handlers.MistakeHandler
	Metrics         *observability.Metrics
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))
	router.Use(otelgin.Middleware("fledge-backend"))
	router.Use(middleware.TraceRequests())
	router.Use(middleware.ObserveRequests(cfg.Metrics))

	router.GET("/healthcheck", handlers.HealthCheck)
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := router.Group("/api")
	{
		// Users
		api.GET("/users/:id/context", cfg.UserHandler.GetContext)
		api.GET("/users/:id/recommendations", cfg.UserHandler.GetRecommendations)
		api.GET("/users/:id/next-exercise", cfg.UserHandler.GetNextExercise)
		api.GET("/users/:id/due-reviews", cfg.UserHandler.GetDueReviews)
		// Attempts
		api.POST("/users/:id/attempts", cfg.AttemptHandler.RecordAttempt)
		api.GET("/users/:id/exercises/:exercise_id/predicted-difficulty", cfg.AttemptHandler.GetPredictedDifficulty)
		// Skills
		api.POST("/users/:id/skills", cfg.SkillHandler.UpdateSkill)
		api.GET("/users/:id/skills", cfg.SkillHandler.ListSkills)
		// Episodes
		api.POST("/users/:id/episodes", cfg.EpisodeHandler.RecordEpisode)
		api.GET("/users/:id/episodes", cfg.EpisodeHandler.QueryEpisodes)
		// Exercises
		api.POST("/exercises", cfg.ExerciseHandler.CreateExercise)
		api.GET("/exercises/:id", cfg.ExerciseHandler.GetExercise)
		// Common mistakes
		api.POST("/exercise-types/:type/mistakes", cfg.MistakeHandler.RecordMistake)
		api.GET("/exercise-types/:type/mistakes", cfg.MistakeHandler.GetMistakes)
	}

	return router
}
