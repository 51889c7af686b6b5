package main

import (
	"context"
	"fmt"
	"os"

	goredis "github.com/redis/go-redis/v9"

	"github.com/avocetlabs/fledge-backend/internal/db"
	"github.com/avocetlabs/fledge-backend/internal/handlers"
	"github.com/avocetlabs/fledge-backend/internal/observability"
	"github.com/avocetlabs/fledge-backend/internal/platform/envutil"
	"github.com/avocetlabs/fledge-backend/internal/platform/logger"
	"github.com/avocetlabs/fledge-backend/internal/platform/openai"
	"github.com/avocetlabs/fledge-backend/internal/platform/qdrant"
	"github.com/avocetlabs/fledge-backend/internal/repos"
	"github.com/avocetlabs/fledge-backend/internal/server"
	"github.com/avocetlabs/fledge-backend/internal/services"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()

	// Tracing + metrics
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "fledge-backend",
		Environment: envutil.Str("APP_ENV", "development"),
		Version:     envutil.Str("APP_VERSION", "dev"),
	})
	if otelShutdown != nil {
		defer func() { _ = otelShutdown(context.Background()) }()
	}
	metrics := observability.Init(log)
	metrics.StartServer(ctx, log, envutil.Str("METRICS_ADDR", ""))

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()
	metrics.StartPostgresCollector(ctx, log, thePG)

	// Redis
	redisAddr := envutil.Str("REDIS_ADDR", "localhost:6379")
	rdb := goredis.NewClient(&goredis.Options{Addr: redisAddr})
	metrics.StartRedisCollector(ctx, log, redisAddr)

	// Vector store + embeddings
	qdrantCfg, err := qdrant.ResolveConfigFromEnv()
	if err != nil {
		log.Error("Could not resolve qdrant config", "error", err)
		os.Exit(1)
	}
	vectorStore, err := qdrant.NewVectorStore(log, qdrantCfg)
	if err != nil {
		log.Error("Could not init qdrant vector store", "error", err)
		os.Exit(1)
	}
	vectorStore = observability.NewInstrumentedVectorStore(vectorStore, metrics)
	openaiClient, err := openai.NewClient(log)
	if err != nil {
		log.Error("Could not init OpenAI client", "error", err)
		os.Exit(1)
	}
	openaiClient = observability.NewInstrumentedEmbedder(openaiClient, metrics,
		envutil.Str("OPENAI_EMBED_MODEL", "text-embedding-3-small"))

	// Repos
	log.Info("Setting up Repos from main...")
	skillRepo := repos.NewSkillRepo(thePG, log)
	reflexionRepo := repos.NewReflexionRepo(thePG, log)
	exerciseRepo := repos.NewExerciseRepo(thePG, log)
	mistakeRepo := repos.NewMistakeRepo(rdb, log)

	// Services
	log.Info("Setting up Services from main...")
	indexService := services.NewSemanticIndexService(log, openaiClient, vectorStore)
	memoryService := services.NewEpisodicMemoryService(thePG, log, reflexionRepo, indexService)
	skillService := services.NewSkillService(thePG, log, skillRepo)
	contextService := services.NewContextService(log, skillRepo, memoryService)
	scheduleService := services.NewSpacedRepetitionService(log)
	performanceService := services.NewPerformanceService(log, exerciseRepo, mistakeRepo, scheduleService, contextService, services.NewNeutralSpeciesKnowledge())
	recommendationService := services.NewRecommendationService(log, contextService, indexService, exerciseRepo, performanceService, scheduleService, metrics)
	exerciseService := services.NewExerciseService(log, exerciseRepo, indexService)

	// Handlers
	log.Info("Setting up handlers from main...")
	userHandler := handlers.NewUserHandler(log, contextService, recommendationService, scheduleService, metrics)
	attemptHandler := handlers.NewAttemptHandler(log, performanceService, metrics)
	skillHandler := handlers.NewSkillHandler(log, skillService)
	episodeHandler := handlers.NewEpisodeHandler(log, memoryService)
	exerciseHandler := handlers.NewExerciseHandler(log, exerciseService)
	mistakeHandler := handlers.NewMistakeHandler(log, performanceService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		UserHandler:     userHandler,
		AttemptHandler:  attemptHandler,
		SkillHandler:    skillHandler,
		EpisodeHandler:  episodeHandler,
		ExerciseHandler: exerciseHandler,
		MistakeHandler:  mistakeHandler,
		Metrics:         metrics,
	})

	port := envutil.Str("PORT", "8080")
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}
