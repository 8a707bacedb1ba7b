package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"story-server/internal/ai"
	"story-server/internal/config"
	"story-server/internal/database"
	"story-server/internal/generator"
	"story-server/internal/handler"
	appLogger "story-server/internal/logger"
	"story-server/internal/messaging"
	"story-server/internal/middleware"
	"story-server/internal/repository"
	"story-server/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
)

func main() {
	// Стандартный log для самых ранних ошибок, до инициализации zap
	log.Println("Запуск Story Server...")

	if err := godotenv.Load(); err != nil {
		log.Println("Файл .env не найден, используются переменные окружения")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger, err := appLogger.New(appLogger.Config{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
	})
	if err != nil {
		log.Fatalf("Не удалось инициализировать логгер: %v", err)
	}
	defer logger.Sync()
	logger.Info("Логгер инициализирован", zap.String("logLevel", cfg.LogLevel))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- PostgreSQL ---
	pool, err := database.NewPool(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Не удалось подключиться к PostgreSQL", zap.Error(err))
	}
	defer pool.Close()

	if err := database.ApplyMigrations(pool); err != nil {
		logger.Fatal("Не удалось применить миграции", zap.Error(err))
	}
	logger.Info("Миграции применены")

	// --- Redis (блокировка продолжений per-story) ---
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("Не удалось подключиться к Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Подключено к Redis", zap.String("addr", cfg.RedisAddr))

	// --- RabbitMQ (очередь задач обложек) ---
	zlog := zerolog.New(os.Stdout).With().Timestamp().Str("service", "story-server").Logger()
	coverPublisher, err := messaging.NewRabbitMQCoverPublisher(cfg.RabbitMQURL, cfg.CoverTaskQueue, zlog)
	if err != nil {
		logger.Fatal("Не удалось подключиться к RabbitMQ", zap.Error(err))
	}
	defer coverPublisher.Close()

	// --- AI клиент и оракул близости ---
	aiClient, err := ai.NewClient(cfg, logger)
	if err != nil {
		logger.Fatal("Не удалось создать AI клиент", zap.Error(err))
	}
	scorer, err := ai.NewOllamaSimilarityScorer(cfg, logger)
	if err != nil {
		logger.Fatal("Не удалось создать scorer близости", zap.Error(err))
	}

	// --- Репозитории ---
	storyRepo := repository.NewPgStoryRepository(pool, logger)
	pageRepo := repository.NewPgPageRepository(pool, logger)
	characterRepo := repository.NewPgCharacterRepository(pool, logger)
	relationshipRepo := repository.NewPgRelationshipRepository(pool, logger)
	contextRepo := repository.NewPgContextRepository(pool, logger)
	eventRepo := repository.NewPgEventRepository(pool, logger)
	critiqueRepo := repository.NewPgCritiqueRepository(pool, logger)
	continuityRepo := repository.NewPgContinuityRepository(pool, logger)
	storyLocker := repository.NewRedisStoryLock(redisClient, cfg.StoryLockTTL, logger)

	// --- RabbitMQ (результаты обложек от image-generator) ---
	coverResults, err := messaging.NewRabbitMQCoverResultConsumer(cfg.RabbitMQURL, cfg.CoverResultQueue, storyRepo, zlog)
	if err != nil {
		logger.Fatal("Не удалось подключиться к очереди результатов обложек", zap.Error(err))
	}
	defer coverResults.Close()

	if err := coverResults.Start(ctx); err != nil {
		logger.Fatal("Не удалось запустить consumer результатов обложек", zap.Error(err))
	}

	// --- Генерация ---
	agents := generator.NewAgents(aiClient, cfg.AIExtractModel, logger)
	assembler := generator.NewContextAssembler(storyRepo, contextRepo, characterRepo, eventRepo, relationshipRepo, logger)
	updater := generator.NewStateUpdater(agents, characterRepo, relationshipRepo, contextRepo, eventRepo, critiqueRepo, continuityRepo, logger)
	names := generator.NewRandomUserNameProvider(cfg.NamesAPIURL, cfg.NamesAPITimeout, logger)
	pipeline := generator.NewPipeline(cfg, agents, scorer, updater, assembler, names, logger)

	storyService := service.NewStoryService(pipeline, updater, storyRepo, pageRepo, storyLocker, coverPublisher, cfg.AIModel, logger)
	storyHandler := handler.NewStoryHandler(storyService, logger)

	// --- Gin ---
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ZapLoggingMiddlewareForGin(logger))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	prom := ginprometheus.NewPrometheus("gin")
	prom.Use(router)

	storyHandler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("HTTP сервер запускается", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Ошибка запуска HTTP сервера", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Получен сигнал завершения, останавливаем сервер...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Ошибка при остановке HTTP сервера", zap.Error(err))
	}

	logger.Info("Story Server остановлен")
}
