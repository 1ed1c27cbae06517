package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/yourusername/rit-api/internal/config"
	"github.com/yourusername/rit-api/internal/domain/repository"
	"github.com/yourusername/rit-api/internal/handler"
	"github.com/yourusername/rit-api/internal/middleware"
	pgRepo "github.com/yourusername/rit-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/rit-api/internal/repository/redis"
	"github.com/yourusername/rit-api/internal/service/assessment"
	"github.com/yourusername/rit-api/pkg/database"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString(), cfg.Database.LogLevel)
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	// Применяем миграции
	if err := database.MigrateDB(db); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Redis нужен для кеша заданий, лимита ответов и распределённых сессий
	needsRedis := cfg.Assessment.SessionBackend == config.SessionBackendRedis ||
		cfg.Assessment.ItemCacheTTL > 0 || cfg.Assessment.SubmitRateLimit > 0
	var redisClient redis.UniversalClient
	var cacheRepo *redisRepo.CacheRepo
	if needsRedis {
		redisClient, err = database.NewUniversalRedisClient(cfg.Redis)
		if err != nil {
			log.Printf("Failed to connect to Redis: %v", err)
			os.Exit(1)
		}
		log.Println("Successfully connected to Redis")

		cacheRepo, err = redisRepo.NewCacheRepo(redisClient)
		if err != nil {
			log.Printf("Failed to initialize CacheRepo: %v", err)
			os.Exit(1)
		}
	}

	// Инициализируем репозитории
	var itemRepo repository.ItemRepository = pgRepo.NewItemRepo(db)
	if cacheRepo != nil && cfg.Assessment.ItemCacheTTL > 0 {
		itemRepo = redisRepo.NewItemCache(itemRepo, cacheRepo, cfg.Assessment.ItemCacheTTL)
		log.Printf("Кеш банка заданий включён (TTL %s)", cfg.Assessment.ItemCacheTTL)
	}
	assessmentRepo := pgRepo.NewAssessmentRepo(db)
	settingsRepo := pgRepo.NewSettingsRepo(db)
	studentRepo := pgRepo.NewStudentRepo(db)

	// Хранилище сессий
	var sessions assessment.SessionStore
	switch cfg.Assessment.SessionBackend {
	case config.SessionBackendRedis:
		sessions = assessment.NewRedisSessionStore(cacheRepo, cfg.Assessment.SessionTTL)
		log.Println("Сессии тестирования хранятся в Redis")
	default:
		sessions = assessment.NewMemorySessionStore()
		log.Println("Сессии тестирования хранятся в памяти процесса")
	}

	// --- Инициализация конфигурации тестирования ---
	assessmentConfig := assessment.DefaultConfig()
	assessmentConfig.MinDifficulty = cfg.Assessment.MinDifficulty
	assessmentConfig.MaxDifficulty = cfg.Assessment.MaxDifficulty
	assessmentConfig.DefaultStartingDifficulty = cfg.Assessment.DefaultStartingDifficulty
	assessmentConfig.DefaultQuestionCount = cfg.Assessment.DefaultQuestionCount
	assessmentConfig.SelectionWindow = cfg.Assessment.SelectionWindow
	assessmentConfig.SessionTTL = cfg.Assessment.SessionTTL
	assessmentConfig.DuplicateStartPolicy = cfg.Assessment.DuplicateStartPolicy

	manager, err := assessment.NewManager(assessmentConfig, assessment.Dependencies{
		Items:       itemRepo,
		Assessments: assessmentRepo,
		Settings:    settingsRepo,
		Students:    studentRepo,
		Sessions:    sessions,
	})
	if err != nil {
		log.Printf("Failed to initialize assessment manager: %v", err)
		os.Exit(1)
	}

	// Контекст для управления жизненным циклом фоновых горутин
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Фоновая очистка брошенных сессий
	go manager.RunSweeper(ctx, cfg.Assessment.SweepInterval)

	// Инициализируем обработчики
	assessmentHandler := handler.NewAssessmentHandler(manager)

	// Инициализируем роутер Gin
	router := gin.Default()

	isProduction := gin.Mode() == gin.ReleaseMode
	if isProduction {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	// Настройка CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	submitLimit := func(c *gin.Context) { c.Next() }
	if redisClient != nil && cfg.Assessment.SubmitRateLimit > 0 {
		rateLimiter := middleware.NewRateLimiter(middleware.NewRedisCounter(redisClient))
		submitLimit = rateLimiter.LimitByContextKey(
			middleware.SubmitRateLimitConfig(cfg.Assessment.SubmitRateLimit), "assessmentID")
	}

	// Настраиваем маршруты API
	api := router.Group("/api")
	{
		assessments := api.Group("/assessments")
		{
			assessments.POST("", assessmentHandler.StartAssessment)

			// Группа маршрутов, требующих assessmentID
			withID := assessments.Group("/:id")
			withID.Use(middleware.ExtractUintParam("id", "assessmentID"))
			{
				withID.POST("/answers", submitLimit, assessmentHandler.SubmitAnswer)
				withID.GET("/session", assessmentHandler.GetSession)
				withID.POST("/complete", assessmentHandler.CompleteAssessment)
			}
		}
	}

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Запускаем сервер в горутине
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	// После получения SIGINT или SIGTERM вызываем cancel() для завершения горутин
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	cancel()

	// Создаем контекст с таймаутом для graceful shutdown сервера
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Printf("Error closing Redis client: %v", err)
		}
	}
	if sqlDB, err := database.GetSQLDB(db); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}

	log.Println("Server exited properly")
}
