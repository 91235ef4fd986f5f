package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"coalfire/server/internal/api"
	"coalfire/server/internal/config"
	"coalfire/server/internal/database"
	"coalfire/server/internal/models"
	"coalfire/server/internal/queue"
	"coalfire/server/internal/services"
	"coalfire/server/internal/utils"
)

func main() {
	// Загружаем переменные окружения из .env файла (если существует)
	// Игнорируем ошибку, если файл не найден (для production окружений)
	if err := godotenv.Load(); err == nil {
		config.GetLogger().Info("✅ Переменные окружения загружены из .env файла")
	}

	cfg := config.Load()
	log := config.InitLogger(cfg.Environment)

	// Логируем наличие DATABASE_URL (без пароля)
	safeURL := cfg.DatabaseURL
	if idx := strings.Index(safeURL, "@"); idx > 0 {
		if schemeIdx := strings.Index(safeURL, "://"); schemeIdx > 0 {
			safeURL = safeURL[:schemeIdx+3] + "***@" + safeURL[idx+1:]
		}
	}
	log.Infof("📋 DATABASE_URL: %s", safeURL)

	// Подключение к PostgreSQL. Без БД сервис не имеет смысла:
	// и импорт, и прогнозы пишут в нее.
	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ PostgreSQL connection failed: %v", err)
	}
	defer database.ClosePostgres(db)

	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	log.Info("✅ Database migrations completed")

	// Redis опционален: без него работаем без кеша прогнозов
	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	var redisUtil *utils.RedisClient
	if err != nil {
		log.Warnf("⚠️ Redis connection failed: %v (continuing without Redis)", err)
		redisClient = nil
	} else {
		redisUtil = utils.NewRedisClient(redisClient)
	}
	defer database.CloseRedis(redisClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// RabbitMQ: подключение с повторами идет в фоне, consumer'ы
	// стартуют после готовности шлюза
	gateway := queue.NewGateway(cfg.RabbitMQURL, log)
	defer gateway.Close()
	go func() {
		if err := gateway.Connect(ctx); err != nil {
			log.Errorf("❌ Не удалось подключиться к RabbitMQ после всех попыток: %v", err)
		}
	}()

	// Сервисы
	resolver := services.NewEntityResolver(log)
	suppliesService := services.NewSuppliesService(db, resolver, log)
	firesService := services.NewFiresService(db, resolver, log)
	temperatureService := services.NewTemperatureService(db, resolver, cfg, log)
	weatherService := services.NewWeatherService(db, log)

	mlClient := services.NewMLClient(cfg, log)
	notificationService := services.NewNotificationService(db, log)

	// Интерфейс кеша остается nil, если Redis недоступен
	var cache services.Cache
	if redisUtil != nil {
		cache = redisUtil
	}

	dataImportProcessor := services.NewDataImportProcessor(
		db, cfg.UploadsDir, suppliesService, firesService, temperatureService, weatherService, log)
	predictionProcessor := services.NewPredictionProcessor(db, mlClient, notificationService, cache, log)
	trainingProcessor := services.NewModelTrainingProcessor(db, mlClient, cache, log)

	uploadService := services.NewUploadService(db, cfg.UploadsDir, gateway, log)
	predictionService := services.NewPredictionService(db, cache, gateway, log)

	// Потребители очередей
	consumers := queue.NewConsumers(gateway, dataImportProcessor, predictionProcessor, trainingProcessor, redisUtil, log)
	go func() {
		if err := consumers.Start(ctx); err != nil {
			log.Errorf("❌ Не удалось запустить потребителей очередей: %v", err)
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	// Health check endpoint (должен быть до CORS)
	r.GET("/api/v1/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "CoalFire API",
			"version": "1.0.0",
		})
	})

	// Логирование всех запросов
	r.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		log.WithFields(logrus.Fields{
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Infof("🌐 %s %s", method, path)
	})

	// CORS для фронтенда
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// API routes
	apiGroup := r.Group("/api/v1")

	uploadController := api.NewUploadController(uploadService)
	dataGroup := apiGroup.Group("/data")
	{
		dataGroup.POST("/upload", uploadController.UploadCSV)
		dataGroup.GET("/uploads", uploadController.ListUploads)
		dataGroup.GET("/uploads/:id", uploadController.GetUpload)
	}

	predictionController := api.NewPredictionController(predictionService)
	predictionGroup := apiGroup.Group("/predictions")
	{
		predictionGroup.POST("/calculate", predictionController.Calculate)
		predictionGroup.POST("/batch", predictionController.CalculateBatch)
		predictionGroup.GET("", predictionController.List)
		predictionGroup.GET("/latest/:shtabelId", predictionController.Latest)
	}
	apiGroup.POST("/models/train", predictionController.Train)
	apiGroup.GET("/metrics", predictionController.Metrics)

	notificationController := api.NewNotificationController(notificationService)
	notificationGroup := apiGroup.Group("/notifications")
	{
		notificationGroup.GET("", notificationController.List)
		notificationGroup.PUT("/:id/read", notificationController.MarkRead)
	}

	skladController := api.NewSkladController(db)
	apiGroup.GET("/sklads", skladController.GetSklads)
	apiGroup.GET("/sklads/:id/shtabels", skladController.GetShtabels)
	apiGroup.GET("/shtabels/:id", skladController.GetShtabel)

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	go func() {
		log.Infof("🚀 Сервер запущен на порту %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Ошибка HTTP сервера: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("⏳ Остановка сервера...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("❌ Ошибка остановки сервера: %v", err)
	}
	log.Info("✅ Сервер остановлен")
}
