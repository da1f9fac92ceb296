package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yourusername/lucky-wheel/internal/config"
	"github.com/yourusername/lucky-wheel/internal/handler"
	"github.com/yourusername/lucky-wheel/internal/middleware"
	pgRepo "github.com/yourusername/lucky-wheel/internal/repository/postgres"
	redisRepo "github.com/yourusername/lucky-wheel/internal/repository/redis"
	"github.com/yourusername/lucky-wheel/internal/service"
	"github.com/yourusername/lucky-wheel/internal/service/spinmanager"
	ws "github.com/yourusername/lucky-wheel/internal/websocket"
	"github.com/yourusername/lucky-wheel/pkg/database"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("Failed to load config")
	}
	setupLogger(cfg.Log)

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := database.MigrateDB(db, cfg.Database.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()
	log.Info().Msg("Connected to Redis")

	participantRepo := pgRepo.NewParticipantRepo(db)
	spinLogRepo := pgRepo.NewSpinLogRepo(db)
	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize CacheRepo")
	}

	pubSubProvider := newPubSubProvider(cfg, redisClient)
	defer func() {
		if err := pubSubProvider.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing PubSub provider")
		}
	}()

	wsHub := ws.NewHub(cfg.WebSocket, pubSubProvider)
	go wsHub.Run()
	wsManager := ws.NewManager(wsHub)

	gameService := service.NewGameService(cacheRepo, participantRepo, wsManager)
	participantService := service.NewParticipantService(participantRepo, gameService, wsManager, nil)
	spinLogService := service.NewSpinLogService(spinLogRepo, gameService)

	var spins handler.SpinController
	var orchestrator *spinmanager.Orchestrator
	if cfg.Server.Authoritative {
		orchestrator = spinmanager.NewOrchestrator(spinmanager.ConfigFromWheel(cfg.Wheel), &spinmanager.Dependencies{
			Store:       participantService,
			Broadcaster: wsManager,
			Gate:        gameService,
			Recorder:    spinLogService,
		})

		restoreCtx, restoreCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := orchestrator.Restore(restoreCtx); err != nil {
			log.Error().Err(err).Msg("Failed to restore game state, starting at round 1")
		}
		restoreCancel()

		gameService.SetStatusProvider(orchestrator)
		spins = orchestrator
	} else {
		log.Info().Msg("Instance is not authoritative, spin commands are disabled")
	}

	participantHandler := handler.NewParticipantHandler(participantService)
	gameHandler := handler.NewGameHandler(gameService, spins)
	spinLogHandler := handler.NewSpinLogHandler(spinLogService)
	wsHandler := handler.NewWSHandler(wsHub, wsManager, gameService, cfg.CORS.AllowedOrigins, ws.ClientConfigFrom(cfg.WebSocket))

	rateLimiter := middleware.NewRateLimiter(redisClient)

	router := gin.Default()
	if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
		log.Warn().Err(err).Msg("Failed to set trusted proxies")
	}
	router.Use(cors.New(corsConfig(cfg.CORS)))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "instance_id": wsHub.GetInstanceID()})
	})

	api := router.Group("/api")
	{
		participants := api.Group("/participants")
		{
			participants.GET("", participantHandler.List)
			participants.GET("/segments", participantHandler.Segments)
			participants.POST("", rateLimiter.Limit(middleware.CheckinRateLimitConfig(cfg.Checkin)), participantHandler.CheckIn)
			participants.DELETE("", participantHandler.DeleteAll)

			byID := participants.Group("/:id")
			byID.Use(middleware.ExtractUUIDParam("id", "participantID"))
			{
				byID.PATCH("", participantHandler.UpdateName)
				byID.DELETE("", participantHandler.Delete)
			}
		}

		game := api.Group("/game")
		{
			game.GET("", gameHandler.GetGame)
			game.POST("/lock", gameHandler.Lock)
			game.POST("/unlock", gameHandler.Unlock)
			game.POST("/spin", gameHandler.Spin)
			game.POST("/commit", gameHandler.Commit)
			game.POST("/reset", gameHandler.Reset)
		}

		spinLog := api.Group("/spin-log")
		{
			spinLog.GET("", spinLogHandler.Stats)
			spinLog.DELETE("", spinLogHandler.Clear)
			spinLog.GET("/export", spinLogHandler.Export)
		}

		api.GET("/ws/metrics", wsHandler.Metrics)
	}

	router.GET("/ws", wsHandler.HandleConnection)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	if orchestrator != nil {
		orchestrator.Close()
	}
	wsHub.Close()

	log.Info().Msg("Server exited properly")
}

func setupLogger(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// newPubSubProvider picks the cluster fan-out transport. Any failure falls
// back to NoOp so a single instance keeps working.
func newPubSubProvider(cfg *config.Config, redisClient redis.UniversalClient) ws.PubSubProvider {
	if !cfg.WebSocket.Cluster.Enabled {
		return &ws.NoOpPubSub{}
	}

	switch cfg.WebSocket.Cluster.Provider {
	case "nats":
		nc, err := database.NewNatsConn(cfg.Nats)
		if err != nil {
			log.Error().Err(err).Msg("NATS unavailable, WebSocket clustering disabled")
			return &ws.NoOpPubSub{}
		}
		provider, err := ws.NewNatsPubSub(nc)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create NATS PubSub, WebSocket clustering disabled")
			nc.Close()
			return &ws.NoOpPubSub{}
		}
		log.Info().Str("url", cfg.Nats.URL).Msg("NATS PubSub initialized")
		return provider
	default:
		provider, err := ws.NewRedisPubSub(redisClient)
		if err != nil {
			log.Error().Err(err).Msg("Failed to create Redis PubSub, WebSocket clustering disabled")
			return &ws.NoOpPubSub{}
		}
		log.Info().Msg("Redis PubSub initialized")
		return provider
	}
}

func corsConfig(cfg config.CORSConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.AllowedOrigins
	}
	return c
}
