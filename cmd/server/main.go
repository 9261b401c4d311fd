// @title           Realtime Chat API
// @version         1.0
// @description     Login, presence and history endpoints of the realtime chat server.

// @host      localhost:5000
// @BasePath  /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "realtime-chat/docs" // Swagger docs import

	"realtime-chat/internal/auth"
	"realtime-chat/internal/config"
	"realtime-chat/internal/database"
	"realtime-chat/internal/hub"
	"realtime-chat/internal/job"
	"realtime-chat/internal/metrics"
	"realtime-chat/internal/repository"
	"realtime-chat/internal/router"
	"realtime-chat/internal/service"
	"realtime-chat/internal/session"
	"realtime-chat/internal/websocket"
)

func main() {
	cfg, err := config.Load(getEnv("CONFIG_PATH", "configs/config.yaml"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Info("Starting Chat Server",
		zap.Int("port", cfg.Server.Port),
		zap.String("env", cfg.Server.Env),
		zap.String("base_path", cfg.Server.BasePath),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
	)

	// The chat core needs its store, so keep retrying for a while rather than
	// serving sockets that cannot persist anything.
	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 2*time.Minute)
	db, err := database.Connect(connectCtx, cfg.Database, cfg.Server.Env, 5*time.Second, logger)
	cancelConnect()
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	logger.Info("✅ Database connected, migrations completed")

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = database.NewRedis(context.Background(), cfg.Redis.URL)
		if err != nil {
			logger.Warn("⚠️  Redis unavailable, presence mirror disabled", zap.Error(err))
			redisClient = nil
		} else {
			logger.Info("✅ Redis connected")
		}
	}

	m := metrics.New()

	// Repository
	userRepo := repository.NewUserRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	// Service
	userService := service.NewUserService(userRepo, logger)
	messageService := service.NewMessageService(messageRepo, logger)
	mirror := service.NewPresenceMirror(redisClient, logger)
	mirror.Start()

	jwtManager := auth.NewJWTManager(cfg.Auth.SecretKey, cfg.Auth.TokenTTL)

	presence := hub.NewPresence()
	rooms := hub.NewRooms()
	coordinator := session.NewCoordinator(session.Config{
		Verifier:     jwtManager,
		Users:        userService,
		Messages:     messageService,
		Presence:     presence,
		Rooms:        rooms,
		Typing:       session.NewTypingTracker(cfg.Chat.TypingTTL),
		Mirror:       mirror,
		Metrics:      m,
		Logger:       logger,
		HistoryLimit: cfg.Chat.HistoryLimit,
	})

	var sqlDB *sql.DB
	if raw, err := db.DB(); err == nil {
		sqlDB = raw
	}

	scheduler := job.NewScheduler(logger)
	mustAdd(logger, scheduler, "typing-sweep", "@every 1s", job.NewTypingSweepJob(coordinator, logger))
	mustAdd(logger, scheduler, "metrics", "@every 15s", job.NewMetricsJob(presence, rooms, sqlDB, m))
	if mirror != nil {
		mustAdd(logger, scheduler, "presence-sync", "@every 1m", job.NewPresenceSyncJob(presence, mirror, logger))
	}
	scheduler.Start()

	r := router.Setup(router.Config{
		DB:       db,
		Redis:    redisClient,
		Logger:   logger,
		Metrics:  m,
		JWT:      jwtManager,
		Users:    userService,
		Messages: messageService,
		Presence: presence,
		Sessions: coordinator,
		WebSocket: websocket.Options{
			SendBuffer:     cfg.Chat.SendBuffer,
			MaxMessageSize: cfg.Chat.MaxMessageSize,
		},
		BasePath:    cfg.Server.BasePath,
		CORSOrigins: cfg.AllowedOrigins(),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("🚀 Chat Server started successfully",
			zap.String("address", srv.Addr),
			zap.String("swagger", fmt.Sprintf("http://localhost:%d/swagger/index.html", cfg.Server.Port)),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Sockets are hijacked, so srv.Shutdown does not wait for them.
	coordinator.Shutdown()
	mirror.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	select {
	case <-scheduler.Stop().Done():
	case <-ctx.Done():
		logger.Warn("Background jobs did not stop in time")
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Warn("Failed to close redis", zap.Error(err))
		}
	}
	if err := database.Close(db); err != nil {
		logger.Warn("Failed to close database", zap.Error(err))
	}

	logger.Info("Server exited gracefully")
}

func mustAdd(logger *zap.Logger, s *job.Scheduler, name, spec string, j interface{ Run() }) {
	if err := s.Add(name, spec, j); err != nil {
		logger.Fatal("Failed to schedule job", zap.String("job", name), zap.Error(err))
	}
}

// initLogger initializes the zap logger with the specified level
func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      zapLevel == zapcore.DebugLevel,
		Encoding:         "json",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
