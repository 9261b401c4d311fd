package router

import (
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"realtime-chat/internal/auth"
	"realtime-chat/internal/handler"
	"realtime-chat/internal/hub"
	"realtime-chat/internal/metrics"
	"realtime-chat/internal/middleware"
	"realtime-chat/internal/service"
	"realtime-chat/internal/websocket"
)

// Config holds router dependencies
type Config struct {
	DB          *gorm.DB
	Redis       *redis.Client // optional
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	JWT         *auth.JWTManager
	Users       service.UserService
	Messages    service.MessageService
	Presence    *hub.Presence
	Sessions    handler.SessionOpener
	WebSocket   websocket.Options
	BasePath    string
	CORSOrigins []string
}

// Setup sets up the router with all routes and middleware
func Setup(cfg Config) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Recovery(cfg.Logger))
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.CORS(cfg.CORSOrigins))
	router.Use(middleware.Metrics(cfg.Metrics))

	authHandler := handler.NewAuthHandler(cfg.Users, cfg.JWT, cfg.Logger)
	messageHandler := handler.NewMessageHandler(cfg.Messages, cfg.Logger)
	presenceHandler := handler.NewPresenceHandler(cfg.Presence)
	healthHandler := handler.NewHealthHandler(cfg.DB, cfg.Redis)
	wsHandler := handler.NewWSHandler(cfg.Sessions, cfg.WebSocket, cfg.CORSOrigins, cfg.Logger)

	// Health checks and metrics stay at the root for the kubelet and Prometheus
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", wsHandler.HandleWebSocket)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := router.Group(cfg.BasePath)
	{
		api.GET("/health", healthHandler.APIHealth)
		api.POST("/auth/login", authHandler.Login)

		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(cfg.JWT))
		{
			authenticated.GET("/presence/online", presenceHandler.GetOnlineUsers)
			authenticated.GET("/rooms/:room/messages", messageHandler.GetMessages)
		}
	}

	return router
}
