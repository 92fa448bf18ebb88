package server

import (
	"log"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"numera.app/backend/internal/config"
	"numera.app/backend/internal/emailqueue"
	"numera.app/backend/internal/events"
	"numera.app/backend/internal/gateway"
	"numera.app/backend/internal/handler"
	"numera.app/backend/internal/middleware"
	"numera.app/backend/internal/notify"
	"numera.app/backend/internal/repository"
	"numera.app/backend/internal/service"
)

type Server struct {
	engine      *gin.Engine
	db          *gorm.DB
	redisClient *redis.Client
	emailQueue  *emailqueue.Publisher

	// Trigger is exposed so the business modules can declare their
	// notifications at wiring time.
	Trigger *notify.Trigger
}

func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) *Server {
	userRepo := repository.NewUserRepository(db)
	companyRepo := repository.NewCompanyRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	bus := events.NewBus()

	authMiddleware := middleware.NewAuthMiddleware(userRepo, cfg.JWTSecret)
	hub := gateway.NewHub(authMiddleware)
	hub.Register(bus)

	settingsSvc := service.NewSettingsService(settingsRepo, redisClient)
	validator := service.NewRecipientValidator(userRepo)
	dispatcher := service.NewDispatcher(notificationRepo, userRepo, settingsSvc, validator, bus)
	notificationSvc := service.NewNotificationService(notificationRepo, hub)

	resolver := notify.NewResolver(userRepo)
	listener := notify.NewListener(dispatcher, resolver, companyRepo)
	listener.Register(bus)
	trigger := notify.NewTrigger(bus)

	emailQueue, err := emailqueue.New(cfg.RabbitMQURL, cfg.EmailExchange, notificationRepo)
	if err != nil {
		log.Printf("[WARN] email queue unavailable, falling back to log-only: %v", err)
		emailQueue, _ = emailqueue.New("", cfg.EmailExchange, notificationRepo)
	}
	emailQueue.Register(bus)

	notificationHandler := handler.NewNotificationHandler(notificationSvc, hub)
	settingsHandler := handler.NewSettingsHandler(settingsSvc, companyRepo)
	adminHandler := handler.NewAdminHandler(dispatcher)

	router := gin.New()
	setupCORS(router, cfg)
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	api := router.Group("/api")

	// The websocket endpoint authenticates inside the gateway handshake, so
	// it sits outside the middleware group.
	api.GET("/notifications/ws", notificationHandler.HandleWebSocket)

	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		adminGroup := protected.Group("/admin")
		adminGroup.Use(authMiddleware.RequireAdmin())
		{
			adminGroup.POST("/test-notification", adminHandler.SendTestNotification)
		}

		protected.GET("/notifications", notificationHandler.GetNotifications)
		protected.GET("/notifications/unread-count", notificationHandler.UnreadCount)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllAsRead)
		protected.PUT("/notifications/:id/read", notificationHandler.MarkAsRead)
		protected.PUT("/notifications/:id/archive", notificationHandler.Archive)

		protected.GET("/notifications/settings", settingsHandler.GetSettings)
		protected.PUT("/notifications/settings", settingsHandler.UpdateAllSettings)
		protected.PUT("/notifications/settings/:module", settingsHandler.UpdateModuleSettings)
	}

	return &Server{
		engine:      router,
		db:          db,
		redisClient: redisClient,
		emailQueue:  emailQueue,
		Trigger:     trigger,
	}
}

func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

func (s *Server) Close() {
	if s.emailQueue != nil {
		if err := s.emailQueue.Close(); err != nil {
			log.Printf("[WARN] closing email queue: %v", err)
		}
	}
}

func setupCORS(router *gin.Engine, cfg *config.Config) {
	origins := []string{"http://localhost:3000"}
	if cfg.AllowedOrigins != "" {
		origins = strings.Split(cfg.AllowedOrigins, ",")
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
