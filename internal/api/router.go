package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/CodeXGautam/mail-tracker/internal/api/handlers"
	"github.com/CodeXGautam/mail-tracker/internal/api/middleware"
	"github.com/CodeXGautam/mail-tracker/internal/config"
	"github.com/CodeXGautam/mail-tracker/internal/logstore"
	"github.com/CodeXGautam/mail-tracker/internal/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// SetupRouter initializes the Gin router with all routes configured.
// db may be nil: every record operation then degrades to the log store.
func SetupRouter(db *gorm.DB, cfg *config.Config, logs *logstore.Store, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-API-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	jwtManager := middleware.NewJWTManager(cfg.JWTSecret, middleware.DefaultTokenExpiry)

	userService := services.NewUserService(db, logs, logger)
	emailService := services.NewEmailService(db, logs, logger)

	authHandler := handlers.NewAuthHandler(userService, jwtManager, logger)
	emailsHandler := handlers.NewEmailsHandler(emailService, logs, logger)
	logsHandler := handlers.NewLogsHandler(logs, logger)
	pixelHandler := handlers.NewPixelHandler(emailService, logs, logger)

	// Pixel and log endpoints carry no auth: the recipient's mail
	// client is never an authenticated party
	router.GET("/pixel.png", pixelHandler.Serve)
	router.GET("/logs", logsHandler.List)
	router.DELETE("/logs", logsHandler.Clear)

	router.GET("/health", func(c *gin.Context) {
		database := "Disconnected"
		if emailService.Available() {
			database = "Connected"
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"database":  database,
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := router.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/auto-create", authHandler.AutoCreate)

		authProtected := auth.Group("", middleware.JWTAuth(jwtManager, userService))
		{
			authProtected.GET("/profile", authHandler.GetProfile)
			authProtected.PUT("/profile", authHandler.UpdateProfile)
			authProtected.POST("/api-key", authHandler.NewAPIKey)
		}
	}

	// Record CRUD rides on the per-user API key issued to the extension
	keyed := router.Group("", middleware.APIKeyAuth(userService))
	{
		keyed.POST("/emails", emailsHandler.Upsert)
		keyed.GET("/emails", emailsHandler.List)
		keyed.GET("/emails/:emailId", emailsHandler.Get)
	}

	// Bulk clear is deliberately unscoped, mirroring the log clear
	router.DELETE("/emails", emailsHandler.Clear)

	return router
}
