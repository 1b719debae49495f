package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"agentchat/api"
	"agentchat/config"
	"agentchat/database"
	"agentchat/middleware"
	"agentchat/models"
	"agentchat/repository"
	"agentchat/services"
)

func main() {
	if err := config.LoadConfig(); err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	db, err := database.Init(config.AppConfig.Database)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	runMigrations(db, logger)

	// Repositories
	userRepo := repository.NewUserRepository(db, logger)
	categoryRepo := repository.NewCategoryRepository(db, logger)
	agentRepo := repository.NewAgentRepository(db, logger)
	userAgentRepo := repository.NewUserAgentRepository(db, logger)
	chatRepo := repository.NewChatRepository(db, logger)
	messageRepo := repository.NewMessageRepository(db, logger)

	// Services
	providerService := services.NewProviderService(config.AppConfig.Providers, logger)
	entitlementService := services.NewEntitlementService(userAgentRepo, userRepo, agentRepo, logger)
	agentService := services.NewAgentService(chatRepo, agentRepo, config.AppConfig.Chat, logger)
	chatService := services.NewChatService(
		chatRepo, messageRepo, userRepo,
		agentService, entitlementService, providerService,
		config.AppConfig.Chat, logger,
	)

	apiHandler := api.NewAPIHandler(
		userRepo, categoryRepo, agentRepo, chatRepo, messageRepo,
		entitlementService, chatService, logger,
	)

	r := gin.New()
	r.SetTrustedProxies(nil)
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Cors())

	registerRoutes(r, apiHandler)

	addr := ":" + config.AppConfig.Server.Port
	logger.Info("starting server", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func runMigrations(db *gorm.DB, logger *zap.Logger) {
	err := db.AutoMigrate(
		&models.User{},
		&models.AgentCategory{},
		&models.Agent{},
		&models.UserAgent{},
		&models.Chat{},
		&models.Message{},
	)
	if err != nil {
		logger.Fatal("failed to auto-migrate database", zap.Error(err))
	}
}

func registerRoutes(r *gin.Engine, handler *api.APIHandler) {
	r.GET("/healthz", handler.HealthHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := r.Group("/api")
	{
		users := apiGroup.Group("/users")
		{
			users.POST("", handler.UpsertUserHandler)
			users.GET("", handler.ListUsersHandler)
			users.GET("/:id", handler.GetUserHandler)
			users.PUT("/:id", handler.UpdateUserHandler)
			users.DELETE("/:id", handler.DeactivateUserHandler)
		}

		categories := apiGroup.Group("/agent-categories")
		{
			categories.POST("", handler.CreateCategoryHandler)
			categories.GET("", handler.ListCategoriesHandler)
			categories.GET("/:id", handler.GetCategoryHandler)
			categories.PUT("/:id", handler.UpdateCategoryHandler)
			categories.DELETE("/:id", handler.DeactivateCategoryHandler)
		}

		agents := apiGroup.Group("/agents")
		{
			agents.POST("", handler.CreateAgentHandler)
			agents.GET("", handler.ListAgentsHandler)
			agents.GET("/:id", handler.GetAgentHandler)
			agents.PUT("/:id", handler.UpdateAgentHandler)
			agents.DELETE("/:id", handler.DeactivateAgentHandler)
		}

		userAgents := apiGroup.Group("/user-agents")
		{
			userAgents.POST("", handler.GrantEntitlementHandler)
			userAgents.GET("/:userId", handler.ListEntitlementsHandler)
			userAgents.GET("/:userId/:agentId/access", handler.CheckAccessHandler)
			userAgents.PUT("/:userId/:agentId", handler.ExtendEntitlementHandler)
			userAgents.DELETE("/:userId/:agentId", handler.RevokeEntitlementHandler)
		}

		chats := apiGroup.Group("/chats", middleware.Identity())
		{
			chats.POST("", handler.CreateChatHandler)
			chats.GET("", handler.ListChatsHandler)
			chats.GET("/:id", handler.GetChatHandler)
			chats.PUT("/:id", handler.UpdateChatHandler)
			chats.PATCH("/:id", handler.UpdateChatHandler)
			chats.DELETE("/:id", handler.DeactivateChatHandler)
			chats.POST("/:id/stream", handler.StreamMessageHandler)
			chats.POST("/:id/generate-title", handler.GenerateTitleHandler)
		}

		messages := apiGroup.Group("/messages", middleware.Identity())
		{
			messages.POST("", handler.SendMessageHandler)
			messages.GET("", handler.ListMessagesHandler)
			messages.GET("/search", handler.SearchMessagesHandler)
			messages.PUT("/:id", handler.UpdateMessageHandler)
			messages.DELETE("/:id", handler.DeactivateMessageHandler)
		}
	}
}
