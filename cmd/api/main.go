package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/tablelane/tablelane-api/internal/application/service"
	"github.com/tablelane/tablelane-api/internal/config"
	"github.com/tablelane/tablelane-api/internal/infrastructure/database"
	"github.com/tablelane/tablelane-api/internal/infrastructure/logger"
	"github.com/tablelane/tablelane-api/internal/infrastructure/repository"
	"github.com/tablelane/tablelane-api/internal/notification"
	"github.com/tablelane/tablelane-api/internal/presentation/http/handler"
	"github.com/tablelane/tablelane-api/internal/presentation/http/routes"
	"github.com/tablelane/tablelane-api/pkg/utils"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	zapLogger, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	// Connect to database
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run auto-migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Seed demo data
	if err := database.SeedDemoData(db); err != nil {
		log.Printf("Warning: Failed to seed demo data: %v", err)
	}

	// Initialize JWT manager
	jwtManager := utils.NewJWTManager(cfg.JWT.Secret, cfg.JWT.ExpiryHours)

	// Initialize repositories
	tenantRepo := repository.NewTenantRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	menuRepo := repository.NewMenuItemRepository(db)
	tableRepo := repository.NewTableRepository(db)
	intentRepo := repository.NewPaymentIntentRepository(db)
	idempotencyRepo := repository.NewIdempotencyRepository(db)

	// Start the notification fan-out
	broadcaster := notification.NewBroadcaster(zapLogger)
	broadcaster.Start()
	defer broadcaster.Stop()

	// Initialize services
	orderService := service.NewOrderService(orderRepo, menuRepo, tableRepo, tenantRepo, broadcaster, zapLogger)
	paymentService := service.NewPaymentService(orderRepo, intentRepo, tenantRepo, service.DefaultProviderFactory, broadcaster, zapLogger)
	sweeperService := service.NewSweeperService(orderRepo, cfg.Sweeper.MaxPendingAge, cfg.Sweeper.Interval, zapLogger)

	// Start the abandoned-order sweeper
	sweeperService.Start()
	defer sweeperService.Stop()

	// Initialize handlers
	handlers := &routes.Handlers{
		Order:   handler.NewOrderHandler(orderService),
		Public:  handler.NewPublicHandler(orderService, paymentService, menuRepo, tableRepo),
		Webhook: handler.NewWebhookHandler(paymentService, service.DefaultProviderFactory, zapLogger),
		Socket:  handler.NewSocketHandler(broadcaster, jwtManager, zapLogger),
		Admin:   handler.NewAdminHandler(sweeperService),
	}

	// Setup routes
	router := routes.Setup(handlers, &routes.Deps{
		JWTManager:      jwtManager,
		Cfg:             cfg,
		Logger:          zapLogger,
		TenantRepo:      tenantRepo,
		IdempotencyRepo: idempotencyRepo,
	})

	port := cfg.App.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting %s server on port %s...", cfg.App.Name, port)
	log.Printf("Environment: %s", cfg.App.Env)

	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
