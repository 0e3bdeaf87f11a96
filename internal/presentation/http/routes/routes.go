package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tablelane/tablelane-api/internal/config"
	domainRepo "github.com/tablelane/tablelane-api/internal/domain/repository"
	"github.com/tablelane/tablelane-api/internal/presentation/http/handler"
	"github.com/tablelane/tablelane-api/internal/presentation/http/middleware"
	"github.com/tablelane/tablelane-api/pkg/utils"
	"go.uber.org/zap"
)

// Handlers holds all the HTTP handlers used for route registration.
type Handlers struct {
	Order   *handler.OrderHandler
	Public  *handler.PublicHandler
	Webhook *handler.WebhookHandler
	Socket  *handler.SocketHandler
	Admin   *handler.AdminHandler
}

// Deps holds shared dependencies needed by the routes.
type Deps struct {
	JWTManager      *utils.JWTManager
	Cfg             *config.Config
	Logger          *zap.Logger
	TenantRepo      domainRepo.TenantRepository
	IdempotencyRepo domainRepo.IdempotencyRepository
}

// Setup creates the Gin router and registers all routes.
func Setup(h *Handlers, deps *Deps) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.LoggerMiddleware(deps.Logger))
	router.Use(middleware.CORSMiddleware(&deps.Cfg.CORS))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": deps.Cfg.App.Name,
		})
	})

	idempotency := middleware.Idempotency(middleware.IdempotencyConfig{Repo: deps.IdempotencyRepo})

	rateLimiter := middleware.NewTenantRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: deps.Cfg.RateLimit.RequestsPerSecond,
		BurstSize:         deps.Cfg.RateLimit.Burst,
		CleanupInterval:   5 * time.Minute,
		EntryTTL:          10 * time.Minute,
	})

	// Staff routes: authenticated, tenant-scoped through the JWT
	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(deps.JWTManager))
	v1.Use(middleware.RequireTenant())
	v1.Use(rateLimiter.Middleware())
	v1.Use(idempotency)
	{
		orders := v1.Group("/orders")
		{
			orders.POST("", h.Order.Create)
			orders.GET("", h.Order.List)
			orders.GET("/:id", h.Order.Get)
			orders.PATCH("/:id", h.Order.Modify)
			orders.POST("/:id/cancel", h.Order.Cancel)
			orders.POST("/:id/pay", h.Order.MarkPaid)
			orders.POST("/:id/close", h.Order.Close)
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.RequireRole("admin", "manager"))
		{
			admin.POST("/orders/sweep", h.Admin.Sweep)
			admin.GET("/orders/pending-count", h.Admin.PendingCount)
			admin.GET("/orders/abandoned", h.Admin.ListAbandoned)
		}
	}

	// Guest QR routes: no auth, tenant resolved from the URL slug
	public := router.Group("/public/:tenant_slug")
	public.Use(middleware.TenantFromSlug(deps.TenantRepo))
	public.Use(rateLimiter.Middleware())
	public.Use(idempotency)
	{
		public.GET("/menu", h.Public.GetMenu)
		public.POST("/orders", h.Public.CreateOrder)
		public.GET("/orders/:id", h.Public.GetOrder)
		public.POST("/orders/:id/payment-intent", h.Public.CreatePaymentIntent)
		public.POST("/orders/payments/confirm", h.Public.ConfirmPayment)
		public.GET("/orders/:id/payment-status", h.Public.GetPaymentStatus)
	}

	// Provider webhooks: signature-verified, never rate limited
	router.POST("/webhooks/stripe/:tenant_slug",
		middleware.TenantFromSlug(deps.TenantRepo),
		h.Webhook.HandleStripe)

	// Station fan-out socket
	router.GET("/ws", h.Socket.Serve)

	return router
}
