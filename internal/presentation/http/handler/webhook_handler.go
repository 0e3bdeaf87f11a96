package handler

import (
	"io"

	"github.com/gin-gonic/gin"
	"github.com/tablelane/tablelane-api/internal/application/service"
	"github.com/tablelane/tablelane-api/internal/presentation/http/dto/response"
	"github.com/tablelane/tablelane-api/internal/presentation/http/middleware"
	"go.uber.org/zap"
)

const maxWebhookBody = 64 * 1024

// WebhookHandler receives payment provider callbacks. Signature
// verification uses the tenant's own webhook secret, so the tenant must
// be resolved from the URL before anything is trusted.
type WebhookHandler struct {
	paymentService *service.PaymentService
	providerFor    service.ProviderFactory
	logger         *zap.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(paymentService *service.PaymentService, providerFor service.ProviderFactory, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		paymentService: paymentService,
		providerFor:    providerFor,
		logger:         logger,
	}
}

// HandleStripe processes a Stripe webhook delivery for one tenant.
// Stripe retries on non-2xx, so only verification failures and real
// processing errors are reported as failures.
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	if tenant == nil || tenant.Settings.Stripe == nil {
		response.NotFound(c, "Webhook not configured")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(c, "Failed to read request body")
		return
	}

	provider := h.providerFor(tenant.Settings.Stripe)
	event, err := provider.VerifyWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature verification failed",
			zap.String("tenant_id", tenant.ID.String()),
			zap.Error(err))
		response.BadRequest(c, "Invalid webhook signature")
		return
	}

	if err := h.paymentService.HandleProviderEvent(c.Request.Context(), tenant.ID, event); err != nil {
		h.logger.Error("webhook processing failed",
			zap.String("tenant_id", tenant.ID.String()),
			zap.String("provider_intent_id", event.ProviderIntentID),
			zap.Error(err))
		response.Error(c, err)
		return
	}

	response.OK(c, "Webhook processed", nil)
}
