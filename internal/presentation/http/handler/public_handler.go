package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tablelane/tablelane-api/internal/application/service"
	"github.com/tablelane/tablelane-api/internal/domain/enum"
	"github.com/tablelane/tablelane-api/internal/domain/repository"
	"github.com/tablelane/tablelane-api/internal/presentation/http/dto/request"
	"github.com/tablelane/tablelane-api/internal/presentation/http/dto/response"
	"github.com/tablelane/tablelane-api/internal/presentation/http/middleware"
	"github.com/tablelane/tablelane-api/pkg/apperror"
)

// PublicHandler serves the guest-facing QR self-service flow. No
// authentication; the tenant comes from the URL slug and every lookup
// stays scoped to it.
type PublicHandler struct {
	orderService   *service.OrderService
	paymentService *service.PaymentService
	menuRepo       repository.MenuItemRepository
	tableRepo      repository.TableRepository
}

// NewPublicHandler creates a new public handler
func NewPublicHandler(
	orderService *service.OrderService,
	paymentService *service.PaymentService,
	menuRepo repository.MenuItemRepository,
	tableRepo repository.TableRepository,
) *PublicHandler {
	return &PublicHandler{
		orderService:   orderService,
		paymentService: paymentService,
		menuRepo:       menuRepo,
		tableRepo:      tableRepo,
	}
}

// GetMenu lists the tenant's available menu items
func (h *PublicHandler) GetMenu(c *gin.Context) {
	items, err := h.menuRepo.ListAvailable(c.Request.Context(), middleware.GetTenantID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Menu retrieved successfully", items)
}

// CreateOrder places a guest order from a scanned table QR code. The
// order starts pending and only reaches the kitchen once payment
// settles.
func (h *PublicHandler) CreateOrder(c *gin.Context) {
	var req request.CreateQROrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	tenantID := middleware.GetTenantID(c)

	table, err := h.tableRepo.GetByQRCode(c.Request.Context(), tenantID, req.QRCode)
	if err != nil {
		response.Error(c, err)
		return
	}
	if table == nil {
		response.Error(c, apperror.NewNotFoundError("Table"))
		return
	}

	input := &service.CreateOrderInput{
		TenantID: tenantID,
		TableID:  table.ID,
		Source:   enum.OrderSourceQR,
		Items:    toItemInputs(req.Items),
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Order created successfully", order)
}

// GetOrder lets a guest poll their order
func (h *PublicHandler) GetOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid order ID")
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), middleware.GetTenantID(c), orderID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Order retrieved successfully", order)
}

// CreatePaymentIntent opens an online payment attempt for a pending order
func (h *PublicHandler) CreatePaymentIntent(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid order ID")
		return
	}

	result, err := h.paymentService.CreateIntent(c.Request.Context(), middleware.GetTenantID(c), orderID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Payment intent created", gin.H{
		"intent":        result.Intent,
		"client_secret": result.ClientSecret,
	})
}

// ConfirmPayment is the client-side trigger of payment reconciliation.
// If the provider webhook already settled the order, this reports the
// same success without re-applying anything.
func (h *PublicHandler) ConfirmPayment(c *gin.Context) {
	var req request.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	order, err := h.paymentService.ConfirmPayment(c.Request.Context(), middleware.GetTenantID(c), req.ProviderIntentID)
	if apperror.IsAlreadyReconciled(err) {
		response.OK(c, "Payment already confirmed", nil)
		return
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Payment confirmed", order)
}

// GetPaymentStatus reports the payment view of an order, answerable
// even after the order itself was cancelled.
func (h *PublicHandler) GetPaymentStatus(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid order ID")
		return
	}

	status, err := h.paymentService.GetPaymentStatus(c.Request.Context(), middleware.GetTenantID(c), orderID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Payment status retrieved", status)
}
