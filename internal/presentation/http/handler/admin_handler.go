package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tablelane/tablelane-api/internal/application/service"
	"github.com/tablelane/tablelane-api/internal/presentation/http/dto/response"
	"github.com/tablelane/tablelane-api/internal/presentation/http/middleware"
)

// AdminHandler exposes the abandoned-order sweeper to operators,
// scoped to the caller's own tenant. The all-tenant sweep runs only on
// the internal timer; these endpoints exist for visibility and for
// forcing a pass over the caller's orders.
type AdminHandler struct {
	sweeperService *service.SweeperService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(sweeperService *service.SweeperService) *AdminHandler {
	return &AdminHandler{sweeperService: sweeperService}
}

// maxAgeParam reads the optional max_age_minutes query parameter; zero
// lets the service fall back to its configured default.
func maxAgeParam(c *gin.Context) (time.Duration, bool) {
	raw := c.Query("max_age_minutes")
	if raw == "" {
		return 0, true
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes < 1 {
		return 0, false
	}
	return time.Duration(minutes) * time.Minute, true
}

// Sweep forces an immediate sweep of abandoned pending orders
func (h *AdminHandler) Sweep(c *gin.Context) {
	maxAge, ok := maxAgeParam(c)
	if !ok {
		response.BadRequest(c, "max_age_minutes must be a positive integer")
		return
	}

	swept, err := h.sweeperService.Sweep(c.Request.Context(), middleware.GetTenantID(c), maxAge)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Sweep completed", gin.H{"swept": swept})
}

// PendingCount reports how many orders currently await payment
func (h *AdminHandler) PendingCount(c *gin.Context) {
	count, err := h.sweeperService.PendingCount(c.Request.Context(), middleware.GetTenantID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Pending count retrieved", gin.H{"pending": count})
}

// ListAbandoned previews the orders the next sweep would cancel
func (h *AdminHandler) ListAbandoned(c *gin.Context) {
	maxAge, ok := maxAgeParam(c)
	if !ok {
		response.BadRequest(c, "max_age_minutes must be a positive integer")
		return
	}

	orders, err := h.sweeperService.ListAbandoned(c.Request.Context(), middleware.GetTenantID(c), maxAge)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Abandoned orders retrieved", orders)
}
