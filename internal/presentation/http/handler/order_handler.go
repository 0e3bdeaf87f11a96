package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tablelane/tablelane-api/internal/application/service"
	"github.com/tablelane/tablelane-api/internal/domain/enum"
	"github.com/tablelane/tablelane-api/internal/domain/repository"
	"github.com/tablelane/tablelane-api/internal/presentation/http/dto/request"
	"github.com/tablelane/tablelane-api/internal/presentation/http/dto/response"
	"github.com/tablelane/tablelane-api/internal/presentation/http/middleware"
	"github.com/tablelane/tablelane-api/pkg/apperror"
	"github.com/tablelane/tablelane-api/pkg/pagination"
)

// OrderHandler handles order-related HTTP requests
type OrderHandler struct {
	orderService *service.OrderService
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orderService *service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// Create handles a staff (counter) order creation
func (h *OrderHandler) Create(c *gin.Context) {
	userID := GetUserID(c)
	if userID == nil {
		response.Unauthorized(c, "User not authenticated")
		return
	}

	var req request.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	input := &service.CreateOrderInput{
		TenantID:       middleware.GetTenantID(c),
		TableID:        req.TableID,
		Source:         enum.OrderSourceCounter,
		StaffID:        *userID,
		Items:          toItemInputs(req.Items),
		DiscountAmount: req.DiscountAmount,
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Order created successfully", order)
}

// List handles listing orders with optional status and table filters
func (h *OrderHandler) List(c *gin.Context) {
	pageParams := pagination.DefaultPagination()
	if err := c.ShouldBindQuery(pageParams); err != nil {
		response.BadRequest(c, "Invalid pagination parameters")
		return
	}
	pageParams.Validate()

	params := &repository.OrderFilterParams{
		Page:    pageParams.Page,
		PerPage: pageParams.PerPage,
	}

	if statusStr := c.Query("status"); statusStr != "" {
		var status enum.OrderStatus
		switch statusStr {
		case "pending":
			status = enum.OrderStatusPending
		case "active":
			status = enum.OrderStatusActive
		case "closed":
			status = enum.OrderStatusClosed
		case "cancelled":
			status = enum.OrderStatusCancelled
		default:
			response.BadRequest(c, "Unknown status filter")
			return
		}
		params.Status = &status
	}

	if tableIDStr := c.Query("table_id"); tableIDStr != "" {
		if tableID, err := uuid.Parse(tableIDStr); err == nil {
			params.TableID = &tableID
		}
	}

	orders, total, err := h.orderService.ListOrders(c.Request.Context(), middleware.GetTenantID(c), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	result := pagination.NewPaginatedResult(orders, pagination.NewPagination(pageParams.Page, pageParams.PerPage, total))
	response.SuccessWithPagination(c, http.StatusOK, "Orders retrieved successfully", result)
}

// Get handles fetching one order with its items
func (h *OrderHandler) Get(c *gin.Context) {
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

// Modify handles an atomic batch of order modifications
func (h *OrderHandler) Modify(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid order ID")
		return
	}

	var req request.ModifyOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	ops, err := toOperations(req.Operations)
	if err != nil {
		response.Error(c, err)
		return
	}

	order, err := h.orderService.ModifyOrder(c.Request.Context(), middleware.GetTenantID(c), orderID, ops)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Order updated successfully", order)
}

// Cancel handles an order cancellation
func (h *OrderHandler) Cancel(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid order ID")
		return
	}

	var req request.CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if req.Reason == "" {
		req.Reason = "cancelled by staff"
	}

	order, err := h.orderService.CancelOrder(c.Request.Context(), middleware.GetTenantID(c), orderID, req.Reason, GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Order cancelled", order)
}

// MarkPaid records a payment collected outside the online flow
func (h *OrderHandler) MarkPaid(c *gin.Context) {
	userID := GetUserID(c)
	if userID == nil {
		response.Unauthorized(c, "User not authenticated")
		return
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid order ID")
		return
	}

	var req request.MarkPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	order, err := h.orderService.MarkPaidManually(c.Request.Context(), middleware.GetTenantID(c), orderID, req.Method, *userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Order marked as paid", order)
}

// Close completes an active, settled order
func (h *OrderHandler) Close(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid order ID")
		return
	}

	order, err := h.orderService.CloseOrder(c.Request.Context(), middleware.GetTenantID(c), orderID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Order closed", order)
}

func toItemInputs(items []request.OrderItemRequest) []service.OrderItemInput {
	inputs := make([]service.OrderItemInput, len(items))
	for i, item := range items {
		inputs[i] = service.OrderItemInput{
			MenuItemID: item.MenuItemID,
			Quantity:   item.Quantity,
			Notes:      item.Notes,
		}
	}
	return inputs
}

// toOperations maps the wire operations to service operations,
// rejecting entries whose op tag does not match the fields it needs.
func toOperations(reqs []request.OperationRequest) ([]service.Operation, error) {
	ops := make([]service.Operation, 0, len(reqs))
	for _, r := range reqs {
		op := service.Operation{Op: service.OpType(r.Op)}

		switch op.Op {
		case service.OpAddItem:
			if r.MenuItemID == nil {
				return nil, apperror.NewBadRequestError("add_item requires menu_item_id")
			}
			if r.Quantity == nil {
				return nil, apperror.NewBadRequestError("add_item requires quantity")
			}
			op.MenuItemID = *r.MenuItemID
			op.Quantity = *r.Quantity
			if r.Notes != nil {
				op.Notes = *r.Notes
			}

		case service.OpUpdateQuantity:
			if r.OrderItemID == nil {
				return nil, apperror.NewBadRequestError("update_quantity requires order_item_id")
			}
			if r.Quantity == nil {
				return nil, apperror.NewBadRequestError("update_quantity requires quantity")
			}
			op.OrderItemID = *r.OrderItemID
			op.Quantity = *r.Quantity

		case service.OpUpdateNotes:
			if r.OrderItemID == nil {
				return nil, apperror.NewBadRequestError("update_notes requires order_item_id")
			}
			if r.Notes == nil {
				return nil, apperror.NewBadRequestError("update_notes requires notes")
			}
			op.OrderItemID = *r.OrderItemID
			op.Notes = *r.Notes

		case service.OpRemoveItem:
			if r.OrderItemID == nil {
				return nil, apperror.NewBadRequestError("remove_item requires order_item_id")
			}
			op.OrderItemID = *r.OrderItemID
		}

		ops = append(ops, op)
	}
	return ops, nil
}
