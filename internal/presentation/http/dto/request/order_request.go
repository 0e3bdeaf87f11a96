package request

import "github.com/google/uuid"

// OrderItemRequest is one requested line item at order creation
type OrderItemRequest struct {
	MenuItemID uuid.UUID `json:"menu_item_id" binding:"required"`
	Quantity   int       `json:"quantity" binding:"required,min=1"`
	Notes      string    `json:"notes" binding:"omitempty,max=500"`
}

// CreateOrderRequest represents a staff (counter) order creation
// request. DiscountAmount is an optional whole-order discount in cents.
type CreateOrderRequest struct {
	TableID        uuid.UUID          `json:"table_id" binding:"required"`
	Items          []OrderItemRequest `json:"items" binding:"required,dive"`
	DiscountAmount int64              `json:"discount_amount" binding:"omitempty,gte=0"`
}

// CreateQROrderRequest represents a guest self-service order placed by
// scanning a table QR code
type CreateQROrderRequest struct {
	QRCode string             `json:"qr_code" binding:"required"`
	Items  []OrderItemRequest `json:"items" binding:"required,dive"`
}

// OperationRequest is one entry of a modification batch. The op tag
// decides which of the remaining fields apply.
type OperationRequest struct {
	Op          string     `json:"op" binding:"required,oneof=add_item update_quantity update_notes remove_item"`
	MenuItemID  *uuid.UUID `json:"menu_item_id"`
	OrderItemID *uuid.UUID `json:"order_item_id"`
	Quantity    *int       `json:"quantity"`
	Notes       *string    `json:"notes"`
}

// ModifyOrderRequest represents an atomic batch of order modifications
type ModifyOrderRequest struct {
	Operations []OperationRequest `json:"operations" binding:"required,min=1,dive"`
}

// CancelOrderRequest represents an order cancellation request
type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=255"`
}

// MarkPaidRequest records a payment taken outside the online flow
type MarkPaidRequest struct {
	Method string `json:"method" binding:"required,oneof=cash card terminal other"`
}

// ConfirmPaymentRequest is the client-side payment confirmation trigger
type ConfirmPaymentRequest struct {
	ProviderIntentID string `json:"provider_intent_id" binding:"required"`
}
