package entity

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/tablelane/tablelane-api/internal/domain/enum"
	"gorm.io/gorm"
)

// Order represents a restaurant order and owns its monetary totals.
// All amounts are stored in cents; FinalAmount is derived and must be
// recomputed (via Recompute) after every mutation of the line items.
type Order struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_tenant_order_no,priority:1" json:"tenant_id"`
	OrderNo  string    `gorm:"size:100;not null;uniqueIndex:idx_tenant_order_no,priority:2" json:"order_no"`
	TableID  uuid.UUID `gorm:"type:uuid;index" json:"table_id"`

	SubTotal       int64 `gorm:"default:0" json:"-"` // Stored in cents, excluded from JSON
	TaxAmount      int64 `gorm:"default:0" json:"-"` // Stored in cents, excluded from JSON
	DiscountAmount int64 `gorm:"default:0" json:"-"` // Stored in cents, excluded from JSON
	FinalAmount    int64 `gorm:"default:0" json:"-"` // Derived: SubTotal + TaxAmount - DiscountAmount

	// TaxRate is snapshotted from the tenant settings at creation so
	// later rate changes never reprice an open order.
	TaxRate float64 `gorm:"default:0" json:"-"`

	Status        enum.OrderStatus   `gorm:"default:0;index" json:"status"`
	PaymentStatus enum.PaymentStatus `gorm:"default:0" json:"payment_status"`
	PaymentMethod string             `gorm:"size:50" json:"payment_method,omitempty"`
	Source        enum.OrderSource   `gorm:"default:0" json:"source"`

	// Version guards concurrent total recomputation: every write of the
	// totals carries "WHERE version = ?" and bumps it by one.
	Version int `gorm:"default:0" json:"-"`

	CreatedBy    uuid.UUID  `gorm:"type:uuid" json:"created_by,omitempty"`
	CancelledBy  *uuid.UUID `gorm:"type:uuid" json:"cancelled_by,omitempty"`
	PaidBy       *uuid.UUID `gorm:"type:uuid" json:"paid_by,omitempty"`
	CancelReason string     `gorm:"size:255" json:"cancel_reason,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`

	// Relationships
	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// MarshalJSON custom marshaler to convert cents to decimal for API responses
func (o Order) MarshalJSON() ([]byte, error) {
	type Alias Order
	return json.Marshal(&struct {
		Alias
		SubTotal       float64 `json:"sub_total"`
		TaxAmount      float64 `json:"tax_amount"`
		DiscountAmount float64 `json:"discount_amount"`
		FinalAmount    float64 `json:"final_amount"`
	}{
		Alias:          Alias(o),
		SubTotal:       float64(o.SubTotal) / 100,
		TaxAmount:      float64(o.TaxAmount) / 100,
		DiscountAmount: float64(o.DiscountAmount) / 100,
		FinalAmount:    float64(o.FinalAmount) / 100,
	})
}

// BeforeCreate generates a UUID before creating a new order
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// Recompute derives SubTotal from the current line items and restores
// the FinalAmount invariant. Call it inside the same transaction as any
// item mutation, never against a cached total.
func (o *Order) Recompute() {
	var sub int64
	for i := range o.Items {
		o.Items[i].LineTotal = o.Items[i].UnitPrice * int64(o.Items[i].Quantity)
		sub += o.Items[i].LineTotal
	}
	o.SubTotal = sub
	o.TaxAmount = int64(math.Round(float64(sub) * o.TaxRate))
	o.FinalAmount = o.SubTotal + o.TaxAmount - o.DiscountAmount
}

// ItemByID returns the line item with the given id, or nil.
func (o *Order) ItemByID(id uuid.UUID) *OrderItem {
	for i := range o.Items {
		if o.Items[i].ID == id {
			return &o.Items[i]
		}
	}
	return nil
}

// OrderItem represents a line item owned exclusively by one order.
// UnitPrice is a snapshot taken when the item was added; later menu
// price changes never touch it.
type OrderItem struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	OrderID    uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	MenuItemID uuid.UUID `gorm:"type:uuid;not null;index" json:"menu_item_id"`
	Name       string    `gorm:"size:255;not null" json:"name"`
	Quantity   int       `gorm:"not null" json:"quantity"`
	UnitPrice  int64     `gorm:"not null" json:"-"` // Stored in cents, excluded from JSON
	LineTotal  int64     `gorm:"not null" json:"-"` // Quantity x UnitPrice, recomputed on change
	Notes      string    `gorm:"size:500" json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MarshalJSON custom marshaler to convert cents to decimal for API responses
func (oi OrderItem) MarshalJSON() ([]byte, error) {
	type Alias OrderItem
	return json.Marshal(&struct {
		Alias
		UnitPrice float64 `json:"unit_price"`
		LineTotal float64 `json:"line_total"`
	}{
		Alias:     Alias(oi),
		UnitPrice: float64(oi.UnitPrice) / 100,
		LineTotal: float64(oi.LineTotal) / 100,
	})
}

// BeforeCreate generates a UUID before creating a new order item
func (oi *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if oi.ID == uuid.Nil {
		oi.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the OrderItem model
func (OrderItem) TableName() string {
	return "order_items"
}
