package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/tablelane/tablelane-api/internal/domain/enum"
	"gorm.io/gorm"
)

// PaymentIntent records one attempt to collect online payment for an
// order. The row is deliberately not deleted when its order is
// cancelled so payment status stays queryable for audit.
type PaymentIntent struct {
	ID               uuid.UUID         `gorm:"type:uuid;primary_key" json:"id"`
	ProviderIntentID string            `gorm:"size:128;uniqueIndex;not null" json:"provider_intent_id"`
	OrderID          uuid.UUID         `gorm:"type:uuid;not null;index" json:"order_id"`
	TenantID         uuid.UUID         `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Amount           int64             `gorm:"not null" json:"-"` // Stored in cents, excluded from JSON
	Currency         string            `gorm:"size:8;not null" json:"currency"`
	Status           enum.IntentStatus `gorm:"default:0;index" json:"status"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// MarshalJSON custom marshaler to convert cents to decimal for API responses
func (p PaymentIntent) MarshalJSON() ([]byte, error) {
	type Alias PaymentIntent
	return json.Marshal(&struct {
		Alias
		Amount float64 `json:"amount"`
	}{
		Alias:  Alias(p),
		Amount: float64(p.Amount) / 100,
	})
}

// BeforeCreate generates a UUID before creating a new payment intent
func (p *PaymentIntent) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the PaymentIntent model
func (PaymentIntent) TableName() string {
	return "payment_intents"
}
