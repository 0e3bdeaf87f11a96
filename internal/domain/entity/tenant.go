package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tenant represents one isolated restaurant account. Every row and
// every mutation in the system is scoped by tenant id.
type Tenant struct {
	ID        uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	Name      string         `gorm:"size:255;not null" json:"name"`
	Slug      string         `gorm:"size:255;unique;not null" json:"slug"`
	Settings  TenantSettings `gorm:"type:jsonb;serializer:json" json:"settings"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate generates a UUID before creating a new tenant
func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the Tenant model
func (Tenant) TableName() string {
	return "tenants"
}

// TenantSettings holds per-restaurant configuration
type TenantSettings struct {
	Currency    string  `json:"currency,omitempty"`
	Timezone    string  `json:"timezone,omitempty"`
	TaxRate     float64 `json:"tax_rate,omitempty"`
	OrderPrefix string  `json:"order_prefix,omitempty"`

	// Payment integration
	Stripe *StripeIntegration `json:"stripe,omitempty"`
}

// Scan implements the sql.Scanner interface for TenantSettings
func (ts *TenantSettings) Scan(value interface{}) error {
	if value == nil {
		*ts = TenantSettings{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan TenantSettings: unsupported type")
	}

	return json.Unmarshal(bytes, ts)
}

// Value implements the driver.Valuer interface for TenantSettings
func (ts TenantSettings) Value() (driver.Value, error) {
	return json.Marshal(ts)
}

// StripeIntegration holds a tenant's Stripe configuration
type StripeIntegration struct {
	Enabled        bool   `json:"enabled"`
	PublishableKey string `json:"publishable_key"`
	SecretKey      string `json:"secret_key"`
	WebhookSecret  string `json:"webhook_secret"`
}

// PaymentEnabled reports whether the tenant can take online payments.
func (ts TenantSettings) PaymentEnabled() bool {
	return ts.Stripe != nil && ts.Stripe.Enabled && ts.Stripe.SecretKey != ""
}

// DefaultTenantSettings returns default settings for new tenants
func DefaultTenantSettings() TenantSettings {
	return TenantSettings{
		Currency:    "usd",
		Timezone:    "UTC",
		TaxRate:     0,
		OrderPrefix: "ORD-",
	}
}
