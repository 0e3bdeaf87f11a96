package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/tablelane/tablelane-api/internal/domain/entity"
	"github.com/tablelane/tablelane-api/internal/domain/enum"
)

// PaymentIntentRepository defines the interface for payment intent records
type PaymentIntentRepository interface {
	Create(ctx context.Context, intent *entity.PaymentIntent) error
	GetByProviderID(ctx context.Context, tenantID uuid.UUID, providerIntentID string) (*entity.PaymentIntent, error)
	// GetLatestByOrder returns the most recent intent for an order,
	// whatever its status, or nil when the order never had one.
	GetLatestByOrder(ctx context.Context, tenantID, orderID uuid.UUID) (*entity.PaymentIntent, error)
	// TransitionStatus applies "set status=to only if currently from",
	// reporting whether the row moved.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to enum.IntentStatus) (bool, error)
}
