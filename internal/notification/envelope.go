package notification

import (
	"time"

	"github.com/google/uuid"
	"github.com/tablelane/tablelane-api/internal/domain/entity"
)

// EnvelopeType names the action a kitchen or counter station should take.
type EnvelopeType string

const (
	// PrintReceipt is emitted when an order is first placed or paid.
	PrintReceipt EnvelopeType = "PRINT_RECEIPT"
	// PrintModifiedReceipt is emitted after a successful mutation of an
	// open order. One envelope per mutation request, not per operation.
	PrintModifiedReceipt EnvelopeType = "PRINT_MODIFIED_RECEIPT"
)

// Envelope is the message fanned out to a tenant's connected stations.
// Delivery is fire-and-forget; the order itself is already committed.
type Envelope struct {
	NotificationID uuid.UUID     `json:"notification_id"`
	Type           EnvelopeType  `json:"type"`
	Order          *entity.Order `json:"order"`
	ChangeSummary  []string      `json:"change_summary,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
}

// NewEnvelope stamps a fresh envelope for the given order.
func NewEnvelope(envelopeType EnvelopeType, order *entity.Order, changes []string) *Envelope {
	return &Envelope{
		NotificationID: uuid.New(),
		Type:           envelopeType,
		Order:          order,
		ChangeSummary:  changes,
		Timestamp:      time.Now(),
	}
}
