package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType classifies a provider callback after verification.
type EventType string

const (
	EventSucceeded EventType = "succeeded"
	EventFailed    EventType = "failed"
	EventCanceled  EventType = "canceled"
	EventIgnored   EventType = "ignored"
)

// Intent is the provider-neutral view of a created payment intent.
type Intent struct {
	ProviderIntentID string
	ClientSecret     string
	Amount           int64
	Currency         string
}

// Event is a verified provider webhook event, reduced to the fields the
// reconciliation flow needs.
type Event struct {
	Type             EventType
	ProviderIntentID string
	Amount           int64
	ReceivedAt       time.Time
}

// CreateIntentParams carries the order snapshot a provider intent is
// created against. Amount is in the smallest currency unit.
type CreateIntentParams struct {
	Amount   int64
	Currency string
	OrderID  uuid.UUID
	TenantID uuid.UUID
}

// Provider abstracts the payment processor. Implementations are cheap
// per-call values built from tenant credentials, not shared singletons.
type Provider interface {
	CreateIntent(ctx context.Context, params CreateIntentParams) (*Intent, error)
	CancelIntent(ctx context.Context, providerIntentID string) error
	// VerifyWebhook checks the payload signature and maps the raw event
	// into a provider-neutral Event. Unknown event types come back as
	// EventIgnored, not as errors.
	VerifyWebhook(payload []byte, signature string) (*Event, error)
}
