package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

// StripeProvider implements Provider against the Stripe API using
// per-tenant credentials.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
}

// NewStripeProvider builds a provider from a tenant's secret key and
// webhook signing secret.
func NewStripeProvider(secretKey, webhookSecret string) *StripeProvider {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeProvider{
		api:           api,
		webhookSecret: webhookSecret,
	}
}

func (p *StripeProvider) CreateIntent(ctx context.Context, params CreateIntentParams) (*Intent, error) {
	piParams := &stripe.PaymentIntentParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Amount:   stripe.Int64(params.Amount),
		Currency: stripe.String(params.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	piParams.AddMetadata("order_id", params.OrderID.String())
	piParams.AddMetadata("tenant_id", params.TenantID.String())

	pi, err := p.api.PaymentIntents.New(piParams)
	if err != nil {
		return nil, fmt.Errorf("stripe create intent: %w", err)
	}

	return &Intent{
		ProviderIntentID: pi.ID,
		ClientSecret:     pi.ClientSecret,
		Amount:           pi.Amount,
		Currency:         string(pi.Currency),
	}, nil
}

func (p *StripeProvider) CancelIntent(ctx context.Context, providerIntentID string) error {
	params := &stripe.PaymentIntentCancelParams{
		Params: stripe.Params{
			Context: ctx,
		},
	}
	if _, err := p.api.PaymentIntents.Cancel(providerIntentID, params); err != nil {
		return fmt.Errorf("stripe cancel intent: %w", err)
	}
	return nil
}

func (p *StripeProvider) VerifyWebhook(payload []byte, signature string) (*Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("stripe webhook verification: %w", err)
	}

	var eventType EventType
	switch event.Type {
	case "payment_intent.succeeded":
		eventType = EventSucceeded
	case "payment_intent.payment_failed":
		eventType = EventFailed
	case "payment_intent.canceled":
		eventType = EventCanceled
	default:
		return &Event{Type: EventIgnored, ReceivedAt: time.Now()}, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("stripe webhook payload: %w", err)
	}

	return &Event{
		Type:             eventType,
		ProviderIntentID: pi.ID,
		Amount:           pi.Amount,
		ReceivedAt:       time.Now(),
	}, nil
}
