package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tablelane/tablelane-api/internal/domain/entity"
	"github.com/tablelane/tablelane-api/internal/domain/enum"
	"github.com/tablelane/tablelane-api/internal/domain/repository"
	"github.com/tablelane/tablelane-api/internal/notification"
	"github.com/tablelane/tablelane-api/pkg/apperror"
	"github.com/tablelane/tablelane-api/pkg/payment"
	"go.uber.org/zap"
)

// ProviderFactory builds a payment provider from a tenant's credentials.
// Injected so tests can substitute a stub for the real Stripe client.
type ProviderFactory func(integration *entity.StripeIntegration) payment.Provider

// DefaultProviderFactory builds the real Stripe-backed provider.
func DefaultProviderFactory(integration *entity.StripeIntegration) payment.Provider {
	return payment.NewStripeProvider(integration.SecretKey, integration.WebhookSecret)
}

// PaymentService owns online payment intents and the reconciliation of
// their outcomes against order state.
type PaymentService struct {
	orderRepo   repository.OrderRepository
	intentRepo  repository.PaymentIntentRepository
	tenantRepo  repository.TenantRepository
	providerFor ProviderFactory
	notifier    Notifier
	logger      *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	orderRepo repository.OrderRepository,
	intentRepo repository.PaymentIntentRepository,
	tenantRepo repository.TenantRepository,
	providerFor ProviderFactory,
	notifier Notifier,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		orderRepo:   orderRepo,
		intentRepo:  intentRepo,
		tenantRepo:  tenantRepo,
		providerFor: providerFor,
		notifier:    notifier,
		logger:      logger,
	}
}

// IntentResult carries the stored intent plus the client secret the
// frontend needs to complete the payment. The secret is never persisted.
type IntentResult struct {
	Intent       *entity.PaymentIntent
	ClientSecret string
}

// CreateIntent opens a payment collection attempt for a pending order.
// The amount is frozen from the order's current total; a later mutation
// of the order invalidates the attempt through reconciliation, not here.
func (s *PaymentService) CreateIntent(ctx context.Context, tenantID, orderID uuid.UUID) (*IntentResult, error) {
	tenant, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, apperror.NewNotFoundError("Tenant")
	}
	if tenant.Settings.Stripe == nil {
		return nil, apperror.NewValidationError("Online payment is not configured for this restaurant")
	}
	if !tenant.Settings.PaymentEnabled() {
		return nil, apperror.NewValidationError("Online payment is disabled for this restaurant")
	}

	order, err := s.orderRepo.GetWithItems(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperror.NewNotFoundError("Order")
	}
	if order.Status != enum.OrderStatusPending {
		return nil, apperror.NewConflictError("Only pending orders can start an online payment")
	}
	if order.PaymentStatus == enum.PaymentStatusPaid {
		return nil, apperror.NewConflictError("Order is already paid")
	}
	if order.FinalAmount <= 0 {
		return nil, apperror.NewValidationError("Order total must be positive to collect payment")
	}

	provider := s.providerFor(tenant.Settings.Stripe)

	// A retried payment supersedes the previous attempt: the stale
	// intent is closed on both sides so it cannot charge the old total
	// after the order was modified.
	if prior, err := s.intentRepo.GetLatestByOrder(ctx, tenantID, orderID); err != nil {
		return nil, err
	} else if prior != nil && prior.Status == enum.IntentStatusPending {
		moved, err := s.intentRepo.TransitionStatus(ctx, prior.ID, enum.IntentStatusPending, enum.IntentStatusFailed)
		if err != nil {
			return nil, err
		}
		if !moved {
			return nil, apperror.NewConflictError("Order payment state changed, please retry")
		}
		if err := provider.CancelIntent(ctx, prior.ProviderIntentID); err != nil {
			s.logger.Warn("failed to cancel superseded provider intent",
				zap.String("provider_intent_id", prior.ProviderIntentID),
				zap.Error(err))
		}
	}

	created, err := provider.CreateIntent(ctx, payment.CreateIntentParams{
		Amount:   order.FinalAmount,
		Currency: tenant.Settings.Currency,
		OrderID:  order.ID,
		TenantID: tenantID,
	})
	if err != nil {
		s.logger.Error("provider intent creation failed",
			zap.String("order_id", orderID.String()),
			zap.Error(err))
		return nil, apperror.NewProviderError("Payment provider rejected the request")
	}

	intent := &entity.PaymentIntent{
		ProviderIntentID: created.ProviderIntentID,
		OrderID:          order.ID,
		TenantID:         tenantID,
		Amount:           created.Amount,
		Currency:         created.Currency,
		Status:           enum.IntentStatusPending,
	}
	if err := s.intentRepo.Create(ctx, intent); err != nil {
		return nil, err
	}

	return &IntentResult{Intent: intent, ClientSecret: created.ClientSecret}, nil
}

// ConfirmPayment is the client-side trigger: the frontend reports that
// the provider accepted the payment. It races the webhook trigger for
// the same intent; whichever arrives second gets ErrAlreadyReconciled.
func (s *PaymentService) ConfirmPayment(ctx context.Context, tenantID uuid.UUID, providerIntentID string) (*entity.Order, error) {
	intent, err := s.intentRepo.GetByProviderID(ctx, tenantID, providerIntentID)
	if err != nil {
		return nil, err
	}
	if intent == nil {
		return nil, apperror.NewNotFoundError("Payment intent")
	}
	return s.reconcileSuccess(ctx, tenantID, intent, "client confirmation")
}

// HandleProviderEvent is the webhook trigger. The event has already
// been signature-verified by the caller.
func (s *PaymentService) HandleProviderEvent(ctx context.Context, tenantID uuid.UUID, event *payment.Event) error {
	if event.Type == payment.EventIgnored {
		return nil
	}

	intent, err := s.intentRepo.GetByProviderID(ctx, tenantID, event.ProviderIntentID)
	if err != nil {
		return err
	}
	if intent == nil {
		// An intent we never created, or another environment's traffic.
		s.logger.Warn("webhook for unknown payment intent",
			zap.String("provider_intent_id", event.ProviderIntentID))
		return nil
	}

	switch event.Type {
	case payment.EventSucceeded:
		_, err := s.reconcileSuccess(ctx, tenantID, intent, "webhook")
		if err != nil {
			// A retry from the provider cannot change a 4xx outcome:
			// already reconciled, order gone, or cancelled first. Ack it
			// so the provider stops redelivering.
			if appErr := apperror.GetAppError(err); appErr.Code < 500 {
				return nil
			}
		}
		return err

	case payment.EventFailed, payment.EventCanceled:
		return s.reconcileFailure(ctx, tenantID, intent, event.Type)
	}

	return nil
}

// reconcileSuccess applies the single pending-guarded transition. Both
// triggers funnel through here, so exactly one of them moves the order
// and emits the receipt; the other observes a no-op.
func (s *PaymentService) reconcileSuccess(ctx context.Context, tenantID uuid.UUID, intent *entity.PaymentIntent, via string) (*entity.Order, error) {
	order, err := s.orderRepo.GetWithItems(ctx, tenantID, intent.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperror.NewNotFoundError("Order")
	}

	moved, err := s.orderRepo.TransitionFromPending(ctx, tenantID, intent.OrderID, order.Source.PaidStatus(), "card", time.Now())
	if err != nil {
		return nil, err
	}

	if !moved {
		fresh, err := s.orderRepo.GetWithItems(ctx, tenantID, intent.OrderID)
		if err != nil {
			return nil, err
		}
		if fresh != nil && fresh.PaymentStatus == enum.PaymentStatusPaid {
			// The other trigger won. Same terminal state, quiet no-op.
			s.logger.Debug("payment already reconciled",
				zap.String("order_id", intent.OrderID.String()),
				zap.String("via", via))
			return nil, apperror.ErrAlreadyReconciled
		}
		// Funds were captured but the order left pending some other way
		// (sweeper or staff cancel won the race). Needs a manual refund.
		s.logger.Warn("payment succeeded for a non-pending unpaid order, refund required",
			zap.String("order_id", intent.OrderID.String()),
			zap.String("provider_intent_id", intent.ProviderIntentID),
			zap.String("via", via))
		if _, err := s.intentRepo.TransitionStatus(ctx, intent.ID, enum.IntentStatusPending, enum.IntentStatusConfirmed); err != nil {
			return nil, err
		}
		return nil, apperror.NewConflictError("Order was cancelled before payment settled")
	}

	if _, err := s.intentRepo.TransitionStatus(ctx, intent.ID, enum.IntentStatusPending, enum.IntentStatusConfirmed); err != nil {
		return nil, err
	}

	order, err = s.orderRepo.GetWithItems(ctx, tenantID, intent.OrderID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment reconciled",
		zap.String("order_id", order.ID.String()),
		zap.String("via", via),
		zap.Int64("amount_cents", intent.Amount))

	s.notifier.Publish(tenantID, notification.NewEnvelope(notification.PrintReceipt, order, nil))

	return order, nil
}

// reconcileFailure marks the intent failed and soft-cancels the order
// if it is still pending. The intent row survives for audit; the
// cancelled order keeps answering payment status queries.
func (s *PaymentService) reconcileFailure(ctx context.Context, tenantID uuid.UUID, intent *entity.PaymentIntent, eventType payment.EventType) error {
	moved, err := s.intentRepo.TransitionStatus(ctx, intent.ID, enum.IntentStatusPending, enum.IntentStatusFailed)
	if err != nil {
		return err
	}
	if !moved {
		// The intent already settled; a late or redelivered failure
		// event must not rewrite the outcome.
		s.logger.Debug("stale failure event for a settled intent",
			zap.String("provider_intent_id", intent.ProviderIntentID))
		return nil
	}

	order, err := s.orderRepo.GetWithItems(ctx, tenantID, intent.OrderID)
	if err != nil {
		return err
	}
	if order == nil || order.Status != enum.OrderStatusPending {
		return nil
	}
	if order.PaymentStatus == enum.PaymentStatusPaid {
		// Settled manually while the provider attempt was in flight.
		return nil
	}

	reason := "payment failed"
	if eventType == payment.EventCanceled {
		reason = "payment cancelled"
	}

	cancelled, err := s.orderRepo.Cancel(ctx, tenantID, intent.OrderID, reason, nil, time.Now())
	if err != nil {
		return err
	}
	if cancelled {
		s.logger.Info("order cancelled after payment failure",
			zap.String("order_id", intent.OrderID.String()),
			zap.String("reason", reason))
		s.cancelProviderIntent(ctx, tenantID, intent, eventType)
	}
	return nil
}

// cancelProviderIntent closes the provider-side intent after a soft
/// cancel so a late charge attempt against it is refused. Best effort:
// for canceled events the provider already closed it, and a failure
// here only means the provider GC's the intent on its own.
func (s *PaymentService) cancelProviderIntent(ctx context.Context, tenantID uuid.UUID, intent *entity.PaymentIntent, eventType payment.EventType) {
	if eventType == payment.EventCanceled {
		return
	}
	tenant, err := s.tenantRepo.GetByID(ctx, tenantID)
	if err != nil || tenant == nil || tenant.Settings.Stripe == nil {
		return
	}
	if err := s.providerFor(tenant.Settings.Stripe).CancelIntent(ctx, intent.ProviderIntentID); err != nil {
		s.logger.Warn("failed to cancel provider intent",
			zap.String("provider_intent_id", intent.ProviderIntentID),
			zap.Error(err))
	}
}

// PaymentStatus is the queryable view of an order's payment state,
// answerable even after the order was cancelled.
type PaymentStatus struct {
	OrderID       uuid.UUID             `json:"order_id"`
	OrderStatus   enum.OrderStatus      `json:"order_status"`
	PaymentStatus enum.PaymentStatus    `json:"payment_status"`
	PaymentMethod string                `json:"payment_method,omitempty"`
	Intent        *entity.PaymentIntent `json:"intent,omitempty"`
}

// GetPaymentStatus returns the payment view of an order and its most
// recent collection attempt, if any.
func (s *PaymentService) GetPaymentStatus(ctx context.Context, tenantID, orderID uuid.UUID) (*PaymentStatus, error) {
	order, err := s.orderRepo.GetWithItems(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperror.NewNotFoundError("Order")
	}

	intent, err := s.intentRepo.GetLatestByOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}

	return &PaymentStatus{
		OrderID:       order.ID,
		OrderStatus:   order.Status,
		PaymentStatus: order.PaymentStatus,
		PaymentMethod: order.PaymentMethod,
		Intent:        intent,
	}, nil
}
