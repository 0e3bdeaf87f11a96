package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tablelane/tablelane-api/internal/domain/entity"
	"github.com/tablelane/tablelane-api/internal/domain/enum"
	infraRepo "github.com/tablelane/tablelane-api/internal/infrastructure/repository"
	"github.com/tablelane/tablelane-api/internal/notification"
	"github.com/tablelane/tablelane-api/pkg/apperror"
	"github.com/tablelane/tablelane-api/pkg/payment"
	"go.uber.org/zap"
)

// stubProvider fakes the processor: CreateIntent hands out sequential
// intent IDs and records the params it was called with.
type stubProvider struct {
	seq       int
	created   []payment.CreateIntentParams
	cancelled []string
	failWith  error
}

func (p *stubProvider) CreateIntent(ctx context.Context, params payment.CreateIntentParams) (*payment.Intent, error) {
	if p.failWith != nil {
		return nil, p.failWith
	}
	p.seq++
	p.created = append(p.created, params)
	return &payment.Intent{
		ProviderIntentID: fmt.Sprintf("pi_test_%d", p.seq),
		ClientSecret:     fmt.Sprintf("pi_test_%d_secret", p.seq),
		Amount:           params.Amount,
		Currency:         params.Currency,
	}, nil
}

func (p *stubProvider) CancelIntent(ctx context.Context, providerIntentID string) error {
	p.cancelled = append(p.cancelled, providerIntentID)
	return nil
}

func (p *stubProvider) VerifyWebhook(payload []byte, signature string) (*payment.Event, error) {
	return nil, nil
}

type paymentTestEnv struct {
	*orderTestEnv
	provider *stubProvider
	payments *PaymentService
}

func newPaymentTestEnv(t *testing.T) *paymentTestEnv {
	t.Helper()

	env := newOrderTestEnv(t)

	env.tenant.Settings.Stripe = &entity.StripeIntegration{
		Enabled:       true,
		SecretKey:     "sk_test_stub",
		WebhookSecret: "whsec_stub",
	}
	require.NoError(t, env.db.Save(env.tenant).Error)

	provider := &stubProvider{}
	payments := NewPaymentService(
		infraRepo.NewOrderRepository(env.db),
		infraRepo.NewPaymentIntentRepository(env.db),
		infraRepo.NewTenantRepository(env.db),
		func(*entity.StripeIntegration) payment.Provider { return provider },
		env.notifier,
		zap.NewNop(),
	)

	return &paymentTestEnv{orderTestEnv: env, provider: provider, payments: payments}
}

func (env *paymentTestEnv) createIntent(t *testing.T, orderID uuid.UUID) *IntentResult {
	t.Helper()
	result, err := env.payments.CreateIntent(context.Background(), env.tenant.ID, orderID)
	require.NoError(t, err)
	return result
}

func TestCreateIntentFreezesAmount(t *testing.T) {
	env := newPaymentTestEnv(t)

	order := env.createOrder(t, enum.OrderSourceQR)
	result := env.createIntent(t, order.ID)

	assert.Equal(t, int64(1300), result.Intent.Amount)
	assert.Equal(t, "pi_test_1_secret", result.ClientSecret)
	require.Len(t, env.provider.created, 1)
	assert.Equal(t, order.ID, env.provider.created[0].OrderID)
}

func TestCreateIntentRequiresConfiguredTenant(t *testing.T) {
	env := newPaymentTestEnv(t)

	env.tenant.Settings.Stripe = nil
	require.NoError(t, env.db.Save(env.tenant).Error)

	order := env.createOrder(t, enum.OrderSourceQR)
	_, err := env.payments.CreateIntent(context.Background(), env.tenant.ID, order.ID)
	require.Error(t, err)
	assert.Equal(t, 422, apperror.GetAppError(err).Code)
}

func TestCreateIntentRequiresEnabledIntegration(t *testing.T) {
	env := newPaymentTestEnv(t)

	env.tenant.Settings.Stripe.Enabled = false
	require.NoError(t, env.db.Save(env.tenant).Error)

	order := env.createOrder(t, enum.OrderSourceQR)
	_, err := env.payments.CreateIntent(context.Background(), env.tenant.ID, order.ID)
	require.Error(t, err)
	assert.Equal(t, 422, apperror.GetAppError(err).Code)
}

func TestCreateIntentRejectsNonPendingOrder(t *testing.T) {
	env := newPaymentTestEnv(t)

	order := env.createOrder(t, enum.OrderSourceCounter) // active immediately
	_, err := env.payments.CreateIntent(context.Background(), env.tenant.ID, order.ID)
	require.Error(t, err)
	assert.Equal(t, 409, apperror.GetAppError(err).Code)
}

func TestCreateIntentProviderFailure(t *testing.T) {
	env := newPaymentTestEnv(t)
	env.provider.failWith = fmt.Errorf("stripe unreachable")

	order := env.createOrder(t, enum.OrderSourceQR)
	_, err := env.payments.CreateIntent(context.Background(), env.tenant.ID, order.ID)
	require.Error(t, err)
	assert.Equal(t, 502, apperror.GetAppError(err).Code)
}

func TestConfirmPaymentActivatesQROrder(t *testing.T) {
	env := newPaymentTestEnv(t)
	ctx := context.Background()

	order := env.createOrder(t, enum.OrderSourceQR)
	result := env.createIntent(t, order.ID)

	confirmed, err := env.payments.ConfirmPayment(ctx, env.tenant.ID, result.Intent.ProviderIntentID)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusActive, confirmed.Status)
	assert.Equal(t, enum.PaymentStatusPaid, confirmed.PaymentStatus)
	assert.Equal(t, "card", confirmed.PaymentMethod)
	require.NotNil(t, confirmed.PaidAt)

	// The paid order reached the kitchen.
	assert.Equal(t, 1, env.notifier.count(notification.PrintReceipt))

	status, err := env.payments.GetPaymentStatus(ctx, env.tenant.ID, order.ID)
	require.NoError(t, err)
	require.NotNil(t, status.Intent)
	assert.Equal(t, enum.IntentStatusConfirmed, status.Intent.Status)
}

func TestWebhookAfterConfirmationIsIdempotent(t *testing.T) {
	env := newPaymentTestEnv(t)
	ctx := context.Background()

	order := env.createOrder(t, enum.OrderSourceQR)
	result := env.createIntent(t, order.ID)

	_, err := env.payments.ConfirmPayment(ctx, env.tenant.ID, result.Intent.ProviderIntentID)
	require.NoError(t, err)

	// The webhook for the same intent arrives later; it must be a no-op.
	err = env.payments.HandleProviderEvent(ctx, env.tenant.ID, &payment.Event{
		Type:             payment.EventSucceeded,
		ProviderIntentID: result.Intent.ProviderIntentID,
		ReceivedAt:       time.Now(),
	})
	require.NoError(t, err)

	fresh, err := env.service.GetOrder(ctx, env.tenant.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusActive, fresh.Status)
	assert.Equal(t, 1, env.notifier.count(notification.PrintReceipt))
}

func TestConfirmAfterWebhookReportsAlreadyReconciled(t *testing.T) {
	env := newPaymentTestEnv(t)
	ctx := context.Background()

	order := env.createOrder(t, enum.OrderSourceQR)
	result := env.createIntent(t, order.ID)

	err := env.payments.HandleProviderEvent(ctx, env.tenant.ID, &payment.Event{
		Type:             payment.EventSucceeded,
		ProviderIntentID: result.Intent.ProviderIntentID,
		ReceivedAt:       time.Now(),
	})
	require.NoError(t, err)

	_, err = env.payments.ConfirmPayment(ctx, env.tenant.ID, result.Intent.ProviderIntentID)
	require.Error(t, err)
	assert.True(t, apperror.IsAlreadyReconciled(err))

	fresh, err := env.service.GetOrder(ctx, env.tenant.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusActive, fresh.Status)
}

func TestConcurrentConfirmAndWebhookSettleOnce(t *testing.T) {
	env := newPaymentTestEnv(t)
	ctx := context.Background()

	order := env.createOrder(t, enum.OrderSourceQR)
	result := env.createIntent(t, order.ID)

	// Client confirmation and the provider webhook race for the same
	// intent; exactly one of them may settle the order.
	var wg sync.WaitGroup
	var confirmErr, webhookErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, confirmErr = env.payments.ConfirmPayment(ctx, env.tenant.ID, result.Intent.ProviderIntentID)
	}()
	go func() {
		defer wg.Done()
		webhookErr = env.payments.HandleProviderEvent(ctx, env.tenant.ID, &payment.Event{
			Type:             payment.EventSucceeded,
			ProviderIntentID: result.Intent.ProviderIntentID,
			ReceivedAt:       time.Now(),
		})
	}()
	wg.Wait()

	require.NoError(t, webhookErr)
	if confirmErr != nil {
		// The webhook settled the order first.
		assert.True(t, apperror.IsAlreadyReconciled(confirmErr))
	}

	fresh, err := env.service.GetOrder(ctx, env.tenant.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusActive, fresh.Status)
	assert.Equal(t, enum.PaymentStatusPaid, fresh.PaymentStatus)

	// The kitchen saw the order exactly once.
	assert.Equal(t, 1, env.notifier.count(notification.PrintReceipt))

	status, err := env.payments.GetPaymentStatus(ctx, env.tenant.ID, order.ID)
	require.NoError(t, err)
	require.NotNil(t, status.Intent)
	assert.Equal(t, enum.IntentStatusConfirmed, status.Intent.Status)
}

func TestFailedPaymentSoftCancelsOrder(t *testing.T) {
	env := newPaymentTestEnv(t)
	ctx := context.Background()

	order := env.createOrder(t, enum.OrderSourceQR)
	result := env.createIntent(t, order.ID)

	err := env.payments.HandleProviderEvent(ctx, env.tenant.ID, &payment.Event{
		Type:             payment.EventFailed,
		ProviderIntentID: result.Intent.ProviderIntentID,
		ReceivedAt:       time.Now(),
	})
	require.NoError(t, err)

	fresh, err := env.service.GetOrder(ctx, env.tenant.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusCancelled, fresh.Status)
	assert.Equal(t, enum.PaymentStatusUnpaid, fresh.PaymentStatus)

	// The failed attempt stays on record for the guest to query.
	status, err := env.payments.GetPaymentStatus(ctx, env.tenant.ID, order.ID)
	require.NoError(t, err)
	require.NotNil(t, status.Intent)
	assert.Equal(t, enum.IntentStatusFailed, status.Intent.Status)
}

func TestStaleFailureEventKeepsConfirmedIntent(t *testing.T) {
	env := newPaymentTestEnv(t)
	ctx := context.Background()

	order := env.createOrder(t, enum.OrderSourceQR)
	result := env.createIntent(t, order.ID)

	_, err := env.payments.ConfirmPayment(ctx, env.tenant.ID, result.Intent.ProviderIntentID)
	require.NoError(t, err)

	// A redelivered failure event for the same intent arrives after the
	// confirmation; the settled outcome must not be rewritten.
	err = env.payments.HandleProviderEvent(ctx, env.tenant.ID, &payment.Event{
		Type:             payment.EventFailed,
		ProviderIntentID: result.Intent.ProviderIntentID,
		ReceivedAt:       time.Now(),
	})
	require.NoError(t, err)

	status, err := env.payments.GetPaymentStatus(ctx, env.tenant.ID, order.ID)
	require.NoError(t, err)
	require.NotNil(t, status.Intent)
	assert.Equal(t, enum.IntentStatusConfirmed, status.Intent.Status)

	fresh, err := env.service.GetOrder(ctx, env.tenant.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusActive, fresh.Status)
	assert.Equal(t, enum.PaymentStatusPaid, fresh.PaymentStatus)
}

func TestFailedPaymentClosesProviderIntent(t *testing.T) {
	env := newPaymentTestEnv(t)
	ctx := context.Background()

	order := env.createOrder(t, enum.OrderSourceQR)
	result := env.createIntent(t, order.ID)

	err := env.payments.HandleProviderEvent(ctx, env.tenant.ID, &payment.Event{
		Type:             payment.EventFailed,
		ProviderIntentID: result.Intent.ProviderIntentID,
		ReceivedAt:       time.Now(),
	})
	require.NoError(t, err)

	// The provider-side intent is closed so it cannot charge later.
	assert.Equal(t, []string{result.Intent.ProviderIntentID}, env.provider.cancelled)
}

func TestCanceledEventSkipsProviderCancel(t *testing.T) {
	env := newPaymentTestEnv(t)
	ctx := context.Background()

	order := env.createOrder(t, enum.OrderSourceQR)
	result := env.createIntent(t, order.ID)

	err := env.payments.HandleProviderEvent(ctx, env.tenant.ID, &payment.Event{
		Type:             payment.EventCanceled,
		ProviderIntentID: result.Intent.ProviderIntentID,
		ReceivedAt:       time.Now(),
	})
	require.NoError(t, err)

	// The provider already closed the intent on its side.
	assert.Empty(t, env.provider.cancelled)
}

func TestNewIntentSupersedesPendingAttempt(t *testing.T) {
	env := newPaymentTestEnv(t)
	ctx := context.Background()

	order := env.createOrder(t, enum.OrderSourceQR)
	first := env.createIntent(t, order.ID)
	second := env.createIntent(t, order.ID)

	// The abandoned first attempt is closed on both sides.
	assert.Equal(t, []string{first.Intent.ProviderIntentID}, env.provider.cancelled)

	status, err := env.payments.GetPaymentStatus(ctx, env.tenant.ID, order.ID)
	require.NoError(t, err)
	require.NotNil(t, status.Intent)
	assert.Equal(t, second.Intent.ProviderIntentID, status.Intent.ProviderIntentID)
	assert.Equal(t, enum.IntentStatusPending, status.Intent.Status)
}

func TestFailureEventLeavesSettledOrderAlone(t *testing.T) {
	env := newPaymentTestEnv(t)
	ctx := context.Background()

	order := env.createOrder(t, enum.OrderSourceQR)
	result := env.createIntent(t, order.ID)

	// Staff collected cash at the counter before the card event landed.
	_, err := env.service.MarkPaidManually(ctx, env.tenant.ID, order.ID, "cash", uuid.New())
	require.NoError(t, err)

	err = env.payments.HandleProviderEvent(ctx, env.tenant.ID, &payment.Event{
		Type:             payment.EventCanceled,
		ProviderIntentID: result.Intent.ProviderIntentID,
		ReceivedAt:       time.Now(),
	})
	require.NoError(t, err)

	fresh, err := env.service.GetOrder(ctx, env.tenant.ID, order.ID)
	require.NoError(t, err)
	assert.NotEqual(t, enum.OrderStatusCancelled, fresh.Status)
	assert.Equal(t, enum.PaymentStatusPaid, fresh.PaymentStatus)
}

func TestUnknownIntentEventIsDropped(t *testing.T) {
	env := newPaymentTestEnv(t)

	err := env.payments.HandleProviderEvent(context.Background(), env.tenant.ID, &payment.Event{
		Type:             payment.EventSucceeded,
		ProviderIntentID: "pi_never_seen",
		ReceivedAt:       time.Now(),
	})
	assert.NoError(t, err)
}

func TestIgnoredEventIsNoOp(t *testing.T) {
	env := newPaymentTestEnv(t)

	err := env.payments.HandleProviderEvent(context.Background(), env.tenant.ID, &payment.Event{
		Type: payment.EventIgnored,
	})
	assert.NoError(t, err)
}
