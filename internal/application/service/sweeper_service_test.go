package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tablelane/tablelane-api/internal/domain/entity"
	"github.com/tablelane/tablelane-api/internal/domain/enum"
	infraRepo "github.com/tablelane/tablelane-api/internal/infrastructure/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func ageOrder(t *testing.T, db *gorm.DB, order *entity.Order, age time.Duration) {
	t.Helper()
	require.NoError(t, db.Model(&entity.Order{}).
		Where("id = ?", order.ID).
		Update("created_at", time.Now().Add(-age)).Error)
}

func TestSweepCancelsOnlyStalePendingOrders(t *testing.T) {
	env := newOrderTestEnv(t)
	ctx := context.Background()

	stale := env.createOrder(t, enum.OrderSourceQR)
	ageOrder(t, env.db, stale, time.Hour)

	fresh := env.createOrder(t, enum.OrderSourceQR)
	active := env.createOrder(t, enum.OrderSourceCounter)

	sweeper := NewSweeperService(infraRepo.NewOrderRepository(env.db), 30*time.Minute, time.Minute, zap.NewNop())

	swept, err := sweeper.Sweep(ctx, uuid.Nil, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), swept)

	staleAfter, err := env.service.GetOrder(ctx, env.tenant.ID, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusCancelled, staleAfter.Status)
	assert.Equal(t, "abandoned before payment", staleAfter.CancelReason)

	freshAfter, err := env.service.GetOrder(ctx, env.tenant.ID, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusPending, freshAfter.Status)

	activeAfter, err := env.service.GetOrder(ctx, env.tenant.ID, active.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusActive, activeAfter.Status)
}

func TestSweepSparesPaidPendingOrders(t *testing.T) {
	env := newOrderTestEnv(t)
	ctx := context.Background()

	order := env.createOrder(t, enum.OrderSourceQR)
	ageOrder(t, env.db, order, time.Hour)

	// Payment settled between the list and the sweep; the conditional
	// update must not run it over.
	require.NoError(t, env.db.Model(&entity.Order{}).
		Where("id = ?", order.ID).
		Update("payment_status", enum.PaymentStatusPaid).Error)

	sweeper := NewSweeperService(infraRepo.NewOrderRepository(env.db), 30*time.Minute, time.Minute, zap.NewNop())

	swept, err := sweeper.Sweep(ctx, uuid.Nil, 0)
	require.NoError(t, err)
	assert.Zero(t, swept)
}

func TestListAbandonedPreviewsSweepTargets(t *testing.T) {
	env := newOrderTestEnv(t)
	ctx := context.Background()

	stale := env.createOrder(t, enum.OrderSourceQR)
	ageOrder(t, env.db, stale, time.Hour)
	env.createOrder(t, enum.OrderSourceQR)

	sweeper := NewSweeperService(infraRepo.NewOrderRepository(env.db), 30*time.Minute, time.Minute, zap.NewNop())

	abandoned, err := sweeper.ListAbandoned(ctx, uuid.Nil, 0)
	require.NoError(t, err)
	require.Len(t, abandoned, 1)
	assert.Equal(t, stale.ID, abandoned[0].ID)

	count, err := sweeper.PendingCount(ctx, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestSweepScopedToTenantLeavesOthersAlone(t *testing.T) {
	env := newOrderTestEnv(t)
	ctx := context.Background()

	mine := env.createOrder(t, enum.OrderSourceQR)
	ageOrder(t, env.db, mine, time.Hour)

	other := &entity.Tenant{Name: "Other Bistro", Slug: "other-bistro", Settings: entity.DefaultTenantSettings()}
	require.NoError(t, env.db.Create(other).Error)
	theirs := seedPendingOrder(t, env.db, other.ID)
	ageOrder(t, env.db, theirs, time.Hour)

	sweeper := NewSweeperService(infraRepo.NewOrderRepository(env.db), 30*time.Minute, time.Minute, zap.NewNop())

	// A tenant-level sweep must neither see nor touch the other tenant.
	abandoned, err := sweeper.ListAbandoned(ctx, env.tenant.ID, 0)
	require.NoError(t, err)
	require.Len(t, abandoned, 1)
	assert.Equal(t, mine.ID, abandoned[0].ID)

	swept, err := sweeper.Sweep(ctx, env.tenant.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), swept)

	var fresh entity.Order
	require.NoError(t, env.db.First(&fresh, "id = ?", theirs.ID).Error)
	assert.Equal(t, enum.OrderStatusPending, fresh.Status)

	count, err := sweeper.PendingCount(ctx, env.tenant.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func seedPendingOrder(t *testing.T, db *gorm.DB, tenantID uuid.UUID) *entity.Order {
	t.Helper()
	order := &entity.Order{
		TenantID: tenantID,
		OrderNo:  "ORD-TEST-" + uuid.NewString()[:8],
		Status:   enum.OrderStatusPending,
		Source:   enum.OrderSourceQR,
		Items: []entity.OrderItem{
			{MenuItemID: uuid.New(), Name: "Pizza", Quantity: 1, UnitPrice: 800},
		},
	}
	order.Recompute()
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestSweeperDefaultsApplied(t *testing.T) {
	sweeper := NewSweeperService(infraRepo.NewOrderRepository(nil), 0, 0, zap.NewNop())
	assert.Equal(t, 30*time.Minute, sweeper.maxAge)
	assert.Equal(t, 5*time.Minute, sweeper.interval)
}
