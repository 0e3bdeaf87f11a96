package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tablelane/tablelane-api/internal/domain/entity"
	"github.com/tablelane/tablelane-api/internal/domain/enum"
)

// OrderFilterParams holds filtering options for listing orders
type OrderFilterParams struct {
	Status  *enum.OrderStatus
	TableID *uuid.UUID
	Page    int
	PerPage int
}

// OrderMutation describes the line-item writes of one modification
// unit. The repository applies it and the total recompute atomically.
type OrderMutation struct {
	Upserts []entity.OrderItem // items to create or update
	Removes []uuid.UUID        // item ids to delete
}

// OrderRepository defines the interface for order data access.
//
// All lookups are tenant-scoped: a row belonging to another tenant is
// indistinguishable from an absent one. The conditional methods return
// false (not an error) when the guard did not match, which is how the
// first-wins races in the payment and sweeper paths stay safe.
type OrderRepository interface {
	// Create persists the order and its items in one transaction.
	Create(ctx context.Context, order *entity.Order) error

	GetWithItems(ctx context.Context, tenantID, id uuid.UUID) (*entity.Order, error)
	List(ctx context.Context, tenantID uuid.UUID, params *OrderFilterParams) ([]entity.Order, int64, error)

	// ApplyMutation serializes one modification unit against the order:
	// it loads the order with its items, calls build to produce the item
	// writes, applies them, recomputes the totals from the surviving
	// items and writes the order row guarded by its version, retrying
	// the whole transaction when a concurrent writer got there first.
	ApplyMutation(ctx context.Context, tenantID, orderID uuid.UUID, build func(order *entity.Order) (*OrderMutation, error)) (*entity.Order, error)

	// TransitionFromPending applies "set status/paymentStatus only if
	// status is currently pending". Returns false when zero rows moved.
	TransitionFromPending(ctx context.Context, tenantID, orderID uuid.UUID, to enum.OrderStatus, method string, paidAt time.Time) (bool, error)

	// Cancel transitions to cancelled unless already cancelled.
	Cancel(ctx context.Context, tenantID, orderID uuid.UUID, reason string, actor *uuid.UUID, at time.Time) (bool, error)

	// Close transitions an active order to closed.
	Close(ctx context.Context, tenantID, orderID uuid.UUID) (bool, error)

	// MarkPaid applies "set paymentStatus=paid only if currently unpaid".
	MarkPaid(ctx context.Context, tenantID, orderID uuid.UUID, method string, actor uuid.UUID, at time.Time) (bool, error)

	// CancelAbandoned bulk-cancels pending orders created before cutoff,
	// returning how many rows moved. A uuid.Nil tenantID spans all
	// tenants; that form is reserved for the background timer, callers
	// acting for a tenant must pass its id.
	CancelAbandoned(ctx context.Context, tenantID uuid.UUID, cutoff time.Time, reason string) (int64, error)
	CountPending(ctx context.Context, tenantID uuid.UUID) (int64, error)
	ListPendingBefore(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) ([]entity.Order, error)
}
