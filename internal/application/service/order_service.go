package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/tablelane/tablelane-api/internal/domain/entity"
	"github.com/tablelane/tablelane-api/internal/domain/enum"
	"github.com/tablelane/tablelane-api/internal/domain/repository"
	"github.com/tablelane/tablelane-api/internal/notification"
	"github.com/tablelane/tablelane-api/pkg/apperror"
	"go.uber.org/zap"
)

// Notifier fans order events out to a tenant's connected stations.
// Publishing happens after the database commit and must never fail the
// request; implementations are fire-and-forget.
type Notifier interface {
	Publish(tenantID uuid.UUID, envelope *notification.Envelope)
}

// OrderService handles order lifecycle operations
type OrderService struct {
	orderRepo  repository.OrderRepository
	menuRepo   repository.MenuItemRepository
	tableRepo  repository.TableRepository
	tenantRepo repository.TenantRepository
	notifier   Notifier
	logger     *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	orderRepo repository.OrderRepository,
	menuRepo repository.MenuItemRepository,
	tableRepo repository.TableRepository,
	tenantRepo repository.TenantRepository,
	notifier Notifier,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		orderRepo:  orderRepo,
		menuRepo:   menuRepo,
		tableRepo:  tableRepo,
		tenantRepo: tenantRepo,
		notifier:   notifier,
		logger:     logger,
	}
}

// OrderItemInput represents one requested line item at creation
type OrderItemInput struct {
	MenuItemID uuid.UUID
	Quantity   int
	Notes      string
}

// CreateOrderInput represents the create order input
type CreateOrderInput struct {
	TenantID uuid.UUID
	TableID  uuid.UUID
	Source   enum.OrderSource
	StaffID  uuid.UUID // zero for QR self-service orders
	Items    []OrderItemInput

	// DiscountAmount is a staff-granted discount in cents, applied to
	// the whole order at creation. Always zero for QR orders.
	DiscountAmount int64
}

// CreateOrder validates the requested items against the live menu,
// snapshots their prices and persists the order with its line items in
// one transaction. Counter orders start active; QR orders start pending
// until payment confirms them.
func (s *OrderService) CreateOrder(ctx context.Context, input *CreateOrderInput) (*entity.Order, error) {
	if len(input.Items) == 0 {
		return nil, apperror.NewValidationError("Order must contain at least one item")
	}

	table, err := s.tableRepo.GetByID(ctx, input.TenantID, input.TableID)
	if err != nil {
		return nil, err
	}
	if table == nil {
		return nil, apperror.NewNotFoundError("Table")
	}

	tenant, err := s.tenantRepo.GetByID(ctx, input.TenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, apperror.NewNotFoundError("Tenant")
	}

	// Batch fetch all menu items in one query (prevents N+1)
	menuItemIDs := make([]uuid.UUID, len(input.Items))
	for i, item := range input.Items {
		menuItemIDs[i] = item.MenuItemID
	}

	menuItems, err := s.menuRepo.GetByIDs(ctx, input.TenantID, menuItemIDs)
	if err != nil {
		return nil, err
	}

	menuMap := make(map[uuid.UUID]*entity.MenuItem, len(menuItems))
	for i := range menuItems {
		menuMap[menuItems[i].ID] = &menuItems[i]
	}

	items := make([]entity.OrderItem, 0, len(input.Items))
	for _, item := range input.Items {
		menuItem, exists := menuMap[item.MenuItemID]
		if !exists {
			return nil, apperror.NewNotFoundError(fmt.Sprintf("Menu item %s", item.MenuItemID))
		}
		if !menuItem.Available {
			return nil, apperror.NewValidationError(fmt.Sprintf("Menu item %s is not available", menuItem.Name))
		}
		if item.Quantity < 1 {
			return nil, apperror.NewValidationError("Item quantity must be at least 1")
		}

		items = append(items, entity.OrderItem{
			MenuItemID: menuItem.ID,
			Name:       menuItem.Name,
			Quantity:   item.Quantity,
			UnitPrice:  menuItem.Price, // price snapshot, immune to later menu edits
			Notes:      item.Notes,
		})
	}

	status := enum.OrderStatusActive
	if input.Source == enum.OrderSourceQR {
		status = enum.OrderStatusPending
	}

	if input.DiscountAmount < 0 {
		return nil, apperror.NewValidationError("Discount cannot be negative")
	}
	var subtotal int64
	for i := range items {
		subtotal += items[i].UnitPrice * int64(items[i].Quantity)
	}
	if input.DiscountAmount > subtotal {
		return nil, apperror.NewValidationError("Discount cannot exceed the order subtotal")
	}

	order := &entity.Order{
		TenantID:       input.TenantID,
		OrderNo:        generateOrderNo(tenant.Settings.OrderPrefix),
		TableID:        input.TableID,
		Status:         status,
		Source:         input.Source,
		TaxRate:        tenant.Settings.TaxRate,
		DiscountAmount: input.DiscountAmount,
		CreatedBy:      input.StaffID,
		Items:          items,
	}
	order.Recompute()

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, err
	}

	// Pending QR orders are not announced until payment settles.
	if order.Status == enum.OrderStatusActive {
		s.notifier.Publish(order.TenantID, notification.NewEnvelope(notification.PrintReceipt, order, nil))
	}

	return order, nil
}

// GetOrder returns one order with its items.
func (s *OrderService) GetOrder(ctx context.Context, tenantID, orderID uuid.UUID) (*entity.Order, error) {
	order, err := s.orderRepo.GetWithItems(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperror.NewNotFoundError("Order")
	}
	return order, nil
}

// ListOrders returns a filtered, paginated order listing.
func (s *OrderService) ListOrders(ctx context.Context, tenantID uuid.UUID, params *repository.OrderFilterParams) ([]entity.Order, int64, error) {
	return s.orderRepo.List(ctx, tenantID, params)
}

// OpType tags one modification operation.
type OpType string

const (
	OpAddItem        OpType = "add_item"
	OpUpdateQuantity OpType = "update_quantity"
	OpUpdateNotes    OpType = "update_notes"
	OpRemoveItem     OpType = "remove_item"
)

// Operation is one entry of a modification request. Which fields are
// meaningful depends on Op: add_item uses MenuItemID/Quantity/Notes,
// the others address an existing line via OrderItemID.
type Operation struct {
	Op          OpType
	MenuItemID  uuid.UUID
	OrderItemID uuid.UUID
	Quantity    int
	Notes       string
}

// ModifyOrder applies a batch of operations to an open order as one
// atomic unit: either every operation lands and the totals are
// recomputed from the surviving items, or nothing changes. One
// modified-receipt notification is emitted per batch, after commit.
func (s *OrderService) ModifyOrder(ctx context.Context, tenantID, orderID uuid.UUID, ops []Operation) (*entity.Order, error) {
	if len(ops) == 0 {
		return nil, apperror.NewValidationError("Modification must contain at least one operation")
	}

	// Batch fetch the menu items the add operations reference before
	// entering the transaction.
	var addIDs []uuid.UUID
	for _, op := range ops {
		if op.Op == OpAddItem {
			addIDs = append(addIDs, op.MenuItemID)
		}
	}
	menuMap := make(map[uuid.UUID]*entity.MenuItem, len(addIDs))
	if len(addIDs) > 0 {
		menuItems, err := s.menuRepo.GetByIDs(ctx, tenantID, addIDs)
		if err != nil {
			return nil, err
		}
		for i := range menuItems {
			menuMap[menuItems[i].ID] = &menuItems[i]
		}
	}

	var changes []string

	order, err := s.orderRepo.ApplyMutation(ctx, tenantID, orderID, func(order *entity.Order) (*repository.OrderMutation, error) {
		if !order.Status.Mutable() {
			return nil, apperror.NewConflictError(fmt.Sprintf("Order is %s and can no longer be modified", order.Status))
		}
		if order.PaymentStatus == enum.PaymentStatusPaid {
			return nil, apperror.NewConflictError("Order is paid and can no longer be modified")
		}

		// The build closure may run more than once under contention;
		// the summary is rebuilt from scratch each attempt.
		changes = changes[:0]
		mutation := &repository.OrderMutation{}

		for _, op := range ops {
			switch op.Op {
			case OpAddItem:
				menuItem, exists := menuMap[op.MenuItemID]
				if !exists {
					return nil, apperror.NewNotFoundError(fmt.Sprintf("Menu item %s", op.MenuItemID))
				}
				if !menuItem.Available {
					return nil, apperror.NewValidationError(fmt.Sprintf("Menu item %s is not available", menuItem.Name))
				}
				if op.Quantity < 1 {
					return nil, apperror.NewValidationError("Item quantity must be at least 1")
				}
				mutation.Upserts = append(mutation.Upserts, entity.OrderItem{
					MenuItemID: menuItem.ID,
					Name:       menuItem.Name,
					Quantity:   op.Quantity,
					UnitPrice:  menuItem.Price,
					Notes:      op.Notes,
				})
				changes = append(changes, fmt.Sprintf("added %dx %s", op.Quantity, menuItem.Name))

			case OpUpdateQuantity:
				item := order.ItemByID(op.OrderItemID)
				if item == nil {
					return nil, apperror.NewNotFoundError("Order item")
				}
				if op.Quantity <= 0 {
					// Quantity zero means the guest changed their mind.
					mutation.Removes = append(mutation.Removes, item.ID)
					changes = append(changes, fmt.Sprintf("removed %s", item.Name))
					continue
				}
				updated := *item
				updated.Quantity = op.Quantity
				mutation.Upserts = append(mutation.Upserts, updated)
				changes = append(changes, fmt.Sprintf("changed %s quantity to %d", item.Name, op.Quantity))

			case OpUpdateNotes:
				item := order.ItemByID(op.OrderItemID)
				if item == nil {
					return nil, apperror.NewNotFoundError("Order item")
				}
				updated := *item
				updated.Notes = op.Notes
				mutation.Upserts = append(mutation.Upserts, updated)
				changes = append(changes, fmt.Sprintf("updated notes on %s", item.Name))

			case OpRemoveItem:
				item := order.ItemByID(op.OrderItemID)
				if item == nil {
					return nil, apperror.NewNotFoundError("Order item")
				}
				mutation.Removes = append(mutation.Removes, item.ID)
				changes = append(changes, fmt.Sprintf("removed %s", item.Name))

			default:
				return nil, apperror.NewBadRequestError(fmt.Sprintf("Unknown operation %q", op.Op))
			}
		}

		return mutation, nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(order.TenantID, notification.NewEnvelope(notification.PrintModifiedReceipt, order, changes))

	return order, nil
}

// CancelOrder cancels an order. Cancelling an already-cancelled order
// is an idempotent success: the cancelled order comes back unchanged.
func (s *OrderService) CancelOrder(ctx context.Context, tenantID, orderID uuid.UUID, reason string, actor *uuid.UUID) (*entity.Order, error) {
	order, err := s.orderRepo.GetWithItems(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperror.NewNotFoundError("Order")
	}
	if order.Status == enum.OrderStatusCancelled {
		return order, nil
	}

	moved, err := s.orderRepo.Cancel(ctx, tenantID, orderID, reason, actor, time.Now())
	if err != nil {
		return nil, err
	}
	if !moved {
		// A concurrent cancel won the guard; same outcome.
		s.logger.Debug("cancel raced with another canceller", zap.String("order_id", orderID.String()))
	}

	return s.orderRepo.GetWithItems(ctx, tenantID, orderID)
}

// MarkPaidManually records a counter payment taken outside the online
// flow (cash, terminal) and moves the order to its post-payment status.
func (s *OrderService) MarkPaidManually(ctx context.Context, tenantID, orderID uuid.UUID, method string, staffID uuid.UUID) (*entity.Order, error) {
	order, err := s.orderRepo.GetWithItems(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperror.NewNotFoundError("Order")
	}
	if order.Status == enum.OrderStatusCancelled {
		return nil, apperror.NewConflictError("Cannot mark a cancelled order as paid")
	}

	if order.PaymentStatus == enum.PaymentStatusPaid {
		return order, nil
	}

	paid, err := s.orderRepo.MarkPaid(ctx, tenantID, orderID, method, staffID, time.Now())
	if err != nil {
		return nil, err
	}
	if !paid {
		return nil, apperror.NewConflictError("Order payment state changed, please retry")
	}

	// Counter settlement touches payment fields only; order status keeps
	// its own lifecycle and closes through the normal flow.
	order, err = s.orderRepo.GetWithItems(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status != enum.OrderStatusPending {
		s.notifier.Publish(order.TenantID, notification.NewEnvelope(notification.PrintReceipt, order, nil))
	}

	return order, nil
}

// CloseOrder completes an active order whose bill is settled.
func (s *OrderService) CloseOrder(ctx context.Context, tenantID, orderID uuid.UUID) (*entity.Order, error) {
	order, err := s.orderRepo.GetWithItems(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apperror.NewNotFoundError("Order")
	}
	if order.Status == enum.OrderStatusClosed {
		return order, nil
	}
	if !order.Status.CanTransitionTo(enum.OrderStatusClosed) {
		return nil, apperror.NewConflictError(fmt.Sprintf("Cannot close a %s order", order.Status))
	}
	if order.PaymentStatus != enum.PaymentStatusPaid {
		return nil, apperror.NewConflictError("Order must be paid before closing")
	}

	closed, err := s.orderRepo.Close(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if !closed {
		return nil, apperror.NewConflictError("Order state changed, please retry")
	}
	return s.orderRepo.GetWithItems(ctx, tenantID, orderID)
}

const orderNoAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// generateOrderNo builds a short human-readable order number. The
// tenant+number unique index catches the unlikely collision.
func generateOrderNo(prefix string) string {
	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = orderNoAlphabet[rand.Intn(len(orderNoAlphabet))]
	}
	return fmt.Sprintf("%s%s-%s", prefix, time.Now().Format("060102"), suffix)
}
