package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tablelane/tablelane-api/internal/domain/entity"
	"github.com/tablelane/tablelane-api/internal/domain/enum"
	domainRepo "github.com/tablelane/tablelane-api/internal/domain/repository"
	"github.com/tablelane/tablelane-api/pkg/apperror"
	"gorm.io/gorm"
)

// maxMutationRetries bounds the CAS retry loop in ApplyMutation.
const maxMutationRetries = 5

// errVersionConflict aborts a mutation transaction whose version guard
// missed; the loop in ApplyMutation reloads and retries.
var errVersionConflict = errors.New("order version conflict")

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *gorm.DB) domainRepo.OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *entity.Order) error {
	// Items are created through the association in the same transaction.
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *orderRepository) GetWithItems(ctx context.Context, tenantID, id uuid.UUID) (*entity.Order, error) {
	var order entity.Order
	err := r.db.WithContext(ctx).
		Scopes(TenantScope(tenantID)).
		Preload("Items").
		First(&order, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) List(ctx context.Context, tenantID uuid.UUID, params *domainRepo.OrderFilterParams) ([]entity.Order, int64, error) {
	var orders []entity.Order
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Order{}).Scopes(TenantScope(tenantID))

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.TableID != nil {
		query = query.Where("table_id = ?", *params.TableID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	perPage := params.PerPage
	if perPage < 1 || perPage > 100 {
		perPage = 15
	}

	err := query.Offset((page - 1) * perPage).Limit(perPage).
		Preload("Items").
		Order("created_at DESC").
		Find(&orders).Error

	return orders, total, err
}

// ApplyMutation serializes a modification unit against one order.
//
// The item writes and the total recompute happen inside a single
// transaction, and the order row itself is written with a
// compare-and-swap on its version column. When the guard misses
// (a concurrent writer committed first) the whole transaction rolls
// back and is retried against the fresh row, so no delta is ever lost.
func (r *orderRepository) ApplyMutation(ctx context.Context, tenantID, orderID uuid.UUID, build func(order *entity.Order) (*domainRepo.OrderMutation, error)) (*entity.Order, error) {
	for attempt := 0; attempt < maxMutationRetries; attempt++ {
		var out *entity.Order

		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var order entity.Order
			err := tx.Scopes(TenantScope(tenantID)).
				Preload("Items").
				First(&order, "id = ?", orderID).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.NewNotFoundError("Order")
			}
			if err != nil {
				return err
			}

			mutation, err := build(&order)
			if err != nil {
				return err
			}

			for i := range mutation.Upserts {
				item := mutation.Upserts[i]
				item.OrderID = order.ID
				if err := tx.Save(&item).Error; err != nil {
					return err
				}
			}
			if len(mutation.Removes) > 0 {
				if err := tx.Delete(&entity.OrderItem{}, "order_id = ? AND id IN ?", order.ID, mutation.Removes).Error; err != nil {
					return err
				}
			}

			// Recompute from the full surviving set, never from the
			// cached total.
			var items []entity.OrderItem
			if err := tx.Where("order_id = ?", order.ID).Order("created_at ASC").Find(&items).Error; err != nil {
				return err
			}
			order.Items = items
			order.Recompute()

			res := tx.Model(&entity.Order{}).
				Where("id = ? AND version = ?", order.ID, order.Version).
				Updates(map[string]interface{}{
					"sub_total":       order.SubTotal,
					"tax_amount":      order.TaxAmount,
					"discount_amount": order.DiscountAmount,
					"final_amount":    order.FinalAmount,
					"version":         order.Version + 1,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errVersionConflict
			}

			order.Version++
			out = &order
			return nil
		})

		if errors.Is(err, errVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}

	return nil, apperror.NewConflictError("Order was modified concurrently, please retry")
}

// TransitionFromPending is the single conditional transition used by
// both payment triggers: whichever arrives first matches the guard;
// the loser affects zero rows and the caller reports a no-op.
func (r *orderRepository) TransitionFromPending(ctx context.Context, tenantID, orderID uuid.UUID, to enum.OrderStatus, method string, paidAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entity.Order{}).
		Scopes(TenantScope(tenantID)).
		Where("id = ? AND status = ? AND payment_status = ?", orderID, enum.OrderStatusPending, enum.PaymentStatusUnpaid).
		Updates(map[string]interface{}{
			"status":         to,
			"payment_status": enum.PaymentStatusPaid,
			"payment_method": method,
			"paid_at":        paidAt,
			"version":        gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *orderRepository) Cancel(ctx context.Context, tenantID, orderID uuid.UUID, reason string, actor *uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entity.Order{}).
		Scopes(TenantScope(tenantID)).
		Where("id = ? AND status <> ?", orderID, enum.OrderStatusCancelled).
		Updates(map[string]interface{}{
			"status":        enum.OrderStatusCancelled,
			"cancel_reason": reason,
			"cancelled_by":  actor,
			"cancelled_at":  at,
			"version":       gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *orderRepository) Close(ctx context.Context, tenantID, orderID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entity.Order{}).
		Scopes(TenantScope(tenantID)).
		Where("id = ? AND status = ?", orderID, enum.OrderStatusActive).
		Updates(map[string]interface{}{
			"status":  enum.OrderStatusClosed,
			"version": gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *orderRepository) MarkPaid(ctx context.Context, tenantID, orderID uuid.UUID, method string, actor uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entity.Order{}).
		Scopes(TenantScope(tenantID)).
		Where("id = ? AND payment_status = ?", orderID, enum.PaymentStatusUnpaid).
		Updates(map[string]interface{}{
			"payment_status": enum.PaymentStatusPaid,
			"payment_method": method,
			"paid_by":        actor,
			"paid_at":        at,
			"version":        gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// sweepScope narrows a sweep query to one tenant; uuid.Nil keeps the
// background timer's all-tenant span.
func sweepScope(tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if tenantID == uuid.Nil {
			return db
		}
		return db.Where("tenant_id = ?", tenantID)
	}
}

// CancelAbandoned uses the same pending-only guard as the payment
// transition, so a sweep can never cancel an order that a concurrent
// confirmation already materialized.
func (r *orderRepository) CancelAbandoned(ctx context.Context, tenantID uuid.UUID, cutoff time.Time, reason string) (int64, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&entity.Order{}).
		Scopes(sweepScope(tenantID)).
		Where("status = ? AND payment_status = ? AND created_at < ?", enum.OrderStatusPending, enum.PaymentStatusUnpaid, cutoff).
		Updates(map[string]interface{}{
			"status":        enum.OrderStatusCancelled,
			"cancel_reason": reason,
			"cancelled_at":  now,
			"version":       gorm.Expr("version + 1"),
		})
	return res.RowsAffected, res.Error
}

func (r *orderRepository) CountPending(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Order{}).
		Scopes(sweepScope(tenantID)).
		Where("status = ?", enum.OrderStatusPending).
		Count(&count).Error
	return count, err
}

func (r *orderRepository) ListPendingBefore(ctx context.Context, tenantID uuid.UUID, cutoff time.Time) ([]entity.Order, error) {
	var orders []entity.Order
	err := r.db.WithContext(ctx).
		Scopes(sweepScope(tenantID)).
		Where("status = ? AND payment_status = ? AND created_at < ?", enum.OrderStatusPending, enum.PaymentStatusUnpaid, cutoff).
		Order("created_at ASC").
		Find(&orders).Error
	return orders, err
}
