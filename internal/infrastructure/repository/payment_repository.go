package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/tablelane/tablelane-api/internal/domain/entity"
	"github.com/tablelane/tablelane-api/internal/domain/enum"
	domainRepo "github.com/tablelane/tablelane-api/internal/domain/repository"
	"gorm.io/gorm"
)

type paymentIntentRepository struct {
	db *gorm.DB
}

// NewPaymentIntentRepository creates a new payment intent repository
func NewPaymentIntentRepository(db *gorm.DB) domainRepo.PaymentIntentRepository {
	return &paymentIntentRepository{db: db}
}

func (r *paymentIntentRepository) Create(ctx context.Context, intent *entity.PaymentIntent) error {
	return r.db.WithContext(ctx).Create(intent).Error
}

func (r *paymentIntentRepository) GetByProviderID(ctx context.Context, tenantID uuid.UUID, providerIntentID string) (*entity.PaymentIntent, error) {
	var intent entity.PaymentIntent
	err := r.db.WithContext(ctx).Scopes(TenantScope(tenantID)).
		First(&intent, "provider_intent_id = ?", providerIntentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *paymentIntentRepository) GetLatestByOrder(ctx context.Context, tenantID, orderID uuid.UUID) (*entity.PaymentIntent, error) {
	var intent entity.PaymentIntent
	err := r.db.WithContext(ctx).Scopes(TenantScope(tenantID)).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		First(&intent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

// TransitionStatus moves an intent from one status to another with the
// same conditional-update discipline as order transitions, so a stale
// provider redelivery can never rewrite a settled intent.
func (r *paymentIntentRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to enum.IntentStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entity.PaymentIntent{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
