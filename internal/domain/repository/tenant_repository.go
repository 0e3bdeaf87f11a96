package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/tablelane/tablelane-api/internal/domain/entity"
)

// TenantRepository defines the interface for tenant data access
type TenantRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*entity.Tenant, error)
	Create(ctx context.Context, tenant *entity.Tenant) error
}
