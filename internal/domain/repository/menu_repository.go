package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/tablelane/tablelane-api/internal/domain/entity"
)

// MenuItemRepository defines tenant-scoped menu lookups consumed by
// the order mutation service. Menu CRUD itself lives elsewhere.
type MenuItemRepository interface {
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.MenuItem, error)
	GetByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]entity.MenuItem, error)
	ListAvailable(ctx context.Context, tenantID uuid.UUID) ([]entity.MenuItem, error)
	Create(ctx context.Context, item *entity.MenuItem) error
}

// TableRepository defines tenant-scoped dining-table lookups.
type TableRepository interface {
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*entity.DiningTable, error)
	GetByQRCode(ctx context.Context, tenantID uuid.UUID, code string) (*entity.DiningTable, error)
	Create(ctx context.Context, table *entity.DiningTable) error
}
