package testutil

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/tablelane/tablelane-api/internal/domain/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB opens an in-memory SQLite database migrated with the full
// schema. Each call gets its own isolated database.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// SQLite serializes writers; a single connection avoids table-lock
	// errors from concurrent test goroutines.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get underlying sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&entity.Tenant{},
		&entity.MenuItem{},
		&entity.DiningTable{},
		&entity.Order{},
		&entity.OrderItem{},
		&entity.PaymentIntent{},
		&entity.IdempotencyKey{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		sqlDB.Close()
	})

	return db
}

// SeedTenant creates a tenant with default settings for tests.
func SeedTenant(t *testing.T, db *gorm.DB) *entity.Tenant {
	t.Helper()

	tenant := &entity.Tenant{
		Name:     "Test Bistro",
		Slug:     "test-bistro",
		Settings: entity.DefaultTenantSettings(),
	}
	if err := db.Create(tenant).Error; err != nil {
		t.Fatalf("failed to seed tenant: %v", err)
	}
	return tenant
}
