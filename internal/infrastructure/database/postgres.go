package database

import (
	"fmt"
	"log"

	"github.com/spf13/viper"
	"github.com/tablelane/tablelane-api/internal/config"
	"github.com/tablelane/tablelane-api/internal/domain/entity"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	logLevel := logger.Warn

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: true, // disables implicit prepared statement usage
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying SQL DB to set connection pool settings
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	log.Println("Successfully connected to PostgreSQL database")
	return db, nil
}

// AutoMigrate runs GORM auto-migration for all entities
func AutoMigrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	err := db.AutoMigrate(
		// Tenant entities
		&entity.Tenant{},

		// Menu entities
		&entity.MenuItem{},
		&entity.DiningTable{},

		// Order entities
		&entity.Order{},
		&entity.OrderItem{},

		// Payment entities
		&entity.PaymentIntent{},

		// System entities
		&entity.IdempotencyKey{},
	)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// SeedDemoData seeds a demo tenant with a menu and dining tables so a fresh
// install is usable immediately. Safe to call on every startup.
func SeedDemoData(db *gorm.DB) error {
	slug := viper.GetString("DEMO_TENANT_SLUG")
	if slug == "" {
		slug = "demo-bistro"
	}

	var tenant entity.Tenant
	if err := db.Where("slug = ?", slug).First(&tenant).Error; err == nil {
		log.Printf("Demo tenant already exists: %s", slug)
		return nil
	}

	log.Println("Seeding demo data...")

	settings := entity.DefaultTenantSettings()
	if sk := viper.GetString("DEMO_STRIPE_SECRET_KEY"); sk != "" {
		settings.Stripe = &entity.StripeIntegration{
			Enabled:        true,
			PublishableKey: viper.GetString("DEMO_STRIPE_PUBLISHABLE_KEY"),
			SecretKey:      sk,
			WebhookSecret:  viper.GetString("DEMO_STRIPE_WEBHOOK_SECRET"),
		}
	}

	tenant = entity.Tenant{
		Name:     "Demo Bistro",
		Slug:     slug,
		Settings: settings,
	}
	if err := db.Create(&tenant).Error; err != nil {
		return fmt.Errorf("failed to create demo tenant: %w", err)
	}

	menuItems := []entity.MenuItem{
		{TenantID: tenant.ID, Name: "Margherita Pizza", Price: 1200, Category: "Mains", Available: true},
		{TenantID: tenant.ID, Name: "Carbonara", Price: 1400, Category: "Mains", Available: true},
		{TenantID: tenant.ID, Name: "Caesar Salad", Price: 900, Category: "Starters", Available: true},
		{TenantID: tenant.ID, Name: "Tiramisu", Price: 700, Category: "Desserts", Available: true},
		{TenantID: tenant.ID, Name: "Espresso", Price: 300, Category: "Drinks", Available: true},
		{TenantID: tenant.ID, Name: "House Red", Price: 650, Category: "Drinks", Available: true},
	}
	for i := range menuItems {
		if err := db.Create(&menuItems[i]).Error; err != nil {
			log.Printf("Warning: failed to create menu item %s: %v", menuItems[i].Name, err)
		}
	}

	for n := 1; n <= 8; n++ {
		table := entity.DiningTable{
			TenantID: tenant.ID,
			Number:   n,
			QRCode:   fmt.Sprintf("%s-table-%d", slug, n),
		}
		if err := db.Create(&table).Error; err != nil {
			log.Printf("Warning: failed to create table %d: %v", n, err)
		}
	}

	log.Printf("Demo tenant created: %s", slug)
	return nil
}
