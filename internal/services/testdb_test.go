package services

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/blinkq/internal/models"
	"github.com/example/blinkq/internal/pricing"
)

// newTestDB opens a per-test in-memory database with the full schema.
// The shared-cache name keeps every pooled connection on the same store.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Address{},
		&models.Product{},
		&models.Coupon{},
		&models.Order{},
		&models.OrderItem{},
	))

	return db
}

func testRules() pricing.Rules {
	return pricing.Rules{
		FreeShippingThreshold: decimal.NewFromInt(499),
		FlatShippingFee:       decimal.NewFromInt(49),
		TaxRate:               decimal.RequireFromString("0.18"),
	}
}

func seedUser(t *testing.T, db *gorm.DB, email string) models.User {
	t.Helper()

	user := models.User{
		FirstName:    "Asha",
		LastName:     "Verma",
		Email:        email,
		Phone:        "9876543210",
		PasswordHash: "x",
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedAddress(t *testing.T, db *gorm.DB, userID uuid.UUID) models.Address {
	t.Helper()

	address := models.Address{
		UserID:       userID,
		FirstName:    "Asha",
		AddressLine1: "12 MG Road",
		City:         "Bengaluru",
		State:        "KA",
		PostalCode:   "560001",
		Phone:        "9876543210",
		IsDefault:    true,
	}
	require.NoError(t, db.Create(&address).Error)
	return address
}

func seedProduct(t *testing.T, db *gorm.DB, sku, price string) models.Product {
	t.Helper()

	product := models.Product{
		Name:     "Product " + sku,
		SKU:      sku,
		Slug:     "product-" + sku,
		Price:    decimal.RequireFromString(price),
		Stock:    100,
		IsActive: true,
	}
	require.NoError(t, db.Create(&product).Error)
	return product
}
