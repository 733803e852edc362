package services

import (
	"context"
	"encoding/hex"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/blinkq/internal/models"
)

func TestGenerateOrderNumber(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	number := GenerateOrderNumber(fixedNow)

	parts := strings.Split(number, "-")
	require.Len(t, parts, 3)
	assert.Equal(t, "ORD", parts[0])
	assert.Equal(t, strconv.FormatInt(fixedNow.UnixMilli(), 10), parts[1])

	suffix, err := hex.DecodeString(parts[2])
	require.NoError(t, err)
	assert.Len(t, suffix, 3)
}

func TestGenerateOrderNumberUniqueSuffix(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		seen[GenerateOrderNumber(fixedNow)] = true
	}
	// Same millisecond, distinct suffixes. 50 draws from 2^24 values
	// colliding down to a handful would mean a broken random source.
	assert.Greater(t, len(seen), 45)
}

func TestCreateOrderIdempotentReplay(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "buyer@example.com")
	address := seedAddress(t, db, user.ID)
	product := seedProduct(t, db, "SKU-IDEM", "600")

	orders := NewOrderService(db, NewCouponService(db), testRules(), "INR")

	input := CreateOrderInput{
		UserID:        user.ID,
		RequestID:     "req-idem-1",
		AddressID:     address.ID,
		PaymentMethod: models.PaymentMethodRazorpay,
		Lines:         []OrderLine{{ProductID: product.ID, Quantity: 2}},
	}

	first, err := orders.CreateOrder(context.Background(), input)
	require.NoError(t, err)
	second, err := orders.CreateOrder(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.OrderNumber, second.OrderNumber)

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// Free shipping above the threshold; 18% tax on 1200 rounds to 216.
	assert.True(t, first.TotalAmount.Equal(decimal.RequireFromString("1416")),
		"total: got %s", first.TotalAmount)
}

func TestCreateOrderSameRequestIDAcrossUsers(t *testing.T) {
	db := newTestDB(t)
	product := seedProduct(t, db, "SKU-X", "100")
	orders := NewOrderService(db, NewCouponService(db), testRules(), "INR")

	alice := seedUser(t, db, "alice@example.com")
	aliceAddr := seedAddress(t, db, alice.ID)
	bob := seedUser(t, db, "bob@example.com")
	bobAddr := seedAddress(t, db, bob.ID)

	// Request ids are client-generated; a collision between two users
	// must not block either order.
	aliceOrder, err := orders.CreateOrder(context.Background(), CreateOrderInput{
		UserID:        alice.ID,
		RequestID:     "shared-request-id",
		AddressID:     aliceAddr.ID,
		PaymentMethod: models.PaymentMethodRazorpay,
		Lines:         []OrderLine{{ProductID: product.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	bobOrder, err := orders.CreateOrder(context.Background(), CreateOrderInput{
		UserID:        bob.ID,
		RequestID:     "shared-request-id",
		AddressID:     bobAddr.ID,
		PaymentMethod: models.PaymentMethodRazorpay,
		Lines:         []OrderLine{{ProductID: product.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	assert.NotEqual(t, aliceOrder.ID, bobOrder.ID)
	assert.Equal(t, alice.ID, aliceOrder.UserID)
	assert.Equal(t, bob.ID, bobOrder.UserID)
}
