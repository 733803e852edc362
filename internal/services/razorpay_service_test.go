package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/blinkq/internal/models"
)

func TestVerifySignature(t *testing.T) {
	// HMAC-SHA256("order_abc|pay_123", "test_secret")
	valid := "2ae265b7794ea1d60d2bfbcb6be50d9e059bce607577aeaf83c1297090a8dfc7"

	tests := []struct {
		name      string
		orderID   string
		paymentID string
		signature string
		want      bool
	}{
		{"valid signature", "order_abc", "pay_123", valid, true},
		{"wrong signature", "order_abc", "pay_123", "deadbeef", false},
		{"signature for different payment", "order_abc", "pay_999", valid, false},
		{"empty order id", "", "pay_123", valid, false},
		{"empty payment id", "order_abc", "", valid, false},
		{"empty signature", "order_abc", "pay_123", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VerifySignature(tt.orderID, tt.paymentID, tt.signature, "test_secret")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAmountMinorUnits(t *testing.T) {
	tests := []struct {
		name    string
		amount  string
		want    int64
		wantErr bool
	}{
		{"whole rupees", "638", 63800, false},
		{"rupees and paise", "10.55", 1055, false},
		{"single paise", "0.01", 1, false},
		{"sub-paise rejected", "10.555", 0, true},
		{"zero rejected", "0", 0, true},
		{"negative rejected", "-5", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AmountMinorUnits(decimal.RequireFromString(tt.amount))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrPaymentInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newTestRazorpayService(baseURL string) *RazorpayService {
	return &RazorpayService{
		cfg: RazorpayConfig{
			KeyID:     "rzp_test_key",
			KeySecret: "test_secret",
			BaseURL:   baseURL,
			Currency:  "INR",
		},
		client: &http.Client{Timeout: time.Second},
	}
}

func TestCreateGatewayOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "test_secret", pass)

		var payload razorpayOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, int64(63800), payload.Amount)
		assert.Equal(t, "INR", payload.Currency)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(razorpayOrderResponse{
			ID:       "order_gw_1",
			Amount:   payload.Amount,
			Currency: payload.Currency,
			Receipt:  payload.Receipt,
		})
	}))
	defer srv.Close()

	s := newTestRazorpayService(srv.URL)
	got, err := s.createGatewayOrder(context.Background(), razorpayOrderRequest{
		Amount:   63800,
		Currency: "INR",
		Receipt:  "r1",
	})
	require.NoError(t, err)
	assert.Equal(t, "order_gw_1", got.ID)
	assert.Equal(t, int64(63800), got.Amount)
}

func TestCreateGatewayOrderRejectsBadInput(t *testing.T) {
	s := newTestRazorpayService("http://127.0.0.1:0")

	_, err := s.createGatewayOrder(context.Background(), razorpayOrderRequest{
		Amount:   0,
		Currency: "INR",
	})
	assert.ErrorIs(t, err, ErrPaymentInvalidAmount)

	_, err = s.createGatewayOrder(context.Background(), razorpayOrderRequest{
		Amount:   100,
		Currency: "USD",
	})
	assert.Error(t, err)
}

func TestCreateGatewayOrderSurfacesGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"description":"amount exceeds maximum"}}`))
	}))
	defer srv.Close()

	s := newTestRazorpayService(srv.URL)
	_, err := s.createGatewayOrder(context.Background(), razorpayOrderRequest{
		Amount:   100,
		Currency: "INR",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount exceeds maximum")
}

func TestFetchPayments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/orders/order_gw_1/payments", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"id":"pay_1","status":"failed"},{"id":"pay_2","status":"captured"}]}`))
	}))
	defer srv.Close()

	s := newTestRazorpayService(srv.URL)
	payments, err := s.fetchPayments(context.Background(), "order_gw_1")
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, "pay_2", payments[1].ID)
	assert.Equal(t, "captured", payments[1].Status)
}

func seedRazorpayOrder(t *testing.T, db *gorm.DB, couponCode string) (*OrderService, *models.Order, models.User) {
	t.Helper()

	user := seedUser(t, db, "payer@example.com")
	address := seedAddress(t, db, user.ID)
	product := seedProduct(t, db, "SKU-PAY", "600")

	orders := NewOrderService(db, NewCouponService(db), testRules(), "INR")
	order, err := orders.CreateOrder(context.Background(), CreateOrderInput{
		UserID:        user.ID,
		RequestID:     "req-" + t.Name(),
		AddressID:     address.ID,
		PaymentMethod: models.PaymentMethodRazorpay,
		CouponCode:    couponCode,
		Lines:         []OrderLine{{ProductID: product.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusPending, order.Status)
	require.Equal(t, models.PaymentStatusPending, order.PaymentStatus)

	return orders, order, user
}

func TestMarkPaidDoesNotResurrectCancelledOrder(t *testing.T) {
	db := newTestDB(t)
	orders, order, user := seedRazorpayOrder(t, db, "")

	_, err := orders.CancelOrder(context.Background(), order.ID, user.ID)
	require.NoError(t, err)

	// Late capture arrives with the pre-cancellation snapshot.
	s := NewRazorpayService(db, NewCouponService(db), RazorpayConfig{
		KeyID: "rzp_test_key", KeySecret: "test_secret", Currency: "INR",
	})
	require.NoError(t, s.markPaid(context.Background(), order, "order_gw_1", "pay_1"))

	var got models.Order
	require.NoError(t, db.First(&got, "id = ?", order.ID).Error)
	assert.Equal(t, models.OrderStatusCancelled, got.Status)
	assert.Equal(t, models.PaymentStatusPending, got.PaymentStatus)
	assert.Empty(t, got.RazorpayPaymentID)
	assert.NotNil(t, got.CancelledAt)
}

func TestConfirmPaymentMarksPendingOrderPaid(t *testing.T) {
	db := newTestDB(t)

	coupon := models.Coupon{
		Code:       "SAVE50",
		Type:       models.CouponTypeFixed,
		Value:      decimal.NewFromInt(50),
		UsageLimit: 5,
		IsActive:   true,
	}
	require.NoError(t, db.Create(&coupon).Error)

	_, order, user := seedRazorpayOrder(t, db, "SAVE50")

	s := NewRazorpayService(db, NewCouponService(db), RazorpayConfig{
		KeyID: "rzp_test_key", KeySecret: "test_secret", Currency: "INR",
	})

	// HMAC-SHA256("order_abc|pay_123", "test_secret")
	sig := "2ae265b7794ea1d60d2bfbcb6be50d9e059bce607577aeaf83c1297090a8dfc7"
	got, err := s.ConfirmPayment(context.Background(), order.ID, user.ID, "order_abc", "pay_123", sig)
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusPaid, got.PaymentStatus)
	assert.Equal(t, models.OrderStatusConfirmed, got.Status)
	assert.Equal(t, "order_abc", got.RazorpayOrderID)
	assert.Equal(t, "pay_123", got.RazorpayPaymentID)

	var redeemed models.Coupon
	require.NoError(t, db.First(&redeemed, "code = ?", "SAVE50").Error)
	assert.Equal(t, 1, redeemed.UsedCount)
}

func TestFailPaymentLeavesPaidOrderPaid(t *testing.T) {
	db := newTestDB(t)
	_, order, user := seedRazorpayOrder(t, db, "")

	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", order.ID).
		Updates(map[string]any{
			"payment_status": models.PaymentStatusPaid,
			"status":         models.OrderStatusConfirmed,
		}).Error)

	s := NewRazorpayService(db, NewCouponService(db), RazorpayConfig{
		KeyID: "rzp_test_key", KeySecret: "test_secret", Currency: "INR",
	})
	got, err := s.FailPayment(context.Background(), order.ID, user.ID, "card declined", "order_gw_1")
	require.NoError(t, err)

	assert.Equal(t, models.PaymentStatusPaid, got.PaymentStatus)
	assert.Equal(t, models.OrderStatusConfirmed, got.Status)
}

func TestFailPaymentLeavesCancelledOrderCancelled(t *testing.T) {
	db := newTestDB(t)
	orders, order, user := seedRazorpayOrder(t, db, "")

	_, err := orders.CancelOrder(context.Background(), order.ID, user.ID)
	require.NoError(t, err)

	s := NewRazorpayService(db, NewCouponService(db), RazorpayConfig{
		KeyID: "rzp_test_key", KeySecret: "test_secret", Currency: "INR",
	})
	got, err := s.FailPayment(context.Background(), order.ID, user.ID, "card declined", "order_gw_1")
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusCancelled, got.Status)
	assert.Equal(t, models.PaymentStatusPending, got.PaymentStatus)
}
