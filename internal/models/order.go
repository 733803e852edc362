package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order statuses.
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	OrderStatusFailed     = "failed"
)

// Payment statuses.
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// Payment methods.
const (
	PaymentMethodRazorpay = "razorpay"
	PaymentMethodCOD      = "cod"
)

// Order is a persisted checkout attempt. Amounts are fixed at creation;
// only status and payment fields mutate afterwards. Orders are never
// deleted; cancellation is a status.
type Order struct {
	BaseModel
	OrderNumber string `gorm:"uniqueIndex" json:"order_number"`
	// The idempotency key is unique per user, not globally: two users
	// who happen to send the same request id must both get their order.
	RequestID      string          `gorm:"uniqueIndex:idx_orders_user_request" json:"request_id"`
	UserID         uuid.UUID       `gorm:"type:uuid;index;uniqueIndex:idx_orders_user_request" json:"user_id"`
	User           *User           `json:"user,omitempty"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2)" json:"subtotal"`
	ShippingAmount decimal.Decimal `gorm:"type:decimal(12,2)" json:"shipping_amount"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(12,2)" json:"tax_amount"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(12,2)" json:"discount_amount"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(12,2)" json:"total_amount"`
	Currency       string          `json:"currency"`
	PaymentMethod  string          `json:"payment_method"`
	PaymentStatus  string          `gorm:"index" json:"payment_status"`
	Status         string          `gorm:"index" json:"status"`
	CouponCode     string          `json:"coupon_code"`

	// Shipping snapshot, copied from the address at order time so the
	// order survives later address edits.
	ShippingFirstName    string `json:"shipping_first_name"`
	ShippingLastName     string `json:"shipping_last_name"`
	ShippingAddressLine1 string `json:"shipping_address_line_1"`
	ShippingAddressLine2 string `json:"shipping_address_line_2"`
	ShippingCity         string `json:"shipping_city"`
	ShippingState        string `json:"shipping_state"`
	ShippingPostalCode   string `json:"shipping_postal_code"`
	ShippingPhone        string `json:"shipping_phone"`

	RazorpayOrderID   string `gorm:"index" json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`

	ShippedAt   *time.Time  `json:"shipped_at"`
	DeliveredAt *time.Time  `json:"delivered_at"`
	CancelledAt *time.Time  `json:"cancelled_at"`
	Items       []OrderItem `json:"items,omitempty"`
}

// OrderItem snapshots a product at order time so historical orders stay
// stable even if the product is edited or deleted later.
type OrderItem struct {
	BaseModel
	OrderID      uuid.UUID       `gorm:"type:uuid;index" json:"order_id"`
	ProductID    *uuid.UUID      `gorm:"type:uuid" json:"product_id"`
	ProductName  string          `json:"product_name"`
	ProductSKU   string          `json:"product_sku"`
	ProductImage string          `json:"product_image"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(12,2)" json:"unit_price"`
	TotalPrice   decimal.Decimal `gorm:"type:decimal(12,2)" json:"total_price"`
}

// orderTransitions is the allowed status graph. confirmed/processing/
// shipped are admin-advanced; cancelled and delivered are terminal;
// failed is reachable only from pending via payment failure.
var orderTransitions = map[string][]string{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled, OrderStatusFailed},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
	OrderStatusFailed:     {},
}

// CancellableStatuses are the statuses a user or admin may cancel from.
var CancellableStatuses = []string{OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsCancellable reports whether an order in the given status may be cancelled.
func IsCancellable(status string) bool {
	for _, s := range CancellableStatuses {
		if s == status {
			return true
		}
	}
	return false
}
