package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/blinkq/internal/models"
	"github.com/example/blinkq/internal/pricing"
)

// Order placement and lifecycle errors.
var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrOrderNotFound        = errors.New("order not found")
	ErrAddressNotFound      = errors.New("shipping address not found")
	ErrInvalidPaymentMethod = errors.New("unsupported payment method")
	ErrAlreadyCancelled     = errors.New("this order has already been cancelled")
)

// ProductNotFoundError indicates a cart line references a product that
// does not exist or is no longer active.
type ProductNotFoundError struct {
	ProductID uuid.UUID
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a cart line with a non-positive quantity.
type InvalidQuantityError struct {
	ProductID uuid.UUID
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// NotCancellableError indicates the order's current persisted status is
// outside the cancellable set.
type NotCancellableError struct {
	Status string
}

func (e *NotCancellableError) Error() string {
	return fmt.Sprintf("this order cannot be cancelled as it is currently %s", e.Status)
}

// TransitionError indicates a disallowed status change.
type TransitionError struct {
	From, To string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order cannot move from %s to %s", e.From, e.To)
}

// OrderLine is one cart entry as submitted at checkout. Prices are never
// taken from the client; the service snapshots them from the catalog.
type OrderLine struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// CreateOrderInput carries everything needed to place an order.
// RequestID is a client-generated idempotency key: replays return the
// order created by the first submission.
type CreateOrderInput struct {
	UserID        uuid.UUID
	RequestID     string
	AddressID     uuid.UUID
	PaymentMethod string
	CouponCode    string
	Lines         []OrderLine
}

// OrderService owns order placement, listing and lifecycle transitions.
type OrderService struct {
	db       *gorm.DB
	coupons  *CouponService
	rules    pricing.Rules
	currency string
	now      func() time.Time
}

// NewOrderService constructs an OrderService.
func NewOrderService(db *gorm.DB, coupons *CouponService, rules pricing.Rules, currency string) *OrderService {
	return &OrderService{
		db:       db,
		coupons:  coupons,
		rules:    rules,
		currency: currency,
		now:      time.Now,
	}
}

// CreateOrder validates the cart, snapshots products and the shipping
// address, prices the order through the shared pricing engine, and
// persists the order with its items in a single transaction. Cash on
// delivery orders advance to confirmed (and redeem their coupon) inside
// the same transaction; gateway orders stay pending until the payment
// outcome is reconciled.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	if in.PaymentMethod != models.PaymentMethodRazorpay && in.PaymentMethod != models.PaymentMethodCOD {
		return nil, ErrInvalidPaymentMethod
	}
	if len(in.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	// Idempotent replay: a request id we have already fulfilled returns
	// the original order instead of creating a duplicate.
	if existing, err := s.findByRequestID(ctx, in.UserID, in.RequestID); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	var address models.Address
	if err := s.db.WithContext(ctx).
		First(&address, "id = ? AND user_id = ?", in.AddressID, in.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAddressNotFound
		}
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(in.Lines))
	for _, line := range in.Lines {
		if line.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: line.ProductID}
		}
		ids = append(ids, line.ProductID)
	}

	var products []models.Product
	if err := s.db.WithContext(ctx).
		Where("id IN ? AND is_active = ?", ids, true).
		Find(&products).Error; err != nil {
		return nil, err
	}
	productByID := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		productByID[p.ID] = p
	}

	subtotal := decimal.Zero
	items := make([]models.OrderItem, 0, len(in.Lines))
	for _, line := range in.Lines {
		p, ok := productByID[line.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: line.ProductID}
		}

		lineTotal := p.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		subtotal = subtotal.Add(lineTotal)

		productID := p.ID
		items = append(items, models.OrderItem{
			ProductID:    &productID,
			ProductName:  p.Name,
			ProductSKU:   p.SKU,
			ProductImage: p.ImageURL,
			Quantity:     line.Quantity,
			UnitPrice:    p.Price,
			TotalPrice:   lineTotal,
		})
	}

	discount := decimal.Zero
	couponCode := ""
	if in.CouponCode != "" {
		coupon, amount, err := s.coupons.Validate(ctx, in.CouponCode, subtotal)
		if err != nil {
			return nil, err
		}
		discount = amount
		couponCode = coupon.Code
	}

	quote := pricing.Quote(s.rules, subtotal, discount)

	order := models.Order{
		OrderNumber:          GenerateOrderNumber(s.now()),
		RequestID:            in.RequestID,
		UserID:               in.UserID,
		Subtotal:             quote.Subtotal,
		ShippingAmount:       quote.Shipping,
		TaxAmount:            quote.Tax,
		DiscountAmount:       quote.Discount,
		TotalAmount:          quote.Total,
		Currency:             s.currency,
		PaymentMethod:        in.PaymentMethod,
		PaymentStatus:        models.PaymentStatusPending,
		Status:               models.OrderStatusPending,
		CouponCode:           couponCode,
		ShippingFirstName:    address.FirstName,
		ShippingLastName:     address.LastName,
		ShippingAddressLine1: address.AddressLine1,
		ShippingAddressLine2: address.AddressLine2,
		ShippingCity:         address.City,
		ShippingState:        address.State,
		ShippingPostalCode:   address.PostalCode,
		ShippingPhone:        address.Phone,
		Items:                items,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		if in.PaymentMethod == models.PaymentMethodCOD {
			// No external payment to await: the order confirms immediately.
			if err := tx.Model(&models.Order{}).
				Where("id = ?", order.ID).
				Update("status", models.OrderStatusConfirmed).Error; err != nil {
				return err
			}
			order.Status = models.OrderStatusConfirmed

			if couponCode != "" {
				if err := s.coupons.Redeem(tx, couponCode); err != nil {
					return err
				}
			}
		}

		return nil
	})
	if err != nil {
		// A concurrent double submission loses the race on the unique
		// request id index; hand back the winner's order.
		if existing, lookupErr := s.findByRequestID(ctx, in.UserID, in.RequestID); lookupErr == nil && existing != nil {
			return existing, nil
		}
		return nil, err
	}

	return &order, nil
}

// ListOrders returns the user's orders, newest first, optionally filtered
// by status.
func (s *OrderService) ListOrders(ctx context.Context, userID uuid.UUID, status string, limit, offset int) ([]models.Order, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	if err := query.Preload("Items").
		Order("created_at desc").
		Limit(limit).Offset(offset).
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

// GetOrder returns a single order with its items, scoped to the user.
func (s *OrderService) GetOrder(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Preload("Items").
		First(&order, "id = ? AND user_id = ?", orderID, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// CancelOrder cancels the user's order with a single conditional update
// over the cancellable status set, so a concurrent admin advance cannot
// be overwritten from stale client state. When no row matches, the fresh
// status is read back only to phrase the rejection.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	now := s.now()
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND user_id = ? AND status IN ?", orderID, userID, models.CancellableStatuses).
		Updates(map[string]any{
			"status":       models.OrderStatusCancelled,
			"cancelled_at": &now,
		})
	if res.Error != nil {
		return nil, res.Error
	}

	if res.RowsAffected == 0 {
		current, err := s.GetOrder(ctx, orderID, userID)
		if err != nil {
			return nil, err
		}
		if current.Status == models.OrderStatusCancelled {
			return nil, ErrAlreadyCancelled
		}
		return nil, &NotCancellableError{Status: current.Status}
	}

	return s.GetOrder(ctx, orderID, userID)
}

// UpdateStatus advances an order along the status machine on behalf of an
// administrator. The update is conditional on the status it was read at,
// so two concurrent advances cannot both apply.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, newStatus string) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	if !models.CanTransition(order.Status, newStatus) {
		return nil, &TransitionError{From: order.Status, To: newStatus}
	}

	now := s.now()
	updates := map[string]any{"status": newStatus}
	switch newStatus {
	case models.OrderStatusShipped:
		updates["shipped_at"] = &now
	case models.OrderStatusDelivered:
		updates["delivered_at"] = &now
	case models.OrderStatusCancelled:
		updates["cancelled_at"] = &now
	}

	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, order.Status).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, &TransitionError{From: order.Status, To: newStatus}
	}

	if err := s.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *OrderService) findByRequestID(ctx context.Context, userID uuid.UUID, requestID string) (*models.Order, error) {
	if requestID == "" {
		return nil, nil
	}
	var order models.Order
	err := s.db.WithContext(ctx).Preload("Items").
		First(&order, "request_id = ? AND user_id = ?", requestID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GenerateOrderNumber builds the human-readable display number. The epoch
// prefix matches what customers already see on receipts; the random
// suffix keeps numbers unique under clock skew and concurrent checkouts.
// The order's UUID remains the real identifier.
func GenerateOrderNumber(now time.Time) string {
	suffix := make([]byte, 3)
	_, _ = rand.Read(suffix)
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), hex.EncodeToString(suffix))
}
