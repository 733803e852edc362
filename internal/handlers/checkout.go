package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/blinkq/internal/models"
	"github.com/example/blinkq/internal/pricing"
	"github.com/example/blinkq/internal/services"
)

// CheckoutHandler serves pricing quotes and coupon validation. Both run
// the same pricing engine the order writer uses, so the totals a customer
// sees before placing an order are exactly the totals that get persisted.
type CheckoutHandler struct {
	db      *gorm.DB
	coupons *services.CouponService
	rules   pricing.Rules
}

// NewCheckoutHandler constructs CheckoutHandler.
func NewCheckoutHandler(db *gorm.DB, coupons *services.CouponService, rules pricing.Rules) *CheckoutHandler {
	return &CheckoutHandler{db: db, coupons: coupons, rules: rules}
}

type quoteRequest struct {
	Items      []services.OrderLine `json:"items"`
	CouponCode string               `json:"coupon_code"`
}

// Quote prices a cart, optionally with a coupon applied.
func (h *CheckoutHandler) Quote(c *fiber.Ctx) error {
	var req quoteRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	subtotal, err := h.cartSubtotal(c, req.Items)
	if err != nil {
		return err
	}

	discount := decimal.Zero
	couponCode := ""
	if req.CouponCode != "" {
		coupon, amount, err := h.coupons.Validate(c.Context(), req.CouponCode, subtotal)
		if err != nil {
			return mapCouponError(err)
		}
		discount = amount
		couponCode = coupon.Code
	}

	breakdown := pricing.Quote(h.rules, subtotal, discount)

	return c.JSON(fiber.Map{
		"success":     true,
		"data":        breakdown,
		"coupon_code": couponCode,
	})
}

type validateCouponRequest struct {
	Code  string               `json:"code"`
	Items []services.OrderLine `json:"items"`
}

// ValidateCoupon checks a coupon against the submitted cart and returns
// the discount it would grant. No usage is recorded here.
func (h *CheckoutHandler) ValidateCoupon(c *fiber.Ctx) error {
	var req validateCouponRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.Code == "" {
		return fiber.NewError(fiber.StatusBadRequest, "coupon code is required")
	}

	subtotal, err := h.cartSubtotal(c, req.Items)
	if err != nil {
		return err
	}

	coupon, discount, err := h.coupons.Validate(c.Context(), req.Code, subtotal)
	if err != nil {
		return mapCouponError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"code":            coupon.Code,
			"type":            coupon.Type,
			"discount_amount": discount,
		},
	})
}

// cartSubtotal prices the submitted lines from the catalog. Client-sent
// prices are never trusted.
func (h *CheckoutHandler) cartSubtotal(c *fiber.Ctx, lines []services.OrderLine) (decimal.Decimal, error) {
	if len(lines) == 0 {
		return decimal.Zero, fiber.NewError(fiber.StatusBadRequest, "cart is empty")
	}

	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return decimal.Zero, fiber.NewError(fiber.StatusUnprocessableEntity, "quantity must be greater than 0")
		}
		ids = append(ids, line.ProductID)
	}

	var products []models.Product
	if err := h.db.WithContext(c.Context()).
		Where("id IN ? AND is_active = ?", ids, true).
		Find(&products).Error; err != nil {
		return decimal.Zero, err
	}

	priceByID := make(map[uuid.UUID]decimal.Decimal, len(products))
	for _, p := range products {
		priceByID[p.ID] = p.Price
	}

	subtotal := decimal.Zero
	for _, line := range lines {
		price, ok := priceByID[line.ProductID]
		if !ok {
			return decimal.Zero, fiber.NewError(fiber.StatusUnprocessableEntity, "product "+line.ProductID.String()+" not found")
		}
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	return subtotal, nil
}

// mapCouponError converts coupon service errors into user-facing
// responses without leaking internals.
func mapCouponError(err error) error {
	var minErr *services.MinimumAmountError
	switch {
	case errors.Is(err, services.ErrCouponInvalid),
		errors.Is(err, services.ErrCouponNotYetActive),
		errors.Is(err, services.ErrCouponExpired),
		errors.Is(err, services.ErrCouponUsageExceeded):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &minErr):
		return fiber.NewError(fiber.StatusUnprocessableEntity, minErr.Error())
	default:
		return err
	}
}
