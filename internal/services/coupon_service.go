package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/blinkq/internal/models"
)

// Coupon rejection errors. Checks are applied in a fixed order and the
// first failure wins; there is no partial discount.
var (
	ErrCouponInvalid       = errors.New("invalid coupon code")
	ErrCouponNotYetActive  = errors.New("coupon not yet active")
	ErrCouponExpired       = errors.New("coupon has expired")
	ErrCouponUsageExceeded = errors.New("coupon usage limit exceeded")
)

// MinimumAmountError indicates the cart subtotal is below the coupon's
// minimum order amount.
type MinimumAmountError struct {
	Minimum decimal.Decimal
}

func (e *MinimumAmountError) Error() string {
	return fmt.Sprintf("minimum order amount %s required", e.Minimum.String())
}

// CouponService validates and redeems discount coupons.
type CouponService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewCouponService constructs a CouponService.
func NewCouponService(db *gorm.DB) *CouponService {
	return &CouponService{db: db, now: time.Now}
}

// Validate looks up an active coupon by its normalized code and checks it
// against the cart subtotal. It has no side effects: the usage counter is
// only incremented by Redeem once payment is confirmed.
func (s *CouponService) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*models.Coupon, decimal.Decimal, error) {
	normalized := NormalizeCouponCode(code)
	if normalized == "" {
		return nil, decimal.Zero, ErrCouponInvalid
	}

	var coupon models.Coupon
	err := s.db.WithContext(ctx).
		Where("code = ? AND is_active = ?", normalized, true).
		First(&coupon).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, decimal.Zero, ErrCouponInvalid
		}
		return nil, decimal.Zero, err
	}

	if err := CheckCouponRule(&coupon, subtotal, s.now()); err != nil {
		return nil, decimal.Zero, err
	}

	return &coupon, CouponDiscount(&coupon, subtotal), nil
}

// Redeem increments the coupon usage counter within tx. The guard keeps a
// concurrent confirmation from pushing used_count past the limit. The
// original storefront never incremented the counter at all; redemption
// here is tied to payment confirmation on purpose. A zero-row update is
// logged rather than failing the confirmation, since the payment has
// already been taken at that point.
func (s *CouponService) Redeem(tx *gorm.DB, code string) error {
	normalized := NormalizeCouponCode(code)
	if normalized == "" {
		return nil
	}

	res := tx.Model(&models.Coupon{}).
		Where("code = ? AND (usage_limit = 0 OR used_count < usage_limit)", normalized).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		log.Printf("[Coupon] redeem of %s skipped: usage limit already reached", normalized)
	}
	return nil
}

// NormalizeCouponCode uppercases and trims a user-supplied coupon code.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CheckCouponRule applies the eligibility checks in their fixed order:
// start date, expiry, minimum amount, usage limit. Callers handle the
// not-found/inactive case before this.
func CheckCouponRule(coupon *models.Coupon, subtotal decimal.Decimal, now time.Time) error {
	if coupon.StartsAt != nil && coupon.StartsAt.After(now) {
		return ErrCouponNotYetActive
	}
	if coupon.ExpiresAt != nil && coupon.ExpiresAt.Before(now) {
		return ErrCouponExpired
	}
	if coupon.MinimumAmount.IsPositive() && subtotal.LessThan(coupon.MinimumAmount) {
		return &MinimumAmountError{Minimum: coupon.MinimumAmount}
	}
	if coupon.UsageLimit > 0 && coupon.UsedCount >= coupon.UsageLimit {
		return ErrCouponUsageExceeded
	}
	return nil
}

// CouponDiscount computes the discount amount for an eligible coupon.
// Percentage discounts cap at MaximumDiscount when set. Fixed discounts
// are taken at face value even when they exceed the subtotal; the total
// clamps at zero downstream instead.
func CouponDiscount(coupon *models.Coupon, subtotal decimal.Decimal) decimal.Decimal {
	if coupon.Type == models.CouponTypePercentage {
		discount := subtotal.Mul(coupon.Value).Div(decimal.NewFromInt(100))
		if coupon.MaximumDiscount != nil && discount.GreaterThan(*coupon.MaximumDiscount) {
			discount = *coupon.MaximumDiscount
		}
		return discount.Round(2)
	}
	return coupon.Value
}
