package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Coupon discount types.
const (
	CouponTypePercentage = "percentage"
	CouponTypeFixed      = "fixed"
)

// Coupon is a discount code with eligibility rules and usage limits.
// Codes are stored uppercase; lookups normalize before querying.
// Zero-valued limits mean "no limit".
type Coupon struct {
	BaseModel
	Code            string           `gorm:"uniqueIndex" json:"code"`
	Type            string           `json:"type"`
	Value           decimal.Decimal  `gorm:"type:decimal(12,2)" json:"value"`
	MinimumAmount   decimal.Decimal  `gorm:"type:decimal(12,2);default:0" json:"minimum_amount"`
	MaximumDiscount *decimal.Decimal `gorm:"type:decimal(12,2)" json:"maximum_discount"`
	UsageLimit      int              `gorm:"default:0" json:"usage_limit"`
	UsedCount       int              `gorm:"default:0" json:"used_count"`
	UserLimit       int              `gorm:"default:0" json:"user_limit"`
	StartsAt        *time.Time       `json:"starts_at"`
	ExpiresAt       *time.Time       `json:"expires_at"`
	IsActive        bool             `gorm:"default:true" json:"is_active"`
}
