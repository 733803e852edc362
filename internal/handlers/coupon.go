package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/blinkq/internal/models"
	"github.com/example/blinkq/internal/services"
	"github.com/example/blinkq/internal/utils"
)

// CouponHandler manages admin CRUD over coupons.
type CouponHandler struct {
	db *gorm.DB
}

// NewCouponHandler constructs CouponHandler.
func NewCouponHandler(db *gorm.DB) *CouponHandler {
	return &CouponHandler{db: db}
}

// ListCoupons returns all coupons with pagination (admin).
func (h *CouponHandler) ListCoupons(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Coupon{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var coupons []models.Coupon
	if err := query.Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&coupons).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    coupons,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// couponRequest uses pointers for every optional field so a partial
// update can tell "omitted" apart from an explicit zero.
type couponRequest struct {
	Code            string           `json:"code"`
	Type            string           `json:"type"`
	Value           decimal.Decimal  `json:"value"`
	MinimumAmount   *decimal.Decimal `json:"minimum_amount"`
	MaximumDiscount *decimal.Decimal `json:"maximum_discount"`
	UsageLimit      *int             `json:"usage_limit"`
	UserLimit       *int             `json:"user_limit"`
	StartsAt        *time.Time       `json:"starts_at"`
	ExpiresAt       *time.Time       `json:"expires_at"`
	IsActive        *bool            `json:"is_active"`
}

// CreateCoupon creates a coupon (admin). Codes are stored uppercase.
func (h *CouponHandler) CreateCoupon(c *fiber.Ctx) error {
	var req couponRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	code := services.NormalizeCouponCode(req.Code)
	if code == "" {
		return fiber.NewError(fiber.StatusBadRequest, "code is required")
	}
	if req.Type != models.CouponTypePercentage && req.Type != models.CouponTypeFixed {
		return fiber.NewError(fiber.StatusBadRequest, "type must be percentage or fixed")
	}
	if !req.Value.IsPositive() {
		return fiber.NewError(fiber.StatusBadRequest, "value must be positive")
	}

	coupon := models.Coupon{
		Code:            code,
		Type:            req.Type,
		Value:           req.Value,
		MaximumDiscount: req.MaximumDiscount,
		StartsAt:        req.StartsAt,
		ExpiresAt:       req.ExpiresAt,
		IsActive:        true,
	}
	if req.MinimumAmount != nil {
		coupon.MinimumAmount = *req.MinimumAmount
	}
	if req.UsageLimit != nil {
		coupon.UsageLimit = *req.UsageLimit
	}
	if req.UserLimit != nil {
		coupon.UserLimit = *req.UserLimit
	}
	if req.IsActive != nil {
		coupon.IsActive = *req.IsActive
	}

	if err := h.db.Create(&coupon).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": coupon})
}

// UpdateCoupon updates coupon fields (admin). The used_count is owned by
// redemption and is not editable here.
func (h *CouponHandler) UpdateCoupon(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var coupon models.Coupon
	if err := h.db.First(&coupon, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "coupon not found")
		}
		return err
	}

	var req couponRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.Code != "" {
		updates["code"] = services.NormalizeCouponCode(req.Code)
	}
	if req.Type != "" {
		if req.Type != models.CouponTypePercentage && req.Type != models.CouponTypeFixed {
			return fiber.NewError(fiber.StatusBadRequest, "type must be percentage or fixed")
		}
		updates["type"] = req.Type
	}
	if req.Value.IsPositive() {
		updates["value"] = req.Value
	}
	if req.MinimumAmount != nil {
		if req.MinimumAmount.IsNegative() {
			return fiber.NewError(fiber.StatusBadRequest, "minimum_amount must not be negative")
		}
		updates["minimum_amount"] = *req.MinimumAmount
	}
	if req.MaximumDiscount != nil {
		updates["maximum_discount"] = req.MaximumDiscount
	}
	if req.UsageLimit != nil {
		updates["usage_limit"] = *req.UsageLimit
	}
	if req.UserLimit != nil {
		updates["user_limit"] = *req.UserLimit
	}
	if req.StartsAt != nil {
		updates["starts_at"] = req.StartsAt
	}
	if req.ExpiresAt != nil {
		updates["expires_at"] = req.ExpiresAt
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if err := h.db.Model(&coupon).Updates(updates).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": coupon})
}

// DeleteCoupon deactivates a coupon (admin). Rows are kept so historical
// orders can still resolve the code they used.
func (h *CouponHandler) DeleteCoupon(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	res := h.db.Model(&models.Coupon{}).Where("id = ?", id).Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "coupon not found")
	}

	return c.JSON(fiber.Map{"success": true, "message": "coupon deactivated"})
}
