package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/blinkq/internal/middleware"
	"github.com/example/blinkq/internal/services"
	"github.com/example/blinkq/internal/utils"
)

// OrderHandler manages order placement, lifecycle and payment endpoints.
type OrderHandler struct {
	orders   *services.OrderService
	payments *services.RazorpayService
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(orders *services.OrderService, payments *services.RazorpayService) *OrderHandler {
	return &OrderHandler{orders: orders, payments: payments}
}

type createOrderRequest struct {
	RequestID     string               `json:"request_id"`
	AddressID     uuid.UUID            `json:"address_id"`
	PaymentMethod string               `json:"payment_method"`
	CouponCode    string               `json:"coupon_code"`
	Items         []services.OrderLine `json:"items"`
}

// CreateOrder places an order for the authenticated user. The request id
// (body field or X-Request-ID header) is the idempotency key: a
// double-submitted cart yields exactly one order.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = c.Get("X-Request-ID")
	}
	if requestID == "" {
		// Without a client key replays cannot be detected; generate one
		// so the unique index is still satisfied.
		requestID = uuid.NewString()
	}

	order, err := h.orders.CreateOrder(c.Context(), services.CreateOrderInput{
		UserID:        userID,
		RequestID:     requestID,
		AddressID:     req.AddressID,
		PaymentMethod: req.PaymentMethod,
		CouponCode:    req.CouponCode,
		Lines:         req.Items,
	})
	if err != nil {
		return mapOrderError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    order,
	})
}

// ListOrders returns orders for the authenticated user.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)
	orders, total, err := h.orders.ListOrders(c.Context(), userID, c.Query("status"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    orders,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// GetOrder returns a single order for the authenticated user.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	order, err := h.orders.GetOrder(c.Context(), orderID, userID)
	if err != nil {
		return mapOrderError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// CancelOrder cancels the user's order if its current status allows it.
func (h *OrderHandler) CancelOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	order, err := h.orders.CancelOrder(c.Context(), orderID, userID)
	if err != nil {
		return mapOrderError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "order cancelled",
		"data":    order,
	})
}

// InitiatePayment creates the gateway order for a pending razorpay order
// and returns what the hosted payment UI needs to open.
func (h *OrderHandler) InitiatePayment(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	session, err := h.payments.InitiatePayment(c.Context(), orderID, userID)
	if err != nil {
		return mapPaymentError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": session})
}

type confirmPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

// ConfirmPayment reconciles a successful hosted-UI callback. The
// signature is verified server-side before the order is marked paid.
func (h *OrderHandler) ConfirmPayment(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req confirmPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	order, err := h.payments.ConfirmPayment(c.Context(), orderID, userID,
		req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature)
	if err != nil {
		return mapPaymentError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

type failPaymentRequest struct {
	ErrorDescription string `json:"error_description"`
	RazorpayOrderID  string `json:"razorpay_order_id"`
}

// FailPayment records a gateway-reported payment failure. A user cancel
// in the hosted UI is not reported here; the order stays pending.
func (h *OrderHandler) FailPayment(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	var req failPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	order, err := h.payments.FailPayment(c.Context(), orderID, userID,
		req.ErrorDescription, req.RazorpayOrderID)
	if err != nil {
		return mapPaymentError(err)
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// mapOrderError converts order service errors to HTTP responses.
func mapOrderError(err error) error {
	var (
		notFoundErr   *services.ProductNotFoundError
		quantityErr   *services.InvalidQuantityError
		cancelErr     *services.NotCancellableError
		transitionErr *services.TransitionError
	)
	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrEmptyCart),
		errors.Is(err, services.ErrAddressNotFound),
		errors.Is(err, services.ErrInvalidPaymentMethod):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrAlreadyCancelled):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.As(err, &notFoundErr), errors.As(err, &quantityErr):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &cancelErr), errors.As(err, &transitionErr):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return mapCouponError(err)
	}
}

// mapPaymentError converts payment service errors to HTTP responses.
func mapPaymentError(err error) error {
	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrPaymentNotRazorpay),
		errors.Is(err, services.ErrPaymentInvalidAmount):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrPaymentNotPending),
		errors.Is(err, services.ErrPaymentOrderMismatch):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, services.ErrPaymentBadSignature):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	default:
		return err
	}
}
