package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/blinkq/internal/models"
)

// Payment errors surfaced to handlers.
var (
	ErrPaymentNotRazorpay   = errors.New("order is not a gateway payment")
	ErrPaymentNotPending    = errors.New("order is not awaiting payment")
	ErrPaymentBadSignature  = errors.New("payment signature verification failed")
	ErrPaymentOrderMismatch = errors.New("gateway order does not match")
	ErrPaymentInvalidAmount = errors.New("invalid payment amount")
)

// RazorpayConfig holds the gateway credentials and endpoint.
type RazorpayConfig struct {
	KeyID     string
	KeySecret string
	BaseURL   string
	Currency  string
}

// RazorpayService is the trusted relay between checkout and the Razorpay
// REST API. The secret key never leaves this process; the client only
// ever sees the public key id and the gateway order id.
type RazorpayService struct {
	db      *gorm.DB
	coupons *CouponService
	cfg     RazorpayConfig
	client  *http.Client
}

// NewRazorpayService constructs a RazorpayService.
func NewRazorpayService(db *gorm.DB, coupons *CouponService, cfg RazorpayConfig) *RazorpayService {
	return &RazorpayService{
		db:      db,
		coupons: coupons,
		cfg:     cfg,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// CheckoutSession is everything the hosted payment UI needs to open.
type CheckoutSession struct {
	KeyID           string `json:"key_id"`
	RazorpayOrderID string `json:"razorpay_order_id"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	OrderNumber     string `json:"order_number"`
	PrefillName     string `json:"prefill_name"`
	PrefillEmail    string `json:"prefill_email"`
	PrefillContact  string `json:"prefill_contact"`
}

type razorpayOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type razorpayOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Error    *struct {
		Description string `json:"description"`
	} `json:"error,omitempty"`
}

type razorpayPayment struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type razorpayPaymentList struct {
	Items []razorpayPayment `json:"items"`
}

// InitiatePayment creates a gateway order for a pending razorpay order
// and returns the checkout session for the hosted UI. If the relay call
// fails the order stays pending and unpaid; the user may retry.
func (s *RazorpayService) InitiatePayment(ctx context.Context, orderID, userID uuid.UUID) (*CheckoutSession, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Preload("User").
		First(&order, "id = ? AND user_id = ?", orderID, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	if order.PaymentMethod != models.PaymentMethodRazorpay {
		return nil, ErrPaymentNotRazorpay
	}
	if order.PaymentStatus != models.PaymentStatusPending || order.Status != models.OrderStatusPending {
		return nil, ErrPaymentNotPending
	}

	amount, err := AmountMinorUnits(order.TotalAmount)
	if err != nil {
		return nil, err
	}

	notes := map[string]string{"order_id": order.ID.String()}
	prefillName, prefillEmail, prefillContact := "", "", order.ShippingPhone
	if order.User != nil {
		prefillName = order.User.FullName()
		prefillEmail = order.User.Email
		notes["user_email"] = order.User.Email
		notes["user_full_name"] = prefillName
	}
	notes["phone_number"] = order.ShippingPhone

	gateway, err := s.createGatewayOrder(ctx, razorpayOrderRequest{
		Amount:   amount,
		Currency: s.cfg.Currency,
		Receipt:  order.ID.String(),
		Notes:    notes,
	})
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", order.ID).
		Update("razorpay_order_id", gateway.ID).Error; err != nil {
		return nil, err
	}

	return &CheckoutSession{
		KeyID:           s.cfg.KeyID,
		RazorpayOrderID: gateway.ID,
		Amount:          gateway.Amount,
		Currency:        gateway.Currency,
		OrderNumber:     order.OrderNumber,
		PrefillName:     prefillName,
		PrefillEmail:    prefillEmail,
		PrefillContact:  prefillContact,
	}, nil
}

// ConfirmPayment reconciles a successful hosted-UI callback. The payment
// signature is verified against the shared secret before anything is
// written; the client-reported payment id alone proves nothing. The
// status update is conditional on the order still being unpaid, and a
// replayed confirmation of an already-paid order is accepted silently.
func (s *RazorpayService) ConfirmPayment(ctx context.Context, orderID, userID uuid.UUID, rzpOrderID, rzpPaymentID, signature string) (*models.Order, error) {
	if !VerifySignature(rzpOrderID, rzpPaymentID, signature, s.cfg.KeySecret) {
		return nil, ErrPaymentBadSignature
	}

	var order models.Order
	if err := s.db.WithContext(ctx).
		First(&order, "id = ? AND user_id = ?", orderID, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	if order.RazorpayOrderID != "" && order.RazorpayOrderID != rzpOrderID {
		return nil, ErrPaymentOrderMismatch
	}

	if err := s.markPaid(ctx, &order, rzpOrderID, rzpPaymentID); err != nil {
		return nil, err
	}

	return s.reload(ctx, order.ID)
}

// FailPayment records a gateway-reported failure. The update only matches
// orders still pending on both axes, so a stale failure callback can
// never overwrite a paid order or resurrect a cancelled one. The cart is
// not touched; the user may retry.
func (s *RazorpayService) FailPayment(ctx context.Context, orderID, userID uuid.UUID, description, gatewayOrderID string) (*models.Order, error) {
	updates := map[string]any{
		"payment_status": models.PaymentStatusFailed,
		"status":         models.OrderStatusFailed,
	}
	if gatewayOrderID != "" {
		updates["razorpay_order_id"] = gatewayOrderID
	}

	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND user_id = ? AND payment_status = ? AND status = ?",
			orderID, userID, models.PaymentStatusPending, models.OrderStatusPending).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		current, err := s.reload(ctx, orderID)
		if err != nil {
			return nil, err
		}
		// Already paid, failed or cancelled: report the persisted state.
		return current, nil
	}

	log.Printf("[Razorpay] payment failed for order %s: %s", orderID, description)
	return s.reload(ctx, orderID)
}

// StartReconciler polls the gateway for orders that initiated a payment
// but never received a callback, so a dropped callback cannot strand an
// order that was paid at the gateway. Runs until ctx is cancelled.
func (s *RazorpayService) StartReconciler(ctx context.Context, interval, minAge time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.reconcileOnce(ctx, minAge); err != nil {
					log.Printf("[Razorpay] reconcile pass failed: %v", err)
				}
			}
		}
	}()
}

func (s *RazorpayService) reconcileOnce(ctx context.Context, minAge time.Duration) error {
	cutoff := time.Now().Add(-minAge)

	var stale []models.Order
	if err := s.db.WithContext(ctx).
		Where("payment_method = ? AND payment_status = ? AND status = ? AND razorpay_order_id <> '' AND created_at < ?",
			models.PaymentMethodRazorpay, models.PaymentStatusPending, models.OrderStatusPending, cutoff).
		Limit(50).
		Find(&stale).Error; err != nil {
		return err
	}

	for _, order := range stale {
		payments, err := s.fetchPayments(ctx, order.RazorpayOrderID)
		if err != nil {
			log.Printf("[Razorpay] reconcile fetch for order %s: %v", order.ID, err)
			continue
		}

		for _, p := range payments {
			if p.Status == "captured" {
				if err := s.markPaid(ctx, &order, order.RazorpayOrderID, p.ID); err != nil {
					log.Printf("[Razorpay] reconcile mark paid for order %s: %v", order.ID, err)
				} else {
					log.Printf("[Razorpay] reconciled order %s as paid (payment %s)", order.ID, p.ID)
				}
				break
			}
		}
	}

	return nil
}

// markPaid flips an order that is still pending on both axes to
// paid/confirmed and redeems its coupon in one transaction. The
// conditional update makes a concurrent callback and reconciler pass
// converge on a single redemption, and keeps a late capture from
// resurrecting an order the user already cancelled. A capture that
// lands on a cancelled order is logged as refund-required, never
// confirmed.
func (s *RazorpayService) markPaid(ctx context.Context, order *models.Order, rzpOrderID, rzpPaymentID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND payment_status = ? AND status = ?",
				order.ID, models.PaymentStatusPending, models.OrderStatusPending).
			Updates(map[string]any{
				"payment_status":      models.PaymentStatusPaid,
				"status":              models.OrderStatusConfirmed,
				"razorpay_order_id":   rzpOrderID,
				"razorpay_payment_id": rzpPaymentID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var current models.Order
			if err := tx.First(&current, "id = ?", order.ID).Error; err != nil {
				return err
			}
			if current.Status == models.OrderStatusCancelled {
				log.Printf("[Razorpay] captured payment %s for cancelled order %s; refund required", rzpPaymentID, order.ID)
			}
			// Otherwise someone else confirmed first; nothing left to do.
			return nil
		}

		if order.CouponCode != "" {
			if err := s.coupons.Redeem(tx, order.CouponCode); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *RazorpayService) createGatewayOrder(ctx context.Context, payload razorpayOrderRequest) (*razorpayOrderResponse, error) {
	if payload.Amount <= 0 {
		return nil, ErrPaymentInvalidAmount
	}
	if payload.Currency != s.cfg.Currency {
		return nil, fmt.Errorf("unsupported currency %q", payload.Currency)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal gateway order payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create gateway order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(s.cfg.KeyID, s.cfg.KeySecret)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute gateway order request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read gateway order response: %w", err)
	}

	var gateway razorpayOrderResponse
	if err := json.Unmarshal(respBody, &gateway); err != nil {
		return nil, fmt.Errorf("unmarshal gateway order response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if gateway.Error != nil && gateway.Error.Description != "" {
			return nil, fmt.Errorf("gateway order failed: %s", gateway.Error.Description)
		}
		return nil, fmt.Errorf("gateway order failed: status %d", resp.StatusCode)
	}

	return &gateway, nil
}

func (s *RazorpayService) fetchPayments(ctx context.Context, rzpOrderID string) ([]razorpayPayment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+"/v1/orders/"+rzpOrderID+"/payments", nil)
	if err != nil {
		return nil, fmt.Errorf("create payments request: %w", err)
	}
	req.SetBasicAuth(s.cfg.KeyID, s.cfg.KeySecret)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute payments request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read payments response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("payments request failed: status %d", resp.StatusCode)
	}

	var list razorpayPaymentList
	if err := json.Unmarshal(respBody, &list); err != nil {
		return nil, fmt.Errorf("unmarshal payments response: %w", err)
	}

	return list.Items, nil
}

func (s *RazorpayService) reload(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// VerifySignature checks the gateway's payment signature: an HMAC-SHA256
// of "<gateway_order_id>|<payment_id>" keyed with the secret, hex encoded.
func VerifySignature(rzpOrderID, rzpPaymentID, signature, secret string) bool {
	if rzpOrderID == "" || rzpPaymentID == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(rzpOrderID + "|" + rzpPaymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// AmountMinorUnits converts a decimal amount into the gateway's integer
// minor units (paise). Fails on zero, negative or sub-paise amounts.
func AmountMinorUnits(amount decimal.Decimal) (int64, error) {
	minor := amount.Mul(decimal.NewFromInt(100))
	if !minor.Equal(minor.Truncate(0)) {
		return 0, ErrPaymentInvalidAmount
	}
	value := minor.IntPart()
	if value <= 0 {
		return 0, ErrPaymentInvalidAmount
	}
	return value, nil
}
