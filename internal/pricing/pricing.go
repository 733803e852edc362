package pricing

import (
	"github.com/shopspring/decimal"
)

// Rules holds the business constants for order pricing. They come from
// configuration so deployments can tune them without a code change.
type Rules struct {
	// FreeShippingThreshold: shipping is free when the subtotal strictly
	// exceeds this amount.
	FreeShippingThreshold decimal.Decimal
	// FlatShippingFee applies whenever the subtotal is at or below the threshold.
	FlatShippingFee decimal.Decimal
	// TaxRate is a fraction, e.g. 0.18 for 18%.
	TaxRate decimal.Decimal
}

// Breakdown is the full price composition of a cart or order.
// Invariant: Total = Subtotal + Shipping + Tax - Discount, floored at zero.
type Breakdown struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping_amount"`
	Tax      decimal.Decimal `json:"tax_amount"`
	Discount decimal.Decimal `json:"discount_amount"`
	Total    decimal.Decimal `json:"total_amount"`
}

// Quote computes the price breakdown for a subtotal and an already
// validated discount. Every caller that shows or persists a total goes
// through this function: cart display, checkout summary and order
// persistence must never diverge.
func Quote(rules Rules, subtotal, discount decimal.Decimal) Breakdown {
	if subtotal.IsNegative() {
		subtotal = decimal.Zero
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}

	shipping := rules.FlatShippingFee
	if subtotal.GreaterThan(rules.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	// Tax rounds half-up to the nearest whole currency unit.
	tax := subtotal.Mul(rules.TaxRate).Round(0)

	total := subtotal.Add(shipping).Add(tax).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Breakdown{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Discount: discount,
		Total:    total,
	}
}
