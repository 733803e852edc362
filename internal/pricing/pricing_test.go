package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func defaultRules() Rules {
	return Rules{
		FreeShippingThreshold: decimal.NewFromInt(499),
		FlatShippingFee:       decimal.NewFromInt(49),
		TaxRate:               decimal.RequireFromString("0.18"),
	}
}

func TestQuote(t *testing.T) {
	tests := []struct {
		name         string
		subtotal     string
		discount     string
		wantShipping string
		wantTax      string
		wantTotal    string
	}{
		{
			name:         "subtotal at threshold still pays shipping",
			subtotal:     "499",
			discount:     "0",
			wantShipping: "49",
			wantTax:      "90",
			wantTotal:    "638",
		},
		{
			name:         "subtotal above threshold ships free",
			subtotal:     "500",
			discount:     "0",
			wantShipping: "0",
			wantTax:      "90",
			wantTotal:    "590",
		},
		{
			name:         "tax rounds half up to whole unit",
			subtotal:     "125",
			discount:     "0",
			wantShipping: "49",
			wantTax:      "23",
			wantTotal:    "197",
		},
		{
			name:         "tax rounds down below half",
			subtotal:     "124",
			discount:     "0",
			wantShipping: "49",
			wantTax:      "22",
			wantTotal:    "195",
		},
		{
			name:         "discount reduces total",
			subtotal:     "1000",
			discount:     "100",
			wantShipping: "0",
			wantTax:      "180",
			wantTotal:    "1080",
		},
		{
			name:         "oversized discount clamps total at zero",
			subtotal:     "100",
			discount:     "200",
			wantShipping: "49",
			wantTax:      "18",
			wantTotal:    "0",
		},
		{
			name:         "negative discount treated as zero",
			subtotal:     "100",
			discount:     "-50",
			wantShipping: "49",
			wantTax:      "18",
			wantTotal:    "167",
		},
		{
			name:         "negative subtotal treated as zero",
			subtotal:     "-10",
			discount:     "0",
			wantShipping: "49",
			wantTax:      "0",
			wantTotal:    "49",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Quote(defaultRules(),
				decimal.RequireFromString(tt.subtotal),
				decimal.RequireFromString(tt.discount))

			assert.True(t, got.Shipping.Equal(decimal.RequireFromString(tt.wantShipping)),
				"shipping: got %s want %s", got.Shipping, tt.wantShipping)
			assert.True(t, got.Tax.Equal(decimal.RequireFromString(tt.wantTax)),
				"tax: got %s want %s", got.Tax, tt.wantTax)
			assert.True(t, got.Total.Equal(decimal.RequireFromString(tt.wantTotal)),
				"total: got %s want %s", got.Total, tt.wantTotal)
		})
	}
}

func TestQuoteTotalIdentity(t *testing.T) {
	subtotals := []string{"0", "1", "49.50", "499", "500", "999.99", "12345.67"}
	discounts := []string{"0", "10", "100.25"}

	for _, s := range subtotals {
		for _, d := range discounts {
			got := Quote(defaultRules(), decimal.RequireFromString(s), decimal.RequireFromString(d))

			sum := got.Subtotal.Add(got.Shipping).Add(got.Tax).Sub(got.Discount)
			if sum.IsNegative() {
				sum = decimal.Zero
			}
			assert.True(t, got.Total.Equal(sum),
				"subtotal %s discount %s: total %s does not match components", s, d, got.Total)
		}
	}
}
