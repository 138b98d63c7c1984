package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSubtotal(t *testing.T) {
	lines := []Line{
		{ProductID: 1, UnitPrice: 50_000, Quantity: 2},
		{ProductID: 2, UnitPrice: 120_000, Quantity: 1},
	}
	assert.Equal(t, int64(220_000), Subtotal(lines))
	assert.Equal(t, int64(0), Subtotal(nil))
}

func TestPercentageDiscount(t *testing.T) {
	tests := []struct {
		name     string
		subtotal int64
		percent  string
		want     int64
	}{
		{"ten percent of 100000", 100_000, "10", 10_000},
		{"floors fractional result", 99_999, "10", 9_999},
		{"fractional percent floors", 100_001, "12.5", 12_500},
		{"hundred percent", 45_000, "100", 45_000},
		{"zero subtotal", 0, "50", 0},
		{"zero percent", 100_000, "0", 0},
		{"one unit", 1, "33", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PercentageDiscount(tt.subtotal, decimal.RequireFromString(tt.percent))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFixedDiscount(t *testing.T) {
	assert.Equal(t, int64(5_000), FixedDiscount(100_000, 5_000))
	assert.Equal(t, int64(100_000), FixedDiscount(100_000, 250_000), "capped at subtotal")
	assert.Equal(t, int64(0), FixedDiscount(0, 5_000))
	assert.Equal(t, int64(0), FixedDiscount(100_000, -1))
}

func TestCompute(t *testing.T) {
	lines := []Line{{ProductID: 1, UnitPrice: 50_000, Quantity: 2}}

	b := Compute(lines, 10_000)
	assert.Equal(t, int64(100_000), b.Subtotal)
	assert.Equal(t, int64(10_000), b.Discount)
	assert.Equal(t, int64(90_000), b.Total)

	// Discount larger than subtotal never drives the total negative.
	b = Compute(lines, 999_999)
	assert.Equal(t, int64(100_000), b.Discount)
	assert.Equal(t, int64(0), b.Total)

	b = Compute(lines, -5)
	assert.Equal(t, int64(0), b.Discount)
	assert.Equal(t, b.Subtotal, b.Total)
}
