// Package promo implements the promo-code registry and validation
// rules. Codes are stored UPPERCASE and matched case-insensitively.
package promo

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported discount strategies.
type DiscountType string

const (
	// DiscountPercentage discounts a percentage of the subtotal,
	// floored to the nearest minor unit.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed discounts a fixed amount of minor units, capped at
	// the subtotal.
	DiscountFixed DiscountType = "fixed_amount"
)

// Validation failures, in check order. Reason maps them to the
// machine-readable codes the API reports.
var (
	ErrNotFound  = errors.New("promo code not found")
	ErrInactive  = errors.New("promo code is not active")
	ErrExpired   = errors.New("promo code has expired")
	ErrExhausted = errors.New("promo code usage limit reached")
)

// Reason returns the machine-readable reason code for a validation
// error, or an empty string for errors outside the promo taxonomy.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInactive):
		return "inactive"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrExhausted):
		return "exhausted"
	}
	return ""
}

// Code is a promotional discount code with eligibility constraints.
// Value is a percentage (possibly fractional) for DiscountPercentage
// and an amount of minor units for DiscountFixed.
type Code struct {
	ID           int64
	Code         string
	DiscountType DiscountType
	Value        decimal.Decimal
	ValidFrom    *time.Time
	ValidUntil   *time.Time
	// MaxUses nil means unlimited.
	MaxUses   *int
	UsedCount int
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Decision is the outcome of a successful validation: the discount that
// would apply to the given subtotal. Nothing is consumed yet; used_count
// moves only inside the order-creation transaction.
type Decision struct {
	PromoID      int64
	Code         string
	DiscountType DiscountType
	Value        decimal.Decimal
	// Amount is the computed discount in minor units.
	Amount int64
}

// Repository provides lookup of promo codes.
type Repository interface {
	// FindByCode looks a code up case-insensitively regardless of its
	// active flag; activity is the validator's concern so the caller
	// sees the right failure reason. Returns ErrNotFound when absent.
	FindByCode(ctx context.Context, code string) (*Code, error)
}
