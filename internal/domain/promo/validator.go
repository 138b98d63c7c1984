package promo

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/unimerch/shop-api/internal/domain/pricing"
)

// Validator checks a promo code against the current time and usage
// limits and computes the discount it yields on a subtotal.
type Validator interface {
	Validate(ctx context.Context, code string, subtotal int64) (*Decision, error)
}

// RepoValidator implements Validator over a Repository. The clock is
// injectable for tests.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewValidator creates a RepoValidator backed by the given Repository.
func NewValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// WithClock overrides the validator's clock. Intended for tests.
func (v *RepoValidator) WithClock(now func() time.Time) *RepoValidator {
	v.now = now
	return v
}

// Validate runs the eligibility checks in a fixed order — existence,
// active flag, validity window, usage limit — and reports the first
// failure. On success it returns a Decision with the discount amount
// computed for the subtotal; it never mutates used_count.
func (v *RepoValidator) Validate(ctx context.Context, code string, subtotal int64) (*Decision, error) {
	pc, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup promo code")
	}

	if !pc.IsActive {
		return nil, ErrInactive
	}

	now := v.now()
	if pc.ValidFrom != nil && now.Before(*pc.ValidFrom) {
		return nil, ErrExpired
	}
	if pc.ValidUntil != nil && now.After(*pc.ValidUntil) {
		return nil, ErrExpired
	}

	if pc.MaxUses != nil && pc.UsedCount >= *pc.MaxUses {
		return nil, ErrExhausted
	}

	amount, err := discountAmount(pc, subtotal)
	if err != nil {
		return nil, err
	}

	return &Decision{
		PromoID:      pc.ID,
		Code:         pc.Code,
		DiscountType: pc.DiscountType,
		Value:        pc.Value,
		Amount:       amount,
	}, nil
}

func discountAmount(pc *Code, subtotal int64) (int64, error) {
	switch pc.DiscountType {
	case DiscountPercentage:
		return pricing.PercentageDiscount(subtotal, pc.Value), nil
	case DiscountFixed:
		return pricing.FixedDiscount(subtotal, pc.Value.IntPart()), nil
	default:
		return 0, errors.Errorf("unsupported discount type: %q", pc.DiscountType)
	}
}
