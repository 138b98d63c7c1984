package promo

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	code *Code
	err  error
}

func (m *mockRepo) FindByCode(_ context.Context, _ string) (*Code, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.code, nil
}

func intPtr(v int) *int { return &v }

func TestValidate(t *testing.T) {
	fixedNow := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := fixedNow.Add(-24 * time.Hour)
	future := fixedNow.Add(24 * time.Hour)

	tests := []struct {
		name       string
		repo       *mockRepo
		subtotal   int64
		wantAmount int64
		wantErr    error
		wantReason string
	}{
		{
			name: "percentage discount floors",
			repo: &mockRepo{code: &Code{
				ID: 1, Code: "SAVE10", DiscountType: DiscountPercentage,
				Value: decimal.NewFromInt(10), IsActive: true,
			}},
			subtotal:   100_000,
			wantAmount: 10_000,
		},
		{
			name: "fixed discount capped at subtotal",
			repo: &mockRepo{code: &Code{
				ID: 2, Code: "MINUS50K", DiscountType: DiscountFixed,
				Value: decimal.NewFromInt(50_000), IsActive: true,
			}},
			subtotal:   30_000,
			wantAmount: 30_000,
		},
		{
			name:       "unknown code",
			repo:       &mockRepo{err: ErrNotFound},
			subtotal:   10_000,
			wantErr:    ErrNotFound,
			wantReason: "not_found",
		},
		{
			name: "inactive before window check",
			repo: &mockRepo{code: &Code{
				Code: "OLD", DiscountType: DiscountPercentage,
				Value: decimal.NewFromInt(5), IsActive: false,
				ValidUntil: &past,
			}},
			subtotal:   10_000,
			wantErr:    ErrInactive,
			wantReason: "inactive",
		},
		{
			name: "expired window",
			repo: &mockRepo{code: &Code{
				Code: "LASTWEEK", DiscountType: DiscountPercentage,
				Value: decimal.NewFromInt(5), IsActive: true,
				ValidUntil: &past,
			}},
			subtotal:   10_000,
			wantErr:    ErrExpired,
			wantReason: "expired",
		},
		{
			name: "not yet started",
			repo: &mockRepo{code: &Code{
				Code: "SOON", DiscountType: DiscountPercentage,
				Value: decimal.NewFromInt(5), IsActive: true,
				ValidFrom: &future,
			}},
			subtotal:   10_000,
			wantErr:    ErrExpired,
			wantReason: "expired",
		},
		{
			name: "usage exhausted",
			repo: &mockRepo{code: &Code{
				Code: "ONEUSE", DiscountType: DiscountPercentage,
				Value: decimal.NewFromInt(5), IsActive: true,
				MaxUses: intPtr(1), UsedCount: 1,
			}},
			subtotal:   10_000,
			wantErr:    ErrExhausted,
			wantReason: "exhausted",
		},
		{
			name: "usage left",
			repo: &mockRepo{code: &Code{
				Code: "FEWLEFT", DiscountType: DiscountPercentage,
				Value: decimal.NewFromInt(20), IsActive: true,
				MaxUses: intPtr(5), UsedCount: 4,
			}},
			subtotal:   10_000,
			wantAmount: 2_000,
		},
		{
			name: "unlimited uses",
			repo: &mockRepo{code: &Code{
				Code: "FOREVER", DiscountType: DiscountPercentage,
				Value: decimal.NewFromInt(1), IsActive: true,
				UsedCount: 1_000_000,
			}},
			subtotal:   100_000,
			wantAmount: 1_000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator(tt.repo).WithClock(func() time.Time { return fixedNow })

			d, err := v.Validate(context.Background(), "whatever", tt.subtotal)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.wantReason, Reason(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAmount, d.Amount)
		})
	}
}

func TestValidate_UnsupportedType(t *testing.T) {
	repo := &mockRepo{code: &Code{
		Code: "WEIRD", DiscountType: "free_delivery",
		Value: decimal.Zero, IsActive: true,
	}}
	_, err := NewValidator(repo).Validate(context.Background(), "WEIRD", 10_000)
	require.Error(t, err)
	assert.Empty(t, Reason(err))
}
