package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/unimerch/shop-api/internal/domain/promo"
)

const promoColumns = `id, code, discount_type, value, valid_from, valid_until,
	max_uses, used_count, is_active, created_at, updated_at`

var _ promo.Repository = (*PromoRepository)(nil)

// PromoRepository implements promo.Repository on PostgreSQL.
type PromoRepository struct {
	pool *pgxpool.Pool
}

// NewPromoRepository returns a PromoRepository using the given pool.
func NewPromoRepository(pool *pgxpool.Pool) *PromoRepository {
	return &PromoRepository{pool: pool}
}

// FindByCode looks a promo code up case-insensitively, regardless of
// its active flag; the validator decides which failure to report.
func (r *PromoRepository) FindByCode(ctx context.Context, code string) (*promo.Code, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+promoColumns+` FROM promo_codes WHERE code = UPPER($1)`, code)
	if err != nil {
		return nil, errors.Wrapf(err, "find promo code %q", code)
	}
	pc, err := pgx.CollectExactlyOneRow(rows, scanPromoCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promo.ErrNotFound
		}
		return nil, errors.Wrapf(err, "find promo code %q", code)
	}
	return &pc, nil
}

// Upsert inserts a promo code or updates its rule fields. Used by the
// seed and ingest tools; used_count is never reset.
func (r *PromoRepository) Upsert(ctx context.Context, pc *promo.Code) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO promo_codes (code, discount_type, value, valid_from, valid_until, max_uses, is_active)
		 VALUES (UPPER($1), $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (code) DO UPDATE SET
		     discount_type = EXCLUDED.discount_type,
		     value = EXCLUDED.value,
		     valid_from = EXCLUDED.valid_from,
		     valid_until = EXCLUDED.valid_until,
		     max_uses = EXCLUDED.max_uses,
		     is_active = EXCLUDED.is_active,
		     updated_at = now()`,
		pc.Code, string(pc.DiscountType), pc.Value, pc.ValidFrom, pc.ValidUntil, pc.MaxUses, pc.IsActive,
	)
	if err != nil {
		return errors.Wrapf(err, "upsert promo code %q", pc.Code)
	}
	return nil
}

func scanPromoCode(row pgx.CollectableRow) (promo.Code, error) {
	var (
		pc           promo.Code
		discountType string
		value        decimal.Decimal
	)
	err := row.Scan(
		&pc.ID, &pc.Code, &discountType, &value, &pc.ValidFrom, &pc.ValidUntil,
		&pc.MaxUses, &pc.UsedCount, &pc.IsActive, &pc.CreatedAt, &pc.UpdatedAt,
	)
	pc.DiscountType = promo.DiscountType(discountType)
	pc.Value = value
	return pc, err
}
