package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unimerch/shop-api/internal/domain/order"
	"github.com/unimerch/shop-api/internal/domain/promo"
)

var _ order.Store = (*OrderStore)(nil)

// OrderStore implements order.Store on PostgreSQL. All mutations run
// through InTx so order creation and status transitions are atomic.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore returns an OrderStore using the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// InTx runs fn inside a single database transaction, committing on nil
// and rolling back on error. Transactions aborted by the server after a
// deadlock or serialization failure surface as ErrConcurrencyConflict
// so callers can retry.
func (s *OrderStore) InTx(ctx context.Context, fn func(tx order.Tx) error) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&orderTx{tx: tx})
	})
	if isPgError(err, pgSerializationFailure) || isPgError(err, pgDeadlockDetected) {
		return order.ErrConcurrencyConflict
	}
	return err
}

const orderColumns = `id, status, customer_name, phone, telegram_username,
	payment_method, comment, promo_code, subtotal, discount_amount, total,
	created_at, updated_at`

// GetByID returns an order with its line items.
func (s *OrderStore) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return getOrder(ctx, s.pool, id, "")
}

// List returns orders matching the filter, newest first, without line
// items (listing is a summary view).
func (s *OrderStore) List(ctx context.Context, f order.ListFilter) ([]order.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	args := []any{}
	if f.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(f.Status))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, max(f.Offset, 0))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return pgx.CollectRows(rows, scanOrder)
}

// querier is satisfied by both pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func getOrder(ctx context.Context, q querier, id, lock string) (*order.Order, error) {
	rows, err := q.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`+lock, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %q", id)
	}

	itemRows, err := q.Query(ctx,
		`SELECT product_id, name_snapshot, unit_price, quantity, line_total
		 FROM order_items WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order items %q", id)
	}
	o.Items, err = pgx.CollectRows(itemRows, scanLineItem)
	if err != nil {
		return nil, errors.Wrapf(err, "scan order items %q", id)
	}
	return &o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o             order.Order
		status        string
		paymentMethod string
	)
	err := row.Scan(
		&o.ID, &status, &o.CustomerName, &o.Phone, &o.TelegramUsername,
		&paymentMethod, &o.Comment, &o.PromoCode, &o.Subtotal, &o.DiscountAmount, &o.Total,
		&o.CreatedAt, &o.UpdatedAt,
	)
	o.Status = order.Status(status)
	o.PaymentMethod = order.PaymentMethod(paymentMethod)
	return o, err
}

func scanLineItem(row pgx.CollectableRow) (order.LineItem, error) {
	var li order.LineItem
	err := row.Scan(&li.ProductID, &li.NameSnapshot, &li.UnitPrice, &li.Quantity, &li.LineTotal)
	return li, err
}

var _ order.Tx = (*orderTx)(nil)

// orderTx exposes the per-transaction operations over a live pgx.Tx.
type orderTx struct {
	tx pgx.Tx
}

// Products reads products without locks, for read-only pricing
// previews that must not contend with concurrent placements.
func (t *orderTx) Products(ctx context.Context, ids []int64) ([]order.Product, error) {
	return t.readProducts(ctx, ids, "")
}

// ProductsForUpdate reads products under FOR UPDATE row locks, ordered
// by id to keep lock acquisition order consistent across concurrent
// transactions (deadlock avoidance).
func (t *orderTx) ProductsForUpdate(ctx context.Context, ids []int64) ([]order.Product, error) {
	return t.readProducts(ctx, ids, " FOR UPDATE")
}

func (t *orderTx) readProducts(ctx context.Context, ids []int64, lock string) ([]order.Product, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT id, name, price, discount_price, stock_quantity, is_active
		 FROM products WHERE id = ANY($1) ORDER BY id`+lock, ids)
	if err != nil {
		return nil, errors.Wrap(err, "read products")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Product, error) {
		var (
			p             order.Product
			price         int64
			discountPrice *int64
		)
		err := row.Scan(&p.ID, &p.Name, &price, &discountPrice, &p.StockQuantity, &p.IsActive)
		p.EffectivePrice = price
		if discountPrice != nil {
			p.EffectivePrice = *discountPrice
		}
		return p, err
	})
}

// DecrementStock subtracts qty with a stock_quantity >= qty guard so a
// concurrent transaction that got there first cannot be overdrawn.
func (t *orderTx) DecrementStock(ctx context.Context, productID int64, qty int) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE products SET stock_quantity = stock_quantity - $2, updated_at = now()
		 WHERE id = $1 AND stock_quantity >= $2`, productID, qty)
	if err != nil {
		return errors.Wrapf(err, "decrement stock for product %d", productID)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrInsufficientStock
	}
	return nil
}

// RestoreStock adds reserved quantity back on cancellation.
func (t *orderTx) RestoreStock(ctx context.Context, productID int64, qty int) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE products SET stock_quantity = stock_quantity + $2, updated_at = now()
		 WHERE id = $1`, productID, qty)
	if err != nil {
		return errors.Wrapf(err, "restore stock for product %d", productID)
	}
	return nil
}

// ConsumePromo increments used_count guarded by the max_uses cap.
func (t *orderTx) ConsumePromo(ctx context.Context, promoID int64) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE promo_codes SET used_count = used_count + 1, updated_at = now()
		 WHERE id = $1 AND (max_uses IS NULL OR used_count < max_uses)`, promoID)
	if err != nil {
		return errors.Wrapf(err, "consume promo %d", promoID)
	}
	if tag.RowsAffected() == 0 {
		return promo.ErrExhausted
	}
	return nil
}

// InsertOrder persists the order row and its line items.
func (t *orderTx) InsertOrder(ctx context.Context, o *order.Order) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO orders (id, status, customer_name, phone, telegram_username,
		     payment_method, comment, promo_code, subtotal, discount_amount, total)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING created_at, updated_at`,
		o.ID, string(o.Status), o.CustomerName, o.Phone, o.TelegramUsername,
		string(o.PaymentMethod), o.Comment, o.PromoCode, o.Subtotal, o.DiscountAmount, o.Total,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return errors.Wrapf(err, "insert order %q", o.ID)
	}

	for _, li := range o.Items {
		_, err := t.tx.Exec(ctx,
			`INSERT INTO order_items (order_id, product_id, name_snapshot, unit_price, quantity, line_total)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			o.ID, li.ProductID, li.NameSnapshot, li.UnitPrice, li.Quantity, li.LineTotal,
		)
		if err != nil {
			return errors.Wrapf(err, "insert order item for product %d", li.ProductID)
		}
	}
	return nil
}

// OrderForUpdate reads an order with its items under a row lock.
func (t *orderTx) OrderForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return getOrder(ctx, t.tx, id, " FOR UPDATE")
}

// SetStatus updates the order status.
func (t *orderTx) SetStatus(ctx context.Context, id string, st order.Status) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`,
		id, string(st))
	if err != nil {
		return errors.Wrapf(err, "set order %q status", id)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}
