// Package order implements order placement, the status state machine,
// and stock reservation semantics. An order is created atomically in a
// single storage transaction and is immutable afterwards except for
// status transitions.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

// Status is the order lifecycle state. pending is initial; confirmed
// and cancelled are terminal (cancelled can also be reached from
// confirmed, restoring stock).
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// PaymentMethod is how the customer intends to pay on delivery.
type PaymentMethod string

const (
	PaymentCash PaymentMethod = "cash"
	PaymentCard PaymentMethod = "card"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCash || m == PaymentCard
}

var (
	// ErrEmptyCart is returned when an order is placed with no items.
	ErrEmptyCart = errors.New("cart cannot be empty")
	// ErrNotFound is returned when a requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrInsufficientStock is returned by the store when a conditional
	// stock decrement finds less stock than requested. The service
	// wraps it with product context before it reaches callers.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrConcurrencyConflict is returned by the store when a transaction
	// is aborted after losing a concurrent race (deadlock or
	// serialization failure). The request is safe to retry.
	ErrConcurrencyConflict = errors.New("concurrent update conflict, retry the request")
)

// InvalidQuantityError indicates a cart line with a non-positive quantity.
type InvalidQuantityError struct {
	ProductID int64
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %d", e.ProductID)
}

// ProductNotFoundError indicates a cart references an unknown product.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

// UnavailableReason explains why a product cannot be ordered.
type UnavailableReason string

const (
	ReasonInactive          UnavailableReason = "inactive"
	ReasonInsufficientStock UnavailableReason = "insufficient_stock"
)

// ProductUnavailableError indicates a product is inactive or lacks the
// requested stock. Available carries the stock seen at check time for
// insufficient_stock.
type ProductUnavailableError struct {
	ProductID int64
	Reason    UnavailableReason
	Available int
}

func (e *ProductUnavailableError) Error() string {
	if e.Reason == ReasonInsufficientStock {
		return fmt.Sprintf("product %d has insufficient stock (available %d)", e.ProductID, e.Available)
	}
	return fmt.Sprintf("product %d is not available", e.ProductID)
}

// StatusConflictError indicates a forbidden status transition.
type StatusConflictError struct {
	From Status
	To   Status
}

func (e *StatusConflictError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}

// LineItem is a frozen order line: name and unit price are snapshots
// taken at order creation and never change with the catalog.
type LineItem struct {
	ProductID    int64
	NameSnapshot string
	UnitPrice    int64
	Quantity     int
	LineTotal    int64
}

// Order is an immutable record of a purchase. All amounts are minor
// currency units; Total = Subtotal - DiscountAmount always holds.
type Order struct {
	ID               string
	Status           Status
	CustomerName     string
	Phone            string
	TelegramUsername string
	PaymentMethod    PaymentMethod
	Comment          string
	PromoCode        string
	Subtotal         int64
	DiscountAmount   int64
	Total            int64
	Items            []LineItem
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ListFilter narrows order listings.
type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}

// Product is the slice of catalog state the order transaction needs.
type Product struct {
	ID             int64
	Name           string
	EffectivePrice int64
	StockQuantity  int
	IsActive       bool
}

// Tx is the set of operations available inside one order transaction.
// All row mutations are conditional so concurrent transactions cannot
// oversell stock or overconsume promo codes.
type Tx interface {
	// Products reads the given products without taking locks, for
	// read-only pricing previews.
	Products(ctx context.Context, ids []int64) ([]Product, error)
	// ProductsForUpdate reads the given products under row locks so
	// stock and prices cannot move under the transaction.
	ProductsForUpdate(ctx context.Context, ids []int64) ([]Product, error)
	// DecrementStock subtracts qty guarded by stock_quantity >= qty;
	// returns ErrInsufficientStock when the guard fails.
	DecrementStock(ctx context.Context, productID int64, qty int) error
	// RestoreStock adds qty back to a product's stock.
	RestoreStock(ctx context.Context, productID int64, qty int) error
	// ConsumePromo increments used_count guarded by the max_uses cap;
	// returns promo.ErrExhausted when the guard fails.
	ConsumePromo(ctx context.Context, promoID int64) error
	// InsertOrder persists the order and its line items, filling in
	// the store-assigned timestamps.
	InsertOrder(ctx context.Context, o *Order) error
	// OrderForUpdate reads an order with its items under a row lock.
	OrderForUpdate(ctx context.Context, id string) (*Order, error)
	// SetStatus updates the order status and updated_at.
	SetStatus(ctx context.Context, id string, st Status) error
}

// Store runs order transactions and serves order reads.
type Store interface {
	// InTx runs fn inside a single transaction; any error rolls the
	// whole transaction back.
	InTx(ctx context.Context, fn func(tx Tx) error) error
	GetByID(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, f ListFilter) ([]Order, error)
}
