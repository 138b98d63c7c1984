package order

import (
	"context"
	"sort"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/unimerch/shop-api/internal/domain/pricing"
	"github.com/unimerch/shop-api/internal/domain/promo"
)

// CartLine is one requested (product, quantity) pair.
type CartLine struct {
	ProductID int64
	Quantity  int
}

// PlaceRequest holds everything needed to place an order.
type PlaceRequest struct {
	Items            []CartLine
	PromoCode        string
	CustomerName     string
	Phone            string
	TelegramUsername string
	PaymentMethod    PaymentMethod
	Comment          string
}

// Quote is the pricing preview returned by promo validation: no stock
// is reserved and no promo usage is consumed.
type Quote struct {
	Subtotal int64
	Discount int64
	Total    int64
	Promo    *promo.Decision
}

// Service orchestrates order placement and lifecycle transitions.
type Service struct {
	store  Store
	promos promo.Validator
}

// NewService creates an order Service.
func NewService(store Store, promos promo.Validator) *Service {
	return &Service{store: store, promos: promos}
}

// Place creates an order in one transaction: lock products, verify
// availability, reserve stock, compute pricing, consume the promo, and
// persist the order with frozen snapshots. Any failure rolls everything
// back — no partial stock decrement, no partial promo consumption.
func (s *Service) Place(ctx context.Context, req PlaceRequest) (*Order, error) {
	items, err := normalizeCart(req.Items)
	if err != nil {
		return nil, err
	}
	if !req.PaymentMethod.Valid() {
		return nil, errors.Errorf("unknown payment method %q", req.PaymentMethod)
	}

	var placed *Order
	err = s.store.InTx(ctx, func(tx Tx) error {
		ids := make([]int64, len(items))
		for i, it := range items {
			ids[i] = it.ProductID
		}

		products, err := tx.ProductsForUpdate(ctx, ids)
		if err != nil {
			return errors.Wrap(err, "lock products")
		}
		byID := make(map[int64]Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}

		lines := make([]pricing.Line, len(items))
		for i, it := range items {
			p, ok := byID[it.ProductID]
			if !ok {
				return &ProductNotFoundError{ProductID: it.ProductID}
			}
			if !p.IsActive {
				return &ProductUnavailableError{ProductID: p.ID, Reason: ReasonInactive}
			}
			if it.Quantity > p.StockQuantity {
				return &ProductUnavailableError{
					ProductID: p.ID,
					Reason:    ReasonInsufficientStock,
					Available: p.StockQuantity,
				}
			}
			lines[i] = pricing.Line{
				ProductID: p.ID,
				UnitPrice: p.EffectivePrice,
				Quantity:  it.Quantity,
			}
		}

		// Reserve stock. The rows are locked, but the decrement stays
		// conditional as a second line of defence.
		for _, it := range items {
			if err := tx.DecrementStock(ctx, it.ProductID, it.Quantity); err != nil {
				if errors.Is(err, ErrInsufficientStock) {
					return &ProductUnavailableError{
						ProductID: it.ProductID,
						Reason:    ReasonInsufficientStock,
						Available: byID[it.ProductID].StockQuantity,
					}
				}
				return errors.Wrapf(err, "reserve stock for product %d", it.ProductID)
			}
		}

		subtotal := pricing.Subtotal(lines)

		var (
			discount  int64
			promoCode string
		)
		if req.PromoCode != "" {
			decision, err := s.promos.Validate(ctx, req.PromoCode, subtotal)
			if err != nil {
				return errors.Wrap(err, "validate promo")
			}
			if err := tx.ConsumePromo(ctx, decision.PromoID); err != nil {
				return errors.Wrap(err, "consume promo")
			}
			discount = decision.Amount
			promoCode = decision.Code
		}

		bd := pricing.Compute(lines, discount)

		o := &Order{
			ID:               uuid.New().String(),
			Status:           StatusPending,
			CustomerName:     req.CustomerName,
			Phone:            req.Phone,
			TelegramUsername: req.TelegramUsername,
			PaymentMethod:    req.PaymentMethod,
			Comment:          req.Comment,
			PromoCode:        promoCode,
			Subtotal:         bd.Subtotal,
			DiscountAmount:   bd.Discount,
			Total:            bd.Total,
			Items:            make([]LineItem, len(lines)),
		}
		for i, l := range lines {
			o.Items[i] = LineItem{
				ProductID:    l.ProductID,
				NameSnapshot: byID[l.ProductID].Name,
				UnitPrice:    l.UnitPrice,
				Quantity:     l.Quantity,
				LineTotal:    l.Total(),
			}
		}

		if err := tx.InsertOrder(ctx, o); err != nil {
			return errors.Wrap(err, "insert order")
		}
		placed = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

// Quote validates the cart and promo code and returns the pricing
// breakdown without reserving anything. Backs POST /promos/validate.
func (s *Service) Quote(ctx context.Context, items []CartLine, promoCode string) (*Quote, error) {
	normalized, err := normalizeCart(items)
	if err != nil {
		return nil, err
	}

	var q Quote
	err = s.store.InTx(ctx, func(tx Tx) error {
		ids := make([]int64, len(normalized))
		for i, it := range normalized {
			ids[i] = it.ProductID
		}
		products, err := tx.Products(ctx, ids)
		if err != nil {
			return errors.Wrap(err, "read products")
		}
		byID := make(map[int64]Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}

		lines := make([]pricing.Line, len(normalized))
		for i, it := range normalized {
			p, ok := byID[it.ProductID]
			if !ok {
				return &ProductNotFoundError{ProductID: it.ProductID}
			}
			if !p.IsActive {
				return &ProductUnavailableError{ProductID: p.ID, Reason: ReasonInactive}
			}
			lines[i] = pricing.Line{ProductID: p.ID, UnitPrice: p.EffectivePrice, Quantity: it.Quantity}
		}

		subtotal := pricing.Subtotal(lines)
		decision, err := s.promos.Validate(ctx, promoCode, subtotal)
		if err != nil {
			return err
		}

		bd := pricing.Compute(lines, decision.Amount)
		q = Quote{Subtotal: bd.Subtotal, Discount: bd.Discount, Total: bd.Total, Promo: decision}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// Confirm transitions pending to confirmed. Confirming an already
// confirmed order is a no-op; confirming a cancelled one conflicts.
func (s *Service) Confirm(ctx context.Context, id string) (*Order, error) {
	return s.transition(ctx, id, StatusConfirmed)
}

// Cancel transitions pending or confirmed to cancelled and restores the
// reserved stock exactly. Cancelling twice is a no-op; promo usage is
// not refunded.
func (s *Service) Cancel(ctx context.Context, id string) (*Order, error) {
	return s.transition(ctx, id, StatusCancelled)
}

func (s *Service) transition(ctx context.Context, id string, to Status) (*Order, error) {
	var out *Order
	err := s.store.InTx(ctx, func(tx Tx) error {
		o, err := tx.OrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if o.Status == to {
			out = o
			return nil
		}

		switch {
		case to == StatusConfirmed && o.Status == StatusPending:
			// fallthrough to status update
		case to == StatusCancelled && (o.Status == StatusPending || o.Status == StatusConfirmed):
			// Touch product rows in ascending id order, same as placement,
			// so overlapping transactions cannot deadlock.
			items := make([]LineItem, len(o.Items))
			copy(items, o.Items)
			sort.Slice(items, func(i, j int) bool {
				return items[i].ProductID < items[j].ProductID
			})
			for _, it := range items {
				if err := tx.RestoreStock(ctx, it.ProductID, it.Quantity); err != nil {
					return errors.Wrapf(err, "restore stock for product %d", it.ProductID)
				}
			}
		default:
			return &StatusConflictError{From: o.Status, To: to}
		}

		if err := tx.SetStatus(ctx, id, to); err != nil {
			return errors.Wrap(err, "set status")
		}
		o.Status = to
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns an order with its line items.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.store.GetByID(ctx, id)
}

// List returns orders matching the filter, newest first.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Order, error) {
	return s.store.List(ctx, f)
}

// normalizeCart merges duplicate product lines (summing quantities) and
// rejects empty carts and non-positive quantities. Order of first
// occurrence is preserved so pricing output is deterministic.
func normalizeCart(items []CartLine) ([]CartLine, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	qtyByID := make(map[int64]int, len(items))
	firstSeen := make(map[int64]int, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: it.ProductID}
		}
		if _, ok := qtyByID[it.ProductID]; !ok {
			firstSeen[it.ProductID] = len(firstSeen)
		}
		qtyByID[it.ProductID] += it.Quantity
	}

	merged := make([]CartLine, 0, len(qtyByID))
	for id, qty := range qtyByID {
		merged = append(merged, CartLine{ProductID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool {
		return firstSeen[merged[i].ProductID] < firstSeen[merged[j].ProductID]
	})
	return merged, nil
}
