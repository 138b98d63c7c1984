// Package catalog holds the category and product entities plus their
// repository contracts. Persistence lives in internal/postgres; the
// entities here are plain data, detached from storage technology.
package catalog

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrCategoryNotFound is returned when a requested category does not exist.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrProductNotFound is returned when a requested product does not exist.
	ErrProductNotFound = errors.New("product not found")
	// ErrSlugTaken is returned when creating or updating an entity with a
	// slug that already belongs to another row.
	ErrSlugTaken = errors.New("slug already in use")
	// ErrProductInUse is returned when deleting a product that order
	// line items still reference.
	ErrProductInUse = errors.New("product is referenced by existing orders")
)

// Category groups products. Single level, no nesting.
type Category struct {
	ID        int64
	Name      string
	Slug      string
	SortOrder int
	IsActive  bool
}

// Product is a catalog item. Price and DiscountPrice are minor currency
// units; DiscountPrice, when set, must be strictly lower than Price.
type Product struct {
	ID            int64
	Name          string
	Slug          string
	Description   string
	Price         int64
	DiscountPrice *int64
	StockQuantity int
	IsActive      bool
	CategoryID    *int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EffectivePrice is the price a buyer actually pays: the discount price
// when one is set, the base price otherwise.
func (p Product) EffectivePrice() int64 {
	if p.DiscountPrice != nil {
		return *p.DiscountPrice
	}
	return p.Price
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	CategoryID      *int64
	IncludeInactive bool
	// Search matches name and description, case-insensitive substring.
	Search string
	// Sort is one of price, created_at, name; a leading '-' reverses.
	// Empty means -created_at.
	Sort   string
	Limit  int
	Offset int
}

// ProductPage is one page of a filtered product listing.
type ProductPage struct {
	Products []Product
	Total    int64
}

// CategoryRepository defines persistence for categories.
type CategoryRepository interface {
	List(ctx context.Context, includeInactive bool) ([]Category, error)
	GetByID(ctx context.Context, id int64) (*Category, error)
	Create(ctx context.Context, c *Category) error
	Update(ctx context.Context, c *Category) error
	Delete(ctx context.Context, id int64) error
}

// ProductRepository defines persistence for products. Order placement
// reads product state through its own transaction, not this repository.
type ProductRepository interface {
	List(ctx context.Context, f ProductFilter) (*ProductPage, error)
	GetByID(ctx context.Context, id int64) (*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id int64) error
}
