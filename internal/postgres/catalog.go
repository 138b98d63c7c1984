package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unimerch/shop-api/internal/domain/catalog"
)

const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func isUniqueViolation(err error) bool {
	return isPgError(err, pgUniqueViolation)
}

var _ catalog.CategoryRepository = (*CategoryRepository)(nil)

// CategoryRepository implements catalog.CategoryRepository on PostgreSQL.
type CategoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository returns a CategoryRepository using the given pool.
func NewCategoryRepository(pool *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{pool: pool}
}

const listCategoriesSQL = `SELECT id, name, slug, sort_order, is_active
	FROM categories %s ORDER BY sort_order, name`

// List returns categories ordered by sort_order then name. Inactive
// categories are skipped unless includeInactive is set.
func (r *CategoryRepository) List(ctx context.Context, includeInactive bool) ([]catalog.Category, error) {
	where := "WHERE is_active"
	if includeInactive {
		where = ""
	}
	rows, err := r.pool.Query(ctx, fmt.Sprintf(listCategoriesSQL, where))
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	return pgx.CollectRows(rows, scanCategory)
}

// GetByID returns a single category.
func (r *CategoryRepository) GetByID(ctx context.Context, id int64) (*catalog.Category, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, slug, sort_order, is_active FROM categories WHERE id = $1`, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get category %d", id)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCategory)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrCategoryNotFound
		}
		return nil, errors.Wrapf(err, "get category %d", id)
	}
	return &c, nil
}

// Create inserts a category, assigning its ID.
func (r *CategoryRepository) Create(ctx context.Context, c *catalog.Category) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO categories (name, slug, sort_order, is_active)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		c.Name, c.Slug, c.SortOrder, c.IsActive,
	).Scan(&c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return catalog.ErrSlugTaken
		}
		return errors.Wrapf(err, "create category %q", c.Slug)
	}
	return nil
}

// Update replaces all mutable fields of a category.
func (r *CategoryRepository) Update(ctx context.Context, c *catalog.Category) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE categories SET name = $2, slug = $3, sort_order = $4, is_active = $5 WHERE id = $1`,
		c.ID, c.Name, c.Slug, c.SortOrder, c.IsActive,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return catalog.ErrSlugTaken
		}
		return errors.Wrapf(err, "update category %d", c.ID)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrCategoryNotFound
	}
	return nil
}

// Delete removes a category; its products keep existing uncategorized.
func (r *CategoryRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return errors.Wrapf(err, "delete category %d", id)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrCategoryNotFound
	}
	return nil
}

// UpsertBySlug inserts or updates a category keyed by slug, filling in
// the row ID. Used by the seed tool so re-seeding is idempotent.
func (r *CategoryRepository) UpsertBySlug(ctx context.Context, c *catalog.Category) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO categories (name, slug, sort_order, is_active)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (slug) DO UPDATE SET
		     name = EXCLUDED.name,
		     sort_order = EXCLUDED.sort_order,
		     is_active = EXCLUDED.is_active
		 RETURNING id`,
		c.Name, c.Slug, c.SortOrder, c.IsActive,
	).Scan(&c.ID)
	if err != nil {
		return errors.Wrapf(err, "upsert category %q", c.Slug)
	}
	return nil
}

func scanCategory(row pgx.CollectableRow) (catalog.Category, error) {
	var c catalog.Category
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.SortOrder, &c.IsActive)
	return c, err
}

var _ catalog.ProductRepository = (*ProductRepository)(nil)

// ProductRepository implements catalog.ProductRepository on PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository using the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

const productColumns = `id, name, slug, description, price, discount_price,
	stock_quantity, is_active, category_id, created_at, updated_at`

// sortColumns maps ProductFilter.Sort keys to ORDER BY expressions.
var sortColumns = map[string]string{
	"price":      "price",
	"name":       "name",
	"created_at": "created_at",
}

// List returns a filtered, paginated page of products plus the total
// match count.
func (r *ProductRepository) List(ctx context.Context, f catalog.ProductFilter) (*catalog.ProductPage, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !f.IncludeInactive {
		conds = append(conds, "is_active")
	}
	if f.CategoryID != nil {
		conds = append(conds, "category_id = "+arg(*f.CategoryID))
	}
	if f.Search != "" {
		p := arg("%" + f.Search + "%")
		conds = append(conds, fmt.Sprintf("(name ILIKE %s OR description ILIKE %s)", p, p))
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT count(*) FROM products %s", where), args...,
	).Scan(&total); err != nil {
		return nil, errors.Wrap(err, "count products")
	}

	orderBy := orderClause(f.Sort)
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf("SELECT %s FROM products %s ORDER BY %s LIMIT %s OFFSET %s",
		productColumns, where, orderBy, arg(limit), arg(max(f.Offset, 0)))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, errors.Wrap(err, "scan products")
	}
	return &catalog.ProductPage{Products: products, Total: total}, nil
}

// orderClause translates a sort key ("price", "-created_at", ...) into
// a safe ORDER BY expression. Unknown keys fall back to newest-first.
func orderClause(sort string) string {
	dir := "ASC"
	if strings.HasPrefix(sort, "-") {
		dir = "DESC"
		sort = sort[1:]
	}
	col, ok := sortColumns[sort]
	if !ok {
		return "created_at DESC"
	}
	return col + " " + dir
}

// GetByID returns a single product.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*catalog.Product, error) {
	rows, err := r.pool.Query(ctx,
		fmt.Sprintf("SELECT %s FROM products WHERE id = $1", productColumns), id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %d", id)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, errors.Wrapf(err, "get product %d", id)
	}
	return &p, nil
}

// Create inserts a product, assigning its ID and timestamps.
func (r *ProductRepository) Create(ctx context.Context, p *catalog.Product) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO products (name, slug, description, price, discount_price, stock_quantity, is_active, category_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		p.Name, p.Slug, p.Description, p.Price, p.DiscountPrice, p.StockQuantity, p.IsActive, p.CategoryID,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return catalog.ErrSlugTaken
		}
		return errors.Wrapf(err, "create product %q", p.Slug)
	}
	return nil
}

// Update replaces all mutable fields of a product. Stock changes made
// here are admin corrections; order placement adjusts stock through its
// own transaction.
func (r *ProductRepository) Update(ctx context.Context, p *catalog.Product) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE products
		 SET name = $2, slug = $3, description = $4, price = $5, discount_price = $6,
		     stock_quantity = $7, is_active = $8, category_id = $9, updated_at = now()
		 WHERE id = $1
		 RETURNING updated_at`,
		p.ID, p.Name, p.Slug, p.Description, p.Price, p.DiscountPrice,
		p.StockQuantity, p.IsActive, p.CategoryID,
	).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.ErrProductNotFound
		}
		if isUniqueViolation(err) {
			return catalog.ErrSlugTaken
		}
		return errors.Wrapf(err, "update product %d", p.ID)
	}
	return nil
}

// Delete removes a product. Products referenced by order line items are
// protected by the foreign key and cannot be deleted.
func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if isPgError(err, pgForeignKeyViolation) {
			return catalog.ErrProductInUse
		}
		return errors.Wrapf(err, "delete product %d", id)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

// UpsertBySlug inserts or updates a product keyed by slug. Stock is
// only written on first insert so re-seeding never clobbers live
// inventory.
func (r *ProductRepository) UpsertBySlug(ctx context.Context, p *catalog.Product) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO products (name, slug, description, price, discount_price, stock_quantity, is_active, category_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (slug) DO UPDATE SET
		     name = EXCLUDED.name,
		     description = EXCLUDED.description,
		     price = EXCLUDED.price,
		     discount_price = EXCLUDED.discount_price,
		     is_active = EXCLUDED.is_active,
		     category_id = EXCLUDED.category_id,
		     updated_at = now()
		 RETURNING id, created_at, updated_at`,
		p.Name, p.Slug, p.Description, p.Price, p.DiscountPrice, p.StockQuantity, p.IsActive, p.CategoryID,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return errors.Wrapf(err, "upsert product %q", p.Slug)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Slug, &p.Description, &p.Price, &p.DiscountPrice,
		&p.StockQuantity, &p.IsActive, &p.CategoryID, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}
