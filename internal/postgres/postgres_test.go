//go:build integration

package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/unimerch/shop-api/internal/domain/catalog"
	"github.com/unimerch/shop-api/internal/domain/order"
	"github.com/unimerch/shop-api/internal/domain/promo"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "merch",
				"POSTGRES_PASSWORD": "merch",
				"POSTGRES_DB":       "merch",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	url := fmt.Sprintf("postgres://merch:merch@%s:%s/merch?sslmode=disable", host, port.Port())
	pool, err := NewPool(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func seedProduct(t *testing.T, pool *pgxpool.Pool, name string, price int64, stock int) *catalog.Product {
	t.Helper()
	p := &catalog.Product{
		Name:          name,
		Slug:          name,
		Price:         price,
		StockQuantity: stock,
		IsActive:      true,
	}
	require.NoError(t, NewProductRepository(pool).Create(context.Background(), p))
	return p
}

func TestCatalogRoundtrip(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	categories := NewCategoryRepository(pool)
	products := NewProductRepository(pool)

	cat := &catalog.Category{Name: "Hoodies", Slug: "hoodies", SortOrder: 1, IsActive: true}
	require.NoError(t, categories.Create(ctx, cat))
	require.NotZero(t, cat.ID)

	dup := &catalog.Category{Name: "Hoodies 2", Slug: "hoodies"}
	require.ErrorIs(t, categories.Create(ctx, dup), catalog.ErrSlugTaken)

	discount := int64(90_000)
	p := &catalog.Product{
		Name:          "Campus Hoodie",
		Slug:          "campus-hoodie",
		Description:   "Heavyweight cotton",
		Price:         120_000,
		DiscountPrice: &discount,
		StockQuantity: 10,
		IsActive:      true,
		CategoryID:    &cat.ID,
	}
	require.NoError(t, products.Create(ctx, p))

	got, err := products.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, int64(90_000), got.EffectivePrice())
	require.Equal(t, cat.ID, *got.CategoryID)

	inactive := seedProduct(t, pool, "retired-cap", 30_000, 5)
	inactive.IsActive = false
	require.NoError(t, products.Update(ctx, inactive))

	page, err := products.List(ctx, catalog.ProductFilter{CategoryID: &cat.ID})
	require.NoError(t, err)
	require.EqualValues(t, 1, page.Total)
	require.Equal(t, "campus-hoodie", page.Products[0].Slug)

	page, err = products.List(ctx, catalog.ProductFilter{IncludeInactive: true})
	require.NoError(t, err)
	require.EqualValues(t, 2, page.Total)

	page, err = products.List(ctx, catalog.ProductFilter{Search: "hoodie"})
	require.NoError(t, err)
	require.Len(t, page.Products, 1)

	// Category deletion leaves the product uncategorized.
	require.NoError(t, categories.Delete(ctx, cat.ID))
	got, err = products.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.Nil(t, got.CategoryID)
}

func TestPromoLookupIsCaseInsensitive(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	promos := NewPromoRepository(pool)

	maxUses := 5
	require.NoError(t, promos.Upsert(ctx, &promo.Code{
		Code:         "WELCOME10",
		DiscountType: promo.DiscountPercentage,
		Value:        decimal.NewFromInt(10),
		MaxUses:      &maxUses,
		IsActive:     true,
	}))

	got, err := promos.FindByCode(ctx, "welcome10")
	require.NoError(t, err)
	require.Equal(t, "WELCOME10", got.Code)
	require.True(t, got.Value.Equal(decimal.NewFromInt(10)))

	_, err = promos.FindByCode(ctx, "NOPE")
	require.ErrorIs(t, err, promo.ErrNotFound)
}

func TestOrderPlacementAndCancel(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	p := seedProduct(t, pool, "tote-bag", 50_000, 8)
	promos := NewPromoRepository(pool)
	require.NoError(t, promos.Upsert(ctx, &promo.Code{
		Code:         "FLAT20K",
		DiscountType: promo.DiscountFixed,
		Value:        decimal.NewFromInt(20_000),
		IsActive:     true,
	}))

	store := NewOrderStore(pool)
	svc := order.NewService(store, promo.NewValidator(promos))

	placed, err := svc.Place(ctx, order.PlaceRequest{
		Items:         []order.CartLine{{ProductID: p.ID, Quantity: 3}},
		PromoCode:     "flat20k",
		CustomerName:  "Aziza",
		Phone:         "+998901234567",
		PaymentMethod: order.PaymentCash,
	})
	require.NoError(t, err)
	require.Equal(t, order.StatusPending, placed.Status)
	require.EqualValues(t, 150_000, placed.Subtotal)
	require.EqualValues(t, 20_000, placed.DiscountAmount)
	require.EqualValues(t, 130_000, placed.Total)

	got, err := products(pool).GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 5, got.StockQuantity)

	pc, err := promos.FindByCode(ctx, "FLAT20K")
	require.NoError(t, err)
	require.Equal(t, 1, pc.UsedCount)

	confirmed, err := svc.Confirm(ctx, placed.ID)
	require.NoError(t, err)
	require.Equal(t, order.StatusConfirmed, confirmed.Status)

	cancelled, err := svc.Cancel(ctx, placed.ID)
	require.NoError(t, err)
	require.Equal(t, order.StatusCancelled, cancelled.Status)

	got, err = products(pool).GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 8, got.StockQuantity)

	// Promo usage stays consumed after cancellation.
	pc, err = promos.FindByCode(ctx, "FLAT20K")
	require.NoError(t, err)
	require.Equal(t, 1, pc.UsedCount)

	// Cancelled orders cannot be confirmed.
	_, err = svc.Confirm(ctx, placed.ID)
	var conflict *order.StatusConflictError
	require.ErrorAs(t, err, &conflict)
}

func products(pool *pgxpool.Pool) *ProductRepository {
	return NewProductRepository(pool)
}

// Two buyers race for the last unit; exactly one order goes through and
// stock never goes negative.
func TestConcurrentStockReservation(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	p := seedProduct(t, pool, "limited-pin", 15_000, 1)
	store := NewOrderStore(pool)
	svc := order.NewService(store, nil)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Place(ctx, order.PlaceRequest{
				Items:         []order.CartLine{{ProductID: p.ID, Quantity: 1}},
				CustomerName:  fmt.Sprintf("buyer-%d", i),
				Phone:         "+998900000000",
				PaymentMethod: order.PaymentCash,
			})
		}(i)
	}
	wg.Wait()

	var failed int
	for _, err := range errs {
		if err != nil {
			failed++
			var unavailable *order.ProductUnavailableError
			require.ErrorAs(t, err, &unavailable)
		}
	}
	require.Equal(t, 1, failed)

	got, err := products(pool).GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 0, got.StockQuantity)
}
