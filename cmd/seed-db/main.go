// Command seed-db loads the catalog seed file and the default admin API
// key into the database. Safe to re-run: everything is upserted and
// stock counts are never overwritten.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/unimerch/shop-api/internal/api"
	"github.com/unimerch/shop-api/internal/domain/auth"
	"github.com/unimerch/shop-api/internal/domain/catalog"
	"github.com/unimerch/shop-api/internal/domain/promo"
	"github.com/unimerch/shop-api/internal/postgres"
)

type seedFile struct {
	Categories []categoryJSON `json:"categories"`
	Products   []productJSON  `json:"products"`
	Promos     []promoJSON    `json:"promos"`
}

type categoryJSON struct {
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	SortOrder int    `json:"sort_order"`
}

type productJSON struct {
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	Description   string `json:"description"`
	Price         int64  `json:"price"`
	DiscountPrice *int64 `json:"discount_price"`
	StockQuantity int    `json:"stock_quantity"`
	CategorySlug  string `json:"category_slug"`
}

type promoJSON struct {
	Code         string          `json:"code"`
	DiscountType string          `json:"discount_type"`
	Value        decimal.Decimal `json:"value"`
	ValidFrom    *time.Time      `json:"valid_from"`
	ValidUntil   *time.Time      `json:"valid_until"`
	MaxUses      *int            `json:"max_uses"`
}

func main() {
	var (
		databaseURL  string
		seedPath     string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/catalog.json", "path to catalog seed JSON")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or MERCH_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or MERCH_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("MERCH_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or MERCH_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("MERCH_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedPath, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	data, err := os.ReadFile(seedPath)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse seed file")
	}

	categoryIDs, err := seedCategories(ctx, postgres.NewCategoryRepository(pool), seed.Categories)
	if err != nil {
		return errors.Wrap(err, "seed categories")
	}

	if err := seedProducts(ctx, postgres.NewProductRepository(pool), seed.Products, categoryIDs); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedPromos(ctx, postgres.NewPromoRepository(pool), seed.Promos); err != nil {
		return errors.Wrap(err, "seed promos")
	}

	if err := seedAPIKey(ctx, postgres.NewAPIKeyRepository(pool), apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedCategories(ctx context.Context, repo *postgres.CategoryRepository, categories []categoryJSON) (map[string]int64, error) {
	slog.Info("upserting categories", slog.Int("count", len(categories)))

	ids := make(map[string]int64, len(categories))
	for _, cj := range categories {
		c := catalog.Category{
			Name:      cj.Name,
			Slug:      cj.Slug,
			SortOrder: cj.SortOrder,
			IsActive:  true,
		}
		if err := repo.UpsertBySlug(ctx, &c); err != nil {
			return nil, err
		}
		ids[c.Slug] = c.ID
		slog.Info("upserted category", slog.String("slug", c.Slug), slog.Int64("id", c.ID))
	}
	return ids, nil
}

func seedProducts(ctx context.Context, repo *postgres.ProductRepository, products []productJSON, categoryIDs map[string]int64) error {
	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, pj := range products {
		p := catalog.Product{
			Name:          pj.Name,
			Slug:          pj.Slug,
			Description:   pj.Description,
			Price:         pj.Price,
			DiscountPrice: pj.DiscountPrice,
			StockQuantity: pj.StockQuantity,
			IsActive:      true,
		}
		if id, ok := categoryIDs[pj.CategorySlug]; ok {
			p.CategoryID = &id
		} else if pj.CategorySlug != "" {
			return errors.Errorf("product %q references unknown category %q", pj.Slug, pj.CategorySlug)
		}
		if err := repo.UpsertBySlug(ctx, &p); err != nil {
			return err
		}
		slog.Info("upserted product", slog.String("slug", p.Slug), slog.Int64("id", p.ID))
	}
	return nil
}

func seedPromos(ctx context.Context, repo *postgres.PromoRepository, promos []promoJSON) error {
	slog.Info("upserting promo codes", slog.Int("count", len(promos)))

	for _, pj := range promos {
		pc := promo.Code{
			Code:         pj.Code,
			DiscountType: promo.DiscountType(pj.DiscountType),
			Value:        pj.Value,
			ValidFrom:    pj.ValidFrom,
			ValidUntil:   pj.ValidUntil,
			MaxUses:      pj.MaxUses,
			IsActive:     true,
		}
		if err := repo.Upsert(ctx, &pc); err != nil {
			return err
		}
		slog.Info("upserted promo", slog.String("code", pj.Code))
	}
	return nil
}

func seedAPIKey(ctx context.Context, repo *postgres.APIKeyRepository, apiKey, pepper string) error {
	slog.Info("seeding default API key")

	k := auth.Key{
		ID:      "default",
		KeyHash: api.HashKey([]byte(pepper), apiKey),
		Name:    "Default admin key",
		Scopes:  []string{"admin"},
	}
	if err := repo.Insert(ctx, &k); err != nil {
		return err
	}

	slog.Info("upserted API key", slog.String("id", k.ID), slog.String("name", k.Name))
	return nil
}
