// Command promo-ingest loads bulk promo-code drops into the database.
// Marketing exports arrive as several large gzipped files of one code
// per line; a code is accepted only when it appears in at least two
// drops. The cross-check uses per-file bloom filters so the full code
// sets never have to fit in memory at once.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/unimerch/shop-api/internal/domain/promo"
	"github.com/unimerch/shop-api/internal/postgres"
)

const (
	bloomCapacity = 50_000_000
	bloomFPR      = 0.001
	progressEvery = 5_000_000
	minCodeLen    = 6
	maxCodeLen    = 12
)

// Accepted codes get a default 10% rule; specific campaigns are
// adjusted afterwards through the admin API.
var defaultPercent = decimal.NewFromInt(10)

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing promo drop .gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("promo ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("promo ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.gz"))
	if err != nil {
		return errors.Wrap(err, "list drop files")
	}
	if len(files) < 2 {
		return errors.Errorf("need at least 2 drop files in %s, found %d", dataDir, len(files))
	}

	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: cross-checking codes across drops")

	codes, err := findAcceptedCodes(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "find accepted codes")
	}

	slog.Info("accepted codes", slog.Int("count", len(codes)))
	if len(codes) == 0 {
		slog.Info("nothing to insert")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	return writePromos(ctx, postgres.NewPromoRepository(pool), codes)
}

// buildBloomFilters creates one bloom filter per drop, concurrently.
func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
			var count uint64

			if err := streamGzFile(ctx, path, func(code string) {
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.Int("file", i+1), slog.Uint64("codes", count))
				}
			}); err != nil {
				return errors.Wrapf(err, "build filter for %s", path)
			}

			slog.Info("pass 1 complete", slog.Int("file", i+1), slog.Uint64("total_codes", count))
			filters[i] = filter
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// findAcceptedCodes re-streams each drop and tests codes against the
// OTHER drops' filters. A code is accepted when it shows up in two or
// more drops.
func findAcceptedCodes(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]string, error) {
	results := make([]map[string]uint, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			candidates := make(map[string]uint)
			fileBit := uint(1) << uint(i)

			if err := streamGzFile(ctx, path, func(code string) {
				for j, f := range filters {
					if j == i {
						continue
					}
					if f.TestString(code) {
						candidates[code] |= fileBit
						break
					}
				}
			}); err != nil {
				return errors.Wrapf(err, "scan %s for candidates", path)
			}

			slog.Info("pass 2 complete", slog.Int("file", i+1), slog.Int("candidates", len(candidates)))
			results[i] = candidates
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, r := range results {
		for code, mask := range r {
			merged[code] |= mask
		}
	}

	var accepted []string
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			accepted = append(accepted, code)
		}
	}
	return accepted, nil
}

// streamGzFile reads a gzipped drop line by line, normalizing codes to
// uppercase and skipping lines outside the accepted length range.
func streamGzFile(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		code := strings.ToUpper(strings.TrimSpace(scanner.Text()))
		if len(code) < minCodeLen || len(code) > maxCodeLen {
			continue
		}
		fn(code)
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

// writePromos upserts accepted codes with the default percentage rule.
func writePromos(ctx context.Context, repo *postgres.PromoRepository, codes []string) error {
	slog.Info("writing promo codes", slog.Int("count", len(codes)))

	for i, code := range codes {
		pc := promo.Code{
			Code:         code,
			DiscountType: promo.DiscountPercentage,
			Value:        defaultPercent,
			IsActive:     true,
		}
		if err := repo.Upsert(ctx, &pc); err != nil {
			return errors.Wrapf(err, "upsert promo %s", code)
		}

		if (i+1)%1000 == 0 || i+1 == len(codes) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(codes)))
		}
	}
	return nil
}
