package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/unimerch/shop-api/internal/domain/auth"
)

var _ auth.Repository = (*APIKeyRepository)(nil)

// APIKeyRepository implements auth.Repository on PostgreSQL.
type APIKeyRepository struct {
	pool *pgxpool.Pool
}

// NewAPIKeyRepository returns an APIKeyRepository using the given pool.
func NewAPIKeyRepository(pool *pgxpool.Pool) *APIKeyRepository {
	return &APIKeyRepository{pool: pool}
}

// FindByHash returns the active key matching the given hash.
func (r *APIKeyRepository) FindByHash(ctx context.Context, hash string) (*auth.Key, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, key_hash, name, scopes FROM api_keys WHERE key_hash = $1 AND active`, hash)
	if err != nil {
		return nil, errors.Wrap(err, "find api key")
	}
	k, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (auth.Key, error) {
		var k auth.Key
		err := row.Scan(&k.ID, &k.KeyHash, &k.Name, &k.Scopes)
		return k, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, errors.Wrap(err, "find api key")
	}
	return &k, nil
}

// Insert stores a new key. Used by the seed tool; the caller assigns
// the ID.
func (r *APIKeyRepository) Insert(ctx context.Context, k *auth.Key) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO api_keys (id, key_hash, name, scopes) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key_hash) DO UPDATE SET name = EXCLUDED.name, scopes = EXCLUDED.scopes`,
		k.ID, k.KeyHash, k.Name, k.Scopes,
	)
	if err != nil {
		return errors.Wrapf(err, "insert api key %q", k.Name)
	}
	return nil
}
