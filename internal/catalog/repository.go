package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

// Repository resolves products against the three catalog tables.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var categoryTables = []struct {
	table    string
	category Category
}{
	{"medicines", CategoryMedicine},
	{"supplements", CategorySupplement},
	{"equipment", CategoryEquipment},
}

// Resolve queries the three category tables concurrently and returns the
// single match. An ID present in none of them yields ErrNotFound.
func (r *Repository) Resolve(ctx context.Context, productID int64) (ProductInfo, error) {
	results := make([]ProductInfo, len(categoryTables))
	found := make([]bool, len(categoryTables))

	g, ctx := errgroup.WithContext(ctx)
	for i, ct := range categoryTables {
		i, ct := i, ct
		g.Go(func() error {
			var info ProductInfo
			err := r.pool.QueryRow(ctx,
				`SELECT id, name, manufacturer, code FROM `+ct.table+` WHERE id=$1`,
				productID,
			).Scan(&info.ID, &info.Name, &info.Manufacturer, &info.Code)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil
				}
				return err
			}
			info.Category = ct.category
			results[i] = info
			found[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ProductInfo{}, err
	}
	for i := range results {
		if found[i] {
			return results[i], nil
		}
	}
	return ProductInfo{}, ErrNotFound
}
