package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/meridian/internal/domain"
)

// CatalogStore implements catalog reads and stock writes over PostgreSQL.
// Structural data (variations, grouped components, bundle groups) lives in
// JSONB columns; scalar pricing and stock fields are plain columns so the
// stock decrement can be a single conditional UPDATE.
type CatalogStore struct {
	pool *pgxpool.Pool
}

var _ domain.CatalogReader = (*CatalogStore)(nil)
var _ domain.StockWriter = (*CatalogStore)(nil)

// NewCatalogStore creates a PostgreSQL-backed catalog store.
func NewCatalogStore(pool *pgxpool.Pool) *CatalogStore {
	return &CatalogStore{pool: pool}
}

const catalogColumns = `id, name, status, source, price, sale_price, stock, format,
	weight_grams, variations, grouped_components, bundle_groups,
	bundle_pricing_mode, bundle_discount_percent`

// GetItem returns a single catalog snapshot.
func (s *CatalogStore) GetItem(ctx context.Context, id string) (*domain.CatalogItem, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+catalogColumns+` FROM catalog_items WHERE id = $1`, id)

	item, err := scanCatalogItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("catalog.get_item", "catalog item", id)
		}
		return nil, domain.Internal(err, "catalog.get_item", "failed to load catalog item")
	}
	return item, nil
}

// GetItems returns snapshots for the given ids, keyed by id. Missing ids are
// simply absent from the map.
func (s *CatalogStore) GetItems(ctx context.Context, ids []string) (map[string]*domain.CatalogItem, error) {
	if len(ids) == 0 {
		return map[string]*domain.CatalogItem{}, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+catalogColumns+` FROM catalog_items WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, domain.Internal(err, "catalog.get_items", "failed to query catalog items")
	}
	defer rows.Close()

	items := make(map[string]*domain.CatalogItem, len(ids))
	for rows.Next() {
		item, err := scanCatalogItem(rows)
		if err != nil {
			return nil, domain.Internal(err, "catalog.get_items", "failed to scan catalog item")
		}
		items[item.ID] = item
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "catalog.get_items", "failed to read catalog items")
	}
	return items, nil
}

// DecrementStock atomically performs stock -= qty iff stock >= qty.
func (s *CatalogStore) DecrementStock(ctx context.Context, productID string, qty int) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE catalog_items SET stock = stock - $2, updated_at = now()
		 WHERE id = $1 AND stock >= $2`, productID, qty)
	if err != nil {
		return false, domain.Internal(err, "catalog.decrement_stock", "failed to decrement stock")
	}
	return tag.RowsAffected() == 1, nil
}

// IncrementSales bumps the sales counter.
func (s *CatalogStore) IncrementSales(ctx context.Context, productID string, qty int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE catalog_items SET sales_count = sales_count + $2, updated_at = now()
		 WHERE id = $1`, productID, qty)
	if err != nil {
		return domain.Internal(err, "catalog.increment_sales", "failed to increment sales")
	}
	return nil
}

// rowScanner covers both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCatalogItem(row rowScanner) (*domain.CatalogItem, error) {
	var (
		item              domain.CatalogItem
		variations        []byte
		groupedComponents []byte
		bundleGroups      []byte
		pricingMode       string
	)

	err := row.Scan(
		&item.ID, &item.Name, &item.Status, &item.Source,
		&item.Price, &item.SalePrice, &item.Stock, &item.Format,
		&item.WeightGrams, &variations, &groupedComponents, &bundleGroups,
		&pricingMode, &item.BundleDiscountPercent,
	)
	if err != nil {
		return nil, err
	}

	item.BundlePricingMode = domain.BundlePricingMode(pricingMode)

	if len(variations) > 0 {
		if err := json.Unmarshal(variations, &item.Variations); err != nil {
			return nil, fmt.Errorf("decode variations for %s: %w", item.ID, err)
		}
	}
	if len(groupedComponents) > 0 {
		if err := json.Unmarshal(groupedComponents, &item.GroupedComponents); err != nil {
			return nil, fmt.Errorf("decode grouped components for %s: %w", item.ID, err)
		}
	}
	if len(bundleGroups) > 0 {
		if err := json.Unmarshal(bundleGroups, &item.BundleGroups); err != nil {
			return nil, fmt.Errorf("decode bundle groups for %s: %w", item.ID, err)
		}
	}

	return &item, nil
}
