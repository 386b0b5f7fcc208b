package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/schoolkit/api/internal/domain"
)

// CatalogStore reads product and pack snapshots from Postgres.
type CatalogStore struct {
	db *sql.DB
}

// NewCatalogStore constructs a CatalogStore over the shared connection pool.
func NewCatalogStore(db *sql.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

// GetProducts returns the requested products keyed by id.
func (s *CatalogStore) GetProducts(ctx context.Context, ids []int64) (map[int64]domain.Product, error) {
	result := make(map[int64]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, COALESCE(sale_code, ''), visible
		 FROM products
		 WHERE id = ANY($1)`,
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("catalog: get products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Title, &p.SaleCode, &p.Visible); err != nil {
			return nil, fmt.Errorf("catalog: scan product: %w", err)
		}
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: rows: %w", err)
	}
	return result, nil
}

// GetPacks returns the requested packs with their components keyed by id.
func (s *CatalogStore) GetPacks(ctx context.Context, ids []int64) (map[int64]domain.Pack, error) {
	result := make(map[int64]domain.Pack, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, COALESCE(sale_code, ''), visible
		 FROM packs
		 WHERE id = ANY($1)`,
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("catalog: get packs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Pack
		if err := rows.Scan(&p.ID, &p.Title, &p.SaleCode, &p.Visible); err != nil {
			return nil, fmt.Errorf("catalog: scan pack: %w", err)
		}
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: rows: %w", err)
	}

	compRows, err := s.db.QueryContext(ctx,
		`SELECT pack_id, product_id, quantity
		 FROM pack_components
		 WHERE pack_id = ANY($1)
		 ORDER BY pack_id, product_id`,
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("catalog: get pack components: %w", err)
	}
	defer compRows.Close()

	for compRows.Next() {
		var packID int64
		var comp domain.PackComponent
		if err := compRows.Scan(&packID, &comp.ProductID, &comp.Quantity); err != nil {
			return nil, fmt.Errorf("catalog: scan component: %w", err)
		}
		pack, ok := result[packID]
		if !ok {
			continue
		}
		pack.Components = append(pack.Components, comp)
		result[packID] = pack
	}
	if err := compRows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: component rows: %w", err)
	}
	return result, nil
}
