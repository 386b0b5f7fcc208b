package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/schoolkit/api/internal/repositories"
)

// PriceStore resolves unit list prices from a price list in Postgres.
type PriceStore struct {
	db *sql.DB
}

// NewPriceStore constructs a PriceStore over the shared connection pool.
func NewPriceStore(db *sql.DB) *PriceStore {
	return &PriceStore{db: db}
}

// GetUnitPrices loads the unit prices for the given products and packs from
// one price list. Items without a price are absent from the result maps.
func (s *PriceStore) GetUnitPrices(ctx context.Context, priceListID int64, productIDs, packIDs []int64) (repositories.PriceSet, error) {
	set := repositories.PriceSet{
		PriceListID: priceListID,
		Products:    make(map[int64]decimal.Decimal, len(productIDs)),
		Packs:       make(map[int64]decimal.Decimal, len(packIDs)),
	}

	load := func(kind string, ids []int64, into map[int64]decimal.Decimal) error {
		if len(ids) == 0 {
			return nil
		}
		rows, err := s.db.QueryContext(ctx,
			`SELECT item_id, unit_price
			 FROM prices
			 WHERE price_list_id = $1 AND item_kind = $2 AND item_id = ANY($3)`,
			priceListID, kind, pq.Array(ids))
		if err != nil {
			return fmt.Errorf("prices: query %s: %w", kind, err)
		}
		defer rows.Close()

		for rows.Next() {
			var id int64
			var price decimal.Decimal
			if err := rows.Scan(&id, &price); err != nil {
				return fmt.Errorf("prices: scan %s: %w", kind, err)
			}
			into[id] = price
		}
		return rows.Err()
	}

	if err := load("PRODUCT", productIDs, set.Products); err != nil {
		return repositories.PriceSet{}, err
	}
	if err := load("PACK", packIDs, set.Packs); err != nil {
		return repositories.PriceSet{}, err
	}
	return set, nil
}
