package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/schoolkit/api/internal/repositories"
)

// StockStore implements availability reads and the atomic per-order
// reservation against Postgres.
type StockStore struct {
	db *sql.DB
}

// NewStockStore constructs a StockStore over the shared connection pool.
func NewStockStore(db *sql.DB) *StockStore {
	return &StockStore{db: db}
}

// GetAvailable returns quantity minus reserved per product. Products without a
// stock row are absent from the result.
func (s *StockStore) GetAvailable(ctx context.Context, ids []int64) (map[int64]int, error) {
	result := make(map[int64]int, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT product_id, quantity - reserved
		 FROM stock
		 WHERE product_id = ANY($1)`,
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("stock: get available: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var available int
		if err := rows.Scan(&id, &available); err != nil {
			return nil, fmt.Errorf("stock: scan: %w", err)
		}
		result[id] = available
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stock: rows: %w", err)
	}
	return result, nil
}

// ReserveForOrder aggregates the order's persisted stock-bearing lines and
// reserves them in a single transaction. The conditional update with a
// RowsAffected check is what keeps two racing checkouts from both succeeding
// beyond availability.
func (s *StockStore) ReserveForOrder(ctx context.Context, orderID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("stock: begin reserve: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	rows, err := tx.QueryContext(ctx,
		`SELECT product_id, SUM(quantity)
		 FROM order_lines
		 WHERE order_id = $1 AND product_id IS NOT NULL
		 GROUP BY product_id
		 ORDER BY product_id`,
		orderID)
	if err != nil {
		return fmt.Errorf("stock: load order lines: %w", err)
	}

	type requirement struct {
		productID int64
		quantity  int
	}
	var requirements []requirement
	for rows.Next() {
		var req requirement
		if err := rows.Scan(&req.productID, &req.quantity); err != nil {
			rows.Close()
			return fmt.Errorf("stock: scan requirement: %w", err)
		}
		requirements = append(requirements, req)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("stock: requirement rows: %w", err)
	}
	rows.Close()

	for _, req := range requirements {
		result, err := tx.ExecContext(ctx,
			`UPDATE stock
			 SET reserved = reserved + $1, updated_at = NOW()
			 WHERE product_id = $2
			   AND quantity - reserved >= $1`,
			req.quantity, req.productID)
		if err != nil {
			return fmt.Errorf("stock: reserve product %d: %w", req.productID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("stock: rows affected: %w", err)
		}
		if affected == 0 {
			available := 0
			_ = tx.QueryRowContext(ctx,
				`SELECT quantity - reserved FROM stock WHERE product_id = $1`,
				req.productID).Scan(&available)
			return &repositories.StockShortfallError{
				ProductID: req.productID,
				Available: available,
				Required:  req.quantity,
			}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stock_reservations (order_id, product_id, quantity, reserved_at)
			 VALUES ($1, $2, $3, NOW())`,
			orderID, req.productID, req.quantity); err != nil {
			return fmt.Errorf("stock: record reservation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("stock: commit reserve: %w", err)
	}
	committed = true
	return nil
}

// ReleaseForOrder returns any live reservation held by the order back to
// availability and marks the reservation rows released.
func (s *StockStore) ReleaseForOrder(ctx context.Context, orderID int64, reason string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("stock: begin release: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	rows, err := tx.QueryContext(ctx,
		`SELECT product_id, quantity
		 FROM stock_reservations
		 WHERE order_id = $1 AND released_at IS NULL
		 FOR UPDATE`,
		orderID)
	if err != nil {
		return fmt.Errorf("stock: load reservations: %w", err)
	}

	held := make(map[int64]int)
	for rows.Next() {
		var productID int64
		var quantity int
		if err := rows.Scan(&productID, &quantity); err != nil {
			rows.Close()
			return fmt.Errorf("stock: scan reservation: %w", err)
		}
		held[productID] += quantity
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("stock: reservation rows: %w", err)
	}
	rows.Close()

	for productID, quantity := range held {
		if _, err := tx.ExecContext(ctx,
			`UPDATE stock
			 SET reserved = GREATEST(reserved - $1, 0), updated_at = NOW()
			 WHERE product_id = $2`,
			quantity, productID); err != nil {
			return fmt.Errorf("stock: release product %d: %w", productID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE stock_reservations
		 SET released_at = NOW(), release_reason = $2
		 WHERE order_id = $1 AND released_at IS NULL`,
		orderID, reason); err != nil {
		return fmt.Errorf("stock: mark released: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("stock: commit release: %w", err)
	}
	committed = true
	return nil
}
