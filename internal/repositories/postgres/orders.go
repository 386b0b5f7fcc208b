package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/schoolkit/api/internal/domain"
	"github.com/schoolkit/api/internal/repositories"
)

const uniqueViolationCode = pq.ErrorCode("23505")

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode
}

// OrderStore persists order headers, line items and payment intents.
type OrderStore struct {
	db *sql.DB
}

// NewOrderStore constructs an OrderStore over the shared connection pool.
func NewOrderStore(db *sql.DB) *OrderStore {
	return &OrderStore{db: db}
}

// InsertOrder stores the order header and returns it with the allocated id.
func (s *OrderStore) InsertOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO orders (reference, buyer_id, currency, subtotal, discount_amount, total,
		                     discount_code, status, fulfillment_status,
		                     shipping_line1, shipping_reference, shipping_district, shipping_notes,
		                     created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11, $12, $13, NOW())
		 RETURNING id, created_at`,
		order.Reference, order.BuyerID, order.Currency,
		order.Subtotal, order.DiscountAmount, order.Total,
		order.DiscountCode, order.Status, order.FulfillmentStatus,
		order.ShippingAddress.Line1, order.ShippingAddress.Reference,
		order.ShippingAddress.District, order.ShippingAddress.Notes,
	).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Order{}, fmt.Errorf("%w: order reference %s", repositories.ErrConflict, order.Reference)
		}
		return domain.Order{}, fmt.Errorf("orders: insert: %w", err)
	}
	return order, nil
}

// InsertReservationLines stores the stock-bearing lines (direct products and
// pack components). Header lines never pass through here: a header has no base
// product and must stay invisible to the stock engine.
func (s *OrderStore) InsertReservationLines(ctx context.Context, orderID int64, lines []domain.ReservationLine) error {
	for _, line := range lines {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO order_lines (order_id, kind, product_id, title, sale_code, quantity,
			                          unit_list_price, unit_final_price, line_total)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $7, $7 * $6)`,
			orderID, line.Kind, line.ProductID, line.Title, line.SaleCode,
			line.Quantity, line.UnitPrice); err != nil {
			return fmt.Errorf("orders: insert reservation line: %w", err)
		}
	}
	return nil
}

// InsertHeaderLines stores pack header lines with a null base product. These
// are written after reservation so the stock-critical path never sees them.
func (s *OrderStore) InsertHeaderLines(ctx context.Context, orderID int64, lines []domain.PricedLine) error {
	for _, line := range lines {
		if line.Kind != domain.LinePackHeader {
			continue
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO order_lines (order_id, kind, product_id, title, sale_code, quantity,
			                          unit_list_price, unit_final_price, line_total)
			 VALUES ($1, $2, NULL, $3, $4, $5, $6, $7, $8)`,
			orderID, line.Kind, line.Title, line.SaleCode, line.Quantity,
			line.UnitListPrice, line.UnitFinalPrice, line.LineTotal); err != nil {
			return fmt.Errorf("orders: insert header line: %w", err)
		}
	}
	return nil
}

// DeleteOrder removes the order and every row referencing it in a single
// transaction. Compensation runs after reservation rows and possibly a payment
// intent already exist, so the children must go before the order or the
// foreign keys would block the delete.
func (s *OrderStore) DeleteOrder(ctx context.Context, orderID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("orders: begin delete: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range []string{
		`DELETE FROM payment_intents WHERE order_id = $1`,
		`DELETE FROM stock_reservations WHERE order_id = $1`,
		`DELETE FROM order_lines WHERE order_id = $1`,
		`DELETE FROM orders WHERE id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, orderID); err != nil {
			return fmt.Errorf("orders: delete: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("orders: commit delete: %w", err)
	}
	committed = true
	return nil
}

// InsertPaymentIntent stores the payment attempt for an order.
func (s *OrderStore) InsertPaymentIntent(ctx context.Context, intent domain.PaymentIntent) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO payment_intents (id, order_id, provider, status, amount, currency, preference_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NOW())`,
		intent.ID, intent.OrderID, intent.Provider, intent.Status,
		intent.Amount, intent.Currency, intent.PreferenceID); err != nil {
		return fmt.Errorf("orders: insert payment intent: %w", err)
	}
	return nil
}

// SetPaymentPreference records the external session id returned by the gateway.
func (s *OrderStore) SetPaymentPreference(ctx context.Context, intentID, preferenceID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE payment_intents SET preference_id = $2 WHERE id = $1`,
		intentID, preferenceID)
	if err != nil {
		return fmt.Errorf("orders: set preference: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("orders: rows affected: %w", err)
	}
	if affected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// BuyerStore resolves buyer purchasing profiles from Postgres.
type BuyerStore struct {
	db *sql.DB
}

// NewBuyerStore constructs a BuyerStore over the shared connection pool.
func NewBuyerStore(db *sql.DB) *BuyerStore {
	return &BuyerStore{db: db}
}

// FindByID loads a buyer profile, returning repositories.ErrNotFound when absent.
func (s *BuyerStore) FindByID(ctx context.Context, buyerID int64) (domain.Buyer, error) {
	var buyer domain.Buyer
	var schoolID sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, school_id,
		        COALESCE(address_line1, ''), COALESCE(address_reference, ''),
		        COALESCE(address_district, ''), COALESCE(address_notes, '')
		 FROM buyers WHERE id = $1`,
		buyerID).Scan(
		&buyer.ID, &buyer.Name, &schoolID,
		&buyer.Address.Line1, &buyer.Address.Reference,
		&buyer.Address.District, &buyer.Address.Notes,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Buyer{}, repositories.ErrNotFound
		}
		return domain.Buyer{}, fmt.Errorf("buyers: find: %w", err)
	}
	if schoolID.Valid {
		buyer.SchoolID = &schoolID.Int64
	}
	return buyer, nil
}
