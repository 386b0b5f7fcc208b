package repositories

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/schoolkit/api/internal/domain"
)

// CatalogStore loads read-only product and pack snapshots for checkout.
type CatalogStore interface {
	// GetProducts returns the products for the given ids, keyed by id. Missing
	// ids are simply absent from the result.
	GetProducts(ctx context.Context, ids []int64) (map[int64]domain.Product, error)
	// GetPacks returns the packs with their components, keyed by id.
	GetPacks(ctx context.Context, ids []int64) (map[int64]domain.Pack, error)
}

// PriceSet carries the unit list prices resolved from one price list.
type PriceSet struct {
	PriceListID int64
	Products    map[int64]decimal.Decimal
	Packs       map[int64]decimal.Decimal
}

// PriceStore resolves unit list prices from the active price list.
type PriceStore interface {
	GetUnitPrices(ctx context.Context, priceListID int64, productIDs, packIDs []int64) (PriceSet, error)
}

// StockStore exposes availability reads and the atomic per-order reservation.
// ReserveForOrder reads the order's persisted reservation lines and decrements
// availability in a single transaction; concurrent reservations must not both
// succeed beyond available quantity.
type StockStore interface {
	GetAvailable(ctx context.Context, ids []int64) (map[int64]int, error)
	ReserveForOrder(ctx context.Context, orderID int64) error
	ReleaseForOrder(ctx context.Context, orderID int64, reason string) error
}

// BuyerStore resolves buyer purchasing profiles.
type BuyerStore interface {
	FindByID(ctx context.Context, buyerID int64) (domain.Buyer, error)
}

// OrderStore persists order headers, line items and payment intents.
type OrderStore interface {
	InsertOrder(ctx context.Context, order domain.Order) (domain.Order, error)
	InsertReservationLines(ctx context.Context, orderID int64, lines []domain.ReservationLine) error
	InsertHeaderLines(ctx context.Context, orderID int64, lines []domain.PricedLine) error
	DeleteOrder(ctx context.Context, orderID int64) error
	InsertPaymentIntent(ctx context.Context, intent domain.PaymentIntent) error
	SetPaymentPreference(ctx context.Context, intentID, preferenceID string) error
}

// DiscountRedemption records one application of a discount code to an order.
type DiscountRedemption struct {
	RuleID     int64
	OrderID    int64
	BuyerID    int64
	Amount     decimal.Decimal
	RedeemedAt time.Time
}

// DiscountStore looks up discount rules and records best-effort usage.
type DiscountStore interface {
	FindByCode(ctx context.Context, code string) (domain.DiscountRule, error)
	// IncrementUsage bumps usesCount. Not serialised against MaxUses: under
	// high concurrency a code can be over-redeemed by a small margin.
	IncrementUsage(ctx context.Context, ruleID int64) error
	InsertRedemption(ctx context.Context, redemption DiscountRedemption) error
}
