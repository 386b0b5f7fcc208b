package services

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/schoolkit/api/internal/domain"
)

// RawCartItem is one unparsed cart entry as received from the client. Type is
// optional; an entry with a packId and no type is treated as a pack line.
type RawCartItem struct {
	Type      string
	ProductID *int64
	PackID    *int64
	Quantity  *int
}

// ShippingInput is the shipping address supplied with a checkout request. A
// blank input falls back to the buyer profile's stored address.
type ShippingInput struct {
	Address   string
	Reference string
	District  string
	Notes     string
}

// CheckoutCommand is the full checkout request after authentication.
type CheckoutCommand struct {
	BuyerID      int64
	Items        []RawCartItem
	Shipping     ShippingInput
	DiscountCode string
	PreviewOnly  bool
}

// AppliedDiscount summarises the discount actually applied to an order.
type AppliedDiscount struct {
	Code   string
	Type   domain.DiscountType
	Amount decimal.Decimal
}

// PreviewResult is the pricing outcome returned without side effects.
type PreviewResult struct {
	NormalizedCode string
	Applied        bool
	Message        string
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
}

// CheckoutResult is the outcome of a completed checkout.
type CheckoutResult struct {
	OrderID            int64
	OrderReference     string
	PaymentRedirectURL string
	SandboxRedirectURL string
	Subtotal           decimal.Decimal
	DiscountAmount     decimal.Decimal
	Total              decimal.Decimal
	Applied            *AppliedDiscount
	Message            string
}

// CheckoutService runs the order-creation pipeline.
type CheckoutService interface {
	// Checkout executes the full pipeline. In preview mode it returns after
	// pricing and discounts with no side effects and a nil CheckoutResult.
	Checkout(ctx context.Context, cmd CheckoutCommand) (*CheckoutResult, *PreviewResult, error)
}

// PublicDiscount is the buyer-visible view of a discount rule.
type PublicDiscount struct {
	Code     string
	Type     domain.DiscountType
	Value    decimal.Decimal
	Active   bool
	Expired  bool
	Depleted bool
}

// DiscountService exposes public discount code lookups.
type DiscountService interface {
	GetPublicDiscount(ctx context.Context, code string) (PublicDiscount, error)
}
