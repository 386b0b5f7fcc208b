package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLineKind discriminates the two request-side line types accepted at checkout.
type CartLineKind string

const (
	// CartLineProduct references a single catalog product.
	CartLineProduct CartLineKind = "PRODUCT"
	// CartLinePack references a fixed-composition pack sold as a unit.
	CartLinePack CartLineKind = "PACK"
)

// CartLine is a normalised, request-scoped line request. It is parsed from raw
// input and discarded once the checkout pipeline completes.
type CartLine struct {
	Kind     CartLineKind
	RefID    int64
	Quantity int
}

// Product is a read-only catalog snapshot for the duration of one request.
type Product struct {
	ID       int64
	Title    string
	SaleCode string
	Visible  bool
}

// PackComponent binds a product and the quantity drawn from stock per pack unit.
type PackComponent struct {
	ProductID int64
	Quantity  int
}

// Pack is a catalog entry sold as a unit but composed of fixed quantities of
// underlying products. A valid pack always has at least one component.
type Pack struct {
	ID         int64
	Title      string
	SaleCode   string
	Visible    bool
	Components []PackComponent
}

// LineKind discriminates priced and reservable order lines so that a
// zero-priced component is never treated as revenue nor a pack header as a
// stock-bearing line.
type LineKind string

const (
	// LineProduct is a directly purchased product: priced and stock-bearing.
	LineProduct LineKind = "PRODUCT"
	// LinePackHeader carries a pack's sale price; it has no base product and
	// never touches stock.
	LinePackHeader LineKind = "PACK_HEADER"
	// LinePackComponent attributes stock consumption to a pack's underlying
	// product; its price fields are forced to zero.
	LinePackComponent LineKind = "PACK_COMPONENT"
)

// PricedLine is a revenue-bearing line produced by the pricing engine.
// BaseProductID is zero for pack headers.
type PricedLine struct {
	Kind           LineKind
	BaseProductID  int64
	Title          string
	SaleCode       string
	Quantity       int
	UnitListPrice  decimal.Decimal
	UnitFinalPrice decimal.Decimal
	LineTotal      decimal.Decimal
}

// ReservationLine is a stock-truth line: it always carries a real product id
// and the quantity actually drawn from stock. Price fields are informational
// and zeroed for pack components.
type ReservationLine struct {
	Kind      LineKind
	ProductID int64
	Title     string
	SaleCode  string
	Quantity  int
	UnitPrice decimal.Decimal
}

// StockRequirement maps product id to the total quantity the cart draws from
// stock. It is built once per request and never shared across requests.
type StockRequirement map[int64]int

// DiscountType enumerates how a rule's value is interpreted.
type DiscountType string

const (
	// DiscountPercent reduces each eligible unit price by value percent.
	DiscountPercent DiscountType = "PERCENT"
	// DiscountFixed distributes a total currency amount across eligible lines.
	DiscountFixed DiscountType = "FIXED"
)

// DiscountScope enumerates the eligibility predicate of a rule.
type DiscountScope string

const (
	// ScopeAll makes every priced line eligible.
	ScopeAll DiscountScope = "ALL"
	// ScopeProduct restricts eligibility to lines of one product.
	ScopeProduct DiscountScope = "PRODUCT"
	// ScopePriceList restricts eligibility to lines priced from one price list.
	ScopePriceList DiscountScope = "PRICE_LIST"
	// ScopeSchoolProduct restricts eligibility to one product for buyers of one school.
	ScopeSchoolProduct DiscountScope = "SCHOOL_PRODUCT"
)

// DiscountRule is a discount code definition. UsesCount is monotonically
// non-decreasing and capped by MaxUses when set.
type DiscountRule struct {
	ID          int64
	Code        string
	Type        DiscountType
	Value       decimal.Decimal
	Active      bool
	StartsAt    *time.Time
	EndsAt      *time.Time
	MinSubtotal *decimal.Decimal
	MaxUses     *int
	UsesCount   int
	Scope       DiscountScope
	ProductID   *int64
	PriceListID *int64
	SchoolID    *int64
	Currency    string
}

// Address is the shipping destination captured with an order.
type Address struct {
	Line1     string
	Reference string
	District  string
	Notes     string
}

// Buyer is the purchasing profile resolved from the authenticated identity.
// SchoolID is nil for buyers without an institutional affiliation.
type Buyer struct {
	ID       int64
	Name     string
	SchoolID *int64
	Address  Address
}

// OrderStatus enumerates payment-side order states. Orders are created in
// PAYMENT_PENDING and mutated only by the payment webhook thereafter.
type OrderStatus string

const (
	OrderPaymentPending OrderStatus = "PAYMENT_PENDING"
	OrderPaid           OrderStatus = "PAID"
	OrderPaymentFailed  OrderStatus = "PAYMENT_FAILED"
	OrderCancelled      OrderStatus = "CANCELLED"
)

// FulfillmentStatus enumerates delivery-side order states.
type FulfillmentStatus string

const (
	FulfillmentPending   FulfillmentStatus = "PENDING"
	FulfillmentPreparing FulfillmentStatus = "PREPARING"
	FulfillmentShipped   FulfillmentStatus = "SHIPPED"
	FulfillmentDelivered FulfillmentStatus = "DELIVERED"
)

// Order is the persisted order header. Total = round2(Subtotal - DiscountAmount)
// and is never negative. An order is never deleted once a payment intent
// successfully exists for it.
type Order struct {
	ID                int64
	Reference         string
	BuyerID           int64
	ShippingAddress   Address
	Currency          string
	Subtotal          decimal.Decimal
	DiscountAmount    decimal.Decimal
	Total             decimal.Decimal
	DiscountCode      string
	Status            OrderStatus
	FulfillmentStatus FulfillmentStatus
	CreatedAt         time.Time
}

// PaymentIntentStatus enumerates payment intent states within this pipeline.
type PaymentIntentStatus string

const (
	PaymentIntentCreated  PaymentIntentStatus = "CREATED"
	PaymentIntentApproved PaymentIntentStatus = "APPROVED"
	PaymentIntentRejected PaymentIntentStatus = "REJECTED"
)

// PaymentIntent records the payment attempt bound one-to-one to an order.
// PreferenceID is filled once the gateway returns a redirectable session.
type PaymentIntent struct {
	ID           string
	OrderID      int64
	Provider     string
	Status       PaymentIntentStatus
	Amount       decimal.Decimal
	Currency     string
	PreferenceID string
	CreatedAt    time.Time
}
