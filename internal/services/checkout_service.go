package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/schoolkit/api/internal/domain"
	"github.com/schoolkit/api/internal/payments"
	"github.com/schoolkit/api/internal/repositories"
)

const (
	checkoutEventStarted      = "checkout.started"
	checkoutEventPreviewed    = "checkout.previewed"
	checkoutEventCompleted    = "checkout.completed"
	checkoutEventCompensated  = "checkout.compensated"
	checkoutEventCompensation = "checkout.compensation.failed"

	orderReferencePrefix = "ORD-"
	paymentIntentPrefix  = "pay_"

	releaseReasonReservationFailed = "reservation_failed"
	releaseReasonGatewayFailed     = "gateway_failed"
	releaseReasonInternalError     = "internal_error"
)

// CheckoutServiceDeps bundles collaborators required to construct the
// checkout service.
type CheckoutServiceDeps struct {
	Catalog   repositories.CatalogStore
	Prices    repositories.PriceStore
	Stock     repositories.StockStore
	Buyers    repositories.BuyerStore
	Orders    repositories.OrderStore
	Discounts repositories.DiscountStore
	Gateway   payments.Gateway

	PriceListID int64
	Currency    string
	Provider    string

	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	catalog   repositories.CatalogStore
	prices    repositories.PriceStore
	stock     repositories.StockStore
	buyers    repositories.BuyerStore
	orders    repositories.OrderStore
	discounts repositories.DiscountStore
	gateway   payments.Gateway

	priceListID int64
	currency    string
	provider    string

	clock  func() time.Time
	newID  func() string
	logger func(ctx context.Context, event string, fields map[string]any)
}

// NewCheckoutService constructs the checkout pipeline from its collaborators.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	switch {
	case deps.Catalog == nil:
		return nil, errors.New("checkout: catalog store is required")
	case deps.Prices == nil:
		return nil, errors.New("checkout: price store is required")
	case deps.Stock == nil:
		return nil, errors.New("checkout: stock store is required")
	case deps.Buyers == nil:
		return nil, errors.New("checkout: buyer store is required")
	case deps.Orders == nil:
		return nil, errors.New("checkout: order store is required")
	case deps.Discounts == nil:
		return nil, errors.New("checkout: discount store is required")
	case deps.Gateway == nil:
		return nil, errors.New("checkout: payment gateway is required")
	}

	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if len(currency) != 3 {
		return nil, errors.New("checkout: a 3-letter currency is required")
	}
	priceListID := deps.PriceListID
	if priceListID <= 0 {
		return nil, errors.New("checkout: a price list id is required")
	}
	provider := strings.TrimSpace(deps.Provider)
	if provider == "" {
		provider = "mercadopago"
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &checkoutService{
		catalog:     deps.Catalog,
		prices:      deps.Prices,
		stock:       deps.Stock,
		buyers:      deps.Buyers,
		orders:      deps.Orders,
		discounts:   deps.Discounts,
		gateway:     deps.Gateway,
		priceListID: priceListID,
		currency:    currency,
		provider:    provider,
		clock:       func() time.Time { return clock().UTC() },
		newID:       newID,
		logger:      logger,
	}, nil
}

// Checkout runs the order-creation pipeline. Everything through pricing and
// discounts is side-effect free; from the order insert onward every failure
// path runs best-effort compensation before returning.
func (s *checkoutService) Checkout(ctx context.Context, cmd CheckoutCommand) (*CheckoutResult, *PreviewResult, error) {
	s.logger(ctx, checkoutEventStarted, map[string]any{
		"buyer_id": cmd.BuyerID,
		"items":    len(cmd.Items),
		"preview":  cmd.PreviewOnly,
	})

	buyer, err := s.buyers.FindByID(ctx, cmd.BuyerID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: buyer %d", ErrBuyerProfileRequired, cmd.BuyerID)
		}
		return nil, nil, fmt.Errorf("resolve buyer: %w", err)
	}

	shipping := resolveShipping(cmd.Shipping, buyer)
	if !cmd.PreviewOnly && strings.TrimSpace(shipping.Line1) == "" {
		return nil, nil, ErrAddressRequired
	}

	lines, err := normalizeCart(cmd.Items)
	if err != nil {
		return nil, nil, err
	}

	catalog, err := resolveCatalog(ctx, s.catalog, lines)
	if err != nil {
		return nil, nil, err
	}

	requirement := aggregateStockRequirement(lines, catalog)
	if err := checkAvailability(ctx, s.stock, requirement); err != nil {
		return nil, nil, err
	}

	cart, err := priceCart(ctx, s.prices, s.priceListID, lines, catalog)
	if err != nil {
		return nil, nil, err
	}

	normalizedCode := strings.ToUpper(strings.TrimSpace(cmd.DiscountCode))
	outcome := discountOutcome{
		lines:          cart.priced,
		discountAmount: domain.Zero,
		total:          cart.subtotal,
	}
	if normalizedCode != "" {
		outcome, err = applyDiscount(ctx, s.discounts, s.clock(), normalizedCode, s.currency, s.priceListID, buyer, cart.priced, cart.subtotal)
		if err != nil {
			return nil, nil, err
		}
	}

	if cmd.PreviewOnly {
		s.logger(ctx, checkoutEventPreviewed, map[string]any{
			"buyer_id": cmd.BuyerID,
			"subtotal": cart.subtotal.StringFixed(2),
			"total":    outcome.total.StringFixed(2),
			"applied":  outcome.applied,
		})
		return nil, &PreviewResult{
			NormalizedCode: normalizedCode,
			Applied:        outcome.applied,
			Message:        outcome.message,
			Subtotal:       cart.subtotal,
			DiscountAmount: outcome.discountAmount,
			Total:          outcome.total,
		}, nil
	}

	return s.completeOrder(ctx, cmd, buyer, shipping, cart, outcome, normalizedCode)
}

// completeOrder is the persistent half of the pipeline. Once the order row
// exists, any failure releases reserved stock and deletes the order before the
// original error is surfaced.
func (s *checkoutService) completeOrder(ctx context.Context, cmd CheckoutCommand, buyer domain.Buyer, shipping domain.Address, cart pricedCart, outcome discountOutcome, normalizedCode string) (*CheckoutResult, *PreviewResult, error) {
	appliedCode := ""
	if outcome.applied {
		appliedCode = normalizedCode
	}

	order, err := s.orders.InsertOrder(ctx, domain.Order{
		Reference:         orderReferencePrefix + s.newID(),
		BuyerID:           buyer.ID,
		ShippingAddress:   shipping,
		Currency:          s.currency,
		Subtotal:          cart.subtotal,
		DiscountAmount:    outcome.discountAmount,
		Total:             outcome.total,
		DiscountCode:      appliedCode,
		Status:            domain.OrderPaymentPending,
		FulfillmentStatus: domain.FulfillmentPending,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("insert order: %w", err)
	}

	if err := s.orders.InsertReservationLines(ctx, order.ID, cart.reservations); err != nil {
		s.compensate(ctx, order.ID, releaseReasonInternalError)
		return nil, nil, fmt.Errorf("insert reservation lines: %w", err)
	}

	if err := s.stock.ReserveForOrder(ctx, order.ID); err != nil {
		s.compensate(ctx, order.ID, releaseReasonReservationFailed)
		if errors.Is(err, repositories.ErrInsufficientStock) {
			return nil, nil, fmt.Errorf("%w: %v", ErrOutOfStock, err)
		}
		return nil, nil, fmt.Errorf("reserve stock: %w", err)
	}

	if err := s.orders.InsertHeaderLines(ctx, order.ID, outcome.lines); err != nil {
		s.compensate(ctx, order.ID, releaseReasonInternalError)
		return nil, nil, fmt.Errorf("insert header lines: %w", err)
	}

	intent := domain.PaymentIntent{
		ID:       paymentIntentPrefix + s.newID(),
		OrderID:  order.ID,
		Provider: s.provider,
		Status:   domain.PaymentIntentCreated,
		Amount:   outcome.total,
		Currency: s.currency,
	}
	if err := s.orders.InsertPaymentIntent(ctx, intent); err != nil {
		s.compensate(ctx, order.ID, releaseReasonInternalError)
		return nil, nil, fmt.Errorf("insert payment intent: %w", err)
	}

	session, err := s.gateway.CreatePaymentSession(ctx, payments.SessionRequest{
		OrderReference:  order.Reference,
		PaymentIntentID: intent.ID,
		Amount:          outcome.total,
		Currency:        s.currency,
		PayerName:       buyer.Name,
		Items:           sessionItems(outcome.lines, s.currency),
		Metadata: map[string]string{
			"order_id":          fmt.Sprintf("%d", order.ID),
			"order_reference":   order.Reference,
			"payment_intent_id": intent.ID,
		},
	})
	if err != nil {
		s.compensate(ctx, order.ID, releaseReasonGatewayFailed)
		return nil, nil, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}

	if err := s.orders.SetPaymentPreference(ctx, intent.ID, session.ID); err != nil {
		s.compensate(ctx, order.ID, releaseReasonInternalError)
		return nil, nil, fmt.Errorf("store payment preference: %w", err)
	}

	result := &CheckoutResult{
		OrderID:            order.ID,
		OrderReference:     order.Reference,
		PaymentRedirectURL: session.RedirectURL,
		SandboxRedirectURL: session.SandboxURL,
		Subtotal:           cart.subtotal,
		DiscountAmount:     outcome.discountAmount,
		Total:              outcome.total,
		Message:            outcome.message,
	}
	if outcome.applied {
		result.Applied = &AppliedDiscount{
			Code:   outcome.rule.Code,
			Type:   outcome.rule.Type,
			Amount: outcome.discountAmount,
		}
		s.recordRedemption(ctx, outcome, order, buyer)
	}

	s.logger(ctx, checkoutEventCompleted, map[string]any{
		"order_id":        order.ID,
		"order_reference": order.Reference,
		"total":           outcome.total.StringFixed(2),
		"preference_id":   session.ID,
	})
	return result, nil, nil
}

// compensate undoes the persisted side effects of a failed checkout. It is
// best-effort: a compensation failure is logged and never masks the original
// error. Orphans left behind are a reconciliation concern.
func (s *checkoutService) compensate(ctx context.Context, orderID int64, reason string) {
	if err := s.stock.ReleaseForOrder(ctx, orderID, reason); err != nil {
		s.logger(ctx, checkoutEventCompensation, map[string]any{
			"order_id": orderID,
			"step":     "release_stock",
			"error":    err.Error(),
		})
	}
	if err := s.orders.DeleteOrder(ctx, orderID); err != nil {
		s.logger(ctx, checkoutEventCompensation, map[string]any{
			"order_id": orderID,
			"step":     "delete_order",
			"error":    err.Error(),
		})
		return
	}
	s.logger(ctx, checkoutEventCompensated, map[string]any{
		"order_id": orderID,
		"reason":   reason,
	})
}

// recordRedemption performs the best-effort discount usage bookkeeping after a
// successful checkout. Failures are logged and never unwind the order.
func (s *checkoutService) recordRedemption(ctx context.Context, outcome discountOutcome, order domain.Order, buyer domain.Buyer) {
	if err := s.discounts.IncrementUsage(ctx, outcome.rule.ID); err != nil {
		s.logger(ctx, "checkout.discount.increment_failed", map[string]any{
			"order_id": order.ID,
			"rule_id":  outcome.rule.ID,
			"error":    err.Error(),
		})
	}
	if err := s.discounts.InsertRedemption(ctx, repositories.DiscountRedemption{
		RuleID:     outcome.rule.ID,
		OrderID:    order.ID,
		BuyerID:    buyer.ID,
		Amount:     outcome.discountAmount,
		RedeemedAt: s.clock(),
	}); err != nil {
		s.logger(ctx, "checkout.discount.redemption_failed", map[string]any{
			"order_id": order.ID,
			"rule_id":  outcome.rule.ID,
			"error":    err.Error(),
		})
	}
}

// resolveShipping prefers the address supplied with the request and falls back
// to the buyer profile's stored address.
func resolveShipping(input ShippingInput, buyer domain.Buyer) domain.Address {
	if strings.TrimSpace(input.Address) != "" {
		return domain.Address{
			Line1:     strings.TrimSpace(input.Address),
			Reference: strings.TrimSpace(input.Reference),
			District:  strings.TrimSpace(input.District),
			Notes:     strings.TrimSpace(input.Notes),
		}
	}
	return buyer.Address
}

// sessionItems converts the discounted priced lines into gateway display
// items. Reservation component lines never reach the gateway.
func sessionItems(lines []domain.PricedLine, currency string) []payments.SessionItem {
	items := make([]payments.SessionItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, payments.SessionItem{
			Title:     line.Title,
			SaleCode:  line.SaleCode,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitFinalPrice,
			Currency:  currency,
		})
	}
	return items
}
