package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/schoolkit/api/internal/domain"
	"github.com/schoolkit/api/internal/repositories"
)

// pricedCart is the pricing engine's output: revenue-bearing lines, the
// stock-truth reservation lines, and the rounded subtotal.
type pricedCart struct {
	priced       []domain.PricedLine
	reservations []domain.ReservationLine
	subtotal     decimal.Decimal
}

// priceCart resolves list prices from the active price list and emits one
// priced line per cart line. A pack becomes a header line at the pack's own
// price plus zero-priced reservation lines for each component; components
// never contribute to the subtotal.
func priceCart(ctx context.Context, store repositories.PriceStore, priceListID int64, lines []domain.CartLine, catalog catalogSnapshot) (pricedCart, error) {
	var productIDs, packIDs []int64
	for _, line := range lines {
		switch line.Kind {
		case domain.CartLineProduct:
			productIDs = append(productIDs, line.RefID)
		case domain.CartLinePack:
			packIDs = append(packIDs, line.RefID)
		}
	}

	prices, err := store.GetUnitPrices(ctx, priceListID, productIDs, packIDs)
	if err != nil {
		return pricedCart{}, fmt.Errorf("resolve prices: %w", err)
	}

	var cart pricedCart
	for _, line := range lines {
		switch line.Kind {
		case domain.CartLineProduct:
			unit, ok := prices.Products[line.RefID]
			if !ok {
				return pricedCart{}, fmt.Errorf("%w: product %d", ErrNoPrice, line.RefID)
			}
			unit = domain.Round2(unit)
			product := catalog.products[line.RefID]
			cart.priced = append(cart.priced, domain.PricedLine{
				Kind:           domain.LineProduct,
				BaseProductID:  product.ID,
				Title:          product.Title,
				SaleCode:       product.SaleCode,
				Quantity:       line.Quantity,
				UnitListPrice:  unit,
				UnitFinalPrice: unit,
				LineTotal:      domain.MulQty(unit, line.Quantity),
			})
			cart.reservations = append(cart.reservations, domain.ReservationLine{
				Kind:      domain.LineProduct,
				ProductID: product.ID,
				Title:     product.Title,
				SaleCode:  product.SaleCode,
				Quantity:  line.Quantity,
				UnitPrice: unit,
			})

		case domain.CartLinePack:
			unit, ok := prices.Packs[line.RefID]
			if !ok {
				return pricedCart{}, fmt.Errorf("%w: pack %d", ErrNoPrice, line.RefID)
			}
			unit = domain.Round2(unit)
			pack := catalog.packs[line.RefID]
			cart.priced = append(cart.priced, domain.PricedLine{
				Kind:           domain.LinePackHeader,
				Title:          pack.Title,
				SaleCode:       pack.SaleCode,
				Quantity:       line.Quantity,
				UnitListPrice:  unit,
				UnitFinalPrice: unit,
				LineTotal:      domain.MulQty(unit, line.Quantity),
			})
			for _, comp := range pack.Components {
				product := catalog.products[comp.ProductID]
				cart.reservations = append(cart.reservations, domain.ReservationLine{
					Kind:      domain.LinePackComponent,
					ProductID: product.ID,
					Title:     product.Title,
					SaleCode:  product.SaleCode,
					Quantity:  line.Quantity * comp.Quantity,
					UnitPrice: domain.Zero,
				})
			}
		}
	}

	cart.subtotal = domain.SumLineTotals(cart.priced)
	return cart, nil
}
