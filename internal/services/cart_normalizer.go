package services

import (
	"strings"

	"github.com/schoolkit/api/internal/domain"
)

// normalizeCart parses raw cart entries into typed lines. Entries without a
// resolvable id are dropped; quantity defaults to 1 and is floored at 1.
// Returns ErrEmptyCart when nothing usable remains.
func normalizeCart(items []RawCartItem) ([]domain.CartLine, error) {
	lines := make([]domain.CartLine, 0, len(items))
	for _, item := range items {
		quantity := 1
		if item.Quantity != nil && *item.Quantity > 1 {
			quantity = *item.Quantity
		}

		kind := strings.ToUpper(strings.TrimSpace(item.Type))
		switch {
		case (kind == "PACK" || kind == "BUNDLE" || kind == "") && item.PackID != nil && *item.PackID > 0:
			lines = append(lines, domain.CartLine{
				Kind:     domain.CartLinePack,
				RefID:    *item.PackID,
				Quantity: quantity,
			})
		case (kind == "PRODUCT" || kind == "") && item.ProductID != nil && *item.ProductID > 0:
			lines = append(lines, domain.CartLine{
				Kind:     domain.CartLineProduct,
				RefID:    *item.ProductID,
				Quantity: quantity,
			})
		}
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	return lines, nil
}
