package services

import (
	"context"
	"fmt"

	"github.com/schoolkit/api/internal/domain"
	"github.com/schoolkit/api/internal/repositories"
)

// catalogSnapshot is the read-only catalog view for one checkout request.
type catalogSnapshot struct {
	products map[int64]domain.Product
	packs    map[int64]domain.Pack
}

// resolveCatalog loads every pack and product the cart references, directly or
// through pack components, and rejects invisible or unresolvable entries.
func resolveCatalog(ctx context.Context, store repositories.CatalogStore, lines []domain.CartLine) (catalogSnapshot, error) {
	var packIDs, directProductIDs []int64
	seenPacks := make(map[int64]bool)
	seenProducts := make(map[int64]bool)
	for _, line := range lines {
		switch line.Kind {
		case domain.CartLinePack:
			if !seenPacks[line.RefID] {
				seenPacks[line.RefID] = true
				packIDs = append(packIDs, line.RefID)
			}
		case domain.CartLineProduct:
			if !seenProducts[line.RefID] {
				seenProducts[line.RefID] = true
				directProductIDs = append(directProductIDs, line.RefID)
			}
		}
	}

	packs, err := store.GetPacks(ctx, packIDs)
	if err != nil {
		return catalogSnapshot{}, fmt.Errorf("resolve packs: %w", err)
	}
	for _, id := range packIDs {
		pack, ok := packs[id]
		if !ok || len(pack.Components) == 0 {
			return catalogSnapshot{}, fmt.Errorf("%w: pack %d", ErrCatalogNotFound, id)
		}
		if !pack.Visible {
			return catalogSnapshot{}, fmt.Errorf("%w: pack %d", ErrInvalidPacksInCart, id)
		}
	}

	// The product set is the union of direct lines and every pack component.
	productIDs := append([]int64(nil), directProductIDs...)
	for _, id := range packIDs {
		for _, comp := range packs[id].Components {
			if !seenProducts[comp.ProductID] {
				seenProducts[comp.ProductID] = true
				productIDs = append(productIDs, comp.ProductID)
			}
		}
	}

	products, err := store.GetProducts(ctx, productIDs)
	if err != nil {
		return catalogSnapshot{}, fmt.Errorf("resolve products: %w", err)
	}
	for _, id := range productIDs {
		product, ok := products[id]
		if !ok {
			return catalogSnapshot{}, fmt.Errorf("%w: product %d", ErrCatalogNotFound, id)
		}
		if !product.Visible {
			return catalogSnapshot{}, fmt.Errorf("%w: product %d", ErrInvalidProductsInCart, id)
		}
	}

	return catalogSnapshot{products: products, packs: packs}, nil
}
