package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/schoolkit/api/internal/domain"
	"github.com/schoolkit/api/internal/repositories"
)

// aggregateStockRequirement expands pack lines into component quantities and
// sums the total draw per base product across the whole cart. Direct lines and
// pack components referencing the same product accumulate into one entry.
func aggregateStockRequirement(lines []domain.CartLine, catalog catalogSnapshot) domain.StockRequirement {
	requirement := make(domain.StockRequirement)
	for _, line := range lines {
		switch line.Kind {
		case domain.CartLineProduct:
			requirement[line.RefID] += line.Quantity
		case domain.CartLinePack:
			for _, comp := range catalog.packs[line.RefID].Components {
				requirement[comp.ProductID] += line.Quantity * comp.Quantity
			}
		}
	}
	return requirement
}

// checkAvailability is the advisory pre-check before any pricing or
// persistence work. It reads availability without locking; the authoritative
// check happens inside the reservation transaction.
func checkAvailability(ctx context.Context, store repositories.StockStore, requirement domain.StockRequirement) error {
	ids := make([]int64, 0, len(requirement))
	for id := range requirement {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	available, err := store.GetAvailable(ctx, ids)
	if err != nil {
		return fmt.Errorf("read availability: %w", err)
	}
	for _, id := range ids {
		if available[id] < requirement[id] {
			return &repositories.StockShortfallError{
				ProductID: id,
				Available: available[id],
				Required:  requirement[id],
			}
		}
	}
	return nil
}
