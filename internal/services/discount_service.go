package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/schoolkit/api/internal/repositories"
)

// DiscountServiceDeps bundles collaborators for the public discount lookup.
type DiscountServiceDeps struct {
	Discounts repositories.DiscountStore
	Clock     func() time.Time
}

type discountService struct {
	discounts repositories.DiscountStore
	clock     func() time.Time
}

// NewDiscountService constructs the public discount lookup service.
func NewDiscountService(deps DiscountServiceDeps) (DiscountService, error) {
	if deps.Discounts == nil {
		return nil, errors.New("discount: discount store is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &discountService{
		discounts: deps.Discounts,
		clock:     func() time.Time { return clock().UTC() },
	}, nil
}

// GetPublicDiscount returns the buyer-visible state of a code without exposing
// scope internals or usage counters.
func (s *discountService) GetPublicDiscount(ctx context.Context, code string) (PublicDiscount, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return PublicDiscount{}, ErrDiscountNotFound
	}

	rule, err := s.discounts.FindByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return PublicDiscount{}, fmt.Errorf("%w: %s", ErrDiscountNotFound, normalized)
		}
		return PublicDiscount{}, fmt.Errorf("find discount: %w", err)
	}

	now := s.clock()
	expired := (rule.StartsAt != nil && now.Before(*rule.StartsAt)) ||
		(rule.EndsAt != nil && now.After(*rule.EndsAt))
	depleted := rule.MaxUses != nil && rule.UsesCount >= *rule.MaxUses

	return PublicDiscount{
		Code:     rule.Code,
		Type:     rule.Type,
		Value:    rule.Value,
		Active:   rule.Active,
		Expired:  expired,
		Depleted: depleted,
	}, nil
}
