package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/schoolkit/api/internal/domain"
	"github.com/schoolkit/api/internal/repositories"
)

// schoolCodePrefix extracts the school id embedded in a school-scoped code.
// Codes follow the compatibility convention "S<id>-REST". Returns zero when
// the code carries no parseable prefix.
func schoolCodePrefix(code string) int64 {
	if len(code) < 3 || code[0] != 'S' {
		return 0
	}
	dash := strings.IndexByte(code, '-')
	if dash < 2 {
		return 0
	}
	id, err := strconv.ParseInt(code[1:dash], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// discountOutcome carries the discount engine's result. When applied is false
// the lines are the unmodified input and message explains the rejection.
type discountOutcome struct {
	applied        bool
	message        string
	rule           domain.DiscountRule
	lines          []domain.PricedLine
	discountAmount decimal.Decimal
	total          decimal.Decimal
}

// applyDiscount validates one code and redistributes its reduction across the
// eligible lines. Validation failures degrade to "no discount" with a message;
// only the two school-scope violations abort checkout.
func applyDiscount(ctx context.Context, store repositories.DiscountStore, now time.Time, code string, currency string, priceListID int64, buyer domain.Buyer, lines []domain.PricedLine, subtotal decimal.Decimal) (discountOutcome, error) {
	unchanged := discountOutcome{
		lines:          lines,
		discountAmount: domain.Zero,
		total:          subtotal,
	}

	rule, err := store.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			unchanged.message = "discount code not found"
			return unchanged, nil
		}
		return discountOutcome{}, fmt.Errorf("find discount: %w", err)
	}
	unchanged.rule = rule

	if !rule.Active {
		unchanged.message = "discount code is not active"
		return unchanged, nil
	}
	if rule.StartsAt != nil && now.Before(*rule.StartsAt) {
		unchanged.message = "discount code is not valid yet"
		return unchanged, nil
	}
	if rule.EndsAt != nil && now.After(*rule.EndsAt) {
		unchanged.message = "discount code has expired"
		return unchanged, nil
	}
	if rule.MaxUses != nil && rule.UsesCount >= *rule.MaxUses {
		unchanged.message = "discount code usage limit reached"
		return unchanged, nil
	}
	if rule.MinSubtotal != nil && subtotal.LessThan(*rule.MinSubtotal) {
		unchanged.message = fmt.Sprintf("order subtotal below the minimum of %s", rule.MinSubtotal.StringFixed(2))
		return unchanged, nil
	}
	if rule.Currency != "" && !strings.EqualFold(rule.Currency, currency) {
		unchanged.message = "discount code is for a different currency"
		return unchanged, nil
	}

	if rule.Scope == domain.ScopeSchoolProduct {
		if buyer.SchoolID == nil {
			return discountOutcome{}, fmt.Errorf("%w: code %s", ErrSchoolRequiredForDiscount, rule.Code)
		}
		wantSchool := int64(0)
		if rule.SchoolID != nil {
			wantSchool = *rule.SchoolID
		} else {
			wantSchool = schoolCodePrefix(rule.Code)
		}
		if wantSchool != 0 && wantSchool != *buyer.SchoolID {
			return discountOutcome{}, fmt.Errorf("%w: code %s", ErrDiscountNotAllowedForSchool, rule.Code)
		}
	}

	eligible := func(line domain.PricedLine) bool {
		switch rule.Scope {
		case domain.ScopeAll:
			return true
		case domain.ScopeProduct, domain.ScopeSchoolProduct:
			return rule.ProductID != nil && line.BaseProductID == *rule.ProductID
		case domain.ScopePriceList:
			return rule.PriceListID != nil && *rule.PriceListID == priceListID
		default:
			return false
		}
	}

	anyEligible := false
	for _, line := range lines {
		if eligible(line) {
			anyEligible = true
			break
		}
	}
	if !anyEligible {
		unchanged.message = "discount code does not apply to any item in the cart"
		return unchanged, nil
	}

	discounted := make([]domain.PricedLine, len(lines))
	copy(discounted, lines)

	switch rule.Type {
	case domain.DiscountPercent:
		value := rule.Value
		if value.LessThan(decimal.Zero) {
			value = decimal.Zero
		}
		hundred := decimal.NewFromInt(100)
		if value.GreaterThan(hundred) {
			value = hundred
		}
		factor := decimal.NewFromInt(1).Sub(value.Div(hundred))
		for i := range discounted {
			if !eligible(discounted[i]) {
				continue
			}
			unit := domain.Round2(discounted[i].UnitListPrice.Mul(factor))
			discounted[i].UnitFinalPrice = unit
			discounted[i].LineTotal = domain.MulQty(unit, discounted[i].Quantity)
		}

	case domain.DiscountFixed:
		// Distribute the rule value across eligible lines, reducing the pool by
		// the reduction actually realised after per-unit rounding so compounding
		// rounding error never over-discounts.
		remaining := domain.Round2(rule.Value)
		for i := range discounted {
			if remaining.LessThanOrEqual(decimal.Zero) {
				break
			}
			if !eligible(discounted[i]) {
				continue
			}
			line := discounted[i]
			maxAbsorbable := domain.MulQty(line.UnitListPrice, line.Quantity)
			take := decimal.Min(remaining, maxAbsorbable)
			perUnit := domain.Round2(take.Div(decimal.NewFromInt(int64(line.Quantity))))
			newUnit := domain.Round2(line.UnitListPrice.Sub(perUnit))
			if newUnit.LessThan(decimal.Zero) {
				newUnit = domain.Zero
			}
			newTotal := domain.MulQty(newUnit, line.Quantity)
			realized := line.LineTotal.Sub(newTotal)

			discounted[i].UnitFinalPrice = newUnit
			discounted[i].LineTotal = newTotal
			remaining = remaining.Sub(realized)
		}

	default:
		unchanged.message = "discount code has an unsupported type"
		return unchanged, nil
	}

	newSubtotal := domain.SumLineTotals(discounted)
	discountAmount := domain.Round2(subtotal.Sub(newSubtotal))
	if discountAmount.LessThan(decimal.Zero) {
		discountAmount = domain.Zero
	}
	total := domain.Round2(subtotal.Sub(discountAmount))
	if total.LessThan(decimal.Zero) {
		total = domain.Zero
	}

	return discountOutcome{
		applied:        true,
		rule:           rule,
		lines:          discounted,
		discountAmount: discountAmount,
		total:          total,
	}, nil
}
