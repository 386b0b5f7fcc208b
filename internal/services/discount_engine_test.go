package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/schoolkit/api/internal/domain"
	"github.com/schoolkit/api/internal/repositories"
)

var discountNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func pricedLine(productID int64, unit string, quantity int) domain.PricedLine {
	price := mustDecimal(unit)
	return domain.PricedLine{
		Kind:           domain.LineProduct,
		BaseProductID:  productID,
		Title:          "Product",
		Quantity:       quantity,
		UnitListPrice:  price,
		UnitFinalPrice: price,
		LineTotal:      domain.MulQty(price, quantity),
	}
}

func ruleStore(rule domain.DiscountRule) *stubDiscountStore {
	return &stubDiscountStore{
		findByCodeFunc: func(ctx context.Context, code string) (domain.DiscountRule, error) {
			if code == rule.Code {
				return rule, nil
			}
			return domain.DiscountRule{}, repositories.ErrNotFound
		},
	}
}

func TestApplyDiscountPercent(t *testing.T) {
	lines := []domain.PricedLine{pricedLine(1, "50.00", 2)}
	subtotal := domain.SumLineTotals(lines)

	outcome, err := applyDiscount(context.Background(), ruleStore(domain.DiscountRule{
		ID: 1, Code: "SAVE10", Type: domain.DiscountPercent,
		Value: mustDecimal("10"), Active: true,
		Scope: domain.ScopeAll, Currency: "PEN",
	}), discountNow, "SAVE10", "PEN", 1, domain.Buyer{}, lines, subtotal)
	if err != nil {
		t.Fatalf("applyDiscount: %v", err)
	}
	if !outcome.applied {
		t.Fatalf("not applied: %s", outcome.message)
	}
	if got := outcome.discountAmount.StringFixed(2); got != "10.00" {
		t.Errorf("discountAmount = %s", got)
	}
	if got := outcome.total.StringFixed(2); got != "90.00" {
		t.Errorf("total = %s", got)
	}
	if got := outcome.lines[0].UnitFinalPrice.StringFixed(2); got != "45.00" {
		t.Errorf("unit final = %s", got)
	}
}

func TestApplyDiscountPercentClamped(t *testing.T) {
	lines := []domain.PricedLine{pricedLine(1, "50.00", 1)}
	subtotal := domain.SumLineTotals(lines)

	outcome, err := applyDiscount(context.Background(), ruleStore(domain.DiscountRule{
		ID: 1, Code: "TOOBIG", Type: domain.DiscountPercent,
		Value: mustDecimal("150"), Active: true,
		Scope: domain.ScopeAll, Currency: "PEN",
	}), discountNow, "TOOBIG", "PEN", 1, domain.Buyer{}, lines, subtotal)
	if err != nil {
		t.Fatalf("applyDiscount: %v", err)
	}
	if got := outcome.lines[0].UnitFinalPrice.StringFixed(2); got != "0.00" {
		t.Errorf("unit final = %s, clamp to 100%% failed", got)
	}
	if got := outcome.total.StringFixed(2); got != "0.00" {
		t.Errorf("total = %s", got)
	}
}

func TestApplyDiscountFixedConservation(t *testing.T) {
	// Two eligible lines absorbing a 30.00 fixed value. The realised total
	// reduction must equal the value because it fits within the subtotal.
	lines := []domain.PricedLine{
		pricedLine(1, "20.00", 1),
		pricedLine(2, "25.00", 2),
	}
	subtotal := domain.SumLineTotals(lines)

	outcome, err := applyDiscount(context.Background(), ruleStore(domain.DiscountRule{
		ID: 2, Code: "FLAT30", Type: domain.DiscountFixed,
		Value: mustDecimal("30.00"), Active: true,
		Scope: domain.ScopeAll, Currency: "PEN",
	}), discountNow, "FLAT30", "PEN", 1, domain.Buyer{}, lines, subtotal)
	if err != nil {
		t.Fatalf("applyDiscount: %v", err)
	}
	if got := outcome.discountAmount.StringFixed(2); got != "30.00" {
		t.Errorf("discountAmount = %s", got)
	}
	if got := outcome.total.StringFixed(2); got != "40.00" {
		t.Errorf("total = %s", got)
	}
	for i, line := range outcome.lines {
		if line.UnitFinalPrice.GreaterThan(line.UnitListPrice) {
			t.Errorf("line %d final above list", i)
		}
		if line.UnitFinalPrice.IsNegative() {
			t.Errorf("line %d negative final price", i)
		}
	}
}

func TestApplyDiscountFixedCeiling(t *testing.T) {
	lines := []domain.PricedLine{pricedLine(1, "30.00", 1)}
	subtotal := domain.SumLineTotals(lines)

	outcome, err := applyDiscount(context.Background(), ruleStore(domain.DiscountRule{
		ID: 2, Code: "BIG50", Type: domain.DiscountFixed,
		Value: mustDecimal("50.00"), Active: true,
		Scope: domain.ScopeAll, Currency: "PEN",
	}), discountNow, "BIG50", "PEN", 1, domain.Buyer{}, lines, subtotal)
	if err != nil {
		t.Fatalf("applyDiscount: %v", err)
	}
	if got := outcome.discountAmount.StringFixed(2); got != "30.00" {
		t.Errorf("discountAmount = %s, must not exceed eligible subtotal", got)
	}
	if got := outcome.total.StringFixed(2); got != "0.00" {
		t.Errorf("total = %s", got)
	}
}

func TestApplyDiscountFixedRoundingDoesNotOverDiscount(t *testing.T) {
	// A quantity-3 line forces a non-terminating per-unit division. The
	// realised reduction must track actual line totals so the pool is never
	// over-spent.
	lines := []domain.PricedLine{
		pricedLine(1, "10.00", 3),
		pricedLine(2, "10.00", 1),
	}
	subtotal := domain.SumLineTotals(lines)

	outcome, err := applyDiscount(context.Background(), ruleStore(domain.DiscountRule{
		ID: 2, Code: "FLAT10", Type: domain.DiscountFixed,
		Value: mustDecimal("10.00"), Active: true,
		Scope: domain.ScopeAll, Currency: "PEN",
	}), discountNow, "FLAT10", "PEN", 1, domain.Buyer{}, lines, subtotal)
	if err != nil {
		t.Fatalf("applyDiscount: %v", err)
	}
	diff := outcome.discountAmount.Sub(mustDecimal("10.00")).Abs()
	if diff.GreaterThan(mustDecimal("0.01")) {
		t.Errorf("discountAmount = %s, more than one rounding unit from 10.00", outcome.discountAmount.StringFixed(2))
	}
	if outcome.discountAmount.GreaterThan(subtotal) {
		t.Error("discount exceeds subtotal")
	}
}

func TestApplyDiscountValidationMessages(t *testing.T) {
	maxed := 5
	cases := []struct {
		name string
		rule domain.DiscountRule
		code string
		want string
	}{
		{
			name: "not found",
			rule: domain.DiscountRule{Code: "OTHER"},
			code: "MISSING",
			want: "not found",
		},
		{
			name: "inactive",
			rule: domain.DiscountRule{Code: "X", Active: false, Type: domain.DiscountPercent, Value: mustDecimal("10"), Scope: domain.ScopeAll, Currency: "PEN"},
			code: "X",
			want: "not active",
		},
		{
			name: "expired",
			rule: domain.DiscountRule{Code: "X", Active: true, EndsAt: timePtr(discountNow.Add(-time.Hour)), Type: domain.DiscountPercent, Value: mustDecimal("10"), Scope: domain.ScopeAll, Currency: "PEN"},
			code: "X",
			want: "expired",
		},
		{
			name: "usage cap",
			rule: domain.DiscountRule{Code: "X", Active: true, MaxUses: &maxed, UsesCount: 5, Type: domain.DiscountPercent, Value: mustDecimal("10"), Scope: domain.ScopeAll, Currency: "PEN"},
			code: "X",
			want: "usage limit",
		},
		{
			name: "min subtotal",
			rule: domain.DiscountRule{Code: "X", Active: true, MinSubtotal: decPtr("500.00"), Type: domain.DiscountPercent, Value: mustDecimal("10"), Scope: domain.ScopeAll, Currency: "PEN"},
			code: "X",
			want: "minimum",
		},
		{
			name: "currency mismatch",
			rule: domain.DiscountRule{Code: "X", Active: true, Type: domain.DiscountPercent, Value: mustDecimal("10"), Scope: domain.ScopeAll, Currency: "USD"},
			code: "X",
			want: "currency",
		},
		{
			name: "scope empty",
			rule: domain.DiscountRule{Code: "X", Active: true, Type: domain.DiscountPercent, Value: mustDecimal("10"), Scope: domain.ScopeProduct, ProductID: int64Ptr(999), Currency: "PEN"},
			code: "X",
			want: "does not apply",
		},
	}

	lines := []domain.PricedLine{pricedLine(1, "50.00", 1)}
	subtotal := domain.SumLineTotals(lines)

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			outcome, err := applyDiscount(context.Background(), ruleStore(tc.rule), discountNow, tc.code, "PEN", 1, domain.Buyer{}, lines, subtotal)
			if err != nil {
				t.Fatalf("applyDiscount: %v", err)
			}
			if outcome.applied {
				t.Fatal("expected degradation, not application")
			}
			if outcome.message == "" || !containsFold(outcome.message, tc.want) {
				t.Errorf("message = %q, want substring %q", outcome.message, tc.want)
			}
			if !outcome.discountAmount.IsZero() {
				t.Errorf("discountAmount = %s", outcome.discountAmount)
			}
			if !outcome.total.Equal(subtotal) {
				t.Errorf("total = %s, want unchanged subtotal", outcome.total)
			}
		})
	}
}

func TestApplyDiscountSchoolScopeRequiresAffiliation(t *testing.T) {
	lines := []domain.PricedLine{pricedLine(1, "50.00", 1)}
	subtotal := domain.SumLineTotals(lines)

	rule := domain.DiscountRule{
		ID: 4, Code: "S12-BOOKS", Type: domain.DiscountPercent,
		Value: mustDecimal("10"), Active: true,
		Scope: domain.ScopeSchoolProduct, ProductID: int64Ptr(1), Currency: "PEN",
	}

	_, err := applyDiscount(context.Background(), ruleStore(rule), discountNow, "S12-BOOKS", "PEN", 1, domain.Buyer{}, lines, subtotal)
	if !errors.Is(err, ErrSchoolRequiredForDiscount) {
		t.Fatalf("expected ErrSchoolRequiredForDiscount, got %v", err)
	}

	otherSchool := int64(99)
	_, err = applyDiscount(context.Background(), ruleStore(rule), discountNow, "S12-BOOKS", "PEN", 1, domain.Buyer{SchoolID: &otherSchool}, lines, subtotal)
	if !errors.Is(err, ErrDiscountNotAllowedForSchool) {
		t.Fatalf("expected ErrDiscountNotAllowedForSchool, got %v", err)
	}

	matching := int64(12)
	outcome, err := applyDiscount(context.Background(), ruleStore(rule), discountNow, "S12-BOOKS", "PEN", 1, domain.Buyer{SchoolID: &matching}, lines, subtotal)
	if err != nil {
		t.Fatalf("applyDiscount: %v", err)
	}
	if !outcome.applied {
		t.Fatalf("expected application for matching school, got message %q", outcome.message)
	}
}

func TestSchoolCodePrefix(t *testing.T) {
	cases := map[string]int64{
		"S12-BOOKS": 12,
		"S7-X":      7,
		"SAVE10":    0,
		"12-BOOKS":  0,
		"S-BOOKS":   0,
		"":          0,
	}
	for code, want := range cases {
		if got := schoolCodePrefix(code); got != want {
			t.Errorf("schoolCodePrefix(%q) = %d, want %d", code, got, want)
		}
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
