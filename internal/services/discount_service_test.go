package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/schoolkit/api/internal/domain"
)

func TestGetPublicDiscount(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	maxUses := 10

	svc, err := NewDiscountService(DiscountServiceDeps{
		Discounts: ruleStore(domain.DiscountRule{
			ID: 1, Code: "SAVE10", Type: domain.DiscountPercent,
			Value: mustDecimal("10"), Active: true,
			EndsAt:  timePtr(now.Add(-time.Hour)),
			MaxUses: &maxUses, UsesCount: 10,
			Scope: domain.ScopeAll, Currency: "PEN",
		}),
		Clock: func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewDiscountService: %v", err)
	}

	got, err := svc.GetPublicDiscount(context.Background(), "  save10 ")
	if err != nil {
		t.Fatalf("GetPublicDiscount: %v", err)
	}
	if got.Code != "SAVE10" || !got.Active {
		t.Errorf("discount = %+v", got)
	}
	if !got.Expired {
		t.Error("expected expired")
	}
	if !got.Depleted {
		t.Error("expected depleted")
	}

	if _, err := svc.GetPublicDiscount(context.Background(), "NOPE"); !errors.Is(err, ErrDiscountNotFound) {
		t.Fatalf("expected ErrDiscountNotFound, got %v", err)
	}
	if _, err := svc.GetPublicDiscount(context.Background(), "   "); !errors.Is(err, ErrDiscountNotFound) {
		t.Fatalf("expected ErrDiscountNotFound for blank code, got %v", err)
	}
}

func TestNewDiscountServiceRequiresStore(t *testing.T) {
	if _, err := NewDiscountService(DiscountServiceDeps{}); err == nil {
		t.Fatal("expected error for missing store")
	}
}
