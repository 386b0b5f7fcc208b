package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/schoolkit/api/internal/domain"
	"github.com/schoolkit/api/internal/repositories"
)

// DiscountStore looks up discount rules by code and records redemptions.
type DiscountStore struct {
	db *sql.DB
}

// NewDiscountStore constructs a DiscountStore over the shared connection pool.
func NewDiscountStore(db *sql.DB) *DiscountStore {
	return &DiscountStore{db: db}
}

// FindByCode loads a rule by its normalised code. Codes are stored upper-case;
// lookup is case-insensitive.
func (s *DiscountStore) FindByCode(ctx context.Context, code string) (domain.DiscountRule, error) {
	var rule domain.DiscountRule
	var (
		startsAt    sql.NullTime
		endsAt      sql.NullTime
		minSubtotal sql.NullString
		maxUses     sql.NullInt64
		productID   sql.NullInt64
		priceListID sql.NullInt64
		schoolID    sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, code, type, value, active, starts_at, ends_at,
		        min_subtotal, max_uses, uses_count, scope,
		        product_id, price_list_id, school_id, currency
		 FROM discount_rules
		 WHERE code = $1`,
		strings.ToUpper(strings.TrimSpace(code))).Scan(
		&rule.ID, &rule.Code, &rule.Type, &rule.Value, &rule.Active,
		&startsAt, &endsAt, &minSubtotal, &maxUses, &rule.UsesCount,
		&rule.Scope, &productID, &priceListID, &schoolID, &rule.Currency,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DiscountRule{}, repositories.ErrNotFound
		}
		return domain.DiscountRule{}, fmt.Errorf("discounts: find: %w", err)
	}

	if startsAt.Valid {
		t := startsAt.Time
		rule.StartsAt = &t
	}
	if endsAt.Valid {
		t := endsAt.Time
		rule.EndsAt = &t
	}
	if minSubtotal.Valid {
		min, err := decimal.NewFromString(minSubtotal.String)
		if err != nil {
			return domain.DiscountRule{}, fmt.Errorf("discounts: parse min subtotal: %w", err)
		}
		rule.MinSubtotal = &min
	}
	if maxUses.Valid {
		n := int(maxUses.Int64)
		rule.MaxUses = &n
	}
	if productID.Valid {
		rule.ProductID = &productID.Int64
	}
	if priceListID.Valid {
		rule.PriceListID = &priceListID.Int64
	}
	if schoolID.Valid {
		rule.SchoolID = &schoolID.Int64
	}
	return rule, nil
}

// IncrementUsage bumps the rule's usage counter. The increment is not
// serialised against MaxUses; slight over-redemption under contention is
// accepted.
func (s *DiscountStore) IncrementUsage(ctx context.Context, ruleID int64) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE discount_rules SET uses_count = uses_count + 1 WHERE id = $1`,
		ruleID); err != nil {
		return fmt.Errorf("discounts: increment usage: %w", err)
	}
	return nil
}

// InsertRedemption records one application of a rule to an order.
func (s *DiscountStore) InsertRedemption(ctx context.Context, redemption repositories.DiscountRedemption) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO discount_redemptions (rule_id, order_id, buyer_id, amount, redeemed_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		redemption.RuleID, redemption.OrderID, redemption.BuyerID,
		redemption.Amount, redemption.RedeemedAt); err != nil {
		return fmt.Errorf("discounts: insert redemption: %w", err)
	}
	return nil
}
