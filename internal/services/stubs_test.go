package services

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/schoolkit/api/internal/domain"
	"github.com/schoolkit/api/internal/payments"
	"github.com/schoolkit/api/internal/repositories"
)

type stubCatalogStore struct {
	getProductsFunc func(ctx context.Context, ids []int64) (map[int64]domain.Product, error)
	getPacksFunc    func(ctx context.Context, ids []int64) (map[int64]domain.Pack, error)
}

func (s *stubCatalogStore) GetProducts(ctx context.Context, ids []int64) (map[int64]domain.Product, error) {
	if s.getProductsFunc != nil {
		return s.getProductsFunc(ctx, ids)
	}
	return map[int64]domain.Product{}, nil
}

func (s *stubCatalogStore) GetPacks(ctx context.Context, ids []int64) (map[int64]domain.Pack, error) {
	if s.getPacksFunc != nil {
		return s.getPacksFunc(ctx, ids)
	}
	return map[int64]domain.Pack{}, nil
}

type stubPriceStore struct {
	getUnitPricesFunc func(ctx context.Context, priceListID int64, productIDs, packIDs []int64) (repositories.PriceSet, error)
}

func (s *stubPriceStore) GetUnitPrices(ctx context.Context, priceListID int64, productIDs, packIDs []int64) (repositories.PriceSet, error) {
	if s.getUnitPricesFunc != nil {
		return s.getUnitPricesFunc(ctx, priceListID, productIDs, packIDs)
	}
	return repositories.PriceSet{}, nil
}

type stubStockStore struct {
	getAvailableFunc    func(ctx context.Context, ids []int64) (map[int64]int, error)
	reserveForOrderFunc func(ctx context.Context, orderID int64) error
	releaseForOrderFunc func(ctx context.Context, orderID int64, reason string) error
}

func (s *stubStockStore) GetAvailable(ctx context.Context, ids []int64) (map[int64]int, error) {
	if s.getAvailableFunc != nil {
		return s.getAvailableFunc(ctx, ids)
	}
	return map[int64]int{}, nil
}

func (s *stubStockStore) ReserveForOrder(ctx context.Context, orderID int64) error {
	if s.reserveForOrderFunc != nil {
		return s.reserveForOrderFunc(ctx, orderID)
	}
	return nil
}

func (s *stubStockStore) ReleaseForOrder(ctx context.Context, orderID int64, reason string) error {
	if s.releaseForOrderFunc != nil {
		return s.releaseForOrderFunc(ctx, orderID, reason)
	}
	return nil
}

type stubBuyerStore struct {
	findByIDFunc func(ctx context.Context, buyerID int64) (domain.Buyer, error)
}

func (s *stubBuyerStore) FindByID(ctx context.Context, buyerID int64) (domain.Buyer, error) {
	if s.findByIDFunc != nil {
		return s.findByIDFunc(ctx, buyerID)
	}
	return domain.Buyer{}, repositories.ErrNotFound
}

type stubOrderStore struct {
	insertOrderFunc            func(ctx context.Context, order domain.Order) (domain.Order, error)
	insertReservationLinesFunc func(ctx context.Context, orderID int64, lines []domain.ReservationLine) error
	insertHeaderLinesFunc      func(ctx context.Context, orderID int64, lines []domain.PricedLine) error
	deleteOrderFunc            func(ctx context.Context, orderID int64) error
	insertPaymentIntentFunc    func(ctx context.Context, intent domain.PaymentIntent) error
	setPaymentPreferenceFunc   func(ctx context.Context, intentID, preferenceID string) error
}

func (s *stubOrderStore) InsertOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	if s.insertOrderFunc != nil {
		return s.insertOrderFunc(ctx, order)
	}
	order.ID = 1
	return order, nil
}

func (s *stubOrderStore) InsertReservationLines(ctx context.Context, orderID int64, lines []domain.ReservationLine) error {
	if s.insertReservationLinesFunc != nil {
		return s.insertReservationLinesFunc(ctx, orderID, lines)
	}
	return nil
}

func (s *stubOrderStore) InsertHeaderLines(ctx context.Context, orderID int64, lines []domain.PricedLine) error {
	if s.insertHeaderLinesFunc != nil {
		return s.insertHeaderLinesFunc(ctx, orderID, lines)
	}
	return nil
}

func (s *stubOrderStore) DeleteOrder(ctx context.Context, orderID int64) error {
	if s.deleteOrderFunc != nil {
		return s.deleteOrderFunc(ctx, orderID)
	}
	return nil
}

func (s *stubOrderStore) InsertPaymentIntent(ctx context.Context, intent domain.PaymentIntent) error {
	if s.insertPaymentIntentFunc != nil {
		return s.insertPaymentIntentFunc(ctx, intent)
	}
	return nil
}

func (s *stubOrderStore) SetPaymentPreference(ctx context.Context, intentID, preferenceID string) error {
	if s.setPaymentPreferenceFunc != nil {
		return s.setPaymentPreferenceFunc(ctx, intentID, preferenceID)
	}
	return nil
}

type stubDiscountStore struct {
	findByCodeFunc       func(ctx context.Context, code string) (domain.DiscountRule, error)
	incrementUsageFunc   func(ctx context.Context, ruleID int64) error
	insertRedemptionFunc func(ctx context.Context, redemption repositories.DiscountRedemption) error
}

func (s *stubDiscountStore) FindByCode(ctx context.Context, code string) (domain.DiscountRule, error) {
	if s.findByCodeFunc != nil {
		return s.findByCodeFunc(ctx, code)
	}
	return domain.DiscountRule{}, repositories.ErrNotFound
}

func (s *stubDiscountStore) IncrementUsage(ctx context.Context, ruleID int64) error {
	if s.incrementUsageFunc != nil {
		return s.incrementUsageFunc(ctx, ruleID)
	}
	return nil
}

func (s *stubDiscountStore) InsertRedemption(ctx context.Context, redemption repositories.DiscountRedemption) error {
	if s.insertRedemptionFunc != nil {
		return s.insertRedemptionFunc(ctx, redemption)
	}
	return nil
}

type stubGateway struct {
	createFunc func(ctx context.Context, req payments.SessionRequest) (payments.Session, error)
}

func (s *stubGateway) CreatePaymentSession(ctx context.Context, req payments.SessionRequest) (payments.Session, error) {
	if s.createFunc != nil {
		return s.createFunc(ctx, req)
	}
	return payments.Session{ID: "pref-1", RedirectURL: "https://pay.test/1"}, nil
}

// memoryStockStore is a reference stock engine with the same conditional
// decrement semantics as the Postgres store, used for contention tests.
type memoryStockStore struct {
	mu           sync.Mutex
	available    map[int64]int
	reservations map[int64]map[int64]int
	requirements func(orderID int64) map[int64]int
}

func newMemoryStockStore(available map[int64]int, requirements func(orderID int64) map[int64]int) *memoryStockStore {
	avail := make(map[int64]int, len(available))
	for id, qty := range available {
		avail[id] = qty
	}
	return &memoryStockStore{
		available:    avail,
		reservations: make(map[int64]map[int64]int),
		requirements: requirements,
	}
}

func (s *memoryStockStore) GetAvailable(ctx context.Context, ids []int64) (map[int64]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make(map[int64]int, len(ids))
	for _, id := range ids {
		result[id] = s.available[id]
	}
	return result, nil
}

func (s *memoryStockStore) ReserveForOrder(ctx context.Context, orderID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	required := s.requirements(orderID)
	for productID, quantity := range required {
		if s.available[productID] < quantity {
			return &repositories.StockShortfallError{
				ProductID: productID,
				Available: s.available[productID],
				Required:  quantity,
			}
		}
	}
	held := make(map[int64]int, len(required))
	for productID, quantity := range required {
		s.available[productID] -= quantity
		held[productID] = quantity
	}
	s.reservations[orderID] = held
	return nil
}

func (s *memoryStockStore) ReleaseForOrder(ctx context.Context, orderID int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for productID, quantity := range s.reservations[orderID] {
		s.available[productID] += quantity
	}
	delete(s.reservations, orderID)
	return nil
}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var errStub = errors.New("stub failure")

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
