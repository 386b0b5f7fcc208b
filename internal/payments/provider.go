package payments

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrGatewayUnavailable is returned when the payment gateway rejects or fails
// to answer a session request. Checkout treats it as a hard failure and
// compensates.
var ErrGatewayUnavailable = errors.New("payments: gateway unavailable")

// SessionItem describes one display line included in a payment session.
// Zero-priced pack component lines are never sent to the gateway.
type SessionItem struct {
	Title     string
	SaleCode  string
	Quantity  int
	UnitPrice decimal.Decimal
	Currency  string
}

// SessionRequest captures the payload required to open a redirect session for
// one order.
type SessionRequest struct {
	OrderReference  string
	PaymentIntentID string
	Amount          decimal.Decimal
	Currency        string
	PayerName       string
	Items           []SessionItem
	Metadata        map[string]string
}

// Session is the gateway-side checkout session the buyer is redirected to.
type Session struct {
	ID          string
	Provider    string
	RedirectURL string
	SandboxURL  string
}

// Gateway is the contract payment adapters implement. CreatePaymentSession
// must not mutate local state; the caller owns persistence and compensation.
type Gateway interface {
	CreatePaymentSession(ctx context.Context, req SessionRequest) (Session, error)
}
