package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MercadoPagoLogger defines the logging contract for gateway operations.
type MercadoPagoLogger func(ctx context.Context, event string, fields map[string]any)

// MercadoPagoConfig configures the MercadoPago gateway adapter.
type MercadoPagoConfig struct {
	AccessToken     string
	BaseURL         string
	NotificationURL string
	SuccessURL      string
	FailureURL      string
	HTTPClient      *http.Client
	Logger          MercadoPagoLogger
}

// MercadoPago implements Gateway against the MercadoPago preference API. Every
// order gets a fresh preference; the returned init point is the buyer's
// redirect target.
type MercadoPago struct {
	accessToken     string
	baseURL         string
	notificationURL string
	successURL      string
	failureURL      string
	httpClient      *http.Client
	logger          MercadoPagoLogger
}

// NewMercadoPago constructs the gateway adapter.
func NewMercadoPago(cfg MercadoPagoConfig) (*MercadoPago, error) {
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, errors.New("mercadopago: access token is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("mercadopago: base url is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &MercadoPago{
		accessToken:     token,
		baseURL:         baseURL,
		notificationURL: strings.TrimSpace(cfg.NotificationURL),
		successURL:      strings.TrimSpace(cfg.SuccessURL),
		failureURL:      strings.TrimSpace(cfg.FailureURL),
		httpClient:      httpClient,
		logger:          logger,
	}, nil
}

type preferenceItem struct {
	Title      string  `json:"title"`
	ID         string  `json:"id,omitempty"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type preferenceBackURLs struct {
	Success string `json:"success,omitempty"`
	Pending string `json:"pending,omitempty"`
	Failure string `json:"failure,omitempty"`
}

type preferenceRequest struct {
	Items             []preferenceItem    `json:"items"`
	ExternalReference string              `json:"external_reference"`
	NotificationURL   string              `json:"notification_url,omitempty"`
	BackURLs          *preferenceBackURLs `json:"back_urls,omitempty"`
	AutoReturn        string              `json:"auto_return,omitempty"`
	Metadata          map[string]string   `json:"metadata,omitempty"`
}

type preferenceResponse struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// CreatePaymentSession creates a preference for the order and returns the
// redirect targets. A non-2xx status or transport error maps to
// ErrGatewayUnavailable.
func (m *MercadoPago) CreatePaymentSession(ctx context.Context, req SessionRequest) (Session, error) {
	items := make([]preferenceItem, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity <= 0 || item.UnitPrice.LessThanOrEqual(decimal.Zero) {
			continue
		}
		price, _ := item.UnitPrice.Round(2).Float64()
		items = append(items, preferenceItem{
			Title:      item.Title,
			ID:         item.SaleCode,
			Quantity:   item.Quantity,
			UnitPrice:  price,
			CurrencyID: item.Currency,
		})
	}
	if len(items) == 0 {
		amount, _ := req.Amount.Round(2).Float64()
		items = append(items, preferenceItem{
			Title:      "Order " + req.OrderReference,
			Quantity:   1,
			UnitPrice:  amount,
			CurrencyID: req.Currency,
		})
	}

	payload := preferenceRequest{
		Items:             items,
		ExternalReference: req.OrderReference,
		NotificationURL:   m.notificationURL,
		Metadata:          req.Metadata,
	}
	if m.successURL != "" || m.failureURL != "" {
		payload.BackURLs = &preferenceBackURLs{
			Success: m.successURL,
			Pending: m.successURL,
			Failure: m.failureURL,
		}
		if m.successURL != "" {
			payload.AutoReturn = "approved"
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Session{}, fmt.Errorf("mercadopago: encode preference: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.baseURL+"/checkout/preferences", bytes.NewReader(body))
	if err != nil {
		return Session{}, fmt.Errorf("mercadopago: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+m.accessToken)
	httpReq.Header.Set("Content-Type", "application/json")
	if req.PaymentIntentID != "" {
		httpReq.Header.Set("X-Idempotency-Key", req.PaymentIntentID)
	}

	resp, err := m.httpClient.Do(httpReq)
	if err != nil {
		m.logger(ctx, "mercadopago.preference.transport_error", map[string]any{
			"order_reference": req.OrderReference,
			"error":           err.Error(),
		})
		return Session{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Session{}, fmt.Errorf("%w: read response: %v", ErrGatewayUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		m.logger(ctx, "mercadopago.preference.rejected", map[string]any{
			"order_reference": req.OrderReference,
			"status":          resp.StatusCode,
		})
		return Session{}, fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var pref preferenceResponse
	if err := json.Unmarshal(respBody, &pref); err != nil {
		return Session{}, fmt.Errorf("%w: decode response: %v", ErrGatewayUnavailable, err)
	}
	if pref.ID == "" || pref.InitPoint == "" {
		return Session{}, fmt.Errorf("%w: incomplete preference response", ErrGatewayUnavailable)
	}

	m.logger(ctx, "mercadopago.preference.created", map[string]any{
		"order_reference": req.OrderReference,
		"preference_id":   pref.ID,
	})
	return Session{
		ID:          pref.ID,
		Provider:    "mercadopago",
		RedirectURL: pref.InitPoint,
		SandboxURL:  pref.SandboxInitPoint,
	}, nil
}
