package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/schoolkit/api/internal/platform/auth"
	"github.com/schoolkit/api/internal/platform/httpx"
	"github.com/schoolkit/api/internal/repositories"
	"github.com/schoolkit/api/internal/services"
)

const maxCheckoutBody = 1 << 20

// CheckoutHandler exposes the order-creation pipeline over HTTP.
type CheckoutHandler struct {
	checkout services.CheckoutService
}

// NewCheckoutHandler constructs the checkout handler.
func NewCheckoutHandler(checkout services.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

type checkoutItemPayload struct {
	Type      string `json:"type,omitempty"`
	ProductID *int64 `json:"productId,omitempty"`
	PackID    *int64 `json:"packId,omitempty"`
	Quantity  *int   `json:"quantity,omitempty"`
}

type checkoutShippingPayload struct {
	Address   string `json:"address"`
	Reference string `json:"reference,omitempty"`
	District  string `json:"district,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

type checkoutRequestPayload struct {
	Items        []checkoutItemPayload   `json:"items"`
	Shipping     checkoutShippingPayload `json:"shipping"`
	DiscountCode string                  `json:"discountCode,omitempty"`
	PreviewOnly  bool                    `json:"previewOnly,omitempty"`
}

type appliedDiscountPayload struct {
	Code   string `json:"code"`
	Type   string `json:"type"`
	Amount string `json:"amount"`
}

// Create handles POST /api/v1/checkout.
func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("AUTH_REQUIRED", "authentication required", http.StatusUnauthorized))
		return
	}

	var payload checkoutRequestPayload
	if err := json.NewDecoder(io.LimitReader(r.Body, maxCheckoutBody)).Decode(&payload); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("INVALID_REQUEST", "malformed checkout request body", http.StatusBadRequest))
		return
	}

	items := make([]services.RawCartItem, 0, len(payload.Items))
	for _, item := range payload.Items {
		items = append(items, services.RawCartItem{
			Type:      item.Type,
			ProductID: item.ProductID,
			PackID:    item.PackID,
			Quantity:  item.Quantity,
		})
	}

	result, preview, err := h.checkout.Checkout(ctx, services.CheckoutCommand{
		BuyerID: identity.BuyerID,
		Items:   items,
		Shipping: services.ShippingInput{
			Address:   payload.Shipping.Address,
			Reference: payload.Shipping.Reference,
			District:  payload.Shipping.District,
			Notes:     payload.Shipping.Notes,
		},
		DiscountCode: payload.DiscountCode,
		PreviewOnly:  payload.PreviewOnly,
	})
	if err != nil {
		writeCheckoutError(w, r, err)
		return
	}

	if preview != nil {
		body := map[string]any{
			"ok":             true,
			"preview":        true,
			"normalizedCode": preview.NormalizedCode,
			"applied":        preview.Applied,
			"subtotal":       preview.Subtotal.StringFixed(2),
			"discountAmount": preview.DiscountAmount.StringFixed(2),
			"total":          preview.Total.StringFixed(2),
		}
		if preview.Message != "" {
			body["message"] = preview.Message
		}
		httpx.WriteJSON(w, http.StatusOK, body)
		return
	}

	body := map[string]any{
		"ok":                 true,
		"orderId":            result.OrderID,
		"orderReference":     result.OrderReference,
		"paymentRedirectUrl": result.PaymentRedirectURL,
		"subtotal":           result.Subtotal.StringFixed(2),
		"discountAmount":     result.DiscountAmount.StringFixed(2),
		"total":              result.Total.StringFixed(2),
	}
	if result.SandboxRedirectURL != "" {
		body["sandboxRedirectUrl"] = result.SandboxRedirectURL
	}
	if result.Applied != nil {
		body["appliedDiscount"] = appliedDiscountPayload{
			Code:   result.Applied.Code,
			Type:   string(result.Applied.Type),
			Amount: result.Applied.Amount.StringFixed(2),
		}
	}
	if result.Message != "" {
		body["message"] = result.Message
	}
	httpx.WriteJSON(w, http.StatusOK, body)
}

// writeCheckoutError maps pipeline errors onto the canonical error envelope.
func writeCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var shortfall *repositories.StockShortfallError
	if errors.As(err, &shortfall) && !errors.Is(err, services.ErrOutOfStock) {
		httpx.WriteError(ctx, w, httpx.NewError("INSUFFICIENT_STOCK", shortfall.Error(), http.StatusConflict).
			WithDetails(map[string]any{
				"productId": shortfall.ProductID,
				"available": shortfall.Available,
				"required":  shortfall.Required,
			}))
		return
	}

	switch {
	case errors.Is(err, services.ErrEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("EMPTY_CART", "cart has no purchasable items", http.StatusBadRequest))
	case errors.Is(err, services.ErrInvalidPacksInCart):
		httpx.WriteError(ctx, w, httpx.NewError("INVALID_PACKS_IN_CART", "cart references unavailable packs", http.StatusBadRequest))
	case errors.Is(err, services.ErrInvalidProductsInCart):
		httpx.WriteError(ctx, w, httpx.NewError("INVALID_PRODUCTS_IN_CART", "cart references unavailable products", http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("NOT_FOUND", "cart references unknown catalog entries", http.StatusNotFound))
	case errors.Is(err, services.ErrNoPrice):
		httpx.WriteError(ctx, w, httpx.NewError("NO_PRICE", "an item in the cart has no active price", http.StatusBadRequest))
	case errors.Is(err, services.ErrAddressRequired):
		httpx.WriteError(ctx, w, httpx.NewError("ADDRESS_REQUIRED", "a shipping address is required", http.StatusBadRequest))
	case errors.Is(err, services.ErrBuyerProfileRequired):
		httpx.WriteError(ctx, w, httpx.NewError("BUYER_PROFILE_REQUIRED", "no buyer profile for the authenticated user", http.StatusForbidden))
	case errors.Is(err, services.ErrSchoolRequiredForDiscount):
		httpx.WriteError(ctx, w, httpx.NewError("SCHOOL_REQUIRED_FOR_DISCOUNT", "discount requires a school affiliation", http.StatusForbidden))
	case errors.Is(err, services.ErrDiscountNotAllowedForSchool):
		httpx.WriteError(ctx, w, httpx.NewError("DISCOUNT_NOT_ALLOWED_FOR_SCHOOL", "discount is not valid for the buyer's school", http.StatusForbidden))
	case errors.Is(err, services.ErrOutOfStock):
		httpx.WriteError(ctx, w, httpx.NewError("OUT_OF_STOCK", "stock reservation failed", http.StatusConflict))
	case errors.Is(err, services.ErrPaymentGateway):
		httpx.WriteError(ctx, w, httpx.NewError("PAYMENT_GATEWAY_ERROR", "payment session could not be created", http.StatusBadGateway))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("INTERNAL_ERROR", "checkout failed", http.StatusInternalServerError))
	}
}
