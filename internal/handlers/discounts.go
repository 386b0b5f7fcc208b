package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/schoolkit/api/internal/platform/httpx"
	"github.com/schoolkit/api/internal/services"
)

// DiscountHandler exposes public discount code lookups.
type DiscountHandler struct {
	discounts services.DiscountService
}

// NewDiscountHandler constructs the discount handler.
func NewDiscountHandler(discounts services.DiscountService) *DiscountHandler {
	return &DiscountHandler{discounts: discounts}
}

// Get handles GET /api/v1/discounts/{code}.
func (h *DiscountHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	discount, err := h.discounts.GetPublicDiscount(ctx, chi.URLParam(r, "code"))
	if err != nil {
		if errors.Is(err, services.ErrDiscountNotFound) {
			httpx.WriteError(ctx, w, httpx.NewError("NOT_FOUND", "discount code not found", http.StatusNotFound))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("INTERNAL_ERROR", "discount lookup failed", http.StatusInternalServerError))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"code":     discount.Code,
		"type":     string(discount.Type),
		"value":    discount.Value.StringFixed(2),
		"active":   discount.Active,
		"expired":  discount.Expired,
		"depleted": discount.Depleted,
	})
}
