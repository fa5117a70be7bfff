package cart

import (
	"context"
	"errors"
	"net/http"

	"github.com/noah-isme/netcommerce-gateway/internal/common"
	"github.com/noah-isme/netcommerce-gateway/internal/obs"
	"github.com/noah-isme/netcommerce-gateway/internal/order"
)

// ItemStore reads a session cart.
type ItemStore interface {
	Items(ctx context.Context, sessionID string) (map[string]string, error)
}

// Handler serves the buyer cart. The cart stays intact until a payment is
// approved, so cancelling an unpaid order leaves it restored.
type Handler struct {
	Carts      ItemStore
	Orders     order.Store
	CookieName string
	Nonces     order.CancelNonces
}

// View returns the session cart. A cancel_order query cancels that unpaid
// order first when it belongs to the same session and carries its nonce.
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	if h.Carts == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart store not configured", nil)
		return
	}
	ctx := r.Context()
	resp := map[string]any{}
	if raw := r.URL.Query().Get("cancel_order"); raw != "" && h.Orders != nil {
		cancelled, err := h.cancel(r, raw)
		if err != nil && !errors.Is(err, order.ErrNotFound) {
			obs.Logger(ctx).Error().Err(err).Str("order_id", raw).Msg("cancel order")
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to cancel order", nil)
			return
		}
		resp["order_cancelled"] = cancelled
	}
	sessionID := ""
	if c, err := r.Cookie(h.CookieName); err == nil {
		sessionID = c.Value
	}
	items := map[string]string{}
	if sessionID != "" {
		var err error
		items, err = h.Carts.Items(ctx, sessionID)
		if err != nil {
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load cart", nil)
			return
		}
	}
	resp["items"] = items
	common.JSON(w, http.StatusOK, resp)
}

func (h *Handler) cancel(r *http.Request, raw string) (bool, error) {
	id, err := order.ParseID(raw)
	if err != nil {
		return false, order.ErrNotFound
	}
	ord, err := h.Orders.Get(r.Context(), id)
	if err != nil {
		return false, err
	}
	if !order.OwnedBy(ord, r, h.CookieName) {
		return false, order.ErrNotFound
	}
	if !h.Nonces.Valid(ord, r.URL.Query().Get("nonce")) {
		return false, nil
	}
	return h.Orders.Transition(r.Context(), id, order.CancelledByCustomer())
}
