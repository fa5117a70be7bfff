package payment

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/netcommerce-gateway/internal/common"
	"github.com/noah-isme/netcommerce-gateway/internal/config"
	"github.com/noah-isme/netcommerce-gateway/internal/netcommerce"
	"github.com/noah-isme/netcommerce-gateway/internal/obs"
	"github.com/noah-isme/netcommerce-gateway/internal/order"
)

// CallbackRoute is where NetCommerce posts transaction results.
const CallbackRoute = "/wc-api/netcommerce"

// MethodID identifies the gateway to the checkout.
const MethodID = "netcommerce"

// Links builds the shop URLs the gateway redirects buyers to.
type Links interface {
	CartURL() string
	OrderReceivedURL(orderID int64) string
	OrderPayURL(orderID int64) string
	CancelOrderURL(orderID int64, nonce string) string
}

// Handler exposes the NetCommerce checkout endpoints.
type Handler struct {
	Svc     *Service
	Gateway config.Gateway
	Links   Links
	// CookieName is the cart session cookie. Orders placed from a session are
	// only payable by requests carrying that session.
	CookieName string
	Nonces     order.CancelNonces
}

type methodResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// Methods lists the gateway as a checkout payment method.
func (h *Handler) Methods(w http.ResponseWriter, _ *http.Request) {
	common.JSON(w, http.StatusOK, map[string]any{
		"data": []methodResponse{{
			ID:          MethodID,
			Title:       h.Gateway.Title,
			Description: h.Gateway.Description,
			Icon:        h.Gateway.Icon,
			Enabled:     h.Gateway.Enabled,
		}},
	})
}

// Process starts a NetCommerce payment and points the buyer at the pay page.
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil || h.Svc.Orders == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "payment service not configured", nil)
		return
	}
	if !h.Svc.Enabled {
		common.JSONError(w, http.StatusServiceUnavailable, "PAYMENT_UNAVAILABLE", "payment method unavailable", nil)
		return
	}
	id, err := order.ParseID(chi.URLParam(r, "orderId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	ord, err := h.ownedOrder(r, id)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		obs.Logger(r.Context()).Error().Err(err).Int64("order_id", id).Msg("load order")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	if !ord.NeedsPayment() {
		common.JSONError(w, http.StatusConflict, "ORDER_NOT_PAYABLE", "order does not need payment", map[string]any{"status": ord.Status})
		return
	}
	if _, err := netcommerce.CurrencyCode(ord.Currency); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "UNSUPPORTED_CURRENCY", "currency not supported by this payment method", map[string]any{
			"currency":  ord.Currency,
			"supported": netcommerce.SupportedCurrencies(),
		})
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"result":   "success",
		"redirect": h.Links.OrderPayURL(id),
	})
}

// Pay renders the auto-submitting form that posts the signed request to
// NetCommerce. Each render signs with a fresh order reference.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := order.ParseID(chi.URLParam(r, "orderId"))
	if err != nil {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}
	if h.Svc != nil && h.Svc.Orders != nil {
		if _, err := h.ownedOrder(r, id); err != nil {
			if errors.Is(err, order.ErrNotFound) {
				http.Error(w, "order not found", http.StatusNotFound)
				return
			}
			obs.Logger(ctx).Error().Err(err).Int64("order_id", id).Msg("load order")
			h.unavailable(w)
			return
		}
	}
	req, ord, err := h.Svc.Prepare(ctx, id)
	switch {
	case err == nil:
	case errors.Is(err, order.ErrNotFound):
		http.Error(w, "order not found", http.StatusNotFound)
		return
	case errors.Is(err, ErrOrderNotPayable):
		http.Error(w, "order does not need payment", http.StatusConflict)
		return
	default:
		obs.Logger(ctx).Error().Err(err).Int64("order_id", id).Str("reason", netcommerce.Reason(err)).Msg("netcommerce sign failed")
		h.unavailable(w)
		return
	}

	var buf bytes.Buffer
	if err := renderForm(&buf, h.Gateway.Title, h.Gateway.Language, h.Gateway.RequestURL, h.Links.CancelOrderURL(id, h.Nonces.Nonce(ord)), req); err != nil {
		obs.Logger(ctx).Error().Err(err).Int64("order_id", id).Msg("render payment form")
		h.unavailable(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// ownedOrder loads id and hides it as not found from other cart sessions.
func (h *Handler) ownedOrder(r *http.Request, id int64) (order.Order, error) {
	ord, err := h.Svc.Orders.Get(r.Context(), id)
	if err != nil {
		return order.Order{}, err
	}
	if !order.OwnedBy(ord, r, h.CookieName) {
		return order.Order{}, order.ErrNotFound
	}
	return ord, nil
}

func (h *Handler) unavailable(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusServiceUnavailable)
	_ = unavailableTemplate.Execute(w, unavailableView{Title: h.Gateway.Title, CartURL: h.Links.CartURL()})
}

// Callback receives the NetCommerce result post. A verified callback sends the
// buyer to the order confirmation; anything rejected goes back to the cart.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		obs.Logger(ctx).Warn().Err(err).Msg("netcommerce callback unreadable")
		common.Redirect(w, r, h.Links.CartURL())
		return
	}
	settlement, err := h.Svc.Settle(ctx, r.PostForm)
	if err != nil {
		reason := RejectReason(err)
		logger := obs.Logger(ctx)
		if reason == "error" {
			logger.Error().Err(err).Int64("order_id", settlement.OrderID).Msg("netcommerce settlement failed")
			http.Error(w, "payment could not be recorded", http.StatusServiceUnavailable)
			return
		}
		logger.Warn().
			Str("reason", reason).
			Str("order_reference", r.PostForm.Get(netcommerce.FieldIndex)).
			Msg("netcommerce callback rejected")
		common.Redirect(w, r, h.Links.CartURL())
		return
	}
	obs.Logger(ctx).Info().
		Int64("order_id", settlement.OrderID).
		Str("result", string(settlement.Result)).
		Bool("applied", settlement.Applied).
		Msg("netcommerce callback settled")
	common.Redirect(w, r, h.Links.OrderReceivedURL(settlement.OrderID))
}
