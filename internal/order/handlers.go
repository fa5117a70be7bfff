package order

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/netcommerce-gateway/internal/common"
	"github.com/noah-isme/netcommerce-gateway/internal/obs"
)

// Handler serves the buyer-facing order confirmation.
type Handler struct {
	Store      Store
	CookieName string
}

type noteResponse struct {
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type receivedResponse struct {
	ID            int64           `json:"id"`
	Status        Status          `json:"status"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency"`
	TransactionID string          `json:"transaction_id,omitempty"`
	StatusReason  string          `json:"status_reason,omitempty"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	Notes         []noteResponse  `json:"notes"`
}

// Received renders the order confirmation for the buyer who placed it.
func (h *Handler) Received(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	id, err := ParseID(chi.URLParam(r, "orderId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	ord, err := h.Store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		obs.Logger(r.Context()).Error().Err(err).Int64("order_id", id).Msg("load order")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	if !OwnedBy(ord, r, h.CookieName) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
		return
	}
	notes, err := h.Store.Notes(r.Context(), id)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order notes", nil)
		return
	}
	resp := receivedResponse{
		ID:            ord.ID,
		Status:        ord.Status,
		Total:         ord.Total,
		Currency:      ord.Currency,
		TransactionID: ord.TransactionID,
		StatusReason:  ord.StatusReason,
		PaidAt:        ord.PaidAt,
		Notes:         make([]noteResponse, 0, len(notes)),
	}
	for _, n := range notes {
		resp.Notes = append(resp.Notes, noteResponse{Body: n.Body, CreatedAt: n.CreatedAt})
	}
	common.JSON(w, http.StatusOK, resp)
}

// ParseID parses a positive order id from a path segment.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("order: invalid id")
	}
	return id, nil
}

// OwnedBy reports whether the request carries the cart session the order was
// placed from. Orders without a session are visible to anyone holding the id.
func OwnedBy(o Order, r *http.Request, cookieName string) bool {
	if o.SessionID == "" || cookieName == "" {
		return true
	}
	c, err := r.Cookie(cookieName)
	return err == nil && c.Value == o.SessionID
}
