package payment_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/netcommerce-gateway/internal/config"
	"github.com/noah-isme/netcommerce-gateway/internal/netcommerce"
	"github.com/noah-isme/netcommerce-gateway/internal/order"
	"github.com/noah-isme/netcommerce-gateway/internal/payment"
)

var testGateway = config.Gateway{
	Enabled:        true,
	Title:          "NetCommerce",
	Description:    "Pay securely by card.",
	Icon:           config.IconMedium,
	MerchantNumber: "M1",
	SHAKey:         "s3cr3t",
	RequestURL:     "https://pay.example/checkout",
	TestMode:       true,
	Language:       "EN",
	UnmappedPolicy: config.UnmappedIgnore,
}

func newRouter(svc *payment.Service) http.Handler {
	h := &payment.Handler{
		Svc:     svc,
		Gateway: testGateway,
		Links:   &config.Config{PublicBaseURL: "https://shop.example"},
	}
	r := chi.NewRouter()
	r.Get("/api/v1/payments/methods", h.Methods)
	r.Post("/api/v1/checkout/{orderId}/netcommerce", h.Process)
	r.Get("/checkout/order-pay/{orderId}", h.Pay)
	r.Post(payment.CallbackRoute, h.Callback)
	return r
}

func postForm(router http.Handler, path string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestMethods(t *testing.T) {
	svc, _, _ := newService(config.UnmappedIgnore)
	rr := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/payments/methods", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Data []struct {
			ID      string `json:"id"`
			Title   string `json:"title"`
			Icon    string `json:"icon"`
			Enabled bool   `json:"enabled"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	require.Equal(t, payment.MethodID, body.Data[0].ID)
	require.Equal(t, config.IconMedium, body.Data[0].Icon)
	require.True(t, body.Data[0].Enabled)
}

func TestProcessRedirectsToPayPage(t *testing.T) {
	svc, _, _ := newService(config.UnmappedIgnore, pendingOrder(42))
	rr := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/checkout/42/netcommerce", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "success", body["result"])
	require.Equal(t, "https://shop.example/checkout/order-pay/42", body["redirect"])
}

func TestProcessErrors(t *testing.T) {
	paid := pendingOrder(1)
	paid.Status = order.StatusPaid
	eur := pendingOrder(2)
	eur.Currency = "EUR"
	svc, _, _ := newService(config.UnmappedIgnore, paid, eur)
	router := newRouter(svc)

	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/checkout/1/netcommerce", http.StatusConflict},
		{"/api/v1/checkout/2/netcommerce", http.StatusUnprocessableEntity},
		{"/api/v1/checkout/3/netcommerce", http.StatusNotFound},
		{"/api/v1/checkout/abc/netcommerce", http.StatusBadRequest},
	}
	for _, tc := range tests {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, tc.path, nil))
		require.Equal(t, tc.want, rr.Code, tc.path)
	}
}

func TestPayRendersAutoSubmitForm(t *testing.T) {
	svc, store, _ := newService(config.UnmappedIgnore, pendingOrder(42))
	rr := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/checkout/order-pay/42", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	require.Contains(t, body, `action="https://pay.example/checkout"`)
	require.Contains(t, body, `id="netcommerce_payment_form"`)
	require.Contains(t, body, `name="txtAmount" value="19.99"`)
	require.Contains(t, body, `name="txtCurrency" value="840"`)
	require.Contains(t, body, `name="txtIndex" value="42_`)
	require.Contains(t, body, `name="payment_mode" value="test"`)
	require.Contains(t, body, `value="Pay now"`)
	require.Contains(t, body, "cancel_order=42")
	require.Contains(t, body, ".submit()")
	require.NotContains(t, body, `name="address_line1"`)
	require.NotContains(t, body, "s3cr3t")

	ord, err := store.Get(t.Context(), 42)
	require.NoError(t, err)
	require.Equal(t, order.StatusPending, ord.Status)
}

func TestPayUnavailableOnSigningError(t *testing.T) {
	eur := pendingOrder(42)
	eur.Currency = "EUR"
	svc, _, _ := newService(config.UnmappedIgnore, eur)
	rr := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/checkout/order-pay/42", nil))

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Contains(t, rr.Body.String(), "currently unavailable")
	require.NotContains(t, rr.Body.String(), "<form")
}

func TestPayStatusCodes(t *testing.T) {
	paid := pendingOrder(1)
	paid.Status = order.StatusPaid
	svc, _, _ := newService(config.UnmappedIgnore, paid)
	router := newRouter(svc)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/checkout/order-pay/1", nil))
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/checkout/order-pay/9", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCallbackApprovedRedirectsToConfirmation(t *testing.T) {
	svc, store, _ := newService(config.UnmappedIgnore, pendingOrder(42))
	rr := postForm(newRouter(svc), payment.CallbackRoute, callback("s3cr3t", nil))

	require.Equal(t, http.StatusFound, rr.Code)
	require.Equal(t, "https://shop.example/checkout/order-received/42", rr.Header().Get("Location"))
	ord, err := store.Get(t.Context(), 42)
	require.NoError(t, err)
	require.Equal(t, order.StatusPaid, ord.Status)
}

func TestCallbackDeclinedRedirectsToConfirmation(t *testing.T) {
	svc, _, _ := newService(config.UnmappedIgnore, pendingOrder(42))
	rr := postForm(newRouter(svc), payment.CallbackRoute, callback("s3cr3t", map[string]string{netcommerce.FieldResultValue: "0"}))

	require.Equal(t, http.StatusFound, rr.Code)
	require.Equal(t, "https://shop.example/checkout/order-received/42", rr.Header().Get("Location"))
}

func TestCallbackRejectedRedirectsToCart(t *testing.T) {
	tampered := callback("s3cr3t", nil)
	tampered.Set(netcommerce.FieldAuthNumber, "FORGED")
	missing := callback("s3cr3t", nil)
	missing.Del(netcommerce.FieldResultMessage)

	tests := map[string]url.Values{
		"tampered":      tampered,
		"missing":       missing,
		"wrong secret":  callback("other", nil),
		"unknown order": callback("s3cr3t", map[string]string{netcommerce.FieldIndex: "99_1"}),
		"bad reference": callback("s3cr3t", map[string]string{netcommerce.FieldIndex: "abc_1"}),
	}
	for name, values := range tests {
		t.Run(name, func(t *testing.T) {
			svc, store, _ := newService(config.UnmappedIgnore, pendingOrder(42))
			rr := postForm(newRouter(svc), payment.CallbackRoute, values)

			require.Equal(t, http.StatusFound, rr.Code)
			require.Equal(t, "https://shop.example/cart", rr.Header().Get("Location"))
			ord, err := store.Get(t.Context(), 42)
			require.NoError(t, err)
			require.Equal(t, order.StatusPending, ord.Status)
		})
	}
}

func TestCallbackUnmappedRejectRedirectsToCart(t *testing.T) {
	svc, _, _ := newService(config.UnmappedReject, pendingOrder(42))
	rr := postForm(newRouter(svc), payment.CallbackRoute, callback("s3cr3t", map[string]string{netcommerce.FieldResultValue: "5"}))

	require.Equal(t, http.StatusFound, rr.Code)
	require.Equal(t, "https://shop.example/cart", rr.Header().Get("Location"))
}

func TestCallbackIgnoresQueryString(t *testing.T) {
	svc, _, _ := newService(config.UnmappedIgnore, pendingOrder(42))
	values := callback("s3cr3t", nil)
	req := httptest.NewRequest(http.MethodPost, payment.CallbackRoute+"?"+values.Encode(), nil)
	rr := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rr, req)

	require.Equal(t, http.StatusFound, rr.Code)
	require.Equal(t, "https://shop.example/cart", rr.Header().Get("Location"))
}

var testNonces = order.CancelNonces{Secret: "cancel-key"}

func newSessionRouter(svc *payment.Service) http.Handler {
	h := &payment.Handler{
		Svc:        svc,
		Gateway:    testGateway,
		Links:      &config.Config{PublicBaseURL: "https://shop.example"},
		CookieName: "cart_session",
		Nonces:     testNonces,
	}
	r := chi.NewRouter()
	r.Post("/api/v1/checkout/{orderId}/netcommerce", h.Process)
	r.Get("/checkout/order-pay/{orderId}", h.Pay)
	return r
}

func TestPayAndProcessHiddenFromOtherSessions(t *testing.T) {
	svc, _, _ := newService(config.UnmappedIgnore, pendingOrder(42))
	router := newSessionRouter(svc)

	for _, session := range []string{"attacker", ""} {
		for _, req := range []*http.Request{
			httptest.NewRequest(http.MethodGet, "/checkout/order-pay/42", nil),
			httptest.NewRequest(http.MethodPost, "/api/v1/checkout/42/netcommerce", nil),
		} {
			if session != "" {
				req.AddCookie(&http.Cookie{Name: "cart_session", Value: session})
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			require.Equal(t, http.StatusNotFound, rr.Code, req.URL.Path)
			require.NotContains(t, rr.Body.String(), "rami@example.com")
			require.NotContains(t, rr.Body.String(), "signature")
		}
	}
}

func TestPayOwnedOrderCarriesCancelNonce(t *testing.T) {
	svc, store, _ := newService(config.UnmappedIgnore, pendingOrder(42))
	req := httptest.NewRequest(http.MethodGet, "/checkout/order-pay/42", nil)
	req.AddCookie(&http.Cookie{Name: "cart_session", Value: "sess-1"})
	rr := httptest.NewRecorder()
	newSessionRouter(svc).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	ord, err := store.Get(t.Context(), 42)
	require.NoError(t, err)
	require.Contains(t, rr.Body.String(), "nonce="+testNonces.Nonce(ord))
	require.Contains(t, rr.Body.String(), `name="email" value="rami@example.com"`)

	post := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/42/netcommerce", nil)
	post.AddCookie(&http.Cookie{Name: "cart_session", Value: "sess-1"})
	rr = httptest.NewRecorder()
	newSessionRouter(svc).ServeHTTP(rr, post)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestProcessListsSupportedCurrencies(t *testing.T) {
	eur := pendingOrder(2)
	eur.Currency = "EUR"
	svc, _, _ := newService(config.UnmappedIgnore, eur)
	rr := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/checkout/2/netcommerce", nil))

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				Currency  string   `json:"currency"`
				Supported []string `json:"supported"`
			} `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "UNSUPPORTED_CURRENCY", body.Error.Code)
	require.Equal(t, "EUR", body.Error.Details.Currency)
	require.Equal(t, []string{"USD", "LBP"}, body.Error.Details.Supported)
}
