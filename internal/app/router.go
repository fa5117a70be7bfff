package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/netcommerce-gateway/internal/cart"
	"github.com/noah-isme/netcommerce-gateway/internal/common"
	"github.com/noah-isme/netcommerce-gateway/internal/config"
	"github.com/noah-isme/netcommerce-gateway/internal/health"
	"github.com/noah-isme/netcommerce-gateway/internal/netcommerce"
	"github.com/noah-isme/netcommerce-gateway/internal/obs"
	"github.com/noah-isme/netcommerce-gateway/internal/order"
	"github.com/noah-isme/netcommerce-gateway/internal/payment"
	"github.com/noah-isme/netcommerce-gateway/internal/ratelimit"
	"github.com/noah-isme/netcommerce-gateway/internal/security"
)

const maxRequestBytes = 64 << 10

// RouterOptions carries the observability switches for NewRouter.
type RouterOptions struct {
	Logger      zerolog.Logger
	HTTPMetrics *obs.HTTPMetrics
	Tracing     bool
	HSTS        bool
}

// NewRouter builds the HTTP handler for the gateway.
func NewRouter(cfg *config.Config, deps *Dependencies, opts RouterOptions) http.Handler {
	gw := cfg.Gateway
	svc := &payment.Service{
		Enabled: gw.Enabled,
		Merchant: netcommerce.Merchant{
			Number:      gw.MerchantNumber,
			Secret:      gw.SHAKey,
			CallbackURL: cfg.CallbackURL(payment.CallbackRoute),
			Language:    gw.Language,
			TestMode:    gw.TestMode,
		},
		Orders:         deps.Orders,
		Carts:          deps.Carts,
		Locker:         deps.Locker,
		UnmappedPolicy: gw.UnmappedPolicy,
	}
	nonces := order.CancelNonces{Secret: cfg.CancelSecret}
	paymentHandler := &payment.Handler{
		Svc:        svc,
		Gateway:    gw,
		Links:      cfg,
		CookieName: cfg.CartCookieName,
		Nonces:     nonces,
	}
	orderHandler := &order.Handler{Store: deps.Orders, CookieName: cfg.CartCookieName}
	cartHandler := &cart.Handler{Carts: deps.Carts, Orders: deps.Orders, CookieName: cfg.CartCookieName, Nonces: nonces}
	healthHandler := health.Handler{Checks: deps.Checks}

	proxies, err := common.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		opts.Logger.Warn().Err(err).Msg("ignoring trusted proxies")
		proxies = nil
	}
	limited := ratelimit.Handler{
		Limiter: deps.Limiter,
		Key:     common.RemoteIP,
		OnError: func(err error) {
			opts.Logger.Warn().Err(err).Msg("rate limiter unavailable")
		},
	}.Middleware

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(proxies.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(maxRequestBytes))
	if opts.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: opts.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: opts.Logger}.Middleware)
	r.Use(security.Headers{
		FormActions: []string{gw.RequestURL},
		EnableHSTS:  opts.HSTS,
	}.Middleware)

	if opts.HTTPMetrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins(cfg),
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		v.Get("/payments/methods", paymentHandler.Methods)
		v.With(limited).Post("/checkout/{orderId}/netcommerce", paymentHandler.Process)
	})

	r.With(limited).Get("/checkout/order-pay/{orderId}", paymentHandler.Pay)
	r.Get("/checkout/order-received/{orderId}", orderHandler.Received)
	r.Get("/cart", cartHandler.View)
	r.Post(payment.CallbackRoute, paymentHandler.Callback)

	if !opts.Tracing {
		return r
	}
	return otelhttp.NewHandler(r, "netcommerce-gateway")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
