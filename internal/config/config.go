package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// NetCommerce security seal icons offered at checkout.
const (
	IconLarge  = "https://www.netcommercepay.com/logo/NCseal_L.gif"
	IconMedium = "https://www.netcommercepay.com/logo/NCseal_M.gif"
	IconSmall  = "https://www.netcommercepay.com/logo/NCseal_S.gif"
)

// Unmapped result policies.
const (
	UnmappedIgnore = "ignore"
	UnmappedReject = "reject"
	UnmappedHold   = "hold"
)

// Gateway holds the NetCommerce settings. It is read once at startup and never mutated.
type Gateway struct {
	Enabled        bool
	Title          string `validate:"required"`
	Description    string
	Icon           string `validate:"omitempty,oneof=https://www.netcommercepay.com/logo/NCseal_L.gif https://www.netcommercepay.com/logo/NCseal_M.gif https://www.netcommercepay.com/logo/NCseal_S.gif"`
	MerchantNumber string `validate:"required_if=Enabled true"`
	SHAKey         string `validate:"required_if=Enabled true"`
	RequestURL     string `validate:"required_if=Enabled true,omitempty,url"`
	TestMode       bool
	Language       string `validate:"oneof=EN AR"`
	UnmappedPolicy string `validate:"oneof=ignore reject hold"`
}

// Obs configures logging, metrics, tracing and health checks.
type Obs struct {
	LogFormat         string `validate:"oneof=json console text"`
	LogLevel          string
	MetricsEnabled    bool
	MetricsNamespace  string `validate:"required"`
	MetricsBucketsMS  string
	TracingEnabled    bool
	TracingExporter   string  `validate:"oneof=otlp none"`
	OTLPEndpoint      string  `validate:"omitempty,url"`
	SamplingRatio     float64 `validate:"gte=0,lte=1"`
	HSTS              bool
	ReadyDBTimeout    time.Duration
	ReadyRedisTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	PublicBaseURL      string `validate:"required,url"`
	CORSAllowedOrigins []string
	CartCookieName     string
	// CancelSecret keys the cancel-order link nonce. A random secret is used
	// when unset, which invalidates outstanding links on restart.
	CancelSecret      string
	TrustedProxies    []string `validate:"dive,cidr|ip"`
	OrderLockTTL      time.Duration
	CheckoutRateLimit string
	RunMigrations     bool
	Gateway           Gateway
	Obs               Obs
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		PublicBaseURL:      strings.TrimRight(valueOrDefault(k.String("PUBLIC_BASE_URL"), "http://localhost:8080"), "/"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		CartCookieName:     valueOrDefault(k.String("CART_COOKIE_NAME"), "cart_session"),
		CancelSecret:       valueOrDefault(k.String("ORDER_CANCEL_SECRET"), uuid.NewString()),
		TrustedProxies:     splitAndTrim(k.String("TRUSTED_PROXIES")),
		OrderLockTTL:       parseDuration(k.String("ORDER_LOCK_TTL"), "30s"),
		CheckoutRateLimit:  valueOrDefault(k.String("CHECKOUT_RATE_LIMIT"), "30-M"),
		RunMigrations:      parseBool(k.String("RUN_MIGRATIONS"), true),
		Gateway: Gateway{
			Enabled:        parseBool(k.String("NETCOMMERCE_ENABLED"), true),
			Title:          valueOrDefault(k.String("NETCOMMERCE_TITLE"), "NetCommerce"),
			Description:    valueOrDefault(k.String("NETCOMMERCE_DESCRIPTION"), "Secure online payment services with real time credit card transaction validation."),
			Icon:           strings.TrimSpace(k.String("NETCOMMERCE_ICON")),
			MerchantNumber: strings.TrimSpace(k.String("NETCOMMERCE_MERCHANT_NUMBER")),
			SHAKey:         k.String("NETCOMMERCE_SHA_KEY"),
			RequestURL:     strings.TrimSpace(k.String("NETCOMMERCE_REQUEST_URL")),
			TestMode:       parseBool(k.String("NETCOMMERCE_TEST_MODE"), true),
			Language:       strings.ToUpper(valueOrDefault(k.String("NETCOMMERCE_LANGUAGE"), "EN")),
			UnmappedPolicy: strings.ToLower(valueOrDefault(k.String("NETCOMMERCE_UNMAPPED_RESULT_POLICY"), UnmappedIgnore)),
		},
	}
	cfg.Obs = Obs{
		LogFormat:         strings.ToLower(valueOrDefault(k.String("OBS_LOG_FORMAT"), "json")),
		LogLevel:          valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsEnabled:    parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
		MetricsNamespace:  valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "netcommerce"),
		MetricsBucketsMS:  strings.TrimSpace(k.String("OBS_METRICS_BUCKETS_MS")),
		TracingEnabled:    parseBool(k.String("OBS_ENABLE_TRACING"), true),
		TracingExporter:   strings.ToLower(valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp")),
		OTLPEndpoint:      strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
		SamplingRatio:     parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1),
		HSTS:              parseBool(k.String("SECURE_ENABLE_HSTS"), cfg.AppEnv == "production"),
		ReadyDBTimeout:    parseDuration(k.String("HEALTH_READY_DB_TIMEOUT"), "500ms"),
		ReadyRedisTimeout: parseDuration(k.String("HEALTH_READY_REDIS_TIMEOUT"), "300ms"),
		ShutdownTimeout:   parseDuration(k.String("SHUTDOWN_TIMEOUT"), "15s"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// CallbackURL is the absolute URL NetCommerce posts its result to.
func (c *Config) CallbackURL(route string) string {
	return c.PublicBaseURL + route
}

// CartURL is the generic shopping-cart page.
func (c *Config) CartURL() string {
	return c.PublicBaseURL + "/cart"
}

// OrderReceivedURL is the confirmation page for orderID.
func (c *Config) OrderReceivedURL(orderID int64) string {
	return fmt.Sprintf("%s/checkout/order-received/%d", c.PublicBaseURL, orderID)
}

// OrderPayURL is the receipt page that posts the buyer to NetCommerce.
func (c *Config) OrderPayURL(orderID int64) string {
	return fmt.Sprintf("%s/checkout/order-pay/%d", c.PublicBaseURL, orderID)
}

// CancelOrderURL cancels orderID and restores the buyer's cart. nonce is the
// link nonce issued for the order.
func (c *Config) CancelOrderURL(orderID int64, nonce string) string {
	q := url.Values{}
	q.Set("cancel_order", fmt.Sprint(orderID))
	if nonce != "" {
		q.Set("nonce", nonce)
	}
	return c.CartURL() + "?" + q.Encode()
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
