package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// NetCommerceSignTotal counts payment request signing outcomes.
	NetCommerceSignTotal *prometheus.CounterVec
	// NetCommerceCallbackTotal counts callback outcomes (approved, declined, rejected reasons, ...).
	NetCommerceCallbackTotal *prometheus.CounterVec
	// NetCommerceSettleDuration records callback settlement latency in milliseconds.
	NetCommerceSettleDuration prometheus.Histogram
)

// MustRegisterDomainMetrics initialises and registers gateway Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		NetCommerceSignTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "netcommerce_sign_total",
			Help:      "Count of NetCommerce payment request signing outcomes.",
		}, []string{"result"}))
		NetCommerceCallbackTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "netcommerce_callback_total",
			Help:      "Count of NetCommerce callbacks by outcome.",
		}, []string{"result"}))
		NetCommerceSettleDuration = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "netcommerce_settle_duration_ms",
			Help:      "Latency of applying a verified NetCommerce callback in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}))
	})
}
