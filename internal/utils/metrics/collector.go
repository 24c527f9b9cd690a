// internal/utils/metrics/collector.go
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/Musing-io/musing-protocol/internal/types"
)

const namespace = "bond"

// Collector owns the engine metrics on a private registry, so several
// engines (and tests) never collide on the global one.
type Collector struct {
	registry *prometheus.Registry

	tradesTotal   *prometheus.CounterVec
	tradeDuration *prometheus.HistogramVec
	reserve       *prometheus.GaugeVec
	price         *prometheus.GaugeVec
	economies     prometheus.Gauge

	mu    sync.Mutex
	known map[string]struct{}
}

// NewCollector создает новый экземпляр коллектора метрик
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		tradesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trades_total",
				Help:      "Total number of engine operations by side and outcome",
			},
			[]string{"side", "status"},
		),
		tradeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "trade_duration_seconds",
				Help:      "Engine operation duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{"side"},
		),
		reserve: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "reserve_balance",
				Help:      "Reserve held per economy, in whole reserve units",
			},
			[]string{"token"},
		),
		price: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "price_ppm",
				Help:      "Spot price per economy in ppm of the reserve asset",
			},
			[]string{"token"},
		),
		economies: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "economies_total",
				Help:      "Number of economies observed",
			},
		),
		known: make(map[string]struct{}),
	}

	c.registry.MustRegister(
		c.tradesTotal,
		c.tradeDuration,
		c.reserve,
		c.price,
		c.economies,
		collectors.NewGoCollector(),
	)
	return c
}

// RecordTrade counts an engine operation and observes its duration.
func (c *Collector) RecordTrade(side, status string, duration time.Duration) {
	c.tradesTotal.WithLabelValues(side, status).Inc()
	c.tradeDuration.WithLabelValues(side).Observe(duration.Seconds())
}

// RecordEconomy updates the reserve and price gauges of one economy.
func (c *Collector) RecordEconomy(token string, reserve, pricePPM types.Amount) {
	c.reserve.WithLabelValues(token).Set(toFloat(types.FormatUnits(reserve, types.Decimals)))
	c.price.WithLabelValues(token).Set(toFloat(decimal.NewFromBigInt(types.OrZero(pricePPM).BigInt(), 0)))

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.known[token]; !ok {
		c.known[token] = struct{}{}
		c.economies.Set(float64(len(c.known)))
	}
}

// Reset сбрасывает все метрики (полезно для тестирования)
func (c *Collector) Reset() {
	c.tradesTotal.Reset()
	c.tradeDuration.Reset()
	c.reserve.Reset()
	c.price.Reset()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.economies.Set(0)
	c.known = make(map[string]struct{})
}

// Registry exposes the private registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
