// internal/metrics/metrics.go
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rovshanmuradov/bondcurve/internal/curve"
	"github.com/rovshanmuradov/bondcurve/internal/engine"
	"github.com/rovshanmuradov/bondcurve/internal/events"
)

const namespace = "bondcurve"

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	trades     *prometheus.CounterVec
	volume     *prometheus.CounterVec
	fees       prometheus.Counter
	migrations prometheus.Counter
	migrated   prometheus.Counter
	failures   *prometheus.CounterVec

	operationDuration *prometheus.HistogramVec
	requests          *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec

	subs    []events.Subscription
	busOnce sync.Once
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Total number of committed trades",
		}, []string{"side"}),
		volume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trade_value_total",
			Help:      "Settlement value moved by trades, fees excluded",
		}, []string{"side"}),
		fees: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trade_fees_total",
			Help:      "Trade fees paid to the fee collector",
		}),
		migrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migrations_total",
			Help:      "Total number of curves migrated to the venue",
		}),
		migrated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "migrated_value_total",
			Help:      "Settlement value seeded into venue pools",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_failures_total",
			Help:      "Failed engine operations by error code",
		}, []string{"operation", "code"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Engine operation duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"operation"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests processed",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	m.registry.MustRegister(
		m.trades, m.volume, m.fees, m.migrations, m.migrated, m.failures,
		m.operationDuration, m.requests, m.requestDuration,
		collectors.NewGoCollector(),
	)
	return m
}

// Subscribe counts trades and migrations published on bus and exports the
// bus queue statistics.
func (m *Metrics) Subscribe(bus *events.Bus) {
	m.busOnce.Do(func() {
		m.registry.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "event_queue_pending",
				Help:      "Events waiting for delivery",
			}, func() float64 { return float64(bus.Stats().Pending) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_dropped_total",
				Help:      "Events dropped because the queue was full",
			}, func() float64 { return float64(bus.Stats().Dropped) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "event_handler_failures_total",
				Help:      "Event handler invocations that returned an error",
			}, func() float64 { return float64(bus.Stats().HandlerFailures) }),
		)
	})
	m.subs = append(m.subs,
		bus.Subscribe(events.TradeExecuted, events.OnTrade(func(_ context.Context, rec engine.TradeRecord) error {
			m.ObserveTrade(rec)
			return nil
		})),
		bus.Subscribe(events.CurveMigrated, events.OnMigration(func(_ context.Context, rec engine.MigrationRecord) error {
			m.ObserveMigration(rec)
			return nil
		})),
	)
}

// Unsubscribe detaches the bus handlers registered by Subscribe.
func (m *Metrics) Unsubscribe() {
	for _, s := range m.subs {
		s.Unsubscribe()
	}
	m.subs = nil
}

func (m *Metrics) ObserveTrade(rec engine.TradeRecord) {
	side := string(rec.Side)
	m.trades.WithLabelValues(side).Inc()
	m.volume.WithLabelValues(side).Add(float64(rec.Value))
	m.fees.Add(float64(rec.Fee))
}

func (m *Metrics) ObserveMigration(rec engine.MigrationRecord) {
	m.migrations.Inc()
	m.migrated.Add(float64(rec.RealValueMoved))
}

// TrackOperation records the duration of op and, when err is not nil, a
// failure labelled with its stable code.
func (m *Metrics) TrackOperation(op string, start time.Time, err error) {
	m.operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		m.failures.WithLabelValues(op, curve.Code(err)).Inc()
	}
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(route, method string, status int, d time.Duration) {
	if status == 0 {
		status = http.StatusOK
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
