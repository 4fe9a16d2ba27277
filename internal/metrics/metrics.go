package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg                *prometheus.Registry
	StockChanges       prometheus.Counter
	DelegationFailures prometheus.Counter
	Errors             *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec

	// low-stock alert pipeline
	AlertsEnqueued     prometheus.Counter
	AlertsDelivered    prometheus.Counter
	AlertsDeadLettered prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	stockChanges := prometheus.NewCounter(prometheus.CounterOpts{Name: "stockledger_stock_changes_total"})
	delegationFailures := prometheus.NewCounter(prometheus.CounterOpts{Name: "stockledger_delegation_failures_total"})
	errs := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "stockledger_errors_total"}, []string{"kind"})
	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stockledger_http_request_duration_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	alertsEnqueued := prometheus.NewCounter(prometheus.CounterOpts{Name: "stockledger_alerts_enqueued_total"})
	alertsDelivered := prometheus.NewCounter(prometheus.CounterOpts{Name: "stockledger_alerts_delivered_total"})
	alertsDead := prometheus.NewCounter(prometheus.CounterOpts{Name: "stockledger_alerts_dead_lettered_total"})

	r.MustRegister(stockChanges, delegationFailures, errs, httpDuration, alertsEnqueued, alertsDelivered, alertsDead)
	return &Registry{
		reg:                r,
		StockChanges:       stockChanges,
		DelegationFailures: delegationFailures,
		Errors:             errs,
		HTTPDuration:       httpDuration,
		AlertsEnqueued:     alertsEnqueued,
		AlertsDelivered:    alertsDelivered,
		AlertsDeadLettered: alertsDead,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

// Gatherer exposes the registry to tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// The helpers below accept a nil receiver so components built without
// metrics (tests, CLIs) need no special casing.

func (r *Registry) IncStockChange() {
	if r != nil {
		r.StockChanges.Inc()
	}
}

func (r *Registry) IncDelegationFailure() {
	if r != nil {
		r.DelegationFailures.Inc()
	}
}

func (r *Registry) IncError(kind string) {
	if r != nil {
		r.Errors.WithLabelValues(kind).Inc()
	}
}

func (r *Registry) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if r != nil {
		r.HTTPDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
	}
}

func (r *Registry) IncAlertEnqueued() {
	if r != nil {
		r.AlertsEnqueued.Inc()
	}
}

func (r *Registry) IncAlertDelivered() {
	if r != nil {
		r.AlertsDelivered.Inc()
	}
}

func (r *Registry) IncAlertDeadLettered() {
	if r != nil {
		r.AlertsDeadLettered.Inc()
	}
}
