// Package metrics exposes the payment & notification counters to prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/William-Pardo/tudojang-sub002/core/billing"
	"github.com/William-Pardo/tudojang-sub002/core/notify"
)

const namespace = "tudojang"

// Recorder implements billing.Observer & notify.Observer on its own registry.
type Recorder struct {
	registry      *prometheus.Registry
	payments      *prometheus.CounterVec
	amount        prometheus.Counter
	notifications *prometheus.CounterVec
}

var (
	_ billing.Observer = (*Recorder)(nil)
	_ notify.Observer  = (*Recorder)(nil)
)

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		payments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Payment attempts by outcome.",
		}, []string{"outcome"}),
		amount: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_amount_total",
			Help:      "Sum of the amounts of successful payments.",
		}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Receipt notifications by mode & outcome.",
		}, []string{"mode", "outcome"}),
	}
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func (r *Recorder) PaymentProcessed(success bool, amount decimal.Decimal) {
	r.payments.WithLabelValues(outcome(success)).Inc()
	if success {
		f, _ := amount.Float64()
		r.amount.Add(f)
	}
}

func (r *Recorder) NotificationDispatched(mode notify.Mode, ok bool) {
	r.notifications.WithLabelValues(mode.String(), outcome(ok)).Inc()
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
