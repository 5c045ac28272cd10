package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"canteen/pkg/domain/model"
	"canteen/pkg/domain/service"
)

// Recorder turns checkout events into Prometheus series.
type Recorder struct {
	registry *prometheus.Registry

	events       *prometheus.CounterVec
	ordersTotal  prometheus.Counter
	revenueTotal prometheus.Counter
	rejections   prometheus.Counter
	topUps       prometheus.Counter
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "canteen",
			Subsystem: "domain",
			Name:      "events_total",
			Help:      "Domain events dispatched, by type.",
		}, []string{"type"}),
		ordersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "canteen",
			Subsystem: "checkout",
			Name:      "orders_completed_total",
			Help:      "Orders that passed the balance check.",
		}),
		revenueTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "canteen",
			Subsystem: "checkout",
			Name:      "revenue_total",
			Help:      "Sum of completed order totals.",
		}),
		rejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "canteen",
			Subsystem: "checkout",
			Name:      "payments_rejected_total",
			Help:      "Payments refused for insufficient balance.",
		}),
		topUps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "canteen",
			Subsystem: "wallet",
			Name:      "top_ups_total",
			Help:      "Add money actions.",
		}),
	}
	r.registry.MustRegister(r.events, r.ordersTotal, r.revenueTotal, r.rejections, r.topUps)
	return r
}

func (r *Recorder) Dispatch(event service.Event) error {
	r.events.WithLabelValues(event.Type()).Inc()

	switch e := event.(type) {
	case model.OrderCompleted:
		r.ordersTotal.Inc()
		r.revenueTotal.Add(e.Total.InexactFloat64())
	case model.PaymentRejected:
		r.rejections.Inc()
	case model.WalletToppedUp:
		r.topUps.Inc()
	}
	return nil
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
