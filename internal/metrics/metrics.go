// Package metrics exposes Prometheus counters and histograms for the
// conversation and digest pipelines. All Recorder methods are safe to call on
// a nil receiver so callers can leave metrics unconfigured.
package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "newsdigest"

const (
	ResultSent    = "sent"
	ResultSkipped = "skipped"
	ResultFailed  = "failed"
)

type Recorder struct {
	messages         *prom.CounterVec
	digests          *prom.CounterVec
	deliveryDuration *prom.HistogramVec
	tickDuration     prom.Histogram
	dueUsers         prom.Gauge
}

// New registers the collectors on reg. A nil reg gets a fresh registry.
func New(reg *prom.Registry) *Recorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}

	r := &Recorder{
		messages: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Processed conversation messages by intent and effect",
		}, []string{"intent", "effect"}),
		digests: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "digests_total",
			Help:      "Digest deliveries by result",
		}, []string{"result"}),
		deliveryDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_duration_seconds",
			Help:      "Duration of a single user's fetch, compose and send",
			Buckets:   prom.DefBuckets,
		}, []string{"result"}),
		tickDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Duration of a whole scheduler tick",
			Buckets:   []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300},
		}),
		dueUsers: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "due_users",
			Help:      "Users due in the last scheduler tick",
		}),
	}
	reg.MustRegister(r.messages, r.digests, r.deliveryDuration, r.tickDuration, r.dueUsers)

	return r
}

func (r *Recorder) IncMessage(intent, effect string) {
	if r == nil {
		return
	}
	r.messages.WithLabelValues(intent, effect).Inc()
}

func (r *Recorder) IncDigest(result string) {
	if r == nil {
		return
	}
	r.digests.WithLabelValues(result).Inc()
}

func (r *Recorder) ObserveDelivery(d time.Duration, success bool) {
	if r == nil {
		return
	}
	res := ResultFailed
	if success {
		res = ResultSent
	}
	r.deliveryDuration.WithLabelValues(res).Observe(d.Seconds())
}

func (r *Recorder) ObserveTick(d time.Duration, due int) {
	if r == nil {
		return
	}
	r.tickDuration.Observe(d.Seconds())
	r.dueUsers.Set(float64(due))
}

// HTTPHandler serves the metrics gathered by reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	if reg == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
