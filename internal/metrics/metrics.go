package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chattxt"

// Metrics holds the conversion collectors. A nil *Metrics discards observations.
type Metrics struct {
	conversions *prometheus.CounterVec
	messages    *prometheus.CounterVec
	files       *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Conversion batches by input format and outcome.",
		}, []string{"format", "outcome"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Messages seen by the renderers, by input format and result.",
		}, []string{"format", "result"}),
		files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Input files converted, by input format.",
		}, []string{"format"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_duration_seconds",
			Help:      "Wall time of successful conversion batches.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"format"}),
	}
	reg.MustRegister(m.conversions, m.messages, m.files, m.duration)
	return m
}

// ObserveConversion records a successful batch.
func (m *Metrics) ObserveConversion(format string, files, rendered, skipped int, d time.Duration) {
	if m == nil {
		return
	}
	m.conversions.WithLabelValues(format, "ok").Inc()
	m.files.WithLabelValues(format).Add(float64(files))
	m.messages.WithLabelValues(format, "rendered").Add(float64(rendered))
	m.messages.WithLabelValues(format, "skipped").Add(float64(skipped))
	m.duration.WithLabelValues(format).Observe(d.Seconds())
}

// ObserveFailure records a batch that produced no output.
func (m *Metrics) ObserveFailure(format, reason string) {
	if m == nil {
		return
	}
	m.conversions.WithLabelValues(format, reason).Inc()
}

// Handler exposes the collectors gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
