package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chumon"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	recordings     *prometheus.CounterVec
	transcriptions *prometheus.CounterVec
	modelRequests  *prometheus.CounterVec
	modelLatency   prometheus.Histogram
	conversations  prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		recordings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recordings_total",
			Help:      "Finished recording sessions by outcome.",
		}, []string{"outcome"}),
		transcriptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcriptions_total",
			Help:      "Transcription results by outcome.",
		}, []string{"outcome"}),
		modelRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_requests_total",
			Help:      "Remote model calls by outcome.",
		}, []string{"outcome"}),
		modelLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_request_duration_seconds",
			Help:      "Remote model round-trip latency.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
		conversations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversations_started_total",
			Help:      "Conversations created, including replacements after delete.",
		}),
	}
	reg.MustRegister(m.recordings, m.transcriptions, m.modelRequests, m.modelLatency, m.conversations)
	return m
}

func (m *Metrics) ObserveRecording(outcome string) {
	if m == nil {
		return
	}
	m.recordings.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveTranscription(outcome string) {
	if m == nil {
		return
	}
	m.transcriptions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveModelRequest(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.modelRequests.WithLabelValues(outcome).Inc()
	m.modelLatency.Observe(elapsed.Seconds())
}

func (m *Metrics) ConversationStarted() {
	if m == nil {
		return
	}
	m.conversations.Inc()
}
