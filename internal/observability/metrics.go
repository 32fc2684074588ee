package observability

import (
	"context"
	"net/http"

	"holdline/internal/calls"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
//
// It implements calls.Observer, notify.Recorder, ingest.Recorder and
// telephony.StreamRecorder so it can be wired wherever those are accepted.
type Metrics struct {
	registry *prometheus.Registry

	Transitions     *prometheus.CounterVec
	IVRSteps        prometheus.Counter
	Detections      *prometheus.CounterVec
	Notifications   *prometheus.CounterVec
	DroppedEvents   *prometheus.CounterVec
	ActiveStreams   prometheus.Gauge
	StatusListeners prometheus.Gauge
	HoldDuration    prometheus.Histogram
}

// NewMetrics registers the instruments on a private registry together with the
// Go and process collectors.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_transitions_total",
			Help:      "Applied call status transitions by target status.",
		}, []string{"to"}),
		IVRSteps: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ivr_steps_total",
			Help:      "IVR menu inputs recorded.",
		}),
		Detections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "human_detections_total",
			Help:      "Human detections by verdict source.",
		}, []string{"source"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification attempts by channel and outcome.",
		}, []string{"channel", "outcome"}),
		DroppedEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_events_total",
			Help:      "Provider events acknowledged but not applied, by reason.",
		}, []string{"reason"}),
		ActiveStreams: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_media_streams",
			Help:      "Number of open provider media streams.",
		}),
		StatusListeners: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_status_streams",
			Help:      "Number of connected status stream clients.",
		}),
		HoldDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "hold_duration_seconds",
			Help:      "Time on hold until a human was detected.",
			Buckets:   []float64{30, 60, 120, 300, 600, 900, 1800, 3600, 7200},
		}),
	}
}

func (m *Metrics) TransitionApplied(ctx context.Context, change calls.Change, call calls.Call) {
	if !change.Applied {
		return
	}
	m.Transitions.WithLabelValues(string(change.To)).Inc()
	if change.To == calls.StatusHuman && call.HumanDetectedAt != nil {
		m.HoldDuration.Observe(call.HumanDetectedAt.Sub(call.StartedAt).Seconds())
	}
}

func (m *Metrics) IVRStepAppended(ctx context.Context, callID string, step calls.IVRStep) {
	m.IVRSteps.Inc()
}

func (m *Metrics) HumanDetected(source string) {
	m.Detections.WithLabelValues(source).Inc()
}

func (m *Metrics) EventDropped(reason string) {
	m.DroppedEvents.WithLabelValues(reason).Inc()
}

func (m *Metrics) NotificationSent(channel string, success bool) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	m.Notifications.WithLabelValues(channel, outcome).Inc()
}

func (m *Metrics) MediaStreamOpened() { m.ActiveStreams.Inc() }
func (m *Metrics) MediaStreamClosed() { m.ActiveStreams.Dec() }

func (m *Metrics) StatusStreamOpened() { m.StatusListeners.Inc() }
func (m *Metrics) StatusStreamClosed() { m.StatusListeners.Dec() }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
