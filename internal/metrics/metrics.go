package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ielts"

// Collector groups the exam session collectors. A nil *Collector is valid and
// records nothing, which keeps unit tests free of registry plumbing.
type Collector struct {
	sessionsStarted *prometheus.CounterVec
	activeSessions  *prometheus.GaugeVec
	submissions     *prometheus.CounterVec
	timerExpiries   *prometheus.CounterVec
	audioFailures   prometheus.Counter
	backendLatency  *prometheus.HistogramVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Exam sessions opened, by kind.",
		}, []string{"kind"}),
		activeSessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Exam sessions currently attached to a client.",
		}, []string{"kind"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Submission attempts that reached the backend, by trigger and outcome.",
		}, []string{"kind", "trigger", "outcome"}),
		timerExpiries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timer_expiries_total",
			Help:      "Countdowns that reached zero.",
		}, []string{"kind"}),
		audioFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_failures_total",
			Help:      "Audio load or playback failures reported by clients.",
		}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_seconds",
			Help:      "Latency of exam backend calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
	}
	reg.MustRegister(
		c.sessionsStarted,
		c.activeSessions,
		c.submissions,
		c.timerExpiries,
		c.audioFailures,
		c.backendLatency,
	)
	return c
}

func (c *Collector) SessionOpened(kind string) {
	if c == nil {
		return
	}
	c.sessionsStarted.WithLabelValues(kind).Inc()
	c.activeSessions.WithLabelValues(kind).Inc()
}

func (c *Collector) SessionClosed(kind string) {
	if c == nil {
		return
	}
	c.activeSessions.WithLabelValues(kind).Dec()
}

func (c *Collector) Submission(kind, trigger string, err error) {
	if c == nil {
		return
	}
	c.submissions.WithLabelValues(kind, trigger, outcome(err)).Inc()
}

func (c *Collector) TimerExpired(kind string) {
	if c == nil {
		return
	}
	c.timerExpiries.WithLabelValues(kind).Inc()
}

func (c *Collector) AudioFailed() {
	if c == nil {
		return
	}
	c.audioFailures.Inc()
}

// ObserveBackend records the latency of one backend call started at start.
func (c *Collector) ObserveBackend(operation string, start time.Time, err error) {
	if c == nil {
		return
	}
	c.backendLatency.WithLabelValues(operation, outcome(err)).Observe(time.Since(start).Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
