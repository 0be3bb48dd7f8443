package session

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arloliu/go-smellie/stage"
)

const (
	metricsNamespace = "smellie"
	metricsSubsystem = "session"
)

// Metrics contains the counters of one or more sessions.
//
// The atomic counters can be read directly; Collectors exposes them, together with the
// per-stage failure and duration series, to a Prometheus registry.
type Metrics struct {
	// StagesAdvanced indicates the number of stages that advanced.
	StagesAdvanced atomic.Uint64
	// StagesFailed indicates the number of stages that failed.
	StagesFailed atomic.Uint64
	// TokensReceived indicates the number of response tokens received.
	TokensReceived atomic.Uint64
	// CommandsSent indicates the number of payloads written to the controller.
	CommandsSent atomic.Uint64
	// RunsCompleted indicates the number of sessions that completed.
	RunsCompleted atomic.Uint64

	failures      *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
}

// NewMetrics creates an empty Metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "failures_total",
			Help:      "Failed stages by stage name and failure kind.",
		}, []string{"stage", "kind"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each stage, including controller wait time.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 1800},
		}, []string{"stage"}),
	}
}

// Collectors returns the Prometheus collectors backed by m.
func (m *Metrics) Collectors() []prometheus.Collector {
	counter := func(name, help string, v *atomic.Uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(v.Load()) })
	}

	return []prometheus.Collector{
		counter("stages_advanced_total", "Stages that advanced.", &m.StagesAdvanced),
		counter("stages_failed_total", "Stages that failed.", &m.StagesFailed),
		counter("tokens_received_total", "Response tokens received from the controller.", &m.TokensReceived),
		counter("commands_sent_total", "Payloads written to the controller.", &m.CommandsSent),
		counter("runs_completed_total", "Sessions that completed every stage.", &m.RunsCompleted),
		m.failures,
		m.stageDuration,
	}
}

// Register registers all collectors of m on reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}

	return nil
}

// FailureCount returns the failure counter of stage and kind.
func (m *Metrics) FailureCount(stageName string, kind stage.Kind) prometheus.Counter {
	return m.failures.WithLabelValues(stageName, kind.String())
}

func (m *Metrics) incTokensReceived() {
	m.TokensReceived.Add(1)
}

func (m *Metrics) incCommandsSent() {
	m.CommandsSent.Add(1)
}

func (m *Metrics) incRunsCompleted() {
	m.RunsCompleted.Add(1)
}

func (m *Metrics) observeStage(s stage.Stage, out stage.Outcome, elapsed time.Duration) {
	m.stageDuration.WithLabelValues(s.Name).Observe(elapsed.Seconds())
	if out.Advance {
		m.StagesAdvanced.Add(1)
		return
	}
	m.StagesFailed.Add(1)
	m.FailureCount(s.Name, out.Kind).Inc()
}
