// Package metrics provides observability for the certification workflow.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks command throughput, latency and state transitions. All
// methods are nil-safe so wiring metrics stays optional in tests.
type Metrics struct {
	CommandsTotal    *prometheus.CounterVec
	CommandDuration  prometheus.Histogram
	StateTransitions *prometheus.CounterVec
	InspectionsTotal *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		CommandsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "certflow_commands_total",
			Help: "Total workflow commands executed, by command and outcome",
		}, []string{"command", "outcome"}),
		CommandDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "certflow_command_duration_seconds",
			Help:    "Duration of workflow command execution",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		StateTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "certflow_state_transitions_total",
			Help: "Application state transitions, by from and to state",
		}, []string{"from", "to"}),
		InspectionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "certflow_inspections_total",
			Help: "Inspection operations, by operation and outcome",
		}, []string{"operation", "outcome"}),
	}
}

// IncCommand records one executed command with its outcome label.
func (m *Metrics) IncCommand(command, outcome string) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(command, outcome).Inc()
}

// ObserveCommand records command execution duration. Call with time.Now()
// taken at the start of the operation.
func (m *Metrics) ObserveCommand(start time.Time) {
	if m == nil {
		return
	}
	m.CommandDuration.Observe(time.Since(start).Seconds())
}

// IncTransition records one state transition.
func (m *Metrics) IncTransition(from, to string) {
	if m == nil {
		return
	}
	m.StateTransitions.WithLabelValues(from, to).Inc()
}

// IncInspection records one inspection operation with its outcome label.
func (m *Metrics) IncInspection(operation, outcome string) {
	if m == nil {
		return
	}
	m.InspectionsTotal.WithLabelValues(operation, outcome).Inc()
}
