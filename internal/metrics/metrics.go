// SPDX-License-Identifier: MPL-2.0

package metrics

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/remcon/remcon/internal/console"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

const namespace = "remcon"

// unknownCommand replaces names that resolved to no command so arbitrary
// client input cannot grow label cardinality.
const unknownCommand = "<unknown>"

// Metrics collects console activity. All methods are safe for concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	commands     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	sessions     *prometheus.GaugeVec
	runners      prometheus.Gauge
	fileSessions *prometheus.CounterVec
}

var (
	_ console.Observer        = (*Metrics)(nil)
	_ console.SessionObserver = (*Metrics)(nil)
)

// New creates the console metrics plus Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Console command invocations by command and status.",
		}, []string{"command", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Console command run time.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"command"}),
		sessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Open console sessions by transport.",
		}, []string{"transport"}),
		runners: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "script_runners",
			Help:      "Script runners created, one per isolation domain.",
		}),
		fileSessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "file_sessions_total",
			Help:      "Completed file channel sessions by status.",
		}, []string{"status"}),
	}

	m.registry.MustRegister(
		m.commands,
		m.duration,
		m.sessions,
		m.runners,
		m.fileSessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveCommand implements console.Observer.
func (m *Metrics) ObserveCommand(name string, status console.Status, d time.Duration) {
	if status == console.StatusUnknown || name == "" {
		name = unknownCommand
	}
	m.commands.WithLabelValues(name, string(status)).Inc()
	m.duration.WithLabelValues(name).Observe(d.Seconds())
}

// SessionStarted implements console.SessionObserver.
func (m *Metrics) SessionStarted(transport string) {
	m.sessions.WithLabelValues(transport).Inc()
}

// SessionEnded implements console.SessionObserver.
func (m *Metrics) SessionEnded(transport string) {
	m.sessions.WithLabelValues(transport).Dec()
}

// SetScriptRunners records the runner count; it fits scripting.WithCreateHook.
func (m *Metrics) SetScriptRunners(total int) {
	m.runners.Set(float64(total))
}

// ObserveFileSession counts a completed file session; it fits the broker's
// OnResult hook.
func (m *Metrics) ObserveFileSession(status console.Status) {
	m.fileSessions.WithLabelValues(string(status)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// WriteText writes every metric family in the text exposition format.
// With prefix set only families whose name starts with it are written.
func (m *Metrics) WriteText(w io.Writer, prefix string) error {
	families, err := m.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if prefix != "" && !strings.HasPrefix(mf.GetName(), prefix) {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
