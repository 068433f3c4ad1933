// Package metrics exposes Prometheus collectors for the smart-box daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sweeney/smart-box/internal/logic"
)

const (
	metricPrefix = "smartbox_"

	resultSuccess = "success"
	resultError   = "error"
)

var states = []logic.SystemState{
	logic.StateNormal,
	logic.StateProcessing,
	logic.StateWaiting,
	logic.StateAbnormal,
}

// Metrics bundles the daemon's collectors.
type Metrics struct {
	Ticks           prometheus.Counter
	SensorErrors    prometheus.Counter
	State           *prometheus.GaugeVec
	Transitions     *prometheus.CounterVec
	Rules           *prometheus.CounterVec
	Classifications *prometheus.CounterVec
	FeedPolls       *prometheus.CounterVec
	TelemetrySends  *prometheus.CounterVec
	MQTTConnected   prometheus.Gauge
}

// New constructs the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "ticks_total",
			Help: "Total control loop ticks processed",
		}),
		SensorErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "sensor_errors_total",
			Help: "Total ticks aborted by a sensor read error",
		}),
		State: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "state",
				Help: "1 for the current system state, 0 otherwise",
			},
			[]string{"state"},
		),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "state_transitions_total",
				Help: "Total state transitions by destination state",
			},
			[]string{"to"},
		),
		Rules: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "rule_decisions_total",
				Help: "Total ticks by deciding rule",
			},
			[]string{"rule"},
		),
		Classifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "classification_events_total",
				Help: "Total classification events consumed by outcome",
			},
			[]string{"outcome"},
		),
		FeedPolls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "feed_polls_total",
				Help: "Total classification feed polls by result",
			},
			[]string{"result"},
		),
		TelemetrySends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "telemetry_uploads_total",
				Help: "Total telemetry uploads by sink and result",
			},
			[]string{"sink", "result"},
		),
		MQTTConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "mqtt_connected",
			Help: "1 when the MQTT client is connected",
		}),
	}
	reg.MustRegister(
		m.Ticks,
		m.SensorErrors,
		m.State,
		m.Transitions,
		m.Rules,
		m.Classifications,
		m.FeedPolls,
		m.TelemetrySends,
		m.MQTTConnected,
	)
	return m
}

// ObserveTick records the outcome of one control loop tick.
func (m *Metrics) ObserveTick(r logic.Result) {
	m.Ticks.Inc()
	for _, s := range states {
		v := 0.0
		if s == r.State {
			v = 1
		}
		m.State.WithLabelValues(string(s)).Set(v)
	}
	if r.Rule != "" {
		m.Rules.WithLabelValues(string(r.Rule)).Inc()
	}
	if r.Event != nil {
		m.Transitions.WithLabelValues(string(r.Event.To)).Inc()
	}
	switch {
	case r.ClassificationAccepted:
		m.Classifications.WithLabelValues("accepted").Inc()
	case r.ClassificationIgnored:
		m.Classifications.WithLabelValues("ignored").Inc()
	}
}

// SensorError records a tick aborted by a sensor failure.
func (m *Metrics) SensorError() {
	m.SensorErrors.Inc()
}

// FeedPolled implements feed.Observer.
func (m *Metrics) FeedPolled(result string) {
	m.FeedPolls.WithLabelValues(result).Inc()
}

// TelemetrySent implements telemetry.Observer.
func (m *Metrics) TelemetrySent(sink string, err error) {
	result := resultSuccess
	if err != nil {
		result = resultError
	}
	m.TelemetrySends.WithLabelValues(sink, result).Inc()
}

// SetMQTTConnected records the MQTT connection state.
func (m *Metrics) SetMQTTConnected(connected bool) {
	if connected {
		m.MQTTConnected.Set(1)
		return
	}
	m.MQTTConnected.Set(0)
}
