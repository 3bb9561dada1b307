package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the simulator's Prometheus collectors.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	readingsPublished prometheus.Counter
	publishFailures   prometheus.Counter
	connectFailures   prometheus.Counter
	lastTemperature   prometheus.Gauge
	connected         prometheus.Gauge
	publishDuration   prometheus.Histogram
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		readingsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "esp_sim_readings_published_total",
			Help: "Readings acknowledged by the broker",
		}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "esp_sim_publish_failures_total",
			Help: "Publishes that failed or timed out",
		}),
		connectFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "esp_sim_connect_failures_total",
			Help: "Failed broker connection attempts",
		}),
		lastTemperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "esp_sim_last_temperature_celsius",
			Help: "Temperature of the last published reading",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "esp_sim_mqtt_connected",
			Help: "1 while the MQTT session is up",
		}),
		publishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "esp_sim_publish_duration_seconds",
			Help:    "Time from publish to broker completion",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		}),
	}

	reg.MustRegister(
		m.readingsPublished,
		m.publishFailures,
		m.connectFailures,
		m.lastTemperature,
		m.connected,
		m.publishDuration,
	)
	return m
}

func (m *Metrics) ObservePublished(temp int, took time.Duration) {
	if m == nil {
		return
	}
	m.readingsPublished.Inc()
	m.lastTemperature.Set(float64(temp))
	m.publishDuration.Observe(took.Seconds())
}

func (m *Metrics) ObservePublishFailure() {
	if m == nil {
		return
	}
	m.publishFailures.Inc()
}

func (m *Metrics) ObserveConnectFailure() {
	if m == nil {
		return
	}
	m.connectFailures.Inc()
}

func (m *Metrics) SetConnected(up bool) {
	if m == nil {
		return
	}
	if up {
		m.connected.Set(1)
		return
	}
	m.connected.Set(0)
}
