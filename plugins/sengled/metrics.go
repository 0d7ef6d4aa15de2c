package sengled

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes bootstrap outcomes. A nil *Metrics records nothing.
type Metrics struct {
	runs         *prometheus.CounterVec
	devices      prometheus.Gauge
	registered   prometheus.Gauge
	tokenPresent prometheus.Gauge
	lastSuccess  prometheus.Gauge
	lastDuration prometheus.Gauge
	success      prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gohome_sengled_bootstrap_runs_total",
			Help: "Bootstrap runs by final stage",
		}, []string{"stage"}),
		devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gohome_sengled_devices",
			Help: "Devices returned by the last discovery",
		}),
		registered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gohome_sengled_accessories_registered",
			Help: "Accessories registered by the last run",
		}),
		tokenPresent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gohome_sengled_token_present_bool",
			Help: "Session token held in memory (1=yes, 0=no)",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gohome_sengled_last_success_timestamp_seconds",
			Help: "Last successful bootstrap timestamp (epoch seconds)",
		}),
		lastDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gohome_sengled_last_run_duration_seconds",
			Help: "Duration of the last bootstrap run",
		}),
		success: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gohome_sengled_bootstrap_success",
			Help: "Last bootstrap success (1=ok, 0=error)",
		}),
	}
}

func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.runs.Describe(ch)
	m.devices.Describe(ch)
	m.registered.Describe(ch)
	m.tokenPresent.Describe(ch)
	m.lastSuccess.Describe(ch)
	m.lastDuration.Describe(ch)
	m.success.Describe(ch)
}

func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.runs.Collect(ch)
	m.devices.Collect(ch)
	m.registered.Collect(ch)
	m.tokenPresent.Collect(ch)
	m.lastSuccess.Collect(ch)
	m.lastDuration.Collect(ch)
	m.success.Collect(ch)
}

func (m *Metrics) observe(status Status, tokenPresent bool) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(string(status.Stage)).Inc()
	m.devices.Set(float64(status.Devices))
	m.registered.Set(float64(status.Registered))
	m.tokenPresent.Set(boolFloat(tokenPresent))
	m.lastDuration.Set(status.FinishedAt.Sub(status.StartedAt).Seconds())
	if status.Stage == StageFailed {
		m.success.Set(0)
		return
	}
	m.success.Set(1)
	m.lastSuccess.Set(float64(status.FinishedAt.Unix()))
}

func boolFloat(value bool) float64 {
	if value {
		return 1
	}
	return 0
}
