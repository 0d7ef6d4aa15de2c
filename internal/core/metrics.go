package core

import "github.com/prometheus/client_golang/prometheus"

var (
	registrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gohome_accessory_registrations_total",
			Help: "Accessory registration calls per plugin",
		},
		[]string{"plugin"},
	)
	accessoriesCached = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gohome_accessories_cached",
		Help: "Accessories held in the host cache",
	})
)

// HostCollectors returns collectors for the host accessory registry.
func HostCollectors() []prometheus.Collector {
	return []prometheus.Collector{registrations, accessoriesCached}
}

// MetricsRegistry builds a registry from host and plugin collectors.
func MetricsRegistry(plugins []Plugin) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(HostCollectors()...)

	for _, plugin := range plugins {
		for _, collector := range plugin.Collectors() {
			registry.MustRegister(collector)
		}
	}

	return registry
}
