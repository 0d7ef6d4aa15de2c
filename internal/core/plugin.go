package core

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
)

// HealthStatus represents plugin health states for registry reporting.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "HEALTHY"
	HealthDegraded HealthStatus = "DEGRADED"
	HealthError    HealthStatus = "ERROR"
)

// Dashboard is a Grafana dashboard asset embedded by the plugin.
type Dashboard struct {
	Name string
	JSON []byte
}

// Manifest describes a plugin for discovery and registry metadata.
type Manifest struct {
	PluginID    string
	DisplayName string
	Version     string
	// PlatformID is the platform name accessories are registered under.
	PlatformID string
}

// Plugin is the compile-time contract for all GoHome plugins.
type Plugin interface {
	ID() string
	Manifest() Manifest
	Dashboards() []Dashboard
	Collectors() []prometheus.Collector
	Health() HealthStatus
	HealthMessage() string
}

// Starter is implemented by plugins that run work once the host is ready.
// Start must not block.
type Starter interface {
	Start(ctx context.Context, host *Host)
}

// AccessoryRestorer receives accessories cached from a previous run.
type AccessoryRestorer interface {
	ConfigureAccessory(Accessory)
}

// StatusReporter exposes a plugin specific status document for /status.
type StatusReporter interface {
	Status() any
}

// HTTPRegistrant allows plugins to expose HTTP handlers.
type HTTPRegistrant interface {
	RegisterHTTP(*http.ServeMux)
}
