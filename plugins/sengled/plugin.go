package sengled

import (
	"context"
	_ "embed"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshp123/gohome-sengled/internal/config"
	"github.com/joshp123/gohome-sengled/internal/core"
)

//go:embed dashboard.json
var dashboardJSON []byte

// Plugin implements the GoHome plugin contract.
type Plugin struct {
	client        *Client
	creds         Credentials
	metrics       *Metrics
	health        core.HealthStatus
	healthMessage string

	mu       sync.Mutex
	boot     *Bootstrapper
	log      Logger
	restored int
}

// PluginStatus is the /status detail for the Sengled plugin.
type PluginStatus struct {
	Bootstrap Status `json:"bootstrap"`
	Restored  int    `json:"restored_accessories"`
}

// NewPlugin constructs a Sengled plugin from config.
func NewPlugin(cfg *config.SengledConfig) (*Plugin, bool) {
	if cfg == nil {
		return nil, false
	}

	runtimeCfg, err := ConfigFromSettings(cfg)
	if err != nil {
		return &Plugin{health: core.HealthError, healthMessage: err.Error()}, true
	}

	return &Plugin{
		client:  NewClient(runtimeCfg),
		creds:   runtimeCfg.Credentials,
		metrics: NewMetrics(),
		health:  core.HealthHealthy,
	}, true
}

func (p *Plugin) ID() string {
	return pluginID
}

func (p *Plugin) Manifest() core.Manifest {
	return core.Manifest{
		PluginID:    pluginID,
		DisplayName: "Sengled",
		Version:     "0.1.0",
		PlatformID:  platformID,
	}
}

func (p *Plugin) Dashboards() []core.Dashboard {
	return []core.Dashboard{{Name: "sengled-overview", JSON: dashboardJSON}}
}

func (p *Plugin) Collectors() []prometheus.Collector {
	if p.metrics == nil {
		return nil
	}
	return []prometheus.Collector{p.metrics}
}

// Start wires the bootstrapper to the host and runs it once the host is ready.
func (p *Plugin) Start(ctx context.Context, host *core.Host) {
	if p.client == nil {
		return
	}

	logger := host.Logger(pluginID)
	boot := NewBootstrapper(p.client, p.creds, host, logger, p.metrics)

	p.mu.Lock()
	p.boot = boot
	p.log = logger
	p.mu.Unlock()

	go boot.Run(ctx, host.Ready())
}

// ConfigureAccessory accepts an accessory cached by the host from an earlier run.
func (p *Plugin) ConfigureAccessory(acc core.Accessory) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.restored++
	if p.log != nil {
		p.log.Debug("restored cached accessory", "name", acc.DisplayName, "uuid", acc.UUID)
	}
}

func (p *Plugin) Health() core.HealthStatus {
	if p.health != core.HealthHealthy {
		return p.health
	}
	switch p.bootstrapStatus().Stage {
	case StageRegistered:
		return core.HealthHealthy
	case StageFailed:
		return core.HealthError
	default:
		return core.HealthDegraded
	}
}

func (p *Plugin) HealthMessage() string {
	if p.health != core.HealthHealthy {
		return p.healthMessage
	}
	status := p.bootstrapStatus()
	switch status.Stage {
	case StageRegistered:
		return ""
	case StageFailed:
		return status.LastError
	default:
		return "bootstrap pending: " + string(status.Stage)
	}
}

func (p *Plugin) Status() any {
	p.mu.Lock()
	restored := p.restored
	p.mu.Unlock()
	return PluginStatus{Bootstrap: p.bootstrapStatus(), Restored: restored}
}

func (p *Plugin) bootstrapStatus() Status {
	p.mu.Lock()
	boot := p.boot
	p.mu.Unlock()
	if boot == nil {
		return Status{Stage: StageUnauthenticated}
	}
	return boot.Status()
}
