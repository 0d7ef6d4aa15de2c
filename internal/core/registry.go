package core

import "sync"

// DashboardRef points at a dashboard served under /dashboards/.
type DashboardRef struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// PluginSummary is the registry view of one plugin.
type PluginSummary struct {
	PluginID      string         `json:"plugin_id"`
	DisplayName   string         `json:"display_name"`
	Version       string         `json:"version"`
	PlatformID    string         `json:"platform_id,omitempty"`
	Status        string         `json:"status"`
	HealthMessage string         `json:"health_message,omitempty"`
	Dashboards    []DashboardRef `json:"dashboards,omitempty"`
	Detail        any            `json:"detail,omitempty"`
}

// RegistryService provides plugin discovery to clients.
type RegistryService struct {
	plugins []Plugin
	mu      sync.RWMutex
}

func NewRegistryService(plugins []Plugin) *RegistryService {
	return &RegistryService{plugins: plugins}
}

// ListPlugins summarizes every active plugin.
func (r *RegistryService) ListPlugins() []PluginSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]PluginSummary, 0, len(r.plugins))
	for _, p := range r.plugins {
		manifest := p.Manifest()
		out = append(out, PluginSummary{
			PluginID:    manifest.PluginID,
			DisplayName: manifest.DisplayName,
			Version:     manifest.Version,
			PlatformID:  manifest.PlatformID,
			Status:      string(p.Health()),
		})
	}
	return out
}

// DescribePlugin returns the full descriptor, including plugin status detail.
func (r *RegistryService) DescribePlugin(pluginID string) (PluginSummary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		manifest := p.Manifest()
		if manifest.PluginID != pluginID {
			continue
		}

		summary := PluginSummary{
			PluginID:      manifest.PluginID,
			DisplayName:   manifest.DisplayName,
			Version:       manifest.Version,
			PlatformID:    manifest.PlatformID,
			Status:        string(p.Health()),
			HealthMessage: p.HealthMessage(),
		}
		for _, d := range p.Dashboards() {
			summary.Dashboards = append(summary.Dashboards, DashboardRef{
				Name: d.Name,
				Path: dashboardPath(manifest.PluginID, d.Name),
			})
		}
		if reporter, ok := p.(StatusReporter); ok {
			summary.Detail = reporter.Status()
		}
		return summary, true
	}

	return PluginSummary{}, false
}

// Plugins returns the active plugin set.
func (r *RegistryService) Plugins() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Plugin(nil), r.plugins...)
}
