package core

import (
	"fmt"
	"os"
	"path/filepath"
)

func dashboardPath(pluginID, name string) string {
	return "/dashboards/" + pluginID + "/" + name + ".json"
}

// DashboardsMap materializes dashboard content to URL paths.
func DashboardsMap(plugins []Plugin) map[string][]byte {
	result := make(map[string][]byte)
	for _, plugin := range plugins {
		id := plugin.Manifest().PluginID
		for _, dash := range plugin.Dashboards() {
			result[dashboardPath(id, dash.Name)] = dash.JSON
		}
	}
	return result
}

// WriteDashboards writes dashboards to disk for Grafana provisioning.
// An empty dir disables provisioning.
func WriteDashboards(dir string, plugins []Plugin) error {
	if dir == "" {
		return nil
	}

	for _, plugin := range plugins {
		dashboards := plugin.Dashboards()
		if len(dashboards) == 0 {
			continue
		}
		pluginDir := filepath.Join(dir, plugin.Manifest().PluginID)
		if err := os.MkdirAll(pluginDir, 0o755); err != nil {
			return fmt.Errorf("create dashboard dir: %w", err)
		}
		for _, dash := range dashboards {
			path := filepath.Join(pluginDir, dash.Name+".json")
			if err := os.WriteFile(path, dash.JSON, 0o644); err != nil {
				return fmt.Errorf("write dashboard %s: %w", path, err)
			}
		}
	}

	return nil
}
