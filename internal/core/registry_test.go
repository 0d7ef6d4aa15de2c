package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

type stubPlugin struct {
	id            string
	name          string
	version       string
	platform      string
	dashboards    []Dashboard
	health        HealthStatus
	healthMessage string
	restored      *[]Accessory
}

func (s stubPlugin) ID() string { return s.id }

func (s stubPlugin) Manifest() Manifest {
	return Manifest{
		PluginID:    s.id,
		DisplayName: s.name,
		Version:     s.version,
		PlatformID:  s.platform,
	}
}

func (s stubPlugin) Dashboards() []Dashboard { return s.dashboards }

func (s stubPlugin) Collectors() []prometheus.Collector { return nil }

func (s stubPlugin) Health() HealthStatus { return s.health }

func (s stubPlugin) HealthMessage() string { return s.healthMessage }

func (s stubPlugin) Status() any { return map[string]string{"stage": "registered"} }

func (s stubPlugin) ConfigureAccessory(acc Accessory) {
	if s.restored != nil {
		*s.restored = append(*s.restored, acc)
	}
}

func newStubPlugin(id string) stubPlugin {
	return stubPlugin{
		id:         id,
		name:       "Demo",
		version:    "0.1.0",
		platform:   "DemoPlatform",
		health:     HealthHealthy,
		dashboards: []Dashboard{{Name: "demo", JSON: []byte("{}")}},
	}
}

func TestRegistryListPlugins(t *testing.T) {
	plugin := newStubPlugin("demo")
	svc := NewRegistryService([]Plugin{plugin})

	plugins := svc.ListPlugins()
	if len(plugins) != 1 {
		t.Fatalf("expected 1 plugin, got %d", len(plugins))
	}

	got := plugins[0]
	if got.PluginID != "demo" || got.DisplayName != "Demo" || got.Version != "0.1.0" {
		t.Fatalf("unexpected plugin summary: %+v", got)
	}
	if got.Status != string(HealthHealthy) {
		t.Fatalf("unexpected health status: %s", got.Status)
	}
}

func TestRegistryDescribePlugin(t *testing.T) {
	plugin := newStubPlugin("demo")
	svc := NewRegistryService([]Plugin{plugin})

	desc, ok := svc.DescribePlugin("demo")
	if !ok {
		t.Fatalf("expected plugin descriptor")
	}
	if desc.PluginID != "demo" {
		t.Fatalf("unexpected plugin id: %s", desc.PluginID)
	}
	if len(desc.Dashboards) != 1 {
		t.Fatalf("expected 1 dashboard, got %d", len(desc.Dashboards))
	}
	if desc.Dashboards[0].Path != "/dashboards/demo/demo.json" {
		t.Fatalf("unexpected dashboard path: %s", desc.Dashboards[0].Path)
	}
	if desc.Detail == nil {
		t.Fatalf("expected status detail from reporter")
	}

	if _, ok := svc.DescribePlugin("missing"); ok {
		t.Fatalf("expected missing plugin to be absent")
	}
}

func TestFilterPlugins(t *testing.T) {
	compiled := []Plugin{newStubPlugin("demo"), newStubPlugin("extra")}

	active := FilterPlugins(compiled, map[string]bool{"demo": true}, false)
	if len(active) != 1 || active[0].ID() != "demo" {
		t.Fatalf("unexpected active plugins: %v", active)
	}

	active = FilterPlugins(compiled, map[string]bool{}, true)
	if len(active) != 2 {
		t.Fatalf("expected all plugins, got %d", len(active))
	}
}

func TestValidateEnabledPlugins(t *testing.T) {
	compiled := []Plugin{newStubPlugin("demo")}

	if err := ValidateEnabledPlugins(compiled, map[string]bool{"demo": true}, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := ValidateEnabledPlugins(compiled, map[string]bool{"missing": true}, false); err == nil {
		t.Fatalf("expected error for missing plugin")
	}
}

func TestValidatePlugins(t *testing.T) {
	if err := ValidatePlugins([]Plugin{newStubPlugin("demo")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidatePlugins([]Plugin{newStubPlugin("Demo")}); err == nil {
		t.Fatalf("expected pattern error")
	}
	if err := ValidatePlugins([]Plugin{newStubPlugin("demo"), newStubPlugin("demo")}); err == nil {
		t.Fatalf("expected duplicate id error")
	}
	if err := ValidatePlugins([]Plugin{newStubPlugin("demo"), newStubPlugin("other")}); err == nil {
		t.Fatalf("expected duplicate platform error")
	}
}

func TestWriteDashboards(t *testing.T) {
	dir := t.TempDir()
	if err := WriteDashboards(dir, []Plugin{newStubPlugin("demo")}); err != nil {
		t.Fatalf("WriteDashboards: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "demo", "demo.json"))
	if err != nil {
		t.Fatalf("read dashboard: %v", err)
	}
	if string(data) != "{}" {
		t.Fatalf("unexpected dashboard content: %s", data)
	}

	dashboards := DashboardsMap([]Plugin{newStubPlugin("demo")})
	if _, ok := dashboards["/dashboards/demo/demo.json"]; !ok {
		t.Fatalf("expected dashboard path in map: %v", dashboards)
	}
}
