package core

import (
	fmt "fmt"
	"regexp"
)

var pluginIDPattern = regexp.MustCompile(`^[a-z][a-z0-9_]+$`)

// ValidatePlugins enforces basic plugin contract invariants at startup.
func ValidatePlugins(plugins []Plugin) error {
	seen := make(map[string]bool)
	platforms := make(map[string]string)
	for _, plugin := range plugins {
		id := plugin.ID()
		manifest := plugin.Manifest()
		if id == "" {
			return fmt.Errorf("plugin id is empty")
		}
		if !pluginIDPattern.MatchString(id) {
			return fmt.Errorf("plugin id %q does not match %s", id, pluginIDPattern.String())
		}
		if manifest.PluginID != id {
			return fmt.Errorf("plugin id mismatch: id=%q manifest=%q", id, manifest.PluginID)
		}
		if seen[id] {
			return fmt.Errorf("duplicate plugin id: %s", id)
		}
		seen[id] = true

		if manifest.PlatformID == "" {
			continue
		}
		if owner, ok := platforms[manifest.PlatformID]; ok {
			return fmt.Errorf("platform %q claimed by both %s and %s", manifest.PlatformID, owner, id)
		}
		platforms[manifest.PlatformID] = id
	}
	return nil
}

// FilterPlugins keeps the plugins enabled in config. all=true keeps everything.
func FilterPlugins(compiled []Plugin, enabled map[string]bool, all bool) []Plugin {
	if all {
		return compiled
	}
	out := make([]Plugin, 0, len(compiled))
	for _, plugin := range compiled {
		if enabled[plugin.ID()] {
			out = append(out, plugin)
		}
	}
	return out
}

// ValidateEnabledPlugins fails when config enables a plugin this build does not carry.
func ValidateEnabledPlugins(compiled []Plugin, enabled map[string]bool, all bool) error {
	if all {
		return nil
	}
	known := make(map[string]bool, len(compiled))
	for _, plugin := range compiled {
		known[plugin.ID()] = true
	}
	for id := range enabled {
		if !known[id] {
			return fmt.Errorf("plugin %q is enabled in config but not compiled in", id)
		}
	}
	return nil
}
