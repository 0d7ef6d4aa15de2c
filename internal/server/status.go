package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/joshp123/gohome-sengled/internal/core"
)

type statusResponse struct {
	Plugins     []core.PluginSummary `json:"plugins"`
	Accessories []core.Accessory     `json:"accessories"`
}

// StatusHandler reports plugin health, last-run detail, and known accessories.
// /status/<plugin_id> narrows the response to one plugin.
func StatusHandler(registry *core.RegistryService, host *core.Host) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/status"), "/"); id != "" {
			summary, ok := registry.DescribePlugin(id)
			if !ok {
				http.NotFound(w, r)
				return
			}
			writeJSON(w, summary)
			return
		}

		resp := statusResponse{Accessories: host.Accessories()}
		for _, summary := range registry.ListPlugins() {
			if detailed, ok := registry.DescribePlugin(summary.PluginID); ok {
				summary = detailed
			}
			resp.Plugins = append(resp.Plugins, summary)
		}
		writeJSON(w, resp)
	})
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(value)
}
