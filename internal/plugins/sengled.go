//go:build !gohome_no_sengled

package plugins

import (
	"github.com/joshp123/gohome-sengled/internal/config"
	"github.com/joshp123/gohome-sengled/internal/core"
	"github.com/joshp123/gohome-sengled/plugins/sengled"
)

func init() {
	Register(func(cfg *config.Config) (core.Plugin, bool) {
		plugin, ok := sengled.NewPlugin(cfg.Sengled)
		if !ok {
			return nil, false
		}
		return plugin, true
	})
}
