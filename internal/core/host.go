package core

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
)

// AccessoryListener observes accessory registrations.
type AccessoryListener interface {
	AccessoryRegistered(ctx context.Context, acc Accessory) error
}

// Host is the platform plugins run against. It owns the readiness signal,
// the leveled logger, and the accessory cache.
type Host struct {
	log       *log.Logger
	cache     *AccessoryCache
	listeners []AccessoryListener

	ready     chan struct{}
	readyOnce sync.Once
}

func NewHost(logger *log.Logger, cache *AccessoryCache, listeners ...AccessoryListener) *Host {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if cache == nil {
		cache = NewAccessoryCache(nil)
	}
	return &Host{
		log:       logger,
		cache:     cache,
		listeners: listeners,
		ready:     make(chan struct{}),
	}
}

// Logger returns the host logger prefixed for a plugin.
func (h *Host) Logger(pluginID string) *log.Logger {
	return h.log.WithPrefix(pluginID)
}

// Ready is closed once the host has finished launching.
func (h *Host) Ready() <-chan struct{} {
	return h.ready
}

// FinishLaunching fires the readiness signal. Repeated calls are no-ops.
func (h *Host) FinishLaunching() {
	h.readyOnce.Do(func() {
		h.log.Info("finished launching", "cached_accessories", h.cache.Len())
		close(h.ready)
	})
}

// Start hands the host to every plugin that runs startup work.
func (h *Host) Start(ctx context.Context, plugins []Plugin) {
	for _, plugin := range plugins {
		if starter, ok := plugin.(Starter); ok {
			starter.Start(ctx, h)
		}
	}
}

// RestoreCached passes each plugin the accessories it registered in earlier runs.
func (h *Host) RestoreCached(plugins []Plugin) {
	for _, plugin := range plugins {
		restorer, ok := plugin.(AccessoryRestorer)
		if !ok {
			continue
		}
		for _, acc := range h.cache.ForPlugin(plugin.ID()) {
			restorer.ConfigureAccessory(acc)
		}
	}
	accessoriesCached.Set(float64(h.cache.Len()))
}

func (h *Host) NewAccessory(displayName, id string) Accessory {
	return NewAccessory(displayName, id)
}

// RegisterPlatformAccessories makes accessories visible under a plugin and
// platform. An accessory whose UUID is already cached replaces the cached entry.
// Cache persistence and listener failures are logged, not returned.
func (h *Host) RegisterPlatformAccessories(ctx context.Context, pluginID, platformID string, accessories []Accessory) error {
	if pluginID == "" || platformID == "" {
		return fmt.Errorf("plugin and platform identifiers are required")
	}

	stamped := make([]Accessory, 0, len(accessories))
	for _, acc := range accessories {
		if acc.UUID == "" {
			return fmt.Errorf("accessory %q has no uuid", acc.DisplayName)
		}
		acc.PluginID = pluginID
		acc.PlatformID = platformID
		stamped = append(stamped, acc)
	}

	existed, err := h.cache.Put(ctx, stamped...)
	if err != nil {
		h.log.Warn("accessory cache not persisted", "plugin", pluginID, "err", err)
	}

	for i, acc := range stamped {
		registrations.WithLabelValues(pluginID).Inc()
		if existed[i] {
			h.log.Debug("refreshed cached accessory", "plugin", pluginID, "name", acc.DisplayName, "uuid", acc.UUID)
		} else {
			h.log.Info("registered accessory", "plugin", pluginID, "name", acc.DisplayName, "uuid", acc.UUID)
		}
		for _, listener := range h.listeners {
			if err := listener.AccessoryRegistered(ctx, acc); err != nil {
				h.log.Warn("accessory listener failed", "uuid", acc.UUID, "err", err)
			}
		}
	}

	accessoriesCached.Set(float64(h.cache.Len()))
	return nil
}

// Accessories lists every known accessory in registration order.
func (h *Host) Accessories() []Accessory {
	return h.cache.List()
}
