package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const cacheSchemaVersion = 1

var ErrCacheNotFound = errors.New("accessory cache not found")

// CacheStore persists the serialized accessory cache.
type CacheStore interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

type cacheFile struct {
	SchemaVersion int         `json:"schema_version"`
	Accessories   []Accessory `json:"accessories"`
}

// AccessoryCache keeps registered accessories across restarts, keyed by UUID
// in first-registration order. A nil store keeps the cache in memory only.
type AccessoryCache struct {
	store CacheStore

	mu      sync.Mutex
	order   []string
	entries map[string]Accessory
}

func NewAccessoryCache(store CacheStore) *AccessoryCache {
	return &AccessoryCache{store: store, entries: make(map[string]Accessory)}
}

// Load replaces the in-memory cache with the persisted one. A missing cache is empty.
func (c *AccessoryCache) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	data, err := c.store.Load(ctx)
	if errors.Is(err, ErrCacheNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load accessory cache: %w", err)
	}

	var file cacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("decode accessory cache: %w", err)
	}
	if file.SchemaVersion != cacheSchemaVersion {
		return fmt.Errorf("unsupported accessory cache schema_version: %d", file.SchemaVersion)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = c.order[:0]
	c.entries = make(map[string]Accessory, len(file.Accessories))
	for _, acc := range file.Accessories {
		if acc.UUID == "" {
			continue
		}
		if _, ok := c.entries[acc.UUID]; !ok {
			c.order = append(c.order, acc.UUID)
		}
		c.entries[acc.UUID] = acc
	}
	return nil
}

// Put upserts accessories and persists the result. It reports which of them
// were already cached.
func (c *AccessoryCache) Put(ctx context.Context, accessories ...Accessory) ([]bool, error) {
	c.mu.Lock()
	existed := make([]bool, len(accessories))
	for i, acc := range accessories {
		if _, ok := c.entries[acc.UUID]; ok {
			existed[i] = true
		} else {
			c.order = append(c.order, acc.UUID)
		}
		c.entries[acc.UUID] = acc
	}
	data, err := c.marshalLocked()
	c.mu.Unlock()
	if err != nil {
		return existed, err
	}

	if c.store == nil {
		return existed, nil
	}
	if err := c.store.Save(ctx, data); err != nil {
		return existed, fmt.Errorf("save accessory cache: %w", err)
	}
	return existed, nil
}

// List returns cached accessories in first-registration order.
func (c *AccessoryCache) List() []Accessory {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Accessory, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.entries[id])
	}
	return out
}

// ForPlugin returns cached accessories owned by a plugin.
func (c *AccessoryCache) ForPlugin(pluginID string) []Accessory {
	var out []Accessory
	for _, acc := range c.List() {
		if acc.PluginID == pluginID {
			out = append(out, acc)
		}
	}
	return out
}

func (c *AccessoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

func (c *AccessoryCache) marshalLocked() ([]byte, error) {
	file := cacheFile{SchemaVersion: cacheSchemaVersion, Accessories: make([]Accessory, 0, len(c.order))}
	for _, id := range c.order {
		file.Accessories = append(file.Accessories, c.entries[id])
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal accessory cache: %w", err)
	}
	return data, nil
}

// FileStore keeps the cache in a local JSON file.
type FileStore struct {
	Path string
}

func (s FileStore) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCacheNotFound
		}
		return nil, fmt.Errorf("read cache: %w", err)
	}
	return data, nil
}

func (s FileStore) Save(_ context.Context, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("mkdir cache dir: %w", err)
	}
	return os.WriteFile(s.Path, data, 0o600)
}
