package announce

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/joshp123/gohome-sengled/internal/core"
)

// Publisher sends retained messages to a broker.
type Publisher interface {
	Publish(topic string, payload []byte) error
	Close()
}

type accessoryMessage struct {
	UUID     string         `json:"uuid"`
	Name     string         `json:"name"`
	Plugin   string         `json:"plugin"`
	Platform string         `json:"platform"`
	Context  map[string]any `json:"context,omitempty"`
}

// Announcer publishes every registered accessory to <prefix>/accessories/<uuid>.
type Announcer struct {
	pub    Publisher
	prefix string
}

func New(pub Publisher, prefix string) *Announcer {
	return &Announcer{pub: pub, prefix: prefix}
}

func (a *Announcer) AccessoryRegistered(_ context.Context, acc core.Accessory) error {
	payload, err := json.Marshal(accessoryMessage{
		UUID:     acc.UUID,
		Name:     acc.DisplayName,
		Plugin:   acc.PluginID,
		Platform: acc.PlatformID,
		Context:  acc.Context,
	})
	if err != nil {
		return fmt.Errorf("marshal accessory: %w", err)
	}
	return a.pub.Publish(a.Topic(acc.UUID), payload)
}

func (a *Announcer) Topic(uuid string) string {
	return path.Join(a.prefix, "accessories", uuid)
}

func (a *Announcer) Close() {
	a.pub.Close()
}
