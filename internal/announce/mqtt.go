package announce

import (
	"crypto/tls"
	"fmt"
	"os"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/joshp123/gohome-sengled/internal/config"
)

// MQTTPublisher publishes retained QoS 1 messages through paho.
type MQTTPublisher struct {
	client mqtt.Client
}

func Dial(cfg config.MQTTConfig) (*MQTTPublisher, error) {
	broker := strings.TrimSpace(cfg.Broker)
	if broker == "" {
		return nil, fmt.Errorf("mqtt broker is required")
	}
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	if strings.HasPrefix(broker, "ssl://") || strings.HasPrefix(broker, "tls://") {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.PasswordFile != "" {
		data, err := os.ReadFile(cfg.PasswordFile)
		if err != nil {
			return nil, fmt.Errorf("read mqtt password: %w", err)
		}
		opts.SetPassword(strings.TrimSpace(string(data)))
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "gohome-" + uuid.NewString()[:8]
	}
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect %s: timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, err)
	}
	return &MQTTPublisher{client: client}, nil
}

func (p *MQTTPublisher) Publish(topic string, payload []byte) error {
	token := p.client.Publish(topic, 1, true, payload)
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("mqtt publish %s: timed out", topic)
	}
	return token.Error()
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
