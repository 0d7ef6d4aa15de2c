package sengled

import (
	"fmt"
	"strings"

	"github.com/joshp123/gohome-sengled/internal/config"
)

const (
	defaultBaseURL = "https://us-openapi.cloud.sengled.com"
)

// Credentials are the Sengled account login. They are never re-validated.
type Credentials struct {
	Username string
	Password string
}

// Config defines runtime configuration for the Sengled client.
type Config struct {
	BaseURL     string
	Credentials Credentials
}

func ConfigFromSettings(cfg *config.SengledConfig) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("sengled config is required")
	}
	if cfg.Username == "" {
		return Config{}, fmt.Errorf("sengled username is required")
	}
	if cfg.Password == "" {
		return Config{}, fmt.Errorf("sengled password is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return Config{
		BaseURL: baseURL,
		Credentials: Credentials{
			Username: cfg.Username,
			Password: cfg.Password,
		},
	}, nil
}
