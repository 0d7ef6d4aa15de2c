package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultPath         = "/etc/gohome/gohome.yaml"
	DefaultGRPCAddr     = "0.0.0.0:9000"
	DefaultHTTPAddr     = "0.0.0.0:8080"
	DefaultDashboardDir = "/var/lib/gohome/dashboards"
	DefaultLogLevel     = "info"
	DefaultCachePath    = "/var/lib/gohome/accessories.json"
	DefaultCachePrefix  = "gohome/accessories"
	DefaultMQTTPrefix   = "gohome"
)

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"grpc-addr": "core.grpc_addr",
	"http-addr": "core.http_addr",
	"log-level": "core.log_level",
}

// Config is the daemon configuration. Optional sections are nil when absent.
type Config struct {
	Core    CoreConfig     `mapstructure:"core"`
	Cache   CacheConfig    `mapstructure:"cache"`
	MQTT    *MQTTConfig    `mapstructure:"mqtt"`
	Sengled *SengledConfig `mapstructure:"sengled"`
}

type CoreConfig struct {
	GRPCAddr     string `mapstructure:"grpc_addr"`
	HTTPAddr     string `mapstructure:"http_addr"`
	DashboardDir string `mapstructure:"dashboard_dir"`
	LogLevel     string `mapstructure:"log_level"`
}

// CacheConfig locates the accessory cache. A blob endpoint switches the
// cache from the local file to S3-compatible object storage.
type CacheConfig struct {
	Path              string `mapstructure:"path"`
	BlobEndpoint      string `mapstructure:"blob_endpoint"`
	BlobBucket        string `mapstructure:"blob_bucket"`
	BlobPrefix        string `mapstructure:"blob_prefix"`
	BlobRegion        string `mapstructure:"blob_region"`
	BlobAccessKeyFile string `mapstructure:"blob_access_key_file"`
	BlobSecretKeyFile string `mapstructure:"blob_secret_key_file"`
}

type MQTTConfig struct {
	Broker       string `mapstructure:"broker"`
	Username     string `mapstructure:"username"`
	PasswordFile string `mapstructure:"password_file"`
	TopicPrefix  string `mapstructure:"topic_prefix"`
	ClientID     string `mapstructure:"client_id"`
}

type SengledConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	BaseURL  string `mapstructure:"base_url"`
}

// Load reads the YAML config, overlays GOHOME_* environment variables and
// bound flags, applies defaults, and validates. An empty path searches the
// standard locations and tolerates a missing file.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("gohome")
		for _, dir := range searchDirs() {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("gohome")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func searchDirs() []string {
	dirs := []string{filepath.Dir(DefaultPath)}
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		dirs = append(dirs, filepath.Join(dir, "gohome"))
	}
	return append(dirs, ".")
}

func applyDefaults(cfg *Config) {
	if cfg.Core.GRPCAddr == "" {
		cfg.Core.GRPCAddr = DefaultGRPCAddr
	}
	if cfg.Core.HTTPAddr == "" {
		cfg.Core.HTTPAddr = DefaultHTTPAddr
	}
	if cfg.Core.DashboardDir == "" {
		cfg.Core.DashboardDir = DefaultDashboardDir
	}
	if cfg.Core.LogLevel == "" {
		cfg.Core.LogLevel = DefaultLogLevel
	}

	if cfg.Cache.Path == "" {
		cfg.Cache.Path = DefaultCachePath
	}
	if cfg.Cache.BlobPrefix == "" {
		cfg.Cache.BlobPrefix = DefaultCachePrefix
	}

	if cfg.MQTT != nil && cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = DefaultMQTTPrefix
	}
}

// Validate enforces required invariants beyond typing.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	if cfg.Core.GRPCAddr == "" {
		return fmt.Errorf("core.grpc_addr is required")
	}
	if cfg.Core.HTTPAddr == "" {
		return fmt.Errorf("core.http_addr is required")
	}

	if cfg.Cache.BlobEndpoint != "" {
		if cfg.Cache.BlobBucket == "" {
			return fmt.Errorf("cache.blob_bucket is required")
		}
		if cfg.Cache.BlobAccessKeyFile == "" {
			return fmt.Errorf("cache.blob_access_key_file is required")
		}
		if cfg.Cache.BlobSecretKeyFile == "" {
			return fmt.Errorf("cache.blob_secret_key_file is required")
		}
	}

	if cfg.MQTT != nil && cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required")
	}

	if cfg.Sengled != nil {
		if cfg.Sengled.Username == "" {
			return fmt.Errorf("sengled.username is required")
		}
		if cfg.Sengled.Password == "" {
			return fmt.Errorf("sengled.password is required")
		}
	}

	return nil
}

// EnabledPlugins maps enabled plugin IDs based on config presence.
func EnabledPlugins(cfg *Config) map[string]bool {
	enabled := make(map[string]bool)
	if cfg == nil {
		return enabled
	}
	if cfg.Sengled != nil {
		enabled["sengled"] = true
	}
	return enabled
}
