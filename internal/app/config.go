package app

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/linkfield/clientd/internal/channel"
)

// Config is the runtime configuration for the clientd daemon.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Gateway       GatewayConfig       `mapstructure:"gateway"`
	Channel       ChannelConfig       `mapstructure:"channel"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Maintenance   MaintenanceConfig   `mapstructure:"maintenance"`
	Monitoring    MonitoringConfig    `mapstructure:"monitoring"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// ServerConfig configures the local HTTP API. The daemon serves the UI shell
// on the loopback interface; exposing it wider is a deliberate operator act.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// GatewayConfig points the daemon at the Linkfield gateway.
type GatewayConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	WSURL          string        `mapstructure:"ws_url"`
	Token          string        `mapstructure:"token"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
}

// ChannelConfig tunes push-channel reconnect behaviour and the topics the
// daemon subscribes to at startup.
type ChannelConfig struct {
	Topics        []string      `mapstructure:"topics"`
	BackoffBase   time.Duration `mapstructure:"backoff_base"`
	BackoffMax    time.Duration `mapstructure:"backoff_max"`
	BackoffJitter float64       `mapstructure:"backoff_jitter"`
}

// Backoff translates the section into a channel backoff policy.
func (c ChannelConfig) Backoff() channel.BackoffPolicy {
	policy := channel.DefaultBackoff()
	if c.BackoffBase > 0 {
		policy.Base = c.BackoffBase
	}
	if c.BackoffMax > 0 {
		policy.Max = c.BackoffMax
	}
	if c.BackoffJitter > 0 {
		policy.Jitter = c.BackoffJitter
	}
	return policy
}

// NotificationsConfig tunes the notification queue.
type NotificationsConfig struct {
	DefaultDuration time.Duration `mapstructure:"default_duration"`
}

// MaintenanceConfig schedules the background cleanup loop.
type MaintenanceConfig struct {
	Schedule              string        `mapstructure:"schedule"`
	NotificationRetention time.Duration `mapstructure:"notification_retention"`
	ActionRetention       time.Duration `mapstructure:"action_retention"`
}

// MonitoringConfig enables metrics and health endpoints.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles the metrics endpoint.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig selects log level and encoding.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig initialises configuration using viper. Values come from
// config.yaml in ./config or any extra search path, overridden by LINKD_
// environment variables. A missing config file is fine; defaults cover
// every key.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("LINKD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 7600)
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("gateway.base_url", "https://gateway.linkfield.com")
	v.SetDefault("gateway.ws_url", "")
	v.SetDefault("gateway.token", "")
	v.SetDefault("gateway.request_timeout", "15s")
	v.SetDefault("gateway.dial_timeout", "5s")

	v.SetDefault("channel.topics", channel.DefaultTopics())
	v.SetDefault("channel.backoff_base", "1s")
	v.SetDefault("channel.backoff_max", "30s")
	v.SetDefault("channel.backoff_jitter", 0.2)

	v.SetDefault("notifications.default_duration", "5s")

	v.SetDefault("maintenance.schedule", "@hourly")
	v.SetDefault("maintenance.notification_retention", "24h")
	v.SetDefault("maintenance.action_retention", "1h")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
