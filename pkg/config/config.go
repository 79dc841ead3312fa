// Package config loads remotekeys settings from defaults, a YAML file,
// REMOTEKEYS_ environment variables and command-line overrides, in that
// order of increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/josh23french/remotekeys/pkg/client"
	"github.com/josh23french/remotekeys/pkg/server"
)

// EnvPrefix is stripped from environment variables. The first underscore
// after it separates the section: REMOTEKEYS_CLIENT_QUEUE_SIZE is
// client.queue_size.
const EnvPrefix = "REMOTEKEYS_"

// Config is the whole configuration surface
type Config struct {
	Endpoint EndpointConfig `koanf:"endpoint"`
	Client   ClientConfig   `koanf:"client"`
	Log      LogConfig      `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Server   ServerConfig   `koanf:"server"`
}

// EndpointConfig is where the client sends events
type EndpointConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// ClientConfig tunes the connection manager
type ClientConfig struct {
	ConnectTimeout    time.Duration `koanf:"connect_timeout"`
	ReconnectInterval time.Duration `koanf:"reconnect_interval"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	QueueSize         int           `koanf:"queue_size"`
}

// LogConfig controls zerolog
type LogConfig struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

// MetricsConfig enables the Prometheus endpoint when Address is set
type MetricsConfig struct {
	Address string `koanf:"address"`
}

// ServerConfig is the receiver's listen address
type ServerConfig struct {
	Address string `koanf:"address"`
}

// Defaults returns the configuration used when nothing else is set
func Defaults() map[string]any {
	return map[string]any{
		"endpoint.host":             "",
		"endpoint.port":             7642,
		"client.connect_timeout":    client.DefaultConnectTimeout.String(),
		"client.reconnect_interval": client.DefaultReconnectInterval.String(),
		"client.write_timeout":      "0s",
		"client.queue_size":         client.DefaultQueueSize,
		"log.level":                 "info",
		"log.pretty":                false,
		"metrics.address":           "",
		"server.address":            server.DefaultAddress,
	}
}

// Load reads path (skipped when empty or missing), the environment and
// overrides, which use dotted keys such as "endpoint.host".
func Load(path string, overrides map[string]any) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(mapProvider(Defaults()), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load file %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(mapProvider(overrides), nil); err != nil {
			return nil, fmt.Errorf("load overrides: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// envKey maps REMOTEKEYS_CLIENT_CONNECT_TIMEOUT to client.connect_timeout
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

// ClientEndpoint validates and returns the configured endpoint
func (c *Config) ClientEndpoint() (client.Endpoint, error) {
	ep := client.Endpoint{Host: c.Endpoint.Host, Port: c.Endpoint.Port}
	return ep, ep.Validate()
}

// ClientOptions turns the client section into Manager options
func (c *Config) ClientOptions() []client.Option {
	return []client.Option{
		client.WithConnectTimeout(c.Client.ConnectTimeout),
		client.WithReconnectInterval(c.Client.ReconnectInterval),
		client.WithWriteTimeout(c.Client.WriteTimeout),
		client.WithQueueSize(c.Client.QueueSize),
	}
}

// Apply configures the global zerolog logger
func (l LogConfig) Apply() error {
	level, err := zerolog.ParseLevel(strings.ToLower(l.Level))
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)
	if l.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return nil
}

// mapProvider feeds a plain map to koanf
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("config: map provider does not support ReadBytes")
}

func (m mapProvider) Read() (map[string]any, error) {
	return unflatten(m), nil
}

// unflatten turns {"a.b": 1} into {"a": {"b": 1}} so koanf merges it with
// the nested maps the other providers produce
func unflatten(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for key, v := range flat {
		parts := strings.Split(key, ".")
		cur := out
		for _, p := range parts[:len(parts)-1] {
			next, ok := cur[p].(map[string]any)
			if !ok {
				next = make(map[string]any)
				cur[p] = next
			}
			cur = next
		}
		cur[parts[len(parts)-1]] = v
	}
	return out
}
