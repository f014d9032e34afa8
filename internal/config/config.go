package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Dispatch modes for the TCP service. All three drive the same protocol core.
const (
	ModeReactor  = "reactor"  // cooperative single-threaded event loop
	ModeThreads  = "threads"  // one goroutine per connection, tracked inline
	ModeProactor = "proactor" // one goroutine per connection via the supervisor
)

// DefaultPort is the well-known hull service port.
const DefaultPort = 9034

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Observer ObserverConfig `yaml:"observer"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"`
}

type MonitorConfig struct {
	Threshold float64 `yaml:"threshold"`
}

// ObserverConfig controls the optional WebSocket/HTTP observer surface.
type ObserverConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: DefaultPort,
			Mode: ModeProactor,
		},
		Monitor: MonitorConfig{
			Threshold: 100.0,
		},
		Observer: ObserverConfig{
			Enabled:          false,
			Host:             "127.0.0.1",
			Port:             9035,
			SnapshotInterval: 5 * time.Second,
		},
	}
}

// Load reads the YAML config at path on top of the coded defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but a missing file yields the defaults
// instead of an error.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if os.IsNotExist(err) {
		return defaultConfig(), nil
	}
	return cfg, err
}

func (c *Config) Validate() error {
	switch c.Server.Mode {
	case ModeReactor, ModeThreads, ModeProactor:
	default:
		return fmt.Errorf("unknown server mode %q", c.Server.Mode)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Observer.Port < 0 || c.Observer.Port > 65535 {
		return fmt.Errorf("observer port %d out of range", c.Observer.Port)
	}
	if c.Monitor.Threshold <= 0 {
		return fmt.Errorf("monitor threshold must be positive, got %g", c.Monitor.Threshold)
	}
	if c.Observer.SnapshotInterval <= 0 {
		return fmt.Errorf("observer snapshot interval must be positive, got %s", c.Observer.SnapshotInterval)
	}
	return nil
}
