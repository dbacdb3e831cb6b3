// Package config loads console settings from a YAML or TOML file, the
// environment, and command-line flags, in increasing order of precedence.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/openloop/podctl/internal/logger"
)

// Config holds all console settings.
type Config struct {
	Pod       PodConfig       `yaml:"pod" toml:"pod"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat" toml:"heartbeat"`
	Console   ConsoleConfig   `yaml:"console" toml:"console"`
	Journal   JournalConfig   `yaml:"journal" toml:"journal"`
	Logging   logger.Config   `yaml:"logging" toml:"logging"`
}

// PodConfig describes where the pod controller listens.
type PodConfig struct {
	Host string `yaml:"host" toml:"host"`
	Port int    `yaml:"port" toml:"port"`

	// Transport is "tcp" or "ws".
	Transport string `yaml:"transport" toml:"transport"`

	// Path is the WebSocket bridge path, ignored for tcp.
	Path string `yaml:"path" toml:"path"`

	// ConnectTimeoutMS bounds a single connect attempt.
	ConnectTimeoutMS int `yaml:"connect_timeout_ms" toml:"connect_timeout_ms"`

	// RetryDelayMS is the pause between failed connect attempts.
	RetryDelayMS int `yaml:"retry_delay_ms" toml:"retry_delay_ms"`
}

// HeartbeatConfig holds liveness ping settings.
type HeartbeatConfig struct {
	IntervalMS int `yaml:"interval_ms" toml:"interval_ms"`

	// TimeoutMS is how long the pod may stay silent before the session is dropped.
	TimeoutMS int `yaml:"timeout_ms" toml:"timeout_ms"`
}

// ConsoleConfig holds interactive console settings.
type ConsoleConfig struct {
	// DiscoveryCommand is sent once after every successful connect.
	DiscoveryCommand string `yaml:"discovery_command" toml:"discovery_command"`

	// PollIntervalMS bounds how long the loop waits without redrawing.
	PollIntervalMS int `yaml:"poll_interval_ms" toml:"poll_interval_ms"`

	// Color is "auto", "always" or "never".
	Color string `yaml:"color" toml:"color"`
}

// JournalConfig enables the audit journal when DSN is set.
type JournalConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
	DSN    string `yaml:"dsn" toml:"dsn"`
}

// DefaultConfig returns a Config matching the pod's stock deployment.
func DefaultConfig() *Config {
	return &Config{
		Pod: PodConfig{
			Host:             "127.0.0.1",
			Port:             7779,
			Transport:        "tcp",
			Path:             "/",
			ConnectTimeoutMS: 1000,
			RetryDelayMS:     1000,
		},
		Heartbeat: HeartbeatConfig{
			IntervalMS: 200,
			TimeoutMS:  10000,
		},
		Console: ConsoleConfig{
			DiscoveryCommand: "help",
			PollIntervalMS:   100,
			Color:            "auto",
		},
		Journal: JournalConfig{
			Driver: "sqlite",
		},
		Logging: logger.DefaultConfig(),
	}
}

// LoadConfig loads configuration from path. Files ending in .toml are parsed
// as TOML, anything else as YAML. A missing file yields the defaults; a file
// that fails to parse yields the defaults and the parse error.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return config, fmt.Errorf("read config file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), config); err != nil {
			return DefaultConfig(), fmt.Errorf("parse config file %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return DefaultConfig(), fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	return config, nil
}

// ApplyEnv applies environment variable overrides.
func (c *Config) ApplyEnv() {
	if host := os.Getenv("PODCTL_HOST"); host != "" {
		c.Pod.Host = host
	}
	if port := os.Getenv("PODCTL_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			c.Pod.Port = n
		}
	}
	if transport := os.Getenv("PODCTL_TRANSPORT"); transport != "" {
		c.Pod.Transport = transport
	}
	if dsn := os.Getenv("PODCTL_JOURNAL"); dsn != "" {
		c.Journal.DSN = dsn
	}
	c.Logging.ApplyEnv()
}

// Validate reports the first setting the console cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Pod.Host) == "" {
		return fmt.Errorf("pod host must not be empty")
	}
	if c.Pod.Port < 1 || c.Pod.Port > 65535 {
		return fmt.Errorf("pod port %d out of range 1-65535", c.Pod.Port)
	}
	switch c.Pod.Transport {
	case "tcp", "ws":
	default:
		return fmt.Errorf("unknown transport %q (want tcp or ws)", c.Pod.Transport)
	}
	if c.Pod.ConnectTimeoutMS <= 0 || c.Pod.RetryDelayMS <= 0 {
		return fmt.Errorf("connect timeout and retry delay must be positive")
	}
	if c.Heartbeat.IntervalMS <= 0 {
		return fmt.Errorf("heartbeat interval must be positive, got %dms", c.Heartbeat.IntervalMS)
	}
	if c.Heartbeat.TimeoutMS <= 0 {
		return fmt.Errorf("heartbeat timeout must be positive, got %dms", c.Heartbeat.TimeoutMS)
	}
	if c.Console.PollIntervalMS <= 0 {
		return fmt.Errorf("poll interval must be positive, got %dms", c.Console.PollIntervalMS)
	}
	switch c.Console.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("unknown color mode %q (want auto, always or never)", c.Console.Color)
	}
	switch c.Journal.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown journal driver %q (want sqlite or postgres)", c.Journal.Driver)
	}
	return nil
}

// Address returns the pod's host:port.
func (c *PodConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *PodConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMS) * time.Millisecond
}

func (c *PodConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

func (c *HeartbeatConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

func (c *HeartbeatConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

func (c *ConsoleConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}
