package config

import (
	"fmt"
	"strings"
)

// Config is the top-level server configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Logs    LogsConfig    `mapstructure:"logs" yaml:"logs"`
	Redis   RedisConfig   `mapstructure:"redis" yaml:"redis"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// Listen is the host:port the admin API binds to
	Listen string `mapstructure:"listen" yaml:"listen"`
}

// StorageConfig selects the project and rule store.
type StorageConfig struct {
	// Backend is memory or etcd
	Backend       string   `mapstructure:"backend" yaml:"backend"`
	EtcdEndpoints []string `mapstructure:"etcd_endpoints" yaml:"etcd_endpoints"`
}

// LogsConfig selects the request log store.
type LogsConfig struct {
	// Backend is memory or redis
	Backend string `mapstructure:"backend" yaml:"backend"`
	// MaxLimit caps the page size a client may ask for
	MaxLimit int `mapstructure:"max_limit" yaml:"max_limit"`
	// Retain caps how many entries the redis store keeps; 0 keeps all
	Retain int64 `mapstructure:"retain" yaml:"retain"`
}

// RedisConfig Redis connection settings
type RedisConfig struct {
	Address  string `mapstructure:"address" yaml:"address"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	// Key is the list holding log entries
	Key string `mapstructure:"key" yaml:"key"`
}

// LogConfig logging settings
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen: "0.0.0.0:8080",
		},
		Storage: StorageConfig{
			Backend:       "memory",
			EtcdEndpoints: []string{"localhost:2379"},
		},
		Logs: LogsConfig{
			Backend:  "memory",
			MaxLimit: 100,
			Retain:   10000,
		},
		Redis: RedisConfig{
			Address: "localhost:6379",
			DB:      0,
			Key:     "hcapi:logs",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Listen) == "" {
		return fmt.Errorf("server.listen is required")
	}

	switch c.Storage.Backend {
	case "memory":
	case "etcd":
		if len(c.Storage.EtcdEndpoints) == 0 {
			return fmt.Errorf("storage.etcd_endpoints is required for the etcd backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q (want memory or etcd)", c.Storage.Backend)
	}

	switch c.Logs.Backend {
	case "memory":
	case "redis":
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address is required for the redis log backend")
		}
	default:
		return fmt.Errorf("unknown logs.backend %q (want memory or redis)", c.Logs.Backend)
	}

	if c.Logs.MaxLimit < 1 {
		return fmt.Errorf("logs.max_limit must be positive")
	}
	if c.Logs.Retain < 0 {
		return fmt.Errorf("logs.retain must not be negative")
	}
	return nil
}
