package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration. Precedence, highest first: HCAPI_* environment
// variables, the config file, defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("HCAPI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	} else {
		v.SetConfigName("hcapi")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.hcapi")

		// Missing default config files are fine
		_ = v.ReadInConfig()
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()

	v.SetDefault("server.listen", defaults.Server.Listen)

	v.SetDefault("storage.backend", defaults.Storage.Backend)
	v.SetDefault("storage.etcd_endpoints", defaults.Storage.EtcdEndpoints)

	v.SetDefault("logs.backend", defaults.Logs.Backend)
	v.SetDefault("logs.max_limit", defaults.Logs.MaxLimit)
	v.SetDefault("logs.retain", defaults.Logs.Retain)

	v.SetDefault("redis.address", defaults.Redis.Address)
	v.SetDefault("redis.password", defaults.Redis.Password)
	v.SetDefault("redis.db", defaults.Redis.DB)
	v.SetDefault("redis.key", defaults.Redis.Key)

	v.SetDefault("log.level", defaults.Log.Level)
}

// bindEnvVars maps the environment names that don't follow the key layout.
func bindEnvVars(v *viper.Viper) {
	envBindings := map[string]string{
		"storage.etcd_endpoints": "HCAPI_ETCD_ENDPOINTS",
		"redis.address":          "HCAPI_REDIS_ADDR",
		"log.level":              "LOG_LEVEL",
	}

	for key, env := range envBindings {
		_ = v.BindEnv(key, "HCAPI_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}
}
