package disk

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// Config holds configuration for reading thin pool metadata
type Config struct {
	CacheBlocks   int    `mapstructure:"cache_blocks"`
	Exclusive     bool   `mapstructure:"exclusive"`
	VerifyCounts  bool   `mapstructure:"verify_counts"`
	CacheMappings bool   `mapstructure:"cache_mappings"`
	Fields        string `mapstructure:"fields"`
	Headers       bool   `mapstructure:"headers"`
}

// Configuration defaults
const (
	DefaultCacheBlocks = 4096
	DefaultFields      = "DEV,MAPPED,CREATE_TIME,SNAP_TIME"
)

// SetDefaults registers the configuration defaults on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("cache_blocks", DefaultCacheBlocks)
	v.SetDefault("exclusive", true)
	v.SetDefault("verify_counts", true)
	v.SetDefault("cache_mappings", false)
	v.SetDefault("fields", DefaultFields)
	v.SetDefault("headers", true)
}

// LoadConfig loads configuration using Viper. Values bound on v (flags)
// take precedence over the environment, which takes precedence over the
// config file. When v has no explicit config file, the standard locations
// are searched and a missing file is not an error.
func LoadConfig(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	explicit := v.ConfigFileUsed() != ""
	if !explicit {
		v.SetConfigName("thinpool-config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.thinpool")
		v.AddConfigPath("/etc/thinpool")
	}

	SetDefaults(v)

	// Allow environment variables
	v.SetEnvPrefix("THINPOOL")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.CacheBlocks < 0 {
		return nil, fmt.Errorf("cache_blocks must not be negative, got %d", config.CacheBlocks)
	}

	return &config, nil
}
