package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from an optional config.yaml in the working
// directory and from environment variables with the TASKBOARD_ prefix.
// Environment variables take precedence over file values, which take
// precedence over defaults. The result is validated before being returned.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults still apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("TASKBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about, so bind the
	// keys that have no default explicitly.
	for _, key := range []string{
		"auth.token_url",
		"auth.client_id",
		"auth.client_secret",
		"auth.scopes",
		"providers.base_url",
		"overlay.base_url",
		"overlay.site_host",
		"overlay.site_path",
		"overlay.list_name",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("providers.todo_concurrency", 4)

	v.SetDefault("overlay.list_ttl", "45s")

	v.SetDefault("remote.max_attempts", 5)
	v.SetDefault("remote.base_delay", "500ms")
	v.SetDefault("remote.max_delay", "8s")
	v.SetDefault("remote.max_pages", 1000)
	v.SetDefault("remote.call_timeout", "30s")

	v.SetDefault("cache.unified_ttl", "60s")
	v.SetDefault("cache.whiteboard_ttl", "30s")
	v.SetDefault("cache.sync_stale_window", "5m")

	v.SetDefault("sync.cooldown", "90s")
	v.SetDefault("sync.patch_concurrency", 4)
}
