package config

import "time"

// Config holds all application configuration, organized into logical groups.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth" validate:"required"`
	Providers ProvidersConfig `mapstructure:"providers" validate:"required"`
	Overlay   OverlayConfig   `mapstructure:"overlay" validate:"required"`
	Remote    RemoteConfig    `mapstructure:"remote"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Sync      SyncConfig      `mapstructure:"sync"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// AuthConfig configures the client-credentials token source used for all
// upstream calls. Token validation for inbound requests is out of scope; the
// caller supplies the user principal.
type AuthConfig struct {
	TokenURL     string   `mapstructure:"token_url" validate:"required,url"`
	ClientID     string   `mapstructure:"client_id" validate:"required"`
	ClientSecret string   `mapstructure:"client_secret" validate:"required"`
	Scopes       []string `mapstructure:"scopes"`
}

// ProvidersConfig contains settings for the two task provider APIs.
type ProvidersConfig struct {
	// BaseURL is the root of the provider API, e.g. the Graph endpoint.
	BaseURL string `mapstructure:"base_url" validate:"required,url"`

	// TodoConcurrency bounds how many todo containers are fetched in
	// parallel during one build.
	TodoConcurrency int `mapstructure:"todo_concurrency" validate:"gte=1"`
}

// OverlayConfig describes the remote list-backed overlay store.
type OverlayConfig struct {
	BaseURL  string `mapstructure:"base_url" validate:"required,url"`
	SiteHost string `mapstructure:"site_host" validate:"required"`
	SitePath string `mapstructure:"site_path" validate:"required"`
	ListName string `mapstructure:"list_name" validate:"required"`

	// ListTTL bounds how long a per-user overlay listing is served from
	// cache before a refresh is attempted.
	ListTTL time.Duration `mapstructure:"list_ttl" validate:"gt=0"`
}

// RemoteConfig tunes the resilient HTTP client shared by the provider
// adapters and the overlay store.
type RemoteConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"gte=1"`
	BaseDelay   time.Duration `mapstructure:"base_delay" validate:"gt=0"`
	MaxDelay    time.Duration `mapstructure:"max_delay" validate:"gt=0"`
	MaxPages    int           `mapstructure:"max_pages" validate:"gte=1"`
	CallTimeout time.Duration `mapstructure:"call_timeout" validate:"gt=0"`
}

// CacheConfig tunes the per-user derived-view caches.
type CacheConfig struct {
	UnifiedTTL      time.Duration `mapstructure:"unified_ttl" validate:"gt=0"`
	WhiteboardTTL   time.Duration `mapstructure:"whiteboard_ttl" validate:"gt=0"`
	SyncStaleWindow time.Duration `mapstructure:"sync_stale_window" validate:"gt=0"`
}

// SyncConfig tunes the whiteboard synchronization job.
type SyncConfig struct {
	Cooldown         time.Duration `mapstructure:"cooldown" validate:"gt=0"`
	PatchConcurrency int           `mapstructure:"patch_concurrency" validate:"gte=1"`
}
