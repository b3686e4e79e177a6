package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Detection DetectionConfig `yaml:"detection" mapstructure:"detection"`
	Locate    LocateConfig    `yaml:"locate" mapstructure:"locate"`
	Redaction RedactionConfig `yaml:"redaction" mapstructure:"redaction"`
	Preview   PreviewConfig   `yaml:"preview" mapstructure:"preview"`
	Session   SessionConfig   `yaml:"session" mapstructure:"session"`
	Accounts  AccountsConfig  `yaml:"accounts" mapstructure:"accounts"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	WebSocket WebSocketConfig `yaml:"websocket" mapstructure:"websocket"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port           int           `yaml:"port" mapstructure:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`
	// TrustUserHeader takes the user ID from X-User-ID. Enable only behind a proxy that
	// authenticates users and sets the header itself.
	TrustUserHeader bool `yaml:"trust_user_header" mapstructure:"trust_user_header"`
}

// DetectionConfig selects which PII rules run
type DetectionConfig struct {
	Detectors []string `yaml:"detectors" mapstructure:"detectors"`
}

// LocateConfig controls how textual matches are mapped onto the page
type LocateConfig struct {
	OccurrenceOrder bool `yaml:"occurrence_order" mapstructure:"occurrence_order"`
	IgnoreCase      bool `yaml:"ignore_case" mapstructure:"ignore_case"`
}

// RedactionConfig controls how redacted documents are written
type RedactionConfig struct {
	ValidationMode string `yaml:"validation_mode" mapstructure:"validation_mode"` // relaxed or strict
	Optimize       bool   `yaml:"optimize" mapstructure:"optimize"`
}

// PreviewConfig controls page rasterisation
type PreviewConfig struct {
	Scale            float64 `yaml:"scale" mapstructure:"scale"`
	HighlightOpacity float64 `yaml:"highlight_opacity" mapstructure:"highlight_opacity"`
	ThumbnailWidth   int     `yaml:"thumbnail_width" mapstructure:"thumbnail_width"`
}

// SessionConfig controls per-user document sessions
type SessionConfig struct {
	IdleTimeout   time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	SweepInterval time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
	MaxSessions   int           `yaml:"max_sessions" mapstructure:"max_sessions"`
}

// AccountsConfig points at the store holding each user's tier
type AccountsConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	Driver          string        `yaml:"driver" mapstructure:"driver"` // postgres or sqlite
	DSN             string        `yaml:"dsn" mapstructure:"dsn"`
	DefaultTier     string        `yaml:"default_tier" mapstructure:"default_tier"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// CacheConfig contains the tier cache configuration
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	RedisURL  string        `yaml:"redis_url" mapstructure:"redis_url"`
	TTL       time.Duration `yaml:"ttl" mapstructure:"ttl"`
	KeyPrefix string        `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// RateLimitConfig contains per-client request limits
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `yaml:"burst" mapstructure:"burst"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
	MaxIdle           time.Duration `yaml:"max_idle" mapstructure:"max_idle"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"file" mapstructure:"file"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	Path            string        `yaml:"path" mapstructure:"path"`
	MaxConnections  int           `yaml:"max_connections" mapstructure:"max_connections"`
	ReadBufferSize  int           `yaml:"read_buffer_size" mapstructure:"read_buffer_size"`
	WriteBufferSize int           `yaml:"write_buffer_size" mapstructure:"write_buffer_size"`
	PingInterval    time.Duration `yaml:"ping_interval" mapstructure:"ping_interval"`
	PongTimeout     time.Duration `yaml:"pong_timeout" mapstructure:"pong_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	MaxMessageSize  int64         `yaml:"max_message_size" mapstructure:"max_message_size"`
	AllowedOrigins  []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	Events          struct {
		BroadcastDocuments   bool `yaml:"broadcast_documents" mapstructure:"broadcast_documents"`
		BroadcastRedactions  bool `yaml:"broadcast_redactions" mapstructure:"broadcast_redactions"`
		BroadcastSystem      bool `yaml:"broadcast_system" mapstructure:"broadcast_system"`
		BroadcastConnections bool `yaml:"broadcast_connections" mapstructure:"broadcast_connections"`
	} `yaml:"events" mapstructure:"events"`
	Auth struct {
		Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
		Username string `yaml:"username" mapstructure:"username"`
		Password string `yaml:"password" mapstructure:"password"`
	} `yaml:"auth" mapstructure:"auth"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:           8080,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   60 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxUploadBytes: 50 << 20,
		},
		Detection: DetectionConfig{
			Detectors: []string{"all"},
		},
		Locate: LocateConfig{
			OccurrenceOrder: false,
			IgnoreCase:      true,
		},
		Redaction: RedactionConfig{
			ValidationMode: "relaxed",
			Optimize:       true,
		},
		Preview: PreviewConfig{
			Scale:            1.5,
			HighlightOpacity: 0.3,
			ThumbnailWidth:   240,
		},
		Session: SessionConfig{
			IdleTimeout:   30 * time.Minute,
			SweepInterval: time.Minute,
			MaxSessions:   1000,
		},
		Accounts: AccountsConfig{
			Enabled:         false,
			Driver:          "sqlite",
			DSN:             "file:accounts.db",
			DefaultTier:     "standard",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Cache: CacheConfig{
			Enabled:   false,
			RedisURL:  "redis://localhost:6379/0",
			TTL:       5 * time.Minute,
			KeyPrefix: "pdf-redactor:tier:",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 10,
			Burst:             20,
			CleanupInterval:   5 * time.Minute,
			MaxIdle:           10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		WebSocket: WebSocketConfig{
			Enabled:         true,
			Path:            "/ws",
			MaxConnections:  100,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingInterval:    54 * time.Second,
			PongTimeout:     60 * time.Second,
			WriteTimeout:    10 * time.Second,
			MaxMessageSize:  512,
			AllowedOrigins:  []string{"*"},
		},
	}

	cfg.Logging.File.Path = "logs/pdf-redactor.log"

	cfg.WebSocket.Events.BroadcastDocuments = true
	cfg.WebSocket.Events.BroadcastRedactions = true
	cfg.WebSocket.Events.BroadcastSystem = true
	cfg.WebSocket.Events.BroadcastConnections = true

	return cfg
}
