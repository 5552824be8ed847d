package config

import (
	"time"
)

// Config represents the complete configuration structure
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Session    SessionConfig    `yaml:"session" mapstructure:"session"`
	Recordings RecordingsConfig `yaml:"recordings" mapstructure:"recordings"`
	Capture    CaptureConfig    `yaml:"capture" mapstructure:"capture"`
	Simulate   SimulateConfig   `yaml:"simulate" mapstructure:"simulate"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
	Middleware MiddlewareConfig `yaml:"middleware" mapstructure:"middleware"`
	HotReload  HotReloadConfig  `yaml:"hotreload" mapstructure:"hotreload"`
}

// ServerConfig holds the bridge HTTP server configuration
type ServerConfig struct {
	Port          int           `yaml:"port" mapstructure:"port"`
	Host          string        `yaml:"host" mapstructure:"host"`
	ReadTimeout   time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	MaxConnsPerIP int           `yaml:"max_conns_per_ip" mapstructure:"max_conns_per_ip"`
	Concurrency   int           `yaml:"concurrency" mapstructure:"concurrency"`
	// PollWindow is how long the command channel holds a page's long-poll
	// open before answering empty.
	PollWindow time.Duration `yaml:"poll_window" mapstructure:"poll_window"`
}

// SessionConfig selects and tunes the durable session state store
type SessionConfig struct {
	// Backend is one of "memory", "file" or "redis"
	Backend      string        `yaml:"backend" mapstructure:"backend"`
	FilePath     string        `yaml:"file_path" mapstructure:"file_path"`
	Redis        RedisConfig   `yaml:"redis" mapstructure:"redis"`
	PageTimeout  time.Duration `yaml:"page_timeout" mapstructure:"page_timeout"`
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
}

// RedisConfig holds connection settings for the redis session backend
type RedisConfig struct {
	Addr     string        `yaml:"addr" mapstructure:"addr"`
	Password string        `yaml:"password" mapstructure:"password"`
	DB       int           `yaml:"db" mapstructure:"db"`
	Key      string        `yaml:"key" mapstructure:"key"`
	TTL      time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// RecordingsConfig holds artifact storage configuration
type RecordingsConfig struct {
	Directory string `yaml:"directory" mapstructure:"directory"`
	// MaxFiles caps how many recordings are kept on disk; zero or
	// negative means unlimited.
	MaxFiles int `yaml:"max_files" mapstructure:"max_files"`
}

// CaptureConfig tunes the in-process capture engine
type CaptureConfig struct {
	InputIdle         time.Duration `yaml:"input_idle" mapstructure:"input_idle"`
	ScrollIdle        time.Duration `yaml:"scroll_idle" mapstructure:"scroll_idle"`
	DoubleClickWindow time.Duration `yaml:"doubleclick_window" mapstructure:"doubleclick_window"`
	MaxAncestorHops   int           `yaml:"max_ancestor_hops" mapstructure:"max_ancestor_hops"`
	SelectorDepth     int           `yaml:"selector_depth" mapstructure:"selector_depth"`
	IndicatorID       string        `yaml:"indicator_id" mapstructure:"indicator_id"`
}

// SimulateConfig holds synthetic recording generation configuration
type SimulateConfig struct {
	Seed    int64  `yaml:"seed" mapstructure:"seed"`       // 0 means non-deterministic
	Locale  string `yaml:"locale" mapstructure:"locale"`   // locale for generated identities
	Actions int    `yaml:"actions" mapstructure:"actions"` // actions per generated recording
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `yaml:"level" mapstructure:"level"`
	Format    string `yaml:"format" mapstructure:"format"` // json or console
	Output    string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
	Sampling  bool   `yaml:"sampling" mapstructure:"sampling"`
	AddCaller bool   `yaml:"add_caller" mapstructure:"add_caller"`
}

// MetricsConfig toggles in-process request metrics, served through the
// stats endpoint
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// MiddlewareConfig holds middleware configuration
type MiddlewareConfig struct {
	CORS      CORSConfig      `yaml:"cors" mapstructure:"cors"`
	Timeout   TimeoutConfig   `yaml:"timeout" mapstructure:"timeout"`
	Recovery  RecoveryConfig  `yaml:"recovery" mapstructure:"recovery"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	RequestID bool            `yaml:"request_id" mapstructure:"request_id"`
}

// CORSConfig holds CORS middleware configuration. Extension pages talk
// to the daemon cross-origin, so this stays on by default.
type CORSConfig struct {
	Enabled          bool     `yaml:"enabled" mapstructure:"enabled"`
	AllowOrigins     []string `yaml:"allow_origins" mapstructure:"allow_origins"`
	AllowMethods     []string `yaml:"allow_methods" mapstructure:"allow_methods"`
	AllowHeaders     []string `yaml:"allow_headers" mapstructure:"allow_headers"`
	AllowCredentials bool     `yaml:"allow_credentials" mapstructure:"allow_credentials"`
	MaxAge           int      `yaml:"max_age" mapstructure:"max_age"`
}

// TimeoutConfig holds timeout middleware configuration
type TimeoutConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Duration time.Duration `yaml:"duration" mapstructure:"duration"`
}

// RecoveryConfig holds recovery middleware configuration
type RecoveryConfig struct {
	Enabled    bool `yaml:"enabled" mapstructure:"enabled"`
	PrintStack bool `yaml:"print_stack" mapstructure:"print_stack"`
	LogStack   bool `yaml:"log_stack" mapstructure:"log_stack"`
}

// AuthConfig holds bearer-token authentication for the bridge. Off by
// default since the daemon binds to localhost.
type AuthConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	JWTSecret string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	JWTMethod string `yaml:"jwt_method" mapstructure:"jwt_method"` // HS256, HS384, HS512
	JWTIssuer string `yaml:"jwt_issuer" mapstructure:"jwt_issuer"`
	// PublicEndpoints bypass auth, e.g. the health check
	PublicEndpoints []string `yaml:"public_endpoints" mapstructure:"public_endpoints"`
}

// RateLimitConfig bounds how fast a single page may sync actions
type RateLimitConfig struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	SyncPerSecond   float64       `yaml:"sync_per_second" mapstructure:"sync_per_second"`
	SyncBurst       int           `yaml:"sync_burst" mapstructure:"sync_burst"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
	EntryTTL        time.Duration `yaml:"entry_ttl" mapstructure:"entry_ttl"`
}

// HotReloadConfig holds hot reload configuration
type HotReloadConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	WatchConfig   bool          `yaml:"watch_config" mapstructure:"watch_config"`
	DebounceDelay time.Duration `yaml:"debounce_delay" mapstructure:"debounce_delay"`
}

// Session backend names
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)
