package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LoadFromFile loads configuration from a YAML file. Environment
// variables prefixed with FLOWCAP_ override file values, e.g.
// FLOWCAP_SERVER_PORT=7500.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)

	v.SetEnvPrefix("FLOWCAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Render marshals a configuration to YAML
func Render(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// WriteToFile writes configuration to a YAML file
func WriteToFile(cfg *Config, filePath string) error {
	data, err := Render(cfg)
	if err != nil {
		return err
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	// Server defaults - use time.Duration values for proper parsing
	v.SetDefault("server.port", 7463)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.read_timeout", time.Duration(30*time.Second))
	v.SetDefault("server.write_timeout", time.Duration(30*time.Second))
	v.SetDefault("server.max_conns_per_ip", 100)
	v.SetDefault("server.concurrency", 1024)
	v.SetDefault("server.poll_window", time.Duration(25*time.Second))

	// Session defaults
	v.SetDefault("session.backend", BackendMemory)
	v.SetDefault("session.file_path", "flowcap-session.json")
	v.SetDefault("session.page_timeout", time.Duration(3*time.Second))
	v.SetDefault("session.poll_interval", time.Duration(2*time.Second))
	v.SetDefault("session.redis.addr", "localhost:6379")
	v.SetDefault("session.redis.key", "flowcap:session")
	v.SetDefault("session.redis.ttl", time.Duration(24*time.Hour))

	// Recordings defaults
	v.SetDefault("recordings.directory", "recordings")
	v.SetDefault("recordings.max_files", 0)

	// Capture defaults
	v.SetDefault("capture.input_idle", time.Duration(500*time.Millisecond))
	v.SetDefault("capture.scroll_idle", time.Duration(200*time.Millisecond))
	v.SetDefault("capture.doubleclick_window", time.Duration(500*time.Millisecond))
	v.SetDefault("capture.max_ancestor_hops", 5)
	v.SetDefault("capture.selector_depth", 4)
	v.SetDefault("capture.indicator_id", "flowcap-indicator")

	// Simulate defaults
	v.SetDefault("simulate.seed", 0)
	v.SetDefault("simulate.locale", "en")
	v.SetDefault("simulate.actions", 12)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.sampling", false)
	v.SetDefault("logging.add_caller", true)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)

	// Middleware defaults
	v.SetDefault("middleware.request_id", true)
	v.SetDefault("middleware.cors.enabled", true)
	v.SetDefault("middleware.cors.allow_origins", []string{"*"})
	v.SetDefault("middleware.cors.allow_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("middleware.cors.allow_headers", []string{"Content-Type", "Authorization"})
	v.SetDefault("middleware.cors.max_age", 3600)
	v.SetDefault("middleware.recovery.enabled", true)
	v.SetDefault("middleware.recovery.log_stack", true)
	v.SetDefault("middleware.auth.enabled", false)
	v.SetDefault("middleware.auth.jwt_method", "HS256")
	v.SetDefault("middleware.auth.public_endpoints", []string{"/api/v1/health"})
	v.SetDefault("middleware.rate_limit.enabled", true)
	v.SetDefault("middleware.rate_limit.sync_per_second", 50)
	v.SetDefault("middleware.rate_limit.sync_burst", 100)
	v.SetDefault("middleware.rate_limit.cleanup_interval", time.Duration(5*time.Minute))
	v.SetDefault("middleware.rate_limit.entry_ttl", time.Duration(30*time.Minute))

	// Hot reload defaults
	v.SetDefault("hotreload.enabled", false)
	v.SetDefault("hotreload.watch_config", true)
	v.SetDefault("hotreload.debounce_delay", time.Duration(500*time.Millisecond))
}
