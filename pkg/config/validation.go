package config

import (
	"fmt"
	"net"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error in field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(ve[0].Error())
	if len(ve) > 1 {
		sb.WriteString(fmt.Sprintf(" (and %d more errors)", len(ve)-1))
	}
	return sb.String()
}

// Validate validates the complete configuration
func Validate(cfg *Config) error {
	var errors ValidationErrors

	if errs := validateServer(&cfg.Server); len(errs) > 0 {
		errors = append(errors, errs...)
	}

	if errs := validateSession(&cfg.Session); len(errs) > 0 {
		errors = append(errors, errs...)
	}

	if errs := validateRecordings(&cfg.Recordings); len(errs) > 0 {
		errors = append(errors, errs...)
	}

	if errs := validateCapture(&cfg.Capture); len(errs) > 0 {
		errors = append(errors, errs...)
	}

	if errs := validateLogging(&cfg.Logging); len(errs) > 0 {
		errors = append(errors, errs...)
	}

	if errs := validateMiddleware(&cfg.Middleware); len(errs) > 0 {
		errors = append(errors, errs...)
	}

	if len(errors) > 0 {
		return errors
	}

	return nil
}

func validateServer(cfg *ServerConfig) ValidationErrors {
	var errors ValidationErrors

	if cfg.Port < 1 || cfg.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "server.port",
			Value:   cfg.Port,
			Message: "must be between 1 and 65535",
		})
	}

	if cfg.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "server.host",
			Value:   cfg.Host,
			Message: "cannot be empty",
		})
	} else if net.ParseIP(cfg.Host) == nil && cfg.Host != "localhost" {
		// Try to resolve as hostname
		if _, err := net.LookupHost(cfg.Host); err != nil {
			errors = append(errors, ValidationError{
				Field:   "server.host",
				Value:   cfg.Host,
				Message: "must be a valid IP address or hostname",
			})
		}
	}

	if cfg.ReadTimeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "server.read_timeout",
			Value:   cfg.ReadTimeout,
			Message: "must be greater than 0",
		})
	}

	if cfg.WriteTimeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "server.write_timeout",
			Value:   cfg.WriteTimeout,
			Message: "must be greater than 0",
		})
	}

	// A long-poll must finish before the write timeout cuts it off
	if cfg.PollWindow > 0 && cfg.WriteTimeout > 0 && cfg.PollWindow >= cfg.WriteTimeout {
		errors = append(errors, ValidationError{
			Field:   "server.poll_window",
			Value:   cfg.PollWindow,
			Message: "must be shorter than server.write_timeout",
		})
	}

	if cfg.Concurrency < 1 {
		errors = append(errors, ValidationError{
			Field:   "server.concurrency",
			Value:   cfg.Concurrency,
			Message: "must be greater than 0",
		})
	}

	return errors
}

func validateSession(cfg *SessionConfig) ValidationErrors {
	var errors ValidationErrors

	switch cfg.Backend {
	case BackendMemory:
	case BackendFile:
		if cfg.FilePath == "" {
			errors = append(errors, ValidationError{
				Field:   "session.file_path",
				Value:   cfg.FilePath,
				Message: "cannot be empty with the file backend",
			})
		}
	case BackendRedis:
		if cfg.Redis.Addr == "" {
			errors = append(errors, ValidationError{
				Field:   "session.redis.addr",
				Value:   cfg.Redis.Addr,
				Message: "cannot be empty with the redis backend",
			})
		}
		if cfg.Redis.Key == "" {
			errors = append(errors, ValidationError{
				Field:   "session.redis.key",
				Value:   cfg.Redis.Key,
				Message: "cannot be empty with the redis backend",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "session.backend",
			Value:   cfg.Backend,
			Message: "must be one of: memory, file, redis",
		})
	}

	if cfg.PageTimeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "session.page_timeout",
			Value:   cfg.PageTimeout,
			Message: "must be greater than 0",
		})
	}

	return errors
}

func validateRecordings(cfg *RecordingsConfig) ValidationErrors {
	var errors ValidationErrors

	if cfg.Directory == "" {
		errors = append(errors, ValidationError{
			Field:   "recordings.directory",
			Value:   cfg.Directory,
			Message: "cannot be empty",
		})
	}

	return errors
}

func validateCapture(cfg *CaptureConfig) ValidationErrors {
	var errors ValidationErrors

	if cfg.InputIdle <= 0 {
		errors = append(errors, ValidationError{
			Field:   "capture.input_idle",
			Value:   cfg.InputIdle,
			Message: "must be greater than 0",
		})
	}

	if cfg.ScrollIdle <= 0 {
		errors = append(errors, ValidationError{
			Field:   "capture.scroll_idle",
			Value:   cfg.ScrollIdle,
			Message: "must be greater than 0",
		})
	}

	if cfg.DoubleClickWindow <= 0 {
		errors = append(errors, ValidationError{
			Field:   "capture.doubleclick_window",
			Value:   cfg.DoubleClickWindow,
			Message: "must be greater than 0",
		})
	}

	if cfg.MaxAncestorHops < 0 {
		errors = append(errors, ValidationError{
			Field:   "capture.max_ancestor_hops",
			Value:   cfg.MaxAncestorHops,
			Message: "cannot be negative",
		})
	}

	if cfg.SelectorDepth < 1 {
		errors = append(errors, ValidationError{
			Field:   "capture.selector_depth",
			Value:   cfg.SelectorDepth,
			Message: "must be at least 1",
		})
	}

	return errors
}

func validateLogging(cfg *LoggingConfig) ValidationErrors {
	var errors ValidationErrors

	validLevels := []string{"debug", "info", "warn", "error", "dpanic", "panic", "fatal"}
	levelValid := false
	for _, level := range validLevels {
		if cfg.Level == level {
			levelValid = true
			break
		}
	}
	if !levelValid {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   cfg.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		})
	}

	if cfg.Format != "json" && cfg.Format != "console" {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Value:   cfg.Format,
			Message: "must be either 'json' or 'console'",
		})
	}

	return errors
}

func validateMiddleware(cfg *MiddlewareConfig) ValidationErrors {
	var errors ValidationErrors

	if cfg.Auth.Enabled {
		if cfg.Auth.JWTSecret == "" {
			errors = append(errors, ValidationError{
				Field:   "middleware.auth.jwt_secret",
				Value:   "",
				Message: "cannot be empty when auth is enabled",
			})
		}

		switch cfg.Auth.JWTMethod {
		case "", "HS256", "HS384", "HS512":
		default:
			errors = append(errors, ValidationError{
				Field:   "middleware.auth.jwt_method",
				Value:   cfg.Auth.JWTMethod,
				Message: "must be one of: HS256, HS384, HS512",
			})
		}
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.SyncPerSecond <= 0 {
			errors = append(errors, ValidationError{
				Field:   "middleware.rate_limit.sync_per_second",
				Value:   cfg.RateLimit.SyncPerSecond,
				Message: "must be greater than 0",
			})
		}
	}

	if cfg.Timeout.Enabled && cfg.Timeout.Duration <= 0 {
		errors = append(errors, ValidationError{
			Field:   "middleware.timeout.duration",
			Value:   cfg.Timeout.Duration,
			Message: "must be greater than 0",
		})
	}

	return errors
}

// ValidateConfig validates the complete configuration (alias for Validate)
func ValidateConfig(cfg *Config) error {
	return Validate(cfg)
}
