package config

import "time"

// DefaultConfig returns a configuration with sensible defaults. The
// daemon binds to loopback only; recording traffic never leaves the
// machine unless explicitly reconfigured.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          7463,
			Host:          "127.0.0.1",
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  30 * time.Second,
			MaxConnsPerIP: 100,
			Concurrency:   1024,
			PollWindow:    25 * time.Second,
		},
		Session: SessionConfig{
			Backend:      BackendMemory,
			FilePath:     "flowcap-session.json",
			PageTimeout:  3 * time.Second,
			PollInterval: 2 * time.Second,
			Redis: RedisConfig{
				Addr: "localhost:6379",
				Key:  "flowcap:session",
				TTL:  24 * time.Hour,
			},
		},
		Recordings: RecordingsConfig{
			Directory: "recordings",
			MaxFiles:  0, // unlimited
		},
		Capture: CaptureConfig{
			InputIdle:         500 * time.Millisecond,
			ScrollIdle:        200 * time.Millisecond,
			DoubleClickWindow: 500 * time.Millisecond,
			MaxAncestorHops:   5,
			SelectorDepth:     4,
			IndicatorID:       "flowcap-indicator",
		},
		Simulate: SimulateConfig{
			Seed:    0, // 0 means use current timestamp
			Locale:  "en",
			Actions: 12,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "json",
			Output:    "stdout",
			Sampling:  false,
			AddCaller: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Middleware: MiddlewareConfig{
			RequestID: true,
			CORS: CORSConfig{
				Enabled:      true,
				AllowOrigins: []string{"*"},
				AllowMethods: []string{"GET", "POST", "OPTIONS"},
				AllowHeaders: []string{"Content-Type", "Authorization"},
				MaxAge:       3600,
			},
			Timeout: TimeoutConfig{
				Enabled:  false,
				Duration: 30 * time.Second,
			},
			Recovery: RecoveryConfig{
				Enabled:  true,
				LogStack: true,
			},
			Auth: AuthConfig{
				Enabled:         false,
				JWTMethod:       "HS256",
				PublicEndpoints: []string{"/api/v1/health"},
			},
			RateLimit: RateLimitConfig{
				Enabled:         true,
				SyncPerSecond:   50,
				SyncBurst:       100,
				CleanupInterval: 5 * time.Minute,
				EntryTTL:        30 * time.Minute,
			},
		},
		HotReload: HotReloadConfig{
			Enabled:       false,
			WatchConfig:   true,
			DebounceDelay: 500 * time.Millisecond,
		},
	}
}
