package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"flowcap/internal/hotreload"
	"flowcap/pkg/bridge"
	"flowcap/pkg/config"
	"flowcap/pkg/recording"
	"flowcap/pkg/session"
)

func newStartCommand(ctx context.Context, logger *zap.Logger) *cobra.Command {
	var (
		port       int
		host       string
		configFile string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the recording daemon",
		Long: `Start the local daemon that bridges the in-page capture layer with
durable session state and recording storage. The extension talks to it
over HTTP on localhost.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.Info("Starting flowcap daemon",
				zap.Int("port", port),
				zap.String("host", host),
			)

			// Load configuration
			cfg, err := loadConfiguration(configFile, port, host, logger)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			// Build the durable session store
			sessionStore, closeStore, err := buildSessionStore(cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to create session store: %w", err)
			}
			defer closeStore()

			// Recordings land on disk as pretty-printed JSON
			recordings, err := recording.NewFileStore(cfg.Recordings.Directory, cfg.Recordings.MaxFiles, logger)
			if err != nil {
				return fmt.Errorf("failed to create recording store: %w", err)
			}
			defer recordings.Close()

			coordinator := session.NewDefaultCoordinator(sessionStore, recordings, logger, session.Config{
				PollInterval: cfg.Session.PollInterval,
				PageTimeout:  cfg.Session.PageTimeout,
			})
			defer coordinator.Close()

			relay := bridge.NewRelay(logger)

			// Create and start server
			server, err := bridge.NewServer(cfg, coordinator, relay, recordings, logger)
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}

			// Reload the daemon in place when the config file changes
			if cfg.HotReload.Enabled && configFile != "" {
				reloader, err := hotreload.NewReloader(server, configFile, cfg, logger)
				if err != nil {
					return fmt.Errorf("failed to create hot reloader: %w", err)
				}
				if err := reloader.Start(); err != nil {
					return fmt.Errorf("failed to start hot reloader: %w", err)
				}
				defer reloader.Stop()
			}

			logger.Info("Server created successfully, starting...")

			// Start server in a goroutine
			serverErrCh := make(chan error, 1)
			go func() {
				if err := server.Start(); err != nil {
					serverErrCh <- err
				}
			}()

			fmt.Printf("🎬 flowcap daemon listening on %s:%d\n", cfg.Server.Host, cfg.Server.Port)
			fmt.Printf("📁 Recordings directory: %s\n", cfg.Recordings.Directory)

			// Wait for context cancellation or server error
			select {
			case <-ctx.Done():
				logger.Info("Shutdown signal received, stopping server...")
				if err := server.Stop(); err != nil {
					logger.Error("Error stopping server", zap.Error(err))
					return err
				}
				logger.Info("Server stopped successfully")
				return nil
			case err := <-serverErrCh:
				return fmt.Errorf("server error: %w", err)
			}
		},
	}

	// Add flags
	cmd.Flags().IntVarP(&port, "port", "p", 7463, "Daemon port")
	cmd.Flags().StringVarP(&host, "host", "H", "127.0.0.1", "Daemon host")
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to configuration file")

	return cmd
}

func loadConfiguration(configFile string, port int, host string, logger *zap.Logger) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		logger.Info("Loading configuration from file", zap.String("file", configFile))
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, err
		}
	} else {
		logger.Info("Using default configuration")
		cfg = config.DefaultConfig()
	}

	// Override with command line flags
	if port != 7463 {
		cfg.Server.Port = port
	}
	if host != "127.0.0.1" {
		cfg.Server.Host = host
	}

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// buildSessionStore picks the durable state backend named by the
// configuration. The returned closer releases backend resources and is
// safe to call on every path.
func buildSessionStore(cfg *config.Config, logger *zap.Logger) (session.Store, func(), error) {
	switch cfg.Session.Backend {
	case config.BackendMemory:
		logger.Info("Using in-memory session store")
		return session.NewMemoryStore(), func() {}, nil

	case config.BackendFile:
		logger.Info("Using file session store", zap.String("path", cfg.Session.FilePath))
		store, err := session.NewFileStore(cfg.Session.FilePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil

	case config.BackendRedis:
		logger.Info("Using redis session store", zap.String("addr", cfg.Session.Redis.Addr))
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Session.Redis.Addr,
			Password: cfg.Session.Redis.Password,
			DB:       cfg.Session.Redis.DB,
		})
		store := session.NewRedisStore(client, cfg.Session.Redis.Key, cfg.Session.Redis.TTL)
		return store, func() {
			if err := client.Close(); err != nil {
				logger.Warn("Error closing redis client", zap.Error(err))
			}
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown session backend: %s", cfg.Session.Backend)
	}
}
