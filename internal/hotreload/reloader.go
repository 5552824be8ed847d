// Package hotreload restarts the daemon's HTTP bridge when its
// configuration file changes on disk, so capture sessions keep running
// across config edits without a manual restart.
package hotreload

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"flowcap/pkg/config"
)

// ServerInterface is the part of the bridge server a reload drives
type ServerInterface interface {
	Restart(newConfig *config.Config) error
}

// ReloadResult represents the result of a reload operation
type ReloadResult struct {
	Success   bool
	Duration  time.Duration
	Error     error
	Timestamp time.Time
}

// Reloader watches the daemon configuration file and restarts the
// bridge server with the new configuration when it changes
type Reloader struct {
	server     ServerInterface
	configPath string
	watcher    *FileWatcher
	logger     *zap.Logger
	reloadChan chan FileEvent
	ctx        context.Context
	cancel     context.CancelFunc
	reloading  atomic.Bool

	// Current state
	currentConfig *config.Config

	// Metrics
	totalReloads   atomic.Int64
	successReloads atomic.Int64
	failedReloads  atomic.Int64
	lastReloadTime atomic.Value // time.Time

	// Configuration
	config *config.HotReloadConfig
}

// NewReloader creates a new reloader instance
func NewReloader(server ServerInterface, configPath string, currentConfig *config.Config, logger *zap.Logger) (*Reloader, error) {
	if server == nil {
		return nil, fmt.Errorf("server cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if currentConfig == nil {
		return nil, fmt.Errorf("current config cannot be nil")
	}
	if configPath == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}

	ctx, cancel := context.WithCancel(context.Background())

	debounceDelay := currentConfig.HotReload.DebounceDelay
	if debounceDelay == 0 {
		debounceDelay = 500 * time.Millisecond
	}

	watcher, err := NewFileWatcher(logger.With(zap.String("component", "file_watcher")), debounceDelay)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	r := &Reloader{
		server:        server,
		configPath:    configPath,
		watcher:       watcher,
		logger:        logger.With(zap.String("component", "hot_reloader")),
		reloadChan:    make(chan FileEvent, 10),
		ctx:           ctx,
		cancel:        cancel,
		currentConfig: currentConfig,
		config:        &currentConfig.HotReload,
	}

	r.lastReloadTime.Store(time.Now())

	return r, nil
}

// Start starts watching the configuration file
func (r *Reloader) Start() error {
	if !r.config.Enabled {
		r.logger.Info("Hot reload is disabled")
		return nil
	}

	r.logger.Info("Starting hot reload system",
		zap.String("config_path", r.configPath),
		zap.Bool("watch_config", r.config.WatchConfig),
		zap.Duration("debounce_delay", r.config.DebounceDelay),
	)

	if r.config.WatchConfig {
		if err := r.watcher.AddPath(r.configPath); err != nil {
			return fmt.Errorf("failed to watch config file: %w", err)
		}
	}

	if err := r.watcher.Start(r.onFileEvent); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}

	go r.processReloads()

	r.logger.Info("Hot reload system started successfully")
	return nil
}

// Stop stops the hot reload system
func (r *Reloader) Stop() error {
	r.logger.Info("Stopping hot reload system...")

	r.cancel()

	if err := r.watcher.Stop(); err != nil {
		r.logger.Error("Error stopping file watcher", zap.Error(err))
		return err
	}

	r.logger.Info("Hot reload system stopped")
	return nil
}

// onFileEvent handles file system events
func (r *Reloader) onFileEvent(event FileEvent) {
	select {
	case r.reloadChan <- event:
	case <-r.ctx.Done():
	default:
		r.logger.Warn("Reload channel full, dropping event",
			zap.String("path", event.Path),
			zap.String("operation", event.Operation),
		)
	}
}

// processReloads processes reload events
func (r *Reloader) processReloads() {
	for {
		select {
		case <-r.ctx.Done():
			return
		case event, ok := <-r.reloadChan:
			if !ok {
				return
			}
			r.handleReloadEvent(event)
		}
	}
}

// handleReloadEvent handles a single reload event
func (r *Reloader) handleReloadEvent(event FileEvent) {
	if r.reloading.Load() {
		r.logger.Debug("Reload already in progress, skipping event",
			zap.String("path", event.Path),
		)
		return
	}

	r.logger.Info("Processing config change event",
		zap.String("path", event.Path),
		zap.String("operation", event.Operation),
		zap.Time("timestamp", event.Timestamp),
	)

	result := r.reloadConfig()

	r.logReloadResult(result)
	r.updateMetrics(result)
}

// reloadConfig loads, validates and applies the configuration file.
// A config that fails to load or validate leaves the running server
// untouched.
func (r *Reloader) reloadConfig() ReloadResult {
	start := time.Now()
	result := ReloadResult{
		Timestamp: start,
	}

	r.reloading.Store(true)
	defer r.reloading.Store(false)

	r.logger.Info("Reloading configuration...")

	newConfig, err := config.LoadFromFile(r.configPath)
	if err != nil {
		result.Error = fmt.Errorf("failed to load new config: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	if err := config.Validate(newConfig); err != nil {
		result.Error = fmt.Errorf("invalid new config: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	if err := r.server.Restart(newConfig); err != nil {
		result.Error = fmt.Errorf("failed to restart server with new config: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	r.currentConfig = newConfig
	r.config = &newConfig.HotReload

	result.Success = true
	result.Duration = time.Since(start)
	return result
}

func (r *Reloader) logReloadResult(result ReloadResult) {
	fields := []zap.Field{
		zap.Duration("duration", result.Duration),
		zap.Time("timestamp", result.Timestamp),
		zap.Bool("success", result.Success),
	}

	if result.Error != nil {
		fields = append(fields, zap.Error(result.Error))
		r.logger.Error("Reload failed", fields...)
	} else {
		r.logger.Info("Reload completed successfully", fields...)
	}
}

func (r *Reloader) updateMetrics(result ReloadResult) {
	r.totalReloads.Add(1)
	if result.Success {
		r.successReloads.Add(1)
	} else {
		r.failedReloads.Add(1)
	}
	r.lastReloadTime.Store(result.Timestamp)
}

// Reload manually triggers a configuration reload
func (r *Reloader) Reload() error {
	result := r.reloadConfig()
	r.logReloadResult(result)
	r.updateMetrics(result)

	if result.Error != nil {
		return result.Error
	}
	return nil
}

// GetMetrics returns hot reload metrics
func (r *Reloader) GetMetrics() map[string]interface{} {
	var lastReload time.Time
	if val := r.lastReloadTime.Load(); val != nil {
		lastReload = val.(time.Time)
	}

	return map[string]interface{}{
		"enabled":         r.config.Enabled,
		"total_reloads":   r.totalReloads.Load(),
		"success_reloads": r.successReloads.Load(),
		"failed_reloads":  r.failedReloads.Load(),
		"last_reload":     lastReload,
		"reloading":       r.reloading.Load(),
	}
}

// IsReloading returns true if a reload is currently in progress
func (r *Reloader) IsReloading() bool {
	return r.reloading.Load()
}
