package hotreload

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"flowcap/pkg/config"
)

// fakeServer records every configuration it was restarted with.
type fakeServer struct {
	mu       sync.Mutex
	restarts []*config.Config
	fail     error
}

func (s *fakeServer) Restart(newConfig *config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.restarts = append(s.restarts, newConfig)
	return nil
}

func (s *fakeServer) restartCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.restarts)
}

func (s *fakeServer) lastConfig() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.restarts) == 0 {
		return nil
	}
	return s.restarts[len(s.restarts)-1]
}

func writeConfigFile(t *testing.T, dir string, cfg *config.Config) string {
	t.Helper()
	path := filepath.Join(dir, "flowcap.yaml")
	require.NoError(t, config.WriteToFile(cfg, path))
	return path
}

func reloadTestConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.HotReload.Enabled = true
	cfg.HotReload.WatchConfig = true
	cfg.HotReload.DebounceDelay = 20 * time.Millisecond
	return cfg
}

func TestNewReloader_RejectsBadArguments(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := reloadTestConfig()

	_, err := NewReloader(nil, "flowcap.yaml", cfg, logger)
	assert.Error(t, err)

	_, err = NewReloader(&fakeServer{}, "", cfg, logger)
	assert.Error(t, err)

	_, err = NewReloader(&fakeServer{}, "flowcap.yaml", nil, logger)
	assert.Error(t, err)
}

func TestReloader_ManualReload(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := reloadTestConfig()
	path := writeConfigFile(t, t.TempDir(), cfg)

	server := &fakeServer{}
	reloader, err := NewReloader(server, path, cfg, logger)
	require.NoError(t, err)

	require.NoError(t, reloader.Reload())
	require.Equal(t, 1, server.restartCount())
	assert.Equal(t, cfg.Server.Port, server.lastConfig().Server.Port)

	// Changing the file changes what the next reload applies
	cfg.Server.Port = 7500
	require.NoError(t, config.WriteToFile(cfg, path))

	require.NoError(t, reloader.Reload())
	require.Equal(t, 2, server.restartCount())
	assert.Equal(t, 7500, server.lastConfig().Server.Port)

	metrics := reloader.GetMetrics()
	assert.Equal(t, int64(2), metrics["total_reloads"])
	assert.Equal(t, int64(2), metrics["success_reloads"])
	assert.Equal(t, int64(0), metrics["failed_reloads"])
	assert.False(t, reloader.IsReloading())
}

func TestReloader_InvalidConfigLeavesServerUntouched(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := reloadTestConfig()
	path := writeConfigFile(t, t.TempDir(), cfg)

	server := &fakeServer{}
	reloader, err := NewReloader(server, path, cfg, logger)
	require.NoError(t, err)

	// Out-of-range port fails validation before the server is touched
	bad := reloadTestConfig()
	bad.Server.Port = -5
	require.NoError(t, config.WriteToFile(bad, path))

	err = reloader.Reload()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid new config")
	assert.Equal(t, 0, server.restartCount())

	metrics := reloader.GetMetrics()
	assert.Equal(t, int64(1), metrics["total_reloads"])
	assert.Equal(t, int64(1), metrics["failed_reloads"])
}

func TestReloader_UnreadableConfig(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := reloadTestConfig()
	path := filepath.Join(t.TempDir(), "flowcap.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a mapping"), 0o644))

	server := &fakeServer{}
	reloader, err := NewReloader(server, path, cfg, logger)
	require.NoError(t, err)

	err = reloader.Reload()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load new config")
	assert.Equal(t, 0, server.restartCount())
}

func TestReloader_WatchesConfigFile(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := reloadTestConfig()
	path := writeConfigFile(t, t.TempDir(), cfg)

	server := &fakeServer{}
	reloader, err := NewReloader(server, path, cfg, logger)
	require.NoError(t, err)

	require.NoError(t, reloader.Start())
	defer reloader.Stop()

	cfg.Server.Port = 7511
	require.NoError(t, config.WriteToFile(cfg, path))

	require.Eventually(t, func() bool {
		return server.restartCount() >= 1
	}, 3*time.Second, 25*time.Millisecond, "config write never triggered a reload")

	assert.Equal(t, 7511, server.lastConfig().Server.Port)
}

func TestReloader_DisabledDoesNotWatch(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := reloadTestConfig()
	cfg.HotReload.Enabled = false
	path := writeConfigFile(t, t.TempDir(), cfg)

	server := &fakeServer{}
	reloader, err := NewReloader(server, path, cfg, logger)
	require.NoError(t, err)

	require.NoError(t, reloader.Start())
	defer reloader.Stop()

	cfg.Server.Port = 7599
	require.NoError(t, config.WriteToFile(cfg, path))

	// Give the watcher time it should not need
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 0, server.restartCount())
}
