package config_test

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/mautops/schedule-gin/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConfigWatcher_Reload 测试配置文件变更触发回调
func TestConfigWatcher_Reload(t *testing.T) {
	path := writeConfig(t, `
log:
  level: info
scheduler:
  timeout_base: 1s
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	watcher := config.NewConfigWatcher(cfg, path)
	var mu sync.Mutex
	var got *config.Config
	watcher.OnConfigChange(func(c *config.Config) {
		mu.Lock()
		defer mu.Unlock()
		got = c
	})

	require.NoError(t, watcher.Start())
	defer watcher.Stop()

	// 等待监听器启动
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: warn
scheduler:
  timeout_base: 3s
`), 0644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got != nil && got.Log.Level == "warn"
	}, 3*time.Second, 50*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3*time.Second, got.Scheduler.TimeoutBase)
	assert.Equal(t, "warn", watcher.GetConfig().Log.Level)
}

// TestConfigWatcher_Stop 测试停止后不再回调
func TestConfigWatcher_Stop(t *testing.T) {
	path := writeConfig(t, "log:\n  level: info\n")
	cfg, err := config.Load(path)
	require.NoError(t, err)

	watcher := config.NewConfigWatcher(cfg, path)
	var mu sync.Mutex
	called := false
	watcher.OnConfigChange(func(*config.Config) {
		mu.Lock()
		defer mu.Unlock()
		called = true
	})
	require.NoError(t, watcher.Start())
	watcher.Stop()

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: error\n"), 0644))
	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.False(t, called)
	assert.Equal(t, "info", watcher.GetConfig().Log.Level)
}
