package config

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// ConfigWatcher 配置监听器
// 仅日志级别与前推时间预算支持热更新,其余配置需重启生效
type ConfigWatcher struct {
	config     *Config
	configPath string
	viper      *viper.Viper
	callbacks  []func(*Config)
	mu         sync.RWMutex
	stopped    bool
	stopMu     sync.RWMutex
}

// NewConfigWatcher 创建配置监听器
func NewConfigWatcher(cfg *Config, configPath string) *ConfigWatcher {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	bindEnv(v)

	return &ConfigWatcher{
		config:     cfg,
		configPath: configPath,
		viper:      v,
		callbacks:  make([]func(*Config), 0),
	}
}

// OnConfigChange 注册配置变更回调
func (w *ConfigWatcher) OnConfigChange(callback func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start 启动配置监听
func (w *ConfigWatcher) Start() error {
	if err := w.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	w.viper.OnConfigChange(func(e fsnotify.Event) {
		w.stopMu.RLock()
		stopped := w.stopped
		w.stopMu.RUnlock()
		if stopped {
			return
		}

		var newCfg Config
		if err := w.viper.Unmarshal(&newCfg); err != nil {
			logrus.WithError(err).WithField("file", e.Name).Warn("failed to unmarshal config")
			return
		}
		if err := newCfg.Validate(); err != nil {
			logrus.WithError(err).WithField("file", e.Name).Warn("ignoring invalid config change")
			return
		}

		w.mu.Lock()
		if fields := restartFields(w.config, &newCfg); len(fields) > 0 {
			logrus.WithField("sections", fields).Warn("config sections changed that only apply after restart")
		}
		w.config = &newCfg
		callbacks := make([]func(*Config), len(w.callbacks))
		copy(callbacks, w.callbacks)
		w.mu.Unlock()

		// 回调在锁外执行
		for _, callback := range callbacks {
			callback(&newCfg)
		}
	})
	w.viper.WatchConfig()

	return nil
}

// Stop 停止配置监听
func (w *ConfigWatcher) Stop() {
	w.stopMu.Lock()
	defer w.stopMu.Unlock()
	w.stopped = true
}

// GetConfig 获取当前配置
func (w *ConfigWatcher) GetConfig() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// restartFields 返回变更后需重启才生效的配置段
func restartFields(old, cur *Config) []string {
	if old == nil {
		return nil
	}
	var fields []string
	if old.Server != cur.Server {
		fields = append(fields, "server")
	}
	if old.Database != cur.Database {
		fields = append(fields, "database")
	}
	if old.Auth != cur.Auth {
		fields = append(fields, "auth")
	}
	if old.RateLimit != cur.RateLimit {
		fields = append(fields, "rate_limit")
	}
	if old.Metrics != cur.Metrics {
		fields = append(fields, "metrics")
	}
	return fields
}
