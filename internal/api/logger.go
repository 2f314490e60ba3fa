package api

import (
	"io"
	"os"
	"path/filepath"

	"github.com/mautops/schedule-gin/internal/config"
	"github.com/sirupsen/logrus"
)

const serviceName = "schedule-gin"

var jsonFieldMap = logrus.FieldMap{
	logrus.FieldKeyTime:  "time",
	logrus.FieldKeyLevel: "level",
	logrus.FieldKeyMsg:   "msg",
}

// NewLoggerFromConfig 根据配置创建日志记录器
func NewLoggerFromConfig(cfg *config.LogConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap:        jsonFieldMap,
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FullTimestamp:   true,
		})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	var writers []io.Writer
	if cfg.Output == "stdout" || cfg.Output == "both" {
		writers = append(writers, os.Stdout)
	}
	if cfg.Output == "file" || cfg.Output == "both" {
		path := cfg.FilePath
		if path == "" {
			path = filepath.Join("logs", serviceName+".log")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, err
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		writers = append(writers, file)
	}
	if len(writers) == 0 {
		writers = []io.Writer{os.Stdout}
	}
	logger.SetOutput(io.MultiWriter(writers...))

	// 添加默认字段(用于日志聚合)
	logger.AddHook(&defaultFieldsHook{
		fields: logrus.Fields{"service": serviceName},
	})

	return logger, nil
}

// ApplyLogLevel 热更新日志级别,非法值保持原级别
func ApplyLogLevel(logger *logrus.Logger, level string) bool {
	parsed, err := logrus.ParseLevel(level)
	if err != nil || parsed == logger.GetLevel() {
		return false
	}
	logger.SetLevel(parsed)
	return true
}

// defaultFieldsHook 添加默认字段的 Hook
type defaultFieldsHook struct {
	fields logrus.Fields
}

func (h *defaultFieldsHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *defaultFieldsHook) Fire(entry *logrus.Entry) error {
	for k, v := range h.fields {
		entry.Data[k] = v
	}
	return nil
}
