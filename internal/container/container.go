package container

import (
	"fmt"
	"time"

	"github.com/mautops/schedule-gin/internal/auth"
	"github.com/mautops/schedule-gin/internal/config"
	"github.com/mautops/schedule-gin/internal/database"
	"github.com/mautops/schedule-gin/internal/metrics"
	"github.com/mautops/schedule-gin/internal/repository"
	"github.com/mautops/schedule-gin/internal/service"
	"github.com/mautops/schedule-gin/internal/websocket"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Container 依赖注入容器
// 管理数据库、排程服务、WebSocket Hub 与指标采集
type Container struct {
	cfg        *config.Config
	db         *gorm.DB
	logger     *logrus.Logger
	hub        *websocket.Hub
	validator  *auth.TokenValidator
	audit      service.AuditLogService
	scheduling service.SchedulingService
	collector  *metrics.Collector
}

// NewContainer 创建依赖注入容器,migrate 为 true 时执行数据库迁移
func NewContainer(cfg *config.Config, logger *logrus.Logger, migrate bool) (*Container, error) {
	// 默认重试 3 次,初始间隔 1 秒,指数退避
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if migrate {
		if err := database.Migrate(db); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	hub := websocket.NewHub(logger)
	audit := service.NewAuditLogService(repository.NewAuditLogRepository(db))
	scheduling := service.NewSchedulingService(db, cfg.Scheduler, audit, hub, logger)

	c := &Container{
		cfg:        cfg,
		db:         db,
		logger:     logger,
		hub:        hub,
		validator:  auth.NewTokenValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		audit:      audit,
		scheduling: scheduling,
	}
	if cfg.Metrics.Enabled {
		c.collector = metrics.NewCollector(db, repository.NewTaskRepository(db), cfg.Metrics.CollectInterval, logger)
	}
	return c, nil
}

// Start 启动后台组件
func (c *Container) Start() {
	go c.hub.Run()
	if c.collector != nil {
		c.collector.Start()
	}
}

// ApplyConfig 应用热更新的前推时间预算
func (c *Container) ApplyConfig(cfg *config.Config) {
	c.cfg = cfg
	c.scheduling.UpdateSchedulerConfig(cfg.Scheduler)
}

// Config 获取当前配置
func (c *Container) Config() *config.Config {
	return c.cfg
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Logger 获取日志记录器
func (c *Container) Logger() *logrus.Logger {
	return c.logger
}

// Hub 获取 WebSocket Hub
func (c *Container) Hub() *websocket.Hub {
	return c.hub
}

// Validator 获取 Token 验证器,未配置密钥时为 nil
func (c *Container) Validator() *auth.TokenValidator {
	return c.validator
}

// Scheduling 获取排程服务
func (c *Container) Scheduling() service.SchedulingService {
	return c.scheduling
}

// AuditLog 获取审计日志服务
func (c *Container) AuditLog() service.AuditLogService {
	return c.audit
}

// Close 关闭容器,清理资源
func (c *Container) Close() error {
	if c.collector != nil {
		c.collector.Stop()
	}
	if c.hub != nil {
		c.hub.Stop()
	}
	if c.db != nil {
		sqlDB, err := c.db.DB()
		if err == nil {
			return sqlDB.Close()
		}
	}
	return nil
}
