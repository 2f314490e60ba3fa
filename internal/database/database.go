package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mautops/schedule-gin/internal/config"
	"github.com/mautops/schedule-gin/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime int // 秒
	ConnMaxIdleTime int // 秒
}

// BuildDSN 构建 PostgreSQL DSN
func BuildDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// BuildSQLiteDSN 构建 SQLite DSN,开启外键与写锁等待
func BuildSQLiteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_busy_timeout=5000&_foreign_keys=on"
}

// GetPoolConfig 获取连接池配置
func GetPoolConfig() *PoolConfig {
	return &PoolConfig{
		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: 3600, // 1 小时
		ConnMaxIdleTime: 600,  // 10 分钟
	}
}

// Dialector 根据驱动选择 gorm 方言
func Dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "postgres", "":
		return postgres.Open(BuildDSN(cfg)), nil
	case "sqlite":
		return sqlite.Open(BuildSQLiteDSN(cfg.Path)), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// Connect 连接数据库
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	poolConfig := GetPoolConfig()
	if cfg.MaxIdleConns > 0 {
		poolConfig.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxOpenConns = cfg.MaxOpenConns
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.ConnMaxLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolConfig.ConnMaxIdleTime = cfg.ConnMaxIdleTime
	}
	// SQLite 只有一个写者,单连接可避免 database is locked
	if cfg.Driver == "sqlite" {
		poolConfig.MaxOpenConns = 1
		poolConfig.MaxIdleConns = 1
	}

	sqlDB.SetMaxIdleConns(poolConfig.MaxIdleConns)
	sqlDB.SetMaxOpenConns(poolConfig.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(poolConfig.ConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(poolConfig.ConnMaxIdleTime) * time.Second)

	return db, nil
}

// Migrate 执行数据库迁移
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.TaskModel{},
		&model.DependencyModel{},
		&model.TaskStatusHistoryModel{},
		&model.AuditLogModel{},
		&model.TaskKindModel{},
		&model.UnitModel{},
	); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}

	if err := CreateIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// CreateIndexes 创建数据库索引
func CreateIndexes(db *gorm.DB) error {
	statements := []struct {
		name string
		sql  string
	}{
		{"idx_tasks_project_created", "CREATE INDEX IF NOT EXISTS idx_tasks_project_created ON construction_tasks(project_id, created_at)"},
		{"idx_deps_pred_succ", "CREATE INDEX IF NOT EXISTS idx_deps_pred_succ ON construction_dependencies(predecessor_task_id, successor_task_id)"},
		{"idx_history_task_created", "CREATE INDEX IF NOT EXISTS idx_history_task_created ON task_status_history(task_id, created_at)"},
		{"idx_audit_resource", "CREATE INDEX IF NOT EXISTS idx_audit_resource ON audit_logs(resource_type, resource_id)"},
	}
	for _, s := range statements {
		if err := db.Exec(s.sql).Error; err != nil {
			return fmt.Errorf("failed to create %s: %w", s.name, err)
		}
	}

	// PostgreSQL 下同一对任务只允许一条未删除依赖
	if db.Dialector.Name() == "postgres" {
		if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_deps_live_pair
			ON construction_dependencies(predecessor_task_id, successor_task_id)
			WHERE deleted_at IS NULL`).Error; err != nil {
			return fmt.Errorf("failed to create idx_deps_live_pair: %w", err)
		}
	}
	return nil
}

// AcquireProjectLock 在事务内获取项目级咨询锁,事务结束时自动释放
// SQLite 只有单写者,不需要额外加锁
func AcquireProjectLock(tx *gorm.DB, orgID, projectID string) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", orgID+"/"+projectID).Error; err != nil {
		return fmt.Errorf("failed to acquire project lock: %w", err)
	}
	return nil
}

// ConnectWithRetry 带重试的数据库连接
func ConnectWithRetry(cfg config.DatabaseConfig, maxRetries int, retryInterval time.Duration) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	for i := 0; i < maxRetries; i++ {
		db, err = Connect(cfg)
		if err == nil {
			return db, nil
		}

		if i < maxRetries-1 {
			time.Sleep(retryInterval)
			retryInterval *= 2 // 指数退避
		}
	}

	return nil, fmt.Errorf("failed to connect database after %d retries: %w", maxRetries, err)
}

// CheckHealth 检查数据库连接健康状态
func CheckHealth(db *gorm.DB) bool {
	if db == nil {
		return false
	}

	sqlDB, err := db.DB()
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return sqlDB.PingContext(ctx) == nil
}
