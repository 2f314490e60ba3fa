package database_test

import (
	"path/filepath"
	"testing"

	"github.com/mautops/schedule-gin/internal/config"
	"github.com/mautops/schedule-gin/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// TestBuildDSN 测试 PostgreSQL DSN 构建
func TestBuildDSN(t *testing.T) {
	dsn := database.BuildDSN(config.DatabaseConfig{
		Host: "db", Port: 5433, User: "u", Password: "p", DBName: "schedule", SSLMode: "require",
	})
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=schedule sslmode=require", dsn)
}

// TestBuildSQLiteDSN 测试 SQLite DSN 参数拼接
func TestBuildSQLiteDSN(t *testing.T) {
	assert.Equal(t, "a.db?_busy_timeout=5000&_foreign_keys=on", database.BuildSQLiteDSN("a.db"))
	assert.Equal(t, "file:a.db?cache=shared&_busy_timeout=5000&_foreign_keys=on", database.BuildSQLiteDSN("file:a.db?cache=shared"))
}

// TestDialector_Unsupported 测试不支持的驱动
func TestDialector_Unsupported(t *testing.T) {
	_, err := database.Dialector(config.DatabaseConfig{Driver: "mysql"})
	assert.Error(t, err)
}

// TestConnectAndMigrate_SQLite 测试 SQLite 连接与迁移
func TestConnectAndMigrate_SQLite(t *testing.T) {
	db, err := database.Connect(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "schedule.db"),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	// 重复迁移应当幂等
	require.NoError(t, database.Migrate(db))

	for _, table := range []string{"construction_tasks", "construction_dependencies", "task_status_history", "audit_logs", "task_kinds", "units"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.True(t, database.CheckHealth(db))

	// SQLite 下咨询锁为空操作
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return database.AcquireProjectLock(tx, "org-1", "prj-1")
	}))
}

// TestCheckHealth_Nil 测试空连接
func TestCheckHealth_Nil(t *testing.T) {
	assert.False(t, database.CheckHealth(nil))
}
