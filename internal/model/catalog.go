package model

import "time"

// TaskKindModel 任务目录(只读)
type TaskKindModel struct {
	ID             string    `gorm:"primaryKey;type:varchar(64)"`
	OrganizationID string    `gorm:"type:varchar(64);not null;index"`
	Name           string    `gorm:"type:varchar(255);not null"`
	DefaultUnitID  *string   `gorm:"type:varchar(64)"`
	CreatedAt      time.Time `gorm:"not null"`
}

// TableName 指定表名
func (TaskKindModel) TableName() string {
	return "task_kinds"
}

// UnitModel 计量单位(只读)
type UnitModel struct {
	ID             string    `gorm:"primaryKey;type:varchar(64)"`
	OrganizationID string    `gorm:"type:varchar(64);index"` // 为空表示系统内置单位
	Name           string    `gorm:"type:varchar(64);not null"`
	Symbol         string    `gorm:"type:varchar(16);not null"`
	CreatedAt      time.Time `gorm:"not null"`
}

// TableName 指定表名
func (UnitModel) TableName() string {
	return "units"
}
