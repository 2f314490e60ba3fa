package model

import (
	"errors"
	"time"
)

// TaskStatusHistoryModel 任务状态变更历史数据模型
type TaskStatusHistoryModel struct {
	ID             string    `gorm:"primaryKey;type:varchar(64)"`
	OrganizationID string    `gorm:"type:varchar(64);not null"`
	ProjectID      string    `gorm:"type:varchar(64);not null"`
	TaskID         string    `gorm:"type:varchar(64);not null;index"`
	FromStatus     string    `gorm:"type:varchar(32)"`
	ToStatus       string    `gorm:"type:varchar(32);not null"`
	ProgressBefore int       `gorm:"type:int"`
	ProgressAfter  int       `gorm:"type:int"`
	Operator       string    `gorm:"type:varchar(64);not null"`
	CreatedAt      time.Time `gorm:"not null;index"`
}

// TableName 指定表名
func (TaskStatusHistoryModel) TableName() string {
	return "task_status_history"
}

// Validate 验证状态历史模型
func (h *TaskStatusHistoryModel) Validate() error {
	if h.ID == "" {
		return errors.New("history ID is required")
	}
	if h.TaskID == "" {
		return errors.New("task ID is required")
	}
	if h.ToStatus == "" {
		return errors.New("to status is required")
	}
	if h.Operator == "" {
		return errors.New("operator is required")
	}
	return nil
}
