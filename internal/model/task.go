package model

import (
	"errors"
	"time"

	"github.com/mautops/schedule-gin/internal/scheduling"
	"github.com/shopspring/decimal"
)

// TaskModel 施工任务数据模型
type TaskModel struct {
	ID               string          `gorm:"primaryKey;type:varchar(64)"`
	OrganizationID   string          `gorm:"type:varchar(64);not null;index:idx_tasks_scope,priority:1"`
	ProjectID        string          `gorm:"type:varchar(64);not null;index:idx_tasks_scope,priority:2"`
	KindID           *string         `gorm:"type:varchar(64);index"` // 任务目录 ID
	CustomName       *string         `gorm:"type:varchar(255)"`
	UnitID           *string         `gorm:"type:varchar(64)"`
	CustomUnit       *string         `gorm:"type:varchar(32)"`
	Quantity         decimal.Decimal `gorm:"type:numeric(14,4);not null;default:0"`
	PlannedStartDate *time.Time      `gorm:"type:date"`
	PlannedEndDate   *time.Time      `gorm:"type:date"`
	DurationDays     *int            `gorm:"type:int"`
	DatesPinned      bool            `gorm:"not null;default:false"` // 日期由用户直接设置
	Status           string          `gorm:"type:varchar(32);not null;index"`
	ProgressPercent  int             `gorm:"type:int;not null;default:0"`
	CostScope        string          `gorm:"type:varchar(32);not null;default:'none'"`
	IsDeleted        bool            `gorm:"not null;default:false;index"`
	DeletedAt        *time.Time      // 软删除时间,由 IsDeleted 控制,不使用 gorm 软删除
	CreatedAt        time.Time       `gorm:"not null;index"`
	UpdatedAt        time.Time       `gorm:"not null"`
}

// TableName 指定表名
func (TaskModel) TableName() string {
	return "construction_tasks"
}

// Validate 验证任务模型
func (tm *TaskModel) Validate() error {
	if tm.ID == "" {
		return errors.New("task ID is required")
	}
	if tm.OrganizationID == "" {
		return errors.New("organization ID is required")
	}
	if tm.ProjectID == "" {
		return errors.New("project ID is required")
	}
	if tm.Status == "" {
		return errors.New("task status is required")
	}
	return nil
}

// ToDomain 转换为调度领域对象
func (tm *TaskModel) ToDomain() *scheduling.Task {
	return &scheduling.Task{
		ID:              tm.ID,
		OrganizationID:  tm.OrganizationID,
		ProjectID:       tm.ProjectID,
		KindID:          tm.KindID,
		CustomName:      tm.CustomName,
		UnitID:          tm.UnitID,
		CustomUnit:      tm.CustomUnit,
		Quantity:        tm.Quantity,
		PlannedStart:    normalizeDate(tm.PlannedStartDate),
		PlannedEnd:      normalizeDate(tm.PlannedEndDate),
		DurationDays:    tm.DurationDays,
		DatesPinned:     tm.DatesPinned,
		Status:          scheduling.Status(tm.Status),
		ProgressPercent: tm.ProgressPercent,
		CostScope:       scheduling.CostScope(tm.CostScope),
		IsDeleted:       tm.IsDeleted,
		DeletedAt:       tm.DeletedAt,
		CreatedAt:       tm.CreatedAt,
		UpdatedAt:       tm.UpdatedAt,
	}
}

// NewTaskModel 由领域对象构建数据模型
func NewTaskModel(t *scheduling.Task) *TaskModel {
	return &TaskModel{
		ID:               t.ID,
		OrganizationID:   t.OrganizationID,
		ProjectID:        t.ProjectID,
		KindID:           t.KindID,
		CustomName:       t.CustomName,
		UnitID:           t.UnitID,
		CustomUnit:       t.CustomUnit,
		Quantity:         t.Quantity,
		PlannedStartDate: t.PlannedStart,
		PlannedEndDate:   t.PlannedEnd,
		DurationDays:     t.DurationDays,
		DatesPinned:      t.DatesPinned,
		Status:           string(t.Status),
		ProgressPercent:  t.ProgressPercent,
		CostScope:        string(t.CostScope),
		IsDeleted:        t.IsDeleted,
		DeletedAt:        t.DeletedAt,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

// normalizeDate 数据库驱动返回的日期可能带本地时区
func normalizeDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := scheduling.NormalizeDate(*t)
	return &d
}
