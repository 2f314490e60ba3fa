package model

import (
	"errors"
	"time"

	"github.com/mautops/schedule-gin/internal/scheduling"
	"gorm.io/gorm"
)

// DependencyModel 任务依赖数据模型
// 依赖不做原地修改,删除为 gorm 软删除
type DependencyModel struct {
	ID                string         `gorm:"primaryKey;type:varchar(64)"`
	OrganizationID    string         `gorm:"type:varchar(64);not null;index:idx_deps_scope,priority:1"`
	ProjectID         string         `gorm:"type:varchar(64);not null;index:idx_deps_scope,priority:2"`
	PredecessorTaskID string         `gorm:"type:varchar(64);not null;index"`
	SuccessorTaskID   string         `gorm:"type:varchar(64);not null;index"`
	Type              string         `gorm:"type:varchar(32);not null;default:'finish_to_start'"`
	LagDays           int            `gorm:"type:int;not null;default:0"`
	CreatedBy         string         `gorm:"type:varchar(64)"`
	CreatedAt         time.Time      `gorm:"not null;index"`
	DeletedAt         gorm.DeletedAt `gorm:"index"`
}

// TableName 指定表名
func (DependencyModel) TableName() string {
	return "construction_dependencies"
}

// Validate 验证依赖模型
func (dm *DependencyModel) Validate() error {
	if dm.ID == "" {
		return errors.New("dependency ID is required")
	}
	if dm.PredecessorTaskID == "" || dm.SuccessorTaskID == "" {
		return errors.New("predecessor and successor are required")
	}
	if dm.Type == "" {
		return errors.New("dependency type is required")
	}
	return nil
}

// ToDomain 转换为调度领域对象
func (dm *DependencyModel) ToDomain() *scheduling.Dependency {
	return &scheduling.Dependency{
		ID:             dm.ID,
		OrganizationID: dm.OrganizationID,
		ProjectID:      dm.ProjectID,
		PredecessorID:  dm.PredecessorTaskID,
		SuccessorID:    dm.SuccessorTaskID,
		Type:           scheduling.DependencyType(dm.Type),
		LagDays:        dm.LagDays,
		CreatedAt:      dm.CreatedAt,
	}
}

// NewDependencyModel 由领域对象构建数据模型
func NewDependencyModel(d *scheduling.Dependency, createdBy string) *DependencyModel {
	return &DependencyModel{
		ID:                d.ID,
		OrganizationID:    d.OrganizationID,
		ProjectID:         d.ProjectID,
		PredecessorTaskID: d.PredecessorID,
		SuccessorTaskID:   d.SuccessorID,
		Type:              string(d.Type),
		LagDays:           d.LagDays,
		CreatedBy:         createdBy,
		CreatedAt:         d.CreatedAt,
	}
}
