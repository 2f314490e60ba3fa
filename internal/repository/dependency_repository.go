package repository

import (
	"github.com/mautops/schedule-gin/internal/model"
	"gorm.io/gorm"
)

// DependencyRepository 任务依赖仓储接口
// 查询默认只返回未删除的依赖
type DependencyRepository interface {
	Create(dep *model.DependencyModel) error
	FindByID(orgID, projectID, id string) (*model.DependencyModel, error)
	FindByProject(orgID, projectID string) ([]*model.DependencyModel, error)
	Delete(id string) error
}

// dependencyRepository 依赖仓储实现
type dependencyRepository struct {
	db *gorm.DB
}

// NewDependencyRepository 创建依赖仓储
func NewDependencyRepository(db *gorm.DB) DependencyRepository {
	return &dependencyRepository{db: db}
}

// Create 新建依赖
func (r *dependencyRepository) Create(dep *model.DependencyModel) error {
	if err := dep.Validate(); err != nil {
		return err
	}
	return r.db.Create(dep).Error
}

// FindByID 根据 ID 查找依赖
func (r *dependencyRepository) FindByID(orgID, projectID, id string) (*model.DependencyModel, error) {
	var dep model.DependencyModel
	err := r.db.Where("organization_id = ? AND project_id = ? AND id = ?", orgID, projectID, id).
		First(&dep).Error
	if err != nil {
		return nil, err
	}
	return &dep, nil
}

// FindByProject 查找项目下的全部依赖
func (r *dependencyRepository) FindByProject(orgID, projectID string) ([]*model.DependencyModel, error) {
	var deps []*model.DependencyModel
	err := r.db.Where("organization_id = ? AND project_id = ?", orgID, projectID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&deps).Error
	return deps, err
}

// Delete 软删除依赖
func (r *dependencyRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&model.DependencyModel{}).Error
}
