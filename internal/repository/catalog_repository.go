package repository

import (
	"github.com/mautops/schedule-gin/internal/model"
	"gorm.io/gorm"
)

// CatalogRepository 任务目录与计量单位只读仓储
type CatalogRepository interface {
	FindKinds(orgID string, ids []string) ([]*model.TaskKindModel, error)
	FindUnits(orgID string, ids []string) ([]*model.UnitModel, error)
}

type catalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository 创建目录仓储
func NewCatalogRepository(db *gorm.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

// FindKinds 批量查询任务目录
func (r *catalogRepository) FindKinds(orgID string, ids []string) ([]*model.TaskKindModel, error) {
	var kinds []*model.TaskKindModel
	if len(ids) == 0 {
		return kinds, nil
	}
	err := r.db.Where("organization_id = ? AND id IN ?", orgID, ids).Find(&kinds).Error
	return kinds, err
}

// FindUnits 批量查询计量单位,包含系统内置单位
func (r *catalogRepository) FindUnits(orgID string, ids []string) ([]*model.UnitModel, error) {
	var units []*model.UnitModel
	if len(ids) == 0 {
		return units, nil
	}
	err := r.db.Where("(organization_id = ? OR organization_id = '' OR organization_id IS NULL) AND id IN ?", orgID, ids).
		Find(&units).Error
	return units, err
}
