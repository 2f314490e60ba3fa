package repository

import (
	"github.com/mautops/schedule-gin/internal/model"
	"gorm.io/gorm"
)

// StatusHistoryRepository 任务状态历史仓储接口
type StatusHistoryRepository interface {
	Save(history *model.TaskStatusHistoryModel) error
	FindByTaskID(taskID string) ([]*model.TaskStatusHistoryModel, error)
}

// statusHistoryRepository 状态历史仓储实现
type statusHistoryRepository struct {
	db *gorm.DB
}

// NewStatusHistoryRepository 创建状态历史仓储
func NewStatusHistoryRepository(db *gorm.DB) StatusHistoryRepository {
	return &statusHistoryRepository{db: db}
}

// Save 保存状态历史
func (r *statusHistoryRepository) Save(history *model.TaskStatusHistoryModel) error {
	if err := history.Validate(); err != nil {
		return err
	}
	return r.db.Save(history).Error
}

// FindByTaskID 根据任务 ID 查找状态历史
func (r *statusHistoryRepository) FindByTaskID(taskID string) ([]*model.TaskStatusHistoryModel, error) {
	var histories []*model.TaskStatusHistoryModel
	err := r.db.Where("task_id = ?", taskID).Order("created_at ASC").Order("id ASC").Find(&histories).Error
	return histories, err
}
