package repository

import (
	"time"

	"github.com/mautops/schedule-gin/internal/model"
	"gorm.io/gorm"
)

// TaskRepository 施工任务仓储接口
type TaskRepository interface {
	Create(task *model.TaskModel) error
	Save(task *model.TaskModel) error
	FindByID(orgID, id string) (*model.TaskModel, error)
	FindByProject(orgID, projectID string, filter *TaskFilter) ([]*model.TaskModel, error)
	UpdateDates(id string, start, end *time.Time, durationDays int) error
	CountByStatus() (map[string]int64, error)
}

// TaskFilter 任务查询过滤器
type TaskFilter struct {
	IncludeDeleted bool
}

// taskRepository 任务仓储实现
type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository 创建任务仓储
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

// Create 新建任务
func (r *taskRepository) Create(task *model.TaskModel) error {
	if err := task.Validate(); err != nil {
		return err
	}
	return r.db.Create(task).Error
}

// Save 保存任务全部字段
func (r *taskRepository) Save(task *model.TaskModel) error {
	if err := task.Validate(); err != nil {
		return err
	}
	return r.db.Save(task).Error
}

// FindByID 在组织范围内根据 ID 查找任务(含已软删除)
func (r *taskRepository) FindByID(orgID, id string) (*model.TaskModel, error) {
	var task model.TaskModel
	if err := r.db.Where("organization_id = ? AND id = ?", orgID, id).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// FindByProject 查找项目下的任务,按创建时间升序
func (r *taskRepository) FindByProject(orgID, projectID string, filter *TaskFilter) ([]*model.TaskModel, error) {
	var tasks []*model.TaskModel
	query := r.db.Model(&model.TaskModel{}).
		Where("organization_id = ? AND project_id = ?", orgID, projectID)

	if filter == nil || !filter.IncludeDeleted {
		query = query.Where("is_deleted = ?", false)
	}

	err := query.Order("created_at ASC").Order("id ASC").Find(&tasks).Error
	return tasks, err
}

// UpdateDates 写入前推计算结果
func (r *taskRepository) UpdateDates(id string, start, end *time.Time, durationDays int) error {
	return r.db.Model(&model.TaskModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"planned_start_date": start,
			"planned_end_date":   end,
			"duration_days":      durationDays,
			"updated_at":         time.Now().UTC(),
		}).Error
}

// CountByStatus 按状态统计未删除任务数
func (r *taskRepository) CountByStatus() (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.Model(&model.TaskModel{}).
		Select("status, COUNT(*) AS count").
		Where("is_deleted = ?", false).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
