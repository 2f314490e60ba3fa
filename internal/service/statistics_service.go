package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mautops/schedule-gin/internal/model"
	"github.com/mautops/schedule-gin/internal/scheduling"
	"gorm.io/gorm"
)

// StatisticsService 项目统计服务接口
type StatisticsService interface {
	GetProjectStatistics(ctx context.Context, scope Scope) (*ProjectStatistics, error)
}

// ProjectStatistics 项目统计
type ProjectStatistics struct {
	ProjectID       string           `json:"project_id"`
	TotalTasks      int64            `json:"total_tasks"`
	ByStatus        map[string]int64 `json:"by_status"`
	AverageProgress float64          `json:"average_progress"`
	PinnedTasks     int64            `json:"pinned_tasks"`
	UnscheduledTasks int64           `json:"unscheduled_tasks"`
	Dependencies    int64            `json:"dependencies"`
	PlannedStart    *Date            `json:"planned_start"`
	PlannedEnd      *Date            `json:"planned_end"`
	SpanDays        int              `json:"span_days"`
}

// statisticsService 统计服务实现
type statisticsService struct {
	db *gorm.DB
}

// NewStatisticsService 创建统计服务
func NewStatisticsService(db *gorm.DB) StatisticsService {
	return &statisticsService{db: db}
}

// GetProjectStatistics 汇总项目任务状态、进度与计划时间窗口
func (s *statisticsService) GetProjectStatistics(ctx context.Context, scope Scope) (*ProjectStatistics, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	live := func() *gorm.DB {
		return db.Model(&model.TaskModel{}).
			Where("organization_id = ? AND project_id = ? AND is_deleted = ?", scope.OrganizationID, scope.ProjectID, false)
	}

	stats := &ProjectStatistics{
		ProjectID: scope.ProjectID,
		ByStatus:  make(map[string]int64),
	}

	var byStatus []struct {
		Status string
		Count  int64
	}
	if err := live().Select("status, COUNT(*) AS count").Group("status").Scan(&byStatus).Error; err != nil {
		return nil, fmt.Errorf("failed to get task statistics by status: %w", err)
	}
	for _, r := range byStatus {
		stats.ByStatus[r.Status] = r.Count
		stats.TotalTasks += r.Count
	}

	var totals struct {
		AvgProgress float64
		Pinned      int64
		Unscheduled int64
	}
	err := live().Select(`COALESCE(AVG(progress_percent), 0) AS avg_progress,
		COALESCE(SUM(CASE WHEN dates_pinned THEN 1 ELSE 0 END), 0) AS pinned,
		COALESCE(SUM(CASE WHEN planned_start_date IS NULL THEN 1 ELSE 0 END), 0) AS unscheduled`).
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get task totals: %w", err)
	}
	stats.AverageProgress = totals.AvgProgress
	stats.PinnedTasks = totals.Pinned
	stats.UnscheduledTasks = totals.Unscheduled

	err = db.Model(&model.DependencyModel{}).
		Where("organization_id = ? AND project_id = ?", scope.OrganizationID, scope.ProjectID).
		Count(&stats.Dependencies).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count dependencies: %w", err)
	}

	// 聚合函数在 SQLite 下丢失列类型,时间窗口取首尾行
	first, err := s.edgeDate(live(), "planned_start_date", "ASC")
	if err != nil {
		return nil, err
	}
	last, err := s.edgeDate(live(), "planned_end_date", "DESC")
	if err != nil {
		return nil, err
	}
	if first != nil && last != nil {
		stats.PlannedStart = &Date{*first}
		stats.PlannedEnd = &Date{*last}
		stats.SpanDays = scheduling.DaysBetween(*first, *last) + 1
	}
	return stats, nil
}

func (s *statisticsService) edgeDate(q *gorm.DB, column, dir string) (*time.Time, error) {
	var row model.TaskModel
	err := q.Where(column + " IS NOT NULL").Order(column + " " + dir).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", column, err)
	}
	task := row.ToDomain()
	if column == "planned_start_date" {
		return task.PlannedStart, nil
	}
	return task.PlannedEnd, nil
}
