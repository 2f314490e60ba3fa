package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/schedule-gin/internal/service"
)

// DependencyController 依赖控制器
type DependencyController struct {
	scheduling service.SchedulingService
}

// NewDependencyController 创建依赖控制器
func NewDependencyController(scheduling service.SchedulingService) *DependencyController {
	return &DependencyController{scheduling: scheduling}
}

// Add 添加依赖,成环、自环或跨项目时返回 409 并带上涉及的任务
func (c *DependencyController) Add(ctx *gin.Context) {
	scope, ok := scopeFrom(ctx)
	if !ok {
		return
	}

	var req service.AddDependencyRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		_ = ctx.Error(WrapError(err, http.StatusBadRequest, "invalid request"))
		return
	}

	result, err := c.scheduling.AddDependency(ctx.Request.Context(), scope, &req)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	Created(ctx, result)
}

// Remove 删除依赖,不存在时同样返回成功
func (c *DependencyController) Remove(ctx *gin.Context) {
	scope, ok := scopeFrom(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	if err := c.scheduling.RemoveDependency(ctx.Request.Context(), scope, id); err != nil {
		_ = ctx.Error(err)
		return
	}
	Success(ctx, nil)
}

// ScheduleController 甘特图数据
type ScheduleController struct {
	scheduling service.SchedulingService
	statistics service.StatisticsService
}

// NewScheduleController 创建排程控制器
func NewScheduleController(scheduling service.SchedulingService, statistics service.StatisticsService) *ScheduleController {
	return &ScheduleController{scheduling: scheduling, statistics: statistics}
}

// Get 获取项目排程
func (c *ScheduleController) Get(ctx *gin.Context) {
	scope, ok := scopeFrom(ctx)
	if !ok {
		return
	}

	schedule, err := c.scheduling.GetProjectSchedule(ctx.Request.Context(), scope)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	Success(ctx, schedule)
}

// Statistics 获取项目统计
func (c *ScheduleController) Statistics(ctx *gin.Context) {
	scope, ok := scopeFrom(ctx)
	if !ok {
		return
	}
	if c.statistics == nil {
		_ = ctx.Error(&APIError{Code: http.StatusNotImplemented, Message: "statistics unavailable"})
		return
	}

	stats, err := c.statistics.GetProjectStatistics(ctx.Request.Context(), scope)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	Success(ctx, stats)
}
