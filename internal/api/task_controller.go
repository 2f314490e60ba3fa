package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/schedule-gin/internal/auth"
	"github.com/mautops/schedule-gin/internal/service"
	"github.com/mautops/schedule-gin/internal/utils"
)

// 名称与单位长度上限,与数据库列宽一致
const (
	maxNameLen = 255
	maxUnitLen = 32
)

// scopeFrom 由租户中间件结果与路径参数组装作用域
func scopeFrom(ctx *gin.Context) (service.Scope, bool) {
	projectID := ctx.Param("project_id")
	if err := utils.ValidateID(projectID); err != nil {
		_ = ctx.Error(WrapError(err, http.StatusBadRequest, "invalid project ID"))
		return service.Scope{}, false
	}
	orgID := ctx.GetString(auth.ContextOrganizationID)
	if orgID == "" {
		_ = ctx.Error(&APIError{Code: http.StatusUnauthorized, Message: "missing organization"})
		return service.Scope{}, false
	}
	return service.Scope{
		OrganizationID: orgID,
		ProjectID:      projectID,
		UserID:         ctx.GetString(auth.ContextUserID),
	}, true
}

// pathID 校验路径中的资源 ID
func pathID(ctx *gin.Context, name string) (string, bool) {
	id := ctx.Param(name)
	if err := utils.ValidateID(id); err != nil {
		_ = ctx.Error(WrapError(err, http.StatusBadRequest, "invalid "+name))
		return "", false
	}
	return id, true
}

// TaskController 任务控制器
type TaskController struct {
	scheduling service.SchedulingService
}

// NewTaskController 创建任务控制器
func NewTaskController(scheduling service.SchedulingService) *TaskController {
	return &TaskController{scheduling: scheduling}
}

// Create 创建任务
func (c *TaskController) Create(ctx *gin.Context) {
	scope, ok := scopeFrom(ctx)
	if !ok {
		return
	}

	var req service.CreateTaskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		_ = ctx.Error(WrapError(err, http.StatusBadRequest, "invalid request"))
		return
	}
	if err := validateLabels(req.CustomName, req.CustomUnit); err != nil {
		_ = ctx.Error(WrapError(err, http.StatusBadRequest, "invalid request"))
		return
	}

	task, err := c.scheduling.CreateTask(ctx.Request.Context(), scope, &req)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	Created(ctx, task)
}

// Get 获取任务
func (c *TaskController) Get(ctx *gin.Context) {
	scope, ok := scopeFrom(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	task, err := c.scheduling.GetTask(ctx.Request.Context(), scope, id)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	Success(ctx, task)
}

// Update 部分更新任务,返回任务与前推产生的日期变化
func (c *TaskController) Update(ctx *gin.Context) {
	scope, ok := scopeFrom(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req service.UpdateTaskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		_ = ctx.Error(WrapError(err, http.StatusBadRequest, "invalid request"))
		return
	}
	if err := validateLabels(req.CustomName.Value, req.CustomUnit.Value); err != nil {
		_ = ctx.Error(WrapError(err, http.StatusBadRequest, "invalid request"))
		return
	}

	result, err := c.scheduling.UpdateTask(ctx.Request.Context(), scope, id, &req)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	Success(ctx, result)
}

// SetStatus 修改任务状态
func (c *TaskController) SetStatus(ctx *gin.Context) {
	scope, ok := scopeFrom(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	var req service.SetStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		_ = ctx.Error(WrapError(err, http.StatusBadRequest, "invalid request"))
		return
	}

	task, err := c.scheduling.SetTaskStatus(ctx.Request.Context(), scope, id, &req)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	Success(ctx, task)
}

// Delete 软删除任务
func (c *TaskController) Delete(ctx *gin.Context) {
	scope, ok := scopeFrom(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	if err := c.scheduling.DeleteTask(ctx.Request.Context(), scope, id); err != nil {
		_ = ctx.Error(err)
		return
	}
	Success(ctx, nil)
}

// History 任务状态历史
func (c *TaskController) History(ctx *gin.Context) {
	scope, ok := scopeFrom(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	history, err := c.scheduling.ListTaskHistory(ctx.Request.Context(), scope, id)
	if err != nil {
		_ = ctx.Error(err)
		return
	}
	Success(ctx, history)
}

func validateLabels(name, unit *string) error {
	if err := utils.ValidateName(name, maxNameLen); err != nil {
		return err
	}
	return utils.ValidateName(unit, maxUnitLen)
}
