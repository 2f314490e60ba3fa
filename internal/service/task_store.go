package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/schedule-gin/internal/model"
	"github.com/mautops/schedule-gin/internal/repository"
	"github.com/mautops/schedule-gin/internal/scheduling"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TaskStore 任务存储,按组织与项目隔离,软删除
// 由调用方传入事务内的 *gorm.DB 构建,本身不开启事务,也不触发日期前推
type TaskStore interface {
	Create(scope Scope, req *CreateTaskRequest) (*scheduling.Task, error)
	Get(scope Scope, id string) (*scheduling.Task, error)
	// Lookup 在组织范围内查找未删除任务,不限定项目
	Lookup(scope Scope, id string) (*scheduling.Task, error)
	// Update 应用修改,第二个返回值表示日期三元组或锁定状态是否变化
	Update(scope Scope, id string, req *UpdateTaskRequest) (*scheduling.Task, bool, error)
	SetStatus(scope Scope, id string, to scheduling.Status, progress *int) (*scheduling.Task, error)
	SoftDelete(scope Scope, id string) error
	List(scope Scope) ([]*scheduling.Task, error)
	ApplyChanges(changes []scheduling.DateChange) error
	History(scope Scope, id string) ([]*model.TaskStatusHistoryModel, error)
}

type taskStore struct {
	taskRepo    repository.TaskRepository
	depRepo     repository.DependencyRepository
	historyRepo repository.StatusHistoryRepository
	engine      scheduling.StatusEngine
	now         func() time.Time
}

// NewTaskStore 创建任务存储
func NewTaskStore(db *gorm.DB, engine scheduling.StatusEngine) TaskStore {
	return &taskStore{
		taskRepo:    repository.NewTaskRepository(db),
		depRepo:     repository.NewDependencyRepository(db),
		historyRepo: repository.NewStatusHistoryRepository(db),
		engine:      engine,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// NewTaskID 生成任务 ID
func NewTaskID() string {
	return "tsk-" + uuid.New().String()
}

// Create 创建任务
func (s *taskStore) Create(scope Scope, req *CreateTaskRequest) (*scheduling.Task, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, &scheduling.ValidationError{Message: "request body is required"}
	}

	now := s.now()
	task := &scheduling.Task{
		ID:             NewTaskID(),
		OrganizationID: scope.OrganizationID,
		ProjectID:      scope.ProjectID,
		KindID:         trimmed(req.KindID),
		CustomName:     trimmed(req.CustomName),
		UnitID:         trimmed(req.UnitID),
		CustomUnit:     trimmed(req.CustomUnit),
		Quantity:       decimal.Zero,
		Status:         scheduling.StatusPending,
		CostScope:      scheduling.CostScopeNone,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := validateName(task.KindID, task.CustomName); err != nil {
		return nil, err
	}
	if req.Quantity == nil {
		return nil, &scheduling.ValidationError{Field: "quantity", Message: "is required"}
	}
	if req.Quantity.IsNegative() {
		return nil, &scheduling.ValidationError{Field: "quantity", Message: "must not be negative"}
	}
	task.Quantity = *req.Quantity
	if req.CostScope != nil {
		cs := scheduling.CostScope(*req.CostScope)
		if !cs.IsValid() {
			return nil, &scheduling.ValidationError{Field: "cost_scope", Message: "unknown cost scope " + *req.CostScope}
		}
		task.CostScope = cs
	}
	if req.Status != nil {
		st := scheduling.Status(*req.Status)
		if !st.IsValid() {
			return nil, &scheduling.ValidationError{Field: "status", Message: "unknown status " + *req.Status}
		}
		task.Status = st
	}
	if req.ProgressPercent != nil {
		if *req.ProgressPercent < 0 || *req.ProgressPercent > 100 {
			return nil, &scheduling.ValidationError{Field: "progress_percent", Message: "must be between 0 and 100"}
		}
		task.ProgressPercent = *req.ProgressPercent
	}
	if task.Status == scheduling.StatusCompleted {
		task.ProgressPercent = 100
	}

	patch := scheduling.DatePatch{
		StartSet:    req.PlannedStartDate != nil,
		Start:       dateValue(req.PlannedStartDate),
		EndSet:      req.PlannedEndDate != nil,
		End:         dateValue(req.PlannedEndDate),
		DurationSet: req.DurationDays != nil,
		Duration:    req.DurationDays,
	}
	if _, err := scheduling.ApplyDates(task, patch); err != nil {
		return nil, err
	}
	task.DatesPinned = patch.SetsDate()

	if err := s.taskRepo.Create(model.NewTaskModel(task)); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

// Get 获取项目内未删除的任务
func (s *taskStore) Get(scope Scope, id string) (*scheduling.Task, error) {
	task, err := s.Lookup(scope, id)
	if err != nil {
		return nil, err
	}
	if task.ProjectID != scope.ProjectID {
		return nil, &scheduling.NotFoundError{Resource: scheduling.ResourceTask, ID: id}
	}
	return task, nil
}

// Lookup 在组织范围内查找未删除任务
func (s *taskStore) Lookup(scope Scope, id string) (*scheduling.Task, error) {
	task, err := s.find(scope, id)
	if err != nil {
		return nil, err
	}
	if task.IsDeleted {
		return nil, &scheduling.NotFoundError{Resource: scheduling.ResourceTask, ID: id}
	}
	return task, nil
}

func (s *taskStore) find(scope Scope, id string) (*scheduling.Task, error) {
	if id == "" {
		return nil, &scheduling.NotFoundError{Resource: scheduling.ResourceTask, ID: id}
	}
	m, err := s.taskRepo.FindByID(scope.OrganizationID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &scheduling.NotFoundError{Resource: scheduling.ResourceTask, ID: id}
		}
		return nil, fmt.Errorf("failed to load task %s: %w", id, err)
	}
	return m.ToDomain(), nil
}

// Update 更新任务
func (s *taskStore) Update(scope Scope, id string, req *UpdateTaskRequest) (*scheduling.Task, bool, error) {
	task, err := s.Get(scope, id)
	if err != nil {
		return nil, false, err
	}
	if req == nil {
		return task, false, nil
	}

	if req.KindID.Set {
		task.KindID = trimmed(req.KindID.Value)
	}
	if req.CustomName.Set {
		task.CustomName = trimmed(req.CustomName.Value)
	}
	if err := validateName(task.KindID, task.CustomName); err != nil {
		return nil, false, err
	}
	if req.UnitID.Set {
		task.UnitID = trimmed(req.UnitID.Value)
	}
	if req.CustomUnit.Set {
		task.CustomUnit = trimmed(req.CustomUnit.Value)
	}
	if req.Quantity.Set {
		if req.Quantity.Value == nil || req.Quantity.Value.IsNegative() {
			return nil, false, &scheduling.ValidationError{Field: "quantity", Message: "must be a non-negative number"}
		}
		task.Quantity = *req.Quantity.Value
	}
	if req.CostScope.Set {
		if req.CostScope.Value == nil || !scheduling.CostScope(*req.CostScope.Value).IsValid() {
			return nil, false, &scheduling.ValidationError{Field: "cost_scope", Message: "unknown cost scope"}
		}
		task.CostScope = scheduling.CostScope(*req.CostScope.Value)
	}

	patch := req.datePatch()
	changed, err := scheduling.ApplyDates(task, patch)
	if err != nil {
		return nil, false, err
	}

	wasPinned := task.DatesPinned
	switch {
	case req.DatesPinned.Set && req.DatesPinned.Value != nil:
		task.DatesPinned = *req.DatesPinned.Value
	case patch.SetsDate():
		task.DatesPinned = true
	}
	if task.PlannedStart == nil && task.PlannedEnd == nil {
		task.DatesPinned = false
	}
	// 解除锁定后需要重新接受前置任务约束
	if wasPinned && !task.DatesPinned {
		changed = true
	}

	task.UpdatedAt = s.now()
	if err := s.taskRepo.Save(model.NewTaskModel(task)); err != nil {
		return nil, false, fmt.Errorf("failed to update task %s: %w", id, err)
	}
	return task, changed, nil
}

// SetStatus 修改状态并记录历史
func (s *taskStore) SetStatus(scope Scope, id string, to scheduling.Status, progress *int) (*scheduling.Task, error) {
	task, err := s.Get(scope, id)
	if err != nil {
		return nil, err
	}

	from, before := task.Status, task.ProgressPercent
	if err := s.engine.Apply(task, to, progress); err != nil {
		return nil, err
	}

	now := s.now()
	task.UpdatedAt = now
	if err := s.taskRepo.Save(model.NewTaskModel(task)); err != nil {
		return nil, fmt.Errorf("failed to update task status %s: %w", id, err)
	}

	history := &model.TaskStatusHistoryModel{
		ID:             uuid.New().String(),
		OrganizationID: scope.OrganizationID,
		ProjectID:      scope.ProjectID,
		TaskID:         task.ID,
		FromStatus:     string(from),
		ToStatus:       string(task.Status),
		ProgressBefore: before,
		ProgressAfter:  task.ProgressPercent,
		Operator:       scope.operator(),
		CreatedAt:      now,
	}
	if err := s.historyRepo.Save(history); err != nil {
		return nil, fmt.Errorf("failed to save status history: %w", err)
	}
	return task, nil
}

// SoftDelete 软删除任务,已删除时为空操作
func (s *taskStore) SoftDelete(scope Scope, id string) error {
	task, err := s.find(scope, id)
	if err != nil {
		return err
	}
	if task.ProjectID != scope.ProjectID {
		return &scheduling.NotFoundError{Resource: scheduling.ResourceTask, ID: id}
	}
	if task.IsDeleted {
		return nil
	}

	now := s.now()
	task.IsDeleted = true
	task.DeletedAt = &now
	task.UpdatedAt = now
	if err := s.taskRepo.Save(model.NewTaskModel(task)); err != nil {
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}
	return s.pinOrphans(scope, id, now)
}

// pinOrphans 锁定失去全部存活前置任务的后继任务,保留其已排日期
func (s *taskStore) pinOrphans(scope Scope, deletedID string, now time.Time) error {
	deps, err := s.depRepo.FindByProject(scope.OrganizationID, scope.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to list dependencies: %w", err)
	}
	live, err := s.List(scope)
	if err != nil {
		return err
	}
	byID := make(map[string]*scheduling.Task, len(live))
	for _, t := range live {
		byID[t.ID] = t
	}

	var orphans []string
	fed := make(map[string]bool)
	for _, d := range deps {
		if d.PredecessorTaskID == deletedID {
			orphans = append(orphans, d.SuccessorTaskID)
		} else if _, ok := byID[d.PredecessorTaskID]; ok {
			fed[d.SuccessorTaskID] = true
		}
	}

	for _, id := range orphans {
		t, ok := byID[id]
		if !ok || fed[id] || t.DatesPinned || t.PlannedStart == nil {
			continue
		}
		t.DatesPinned = true
		t.UpdatedAt = now
		if err := s.taskRepo.Save(model.NewTaskModel(t)); err != nil {
			return fmt.Errorf("failed to pin task %s: %w", id, err)
		}
	}
	return nil
}

// List 列出项目内未删除的任务,按创建时间升序
func (s *taskStore) List(scope Scope) ([]*scheduling.Task, error) {
	models, err := s.taskRepo.FindByProject(scope.OrganizationID, scope.ProjectID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	tasks := make([]*scheduling.Task, 0, len(models))
	for _, m := range models {
		tasks = append(tasks, m.ToDomain())
	}
	return tasks, nil
}

// ApplyChanges 持久化前推结果
func (s *taskStore) ApplyChanges(changes []scheduling.DateChange) error {
	for _, c := range changes {
		if err := s.taskRepo.UpdateDates(c.TaskID, c.NewStart, c.NewEnd, c.DurationDays); err != nil {
			return fmt.Errorf("failed to persist dates of task %s: %w", c.TaskID, err)
		}
	}
	return nil
}

// History 查询任务状态历史
func (s *taskStore) History(scope Scope, id string) ([]*model.TaskStatusHistoryModel, error) {
	if _, err := s.Get(scope, id); err != nil {
		return nil, err
	}
	return s.historyRepo.FindByTaskID(id)
}

// validateName 目录引用与自定义名称必须且只能提供一个
func validateName(kindID, customName *string) error {
	switch {
	case kindID == nil && customName == nil:
		return &scheduling.ValidationError{Field: "custom_name", Message: "either kind_id or custom_name is required"}
	case kindID != nil && customName != nil:
		return &scheduling.ValidationError{Field: "custom_name", Message: "kind_id and custom_name are mutually exclusive"}
	}
	return nil
}

// trimmed 去除空白,空字符串视为未设置
func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
