package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/schedule-gin/internal/config"
	"github.com/mautops/schedule-gin/internal/database"
	"github.com/mautops/schedule-gin/internal/metrics"
	"github.com/mautops/schedule-gin/internal/model"
	"github.com/mautops/schedule-gin/internal/repository"
	"github.com/mautops/schedule-gin/internal/scheduling"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// 推送给前端的事件类型
const (
	EventTaskCreated       = "task.created"
	EventTaskUpdated       = "task.updated"
	EventTaskStatus        = "task.status_changed"
	EventTaskDeleted       = "task.deleted"
	EventDependencyAdded   = "dependency.added"
	EventDependencyRemoved = "dependency.removed"
)

// ScheduleEvent 项目排程变更事件
type ScheduleEvent struct {
	Type         string                  `json:"type"`
	ProjectID    string                  `json:"project_id"`
	TaskID       string                  `json:"task_id,omitempty"`
	DependencyID string                  `json:"dependency_id,omitempty"`
	Changes      []scheduling.DateChange `json:"changes,omitempty"`
}

// ChangeNotifier 排程变更通知,提交成功后调用
type ChangeNotifier interface {
	NotifyProject(organizationID, projectID string, event interface{})
}

// SchedulingService 排程服务,组合任务存储、依赖图、前推计算与状态机
// 所有写操作在同一项目内串行执行,并在单个数据库事务中提交
type SchedulingService interface {
	CreateTask(ctx context.Context, scope Scope, req *CreateTaskRequest) (*TaskView, error)
	GetTask(ctx context.Context, scope Scope, id string) (*TaskView, error)
	UpdateTask(ctx context.Context, scope Scope, id string, req *UpdateTaskRequest) (*UpdateTaskResult, error)
	SetTaskStatus(ctx context.Context, scope Scope, id string, req *SetStatusRequest) (*TaskView, error)
	DeleteTask(ctx context.Context, scope Scope, id string) error
	AddDependency(ctx context.Context, scope Scope, req *AddDependencyRequest) (*AddDependencyResult, error)
	RemoveDependency(ctx context.Context, scope Scope, id string) error
	GetProjectSchedule(ctx context.Context, scope Scope) (*ProjectSchedule, error)
	ListTaskHistory(ctx context.Context, scope Scope, id string) ([]*StatusHistoryView, error)
	UpdateSchedulerConfig(cfg config.SchedulerConfig)
}

// schedulingService 排程服务实现
type schedulingService struct {
	db        *gorm.DB
	engine    scheduling.StatusEngine
	scheduler scheduling.Scheduler
	catalog   CatalogReader
	audit     AuditLogService
	notifier  ChangeNotifier
	locker    *ProjectLocker
	logger    logrus.FieldLogger
	reads     singleflight.Group

	cfgMu sync.RWMutex
	cfg   config.SchedulerConfig
}

// NewSchedulingService 创建排程服务,audit 与 notifier 可为 nil
func NewSchedulingService(
	db *gorm.DB,
	cfg config.SchedulerConfig,
	audit AuditLogService,
	notifier ChangeNotifier,
	logger logrus.FieldLogger,
) SchedulingService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &schedulingService{
		db:        db,
		engine:    scheduling.NewStatusEngine(),
		scheduler: scheduling.NewScheduler(),
		catalog:   NewCatalogReader(repository.NewCatalogRepository(db)),
		audit:     audit,
		notifier:  notifier,
		locker:    NewProjectLocker(),
		logger:    logger.WithField("component", "scheduling"),
		cfg:       cfg,
	}
}

// UpdateSchedulerConfig 热更新前推时间预算
func (s *schedulingService) UpdateSchedulerConfig(cfg config.SchedulerConfig) {
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	s.cfg = cfg
}

func (s *schedulingService) schedulerConfig() config.SchedulerConfig {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

// CreateTask 创建任务
func (s *schedulingService) CreateTask(ctx context.Context, scope Scope, req *CreateTaskRequest) (*TaskView, error) {
	var task *scheduling.Task
	err := s.write(ctx, scope, ActionCreateTask, func(tx *gorm.DB) error {
		var err error
		task, err = NewTaskStore(tx, s.engine).Create(scope, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordTaskCreated()
	s.afterCommit(ctx, scope, ActionCreateTask, scheduling.ResourceTask, task.ID, req,
		&ScheduleEvent{Type: EventTaskCreated, TaskID: task.ID})
	return s.view(scope, task)
}

// GetTask 获取任务
func (s *schedulingService) GetTask(ctx context.Context, scope Scope, id string) (*TaskView, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	task, err := NewTaskStore(s.db.WithContext(ctx), s.engine).Get(scope, id)
	if err != nil {
		return nil, err
	}
	return s.view(scope, task)
}

// UpdateTask 更新任务,日期变化时以该任务为锚点前推下游任务
func (s *schedulingService) UpdateTask(ctx context.Context, scope Scope, id string, req *UpdateTaskRequest) (*UpdateTaskResult, error) {
	var (
		task    *scheduling.Task
		changes []scheduling.DateChange
	)
	err := s.write(ctx, scope, ActionUpdateTask, func(tx *gorm.DB) error {
		store := NewTaskStore(tx, s.engine)
		updated, scheduleChanged, err := store.Update(scope, id, req)
		if err != nil {
			return err
		}
		task = updated
		if !scheduleChanged {
			return nil
		}

		g, err := s.loadGraph(tx, store, scope)
		if err != nil {
			return err
		}
		changes, err = s.propagate(ctx, store, g, ActionUpdateTask, task.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	// 解除锁定的任务自身也可能被前推
	for _, c := range changes {
		if c.TaskID == task.ID {
			c.Apply(task)
		}
	}

	s.afterCommit(ctx, scope, ActionUpdateTask, scheduling.ResourceTask, task.ID,
		map[string]interface{}{"request": req, "propagated": len(changes)},
		&ScheduleEvent{Type: EventTaskUpdated, TaskID: task.ID, Changes: changes})

	view, err := s.view(scope, task)
	if err != nil {
		return nil, err
	}
	return &UpdateTaskResult{Task: view, PropagatedChanges: nonNil(changes)}, nil
}

// SetTaskStatus 修改任务状态
func (s *schedulingService) SetTaskStatus(ctx context.Context, scope Scope, id string, req *SetStatusRequest) (*TaskView, error) {
	if req == nil {
		return nil, &scheduling.ValidationError{Field: "status", Message: "is required"}
	}
	var task *scheduling.Task
	err := s.write(ctx, scope, ActionSetStatus, func(tx *gorm.DB) error {
		var err error
		task, err = NewTaskStore(tx, s.engine).SetStatus(scope, id, scheduling.Status(req.Status), req.ProgressPercent)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, scope, ActionSetStatus, scheduling.ResourceTask, task.ID, req,
		&ScheduleEvent{Type: EventTaskStatus, TaskID: task.ID})
	return s.view(scope, task)
}

// DeleteTask 软删除任务,不触发前推
func (s *schedulingService) DeleteTask(ctx context.Context, scope Scope, id string) error {
	err := s.write(ctx, scope, ActionDeleteTask, func(tx *gorm.DB) error {
		return NewTaskStore(tx, s.engine).SoftDelete(scope, id)
	})
	if err != nil {
		return err
	}

	s.afterCommit(ctx, scope, ActionDeleteTask, scheduling.ResourceTask, id, nil,
		&ScheduleEvent{Type: EventTaskDeleted, TaskID: id})
	return nil
}

// AddDependency 添加依赖,成功后以前置任务为锚点前推
func (s *schedulingService) AddDependency(ctx context.Context, scope Scope, req *AddDependencyRequest) (*AddDependencyResult, error) {
	if req == nil {
		return nil, &scheduling.ValidationError{Message: "request body is required"}
	}
	typ := scheduling.DependencyType(req.Type)
	if req.Type == "" {
		typ = scheduling.FinishToStart
	}

	dep := &scheduling.Dependency{
		ID:             "dep-" + uuid.New().String(),
		OrganizationID: scope.OrganizationID,
		ProjectID:      scope.ProjectID,
		PredecessorID:  req.PredecessorTaskID,
		SuccessorID:    req.SuccessorTaskID,
		Type:           typ,
		LagDays:        req.LagDays,
		CreatedAt:      time.Now().UTC(),
	}

	var changes []scheduling.DateChange
	err := s.write(ctx, scope, ActionAddDependency, func(tx *gorm.DB) error {
		store := NewTaskStore(tx, s.engine)
		g, err := s.loadGraph(tx, store, scope)
		if err != nil {
			return err
		}
		if err := g.AddEdge(dep); err != nil {
			return s.classifyEdgeError(store, scope, dep, err)
		}
		if err := repository.NewDependencyRepository(tx).Create(model.NewDependencyModel(dep, scope.operator())); err != nil {
			return fmt.Errorf("failed to create dependency: %w", err)
		}
		changes, err = s.propagate(ctx, store, g, ActionAddDependency, dep.PredecessorID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, scope, ActionAddDependency, scheduling.ResourceDependency, dep.ID,
		map[string]interface{}{"request": req, "propagated": len(changes)},
		&ScheduleEvent{Type: EventDependencyAdded, DependencyID: dep.ID, Changes: changes})
	return &AddDependencyResult{Dependency: newDependencyView(dep), PropagatedChanges: nonNil(changes)}, nil
}

// RemoveDependency 删除依赖,不回退任何日期;依赖不存在时视为成功
func (s *schedulingService) RemoveDependency(ctx context.Context, scope Scope, id string) error {
	removed := false
	err := s.write(ctx, scope, ActionRemoveDependency, func(tx *gorm.DB) error {
		repo := repository.NewDependencyRepository(tx)
		if _, err := repo.FindByID(scope.OrganizationID, scope.ProjectID, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return fmt.Errorf("failed to load dependency %s: %w", id, err)
		}
		if err := repo.Delete(id); err != nil {
			return fmt.Errorf("failed to delete dependency %s: %w", id, err)
		}
		removed = true
		return nil
	})
	if err != nil {
		return err
	}

	if removed {
		s.afterCommit(ctx, scope, ActionRemoveDependency, scheduling.ResourceDependency, id, nil,
			&ScheduleEvent{Type: EventDependencyRemoved, DependencyID: id})
	}
	return nil
}

// GetProjectSchedule 读取项目排程快照,不加项目锁
// 同一项目的并发读取合并为一次查询
func (s *schedulingService) GetProjectSchedule(ctx context.Context, scope Scope) (*ProjectSchedule, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	readCtx := context.WithoutCancel(ctx)
	v, err, _ := s.reads.Do(scope.key(), func() (interface{}, error) {
		return s.loadSchedule(readCtx, scope)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ProjectSchedule), nil
}

func (s *schedulingService) loadSchedule(ctx context.Context, scope Scope) (*ProjectSchedule, error) {
	db := s.db.WithContext(ctx)
	store := NewTaskStore(db, s.engine)
	g, err := s.loadGraph(db, store, scope)
	if err != nil {
		return nil, err
	}

	tasks, err := s.catalog.Views(scope.OrganizationID, g.Tasks())
	if err != nil {
		return nil, err
	}
	deps := g.Dependencies()
	schedule := &ProjectSchedule{
		ProjectID:    scope.ProjectID,
		Tasks:        tasks,
		Dependencies: make([]*DependencyView, 0, len(deps)),
	}
	for _, d := range deps {
		schedule.Dependencies = append(schedule.Dependencies, newDependencyView(d))
	}
	return schedule, nil
}

// ListTaskHistory 查询任务状态历史
func (s *schedulingService) ListTaskHistory(ctx context.Context, scope Scope, id string) ([]*StatusHistoryView, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	rows, err := NewTaskStore(s.db.WithContext(ctx), s.engine).History(scope, id)
	if err != nil {
		return nil, err
	}
	views := make([]*StatusHistoryView, 0, len(rows))
	for _, r := range rows {
		views = append(views, &StatusHistoryView{
			FromStatus:     r.FromStatus,
			ToStatus:       r.ToStatus,
			ProgressBefore: r.ProgressBefore,
			ProgressAfter:  r.ProgressAfter,
			Operator:       r.Operator,
			CreatedAt:      r.CreatedAt,
		})
	}
	return views, nil
}

// write 在项目锁与数据库事务内执行写操作
func (s *schedulingService) write(ctx context.Context, scope Scope, op string, fn func(tx *gorm.DB) error) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	unlock, err := s.locker.Lock(ctx, scope.key())
	if err != nil {
		return &scheduling.ScheduleTimeoutError{Cause: err}
	}
	defer unlock()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := database.AcquireProjectLock(tx, scope.OrganizationID, scope.ProjectID); err != nil {
			return err
		}
		return fn(tx)
	})
	if err != nil {
		s.rejected(scope, op, err)
		return err
	}
	// 提交后的读取不能合并到提交前已开始的读取
	s.reads.Forget(scope.key())
	return nil
}

// loadGraph 由已提交的任务与依赖重建依赖图
func (s *schedulingService) loadGraph(db *gorm.DB, store TaskStore, scope Scope) (*scheduling.Graph, error) {
	tasks, err := store.List(scope)
	if err != nil {
		return nil, err
	}
	rows, err := repository.NewDependencyRepository(db).FindByProject(scope.OrganizationID, scope.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dependencies: %w", err)
	}
	deps := make([]*scheduling.Dependency, 0, len(rows))
	for _, r := range rows {
		deps = append(deps, r.ToDomain())
	}
	return scheduling.NewGraph(tasks, deps), nil
}

// propagate 在时间预算内前推并持久化结果
func (s *schedulingService) propagate(ctx context.Context, store TaskStore, g *scheduling.Graph, trigger string, anchors ...string) ([]scheduling.DateChange, error) {
	pctx, cancel := context.WithTimeout(ctx, s.schedulerConfig().Timeout(g.Len()))
	defer cancel()

	started := time.Now()
	changes, err := s.scheduler.Propagate(pctx, g, anchors...)
	if err != nil {
		return nil, err
	}
	metrics.RecordPropagation(trigger, time.Since(started).Seconds(), len(changes))

	if err := store.ApplyChanges(changes); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"trigger": trigger,
		"anchors": anchors,
		"changed": len(changes),
		"tasks":   g.Len(),
	}).Debug("dates propagated")
	return changes, nil
}

// classifyEdgeError 端点不在本项目时,区分跨项目与不存在
func (s *schedulingService) classifyEdgeError(store TaskStore, scope Scope, dep *scheduling.Dependency, err error) error {
	var notFound *scheduling.NotFoundError
	if !errors.As(err, &notFound) {
		return err
	}

	pred, predErr := store.Lookup(scope, dep.PredecessorID)
	succ, succErr := store.Lookup(scope, dep.SuccessorID)
	if predErr != nil || succErr != nil {
		return err
	}
	if pred.ProjectID != succ.ProjectID || pred.ProjectID != scope.ProjectID {
		return &scheduling.CrossProjectError{
			PredecessorID:      pred.ID,
			PredecessorProject: pred.ProjectID,
			SuccessorID:        succ.ID,
			SuccessorProject:   succ.ProjectID,
		}
	}
	return err
}

// afterCommit 提交后的审计、通知,失败不影响结果
func (s *schedulingService) afterCommit(ctx context.Context, scope Scope, action, resourceType, resourceID string, details interface{}, event *ScheduleEvent) {
	if s.audit != nil {
		if err := s.audit.RecordAction(ctx, scope, action, resourceType, resourceID, details); err != nil {
			s.logger.WithError(err).WithField("action", action).Warn("failed to record audit log")
		}
	}
	if s.notifier != nil && event != nil {
		event.ProjectID = scope.ProjectID
		s.notifier.NotifyProject(scope.OrganizationID, scope.ProjectID, event)
	}
}

// rejected 记录被拒绝的修改
func (s *schedulingService) rejected(scope Scope, op string, err error) {
	reason := "internal"
	var coded scheduling.CodedError
	if errors.As(err, &coded) {
		reason = coded.Code()
	}
	metrics.RecordRejected(op, reason)

	entry := s.logger.WithFields(logrus.Fields{
		"operation":       op,
		"organization_id": scope.OrganizationID,
		"project_id":      scope.ProjectID,
		"reason":          reason,
	})
	if reason == "internal" {
		entry.WithError(err).Error("scheduling operation failed")
		return
	}
	entry.WithField("task_ids", scheduling.ErrorTaskIDs(err)).Info(err.Error())
}

func (s *schedulingService) view(scope Scope, task *scheduling.Task) (*TaskView, error) {
	views, err := s.catalog.Views(scope.OrganizationID, []*scheduling.Task{task})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

func nonNil(changes []scheduling.DateChange) []scheduling.DateChange {
	if changes == nil {
		return []scheduling.DateChange{}
	}
	return changes
}
