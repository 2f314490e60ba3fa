package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mautops/schedule-gin/internal/scheduling"
	"github.com/shopspring/decimal"
)

// Scope 调用方所属的组织与项目,所有调度操作都显式携带
type Scope struct {
	OrganizationID string
	ProjectID      string
	UserID         string
}

// Validate 校验作用域
func (s Scope) Validate() error {
	if s.OrganizationID == "" {
		return &scheduling.ValidationError{Field: "organization_id", Message: "is required"}
	}
	if s.ProjectID == "" {
		return &scheduling.ValidationError{Field: "project_id", Message: "is required"}
	}
	return nil
}

func (s Scope) key() string {
	return s.OrganizationID + "/" + s.ProjectID
}

func (s Scope) operator() string {
	if s.UserID == "" {
		return "system"
	}
	return s.UserID
}

// Date 仅含日期的 JSON 值,格式 YYYY-MM-DD
type Date struct {
	time.Time
}

// NewDate 由字符串构建日期
func NewDate(s string) (Date, error) {
	t, err := scheduling.ParseDate(s)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

// UnmarshalJSON 解析日期
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	t, err := scheduling.ParseDate(s)
	if err != nil {
		return fmt.Errorf("date must use format YYYY-MM-DD: %w", err)
	}
	d.Time = t
	return nil
}

// MarshalJSON 输出日期
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(scheduling.DateLayout))
}

// Optional PATCH 语义字段: 未出现 / null / 具体值
type Optional[T any] struct {
	Set   bool
	Value *T
}

// Some 构造有值的字段
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Null 构造显式清空的字段
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// UnmarshalJSON 字段出现即视为已设置
func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// MarshalJSON 输出值或 null
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// CreateTaskRequest 创建任务请求
type CreateTaskRequest struct {
	KindID           *string          `json:"kind_id"`
	CustomName       *string          `json:"custom_name"`
	UnitID           *string          `json:"unit_id"`
	CustomUnit       *string          `json:"custom_unit"`
	Quantity         *decimal.Decimal `json:"quantity"`
	PlannedStartDate *Date            `json:"planned_start_date"`
	PlannedEndDate   *Date            `json:"planned_end_date"`
	DurationDays     *int             `json:"duration_days"`
	Status           *string          `json:"status"`
	ProgressPercent  *int             `json:"progress_percent"`
	CostScope        *string          `json:"cost_scope"`
}

// UpdateTaskRequest 更新任务请求,只修改出现的字段
type UpdateTaskRequest struct {
	KindID           Optional[string]          `json:"kind_id"`
	CustomName       Optional[string]          `json:"custom_name"`
	UnitID           Optional[string]          `json:"unit_id"`
	CustomUnit       Optional[string]          `json:"custom_unit"`
	Quantity         Optional[decimal.Decimal] `json:"quantity"`
	PlannedStartDate Optional[Date]            `json:"planned_start_date"`
	PlannedEndDate   Optional[Date]            `json:"planned_end_date"`
	DurationDays     Optional[int]             `json:"duration_days"`
	CostScope        Optional[string]          `json:"cost_scope"`
	// DatesPinned 显式为 false 时解除日期锁定,允许前推覆盖
	DatesPinned Optional[bool] `json:"dates_pinned"`
}

// datePatch 转换为日期三元组修改
func (r *UpdateTaskRequest) datePatch() scheduling.DatePatch {
	return scheduling.DatePatch{
		StartSet:    r.PlannedStartDate.Set,
		Start:       dateValue(r.PlannedStartDate.Value),
		EndSet:      r.PlannedEndDate.Set,
		End:         dateValue(r.PlannedEndDate.Value),
		DurationSet: r.DurationDays.Set,
		Duration:    r.DurationDays.Value,
	}
}

// SetStatusRequest 修改状态请求
type SetStatusRequest struct {
	Status          string `json:"status" binding:"required"`
	ProgressPercent *int   `json:"progress_percent"`
}

// AddDependencyRequest 添加依赖请求
type AddDependencyRequest struct {
	PredecessorTaskID string `json:"predecessor_task_id" binding:"required"`
	SuccessorTaskID   string `json:"successor_task_id" binding:"required"`
	Type              string `json:"type"`
	LagDays           int    `json:"lag_days"`
}

// TaskView 任务读模型,附带目录解析后的名称与单位
type TaskView struct {
	ID               string          `json:"id"`
	ProjectID        string          `json:"project_id"`
	Name             string          `json:"name"`
	Unit             string          `json:"unit,omitempty"`
	KindID           *string         `json:"kind_id,omitempty"`
	CustomName       *string         `json:"custom_name,omitempty"`
	UnitID           *string         `json:"unit_id,omitempty"`
	CustomUnit       *string         `json:"custom_unit,omitempty"`
	Quantity         decimal.Decimal `json:"quantity"`
	PlannedStartDate *Date           `json:"planned_start_date"`
	PlannedEndDate   *Date           `json:"planned_end_date"`
	DurationDays     *int            `json:"duration_days"`
	DatesPinned      bool            `json:"dates_pinned"`
	Status           string          `json:"status"`
	ProgressPercent  int             `json:"progress_percent"`
	CostScope        string          `json:"cost_scope"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// DependencyView 依赖读模型
type DependencyView struct {
	ID                string    `json:"id"`
	PredecessorTaskID string    `json:"predecessor_task_id"`
	SuccessorTaskID   string    `json:"successor_task_id"`
	Type              string    `json:"type"`
	LagDays           int       `json:"lag_days"`
	CreatedAt         time.Time `json:"created_at"`
}

// ProjectSchedule 甘特图数据
type ProjectSchedule struct {
	ProjectID    string            `json:"project_id"`
	Tasks        []*TaskView       `json:"tasks"`
	Dependencies []*DependencyView `json:"dependencies"`
}

// UpdateTaskResult 更新任务结果
type UpdateTaskResult struct {
	Task              *TaskView                `json:"task"`
	PropagatedChanges []scheduling.DateChange `json:"propagated_changes"`
}

// AddDependencyResult 添加依赖结果
type AddDependencyResult struct {
	Dependency        *DependencyView          `json:"dependency"`
	PropagatedChanges []scheduling.DateChange `json:"propagated_changes"`
}

// StatusHistoryView 状态变更记录
type StatusHistoryView struct {
	FromStatus     string    `json:"from_status"`
	ToStatus       string    `json:"to_status"`
	ProgressBefore int       `json:"progress_before"`
	ProgressAfter  int       `json:"progress_after"`
	Operator       string    `json:"operator"`
	CreatedAt      time.Time `json:"created_at"`
}

func dateValue(d *Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

func toDate(t *time.Time) *Date {
	if t == nil {
		return nil
	}
	return &Date{*t}
}

// newDependencyView 构建依赖读模型
func newDependencyView(d *scheduling.Dependency) *DependencyView {
	return &DependencyView{
		ID:                d.ID,
		PredecessorTaskID: d.PredecessorID,
		SuccessorTaskID:   d.SuccessorID,
		Type:              string(d.Type),
		LagDays:           d.LagDays,
		CreatedAt:         d.CreatedAt,
	}
}
