// Package scheduling 施工任务排程核心: 依赖图、日期前推算法与任务状态机。
//
// 本包不依赖存储层,所有输入输出均为内存对象;持久化与事务由 service 包负责。
package scheduling

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// 资源类型
const (
	ResourceTask       = "task"
	ResourceDependency = "dependency"
)

// DateLayout 日期格式(仅日期,无时间部分)
const DateLayout = "2006-01-02"

// MaxSpanDays 工期与滞后天数的绝对值上限
const MaxSpanDays = 36500

// 支持的日期范围
var (
	MinDate = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)
	MaxDate = time.Date(2200, time.December, 31, 0, 0, 0, 0, time.UTC)
)

// Status 任务状态
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
)

// IsValid 判断状态是否合法
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusPaused, StatusCompleted:
		return true
	}
	return false
}

// CostScope 成本范围
type CostScope string

const (
	CostScopeMaterialsOnly     CostScope = "materials_only"
	CostScopeLaborOnly         CostScope = "labor_only"
	CostScopeMaterialsAndLabor CostScope = "materials_and_labor"
	CostScopeNone              CostScope = "none"
)

// IsValid 判断成本范围是否合法
func (c CostScope) IsValid() bool {
	switch c {
	case CostScopeMaterialsOnly, CostScopeLaborOnly, CostScopeMaterialsAndLabor, CostScopeNone:
		return true
	}
	return false
}

// DependencyType 依赖关系类型
type DependencyType string

const (
	FinishToStart  DependencyType = "finish_to_start"
	StartToStart   DependencyType = "start_to_start"
	FinishToFinish DependencyType = "finish_to_finish"
	StartToFinish  DependencyType = "start_to_finish"
)

// IsValid 判断依赖类型是否合法
func (t DependencyType) IsValid() bool {
	switch t {
	case FinishToStart, StartToStart, FinishToFinish, StartToFinish:
		return true
	}
	return false
}

// Task 施工任务
type Task struct {
	ID             string
	OrganizationID string
	ProjectID      string

	KindID     *string // 任务目录引用
	CustomName *string // 自定义名称,与 KindID 二选一
	UnitID     *string
	CustomUnit *string

	Quantity decimal.Decimal

	PlannedStart *time.Time
	PlannedEnd   *time.Time
	DurationDays *int
	// DatesPinned 为 true 表示日期由用户直接设置,前推计算不会覆盖
	DatesPinned bool

	Status          Status
	ProgressPercent int
	CostScope       CostScope

	IsDeleted bool
	DeletedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone 深拷贝任务
func (t *Task) Clone() *Task {
	c := *t
	c.KindID = cloneString(t.KindID)
	c.CustomName = cloneString(t.CustomName)
	c.UnitID = cloneString(t.UnitID)
	c.CustomUnit = cloneString(t.CustomUnit)
	c.PlannedStart = cloneTime(t.PlannedStart)
	c.PlannedEnd = cloneTime(t.PlannedEnd)
	c.DeletedAt = cloneTime(t.DeletedAt)
	if t.DurationDays != nil {
		d := *t.DurationDays
		c.DurationDays = &d
	}
	return &c
}

// Duration 返回工期,未设置时按 0 天(里程碑)处理
func (t *Task) Duration() int {
	if t.DurationDays == nil {
		return 0
	}
	return *t.DurationDays
}

// Dependency 任务间的前后置依赖
type Dependency struct {
	ID             string
	OrganizationID string
	ProjectID      string
	PredecessorID  string
	SuccessorID    string
	Type           DependencyType
	LagDays        int
	CreatedAt      time.Time
}

// DateChange 一次前推计算对单个任务日期的修改
type DateChange struct {
	TaskID       string
	OldStart     *time.Time
	OldEnd       *time.Time
	NewStart     *time.Time
	NewEnd       *time.Time
	DurationDays int
}

// MarshalJSON 日期按 YYYY-MM-DD 输出
func (c DateChange) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		TaskID       string  `json:"task_id"`
		OldStart     *string `json:"old_start"`
		OldEnd       *string `json:"old_end"`
		NewStart     *string `json:"new_start"`
		NewEnd       *string `json:"new_end"`
		DurationDays int     `json:"duration_days"`
	}{
		TaskID:       c.TaskID,
		OldStart:     formatDate(c.OldStart),
		OldEnd:       formatDate(c.OldEnd),
		NewStart:     formatDate(c.NewStart),
		NewEnd:       formatDate(c.NewEnd),
		DurationDays: c.DurationDays,
	})
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(DateLayout)
	return &s
}

// NormalizeDate 截断为 UTC 零点
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate 解析 YYYY-MM-DD
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// AddDays 日历日加减
func AddDays(t time.Time, days int) time.Time {
	return NormalizeDate(t).AddDate(0, 0, days)
}

// DaysBetween 返回 end - start 的日历天数
func DaysBetween(start, end time.Time) int {
	s := NormalizeDate(start).Unix()
	e := NormalizeDate(end).Unix()
	return int((e - s) / 86400)
}

// InRange 判断日期是否在支持范围内
func InRange(t time.Time) bool {
	return !t.Before(MinDate) && !t.After(MaxDate)
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func datePtr(t time.Time) *time.Time {
	return &t
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
