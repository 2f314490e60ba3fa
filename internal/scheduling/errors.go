package scheduling

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// 错误码,API 层据此映射 HTTP 状态码
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeCycle             = "DEPENDENCY_CYCLE"
	CodeSelfLoop          = "DEPENDENCY_SELF_LOOP"
	CodeCrossProject      = "DEPENDENCY_CROSS_PROJECT"
	CodeInvalidTransition = "INVALID_STATUS_TRANSITION"
	CodeScheduleOverflow  = "SCHEDULE_OVERFLOW"
	CodeScheduleTimeout   = "SCHEDULE_TIMEOUT"
)

// CodedError 带错误码的领域错误
type CodedError interface {
	error
	Code() string
}

// ValidationError 输入参数错误
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// Code 返回错误码
func (e *ValidationError) Code() string { return CodeValidation }

// NotFoundError 任务或依赖不存在(含已软删除)
type NotFoundError struct {
	Resource string // task / dependency
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// Code 返回错误码
func (e *NotFoundError) Code() string { return CodeNotFound }

// CycleError 依赖图出现环
// Path 为环上的任务 ID,首尾相同
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return "dependency cycle detected"
	}
	return "dependency cycle detected: " + strings.Join(e.Path, " -> ")
}

// Code 返回错误码
func (e *CycleError) Code() string { return CodeCycle }

// SelfLoopError 前置任务与后置任务相同
type SelfLoopError struct {
	TaskID string
}

func (e *SelfLoopError) Error() string {
	return fmt.Sprintf("task %s cannot depend on itself", e.TaskID)
}

// Code 返回错误码
func (e *SelfLoopError) Code() string { return CodeSelfLoop }

// CrossProjectError 依赖两端不属于同一项目
type CrossProjectError struct {
	PredecessorID      string
	PredecessorProject string
	SuccessorID        string
	SuccessorProject   string
}

func (e *CrossProjectError) Error() string {
	return fmt.Sprintf("tasks %s (project %s) and %s (project %s) belong to different projects",
		e.PredecessorID, e.PredecessorProject, e.SuccessorID, e.SuccessorProject)
}

// Code 返回错误码
func (e *CrossProjectError) Code() string { return CodeCrossProject }

// InvalidTransitionError 状态机拒绝的状态转换
type InvalidTransitionError struct {
	TaskID string
	From   Status
	To     Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition for task %s: %s -> %s", e.TaskID, e.From, e.To)
}

// Code 返回错误码
func (e *InvalidTransitionError) Code() string { return CodeInvalidTransition }

// ScheduleOverflowError 推算出的日期超出支持范围
type ScheduleOverflowError struct {
	TaskID string
	Date   time.Time
}

func (e *ScheduleOverflowError) Error() string {
	return fmt.Sprintf("computed date %s for task %s is outside the supported range [%s, %s]",
		e.Date.Format(DateLayout), e.TaskID, MinDate.Format(DateLayout), MaxDate.Format(DateLayout))
}

// Code 返回错误码
func (e *ScheduleOverflowError) Code() string { return CodeScheduleOverflow }

// ScheduleTimeoutError 拓扑遍历超出时间预算
type ScheduleTimeoutError struct {
	Visited int
	Total   int
	Cause   error
}

func (e *ScheduleTimeoutError) Error() string {
	return fmt.Sprintf("schedule computation timed out after %d of %d tasks", e.Visited, e.Total)
}

// Code 返回错误码
func (e *ScheduleTimeoutError) Code() string { return CodeScheduleTimeout }

func (e *ScheduleTimeoutError) Unwrap() error { return e.Cause }

// ErrorTaskIDs 返回错误涉及的任务 ID,供界面高亮
func ErrorTaskIDs(err error) []string {
	var (
		cycleErr      *CycleError
		selfLoopErr   *SelfLoopError
		crossErr      *CrossProjectError
		transitionErr *InvalidTransitionError
		overflowErr   *ScheduleOverflowError
		notFoundErr   *NotFoundError
	)
	switch {
	case errors.As(err, &cycleErr):
		return cycleErr.Path
	case errors.As(err, &selfLoopErr):
		return []string{selfLoopErr.TaskID}
	case errors.As(err, &crossErr):
		return []string{crossErr.PredecessorID, crossErr.SuccessorID}
	case errors.As(err, &transitionErr):
		return []string{transitionErr.TaskID}
	case errors.As(err, &overflowErr):
		return []string{overflowErr.TaskID}
	case errors.As(err, &notFoundErr) && notFoundErr.Resource == ResourceTask:
		return []string{notFoundErr.ID}
	}
	return nil
}
