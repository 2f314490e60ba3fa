package scheduling

// StatusEngine 任务状态机
type StatusEngine interface {
	CanTransition(from, to Status) bool
	// Apply 校验状态转换并更新进度,成功时修改 task
	Apply(task *Task, to Status, progress *int) error
}

// transitions 允许的状态转换
// 任意状态均可重置为 pending;completed 不能直接回到 in_progress
var transitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusCompleted},
	StatusInProgress: {StatusPaused, StatusCompleted},
	StatusPaused:     {StatusInProgress},
	StatusCompleted:  {},
}

type statusEngine struct{}

// NewStatusEngine 创建状态机
func NewStatusEngine() StatusEngine {
	return statusEngine{}
}

// CanTransition 判断是否允许转换
func (statusEngine) CanTransition(from, to Status) bool {
	if !from.IsValid() || !to.IsValid() {
		return false
	}
	// 同状态视为仅更新进度
	if from == to || to == StatusPending {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Apply 执行状态转换
func (e statusEngine) Apply(task *Task, to Status, progress *int) error {
	if !to.IsValid() {
		return &ValidationError{Field: "status", Message: "unknown status " + string(to)}
	}
	if !e.CanTransition(task.Status, to) {
		return &InvalidTransitionError{TaskID: task.ID, From: task.Status, To: to}
	}

	task.Status = to
	switch {
	case to == StatusCompleted:
		task.ProgressPercent = 100
	case progress != nil:
		task.ProgressPercent = ClampProgress(*progress)
	}
	return nil
}

// ClampProgress 将进度限制在 [0,100]
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
