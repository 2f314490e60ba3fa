package scheduling

import (
	"context"
	"time"
)

// Scheduler 日期前推计算
type Scheduler interface {
	// Propagate 从锚点任务出发按拓扑顺序前推下游任务日期,返回发生变化的任务
	// 出错时不返回任何变更
	Propagate(ctx context.Context, g *Graph, anchors ...string) ([]DateChange, error)
}

type forwardScheduler struct{}

// NewScheduler 创建前推调度器
func NewScheduler() Scheduler {
	return forwardScheduler{}
}

// Propagate 执行一次前推
func (forwardScheduler) Propagate(ctx context.Context, g *Graph, anchors ...string) ([]DateChange, error) {
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	reach := g.Reachable(anchors...)
	if len(reach) == 0 {
		return nil, nil
	}

	// 计算在副本上进行,原任务对象不被修改
	working := make(map[string]*Task)
	current := func(id string) *Task {
		if t, ok := working[id]; ok {
			return t
		}
		t, _ := g.Task(id)
		return t
	}

	var changes []DateChange
	for i, id := range order {
		if err := ctx.Err(); err != nil {
			return nil, &ScheduleTimeoutError{Visited: i, Total: len(order), Cause: err}
		}
		if !reach[id] {
			continue
		}
		t := current(id)
		if t.DatesPinned {
			continue
		}

		dur := t.Duration()
		lb, ok := startLowerBound(g.PredecessorsOf(id), current, dur)
		if !ok {
			continue
		}
		if t.PlannedStart != nil && !t.PlannedStart.Before(lb) {
			continue
		}

		newStart := lb
		newEnd := AddDays(newStart, dur)
		if !InRange(newStart) {
			return nil, &ScheduleOverflowError{TaskID: id, Date: newStart}
		}
		if !InRange(newEnd) {
			return nil, &ScheduleOverflowError{TaskID: id, Date: newEnd}
		}

		change := DateChange{
			TaskID:       id,
			OldStart:     cloneTime(t.PlannedStart),
			OldEnd:       cloneTime(t.PlannedEnd),
			NewStart:     datePtr(newStart),
			NewEnd:       datePtr(newEnd),
			DurationDays: dur,
		}
		w := t.Clone()
		change.Apply(w)
		working[id] = w
		changes = append(changes, change)
	}
	return changes, nil
}

// startLowerBound 汇总所有入边约束,返回后置任务开始日期的下界
// 结束日期约束按工期折算为开始日期约束;没有任何可用约束时 ok 为 false
func startLowerBound(incoming []*Dependency, lookup func(string) *Task, dur int) (lb time.Time, ok bool) {
	raise := func(candidate time.Time) {
		if !ok || candidate.After(lb) {
			lb = candidate
			ok = true
		}
	}
	for _, d := range incoming {
		p := lookup(d.PredecessorID)
		if p == nil {
			continue
		}
		switch d.Type {
		case FinishToStart:
			if p.PlannedEnd != nil {
				raise(AddDays(*p.PlannedEnd, d.LagDays))
			}
		case StartToStart:
			if p.PlannedStart != nil {
				raise(AddDays(*p.PlannedStart, d.LagDays))
			}
		case FinishToFinish:
			if p.PlannedEnd != nil {
				raise(AddDays(*p.PlannedEnd, d.LagDays-dur))
			}
		case StartToFinish:
			if p.PlannedStart != nil {
				raise(AddDays(*p.PlannedStart, d.LagDays-dur))
			}
		}
	}
	return lb, ok
}

// Apply 将变更写入任务
func (c DateChange) Apply(t *Task) {
	t.PlannedStart = cloneTime(c.NewStart)
	t.PlannedEnd = cloneTime(c.NewEnd)
	d := c.DurationDays
	t.DurationDays = &d
}
