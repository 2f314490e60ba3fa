package scheduling

import (
	"container/heap"
	"sort"
)

// Graph 单个项目的依赖图
// 每次调度操作前由已持久化的任务与依赖重建,已软删除的任务及其相关依赖会被过滤
type Graph struct {
	tasks map[string]*Task
	edges map[string]*Dependency
	out   map[string][]*Dependency
	in    map[string][]*Dependency
	pairs map[[2]string]string
}

// NewGraph 构建依赖图
func NewGraph(tasks []*Task, deps []*Dependency) *Graph {
	g := &Graph{
		tasks: make(map[string]*Task, len(tasks)),
		edges: make(map[string]*Dependency, len(deps)),
		out:   make(map[string][]*Dependency),
		in:    make(map[string][]*Dependency),
		pairs: make(map[[2]string]string, len(deps)),
	}
	for _, t := range tasks {
		if t == nil || t.IsDeleted {
			continue
		}
		g.tasks[t.ID] = t
	}
	for _, d := range deps {
		if d == nil {
			continue
		}
		// 端点已删除或不在图中的依赖不生效
		if _, ok := g.tasks[d.PredecessorID]; !ok {
			continue
		}
		if _, ok := g.tasks[d.SuccessorID]; !ok {
			continue
		}
		g.insert(d)
	}
	return g
}

func (g *Graph) insert(d *Dependency) {
	g.edges[d.ID] = d
	g.out[d.PredecessorID] = append(g.out[d.PredecessorID], d)
	g.in[d.SuccessorID] = append(g.in[d.SuccessorID], d)
	g.pairs[[2]string{d.PredecessorID, d.SuccessorID}] = d.ID
}

// Task 返回图中的任务
func (g *Graph) Task(id string) (*Task, bool) {
	t, ok := g.tasks[id]
	return t, ok
}

// Tasks 按创建顺序返回全部任务
func (g *Graph) Tasks() []*Task {
	list := make([]*Task, 0, len(g.tasks))
	for _, t := range g.tasks {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return taskLess(list[i], list[j]) })
	return list
}

// Dependencies 按创建顺序返回全部生效依赖
func (g *Graph) Dependencies() []*Dependency {
	list := make([]*Dependency, 0, len(g.edges))
	for _, d := range g.edges {
		list = append(list, d)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
	return list
}

// Dependency 返回依赖
func (g *Graph) Dependency(id string) (*Dependency, bool) {
	d, ok := g.edges[id]
	return d, ok
}

// Len 任务数
func (g *Graph) Len() int {
	return len(g.tasks)
}

// AddEdge 校验并加入依赖,失败时图保持不变
func (g *Graph) AddEdge(d *Dependency) error {
	if d.PredecessorID == d.SuccessorID {
		return &SelfLoopError{TaskID: d.PredecessorID}
	}
	pred, ok := g.tasks[d.PredecessorID]
	if !ok {
		return &NotFoundError{Resource: ResourceTask, ID: d.PredecessorID}
	}
	succ, ok := g.tasks[d.SuccessorID]
	if !ok {
		return &NotFoundError{Resource: ResourceTask, ID: d.SuccessorID}
	}
	if pred.ProjectID != succ.ProjectID || (d.ProjectID != "" && pred.ProjectID != d.ProjectID) {
		return &CrossProjectError{
			PredecessorID:      pred.ID,
			PredecessorProject: pred.ProjectID,
			SuccessorID:        succ.ID,
			SuccessorProject:   succ.ProjectID,
		}
	}
	if !d.Type.IsValid() {
		return &ValidationError{Field: "type", Message: "unknown dependency type " + string(d.Type)}
	}
	if d.LagDays > MaxSpanDays || d.LagDays < -MaxSpanDays {
		return &ValidationError{Field: "lag_days", Message: "lag is out of range"}
	}
	if existing, ok := g.pairs[[2]string{d.PredecessorID, d.SuccessorID}]; ok {
		return &ValidationError{Field: "successor_task_id", Message: "dependency already exists: " + existing}
	}
	if _, ok := g.edges[d.ID]; ok {
		return &ValidationError{Field: "id", Message: "duplicate dependency id " + d.ID}
	}

	// 新边 pred -> succ 成环当且仅当 succ 可达 pred
	if path := g.pathBetween(d.SuccessorID, d.PredecessorID); path != nil {
		cycle := make([]string, 0, len(path)+1)
		cycle = append(cycle, d.PredecessorID)
		cycle = append(cycle, path...)
		return &CycleError{Path: cycle}
	}

	g.insert(d)
	return nil
}

// RemoveEdge 删除依赖,不存在时返回 false
func (g *Graph) RemoveEdge(id string) bool {
	d, ok := g.edges[id]
	if !ok {
		return false
	}
	delete(g.edges, id)
	delete(g.pairs, [2]string{d.PredecessorID, d.SuccessorID})
	g.out[d.PredecessorID] = without(g.out[d.PredecessorID], id)
	g.in[d.SuccessorID] = without(g.in[d.SuccessorID], id)
	return true
}

// RemoveTask 移除任务及其相关依赖
func (g *Graph) RemoveTask(id string) {
	if _, ok := g.tasks[id]; !ok {
		return
	}
	for _, d := range append(append([]*Dependency{}, g.out[id]...), g.in[id]...) {
		g.RemoveEdge(d.ID)
	}
	delete(g.tasks, id)
	delete(g.out, id)
	delete(g.in, id)
}

// SuccessorsOf 返回以该任务为前置的依赖
func (g *Graph) SuccessorsOf(id string) []*Dependency {
	return append([]*Dependency(nil), g.out[id]...)
}

// PredecessorsOf 返回以该任务为后置的依赖
func (g *Graph) PredecessorsOf(id string) []*Dependency {
	return append([]*Dependency(nil), g.in[id]...)
}

// Reachable 返回从锚点出发沿出边可达的任务集合(含锚点本身)
func (g *Graph) Reachable(anchors ...string) map[string]bool {
	seen := make(map[string]bool)
	stack := make([]string, 0, len(anchors))
	for _, a := range anchors {
		if _, ok := g.tasks[a]; ok && !seen[a] {
			seen[a] = true
			stack = append(stack, a)
		}
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, d := range g.out[n] {
			if !seen[d.SuccessorID] {
				seen[d.SuccessorID] = true
				stack = append(stack, d.SuccessorID)
			}
		}
	}
	return seen
}

// TopologicalOrder 拓扑排序,入度为 0 的任务按创建时间先后输出
func (g *Graph) TopologicalOrder() ([]string, error) {
	indeg := make(map[string]int, len(g.tasks))
	for id := range g.tasks {
		indeg[id] = len(g.in[id])
	}

	ready := &taskHeap{}
	for id, n := range indeg {
		if n == 0 {
			heap.Push(ready, g.tasks[id])
		}
	}

	order := make([]string, 0, len(g.tasks))
	for ready.Len() > 0 {
		t := heap.Pop(ready).(*Task)
		order = append(order, t.ID)
		for _, d := range g.out[t.ID] {
			indeg[d.SuccessorID]--
			if indeg[d.SuccessorID] == 0 {
				heap.Push(ready, g.tasks[d.SuccessorID])
			}
		}
	}

	if len(order) != len(g.tasks) {
		return nil, &CycleError{Path: g.findCycle(indeg)}
	}
	return order, nil
}

// pathBetween 迭代 DFS 查找 from 到 to 的路径,不可达时返回 nil
func (g *Graph) pathBetween(from, to string) []string {
	parent := map[string]string{from: ""}
	stack := []string{from}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == to {
			var path []string
			for cur := to; cur != ""; cur = parent[cur] {
				path = append(path, cur)
			}
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			return path
		}
		for _, d := range g.out[n] {
			if _, seen := parent[d.SuccessorID]; !seen {
				parent[d.SuccessorID] = n
				stack = append(stack, d.SuccessorID)
			}
		}
	}
	return nil
}

// findCycle 在 Kahn 算法剩余的节点中用三色 DFS 找出一个环
func (g *Graph) findCycle(indeg map[string]int) []string {
	const (
		white = iota
		gray
		black
	)

	remaining := make([]string, 0)
	for id, n := range indeg {
		if n > 0 {
			remaining = append(remaining, id)
		}
	}
	sort.Strings(remaining)

	color := make(map[string]int)
	parent := make(map[string]string)

	var dfs func(node string) []string
	dfs = func(node string) []string {
		color[node] = gray
		for _, d := range g.out[node] {
			next := d.SuccessorID
			if color[next] == gray {
				cycle := []string{next}
				for cur := node; cur != next; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, next)
				for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
					cycle[i], cycle[j] = cycle[j], cycle[i]
				}
				return cycle
			}
			if color[next] == white {
				parent[next] = node
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
		}
		color[node] = black
		return nil
	}

	for _, id := range remaining {
		if color[id] == white {
			if cycle := dfs(id); cycle != nil {
				return cycle
			}
		}
	}
	return remaining
}

func without(list []*Dependency, id string) []*Dependency {
	out := list[:0]
	for _, d := range list {
		if d.ID != id {
			out = append(out, d)
		}
	}
	return out
}

func taskLess(a, b *Task) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// taskHeap 按 (created_at, id) 排序的最小堆
type taskHeap []*Task

func (h taskHeap) Len() int           { return len(h) }
func (h taskHeap) Less(i, j int) bool { return taskLess(h[i], h[j]) }
func (h taskHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(*Task)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	*h = old[:n-1]
	return t
}
