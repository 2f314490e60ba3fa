package service

import (
	"fmt"

	"github.com/mautops/schedule-gin/internal/repository"
	"github.com/mautops/schedule-gin/internal/scheduling"
)

// CatalogReader 任务目录只读适配器,为读模型解析名称与单位
type CatalogReader interface {
	Views(orgID string, tasks []*scheduling.Task) ([]*TaskView, error)
}

type catalogReader struct {
	repo repository.CatalogRepository
}

// NewCatalogReader 创建目录读取器
func NewCatalogReader(repo repository.CatalogRepository) CatalogReader {
	return &catalogReader{repo: repo}
}

// Views 批量构建任务读模型
func (r *catalogReader) Views(orgID string, tasks []*scheduling.Task) ([]*TaskView, error) {
	kindIDs := make([]string, 0)
	for _, t := range tasks {
		if t.KindID != nil {
			kindIDs = append(kindIDs, *t.KindID)
		}
	}
	kinds, err := r.repo.FindKinds(orgID, unique(kindIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to load task kinds: %w", err)
	}
	kindNames := make(map[string]string, len(kinds))
	kindUnits := make(map[string]string, len(kinds))
	for _, k := range kinds {
		kindNames[k.ID] = k.Name
		if k.DefaultUnitID != nil {
			kindUnits[k.ID] = *k.DefaultUnitID
		}
	}

	unitIDs := make([]string, 0)
	for _, t := range tasks {
		if t.UnitID != nil {
			unitIDs = append(unitIDs, *t.UnitID)
		} else if t.KindID != nil {
			if u, ok := kindUnits[*t.KindID]; ok {
				unitIDs = append(unitIDs, u)
			}
		}
	}
	units, err := r.repo.FindUnits(orgID, unique(unitIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to load units: %w", err)
	}
	unitSymbols := make(map[string]string, len(units))
	for _, u := range units {
		unitSymbols[u.ID] = u.Symbol
	}

	views := make([]*TaskView, 0, len(tasks))
	for _, t := range tasks {
		v := newTaskView(t)
		switch {
		case t.CustomName != nil:
			v.Name = *t.CustomName
		case t.KindID != nil:
			v.Name = kindNames[*t.KindID]
			if v.Name == "" {
				v.Name = *t.KindID
			}
		}
		switch {
		case t.CustomUnit != nil:
			v.Unit = *t.CustomUnit
		case t.UnitID != nil:
			v.Unit = unitSymbols[*t.UnitID]
		case t.KindID != nil:
			v.Unit = unitSymbols[kindUnits[*t.KindID]]
		}
		views = append(views, v)
	}
	return views, nil
}

// newTaskView 构建不含目录信息的读模型
func newTaskView(t *scheduling.Task) *TaskView {
	return &TaskView{
		ID:               t.ID,
		ProjectID:        t.ProjectID,
		KindID:           t.KindID,
		CustomName:       t.CustomName,
		UnitID:           t.UnitID,
		CustomUnit:       t.CustomUnit,
		Quantity:         t.Quantity,
		PlannedStartDate: toDate(t.PlannedStart),
		PlannedEndDate:   toDate(t.PlannedEnd),
		DurationDays:     t.DurationDays,
		DatesPinned:      t.DatesPinned,
		Status:           string(t.Status),
		ProgressPercent:  t.ProgressPercent,
		CostScope:        string(t.CostScope),
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

func unique(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
