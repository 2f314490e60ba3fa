package scheduling

import "time"

// DatePatch 对开始日期、结束日期、工期三元组的修改
// *Set 为 true 表示该字段出现在请求中,此时 nil 表示清空
type DatePatch struct {
	StartSet    bool
	Start       *time.Time
	EndSet      bool
	End         *time.Time
	DurationSet bool
	Duration    *int
}

// Touched 是否修改了任一日期字段
func (p DatePatch) Touched() bool {
	return p.StartSet || p.EndSet || p.DurationSet
}

// SetsDate 是否显式设置了非空的开始或结束日期
func (p DatePatch) SetsDate() bool {
	return (p.StartSet && p.Start != nil) || (p.EndSet && p.End != nil)
}

// ApplyDates 应用日期修改并维护三元组一致性: 任意两项已知时推导第三项
// 返回三元组是否发生变化;出错时 t 保持不变
func ApplyDates(t *Task, p DatePatch) (bool, error) {
	start := cloneTime(t.PlannedStart)
	end := cloneTime(t.PlannedEnd)
	var dur *int
	if t.DurationDays != nil {
		d := *t.DurationDays
		dur = &d
	}

	if p.StartSet {
		start = normalizedPtr(p.Start)
	}
	if p.EndSet {
		end = normalizedPtr(p.End)
	}
	if p.DurationSet {
		if p.Duration != nil {
			if *p.Duration < 0 || *p.Duration > MaxSpanDays {
				return false, &ValidationError{Field: "duration_days", Message: "must be between 0 and 36500"}
			}
			d := *p.Duration
			dur = &d
		} else {
			dur = nil
		}
	}
	for _, c := range []struct {
		field string
		val   *time.Time
	}{{"planned_start_date", start}, {"planned_end_date", end}} {
		if c.val != nil && !InRange(*c.val) {
			return false, &ValidationError{Field: c.field, Message: "date is outside the supported range"}
		}
	}

	switch {
	case p.EndSet && p.DurationSet && start != nil && end != nil && dur != nil:
		// 三项同时给出时必须自洽
		if !AddDays(*start, *dur).Equal(*end) {
			return false, &ValidationError{Field: "duration_days", Message: "does not match planned start and end dates"}
		}
	case start != nil && dur != nil && (!p.EndSet || end == nil):
		e := AddDays(*start, *dur)
		end = &e
	case start != nil && end != nil:
		if end.Before(*start) {
			return false, &ValidationError{Field: "planned_end_date", Message: "must not be before planned start date"}
		}
		d := DaysBetween(*start, *end)
		dur = &d
	case end != nil && dur != nil:
		s := AddDays(*end, -*dur)
		start = &s
	}

	if start != nil && !InRange(*start) {
		return false, &ValidationError{Field: "planned_start_date", Message: "date is outside the supported range"}
	}
	if end != nil && !InRange(*end) {
		return false, &ValidationError{Field: "planned_end_date", Message: "date is outside the supported range"}
	}
	if dur != nil && *dur > MaxSpanDays {
		return false, &ValidationError{Field: "duration_days", Message: "must be between 0 and 36500"}
	}

	changed := !sameDate(start, t.PlannedStart) || !sameDate(end, t.PlannedEnd) || !sameInt(dur, t.DurationDays)
	t.PlannedStart = start
	t.PlannedEnd = end
	t.DurationDays = dur
	return changed, nil
}

func normalizedPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	return datePtr(NormalizeDate(*t))
}

func sameInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
