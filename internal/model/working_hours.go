package model

import (
	"sort"
	"time"
)

// MinutesPerDay — конец рабочего дня в минутах от полуночи
const MinutesPerDay = 24 * 60

// WorkingHoursRule — недельный шаблон рабочего времени техника
type WorkingHoursRule struct {
	ID           int64     `json:"id"`
	TechnicianID int64     `json:"technician_id"`
	Weekday      int       `json:"weekday"`      // 0 = Sunday, 6 = Saturday
	StartMinute  int       `json:"start_minute"` // минуты от полуночи
	EndMinute    int       `json:"end_minute"`   // 1..1440, больше StartMinute
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// WeeklyCoverage — объединение активных правил по дням недели.
// Неактивные правила игнорируются и ничего не вычитают из покрытия.
type WeeklyCoverage [7][]minuteRange

type minuteRange struct {
	start, end int
}

// NewWeeklyCoverage сливает пересекающиеся и смежные правила одного дня
func NewWeeklyCoverage(rules []WorkingHoursRule) WeeklyCoverage {
	var cov WeeklyCoverage
	for _, r := range rules {
		if !r.IsActive || r.Weekday < 0 || r.Weekday > 6 || r.StartMinute >= r.EndMinute {
			continue
		}
		cov[r.Weekday] = append(cov[r.Weekday], minuteRange{start: r.StartMinute, end: r.EndMinute})
	}

	for day, ranges := range cov {
		if len(ranges) < 2 {
			continue
		}
		sort.Slice(ranges, func(i, j int) bool { return ranges[i].start < ranges[j].start })
		merged := ranges[:1]
		for _, r := range ranges[1:] {
			last := &merged[len(merged)-1]
			if r.start <= last.end {
				if r.end > last.end {
					last.end = r.end
				}
				continue
			}
			merged = append(merged, r)
		}
		cov[day] = merged
	}
	return cov
}

// Empty — у техника нет ни одного активного правила
func (c WeeklyCoverage) Empty() bool {
	for _, ranges := range c {
		if len(ranges) > 0 {
			return false
		}
	}
	return true
}

// Covers проверяет, что [startMinute, endMinute) дня weekday целиком рабочее время
func (c WeeklyCoverage) Covers(weekday time.Weekday, startMinute, endMinute int) bool {
	if endMinute > MinutesPerDay {
		return false
	}
	for _, r := range c[weekday] {
		if r.start <= startMinute && endMinute <= r.end {
			return true
		}
	}
	return false
}
