package model

import (
	"time"

	"github.com/Freeeeeet/fieldsched/internal/apperr"
)

// Interval — полуоткрытый интервал [Start, End)
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (i Interval) Validate() error {
	if i.Start.IsZero() || i.End.IsZero() {
		return apperr.Validation("interval start and end are required")
	}
	if !i.Start.Before(i.End) {
		return apperr.Validation("interval start %s must be before end %s",
			i.Start.Format(time.RFC3339), i.End.Format(time.RFC3339))
	}
	return nil
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Overlaps — пересечение полуоткрытых интервалов, касание границами не считается
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Contains — other целиком лежит внутри i
func (i Interval) Contains(other Interval) bool {
	return !other.Start.Before(i.Start) && !other.End.After(i.End)
}
