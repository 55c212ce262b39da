package model

import "time"

type TimeOffStatus string

const (
	TimeOffStatusPending  TimeOffStatus = "pending"
	TimeOffStatusApproved TimeOffStatus = "approved"
	TimeOffStatusRejected TimeOffStatus = "rejected"
)

// TimeOff — отпуск или блокировка. TechnicianID == nil означает глобальную блокировку
type TimeOff struct {
	ID           int64         `json:"id"`
	TechnicianID *int64        `json:"technician_id"`
	StartAt      time.Time     `json:"start_datetime"`
	EndAt        time.Time     `json:"end_datetime"`
	Status       TimeOffStatus `json:"status"`
	Reason       string        `json:"reason,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

func (t *TimeOff) Interval() Interval {
	return Interval{Start: t.StartAt, End: t.EndAt}
}

func (t *TimeOff) IsGlobal() bool {
	return t.TechnicianID == nil
}
