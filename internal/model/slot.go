package model

import "time"

type SlotReason string

const (
	SlotReasonBooked     SlotReason = "booked"
	SlotReasonTimeOff    SlotReason = "time_off"
	SlotReasonOutOfHours SlotReason = "out_of_hours"
)

// Slot — вычисляемый интервал доступности, в базе не хранится
type Slot struct {
	Start     time.Time  `json:"start"`
	End       time.Time  `json:"end"`
	Available bool       `json:"available"`
	Reason    SlotReason `json:"reason,omitempty"`
}
