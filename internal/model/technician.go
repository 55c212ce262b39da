package model

import "time"

// Technician принадлежит подсистеме администрирования, здесь только чтение
type Technician struct {
	ID          int64     `json:"id"`
	DisplayName string    `json:"display_name"`
	Skills      []string  `json:"skills"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}
