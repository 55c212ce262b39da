package repository

import (
	"context"

	"github.com/Freeeeeet/fieldsched/internal/apperr"
	"github.com/Freeeeeet/fieldsched/internal/model"
	"github.com/Freeeeeet/fieldsched/internal/repository/base"
)

type TechnicianRepository struct {
	db base.DBTX
}

func NewTechnicianRepository(db base.DBTX) *TechnicianRepository {
	return &TechnicianRepository{db: db}
}

// GetByID получает техника по ID
func (r *TechnicianRepository) GetByID(ctx context.Context, id int64) (*model.Technician, error) {
	query := `
		SELECT id, display_name, skills, is_active, created_at
		FROM technicians
		WHERE id = $1
	`

	var tech model.Technician
	err := r.db.QueryRow(ctx, query, id).Scan(
		&tech.ID,
		&tech.DisplayName,
		&tech.Skills,
		&tech.IsActive,
		&tech.CreatedAt,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, apperr.NotFound("technician %d not found", id)
		}
		return nil, base.Classify(err, "get technician by id")
	}

	return &tech, nil
}
