package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/izin-asrama-api/internal/models"
)

// ResidentRepository reads the resident roster.
type ResidentRepository struct {
	db *sqlx.DB
}

// NewResidentRepository constructs a ResidentRepository.
func NewResidentRepository(db *sqlx.DB) *ResidentRepository {
	return &ResidentRepository{db: db}
}

// GetByID returns a resident by identifier.
func (r *ResidentRepository) GetByID(ctx context.Context, id string) (*models.Resident, error) {
	const query = `SELECT id, full_name, guardian_id, room, active FROM residents WHERE id = $1`
	var resident models.Resident
	if err := r.db.GetContext(ctx, &resident, query, id); err != nil {
		return nil, err
	}
	return &resident, nil
}

// List returns residents matching the filter ordered by room then name.
func (r *ResidentRepository) List(ctx context.Context, filter models.ResidentFilter) ([]models.Resident, error) {
	args := []interface{}{}
	conditions := []string{"1=1"}

	if len(filter.IDs) > 0 {
		args = append(args, pq.Array(filter.IDs))
		conditions = append(conditions, fmt.Sprintf("id = ANY($%d)", len(args)))
	}
	if filter.Room != "" {
		args = append(args, filter.Room)
		conditions = append(conditions, fmt.Sprintf("room = $%d", len(args)))
	}
	if filter.GuardianID != "" {
		args = append(args, filter.GuardianID)
		conditions = append(conditions, fmt.Sprintf("guardian_id = $%d", len(args)))
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "active = TRUE")
	}

	query := fmt.Sprintf(`SELECT id, full_name, guardian_id, room, active FROM residents WHERE %s ORDER BY room ASC, full_name ASC`,
		strings.Join(conditions, " AND "))
	var residents []models.Resident
	if err := r.db.SelectContext(ctx, &residents, query, args...); err != nil {
		return nil, fmt.Errorf("list residents: %w", err)
	}
	return residents, nil
}
