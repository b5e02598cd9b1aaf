package repository

import (
	"context"
	"errors"

	"pipeline_backend/internal/pipeline/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrCadenceNotFound = errors.New("cadence not found")

// GetCatalog loads the full ordered stage catalog. Stage configuration is
// read-mostly; every engine operation reads it fresh rather than caching.
func (r *Repository) GetCatalog(ctx context.Context) (domain.Catalog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, title, stage_type, position
		FROM stages
		ORDER BY position ASC
	`)
	if err != nil {
		return domain.Catalog{}, err
	}
	defer rows.Close()

	var stages []domain.Stage
	for rows.Next() {
		var s domain.Stage
		if err := rows.Scan(&s.ID, &s.Title, &s.Type, &s.Position); err != nil {
			return domain.Catalog{}, err
		}
		stages = append(stages, s)
	}
	if rows.Err() != nil {
		return domain.Catalog{}, rows.Err()
	}

	return domain.NewCatalog(stages), nil
}

// GetCadence loads a cadence definition with its ordered steps.
func (r *Repository) GetCadence(ctx context.Context, id uuid.UUID) (domain.Cadence, error) {
	var cadence domain.Cadence
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, stage_ids FROM cadences WHERE id = $1
	`, id).Scan(&cadence.ID, &cadence.Name, &cadence.StageIDs)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Cadence{}, ErrCadenceNotFound
	}
	if err != nil {
		return domain.Cadence{}, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT day_offset, task_type, instructions
		FROM cadence_steps
		WHERE cadence_id = $1
		ORDER BY step_index ASC
	`, id)
	if err != nil {
		return domain.Cadence{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var step domain.CadenceStep
		if err := rows.Scan(&step.DayOffset, &step.TaskType, &step.Instructions); err != nil {
			return domain.Cadence{}, err
		}
		cadence.Steps = append(cadence.Steps, step)
	}

	return cadence, rows.Err()
}
