package repository

import (
	"context"
	"errors"

	"pipeline_backend/internal/pipeline/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const taskColumns = `id, lead_id, title, task_type, due_date, status, cadence_id, cadence_step_index, created_at`

func scanTask(row pgx.Row) (domain.Task, error) {
	var t domain.Task
	err := row.Scan(
		&t.ID, &t.LeadID, &t.Title, &t.Type, &t.DueDate, &t.Status,
		&t.CadenceID, &t.CadenceStepIndex, &t.CreatedAt,
	)
	return t, err
}

func (r *Repository) GetTask(ctx context.Context, id uuid.UUID) (domain.Task, error) {
	task, err := scanTask(r.pool.QueryRow(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Task{}, ErrTaskNotFound
	}
	if err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

func (r *Repository) CreateTask(ctx context.Context, params CreateTaskParams) (domain.Task, error) {
	task, err := scanTask(r.pool.QueryRow(ctx, `
		INSERT INTO tasks (lead_id, title, task_type, due_date, status, cadence_id, cadence_step_index)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+taskColumns+`
	`, params.LeadID, params.Title, params.Type, params.DueDate, domain.TaskStatusPending,
		params.CadenceID, params.CadenceStepIndex))
	if err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

func (r *Repository) SetTaskStatus(ctx context.Context, id uuid.UUID, status domain.TaskStatus) (domain.Task, error) {
	task, err := scanTask(r.pool.QueryRow(ctx, `
		UPDATE tasks SET status = $1 WHERE id = $2
		RETURNING `+taskColumns+`
	`, status, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Task{}, ErrTaskNotFound
	}
	if err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// ListCadenceTasks returns all tasks (any status) belonging to one cadence
// run on one lead, ordered by step index.
func (r *Repository) ListCadenceTasks(ctx context.Context, leadID, cadenceID uuid.UUID) ([]domain.Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE lead_id = $1 AND cadence_id = $2
		ORDER BY cadence_step_index ASC NULLS LAST, created_at ASC
	`, leadID, cadenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// DeletePendingCadenceTasks removes the still-pending tasks of a cadence on
// a lead. Completed tasks remain as history.
func (r *Repository) DeletePendingCadenceTasks(ctx context.Context, leadID, cadenceID uuid.UUID) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM tasks
		WHERE lead_id = $1 AND cadence_id = $2 AND status = $3
	`, leadID, cadenceID, domain.TaskStatusPending)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
