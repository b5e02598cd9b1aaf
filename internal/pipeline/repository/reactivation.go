package repository

import (
	"context"
	"errors"

	"pipeline_backend/internal/pipeline/domain"

	"github.com/jackc/pgx/v5"
)

// CreateReactivationArtifacts creates the reactivation task and notification
// for one due lead. The lead row is locked for the duration of the
// transaction so a concurrent sweep or transition cannot double-create; the
// pending-task title check is the sweep's only duplicate prevention and runs
// under that lock. Returns nil when a matching pending task already exists.
func (r *Repository) CreateReactivationArtifacts(ctx context.Context, params CreateReactivationParams) (*ReactivationArtifacts, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var leadID = params.LeadID
	if err := tx.QueryRow(ctx, `
		SELECT id FROM leads WHERE id = $1 FOR UPDATE
	`, leadID).Scan(&leadID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM tasks
			WHERE lead_id = $1 AND title = $2 AND status = $3
		)
	`, params.LeadID, params.TaskTitle, domain.TaskStatusPending).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}

	task, err := scanTask(tx.QueryRow(ctx, `
		INSERT INTO tasks (lead_id, title, task_type, due_date, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+taskColumns+`
	`, params.LeadID, params.TaskTitle, domain.TaskTypeTask, params.DueDate, domain.TaskStatusPending))
	if err != nil {
		return nil, err
	}

	notification, err := scanNotification(tx.QueryRow(ctx, `
		INSERT INTO notifications (lead_id, kind, text, link)
		VALUES ($1, $2, $3, $4)
		RETURNING `+notificationColumns+`
	`, params.LeadID, domain.NotificationKindLeadReactivation, params.NotificationText, params.NotificationLink))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &ReactivationArtifacts{Task: task, Notification: notification}, nil
}
