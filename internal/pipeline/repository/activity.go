package repository

import (
	"context"
	"errors"

	"pipeline_backend/internal/pipeline/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AddActivity appends an audit record describing a lead transition. The
// engine constructs the record; formatting and display belong to the
// surrounding application.
func (r *Repository) AddActivity(ctx context.Context, leadID uuid.UUID, kind, text string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO lead_activities (lead_id, kind, text)
		VALUES ($1, $2, $3)
	`, leadID, kind, text)
	return err
}

const notificationColumns = `id, lead_id, kind, text, link, is_read, created_at`

func scanNotification(row pgx.Row) (domain.Notification, error) {
	var n domain.Notification
	err := row.Scan(&n.ID, &n.LeadID, &n.Kind, &n.Text, &n.Link, &n.IsRead, &n.CreatedAt)
	return n, err
}

// ListNotifications returns notification records, newest first.
func (r *Repository) ListNotifications(ctx context.Context, unreadOnly bool) ([]domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications`
	if unreadOnly {
		query += ` WHERE is_read = false`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}

	return items, rows.Err()
}

// MarkNotificationRead flags a notification as read.
func (r *Repository) MarkNotificationRead(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications SET is_read = true WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New("notification not found")
	}
	return nil
}
