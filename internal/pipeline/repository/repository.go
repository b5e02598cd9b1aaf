package repository

import (
	"context"
	"errors"
	"time"

	"pipeline_backend/internal/pipeline/domain"
	"pipeline_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound      = errors.New("lead not found")
	ErrTaskNotFound  = errors.New("task not found")
	ErrStageNotFound = errors.New("stage not found")
)

// Repository is the pgx-backed implementation of the pipeline stores.
type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `id, name, current_stage_id, probability, lost_reason, reactivation_date,
	active_cadence_id, active_cadence_name, active_cadence_started_at,
	version, created_at, updated_at`

type leadRow struct {
	lead                   domain.Lead
	activeCadenceID        *uuid.UUID
	activeCadenceName      *string
	activeCadenceStartedAt *time.Time
}

func scanLead(row pgx.Row) (domain.Lead, error) {
	var r leadRow
	err := row.Scan(
		&r.lead.ID, &r.lead.Name, &r.lead.CurrentStageID, &r.lead.Probability,
		&r.lead.LostReason, &r.lead.ReactivationDate,
		&r.activeCadenceID, &r.activeCadenceName, &r.activeCadenceStartedAt,
		&r.lead.Version, &r.lead.CreatedAt, &r.lead.UpdatedAt,
	)
	if err != nil {
		return domain.Lead{}, err
	}

	if r.activeCadenceID != nil && r.activeCadenceName != nil && r.activeCadenceStartedAt != nil {
		r.lead.ActiveCadence = &domain.CadenceRef{
			CadenceID:   *r.activeCadenceID,
			CadenceName: *r.activeCadenceName,
			StartedAt:   *r.activeCadenceStartedAt,
		}
	}

	return r.lead, nil
}

func (r *Repository) GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	if err != nil {
		return domain.Lead{}, err
	}

	history, err := r.listCadenceHistory(ctx, id)
	if err != nil {
		return domain.Lead{}, err
	}
	lead.CadenceHistory = history

	return lead, nil
}

// UpdateLead writes the lead back with an optimistic version check and
// reconciles the cadence history rows against the in-memory slice.
// A stale version yields a conflict with no changes applied.
func (r *Repository) UpdateLead(ctx context.Context, lead domain.Lead) (domain.Lead, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Lead{}, err
	}
	defer tx.Rollback(ctx)

	var cadenceID *uuid.UUID
	var cadenceName *string
	var cadenceStartedAt *time.Time
	if lead.ActiveCadence != nil {
		cadenceID = &lead.ActiveCadence.CadenceID
		cadenceName = &lead.ActiveCadence.CadenceName
		cadenceStartedAt = &lead.ActiveCadence.StartedAt
	}

	updated, err := scanLead(tx.QueryRow(ctx, `
		UPDATE leads SET
			current_stage_id = $1, probability = $2, lost_reason = $3, reactivation_date = $4,
			active_cadence_id = $5, active_cadence_name = $6, active_cadence_started_at = $7,
			version = version + 1, updated_at = now()
		WHERE id = $8 AND version = $9
		RETURNING `+leadColumns+`
	`,
		lead.CurrentStageID, lead.Probability, lead.LostReason, lead.ReactivationDate,
		cadenceID, cadenceName, cadenceStartedAt,
		lead.ID, lead.Version,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the lead is gone or another writer got there first.
		var exists bool
		if checkErr := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM leads WHERE id = $1)`, lead.ID).Scan(&exists); checkErr != nil {
			return domain.Lead{}, checkErr
		}
		if !exists {
			return domain.Lead{}, ErrNotFound
		}
		return domain.Lead{}, apperr.Conflict("lead was modified concurrently")
	}
	if err != nil {
		return domain.Lead{}, err
	}

	if err := r.replaceCadenceHistory(ctx, tx, lead.ID, lead.CadenceHistory); err != nil {
		return domain.Lead{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Lead{}, err
	}

	updated.CadenceHistory = lead.CadenceHistory
	return updated, nil
}

func (r *Repository) listCadenceHistory(ctx context.Context, leadID uuid.UUID) ([]domain.CadenceHistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT cadence_id, cadence_name, started_at, completed_at
		FROM lead_cadence_history
		WHERE lead_id = $1
		ORDER BY completed_at ASC, created_at ASC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []domain.CadenceHistoryEntry
	for rows.Next() {
		var entry domain.CadenceHistoryEntry
		if err := rows.Scan(&entry.CadenceID, &entry.CadenceName, &entry.StartedAt, &entry.CompletedAt); err != nil {
			return nil, err
		}
		history = append(history, entry)
	}

	return history, rows.Err()
}

// replaceCadenceHistory reconciles storage with the lead's in-memory history.
// Retirement appends at most one entry and reactivation pops at most one, so
// a full rewrite per update stays small and keeps the append-only log exact.
func (r *Repository) replaceCadenceHistory(ctx context.Context, tx pgx.Tx, leadID uuid.UUID, history []domain.CadenceHistoryEntry) error {
	if _, err := tx.Exec(ctx, `DELETE FROM lead_cadence_history WHERE lead_id = $1`, leadID); err != nil {
		return err
	}

	for _, entry := range history {
		_, err := tx.Exec(ctx, `
			INSERT INTO lead_cadence_history (lead_id, cadence_id, cadence_name, started_at, completed_at)
			VALUES ($1, $2, $3, $4, $5)
		`, leadID, entry.CadenceID, entry.CadenceName, entry.StartedAt, entry.CompletedAt)
		if err != nil {
			return err
		}
	}

	return nil
}

// ListReactivationDue selects leads whose reactivation date has arrived,
// compared date-only.
func (r *Repository) ListReactivationDue(ctx context.Context, now time.Time) ([]domain.Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE reactivation_date IS NOT NULL
		  AND reactivation_date::date <= $1::date
		ORDER BY reactivation_date ASC
	`, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []domain.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}

	return leads, rows.Err()
}
