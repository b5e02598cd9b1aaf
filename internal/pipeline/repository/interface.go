package repository

import (
	"context"
	"time"

	"pipeline_backend/internal/pipeline/domain"

	"github.com/google/uuid"
)

// The engine's services declare their data needs through these focused
// interfaces and compose them per consumer. The pgx Repository implements
// all of them; tests substitute in-memory fakes.

// LeadReader provides read access to leads.
type LeadReader interface {
	GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error)
}

// LeadWriter persists lead mutations. UpdateLead performs an optimistic
// version check; a stale write returns a conflict error with no changes
// applied.
type LeadWriter interface {
	UpdateLead(ctx context.Context, lead domain.Lead) (domain.Lead, error)
}

// ReactivationReader selects leads whose reactivation date has arrived.
type ReactivationReader interface {
	// ListReactivationDue returns leads with a reactivation date on or
	// before now's calendar date (time of day ignored).
	ListReactivationDue(ctx context.Context, now time.Time) ([]domain.Lead, error)
}

// TaskReader provides read access to tasks.
type TaskReader interface {
	GetTask(ctx context.Context, id uuid.UUID) (domain.Task, error)
	ListCadenceTasks(ctx context.Context, leadID, cadenceID uuid.UUID) ([]domain.Task, error)
}

// TaskWriter creates and mutates tasks.
type TaskWriter interface {
	CreateTask(ctx context.Context, params CreateTaskParams) (domain.Task, error)
	SetTaskStatus(ctx context.Context, id uuid.UUID, status domain.TaskStatus) (domain.Task, error)
	// DeletePendingCadenceTasks removes the still-pending tasks of a
	// cadence on a lead. Completed tasks are left untouched as history.
	DeletePendingCadenceTasks(ctx context.Context, leadID, cadenceID uuid.UUID) (int, error)
}

// StageReader loads the stage catalog (read-mostly configuration).
type StageReader interface {
	GetCatalog(ctx context.Context) (domain.Catalog, error)
}

// CadenceReader loads cadence definitions (read-mostly configuration).
type CadenceReader interface {
	GetCadence(ctx context.Context, id uuid.UUID) (domain.Cadence, error)
}

// ActivityLogger appends audit records describing lead transitions.
type ActivityLogger interface {
	AddActivity(ctx context.Context, leadID uuid.UUID, kind, text string) error
}

// NotificationStore manages in-app notification records.
type NotificationStore interface {
	ListNotifications(ctx context.Context, unreadOnly bool) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, id uuid.UUID) error
}

// ReactivationWriter executes the sweep's check-then-create step for one
// lead. The lead row is locked for the duration so concurrent sweeps or
// transitions cannot double-create.
type ReactivationWriter interface {
	// CreateReactivationArtifacts creates the reactivation task and
	// notification for a lead, unless a pending task with the given title
	// already exists. Returns nil when skipped.
	CreateReactivationArtifacts(ctx context.Context, params CreateReactivationParams) (*ReactivationArtifacts, error)
}

// CreateTaskParams describes a task to create.
type CreateTaskParams struct {
	LeadID           uuid.UUID
	Title            string
	Type             domain.TaskType
	DueDate          time.Time
	CadenceID        *uuid.UUID
	CadenceStepIndex *int
}

// CreateReactivationParams describes the artifacts of one due reactivation.
type CreateReactivationParams struct {
	LeadID           uuid.UUID
	TaskTitle        string
	DueDate          time.Time
	NotificationText string
	NotificationLink string
}

// ReactivationArtifacts holds the records created for one due reactivation.
type ReactivationArtifacts struct {
	Task         domain.Task
	Notification domain.Notification
}
