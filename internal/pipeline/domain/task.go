package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskType classifies a task for display and filtering.
type TaskType string

const (
	TaskTypeTask    TaskType = "task"
	TaskTypeCall    TaskType = "call"
	TaskTypeEmail   TaskType = "email"
	TaskTypeMeeting TaskType = "meeting"
)

// TaskStatus is the completion state of a task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
)

// Known reports whether s is a recognized task status.
func (s TaskStatus) Known() bool {
	return s == TaskStatusPending || s == TaskStatusCompleted
}

// Task is a unit of work attached to a lead. Cadence-generated tasks carry
// the owning cadence id and their zero-based step index; manual and
// reactivation tasks carry neither.
type Task struct {
	ID               uuid.UUID
	LeadID           uuid.UUID
	Title            string
	Type             TaskType
	DueDate          time.Time
	Status           TaskStatus
	CadenceID        *uuid.UUID
	CadenceStepIndex *int
	CreatedAt        time.Time
}

// ReactivationTaskTitle builds the title of the task the reactivation sweep
// creates for a lead. The sweep's duplicate prevention is title-based, so
// this format must stay stable across releases.
func ReactivationTaskTitle(leadName string) string {
	return fmt.Sprintf("Reactivate lead: %s", leadName)
}
