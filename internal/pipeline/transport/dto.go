// Package transport defines the request and response DTOs of the pipeline
// HTTP API. Keeping them here decouples the wire format from domain types.
package transport

import (
	"time"

	"github.com/google/uuid"

	"pipeline_backend/internal/pipeline/domain"
)

// MoveLeadRequest asks to move a lead to a target stage.
type MoveLeadRequest struct {
	TargetStageID uuid.UUID `json:"targetStageId" validate:"required"`
}

// ConfirmLostRequest completes a gated move into a lost-type stage.
type ConfirmLostRequest struct {
	TargetStageID    uuid.UUID  `json:"targetStageId" validate:"required"`
	Reason           string     `json:"reason" validate:"required"`
	ReactivationDate *time.Time `json:"reactivationDate,omitempty"`
}

// ApplyCadenceRequest attaches a cadence to a lead.
type ApplyCadenceRequest struct {
	CadenceID uuid.UUID `json:"cadenceId" validate:"required"`
}

// SetTaskStatusRequest updates a task's completion state.
type SetTaskStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending completed"`
}

// LeadResponse is the wire representation of a lead.
type LeadResponse struct {
	ID               uuid.UUID                    `json:"id"`
	Name             string                       `json:"name"`
	CurrentStageID   uuid.UUID                    `json:"currentStageId"`
	Probability      int                          `json:"probability"`
	LostReason       *string                      `json:"lostReason,omitempty"`
	ReactivationDate *time.Time                   `json:"reactivationDate,omitempty"`
	ActiveCadence    *domain.CadenceRef           `json:"activeCadence,omitempty"`
	CadenceHistory   []domain.CadenceHistoryEntry `json:"cadenceHistory,omitempty"`
	UpdatedAt        time.Time                    `json:"updatedAt"`
}

// NewLeadResponse maps a domain lead to its wire form.
func NewLeadResponse(lead domain.Lead) LeadResponse {
	return LeadResponse{
		ID:               lead.ID,
		Name:             lead.Name,
		CurrentStageID:   lead.CurrentStageID,
		Probability:      lead.Probability,
		LostReason:       lead.LostReason,
		ReactivationDate: lead.ReactivationDate,
		ActiveCadence:    lead.ActiveCadence,
		CadenceHistory:   lead.CadenceHistory,
		UpdatedAt:        lead.UpdatedAt,
	}
}

// TaskResponse is the wire representation of a task.
type TaskResponse struct {
	ID               uuid.UUID  `json:"id"`
	LeadID           uuid.UUID  `json:"leadId"`
	Title            string     `json:"title"`
	Type             string     `json:"type"`
	DueDate          time.Time  `json:"dueDate"`
	Status           string     `json:"status"`
	CadenceID        *uuid.UUID `json:"cadenceId,omitempty"`
	CadenceStepIndex *int       `json:"cadenceStepIndex,omitempty"`
}

// NewTaskResponse maps a domain task to its wire form.
func NewTaskResponse(task domain.Task) TaskResponse {
	return TaskResponse{
		ID:               task.ID,
		LeadID:           task.LeadID,
		Title:            task.Title,
		Type:             string(task.Type),
		DueDate:          task.DueDate,
		Status:           string(task.Status),
		CadenceID:        task.CadenceID,
		CadenceStepIndex: task.CadenceStepIndex,
	}
}

// MoveLeadResponse reports the outcome of a move request. When the target is
// a lost-type stage the move does not commit; PendingLostConfirmation is set
// and the lead is unchanged.
type MoveLeadResponse struct {
	Lead                    *LeadResponse            `json:"lead,omitempty"`
	MeetingTask             *TaskResponse            `json:"meetingTask,omitempty"`
	PendingLostConfirmation *PendingLostConfirmation `json:"pendingLostConfirmation,omitempty"`
}

// PendingLostConfirmation tells the client to collect a reason and call the
// lost endpoint.
type PendingLostConfirmation struct {
	LeadID        uuid.UUID `json:"leadId"`
	TargetStageID uuid.UUID `json:"targetStageId"`
}

// ApplyCadenceResponse reports the updated lead and the tasks the cadence
// generated.
type ApplyCadenceResponse struct {
	Lead  LeadResponse   `json:"lead"`
	Tasks []TaskResponse `json:"tasks"`
}

// SetTaskStatusResponse reports the updated task plus the automatic stage
// advance, when the completion finished the lead's active cadence.
type SetTaskStatusResponse struct {
	Task        TaskResponse `json:"task"`
	AutoAdvance *AutoAdvance `json:"autoAdvance,omitempty"`
}

// AutoAdvance describes the automation-caused move that followed a task
// completion.
type AutoAdvance struct {
	LeadID        uuid.UUID `json:"leadId"`
	TargetStageID uuid.UUID `json:"targetStageId"`
}

// StageResponse is the wire representation of a catalog stage.
type StageResponse struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	Type     string    `json:"type"`
	Position int       `json:"position"`
}

// NewStageResponse maps a domain stage to its wire form.
func NewStageResponse(stage domain.Stage) StageResponse {
	return StageResponse{
		ID:       stage.ID,
		Title:    stage.Title,
		Type:     string(stage.Type),
		Position: stage.Position,
	}
}

// NotificationResponse is the wire representation of a notification.
type NotificationResponse struct {
	ID        uuid.UUID `json:"id"`
	LeadID    uuid.UUID `json:"leadId"`
	Kind      string    `json:"kind"`
	Text      string    `json:"text"`
	Link      string    `json:"link"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewNotificationResponse maps a domain notification to its wire form.
func NewNotificationResponse(n domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		LeadID:    n.LeadID,
		Kind:      string(n.Kind),
		Text:      n.Text,
		Link:      n.Link,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

// SweepEnqueuedResponse acknowledges a sweep handed to the job queue.
type SweepEnqueuedResponse struct {
	Enqueued bool `json:"enqueued"`
}

// SweepResponse summarizes a manually triggered reactivation sweep.
type SweepResponse struct {
	Candidates           int      `json:"candidates"`
	TasksCreated         int      `json:"tasksCreated"`
	NotificationsCreated int      `json:"notificationsCreated"`
	Errors               []string `json:"errors,omitempty"`
}
