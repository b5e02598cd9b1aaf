// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"pipeline_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Pipeline Domain Events
// =============================================================================

// StageChanged is published when a lead's pipeline stage transition commits.
type StageChanged struct {
	BaseEvent
	LeadID      uuid.UUID `json:"leadId"`
	FromStageID uuid.UUID `json:"fromStageId"`
	ToStageID   uuid.UUID `json:"toStageId"`
	Probability int       `json:"probability"`
	Cause       string    `json:"cause"`
}

func (e StageChanged) EventName() string { return "pipeline.stage.changed" }

// LeadLost is published when a lost-type move completes through the
// lost-lead workflow.
type LeadLost struct {
	BaseEvent
	LeadID           uuid.UUID  `json:"leadId"`
	StageID          uuid.UUID  `json:"stageId"`
	Reason           string     `json:"reason"`
	ReactivationDate *time.Time `json:"reactivationDate,omitempty"`
}

func (e LeadLost) EventName() string { return "pipeline.lead.lost" }

// CadenceApplied is published when a cadence is attached to a lead and its
// tasks are generated.
type CadenceApplied struct {
	BaseEvent
	LeadID       uuid.UUID `json:"leadId"`
	CadenceID    uuid.UUID `json:"cadenceId"`
	CadenceName  string    `json:"cadenceName"`
	TasksCreated int       `json:"tasksCreated"`
}

func (e CadenceApplied) EventName() string { return "pipeline.cadence.applied" }

// CadenceRetired is published when a stage change moves a lead outside its
// active cadence's stage set and the cadence is retired into history.
type CadenceRetired struct {
	BaseEvent
	LeadID              uuid.UUID `json:"leadId"`
	CadenceID           uuid.UUID `json:"cadenceId"`
	CadenceName         string    `json:"cadenceName"`
	PendingTasksDeleted int       `json:"pendingTasksDeleted"`
}

func (e CadenceRetired) EventName() string { return "pipeline.cadence.retired" }

// CadenceReactivated is published when a lead re-enters the stage set of its
// most recently retired cadence and that cadence is restored from history.
type CadenceReactivated struct {
	BaseEvent
	LeadID      uuid.UUID `json:"leadId"`
	CadenceID   uuid.UUID `json:"cadenceId"`
	CadenceName string    `json:"cadenceName"`
}

func (e CadenceReactivated) EventName() string { return "pipeline.cadence.reactivated" }

// CadenceDeactivated is published on manual deactivation. Unlike retirement,
// no history entry is recorded; deactivation is an abandonment.
type CadenceDeactivated struct {
	BaseEvent
	LeadID              uuid.UUID `json:"leadId"`
	CadenceID           uuid.UUID `json:"cadenceId"`
	PendingTasksDeleted int       `json:"pendingTasksDeleted"`
}

func (e CadenceDeactivated) EventName() string { return "pipeline.cadence.deactivated" }

// CadenceStepsCompleted is published when the last task of an active cadence
// is completed, immediately before the automatic advance.
type CadenceStepsCompleted struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	CadenceID uuid.UUID `json:"cadenceId"`
}

func (e CadenceStepsCompleted) EventName() string { return "pipeline.cadence.steps_completed" }

// LeadReactivationDue is published for each lead the reactivation sweep
// produced artifacts for. External dispatchers (email, chat) subscribe to
// this; the engine itself only records the notification.
type LeadReactivationDue struct {
	BaseEvent
	LeadID         uuid.UUID `json:"leadId"`
	TaskID         uuid.UUID `json:"taskId"`
	NotificationID uuid.UUID `json:"notificationId"`
}

func (e LeadReactivationDue) EventName() string { return "pipeline.lead.reactivation_due" }
