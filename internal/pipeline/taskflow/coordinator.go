// Package taskflow coordinates task status changes with the pipeline: when
// the last task of a lead's active cadence completes, the lead advances one
// stage automatically.
package taskflow

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"pipeline_backend/internal/events"
	"pipeline_backend/internal/pipeline/domain"
	"pipeline_backend/internal/pipeline/repository"
	"pipeline_backend/internal/pipeline/transition"
	"pipeline_backend/platform/apperr"
	"pipeline_backend/platform/logger"
)

// Repository defines the data access interface needed by the coordinator.
type Repository interface {
	repository.LeadReader
	repository.TaskReader
	repository.TaskWriter
	repository.StageReader
}

// Mover executes an automatic stage transition. Implemented by the
// transition service.
type Mover interface {
	MoveLead(ctx context.Context, leadID, targetStageID uuid.UUID, cause domain.TransitionCause) (transition.MoveOutcome, error)
}

// Coordinator applies task status changes and triggers cadence-completion
// auto-advance.
type Coordinator struct {
	repo  Repository
	mover Mover
	bus   events.Bus
	log   *logger.Logger
}

// New creates a new task-status coordinator.
func New(repo Repository, mover Mover, bus events.Bus, log *logger.Logger) *Coordinator {
	return &Coordinator{repo: repo, mover: mover, bus: bus, log: log}
}

// AutoAdvance describes the automatic transition that followed a task
// completion, when one occurred.
type AutoAdvance struct {
	LeadID        uuid.UUID
	TargetStageID uuid.UUID
}

// SetTaskStatus updates a task's status. Completing a task checks whether it
// was the final open task of the lead's active cadence; if so the lead
// advances to the next catalog stage as an automation-caused move.
//
// Cadence completion depends only on the set of completed tasks, never on
// the order they were completed in.
func (c *Coordinator) SetTaskStatus(ctx context.Context, taskID uuid.UUID, status domain.TaskStatus) (domain.Task, *AutoAdvance, error) {
	if !status.Known() {
		return domain.Task{}, nil, apperr.Validation("unknown task status")
	}

	task, err := c.repo.SetTaskStatus(ctx, taskID, status)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return domain.Task{}, nil, apperr.NotFound("task not found")
		}
		return domain.Task{}, nil, err
	}

	if status != domain.TaskStatusCompleted || task.CadenceID == nil {
		return task, nil, nil
	}

	advance, err := c.maybeAdvance(ctx, task)
	if err != nil {
		// The status change itself committed; surface the advance
		// failure without undoing it.
		return task, nil, err
	}
	return task, advance, nil
}

func (c *Coordinator) maybeAdvance(ctx context.Context, task domain.Task) (*AutoAdvance, error) {
	lead, err := c.repo.GetLead(ctx, task.LeadID)
	if err != nil {
		return nil, err
	}

	// Only tasks belonging to the currently active cadence count.
	// Completing leftovers of a retired cadence changes nothing.
	if lead.ActiveCadence == nil || lead.ActiveCadence.CadenceID != *task.CadenceID {
		return nil, nil
	}

	tasks, err := c.repo.ListCadenceTasks(ctx, lead.ID, *task.CadenceID)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if t.Status != domain.TaskStatusCompleted {
			return nil, nil
		}
	}

	catalog, err := c.repo.GetCatalog(ctx)
	if err != nil {
		return nil, err
	}
	next, ok := catalog.Next(lead.CurrentStageID)
	if !ok {
		// Already at the final stage; completion is a no-op advance.
		return nil, nil
	}

	outcome, err := c.mover.MoveLead(ctx, lead.ID, next.ID, domain.CauseAutomation)
	if err != nil {
		return nil, err
	}
	if outcome.PendingLost != nil {
		// The next stage is lost-type, so the move stopped at the
		// confirmation gate and committed nothing. Automation never
		// marks a lead lost on its own.
		return nil, nil
	}

	if c.bus != nil {
		c.bus.Publish(ctx, events.CadenceStepsCompleted{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			CadenceID: *task.CadenceID,
		})
	}

	if c.log != nil {
		c.log.Info("cadence completed, lead auto-advanced",
			"lead_id", lead.ID.String(),
			"cadence_id", task.CadenceID.String(),
			"target_stage_id", next.ID.String(),
		)
	}

	return &AutoAdvance{LeadID: lead.ID, TargetStageID: next.ID}, nil
}
