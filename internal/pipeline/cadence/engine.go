// Package cadence implements the playbook engine: attaching multi-step
// outreach cadences to leads, generating their tasks, retiring cadences when
// a lead leaves their stage set, and reactivating the most recently retired
// cadence when the lead returns.
package cadence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pipeline_backend/internal/events"
	"pipeline_backend/internal/pipeline/domain"
	"pipeline_backend/internal/pipeline/repository"
	"pipeline_backend/platform/apperr"
	"pipeline_backend/platform/logger"

	"github.com/google/uuid"
)

// Repository defines the data access interface needed by the cadence engine.
// This is a consumer-driven interface - only what the engine needs.
type Repository interface {
	repository.LeadReader
	repository.LeadWriter
	repository.TaskWriter
	repository.CadenceReader
}

// Engine manages cadence lifecycle on leads.
type Engine struct {
	repo Repository
	bus  events.Bus
	log  *logger.Logger
}

// New creates a new cadence engine.
func New(repo Repository, bus events.Bus, log *logger.Logger) *Engine {
	return &Engine{repo: repo, bus: bus, log: log}
}

// StageChangeEffect describes what OnStageChange did to the lead, so the
// caller can publish events after the lead is persisted.
type StageChangeEffect struct {
	Retired             *domain.CadenceHistoryEntry
	Reactivated         *domain.CadenceRef
	PendingTasksDeleted int
}

// OnStageChange applies the retirement/reactivation rules against the target
// stage, mutating the lead in memory. Evaluated exactly once per transition;
// the caller persists the lead afterwards.
//
// If the lead's active cadence does not cover the target stage, the cadence
// is retired: a history entry is appended, the active reference cleared, and
// its still-pending tasks deleted. Otherwise, if the lead has no active
// cadence and the most recent history entry covers the target stage, that
// cadence is reactivated - restored from the entry's snapshot (StartedAt
// preserved) and popped from history.
func (e *Engine) OnStageChange(ctx context.Context, lead *domain.Lead, newStage domain.Stage, now time.Time) (StageChangeEffect, error) {
	if lead.ActiveCadence != nil {
		active, err := e.repo.GetCadence(ctx, lead.ActiveCadence.CadenceID)
		if err != nil {
			if errors.Is(err, repository.ErrCadenceNotFound) {
				// Configuration was deleted out from under the lead.
				// Treat every stage as outside the cadence's set.
				return e.retire(ctx, lead, now)
			}
			return StageChangeEffect{}, err
		}
		if !active.ContainsStage(newStage.ID) {
			return e.retire(ctx, lead, now)
		}
		return StageChangeEffect{}, nil
	}

	last, ok := lead.LastRetiredCadence()
	if !ok {
		return StageChangeEffect{}, nil
	}

	retired, err := e.repo.GetCadence(ctx, last.CadenceID)
	if err != nil {
		if errors.Is(err, repository.ErrCadenceNotFound) {
			return StageChangeEffect{}, nil
		}
		return StageChangeEffect{}, err
	}
	if !retired.ContainsStage(newStage.ID) {
		return StageChangeEffect{}, nil
	}

	entry, _ := lead.PopRetiredCadence()
	lead.ActiveCadence = &domain.CadenceRef{
		CadenceID:   entry.CadenceID,
		CadenceName: entry.CadenceName,
		StartedAt:   entry.StartedAt,
	}

	return StageChangeEffect{Reactivated: lead.ActiveCadence}, nil
}

func (e *Engine) retire(ctx context.Context, lead *domain.Lead, now time.Time) (StageChangeEffect, error) {
	deleted, err := e.repo.DeletePendingCadenceTasks(ctx, lead.ID, lead.ActiveCadence.CadenceID)
	if err != nil {
		return StageChangeEffect{}, err
	}

	if e.log != nil {
		e.log.Debug("cadence retired", "leadId", lead.ID, "cadenceId", lead.ActiveCadence.CadenceID, "pendingDeleted", deleted)
	}

	entry := domain.CadenceHistoryEntry{
		CadenceID:   lead.ActiveCadence.CadenceID,
		CadenceName: lead.ActiveCadence.CadenceName,
		StartedAt:   lead.ActiveCadence.StartedAt,
		CompletedAt: now,
	}
	lead.CadenceHistory = append(lead.CadenceHistory, entry)
	lead.ActiveCadence = nil

	return StageChangeEffect{Retired: &entry, PendingTasksDeleted: deleted}, nil
}

// Apply attaches a cadence to a lead and generates one task per step, due at
// now + the step's day offset. If the lead already has an active cadence it
// is retired into history first and its pending tasks cancelled, never
// silently replaced, which would orphan the old cadence's tasks.
func (e *Engine) Apply(ctx context.Context, leadID, cadenceID uuid.UUID, now time.Time) (domain.Lead, []domain.Task, error) {
	lead, err := e.repo.GetLead(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Lead{}, nil, apperr.NotFound("lead not found")
		}
		return domain.Lead{}, nil, err
	}

	cad, err := e.repo.GetCadence(ctx, cadenceID)
	if err != nil {
		if errors.Is(err, repository.ErrCadenceNotFound) {
			return domain.Lead{}, nil, apperr.NotFound("cadence not found")
		}
		return domain.Lead{}, nil, err
	}

	var replaced StageChangeEffect
	if lead.ActiveCadence != nil {
		replaced, err = e.retire(ctx, &lead, now)
		if err != nil {
			return domain.Lead{}, nil, err
		}
	}

	tasks := make([]domain.Task, 0, len(cad.Steps))
	for i, step := range cad.Steps {
		stepIndex := i
		cadID := cad.ID
		task, err := e.repo.CreateTask(ctx, repository.CreateTaskParams{
			LeadID:           lead.ID,
			Title:            stepTitle(cad, i),
			Type:             step.TaskType,
			DueDate:          now.AddDate(0, 0, step.DayOffset),
			CadenceID:        &cadID,
			CadenceStepIndex: &stepIndex,
		})
		if err != nil {
			return domain.Lead{}, nil, err
		}
		tasks = append(tasks, task)
	}

	lead.ActiveCadence = &domain.CadenceRef{
		CadenceID:   cad.ID,
		CadenceName: cad.Name,
		StartedAt:   now,
	}

	updated, err := e.repo.UpdateLead(ctx, lead)
	if err != nil {
		return domain.Lead{}, nil, err
	}

	if replaced.Retired != nil && e.bus != nil {
		e.bus.Publish(ctx, events.CadenceRetired{
			BaseEvent:           events.NewBaseEvent(),
			LeadID:              updated.ID,
			CadenceID:           replaced.Retired.CadenceID,
			CadenceName:         replaced.Retired.CadenceName,
			PendingTasksDeleted: replaced.PendingTasksDeleted,
		})
	}
	if e.bus != nil {
		e.bus.Publish(ctx, events.CadenceApplied{
			BaseEvent:    events.NewBaseEvent(),
			LeadID:       updated.ID,
			CadenceID:    cad.ID,
			CadenceName:  cad.Name,
			TasksCreated: len(tasks),
		})
	}

	return updated, tasks, nil
}

// Deactivate abandons the lead's active cadence: pending tasks are deleted
// and the active reference cleared without recording a history entry.
// Distinct from automatic retirement, which does record history. A lead with
// no active cadence is a no-op.
func (e *Engine) Deactivate(ctx context.Context, leadID uuid.UUID) (domain.Lead, error) {
	lead, err := e.repo.GetLead(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Lead{}, apperr.NotFound("lead not found")
		}
		return domain.Lead{}, err
	}

	if lead.ActiveCadence == nil {
		return lead, nil
	}

	cadenceID := lead.ActiveCadence.CadenceID
	deleted, err := e.repo.DeletePendingCadenceTasks(ctx, lead.ID, cadenceID)
	if err != nil {
		return domain.Lead{}, err
	}

	lead.ActiveCadence = nil
	updated, err := e.repo.UpdateLead(ctx, lead)
	if err != nil {
		return domain.Lead{}, err
	}

	if e.bus != nil {
		e.bus.Publish(ctx, events.CadenceDeactivated{
			BaseEvent:           events.NewBaseEvent(),
			LeadID:              updated.ID,
			CadenceID:           cadenceID,
			PendingTasksDeleted: deleted,
		})
	}

	return updated, nil
}

func stepTitle(cad domain.Cadence, index int) string {
	step := cad.Steps[index]
	if step.Instructions != "" {
		return step.Instructions
	}
	return fmt.Sprintf("%s: step %d", cad.Name, index+1)
}
