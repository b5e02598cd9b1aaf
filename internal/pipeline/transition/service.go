// Package transition implements the core pipeline state machine: validating
// and executing a lead's move between stages, deriving its probability, and
// gating lost-type moves behind the lost-lead workflow.
package transition

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"pipeline_backend/internal/events"
	"pipeline_backend/internal/pipeline/cadence"
	"pipeline_backend/internal/pipeline/domain"
	"pipeline_backend/internal/pipeline/repository"
	"pipeline_backend/platform/apperr"
	"pipeline_backend/platform/logger"
)

// Repository defines the data access interface needed by the transition
// engine. This is a consumer-driven interface - only what transitions need.
type Repository interface {
	repository.LeadReader
	repository.LeadWriter
	repository.TaskWriter
	repository.StageReader
	repository.ActivityLogger
}

// CadenceHook is the slice of the cadence engine the transition engine
// invokes on every stage change.
type CadenceHook interface {
	OnStageChange(ctx context.Context, lead *domain.Lead, newStage domain.Stage, now time.Time) (cadence.StageChangeEffect, error)
}

// Clock returns the current time; injectable for tests.
type Clock func() time.Time

// Service executes pipeline stage transitions.
type Service struct {
	repo     Repository
	cadences CadenceHook
	bands    domain.Bands
	bus      events.Bus
	log      *logger.Logger
	now      Clock
}

// New creates a new transition service.
func New(repo Repository, cadences CadenceHook, bands domain.Bands, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		cadences: cadences,
		bands:    bands,
		bus:      bus,
		log:      log,
		now:      time.Now,
	}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(clock Clock) *Service {
	s.now = clock
	return s
}

// PendingLostConfirmation signals that a lost-type move was requested and the
// caller must complete it through ConfirmLost with a reason. Not a failure.
type PendingLostConfirmation struct {
	LeadID        uuid.UUID `json:"leadId"`
	TargetStageID uuid.UUID `json:"targetStageId"`
}

// MoveOutcome is the result of MoveLead. Exactly one of Lead (committed
// move) or PendingLost (confirmation gate) is meaningful.
type MoveOutcome struct {
	Lead        domain.Lead
	PendingLost *PendingLostConfirmation
	MeetingTask *domain.Task
}

// MoveLead validates and executes a lead's move to the target stage.
//
// A move into a lost-type stage never mutates the lead here: it returns a
// PendingLostConfirmation and the caller completes the move via ConfirmLost.
// A lead may never silently enter a lost stage without a reason.
func (s *Service) MoveLead(ctx context.Context, leadID, targetStageID uuid.UUID, cause domain.TransitionCause) (MoveOutcome, error) {
	lead, err := s.repo.GetLead(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return MoveOutcome{}, apperr.NotFound("lead not found")
		}
		return MoveOutcome{}, err
	}

	catalog, err := s.repo.GetCatalog(ctx)
	if err != nil {
		return MoveOutcome{}, err
	}

	target, ok := catalog.StageByID(targetStageID)
	if !ok {
		return MoveOutcome{}, apperr.NotFound("stage not found")
	}

	if target.Type == domain.StageTypeLost && lead.CurrentStageID != target.ID {
		return MoveOutcome{PendingLost: &PendingLostConfirmation{
			LeadID:        lead.ID,
			TargetStageID: target.ID,
		}}, nil
	}

	return s.execute(ctx, lead, target, catalog, cause, nil, nil)
}

// ConfirmLost completes a gated lost-type move: it requires a non-empty
// reason, stores the optional reactivation date, and always counts as a
// user-caused transition.
func (s *Service) ConfirmLost(ctx context.Context, leadID, targetStageID uuid.UUID, reason string, reactivationDate *time.Time) (domain.Lead, error) {
	if strings.TrimSpace(reason) == "" {
		return domain.Lead{}, apperr.Validation("lost reason is required")
	}

	lead, err := s.repo.GetLead(ctx, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Lead{}, apperr.NotFound("lead not found")
		}
		return domain.Lead{}, err
	}

	catalog, err := s.repo.GetCatalog(ctx)
	if err != nil {
		return domain.Lead{}, err
	}

	target, ok := catalog.StageByID(targetStageID)
	if !ok {
		return domain.Lead{}, apperr.NotFound("stage not found")
	}
	if target.Type != domain.StageTypeLost {
		return domain.Lead{}, apperr.Validation("target stage is not a lost stage")
	}

	outcome, err := s.execute(ctx, lead, target, catalog, domain.CauseUser, &reason, reactivationDate)
	if err != nil {
		return domain.Lead{}, err
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.LeadLost{
			BaseEvent:        events.NewBaseEvent(),
			LeadID:           outcome.Lead.ID,
			StageID:          target.ID,
			Reason:           reason,
			ReactivationDate: reactivationDate,
		})
	}

	return outcome.Lead, nil
}

// execute performs the committed part of a transition: probability scoring,
// the cadence stage-change hook, the scheduling-stage meeting automation,
// persistence, and the audit record.
func (s *Service) execute(ctx context.Context, lead domain.Lead, target domain.Stage, catalog domain.Catalog, cause domain.TransitionCause, lostReason *string, reactivationDate *time.Time) (MoveOutcome, error) {
	now := s.now()
	previous, _ := catalog.StageByID(lead.CurrentStageID)

	effect, err := s.cadences.OnStageChange(ctx, &lead, target, now)
	if err != nil {
		return MoveOutcome{}, err
	}

	var meetingTask *domain.Task
	if target.Type == domain.StageTypeScheduling && previous.Type != domain.StageTypeScheduling {
		// Fixed automation rule: entering a scheduling-type stage always
		// produces one meeting task due immediately.
		task, err := s.repo.CreateTask(ctx, repository.CreateTaskParams{
			LeadID:  lead.ID,
			Title:   fmt.Sprintf("Schedule meeting with %s", lead.Name),
			Type:    domain.TaskTypeMeeting,
			DueDate: now,
		})
		if err != nil {
			return MoveOutcome{}, err
		}
		meetingTask = &task
	}

	fromStageID := lead.CurrentStageID
	lead.CurrentStageID = target.ID
	lead.Probability = s.bands.Score(target, catalog)

	if target.Type == domain.StageTypeLost {
		// Only the confirm path carries a reason. A same-stage move into
		// the lost stage must leave the stored reason and reactivation
		// date untouched.
		if lostReason != nil {
			lead.LostReason = lostReason
			lead.ReactivationDate = reactivationDate
		}
	} else {
		// ReactivationDate is only valid while the lead sits in a
		// lost-type stage.
		lead.ReactivationDate = nil
	}

	updated, err := s.repo.UpdateLead(ctx, lead)
	if err != nil {
		return MoveOutcome{}, err
	}

	if cause == domain.CauseUser && fromStageID != target.ID {
		text := fmt.Sprintf("Moved from %s to %s", previous.Title, target.Title)
		if err := s.repo.AddActivity(ctx, updated.ID, "stage_changed", text); err != nil && s.log != nil {
			s.log.DatabaseError("add activity", err)
		}
	}

	if s.log != nil {
		s.log.StageTransition(updated.ID.String(), previous.Title, target.Title, string(cause))
	}

	s.publishTransitionEvents(ctx, updated, fromStageID, target.ID, cause, effect)

	return MoveOutcome{Lead: updated, MeetingTask: meetingTask}, nil
}

func (s *Service) publishTransitionEvents(ctx context.Context, lead domain.Lead, fromStageID, toStageID uuid.UUID, cause domain.TransitionCause, effect cadence.StageChangeEffect) {
	if s.bus == nil {
		return
	}

	if fromStageID != toStageID {
		s.bus.Publish(ctx, events.StageChanged{
			BaseEvent:   events.NewBaseEvent(),
			LeadID:      lead.ID,
			FromStageID: fromStageID,
			ToStageID:   toStageID,
			Probability: lead.Probability,
			Cause:       string(cause),
		})
	}

	if effect.Retired != nil {
		s.bus.Publish(ctx, events.CadenceRetired{
			BaseEvent:           events.NewBaseEvent(),
			LeadID:              lead.ID,
			CadenceID:           effect.Retired.CadenceID,
			CadenceName:         effect.Retired.CadenceName,
			PendingTasksDeleted: effect.PendingTasksDeleted,
		})
	}

	if effect.Reactivated != nil {
		s.bus.Publish(ctx, events.CadenceReactivated{
			BaseEvent:   events.NewBaseEvent(),
			LeadID:      lead.ID,
			CadenceID:   effect.Reactivated.CadenceID,
			CadenceName: effect.Reactivated.CadenceName,
		})
	}
}
