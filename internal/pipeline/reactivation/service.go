// Package reactivation implements the daily sweep over lost leads whose
// reactivation date has arrived, producing a follow-up task and an in-app
// notification per due lead.
package reactivation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pipeline_backend/internal/events"
	"pipeline_backend/internal/pipeline/domain"
	"pipeline_backend/internal/pipeline/repository"
	"pipeline_backend/platform/config"
	"pipeline_backend/platform/logger"
)

// Repository defines the data access interface needed by the sweep.
type Repository interface {
	repository.ReactivationReader
	repository.ReactivationWriter
}

// Clock returns the current time; injectable for tests.
type Clock func() time.Time

// Service runs the reactivation sweep.
type Service struct {
	repo        Repository
	bus         events.Bus
	log         *logger.Logger
	appBaseURL  string
	parallelism int
	now         Clock
}

// New creates a new reactivation service. The configured parallelism bounds
// how many leads are processed concurrently; values below 1 are treated as 1.
func New(repo Repository, bus events.Bus, log *logger.Logger, cfg config.NotificationConfig) *Service {
	parallelism := cfg.GetSweepParallelism()
	if parallelism < 1 {
		parallelism = 1
	}
	return &Service{
		repo:        repo,
		bus:         bus,
		log:         log,
		appBaseURL:  cfg.GetAppBaseURL(),
		parallelism: parallelism,
		now:         time.Now,
	}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(clock Clock) *Service {
	s.now = clock
	return s
}

// SweepResult summarizes one sweep run.
type SweepResult struct {
	Candidates           int
	TasksCreated         int
	NotificationsCreated int
	Errors               []error
}

// Sweep selects every lead whose reactivation date is on or before today and
// creates its reactivation task and notification. Per-lead failures are
// collected and reported; they never abort the remaining candidates.
//
// The sweep is idempotent: a lead that already has a pending task with the
// reactivation title is skipped, so re-running on the same day creates no
// duplicates.
func (s *Service) Sweep(ctx context.Context) (SweepResult, error) {
	now := s.now()

	leads, err := s.repo.ListReactivationDue(ctx, now)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list reactivation due: %w", err)
	}

	result := SweepResult{Candidates: len(leads)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for _, lead := range leads {
		g.Go(func() error {
			artifacts, err := s.processLead(gctx, lead, now)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("lead %s: %w", lead.ID, err))
				return nil
			}
			if artifacts != nil {
				result.TasksCreated++
				result.NotificationsCreated++
			}
			return nil
		})
	}
	// Workers never return errors; Wait only observes context cancellation.
	if err := g.Wait(); err != nil {
		return result, err
	}

	if s.log != nil {
		s.log.SweepSummary(result.Candidates, result.TasksCreated, result.NotificationsCreated, len(result.Errors))
	}

	return result, nil
}

func (s *Service) processLead(ctx context.Context, lead domain.Lead, now time.Time) (*repository.ReactivationArtifacts, error) {
	// Dueness is a date-only comparison; enforce it here rather than
	// trusting every ListReactivationDue implementation to.
	if lead.ReactivationDate == nil || !domain.OnOrBeforeDay(*lead.ReactivationDate, now) {
		return nil, nil
	}

	artifacts, err := s.repo.CreateReactivationArtifacts(ctx, repository.CreateReactivationParams{
		LeadID:           lead.ID,
		TaskTitle:        domain.ReactivationTaskTitle(lead.Name),
		DueDate:          now,
		NotificationText: fmt.Sprintf("Lead %s is due for reactivation", lead.Name),
		NotificationLink: fmt.Sprintf("%s/recovery/leads/%s", s.appBaseURL, lead.ID),
	})
	if err != nil {
		return nil, err
	}
	if artifacts == nil {
		// Pending reactivation task already exists; nothing to do.
		return nil, nil
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.LeadReactivationDue{
			BaseEvent:      events.NewBaseEvent(),
			LeadID:         lead.ID,
			TaskID:         artifacts.Task.ID,
			NotificationID: artifacts.Notification.ID,
		})
	}

	return artifacts, nil
}
