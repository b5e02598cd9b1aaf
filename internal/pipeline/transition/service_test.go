package transition

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"pipeline_backend/internal/pipeline/cadence"
	"pipeline_backend/internal/pipeline/domain"
	"pipeline_backend/internal/pipeline/repository"
	"pipeline_backend/platform/apperr"
)

type activityRecord struct {
	leadID uuid.UUID
	kind   string
	text   string
}

type fakeRepo struct {
	leads      map[uuid.UUID]domain.Lead
	catalog    domain.Catalog
	tasks      []domain.Task
	activities []activityRecord
}

func newFakeRepo(stages ...domain.Stage) *fakeRepo {
	return &fakeRepo{
		leads:   make(map[uuid.UUID]domain.Lead),
		catalog: domain.NewCatalog(stages),
	}
}

func (f *fakeRepo) GetLead(_ context.Context, id uuid.UUID) (domain.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func (f *fakeRepo) UpdateLead(_ context.Context, lead domain.Lead) (domain.Lead, error) {
	current, ok := f.leads[lead.ID]
	if !ok {
		return domain.Lead{}, repository.ErrNotFound
	}
	if current.Version != lead.Version {
		return domain.Lead{}, apperr.Conflict("lead was modified concurrently")
	}
	lead.Version++
	f.leads[lead.ID] = lead
	return lead, nil
}

func (f *fakeRepo) GetCatalog(_ context.Context) (domain.Catalog, error) {
	return f.catalog, nil
}

func (f *fakeRepo) CreateTask(_ context.Context, params repository.CreateTaskParams) (domain.Task, error) {
	task := domain.Task{
		ID:      uuid.New(),
		LeadID:  params.LeadID,
		Title:   params.Title,
		Type:    params.Type,
		DueDate: params.DueDate,
		Status:  domain.TaskStatusPending,
	}
	f.tasks = append(f.tasks, task)
	return task, nil
}

func (f *fakeRepo) SetTaskStatus(_ context.Context, id uuid.UUID, status domain.TaskStatus) (domain.Task, error) {
	return domain.Task{}, repository.ErrTaskNotFound
}

func (f *fakeRepo) DeletePendingCadenceTasks(_ context.Context, _, _ uuid.UUID) (int, error) {
	return 0, nil
}

func (f *fakeRepo) AddActivity(_ context.Context, leadID uuid.UUID, kind, text string) error {
	f.activities = append(f.activities, activityRecord{leadID: leadID, kind: kind, text: text})
	return nil
}

// noopHook satisfies CadenceHook without cadence behavior; cadence interplay
// has its own tests.
type noopHook struct{}

func (noopHook) OnStageChange(_ context.Context, _ *domain.Lead, _ domain.Stage, _ time.Time) (cadence.StageChangeEffect, error) {
	return cadence.StageChangeEffect{}, nil
}

type stageSet struct {
	open, followUp, scheduling, won, lost domain.Stage
}

func pipelineStages() stageSet {
	return stageSet{
		open:       domain.Stage{ID: uuid.New(), Title: "New", Type: domain.StageTypeOpen, Position: 0},
		followUp:   domain.Stage{ID: uuid.New(), Title: "Follow Up", Type: domain.StageTypeFollowUp, Position: 1},
		scheduling: domain.Stage{ID: uuid.New(), Title: "Meeting Scheduling", Type: domain.StageTypeScheduling, Position: 2},
		won:        domain.Stage{ID: uuid.New(), Title: "Won", Type: domain.StageTypeWon, Position: 3},
		lost:       domain.Stage{ID: uuid.New(), Title: "Lost", Type: domain.StageTypeLost, Position: 4},
	}
}

func (s stageSet) all() []domain.Stage {
	return []domain.Stage{s.open, s.followUp, s.scheduling, s.won, s.lost}
}

func newService(repo *fakeRepo) *Service {
	return New(repo, noopHook{}, domain.DefaultBands(), nil, nil)
}

func seedLead(repo *fakeRepo, stageID uuid.UUID) domain.Lead {
	lead := domain.Lead{ID: uuid.New(), Name: "Jansen Dakwerken", CurrentStageID: stageID, Probability: 10, Version: 1}
	repo.leads[lead.ID] = lead
	return lead
}

func TestMoveLeadUpdatesStageAndProbability(t *testing.T) {
	ss := pipelineStages()
	repo := newFakeRepo(ss.all()...)
	lead := seedLead(repo, ss.open.ID)
	svc := newService(repo)

	outcome, err := svc.MoveLead(context.Background(), lead.ID, ss.followUp.ID, domain.CauseUser)
	if err != nil {
		t.Fatalf("MoveLead: %v", err)
	}

	if outcome.PendingLost != nil {
		t.Fatal("unexpected pending-lost signal")
	}
	if outcome.Lead.CurrentStageID != ss.followUp.ID {
		t.Errorf("stage = %v, want follow-up", outcome.Lead.CurrentStageID)
	}
	// Single follow_up stage scores its band's single value.
	if outcome.Lead.Probability != 60 {
		t.Errorf("probability = %d, want 60", outcome.Lead.Probability)
	}
	if repo.leads[lead.ID].CurrentStageID != ss.followUp.ID {
		t.Error("move not persisted")
	}
}

func TestMoveLeadRecordsActivityForUserCauseOnly(t *testing.T) {
	ss := pipelineStages()

	cases := []struct {
		name           string
		cause          domain.TransitionCause
		wantActivities int
	}{
		{"user cause", domain.CauseUser, 1},
		{"automation cause", domain.CauseAutomation, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newFakeRepo(ss.all()...)
			lead := seedLead(repo, ss.open.ID)
			svc := newService(repo)

			if _, err := svc.MoveLead(context.Background(), lead.ID, ss.followUp.ID, tc.cause); err != nil {
				t.Fatalf("MoveLead: %v", err)
			}
			if len(repo.activities) != tc.wantActivities {
				t.Errorf("recorded %d activities, want %d", len(repo.activities), tc.wantActivities)
			}
		})
	}
}

func TestMoveLeadToSameStageSkipsActivity(t *testing.T) {
	ss := pipelineStages()
	repo := newFakeRepo(ss.all()...)
	lead := seedLead(repo, ss.open.ID)
	svc := newService(repo)

	if _, err := svc.MoveLead(context.Background(), lead.ID, ss.open.ID, domain.CauseUser); err != nil {
		t.Fatalf("MoveLead: %v", err)
	}
	if len(repo.activities) != 0 {
		t.Error("same-stage move recorded an audit entry")
	}
}

func TestMoveLeadLostGateReturnsPendingWithoutMutation(t *testing.T) {
	ss := pipelineStages()
	repo := newFakeRepo(ss.all()...)
	lead := seedLead(repo, ss.open.ID)
	svc := newService(repo)

	outcome, err := svc.MoveLead(context.Background(), lead.ID, ss.lost.ID, domain.CauseUser)
	if err != nil {
		t.Fatalf("MoveLead: %v", err)
	}

	if outcome.PendingLost == nil {
		t.Fatal("expected pending-lost confirmation")
	}
	if outcome.PendingLost.LeadID != lead.ID || outcome.PendingLost.TargetStageID != ss.lost.ID {
		t.Errorf("pending-lost = %+v", outcome.PendingLost)
	}

	stored := repo.leads[lead.ID]
	if stored.CurrentStageID != ss.open.ID || stored.Version != lead.Version {
		t.Error("lost-gated move mutated the lead")
	}
	if len(repo.activities) != 0 || len(repo.tasks) != 0 {
		t.Error("lost-gated move produced side effects")
	}
}

func TestMoveLeadCreatesMeetingTaskOnEnteringScheduling(t *testing.T) {
	ss := pipelineStages()
	repo := newFakeRepo(ss.all()...)
	lead := seedLead(repo, ss.followUp.ID)
	svc := newService(repo)

	outcome, err := svc.MoveLead(context.Background(), lead.ID, ss.scheduling.ID, domain.CauseUser)
	if err != nil {
		t.Fatalf("MoveLead: %v", err)
	}

	if outcome.MeetingTask == nil {
		t.Fatal("expected a meeting task")
	}
	if outcome.MeetingTask.Type != domain.TaskTypeMeeting {
		t.Errorf("task type = %q, want meeting", outcome.MeetingTask.Type)
	}
	if !strings.Contains(outcome.MeetingTask.Title, lead.Name) {
		t.Errorf("task title %q does not mention the lead", outcome.MeetingTask.Title)
	}
}

func TestMoveLeadNoMeetingTaskWhenAlreadyScheduling(t *testing.T) {
	ss := pipelineStages()
	scheduling2 := domain.Stage{ID: uuid.New(), Title: "Rescheduling", Type: domain.StageTypeScheduling, Position: 5}
	repo := newFakeRepo(append(ss.all(), scheduling2)...)
	lead := seedLead(repo, ss.scheduling.ID)
	svc := newService(repo)

	outcome, err := svc.MoveLead(context.Background(), lead.ID, scheduling2.ID, domain.CauseUser)
	if err != nil {
		t.Fatalf("MoveLead: %v", err)
	}
	if outcome.MeetingTask != nil {
		t.Error("meeting task created for scheduling-to-scheduling move")
	}
}

func TestMoveLeadClearsReactivationDateOutsideLost(t *testing.T) {
	ss := pipelineStages()
	repo := newFakeRepo(ss.all()...)
	lead := seedLead(repo, ss.lost.ID)
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	reason := "budget"
	lead.LostReason = &reason
	lead.ReactivationDate = &date
	repo.leads[lead.ID] = lead
	svc := newService(repo)

	outcome, err := svc.MoveLead(context.Background(), lead.ID, ss.open.ID, domain.CauseUser)
	if err != nil {
		t.Fatalf("MoveLead: %v", err)
	}
	if outcome.Lead.ReactivationDate != nil {
		t.Error("reactivation date survived a move out of the lost stage")
	}
}

func TestMoveLeadToCurrentLostStageKeepsReasonAndDate(t *testing.T) {
	ss := pipelineStages()
	repo := newFakeRepo(ss.all()...)
	lead := seedLead(repo, ss.lost.ID)
	date := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	reason := "budget"
	lead.LostReason = &reason
	lead.ReactivationDate = &date
	repo.leads[lead.ID] = lead
	svc := newService(repo)

	// Already in the lost stage, so the move bypasses the confirmation
	// gate. It must not touch the stored reason or the scheduled
	// reactivation.
	outcome, err := svc.MoveLead(context.Background(), lead.ID, ss.lost.ID, domain.CauseUser)
	if err != nil {
		t.Fatalf("MoveLead: %v", err)
	}
	if outcome.PendingLost != nil {
		t.Fatal("same-stage lost move hit the confirmation gate")
	}

	stored := repo.leads[lead.ID]
	if stored.LostReason == nil || *stored.LostReason != "budget" {
		t.Errorf("lost reason = %v, want budget", stored.LostReason)
	}
	if stored.ReactivationDate == nil || !stored.ReactivationDate.Equal(date) {
		t.Errorf("reactivation date = %v, want %v", stored.ReactivationDate, date)
	}
}

func TestMoveLeadUnknownLeadOrStage(t *testing.T) {
	ss := pipelineStages()
	repo := newFakeRepo(ss.all()...)
	lead := seedLead(repo, ss.open.ID)
	svc := newService(repo)

	if _, err := svc.MoveLead(context.Background(), uuid.New(), ss.open.ID, domain.CauseUser); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("unknown lead error = %v, want not-found", err)
	}
	if _, err := svc.MoveLead(context.Background(), lead.ID, uuid.New(), domain.CauseUser); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("unknown stage error = %v, want not-found", err)
	}
}

func TestConfirmLostRequiresReason(t *testing.T) {
	ss := pipelineStages()
	repo := newFakeRepo(ss.all()...)
	lead := seedLead(repo, ss.open.ID)
	svc := newService(repo)

	for _, reason := range []string{"", "   ", "\t"} {
		if _, err := svc.ConfirmLost(context.Background(), lead.ID, ss.lost.ID, reason, nil); !apperr.Is(err, apperr.KindValidation) {
			t.Errorf("reason %q: error = %v, want validation", reason, err)
		}
	}
	if repo.leads[lead.ID].CurrentStageID != ss.open.ID {
		t.Error("rejected confirmation mutated the lead")
	}
}

func TestConfirmLostCommitsMove(t *testing.T) {
	ss := pipelineStages()
	repo := newFakeRepo(ss.all()...)
	lead := seedLead(repo, ss.followUp.ID)
	svc := newService(repo)

	date := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	updated, err := svc.ConfirmLost(context.Background(), lead.ID, ss.lost.ID, "chose competitor", &date)
	if err != nil {
		t.Fatalf("ConfirmLost: %v", err)
	}

	if updated.CurrentStageID != ss.lost.ID {
		t.Errorf("stage = %v, want lost", updated.CurrentStageID)
	}
	if updated.Probability != 0 {
		t.Errorf("probability = %d, want 0", updated.Probability)
	}
	if updated.LostReason == nil || *updated.LostReason != "chose competitor" {
		t.Errorf("lost reason = %v", updated.LostReason)
	}
	if updated.ReactivationDate == nil || !updated.ReactivationDate.Equal(date) {
		t.Errorf("reactivation date = %v, want %v", updated.ReactivationDate, date)
	}
	if len(repo.activities) != 1 {
		t.Errorf("recorded %d activities, want 1", len(repo.activities))
	}
}

func TestConfirmLostRejectsNonLostTarget(t *testing.T) {
	ss := pipelineStages()
	repo := newFakeRepo(ss.all()...)
	lead := seedLead(repo, ss.open.ID)
	svc := newService(repo)

	if _, err := svc.ConfirmLost(context.Background(), lead.ID, ss.won.ID, "nope", nil); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("error = %v, want validation", err)
	}
}
