package taskflow

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"pipeline_backend/internal/events"
	"pipeline_backend/internal/pipeline/domain"
	"pipeline_backend/internal/pipeline/repository"
	"pipeline_backend/internal/pipeline/transition"
	"pipeline_backend/platform/apperr"
)

type fakeRepo struct {
	leads   map[uuid.UUID]domain.Lead
	tasks   map[uuid.UUID]domain.Task
	catalog domain.Catalog
}

func newFakeRepo(stages ...domain.Stage) *fakeRepo {
	return &fakeRepo{
		leads:   make(map[uuid.UUID]domain.Lead),
		tasks:   make(map[uuid.UUID]domain.Task),
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

func (f *fakeRepo) GetTask(_ context.Context, id uuid.UUID) (domain.Task, error) {
	task, ok := f.tasks[id]
	if !ok {
		return domain.Task{}, repository.ErrTaskNotFound
	}
	return task, nil
}

func (f *fakeRepo) ListCadenceTasks(_ context.Context, leadID, cadenceID uuid.UUID) ([]domain.Task, error) {
	var out []domain.Task
	for _, t := range f.tasks {
		if t.LeadID == leadID && t.CadenceID != nil && *t.CadenceID == cadenceID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateTask(_ context.Context, params repository.CreateTaskParams) (domain.Task, error) {
	task := domain.Task{ID: uuid.New(), LeadID: params.LeadID, Title: params.Title, Type: params.Type, DueDate: params.DueDate, Status: domain.TaskStatusPending}
	f.tasks[task.ID] = task
	return task, nil
}

func (f *fakeRepo) SetTaskStatus(_ context.Context, id uuid.UUID, status domain.TaskStatus) (domain.Task, error) {
	task, ok := f.tasks[id]
	if !ok {
		return domain.Task{}, repository.ErrTaskNotFound
	}
	task.Status = status
	f.tasks[id] = task
	return task, nil
}

func (f *fakeRepo) DeletePendingCadenceTasks(_ context.Context, _, _ uuid.UUID) (int, error) {
	return 0, nil
}

func (f *fakeRepo) GetCatalog(_ context.Context) (domain.Catalog, error) {
	return f.catalog, nil
}

type moveCall struct {
	leadID  uuid.UUID
	stageID uuid.UUID
	cause   domain.TransitionCause
}

type fakeMover struct {
	calls   []moveCall
	outcome transition.MoveOutcome
}

func (m *fakeMover) MoveLead(_ context.Context, leadID, targetStageID uuid.UUID, cause domain.TransitionCause) (transition.MoveOutcome, error) {
	m.calls = append(m.calls, moveCall{leadID: leadID, stageID: targetStageID, cause: cause})
	return m.outcome, nil
}

type recordingBus struct {
	published []events.Event
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.published = append(b.published, e)
}

func (b *recordingBus) PublishSync(_ context.Context, e events.Event) error {
	b.published = append(b.published, e)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

type fixture struct {
	repo      *fakeRepo
	mover     *fakeMover
	coord     *Coordinator
	lead      domain.Lead
	cadenceID uuid.UUID
	nextStage domain.Stage
	tasks     []domain.Task
}

// setup creates a lead in the first of two stages with an active cadence and
// the given number of pending cadence tasks.
func setup(taskCount int) *fixture {
	current := domain.Stage{ID: uuid.New(), Title: "Follow Up", Type: domain.StageTypeFollowUp, Position: 0}
	next := domain.Stage{ID: uuid.New(), Title: "Scheduling", Type: domain.StageTypeScheduling, Position: 1}
	repo := newFakeRepo(current, next)

	cadenceID := uuid.New()
	lead := domain.Lead{
		ID:             uuid.New(),
		Name:           "Bakker Zonwering",
		CurrentStageID: current.ID,
		ActiveCadence:  &domain.CadenceRef{CadenceID: cadenceID, CadenceName: "Outreach", StartedAt: time.Now()},
		Version:        1,
	}
	repo.leads[lead.ID] = lead

	var tasks []domain.Task
	for i := 0; i < taskCount; i++ {
		idx := i
		cadID := cadenceID
		task := domain.Task{
			ID: uuid.New(), LeadID: lead.ID, Title: "step", Type: domain.TaskTypeCall,
			Status: domain.TaskStatusPending, CadenceID: &cadID, CadenceStepIndex: &idx,
		}
		repo.tasks[task.ID] = task
		tasks = append(tasks, task)
	}

	mover := &fakeMover{}
	return &fixture{
		repo:      repo,
		mover:     mover,
		coord:     New(repo, mover, nil, nil),
		lead:      lead,
		cadenceID: cadenceID,
		nextStage: next,
		tasks:     tasks,
	}
}

func TestSetTaskStatusUnknownTask(t *testing.T) {
	fx := setup(0)
	if _, _, err := fx.coord.SetTaskStatus(context.Background(), uuid.New(), domain.TaskStatusCompleted); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("error = %v, want not-found", err)
	}
}

func TestSetTaskStatusRejectsUnknownStatus(t *testing.T) {
	fx := setup(1)
	if _, _, err := fx.coord.SetTaskStatus(context.Background(), fx.tasks[0].ID, domain.TaskStatus("archived")); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("error = %v, want validation", err)
	}
}

func TestCompletingNonFinalTaskDoesNotAdvance(t *testing.T) {
	fx := setup(3)

	task, advance, err := fx.coord.SetTaskStatus(context.Background(), fx.tasks[0].ID, domain.TaskStatusCompleted)
	if err != nil {
		t.Fatalf("SetTaskStatus: %v", err)
	}
	if task.Status != domain.TaskStatusCompleted {
		t.Errorf("task status = %q", task.Status)
	}
	if advance != nil {
		t.Error("advanced with cadence tasks still pending")
	}
	if len(fx.mover.calls) != 0 {
		t.Error("mover invoked prematurely")
	}
}

func TestCompletingFinalTaskAdvancesLead(t *testing.T) {
	fx := setup(3)
	ctx := context.Background()

	for _, task := range fx.tasks[:2] {
		if _, _, err := fx.coord.SetTaskStatus(ctx, task.ID, domain.TaskStatusCompleted); err != nil {
			t.Fatalf("SetTaskStatus: %v", err)
		}
	}

	_, advance, err := fx.coord.SetTaskStatus(ctx, fx.tasks[2].ID, domain.TaskStatusCompleted)
	if err != nil {
		t.Fatalf("SetTaskStatus: %v", err)
	}

	if advance == nil {
		t.Fatal("expected auto-advance after final task")
	}
	if advance.LeadID != fx.lead.ID || advance.TargetStageID != fx.nextStage.ID {
		t.Errorf("advance = %+v", advance)
	}
	if len(fx.mover.calls) != 1 {
		t.Fatalf("mover called %d times, want 1", len(fx.mover.calls))
	}
	if fx.mover.calls[0].cause != domain.CauseAutomation {
		t.Errorf("move cause = %q, want automation", fx.mover.calls[0].cause)
	}
}

func TestCompletionOrderDoesNotMatter(t *testing.T) {
	fx := setup(3)
	ctx := context.Background()

	// Complete in reverse step order; only the set matters.
	order := []int{2, 0, 1}
	for i, idx := range order {
		_, advance, err := fx.coord.SetTaskStatus(ctx, fx.tasks[idx].ID, domain.TaskStatusCompleted)
		if err != nil {
			t.Fatalf("SetTaskStatus: %v", err)
		}
		last := i == len(order)-1
		if last && advance == nil {
			t.Error("no advance after the set completed")
		}
		if !last && advance != nil {
			t.Error("advanced before the set completed")
		}
	}
}

func TestReopeningATaskDoesNotAdvance(t *testing.T) {
	fx := setup(1)
	ctx := context.Background()

	if _, _, err := fx.coord.SetTaskStatus(ctx, fx.tasks[0].ID, domain.TaskStatusCompleted); err != nil {
		t.Fatalf("SetTaskStatus: %v", err)
	}

	_, advance, err := fx.coord.SetTaskStatus(ctx, fx.tasks[0].ID, domain.TaskStatusPending)
	if err != nil {
		t.Fatalf("SetTaskStatus: %v", err)
	}
	if advance != nil {
		t.Error("reopening a task triggered an advance")
	}
}

func TestRetiredCadenceTaskDoesNotAdvance(t *testing.T) {
	fx := setup(1)

	// The cadence was retired; its leftover task completes without effect.
	lead := fx.repo.leads[fx.lead.ID]
	lead.ActiveCadence = nil
	fx.repo.leads[fx.lead.ID] = lead

	_, advance, err := fx.coord.SetTaskStatus(context.Background(), fx.tasks[0].ID, domain.TaskStatusCompleted)
	if err != nil {
		t.Fatalf("SetTaskStatus: %v", err)
	}
	if advance != nil || len(fx.mover.calls) != 0 {
		t.Error("retired cadence task completion advanced the lead")
	}
}

func TestFinalStageCompletionIsSilentNoop(t *testing.T) {
	fx := setup(1)

	// Park the lead on the last catalog stage.
	lead := fx.repo.leads[fx.lead.ID]
	lead.CurrentStageID = fx.nextStage.ID
	fx.repo.leads[fx.lead.ID] = lead

	_, advance, err := fx.coord.SetTaskStatus(context.Background(), fx.tasks[0].ID, domain.TaskStatusCompleted)
	if err != nil {
		t.Fatalf("SetTaskStatus: %v", err)
	}
	if advance != nil || len(fx.mover.calls) != 0 {
		t.Error("lead advanced past the final stage")
	}
}

func TestGatedLostAdvanceReportsNothing(t *testing.T) {
	fx := setup(1)
	bus := &recordingBus{}
	fx.coord = New(fx.repo, fx.mover, bus, nil)

	// The next catalog stage is lost-type: the move stops at the
	// confirmation gate and commits nothing, so no advance may be
	// reported and no completion event published.
	fx.mover.outcome = transition.MoveOutcome{PendingLost: &transition.PendingLostConfirmation{
		LeadID:        fx.lead.ID,
		TargetStageID: fx.nextStage.ID,
	}}

	_, advance, err := fx.coord.SetTaskStatus(context.Background(), fx.tasks[0].ID, domain.TaskStatusCompleted)
	if err != nil {
		t.Fatalf("SetTaskStatus: %v", err)
	}

	if advance != nil {
		t.Error("auto-advance reported for an uncommitted move")
	}
	if len(fx.mover.calls) != 1 {
		t.Fatalf("mover called %d times, want 1", len(fx.mover.calls))
	}
	if len(bus.published) != 0 {
		t.Errorf("published %d events for an uncommitted move", len(bus.published))
	}
}

func TestManualTaskCompletionDoesNotAdvance(t *testing.T) {
	fx := setup(0)
	manual := domain.Task{ID: uuid.New(), LeadID: fx.lead.ID, Title: "Call back", Type: domain.TaskTypeCall, Status: domain.TaskStatusPending}
	fx.repo.tasks[manual.ID] = manual

	_, advance, err := fx.coord.SetTaskStatus(context.Background(), manual.ID, domain.TaskStatusCompleted)
	if err != nil {
		t.Fatalf("SetTaskStatus: %v", err)
	}
	if advance != nil || len(fx.mover.calls) != 0 {
		t.Error("manual task completion advanced the lead")
	}
}
