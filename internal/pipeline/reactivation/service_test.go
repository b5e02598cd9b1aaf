package reactivation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"pipeline_backend/internal/pipeline/domain"
	"pipeline_backend/internal/pipeline/repository"
)

type fakeRepo struct {
	mu    sync.Mutex
	due   []domain.Lead
	tasks []domain.Task
	notes []domain.Notification

	failLeads map[uuid.UUID]error
}

func (f *fakeRepo) ListReactivationDue(_ context.Context, _ time.Time) ([]domain.Lead, error) {
	return f.due, nil
}

func (f *fakeRepo) CreateReactivationArtifacts(_ context.Context, params repository.CreateReactivationParams) (*repository.ReactivationArtifacts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.failLeads[params.LeadID]; ok {
		return nil, err
	}

	for _, t := range f.tasks {
		if t.LeadID == params.LeadID && t.Title == params.TaskTitle && t.Status == domain.TaskStatusPending {
			return nil, nil
		}
	}

	task := domain.Task{ID: uuid.New(), LeadID: params.LeadID, Title: params.TaskTitle, Type: domain.TaskTypeTask, DueDate: params.DueDate, Status: domain.TaskStatusPending}
	note := domain.Notification{ID: uuid.New(), LeadID: params.LeadID, Kind: domain.NotificationKindLeadReactivation, Text: params.NotificationText, Link: params.NotificationLink}
	f.tasks = append(f.tasks, task)
	f.notes = append(f.notes, note)
	return &repository.ReactivationArtifacts{Task: task, Notification: note}, nil
}

type sweepConfig struct {
	baseURL     string
	parallelism int
}

func (c sweepConfig) GetAppBaseURL() string    { return c.baseURL }
func (c sweepConfig) GetSweepParallelism() int { return c.parallelism }

func newSweep(repo *fakeRepo, parallelism int) *Service {
	return New(repo, nil, nil, sweepConfig{baseURL: "https://app.example.com", parallelism: parallelism})
}

func dueLead(name string) domain.Lead {
	date := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return domain.Lead{ID: uuid.New(), Name: name, ReactivationDate: &date}
}

func TestSweepCreatesArtifactsPerDueLead(t *testing.T) {
	repo := &fakeRepo{due: []domain.Lead{dueLead("Visser Kozijnen"), dueLead("De Groot Isolatie")}}
	svc := newSweep(repo, 2)

	result, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if result.Candidates != 2 || result.TasksCreated != 2 || result.NotificationsCreated != 2 {
		t.Errorf("result = %+v, want 2/2/2", result)
	}
	if len(result.Errors) != 0 {
		t.Errorf("unexpected errors: %v", result.Errors)
	}

	for i, task := range repo.tasks {
		if !strings.HasPrefix(task.Title, "Reactivate lead: ") {
			t.Errorf("task %d title = %q", i, task.Title)
		}
	}
	for _, note := range repo.notes {
		want := "https://app.example.com/recovery/leads/" + note.LeadID.String()
		if note.Link != want {
			t.Errorf("notification link = %q, want %q", note.Link, want)
		}
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	repo := &fakeRepo{due: []domain.Lead{dueLead("Visser Kozijnen")}}
	svc := newSweep(repo, 1)
	ctx := context.Background()

	if _, err := svc.Sweep(ctx); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	second, err := svc.Sweep(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}

	if second.Candidates != 1 {
		t.Errorf("second sweep candidates = %d, want 1", second.Candidates)
	}
	if second.TasksCreated != 0 || second.NotificationsCreated != 0 {
		t.Errorf("second sweep created %d tasks and %d notifications, want none", second.TasksCreated, second.NotificationsCreated)
	}
	if len(repo.tasks) != 1 || len(repo.notes) != 1 {
		t.Errorf("repo holds %d tasks and %d notifications after two sweeps", len(repo.tasks), len(repo.notes))
	}
}

func TestSweepSkipsLeadsNotYetDue(t *testing.T) {
	future := time.Now().UTC().AddDate(0, 0, 3)
	notYet := domain.Lead{ID: uuid.New(), Name: "Te Vroeg BV", ReactivationDate: &future}
	repo := &fakeRepo{due: []domain.Lead{dueLead("Visser Kozijnen"), notYet, {ID: uuid.New(), Name: "Geen Datum BV"}}}
	svc := newSweep(repo, 1)

	result, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	// Dueness is re-checked per lead; an over-eager reader must not
	// produce early artifacts.
	if result.TasksCreated != 1 || result.NotificationsCreated != 1 {
		t.Errorf("result = %+v, want one task and one notification", result)
	}
	if len(repo.tasks) != 1 {
		t.Fatalf("repo holds %d tasks, want 1", len(repo.tasks))
	}
	if !strings.Contains(repo.tasks[0].Title, "Visser Kozijnen") {
		t.Errorf("task created for the wrong lead: %q", repo.tasks[0].Title)
	}
}

func TestSweepCollectsFailuresWithoutAborting(t *testing.T) {
	failing := dueLead("Broken BV")
	ok1 := dueLead("Visser Kozijnen")
	ok2 := dueLead("De Groot Isolatie")
	repo := &fakeRepo{
		due:       []domain.Lead{ok1, failing, ok2},
		failLeads: map[uuid.UUID]error{failing.ID: errors.New("deadlock detected")},
	}
	svc := newSweep(repo, 1)

	result, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if result.TasksCreated != 2 {
		t.Errorf("created %d tasks, want 2 despite one failure", result.TasksCreated)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("collected %d errors, want 1", len(result.Errors))
	}
	if !strings.Contains(result.Errors[0].Error(), failing.ID.String()) {
		t.Errorf("error %q does not identify the lead", result.Errors[0])
	}
}

func TestSweepWithNoCandidates(t *testing.T) {
	repo := &fakeRepo{}
	svc := newSweep(repo, 4)

	result, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if result.Candidates != 0 || result.TasksCreated != 0 {
		t.Errorf("result = %+v, want empty", result)
	}
}

func TestSweepBoundsParallelism(t *testing.T) {
	// Construction clamps nonsense values rather than failing.
	repo := &fakeRepo{due: []domain.Lead{dueLead("Visser Kozijnen")}}
	svc := newSweep(repo, 0)

	if _, err := svc.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep with clamped parallelism: %v", err)
	}
}
