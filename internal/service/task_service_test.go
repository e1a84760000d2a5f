package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/task-board/internal/domain"
	"github.com/spec-kit/task-board/internal/events"
	"github.com/spec-kit/task-board/internal/repository"
	apperrors "github.com/spec-kit/task-board/pkg/util/errorutil"
)

type mockTaskRepo struct {
	CreateFunc          func(ctx context.Context, task *domain.Task) error
	UpdateFunc          func(ctx context.Context, task *domain.Task) error
	GetByIDFunc         func(ctx context.Context, id string) (*domain.Task, error)
	DeleteFunc          func(ctx context.Context, id string) error
	ListWithFilterFunc  func(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error)
	CountWithFilterFunc func(ctx context.Context, filter repository.TaskFilter) (int, error)
	CountByStatusFunc   func(ctx context.Context, filter repository.TaskFilter) (map[domain.TaskStatus]int, error)
	CountByPriorityFunc func(ctx context.Context, filter repository.TaskFilter) (map[domain.TaskPriority]int, error)
}

func (m *mockTaskRepo) Create(ctx context.Context, task *domain.Task) error {
	return m.CreateFunc(ctx, task)
}

func (m *mockTaskRepo) Update(ctx context.Context, task *domain.Task) error {
	return m.UpdateFunc(ctx, task)
}

func (m *mockTaskRepo) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	return m.GetByIDFunc(ctx, id)
}

func (m *mockTaskRepo) Delete(ctx context.Context, id string) error {
	return m.DeleteFunc(ctx, id)
}

func (m *mockTaskRepo) ListWithFilter(ctx context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
	return m.ListWithFilterFunc(ctx, filter)
}

func (m *mockTaskRepo) CountWithFilter(ctx context.Context, filter repository.TaskFilter) (int, error) {
	return m.CountWithFilterFunc(ctx, filter)
}

func (m *mockTaskRepo) CountByStatus(ctx context.Context, filter repository.TaskFilter) (map[domain.TaskStatus]int, error) {
	return m.CountByStatusFunc(ctx, filter)
}

func (m *mockTaskRepo) CountByPriority(ctx context.Context, filter repository.TaskFilter) (map[domain.TaskPriority]int, error) {
	return m.CountByPriorityFunc(ctx, filter)
}

type mockUserRepo struct {
	GetByIDFunc func(ctx context.Context, id string) (*domain.User, error)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return m.GetByIDFunc(ctx, id)
}

type mockActivityRepo struct {
	CreateFunc          func(ctx context.Context, entry *domain.ActivityLog) error
	ListWithFilterFunc  func(ctx context.Context, filter repository.ActivityLogFilter) ([]domain.ActivityLog, error)
	CountWithFilterFunc func(ctx context.Context, filter repository.ActivityLogFilter) (int, error)
	ListByTaskFunc      func(ctx context.Context, taskID string, limit int) ([]domain.ActivityLog, error)
}

func (m *mockActivityRepo) Create(ctx context.Context, entry *domain.ActivityLog) error {
	return m.CreateFunc(ctx, entry)
}

func (m *mockActivityRepo) ListWithFilter(ctx context.Context, filter repository.ActivityLogFilter) ([]domain.ActivityLog, error) {
	return m.ListWithFilterFunc(ctx, filter)
}

func (m *mockActivityRepo) CountWithFilter(ctx context.Context, filter repository.ActivityLogFilter) (int, error) {
	return m.CountWithFilterFunc(ctx, filter)
}

func (m *mockActivityRepo) ListByTask(ctx context.Context, taskID string, limit int) ([]domain.ActivityLog, error) {
	return m.ListByTaskFunc(ctx, taskID, limit)
}

type recordingDispatcher struct {
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

type fixture struct {
	tasks      *mockTaskRepo
	users      *mockUserRepo
	activity   *mockActivityRepo
	dispatcher *recordingDispatcher
	logged     []domain.ActivityLog
	service    *TaskService
}

// newFixture builds a service over an in-memory single-task store seeded with
// the given task. Reads return a copy, Update overwrites the stored value and
// audit entries are captured in order.
func newFixture(stored *domain.Task) *fixture {
	f := &fixture{dispatcher: &recordingDispatcher{}}

	f.tasks = &mockTaskRepo{
		GetByIDFunc: func(_ context.Context, id string) (*domain.Task, error) {
			if stored == nil || stored.ID != id {
				return nil, pgx.ErrNoRows
			}
			cp := *stored
			return &cp, nil
		},
		CreateFunc: func(_ context.Context, task *domain.Task) error {
			task.ID = "task-new"
			task.CreatedAt = time.Now()
			task.UpdatedAt = task.CreatedAt
			cp := *task
			stored = &cp
			return nil
		},
		UpdateFunc: func(_ context.Context, task *domain.Task) error {
			task.UpdatedAt = time.Now()
			cp := *task
			stored = &cp
			return nil
		},
		DeleteFunc: func(_ context.Context, id string) error {
			if stored == nil || stored.ID != id {
				return pgx.ErrNoRows
			}
			stored = nil
			return nil
		},
	}
	f.users = &mockUserRepo{
		GetByIDFunc: func(_ context.Context, id string) (*domain.User, error) {
			return &domain.User{ID: id, Name: "Someone", Role: domain.RoleUser}, nil
		},
	}
	f.activity = &mockActivityRepo{
		CreateFunc: func(_ context.Context, entry *domain.ActivityLog) error {
			f.logged = append(f.logged, *entry)
			return nil
		},
	}

	f.service = NewTaskService(TaskDependencies{
		TaskRepo:     f.tasks,
		UserRepo:     f.users,
		ActivityRepo: f.activity,
		Dispatcher:   f.dispatcher,
	})
	return f
}

func baseTask() *domain.Task {
	return &domain.Task{
		ID:         "task-1",
		Title:      "Ship the release",
		Status:     domain.TaskStatusTodo,
		Priority:   domain.TaskPriorityMedium,
		AssignedTo: "assignee-1",
		CreatedBy:  "manager-1",
	}
}

var (
	managerActor  = domain.Principal{ID: "manager-1", Role: domain.RoleManager}
	assigneeActor = domain.Principal{ID: "assignee-1", Role: domain.RoleUser}
	strangerActor = domain.Principal{ID: "stranger-1", Role: domain.RoleUser}
)

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %T: %v", err, err)
	}
	if domainErr.Code != code {
		t.Fatalf("error code = %s, want %s (message %q)", domainErr.Code, code, domainErr.Message)
	}
}

func TestCreateTask(t *testing.T) {
	t.Run("denied for non-managers", func(t *testing.T) {
		f := newFixture(nil)
		_, err := f.service.CreateTask(context.Background(), assigneeActor, "1.2.3.4", TaskCreateInput{
			Title: "x", AssignedTo: "assignee-1",
		})
		assertCode(t, err, "FORBIDDEN")
		if len(f.logged) != 0 || len(f.dispatcher.events) != 0 {
			t.Error("denied create must not audit or broadcast")
		}
	})

	t.Run("defaults status and priority", func(t *testing.T) {
		f := newFixture(nil)
		task, err := f.service.CreateTask(context.Background(), managerActor, "1.2.3.4", TaskCreateInput{
			Title: "New task", AssignedTo: "assignee-1",
		})
		if err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
		if task.Status != domain.TaskStatusTodo {
			t.Errorf("status = %s, want todo", task.Status)
		}
		if task.Priority != domain.TaskPriorityMedium {
			t.Errorf("priority = %s, want medium", task.Priority)
		}
		if task.CreatedBy != managerActor.ID {
			t.Errorf("createdBy = %s, want acting principal", task.CreatedBy)
		}
	})

	t.Run("rejects unknown assignee", func(t *testing.T) {
		f := newFixture(nil)
		f.users.GetByIDFunc = func(context.Context, string) (*domain.User, error) {
			return nil, pgx.ErrNoRows
		}
		_, err := f.service.CreateTask(context.Background(), managerActor, "1.2.3.4", TaskCreateInput{
			Title: "x", AssignedTo: "ghost",
		})
		assertCode(t, err, "VALIDATION_FAILED")
	})

	t.Run("rejects invalid enum values", func(t *testing.T) {
		f := newFixture(nil)
		_, err := f.service.CreateTask(context.Background(), managerActor, "1.2.3.4", TaskCreateInput{
			Title: "x", AssignedTo: "assignee-1", Status: domain.TaskStatus("done"),
		})
		assertCode(t, err, "VALIDATION_FAILED")

		_, err = f.service.CreateTask(context.Background(), managerActor, "1.2.3.4", TaskCreateInput{
			Title: "x", AssignedTo: "assignee-1", Priority: domain.TaskPriority("extreme"),
		})
		assertCode(t, err, "VALIDATION_FAILED")
	})

	t.Run("stamps completedAt when created completed", func(t *testing.T) {
		f := newFixture(nil)
		task, err := f.service.CreateTask(context.Background(), managerActor, "1.2.3.4", TaskCreateInput{
			Title: "x", AssignedTo: "assignee-1", Status: domain.TaskStatusCompleted,
		})
		if err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
		if task.CompletedAt == nil {
			t.Error("completed task must carry completedAt")
		}
	})

	t.Run("audits and broadcasts", func(t *testing.T) {
		f := newFixture(nil)
		task, err := f.service.CreateTask(context.Background(), managerActor, "9.9.9.9", TaskCreateInput{
			Title: "New task", AssignedTo: "assignee-1", Tags: []string{"a", " a ", "", "b"},
		})
		if err != nil {
			t.Fatalf("CreateTask: %v", err)
		}
		if got := task.Tags; len(got) != 2 || got[0] != "a" || got[1] != "b" {
			t.Errorf("tags not normalized: %v", got)
		}
		if len(f.logged) != 1 {
			t.Fatalf("audit entries = %d, want 1", len(f.logged))
		}
		entry := f.logged[0]
		if entry.Action != domain.ActionCreated {
			t.Errorf("action = %s, want created", entry.Action)
		}
		if entry.IPAddress != "9.9.9.9" {
			t.Errorf("origin = %s, want 9.9.9.9", entry.IPAddress)
		}
		if entry.NewValue == nil || entry.NewValue.Kind != domain.SnapshotKindTask {
			t.Error("create audit must carry a full task snapshot")
		}
		if len(f.dispatcher.events) != 1 || f.dispatcher.events[0].Type != events.EventTaskCreated {
			t.Fatalf("expected one taskCreated event, got %v", f.dispatcher.events)
		}
	})
}

func TestUpdateTask(t *testing.T) {
	t.Run("unknown task is not found", func(t *testing.T) {
		f := newFixture(nil)
		title := "x"
		_, err := f.service.UpdateTask(context.Background(), managerActor, "1.2.3.4", "missing", domain.TaskUpdate{Title: &title})
		assertCode(t, err, "NOT_FOUND")
	})

	t.Run("assignee restricted to status field", func(t *testing.T) {
		f := newFixture(baseTask())
		title := "sneaky rename"
		status := domain.TaskStatusReview
		_, err := f.service.UpdateTask(context.Background(), assigneeActor, "1.2.3.4", "task-1", domain.TaskUpdate{
			Title:  &title,
			Status: &status,
		})
		assertCode(t, err, "FORBIDDEN")
		if len(f.logged) != 0 || len(f.dispatcher.events) != 0 {
			t.Error("denied update must not audit or broadcast")
		}
	})

	t.Run("assignee may send status alone", func(t *testing.T) {
		f := newFixture(baseTask())
		status := domain.TaskStatusInProgress
		task, err := f.service.UpdateTask(context.Background(), assigneeActor, "1.2.3.4", "task-1", domain.TaskUpdate{Status: &status})
		if err != nil {
			t.Fatalf("UpdateTask: %v", err)
		}
		if task.Status != domain.TaskStatusInProgress {
			t.Errorf("status = %s, want in-progress", task.Status)
		}
	})

	t.Run("stranger denied", func(t *testing.T) {
		f := newFixture(baseTask())
		status := domain.TaskStatusReview
		_, err := f.service.UpdateTask(context.Background(), strangerActor, "1.2.3.4", "task-1", domain.TaskUpdate{Status: &status})
		assertCode(t, err, "FORBIDDEN")
	})

	t.Run("completing stamps completedAt", func(t *testing.T) {
		f := newFixture(baseTask())
		status := domain.TaskStatusCompleted
		task, err := f.service.UpdateTask(context.Background(), managerActor, "1.2.3.4", "task-1", domain.TaskUpdate{Status: &status})
		if err != nil {
			t.Fatalf("UpdateTask: %v", err)
		}
		if task.CompletedAt == nil {
			t.Fatal("completedAt must be set when status becomes completed")
		}
	})

	t.Run("leaving completed clears completedAt", func(t *testing.T) {
		seed := baseTask()
		seed.Status = domain.TaskStatusCompleted
		done := time.Now().Add(-time.Hour)
		seed.CompletedAt = &done

		f := newFixture(seed)
		status := domain.TaskStatusReview
		task, err := f.service.UpdateTask(context.Background(), managerActor, "1.2.3.4", "task-1", domain.TaskUpdate{Status: &status})
		if err != nil {
			t.Fatalf("UpdateTask: %v", err)
		}
		if task.CompletedAt != nil {
			t.Error("completedAt must be cleared when status leaves completed")
		}
	})

	t.Run("re-completing keeps original timestamp", func(t *testing.T) {
		seed := baseTask()
		seed.Status = domain.TaskStatusCompleted
		done := time.Now().Add(-time.Hour)
		seed.CompletedAt = &done

		f := newFixture(seed)
		status := domain.TaskStatusCompleted
		task, err := f.service.UpdateTask(context.Background(), managerActor, "1.2.3.4", "task-1", domain.TaskUpdate{Status: &status})
		if err != nil {
			t.Fatalf("UpdateTask: %v", err)
		}
		if task.CompletedAt == nil || !task.CompletedAt.Equal(done) {
			t.Errorf("completedAt = %v, want original %v", task.CompletedAt, done)
		}
	})

	t.Run("update without status leaves completedAt alone", func(t *testing.T) {
		seed := baseTask()
		seed.Status = domain.TaskStatusCompleted
		done := time.Now().Add(-time.Hour)
		seed.CompletedAt = &done

		f := newFixture(seed)
		title := "Renamed"
		task, err := f.service.UpdateTask(context.Background(), managerActor, "1.2.3.4", "task-1", domain.TaskUpdate{Title: &title})
		if err != nil {
			t.Fatalf("UpdateTask: %v", err)
		}
		if task.CompletedAt == nil || !task.CompletedAt.Equal(done) {
			t.Errorf("completedAt = %v, want untouched %v", task.CompletedAt, done)
		}
	})

	t.Run("audit action classification", func(t *testing.T) {
		newAssignee := "assignee-2"
		completed := domain.TaskStatusCompleted
		review := domain.TaskStatusReview
		title := "Renamed"

		tests := []struct {
			name   string
			update domain.TaskUpdate
			want   domain.ActivityAction
		}{
			{"assignment wins over status", domain.TaskUpdate{AssignedTo: &newAssignee, Status: &completed}, domain.ActionAssigned},
			{"completion wins over plain status", domain.TaskUpdate{Status: &completed}, domain.ActionCompleted},
			{"status change", domain.TaskUpdate{Status: &review}, domain.ActionStatusChanged},
			{"generic update", domain.TaskUpdate{Title: &title}, domain.ActionUpdated},
			{"unchanged status is generic", domain.TaskUpdate{Title: &title, Status: &baseTask().Status}, domain.ActionUpdated},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newFixture(baseTask())
				_, err := f.service.UpdateTask(context.Background(), managerActor, "1.2.3.4", "task-1", tt.update)
				if err != nil {
					t.Fatalf("UpdateTask: %v", err)
				}
				if len(f.logged) != 1 {
					t.Fatalf("audit entries = %d, want 1", len(f.logged))
				}
				if f.logged[0].Action != tt.want {
					t.Errorf("action = %s, want %s", f.logged[0].Action, tt.want)
				}
			})
		}
	})

	t.Run("audit carries before and after snapshots", func(t *testing.T) {
		f := newFixture(baseTask())
		title := "Renamed"
		_, err := f.service.UpdateTask(context.Background(), managerActor, "1.2.3.4", "task-1", domain.TaskUpdate{Title: &title})
		if err != nil {
			t.Fatalf("UpdateTask: %v", err)
		}
		entry := f.logged[0]
		if entry.PreviousValue == nil || entry.PreviousValue.Task.Title != "Ship the release" {
			t.Error("previous snapshot must hold the pre-update title")
		}
		if entry.NewValue == nil || entry.NewValue.Task.Title != "Renamed" {
			t.Error("new snapshot must hold the post-update title")
		}
	})

	t.Run("audit failure does not fail the update", func(t *testing.T) {
		f := newFixture(baseTask())
		f.activity.CreateFunc = func(context.Context, *domain.ActivityLog) error {
			return errors.New("audit store down")
		}
		title := "Renamed"
		task, err := f.service.UpdateTask(context.Background(), managerActor, "1.2.3.4", "task-1", domain.TaskUpdate{Title: &title})
		if err != nil {
			t.Fatalf("UpdateTask: %v", err)
		}
		if task.Title != "Renamed" {
			t.Error("update must succeed despite audit failure")
		}
		if len(f.dispatcher.events) != 1 {
			t.Error("broadcast must still happen despite audit failure")
		}
	})
}

func TestUpdateTaskStatus(t *testing.T) {
	t.Run("invalid status rejected before load", func(t *testing.T) {
		loaded := false
		f := newFixture(baseTask())
		inner := f.tasks.GetByIDFunc
		f.tasks.GetByIDFunc = func(ctx context.Context, id string) (*domain.Task, error) {
			loaded = true
			return inner(ctx, id)
		}
		_, err := f.service.UpdateTaskStatus(context.Background(), managerActor, "1.2.3.4", "task-1", domain.TaskStatus("done"))
		assertCode(t, err, "VALIDATION_FAILED")
		if loaded {
			t.Error("enum validation must run before the task read")
		}
	})

	t.Run("assignee allowed", func(t *testing.T) {
		f := newFixture(baseTask())
		task, err := f.service.UpdateTaskStatus(context.Background(), assigneeActor, "1.2.3.4", "task-1", domain.TaskStatusInProgress)
		if err != nil {
			t.Fatalf("UpdateTaskStatus: %v", err)
		}
		if task.Status != domain.TaskStatusInProgress {
			t.Errorf("status = %s, want in-progress", task.Status)
		}
	})

	t.Run("stranger denied", func(t *testing.T) {
		f := newFixture(baseTask())
		_, err := f.service.UpdateTaskStatus(context.Background(), strangerActor, "1.2.3.4", "task-1", domain.TaskStatusReview)
		assertCode(t, err, "FORBIDDEN")
	})

	t.Run("completion audited as completed with status snapshots", func(t *testing.T) {
		f := newFixture(baseTask())
		_, err := f.service.UpdateTaskStatus(context.Background(), managerActor, "1.2.3.4", "task-1", domain.TaskStatusCompleted)
		if err != nil {
			t.Fatalf("UpdateTaskStatus: %v", err)
		}
		entry := f.logged[0]
		if entry.Action != domain.ActionCompleted {
			t.Errorf("action = %s, want completed", entry.Action)
		}
		if entry.PreviousValue == nil || entry.PreviousValue.Kind != domain.SnapshotKindStatus || *entry.PreviousValue.Status != domain.TaskStatusTodo {
			t.Error("previous snapshot must be the narrow status form")
		}
		if entry.NewValue == nil || *entry.NewValue.Status != domain.TaskStatusCompleted {
			t.Error("new snapshot must hold the target status")
		}
	})

	t.Run("broadcasts narrow payload", func(t *testing.T) {
		f := newFixture(baseTask())
		_, err := f.service.UpdateTaskStatus(context.Background(), managerActor, "1.2.3.4", "task-1", domain.TaskStatusReview)
		if err != nil {
			t.Fatalf("UpdateTaskStatus: %v", err)
		}
		if len(f.dispatcher.events) != 1 {
			t.Fatalf("events = %d, want 1", len(f.dispatcher.events))
		}
		event := f.dispatcher.events[0]
		if event.Type != events.EventTaskStatusUpdated {
			t.Errorf("event type = %s, want taskStatusUpdated", event.Type)
		}
		payload, ok := event.Payload.(events.TaskStatusUpdatedPayload)
		if !ok {
			t.Fatalf("payload type = %T", event.Payload)
		}
		if payload.TaskID != "task-1" || payload.Status != domain.TaskStatusReview {
			t.Errorf("payload = %+v", payload)
		}
	})
}

func TestDeleteTask(t *testing.T) {
	t.Run("assignee denied", func(t *testing.T) {
		f := newFixture(baseTask())
		err := f.service.DeleteTask(context.Background(), assigneeActor, "1.2.3.4", "task-1")
		assertCode(t, err, "FORBIDDEN")
	})

	t.Run("audit written before removal", func(t *testing.T) {
		f := newFixture(baseTask())
		deleted := false
		inner := f.tasks.DeleteFunc
		f.tasks.DeleteFunc = func(ctx context.Context, id string) error {
			deleted = true
			return inner(ctx, id)
		}
		f.activity.CreateFunc = func(_ context.Context, entry *domain.ActivityLog) error {
			if deleted {
				t.Error("audit entry must be written before the row is removed")
			}
			f.logged = append(f.logged, *entry)
			return nil
		}

		if err := f.service.DeleteTask(context.Background(), managerActor, "1.2.3.4", "task-1"); err != nil {
			t.Fatalf("DeleteTask: %v", err)
		}
		if !deleted {
			t.Fatal("task was not removed")
		}
		entry := f.logged[0]
		if entry.Action != domain.ActionDeleted {
			t.Errorf("action = %s, want deleted", entry.Action)
		}
		if entry.PreviousValue == nil || entry.PreviousValue.Kind != domain.SnapshotKindTask {
			t.Error("delete audit must freeze the final task state")
		}

		event := f.dispatcher.events[0]
		if event.Type != events.EventTaskDeleted {
			t.Errorf("event type = %s, want taskDeleted", event.Type)
		}
		if payload, ok := event.Payload.(events.TaskDeletedPayload); !ok || payload.TaskID != "task-1" {
			t.Errorf("payload = %+v", event.Payload)
		}
	})
}

func TestGetTask(t *testing.T) {
	t.Run("stranger denied", func(t *testing.T) {
		f := newFixture(baseTask())
		_, _, err := f.service.GetTask(context.Background(), strangerActor, "task-1")
		assertCode(t, err, "FORBIDDEN")
	})

	t.Run("returns task with recent activity", func(t *testing.T) {
		f := newFixture(baseTask())
		f.activity.ListByTaskFunc = func(_ context.Context, taskID string, limit int) ([]domain.ActivityLog, error) {
			if taskID != "task-1" || limit != 20 {
				t.Errorf("ListByTask(%s, %d), want (task-1, 20)", taskID, limit)
			}
			return []domain.ActivityLog{{Action: domain.ActionCreated}}, nil
		}
		task, logs, err := f.service.GetTask(context.Background(), assigneeActor, "task-1")
		if err != nil {
			t.Fatalf("GetTask: %v", err)
		}
		if task.ID != "task-1" || len(logs) != 1 {
			t.Errorf("task = %v, logs = %d", task.ID, len(logs))
		}
	})
}

func TestListTasks(t *testing.T) {
	t.Run("user scope overrides caller filters", func(t *testing.T) {
		f := newFixture(nil)
		var captured repository.TaskFilter
		f.tasks.ListWithFilterFunc = func(_ context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
			captured = filter
			return nil, nil
		}
		f.tasks.CountWithFilterFunc = func(context.Context, repository.TaskFilter) (int, error) {
			return 0, nil
		}

		other := "someone-else"
		_, err := f.service.ListTasks(context.Background(), assigneeActor, TaskListOptions{
			AssignedTo: &other, CreatedBy: &other,
		})
		if err != nil {
			t.Fatalf("ListTasks: %v", err)
		}
		if captured.AssignedTo == nil || *captured.AssignedTo != assigneeActor.ID {
			t.Errorf("AssignedTo = %v, want forced to principal", captured.AssignedTo)
		}
		if captured.CreatedBy != nil {
			t.Error("CreatedBy filter must be stripped for plain users")
		}
	})

	t.Run("pagination totals", func(t *testing.T) {
		f := newFixture(nil)
		f.tasks.ListWithFilterFunc = func(_ context.Context, filter repository.TaskFilter) ([]domain.Task, error) {
			if filter.Limit != 10 || filter.Offset != 20 {
				t.Errorf("limit/offset = %d/%d, want 10/20", filter.Limit, filter.Offset)
			}
			return []domain.Task{{ID: "a"}}, nil
		}
		f.tasks.CountWithFilterFunc = func(context.Context, repository.TaskFilter) (int, error) {
			return 25, nil
		}

		page, err := f.service.ListTasks(context.Background(), managerActor, TaskListOptions{Page: 3, Limit: 10})
		if err != nil {
			t.Fatalf("ListTasks: %v", err)
		}
		if page.Total != 25 || page.TotalPages != 3 || page.CurrentPage != 3 {
			t.Errorf("page = %+v", page)
		}
	})

	t.Run("created-by-me is manager only", func(t *testing.T) {
		f := newFixture(nil)
		_, err := f.service.ListCreatedTasks(context.Background(), assigneeActor, TaskListOptions{})
		assertCode(t, err, "FORBIDDEN")
	})
}

func TestGetTaskStats(t *testing.T) {
	t.Run("every enum value present with zero default", func(t *testing.T) {
		f := newFixture(nil)
		f.tasks.CountByStatusFunc = func(_ context.Context, filter repository.TaskFilter) (map[domain.TaskStatus]int, error) {
			if filter.AssignedTo == nil || *filter.AssignedTo != assigneeActor.ID {
				t.Error("user stats must be scoped to assignments")
			}
			return map[domain.TaskStatus]int{domain.TaskStatusTodo: 3, domain.TaskStatusCompleted: 1}, nil
		}
		f.tasks.CountByPriorityFunc = func(context.Context, repository.TaskFilter) (map[domain.TaskPriority]int, error) {
			return map[domain.TaskPriority]int{domain.TaskPriorityHigh: 2}, nil
		}

		stats, err := f.service.GetTaskStats(context.Background(), assigneeActor)
		if err != nil {
			t.Fatalf("GetTaskStats: %v", err)
		}
		if stats.Total != 4 {
			t.Errorf("total = %d, want 4", stats.Total)
		}
		if len(stats.ByStatus) != len(domain.TaskStatuses) {
			t.Errorf("ByStatus has %d keys, want %d", len(stats.ByStatus), len(domain.TaskStatuses))
		}
		if stats.ByStatus[domain.TaskStatusInProgress] != 0 {
			t.Error("absent statuses must default to zero")
		}
		if len(stats.ByPriority) != len(domain.TaskPriorities) {
			t.Errorf("ByPriority has %d keys, want %d", len(stats.ByPriority), len(domain.TaskPriorities))
		}
	})

	t.Run("manager scoped to created tasks", func(t *testing.T) {
		f := newFixture(nil)
		f.tasks.CountByStatusFunc = func(_ context.Context, filter repository.TaskFilter) (map[domain.TaskStatus]int, error) {
			if filter.CreatedBy == nil || *filter.CreatedBy != managerActor.ID {
				t.Error("manager stats must be scoped to created tasks")
			}
			return nil, nil
		}
		f.tasks.CountByPriorityFunc = func(context.Context, repository.TaskFilter) (map[domain.TaskPriority]int, error) {
			return nil, nil
		}
		if _, err := f.service.GetTaskStats(context.Background(), managerActor); err != nil {
			t.Fatalf("GetTaskStats: %v", err)
		}
	})
}

func TestGetActivityLogs(t *testing.T) {
	t.Run("user scoped to assigned tasks", func(t *testing.T) {
		f := newFixture(nil)
		var captured repository.ActivityLogFilter
		f.activity.ListWithFilterFunc = func(_ context.Context, filter repository.ActivityLogFilter) ([]domain.ActivityLog, error) {
			captured = filter
			return nil, nil
		}
		f.activity.CountWithFilterFunc = func(context.Context, repository.ActivityLogFilter) (int, error) {
			return 0, nil
		}

		page, err := f.service.GetActivityLogs(context.Background(), assigneeActor, nil, 0, 0)
		if err != nil {
			t.Fatalf("GetActivityLogs: %v", err)
		}
		if captured.AssignedTo == nil || *captured.AssignedTo != assigneeActor.ID {
			t.Error("user reads must be scoped to assigned tasks")
		}
		if captured.Limit != 20 || captured.Offset != 0 {
			t.Errorf("limit/offset = %d/%d, want defaults 20/0", captured.Limit, captured.Offset)
		}
		if page.Logs == nil {
			t.Error("empty page must carry an empty slice, not nil")
		}
	})

	t.Run("manager unscoped with task filter", func(t *testing.T) {
		f := newFixture(nil)
		var captured repository.ActivityLogFilter
		f.activity.ListWithFilterFunc = func(_ context.Context, filter repository.ActivityLogFilter) ([]domain.ActivityLog, error) {
			captured = filter
			return []domain.ActivityLog{{Action: domain.ActionDeleted}}, nil
		}
		f.activity.CountWithFilterFunc = func(context.Context, repository.ActivityLogFilter) (int, error) {
			return 1, nil
		}

		taskID := "task-1"
		page, err := f.service.GetActivityLogs(context.Background(), managerActor, &taskID, 1, 10)
		if err != nil {
			t.Fatalf("GetActivityLogs: %v", err)
		}
		if captured.AssignedTo != nil {
			t.Error("manager reads must be unscoped")
		}
		if captured.TaskID == nil || *captured.TaskID != taskID {
			t.Errorf("TaskID = %v, want %s", captured.TaskID, taskID)
		}
		if page.Total != 1 || page.TotalPages != 1 {
			t.Errorf("page = %+v", page)
		}
	})
}
