package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/task-board/internal/domain"
	"github.com/spec-kit/task-board/internal/events"
	"github.com/spec-kit/task-board/internal/policy"
	"github.com/spec-kit/task-board/internal/repository"
	apperrors "github.com/spec-kit/task-board/pkg/util/errorutil"
)

// TaskService coordinates the mutation pipeline: authorize, read, merge,
// persist, audit, broadcast. Audit writes and broadcasts are best-effort
// side channels; the task write is the source of truth.
type TaskService struct {
	tasks      repository.TaskRepository
	users      repository.UserRepository
	activity   repository.ActivityLogRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// TaskDependencies bundles collaborators for the task service.
type TaskDependencies struct {
	TaskRepo     repository.TaskRepository
	UserRepo     repository.UserRepository
	ActivityRepo repository.ActivityLogRepository
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// TaskCreateInput describes task creation payload.
type TaskCreateInput struct {
	Title       string
	Description string
	Status      domain.TaskStatus
	Priority    domain.TaskPriority
	DueDate     *time.Time
	AssignedTo  string
	Tags        []string
}

// TaskListOptions describes listing filters and pagination.
type TaskListOptions struct {
	Status     *domain.TaskStatus
	Priority   *domain.TaskPriority
	Search     *string
	AssignedTo *string
	CreatedBy  *string
	SortBy     string
	SortOrder  string
	Page       int
	Limit      int
}

// TaskPage is one page of tasks plus pagination totals.
type TaskPage struct {
	Tasks       []domain.Task
	Total       int
	TotalPages  int
	CurrentPage int
}

// ActivityPage is one page of audit entries plus pagination totals.
type ActivityPage struct {
	Logs        []domain.ActivityLog
	Total       int
	TotalPages  int
	CurrentPage int
}

// TaskStats aggregates counts by status and priority. Every enum value is
// always present, defaulting to zero.
type TaskStats struct {
	Total      int
	ByStatus   map[domain.TaskStatus]int
	ByPriority map[domain.TaskPriority]int
}

// NewTaskService constructs the service.
func NewTaskService(deps TaskDependencies) *TaskService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskService{
		tasks:      deps.TaskRepo,
		users:      deps.UserRepo,
		activity:   deps.ActivityRepo,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// CreateTask validates, persists and announces a new task. Only managers may
// create; the creator is always the acting principal.
func (s *TaskService) CreateTask(ctx context.Context, actor domain.Principal, origin string, input TaskCreateInput) (*domain.Task, error) {
	if decision := policy.CanCreate(actor); !decision.Allowed {
		return nil, apperrors.NewForbidden(decision.Reason)
	}

	status := input.Status
	if status == "" {
		status = domain.TaskStatusTodo
	}
	if !status.Valid() {
		return nil, apperrors.NewValidationError("invalid status value", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TaskPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority value", nil)
	}

	if _, err := s.users.GetByID(ctx, input.AssignedTo); err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewValidationError("assignee does not exist", nil)
		}
		return nil, apperrors.MapError(err)
	}

	task := &domain.Task{
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Status:      status,
		Priority:    priority,
		DueDate:     input.DueDate,
		AssignedTo:  input.AssignedTo,
		CreatedBy:   actor.ID,
		Tags:        normalizeTags(input.Tags),
	}
	if status == domain.TaskStatusCompleted {
		now := time.Now()
		task.CompletedAt = &now
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, apperrors.MapError(err)
	}
	created, err := s.tasks.GetByID(ctx, task.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.recordActivity(ctx, &domain.ActivityLog{
		Action:      domain.ActionCreated,
		TaskID:      created.ID,
		TaskTitle:   created.Title,
		PerformedBy: actor.ID,
		NewValue:    domain.SnapshotOfTask(created),
		Details:     fmt.Sprintf("Task %q was created", created.Title),
		IPAddress:   origin,
	})
	s.publishEvent(ctx, events.Event{
		Type:    events.EventTaskCreated,
		TaskID:  created.ID,
		Actor:   events.Actor{UserID: actor.ID, Role: actor.Role},
		Payload: events.NewTaskPayload(created),
	})
	return created, nil
}

// UpdateTask merges the allowed present fields into a task. Assignees who
// are neither creator nor manager may only carry the status field.
func (s *TaskService) UpdateTask(ctx context.Context, actor domain.Principal, origin, taskID string, update domain.TaskUpdate) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("task", nil)
		}
		return nil, apperrors.MapError(err)
	}

	if decision := policy.CanUpdate(actor, task, update.Fields()); !decision.Allowed {
		return nil, apperrors.NewForbidden(decision.Reason)
	}

	if update.Status != nil && !update.Status.Valid() {
		return nil, apperrors.NewValidationError("invalid status value", nil)
	}
	if update.Priority != nil && !update.Priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority value", nil)
	}
	if update.AssignedTo != nil {
		if _, err := s.users.GetByID(ctx, *update.AssignedTo); err != nil {
			if err == pgx.ErrNoRows {
				return nil, apperrors.NewValidationError("assignee does not exist", nil)
			}
			return nil, apperrors.MapError(err)
		}
	}

	previous := *task
	previousSnapshot := domain.SnapshotOfTask(&previous)

	update.Apply(task)
	if update.Tags != nil {
		task.Tags = normalizeTags(task.Tags)
	}
	if update.Status != nil {
		recomputeCompletedAt(task, previous.Status)
	}

	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, apperrors.MapError(err)
	}
	updated, err := s.tasks.GetByID(ctx, task.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	action := classifyUpdate(&previous, update)
	s.recordActivity(ctx, &domain.ActivityLog{
		Action:        action,
		TaskID:        updated.ID,
		TaskTitle:     updated.Title,
		PerformedBy:   actor.ID,
		PreviousValue: previousSnapshot,
		NewValue:      domain.SnapshotOfTask(updated),
		Details:       fmt.Sprintf("Task %q was %s", updated.Title, action),
		IPAddress:     origin,
	})
	s.publishEvent(ctx, events.Event{
		Type:    events.EventTaskUpdated,
		TaskID:  updated.ID,
		Actor:   events.Actor{UserID: actor.ID, Role: actor.Role},
		Payload: events.NewTaskPayload(updated),
	})
	return updated, nil
}

// UpdateTaskStatus is the status-only fast path for assignees and managers.
func (s *TaskService) UpdateTaskStatus(ctx context.Context, actor domain.Principal, origin, taskID string, status domain.TaskStatus) (*domain.Task, error) {
	if !status.Valid() {
		return nil, apperrors.NewValidationError("invalid status value", nil)
	}

	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("task", nil)
		}
		return nil, apperrors.MapError(err)
	}

	if decision := policy.CanUpdateStatus(actor, task); !decision.Allowed {
		return nil, apperrors.NewForbidden(decision.Reason)
	}

	previousStatus := task.Status
	task.Status = status
	recomputeCompletedAt(task, previousStatus)

	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, apperrors.MapError(err)
	}
	updated, err := s.tasks.GetByID(ctx, task.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	action := domain.ActionStatusChanged
	if status == domain.TaskStatusCompleted {
		action = domain.ActionCompleted
	}
	s.recordActivity(ctx, &domain.ActivityLog{
		Action:        action,
		TaskID:        updated.ID,
		TaskTitle:     updated.Title,
		PerformedBy:   actor.ID,
		PreviousValue: domain.SnapshotOfStatus(previousStatus),
		NewValue:      domain.SnapshotOfStatus(status),
		Details:       fmt.Sprintf("Task status changed from %q to %q", previousStatus, status),
		IPAddress:     origin,
	})
	s.publishEvent(ctx, events.Event{
		Type:    events.EventTaskStatusUpdated,
		TaskID:  updated.ID,
		Actor:   events.Actor{UserID: actor.ID, Role: actor.Role},
		Payload: events.TaskStatusUpdatedPayload{TaskID: updated.ID, Status: status},
	})
	return updated, nil
}

// DeleteTask removes a task. The audit snapshot is written before the row
// disappears so history keeps the final state.
func (s *TaskService) DeleteTask(ctx context.Context, actor domain.Principal, origin, taskID string) error {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewNotFound("task", nil)
		}
		return apperrors.MapError(err)
	}

	if decision := policy.CanDelete(actor, task); !decision.Allowed {
		return apperrors.NewForbidden(decision.Reason)
	}

	s.recordActivity(ctx, &domain.ActivityLog{
		Action:        domain.ActionDeleted,
		TaskID:        task.ID,
		TaskTitle:     task.Title,
		PerformedBy:   actor.ID,
		PreviousValue: domain.SnapshotOfTask(task),
		Details:       fmt.Sprintf("Task %q was deleted", task.Title),
		IPAddress:     origin,
	})

	if err := s.tasks.Delete(ctx, taskID); err != nil {
		return apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:    events.EventTaskDeleted,
		TaskID:  task.ID,
		Actor:   events.Actor{UserID: actor.ID, Role: actor.Role},
		Payload: events.TaskDeletedPayload{TaskID: task.ID},
	})
	return nil
}

// GetTask returns one task plus its most recent audit entries.
func (s *TaskService) GetTask(ctx context.Context, actor domain.Principal, taskID string) (*domain.Task, []domain.ActivityLog, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil, apperrors.NewNotFound("task", nil)
		}
		return nil, nil, apperrors.MapError(err)
	}

	if decision := policy.CanView(actor, task); !decision.Allowed {
		return nil, nil, apperrors.NewForbidden(decision.Reason)
	}

	logs, err := s.activity.ListByTask(ctx, task.ID, 20)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	return task, logs, nil
}

// ListTasks returns a page of tasks scoped by role, then caller filters.
func (s *TaskService) ListTasks(ctx context.Context, actor domain.Principal, opts TaskListOptions) (*TaskPage, error) {
	filter := repository.TaskFilter{
		AssignedTo: opts.AssignedTo,
		CreatedBy:  opts.CreatedBy,
		Status:     opts.Status,
		Priority:   opts.Priority,
		Search:     opts.Search,
		SortBy:     opts.SortBy,
		SortOrder:  opts.SortOrder,
	}
	policy.ApplyListScope(actor, &filter)
	return s.pageTasks(ctx, filter, opts.Page, opts.Limit)
}

// ListAssignedTasks returns tasks assigned to the acting principal.
func (s *TaskService) ListAssignedTasks(ctx context.Context, actor domain.Principal, opts TaskListOptions) (*TaskPage, error) {
	assignee := actor.ID
	filter := repository.TaskFilter{
		AssignedTo: &assignee,
		Status:     opts.Status,
		Priority:   opts.Priority,
	}
	return s.pageTasks(ctx, filter, opts.Page, opts.Limit)
}

// ListCreatedTasks returns tasks created by the acting principal. Managers only.
func (s *TaskService) ListCreatedTasks(ctx context.Context, actor domain.Principal, opts TaskListOptions) (*TaskPage, error) {
	if actor.Role != domain.RoleManager {
		return nil, apperrors.NewForbidden("only managers can list created tasks")
	}
	creator := actor.ID
	filter := repository.TaskFilter{
		CreatedBy: &creator,
		Status:    opts.Status,
		Priority:  opts.Priority,
	}
	return s.pageTasks(ctx, filter, opts.Page, opts.Limit)
}

// GetTaskStats aggregates counts by status and priority under the actor's
// stats scope.
func (s *TaskService) GetTaskStats(ctx context.Context, actor domain.Principal) (*TaskStats, error) {
	filter := policy.StatsScope(actor)

	byStatus, err := s.tasks.CountByStatus(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	byPriority, err := s.tasks.CountByPriority(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	stats := &TaskStats{
		ByStatus:   make(map[domain.TaskStatus]int, len(domain.TaskStatuses)),
		ByPriority: make(map[domain.TaskPriority]int, len(domain.TaskPriorities)),
	}
	for _, status := range domain.TaskStatuses {
		stats.ByStatus[status] = byStatus[status]
		stats.Total += byStatus[status]
	}
	for _, priority := range domain.TaskPriorities {
		stats.ByPriority[priority] = byPriority[priority]
	}
	return stats, nil
}

// GetActivityLogs returns a page of audit entries, newest first. Plain users
// only see entries for tasks currently assigned to them.
func (s *TaskService) GetActivityLogs(ctx context.Context, actor domain.Principal, taskID *string, page, limit int) (*ActivityPage, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	filter := repository.ActivityLogFilter{
		TaskID: taskID,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	policy.ActivityScope(actor, &filter)

	logs, err := s.activity.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	total, err := s.activity.CountWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if logs == nil {
		logs = []domain.ActivityLog{}
	}
	return &ActivityPage{
		Logs:        logs,
		Total:       total,
		TotalPages:  totalPages(total, limit),
		CurrentPage: page,
	}, nil
}

func (s *TaskService) pageTasks(ctx context.Context, filter repository.TaskFilter, page, limit int) (*TaskPage, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}
	filter.Limit = limit
	filter.Offset = (page - 1) * limit

	tasks, err := s.tasks.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	total, err := s.tasks.CountWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return &TaskPage{
		Tasks:       tasks,
		Total:       total,
		TotalPages:  totalPages(total, limit),
		CurrentPage: page,
	}, nil
}

// recomputeCompletedAt keeps the completedAt invariant: the stamp exists
// exactly when the status is completed, and an idempotent re-set of
// completed keeps the original timestamp.
func recomputeCompletedAt(task *domain.Task, previousStatus domain.TaskStatus) {
	if task.Status == domain.TaskStatusCompleted {
		if previousStatus != domain.TaskStatusCompleted || task.CompletedAt == nil {
			now := time.Now()
			task.CompletedAt = &now
		}
		return
	}
	task.CompletedAt = nil
}

// classifyUpdate picks the audit action: assignment changes win over
// completion, completion over plain status changes, everything else is a
// generic update.
func classifyUpdate(previous *domain.Task, update domain.TaskUpdate) domain.ActivityAction {
	if update.AssignedTo != nil && *update.AssignedTo != previous.AssignedTo {
		return domain.ActionAssigned
	}
	if update.Status != nil && *update.Status != previous.Status {
		if *update.Status == domain.TaskStatusCompleted {
			return domain.ActionCompleted
		}
		return domain.ActionStatusChanged
	}
	return domain.ActionUpdated
}

// recordActivity appends an audit entry. Failures are logged and swallowed:
// the audit trail is best-effort and never rolls back the task write.
func (s *TaskService) recordActivity(ctx context.Context, entry *domain.ActivityLog) {
	if s.activity == nil {
		return
	}
	if err := s.activity.Create(ctx, entry); err != nil {
		s.logger.Error("failed to write activity log",
			zap.String("task_id", entry.TaskID),
			zap.String("action", string(entry.Action)),
			zap.Error(err))
	}
}

func (s *TaskService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		result = append(result, tag)
	}
	return result
}

func totalPages(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
