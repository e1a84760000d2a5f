package dto

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/spec-kit/task-board/internal/domain"
	apperrors "github.com/spec-kit/task-board/pkg/util/errorutil"
)

var validate = validator.New()

// CreateTaskRequest payload.
type CreateTaskRequest struct {
	Title       string     `json:"title" validate:"required,max=100"`
	Description string     `json:"description" validate:"required,max=1000"`
	Status      string     `json:"status" validate:"omitempty,oneof=todo in-progress review completed"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	DueDate     *time.Time `json:"dueDate"`
	AssignedTo  string     `json:"assignedTo" validate:"required,uuid"`
	Tags        []string   `json:"tags" validate:"omitempty,dive,max=50"`
}

// Validate enforces the boundary constraints before the core runs.
func (r *CreateTaskRequest) Validate() error {
	return mapValidationError(validate.Struct(r))
}

// UpdateTaskRequest payload. Nil fields were absent from the request body.
type UpdateTaskRequest struct {
	Title       *string    `json:"title" validate:"omitempty,max=100"`
	Description *string    `json:"description" validate:"omitempty,max=1000"`
	Status      *string    `json:"status" validate:"omitempty,oneof=todo in-progress review completed"`
	Priority    *string    `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	DueDate     *time.Time `json:"dueDate"`
	AssignedTo  *string    `json:"assignedTo" validate:"omitempty,uuid"`
	Tags        *[]string  `json:"tags" validate:"omitempty,dive,max=50"`
}

// Validate enforces the boundary constraints before the core runs.
func (r *UpdateTaskRequest) Validate() error {
	if r.Title != nil && *r.Title == "" {
		return apperrors.NewValidationError("title cannot be empty", nil)
	}
	if r.Description != nil && *r.Description == "" {
		return apperrors.NewValidationError("description cannot be empty", nil)
	}
	return mapValidationError(validate.Struct(r))
}

// ToUpdate converts the request into the tagged domain update.
func (r *UpdateTaskRequest) ToUpdate() domain.TaskUpdate {
	update := domain.TaskUpdate{
		Title:       r.Title,
		Description: r.Description,
		DueDate:     r.DueDate,
		AssignedTo:  r.AssignedTo,
		Tags:        r.Tags,
	}
	if r.Status != nil {
		status := domain.TaskStatus(*r.Status)
		update.Status = &status
	}
	if r.Priority != nil {
		priority := domain.TaskPriority(*r.Priority)
		update.Priority = &priority
	}
	return update
}

// UpdateTaskStatusRequest payload for the status fast path.
type UpdateTaskStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=todo in-progress review completed"`
}

// Validate enforces the status enum.
func (r *UpdateTaskStatusRequest) Validate() error {
	return mapValidationError(validate.Struct(r))
}

// TaskResponse is the reference-expanded task representation.
type TaskResponse struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Status      domain.TaskStatus   `json:"status"`
	Priority    domain.TaskPriority `json:"priority"`
	DueDate     *time.Time          `json:"dueDate,omitempty"`
	AssignedTo  *domain.UserRef     `json:"assignedTo"`
	CreatedBy   *domain.UserRef     `json:"createdBy"`
	Tags        []string            `json:"tags"`
	CompletedAt *time.Time          `json:"completedAt"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// NewTaskResponse maps a domain task.
func NewTaskResponse(task *domain.Task) TaskResponse {
	tags := task.Tags
	if tags == nil {
		tags = []string{}
	}
	return TaskResponse{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		Priority:    task.Priority,
		DueDate:     task.DueDate,
		AssignedTo:  task.Assignee,
		CreatedBy:   task.Creator,
		Tags:        tags,
		CompletedAt: task.CompletedAt,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

// NewTaskResponses maps a slice of domain tasks.
func NewTaskResponses(tasks []domain.Task) []TaskResponse {
	items := make([]TaskResponse, 0, len(tasks))
	for i := range tasks {
		items = append(items, NewTaskResponse(&tasks[i]))
	}
	return items
}

// TaskStatsResponse mirrors the stats aggregation with all enum keys present.
type TaskStatsResponse struct {
	Total      int                         `json:"total"`
	ByStatus   map[domain.TaskStatus]int   `json:"byStatus"`
	ByPriority map[domain.TaskPriority]int `json:"byPriority"`
}

func mapValidationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	details := map[string]any{}
	if errors.As(err, &fieldErrors) {
		for _, fe := range fieldErrors {
			details[fe.Field()] = fe.Tag()
		}
	}
	return apperrors.NewValidationError("invalid request payload", details)
}
