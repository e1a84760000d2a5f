package events

import (
	"time"

	"github.com/spec-kit/task-board/internal/domain"
)

// EventType enumerates supported event identifiers. The values double as the
// wire names delivered to connected clients.
type EventType string

const (
	EventTaskCreated       EventType = "taskCreated"
	EventTaskUpdated       EventType = "taskUpdated"
	EventTaskStatusUpdated EventType = "taskStatusUpdated"
	EventTaskDeleted       EventType = "taskDeleted"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// Event represents a domain event emitted by the task service.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TaskID    string      `json:"task_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TaskPayload carries the full task for created/updated broadcasts.
type TaskPayload struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Status      domain.TaskStatus   `json:"status"`
	Priority    domain.TaskPriority `json:"priority"`
	DueDate     *time.Time          `json:"dueDate,omitempty"`
	AssignedTo  *domain.UserRef     `json:"assignedTo,omitempty"`
	CreatedBy   *domain.UserRef     `json:"createdBy,omitempty"`
	Tags        []string            `json:"tags"`
	CompletedAt *time.Time          `json:"completedAt,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// NewTaskPayload builds the broadcast payload for a reference-expanded task.
func NewTaskPayload(task *domain.Task) *TaskPayload {
	return &TaskPayload{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		Priority:    task.Priority,
		DueDate:     task.DueDate,
		AssignedTo:  task.Assignee,
		CreatedBy:   task.Creator,
		Tags:        task.Tags,
		CompletedAt: task.CompletedAt,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

// TaskStatusUpdatedPayload is the narrow payload for status fast-path updates.
type TaskStatusUpdatedPayload struct {
	TaskID string            `json:"taskId"`
	Status domain.TaskStatus `json:"status"`
}

// TaskDeletedPayload identifies a removed task.
type TaskDeletedPayload struct {
	TaskID string `json:"taskId"`
}
