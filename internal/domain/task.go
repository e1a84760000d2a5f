package domain

import "time"

// TaskStatus enumerates lifecycle states for tasks.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusReview     TaskStatus = "review"
	TaskStatusCompleted  TaskStatus = "completed"
)

// TaskStatuses lists every status in display order.
var TaskStatuses = []TaskStatus{TaskStatusTodo, TaskStatusInProgress, TaskStatusReview, TaskStatusCompleted}

// Valid reports whether the status is one of the four known values.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusReview, TaskStatusCompleted:
		return true
	}
	return false
}

// TaskPriority enumerates urgency levels.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

// TaskPriorities lists every priority in display order.
var TaskPriorities = []TaskPriority{TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityUrgent}

// Valid reports whether the priority is one of the four known values.
func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityUrgent:
		return true
	}
	return false
}

// Task is the aggregate for assignable work items.
type Task struct {
	ID          string
	Title       string
	Description string
	Status      TaskStatus
	Priority    TaskPriority
	DueDate     *time.Time
	AssignedTo  string
	CreatedBy   string
	Tags        []string
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Assignee and Creator are filled when the store expands references.
	Assignee *UserRef
	Creator  *UserRef
}

// TaskField names a mutable task field for capability checks.
type TaskField string

const (
	FieldTitle       TaskField = "title"
	FieldDescription TaskField = "description"
	FieldStatus      TaskField = "status"
	FieldPriority    TaskField = "priority"
	FieldDueDate     TaskField = "dueDate"
	FieldAssignedTo  TaskField = "assignedTo"
	FieldTags        TaskField = "tags"
)

// TaskUpdate carries a partial update. A nil field was absent from the
// request and must leave the stored value untouched.
type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *TaskStatus
	Priority    *TaskPriority
	DueDate     *time.Time
	AssignedTo  *string
	Tags        *[]string
}

// Fields enumerates which fields are present in the update.
func (u TaskUpdate) Fields() []TaskField {
	fields := make([]TaskField, 0, 7)
	if u.Title != nil {
		fields = append(fields, FieldTitle)
	}
	if u.Description != nil {
		fields = append(fields, FieldDescription)
	}
	if u.Status != nil {
		fields = append(fields, FieldStatus)
	}
	if u.Priority != nil {
		fields = append(fields, FieldPriority)
	}
	if u.DueDate != nil {
		fields = append(fields, FieldDueDate)
	}
	if u.AssignedTo != nil {
		fields = append(fields, FieldAssignedTo)
	}
	if u.Tags != nil {
		fields = append(fields, FieldTags)
	}
	return fields
}

// Apply merges the present fields into the task.
func (u TaskUpdate) Apply(task *Task) {
	if u.Title != nil {
		task.Title = *u.Title
	}
	if u.Description != nil {
		task.Description = *u.Description
	}
	if u.Status != nil {
		task.Status = *u.Status
	}
	if u.Priority != nil {
		task.Priority = *u.Priority
	}
	if u.DueDate != nil {
		task.DueDate = u.DueDate
	}
	if u.AssignedTo != nil {
		task.AssignedTo = *u.AssignedTo
	}
	if u.Tags != nil {
		task.Tags = *u.Tags
	}
}
