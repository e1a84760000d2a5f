package domain

import "time"

// ActivityAction captures what kind of mutation an audit entry records.
type ActivityAction string

const (
	ActionCreated       ActivityAction = "created"
	ActionUpdated       ActivityAction = "updated"
	ActionDeleted       ActivityAction = "deleted"
	ActionStatusChanged ActivityAction = "status_changed"
	ActionAssigned      ActivityAction = "assigned"
	ActionCompleted     ActivityAction = "completed"
)

// SnapshotKind tags the shape of an audit snapshot.
type SnapshotKind string

const (
	SnapshotKindTask   SnapshotKind = "task"
	SnapshotKindStatus SnapshotKind = "status"
)

// TaskSnapshot is the full task state frozen at audit time.
type TaskSnapshot struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	DueDate     *time.Time   `json:"dueDate,omitempty"`
	AssignedTo  string       `json:"assignedTo"`
	CreatedBy   string       `json:"createdBy"`
	Tags        []string     `json:"tags"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Snapshot is a closed variant: either a full task snapshot or a narrow
// status value, tagged so readers never have to guess the shape.
type Snapshot struct {
	Kind   SnapshotKind  `json:"kind"`
	Task   *TaskSnapshot `json:"task,omitempty"`
	Status *TaskStatus   `json:"status,omitempty"`
}

// SnapshotOfTask freezes the full state of a task.
func SnapshotOfTask(task *Task) *Snapshot {
	if task == nil {
		return nil
	}
	return &Snapshot{
		Kind: SnapshotKindTask,
		Task: &TaskSnapshot{
			ID:          task.ID,
			Title:       task.Title,
			Description: task.Description,
			Status:      task.Status,
			Priority:    task.Priority,
			DueDate:     task.DueDate,
			AssignedTo:  task.AssignedTo,
			CreatedBy:   task.CreatedBy,
			Tags:        task.Tags,
			CompletedAt: task.CompletedAt,
			CreatedAt:   task.CreatedAt,
			UpdatedAt:   task.UpdatedAt,
		},
	}
}

// SnapshotOfStatus freezes a single status value.
func SnapshotOfStatus(status TaskStatus) *Snapshot {
	return &Snapshot{Kind: SnapshotKindStatus, Status: &status}
}

// ActivityLog is an immutable audit trail entry. Entries outlive the task
// they describe, so the title is denormalized at write time.
type ActivityLog struct {
	ID            string
	Action        ActivityAction
	TaskID        string
	TaskTitle     string
	PerformedBy   string
	PreviousValue *Snapshot
	NewValue      *Snapshot
	Details       string
	IPAddress     string
	CreatedAt     time.Time

	// Performer is filled when the store expands the actor reference.
	Performer *UserRef
}
