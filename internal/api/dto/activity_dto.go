package dto

import (
	"time"

	"github.com/spec-kit/task-board/internal/domain"
)

// ActivityLogResponse represents one audit trail entry.
type ActivityLogResponse struct {
	ID            string                `json:"id"`
	Action        domain.ActivityAction `json:"action"`
	TaskID        string                `json:"taskId"`
	TaskTitle     string                `json:"taskTitle"`
	PerformedBy   *domain.UserRef       `json:"performedBy"`
	PreviousValue *domain.Snapshot      `json:"previousValue,omitempty"`
	NewValue      *domain.Snapshot      `json:"newValue,omitempty"`
	Details       string                `json:"details"`
	IPAddress     string                `json:"ipAddress,omitempty"`
	CreatedAt     time.Time             `json:"createdAt"`
}

// NewActivityLogResponse maps a domain entry.
func NewActivityLogResponse(entry *domain.ActivityLog) ActivityLogResponse {
	return ActivityLogResponse{
		ID:            entry.ID,
		Action:        entry.Action,
		TaskID:        entry.TaskID,
		TaskTitle:     entry.TaskTitle,
		PerformedBy:   entry.Performer,
		PreviousValue: entry.PreviousValue,
		NewValue:      entry.NewValue,
		Details:       entry.Details,
		IPAddress:     entry.IPAddress,
		CreatedAt:     entry.CreatedAt,
	}
}

// NewActivityLogResponses maps a slice of entries.
func NewActivityLogResponses(entries []domain.ActivityLog) []ActivityLogResponse {
	items := make([]ActivityLogResponse, 0, len(entries))
	for i := range entries {
		items = append(items, NewActivityLogResponse(&entries[i]))
	}
	return items
}
