// Package policy holds the pure access decisions for the task board. Every
// function takes a principal and the current task state and returns a
// Decision; nothing here touches storage or transport, so the rules are
// testable in isolation.
package policy

import (
	"github.com/spec-kit/task-board/internal/domain"
	"github.com/spec-kit/task-board/internal/repository"
)

// Decision is the outcome of an access check.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// CanCreate permits task creation for managers only.
func CanCreate(p domain.Principal) Decision {
	if p.Role == domain.RoleManager {
		return allow()
	}
	return deny("only managers can create tasks")
}

// CanView permits single-task reads for managers, creators and assignees.
func CanView(p domain.Principal, task *domain.Task) Decision {
	if p.Role == domain.RoleManager || p.ID == task.CreatedBy || p.ID == task.AssignedTo {
		return allow()
	}
	return deny("not authorized to view this task")
}

// CanUpdate decides a partial update against the present-field set.
// Creators and managers may touch every mutable field. An assignee who is
// neither may only send the status field; any other present field is a
// denial, not a silent drop.
func CanUpdate(p domain.Principal, task *domain.Task, fields []domain.TaskField) Decision {
	if p.Role == domain.RoleManager || p.ID == task.CreatedBy {
		return allow()
	}
	if p.ID == task.AssignedTo {
		for _, field := range fields {
			if field != domain.FieldStatus {
				return deny("you can only update the task status")
			}
		}
		return allow()
	}
	return deny("not authorized to modify this task")
}

// CanUpdateStatus guards the status-only fast path for assignees and managers.
func CanUpdateStatus(p domain.Principal, task *domain.Task) Decision {
	if p.Role == domain.RoleManager || p.ID == task.AssignedTo {
		return allow()
	}
	return deny("not authorized to update this task status")
}

// CanDelete permits deletion for the creator or any manager.
func CanDelete(p domain.Principal, task *domain.Task) Decision {
	if p.Role == domain.RoleManager || p.ID == task.CreatedBy {
		return allow()
	}
	return deny("not authorized to delete this task")
}

// ApplyListScope forces the implicit list predicate onto caller filters:
// a plain user can never list outside their own assignments, whatever
// assignedTo/createdBy filters the request carried. Managers keep their
// filters as supplied.
func ApplyListScope(p domain.Principal, filter *repository.TaskFilter) {
	if p.Role == domain.RoleUser {
		assignee := p.ID
		filter.AssignedTo = &assignee
		filter.CreatedBy = nil
	}
}

// StatsScope returns the aggregation predicate for a principal: users see
// their assignments, managers see what they created, any other role is
// unscoped and sees everything.
func StatsScope(p domain.Principal) repository.TaskFilter {
	var filter repository.TaskFilter
	switch p.Role {
	case domain.RoleUser:
		assignee := p.ID
		filter.AssignedTo = &assignee
	case domain.RoleManager:
		creator := p.ID
		filter.CreatedBy = &creator
	}
	return filter
}

// ActivityScope restricts audit reads for plain users to tasks currently
// assigned to them.
func ActivityScope(p domain.Principal, filter *repository.ActivityLogFilter) {
	if p.Role == domain.RoleUser {
		assignee := p.ID
		filter.AssignedTo = &assignee
	}
}
