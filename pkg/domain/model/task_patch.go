package model

import (
	"time"

	"github.com/secmon-lab/tasklane/pkg/domain/types"
)

// TaskPatch is a partial update of a task. Nil fields are left as is.
type TaskPatch struct {
	Title          *string
	Description    *string
	Status         *types.TaskStatus
	Priority       *types.TaskPriority
	DueDate        *time.Time
	ClearDueDate   bool
	AssignedTo     *types.UserID // pointer to "" unassigns
	EstimatedHours *float64
	ActualHours    *float64
	Tags           []string // nil leaves tags untouched
}

// ChangesAssignee reports whether applying the patch to t changes who the
// task is assigned to
func (p TaskPatch) ChangesAssignee(t *Task) bool {
	return p.AssignedTo != nil && *p.AssignedTo != t.AssignedTo
}

// ChangesDueDate reports whether the patch sets a new due date
func (p TaskPatch) ChangesDueDate(t *Task) bool {
	if p.DueDate == nil {
		return false
	}
	return t.DueDate == nil || !t.DueDate.Equal(*p.DueDate)
}

// Apply returns a copy of t with the patch applied. Validation is left to
// the caller.
func (p TaskPatch) Apply(t *Task) *Task {
	next := t.Copy()
	if p.Title != nil {
		next.Title = *p.Title
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	if p.Status != nil {
		next.Status = *p.Status
	}
	if p.Priority != nil {
		next.Priority = *p.Priority
	}
	if p.ClearDueDate {
		next.DueDate = nil
	} else if p.DueDate != nil {
		d := *p.DueDate
		next.DueDate = &d
	}
	if p.AssignedTo != nil {
		next.AssignedTo = *p.AssignedTo
	}
	if p.EstimatedHours != nil {
		h := *p.EstimatedHours
		next.EstimatedHours = &h
	}
	if p.ActualHours != nil {
		h := *p.ActualHours
		next.ActualHours = &h
	}
	if p.Tags != nil {
		next.Tags = NormalizeTags(p.Tags)
	}
	return next
}
