package model

import (
	"slices"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
)

const (
	maxTitleLength       = 255
	maxDescriptionLength = 2000
	maxHours             = 999.99
)

// Task is a unit of work owned by its creator and optionally assigned to one
// other user
type Task struct {
	ID             types.TaskID       `json:"id"`
	Title          string             `json:"title"`
	Description    string             `json:"description"`
	Status         types.TaskStatus   `json:"status"`
	Priority       types.TaskPriority `json:"priority"`
	DueDate        *time.Time         `json:"dueDate,omitempty"`
	AssignedTo     types.UserID       `json:"assignedTo,omitempty"`
	CreatedBy      types.UserID       `json:"createdBy"`
	CompletedAt    *time.Time         `json:"completedAt,omitempty"`
	EstimatedHours *float64           `json:"estimatedHours,omitempty"`
	ActualHours    *float64           `json:"actualHours,omitempty"`
	Tags           []string           `json:"tags"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

// Copy returns a deep copy of the task
func (t *Task) Copy() *Task {
	c := *t
	c.Tags = append(make([]string, 0, len(t.Tags)), t.Tags...)
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	if t.CompletedAt != nil {
		d := *t.CompletedAt
		c.CompletedAt = &d
	}
	if t.EstimatedHours != nil {
		h := *t.EstimatedHours
		c.EstimatedHours = &h
	}
	if t.ActualHours != nil {
		h := *t.ActualHours
		c.ActualHours = &h
	}
	return &c
}

// IsOverdue reports whether the task has a past due date and is not completed
func (t *Task) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && t.Status != types.TaskStatusCompleted
}

// Validate checks field constraints. A due date in the past is rejected only
// when checkDueDate is set, so that untouched overdue tasks stay editable.
func (t *Task) Validate(now time.Time, checkDueDate bool) error {
	title := strings.TrimSpace(t.Title)
	if title == "" || len([]rune(title)) > maxTitleLength {
		return goerr.Wrap(ErrValidation, "title must be between 1 and 255 characters")
	}
	if len([]rune(t.Description)) > maxDescriptionLength {
		return goerr.Wrap(ErrValidation, "description cannot exceed 2000 characters")
	}
	if !t.Status.IsValid() {
		return goerr.Wrap(ErrValidation, "invalid status", goerr.V(StatusKey, t.Status))
	}
	if !t.Priority.IsValid() {
		return goerr.Wrap(ErrValidation, "invalid priority", goerr.V(PriorityKey, t.Priority))
	}
	if checkDueDate && t.DueDate != nil && t.DueDate.Before(now) {
		return goerr.Wrap(ErrValidation, "due date must be in the future", goerr.V("due_date", t.DueDate))
	}
	if err := validateHours("estimated hours", t.EstimatedHours); err != nil {
		return err
	}
	if err := validateHours("actual hours", t.ActualHours); err != nil {
		return err
	}
	if t.CreatedBy == "" {
		return goerr.Wrap(ErrValidation, "task creator is required")
	}
	return nil
}

func validateHours(field string, h *float64) error {
	if h != nil && (*h < 0 || *h > maxHours) {
		return goerr.Wrap(ErrValidation, field+" must be between 0 and 999.99", goerr.V("value", *h))
	}
	return nil
}

// NormalizeTags trims tags and drops empty and duplicate entries
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || slices.Contains(out, tag) {
			continue
		}
		out = append(out, tag)
	}
	return out
}

// ApplyTaskTransition is the pre-commit transform every task store applies
// before writing next. prev is nil on create. It stamps completedAt when the
// task enters the completed state and clears it when the task leaves it.
func ApplyTaskTransition(prev, next *Task, now time.Time) {
	next.Status = next.Status.Normalize()
	next.Priority = next.Priority.Normalize()
	if next.Tags == nil {
		next.Tags = []string{}
	}

	if next.Status == types.TaskStatusCompleted {
		entering := prev == nil || prev.Status != types.TaskStatusCompleted
		if entering || next.CompletedAt == nil {
			t := now
			next.CompletedAt = &t
		}
	} else {
		next.CompletedAt = nil
	}

	if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}
	next.UpdatedAt = now
}
