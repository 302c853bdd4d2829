package model

import (
	"strings"
	"time"

	"github.com/secmon-lab/tasklane/pkg/domain/types"
)

// Scope is a notification audience: "task:{id}", "user:{id}" or "admins"
type Scope string

// AdminScope reaches every connected admin
const AdminScope Scope = "admins"

// TaskScope reaches subscribers that joined the task
func TaskScope(id types.TaskID) Scope {
	return Scope("task:" + id.String())
}

// UserScope reaches every connection of one user
func UserScope(id types.UserID) Scope {
	return Scope("user:" + id.String())
}

// UserOf returns the user ID of a user scope
func (s Scope) UserOf() (types.UserID, bool) {
	id, ok := strings.CutPrefix(string(s), "user:")
	return types.UserID(id), ok
}

// Notification is a committed change fanned out to subscribers. Task and
// User are authorization guards: a recipient must pass the read check on
// them at delivery time regardless of which scope matched.
type Notification struct {
	Event     types.EventKind `json:"event"`
	Scopes    []Scope         `json:"scopes"`
	Task      *Task           `json:"task,omitempty"`
	User      types.UserID    `json:"user,omitempty"`
	Payload   any             `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// Allows reports whether actor may receive the notification
func (n *Notification) Allows(actor Actor) bool {
	switch {
	case n.Task != nil:
		return CanAccessTask(actor, n.Task, types.TaskOpRead)
	case n.User != "":
		return CanManageUser(actor, n.User, types.UserOpViewOne)
	default:
		return actor.IsAdmin()
	}
}

// TaskAudience is the set of scopes whose members may read task
func TaskAudience(task *Task) []Scope {
	scopes := []Scope{TaskScope(task.ID), UserScope(task.CreatedBy), AdminScope}
	if task.AssignedTo != "" && task.AssignedTo != task.CreatedBy {
		scopes = append(scopes, UserScope(task.AssignedTo))
	}
	return scopes
}

// NewTaskNotification builds a notification guarded by the task snapshot
func NewTaskNotification(event types.EventKind, task *Task, payload any, now time.Time) *Notification {
	return &Notification{
		Event:     event,
		Scopes:    TaskAudience(task),
		Task:      task.Copy(),
		Payload:   payload,
		Timestamp: now,
	}
}

// NewUserNotification builds a notification for a change to a user record
func NewUserNotification(event types.EventKind, userID types.UserID, payload any, now time.Time) *Notification {
	return &Notification{
		Event:     event,
		Scopes:    []Scope{UserScope(userID), AdminScope},
		User:      userID,
		Payload:   payload,
		Timestamp: now,
	}
}
