package model

import "github.com/secmon-lab/tasklane/pkg/domain/types"

// CanAccessTask decides whether actor may perform op on task.
//
// Admins may do anything. Reading, updating and uploading documents is open
// to the creator and the assignee. Deleting and reassigning is reserved to
// the creator. Unknown operations are denied.
func CanAccessTask(actor Actor, task *Task, op types.TaskOp) bool {
	if task == nil || actor.IsZero() {
		return false
	}
	if actor.IsAdmin() {
		return true
	}

	switch op {
	case types.TaskOpRead, types.TaskOpUpdate, types.TaskOpUploadDocument:
		return actor.Is(task.CreatedBy) || actor.Is(task.AssignedTo)
	case types.TaskOpDelete, types.TaskOpAssign:
		return actor.Is(task.CreatedBy)
	default:
		return false
	}
}

// CanAccessDocument decides whether actor may perform op on doc, which must
// belong to task. Callers are expected to have rejected inactive documents as
// not found already.
func CanAccessDocument(actor Actor, doc *Document, task *Task, op types.DocumentOp) bool {
	if doc == nil || task == nil || actor.IsZero() || doc.TaskID != task.ID {
		return false
	}
	if actor.IsAdmin() {
		return true
	}

	switch op {
	case types.DocumentOpRead:
		return actor.Is(task.CreatedBy) || actor.Is(task.AssignedTo)
	case types.DocumentOpDelete:
		return actor.Is(doc.UploadedBy) || actor.Is(task.CreatedBy)
	default:
		return false
	}
}

// CanManageUser decides whether actor may perform op on the user identified
// by target. An admin can never delete or deactivate itself.
func CanManageUser(actor Actor, target types.UserID, op types.UserOp) bool {
	if actor.IsZero() {
		return false
	}

	switch op {
	case types.UserOpViewList, types.UserOpChangeRole:
		return actor.IsAdmin()
	case types.UserOpDelete, types.UserOpChangeActive:
		return actor.IsAdmin() && !actor.Is(target)
	case types.UserOpViewOne, types.UserOpUpdate, types.UserOpChangePassword:
		return actor.IsAdmin() || actor.Is(target)
	default:
		return false
	}
}
