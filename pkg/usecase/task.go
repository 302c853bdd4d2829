package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/domain/interfaces"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
)

type TaskUseCase struct {
	repo   interfaces.Repository
	events *publisher
	now    func() time.Time
}

func NewTaskUseCase(repo interfaces.Repository, events *publisher, now func() time.Time) *TaskUseCase {
	return &TaskUseCase{repo: repo, events: events, now: now}
}

// TaskInput carries the fields of a new task
type TaskInput struct {
	Title          string
	Description    string
	Status         types.TaskStatus
	Priority       types.TaskPriority
	DueDate        *time.Time
	AssignedTo     types.UserID
	EstimatedHours *float64
	ActualHours    *float64
	Tags           []string
}

// load fetches a task and checks op on it: existence first, then access
func (uc *TaskUseCase) load(ctx context.Context, actor model.Actor, id types.TaskID, op types.TaskOp) (*model.Task, error) {
	task, err := uc.repo.Task().Get(ctx, id)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, goerr.Wrap(ErrTaskNotFound, "task not found", goerr.V(TaskIDKey, id))
		}
		return nil, goerr.Wrap(err, "failed to get task", goerr.V(TaskIDKey, id))
	}
	if !model.CanAccessTask(actor, task, op) {
		return nil, goerr.Wrap(ErrForbidden, "access denied to task",
			goerr.V(TaskIDKey, id), goerr.V(UserIDKey, actor.ID), goerr.V("op", op))
	}
	return task, nil
}

func (uc *TaskUseCase) checkAssignee(ctx context.Context, id types.UserID) error {
	if id == "" {
		return nil
	}
	if _, err := uc.repo.User().Get(ctx, id); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return goerr.Wrap(ErrValidation, "assigned user not found", goerr.V(UserIDKey, id))
		}
		return goerr.Wrap(err, "failed to get assignee", goerr.V(UserIDKey, id))
	}
	return nil
}

// List returns one page of tasks. Non-admins only see tasks they created
// or are assigned to.
func (uc *TaskUseCase) List(ctx context.Context, actor model.Actor, filter model.TaskFilter) ([]*model.Task, model.Pagination, error) {
	if actor.IsZero() {
		return nil, model.Pagination{}, goerr.Wrap(ErrUnauthenticated, "actor is required")
	}

	page, err := filter.Page.Normalize(model.TaskSortFields, "createdAt")
	if err != nil {
		return nil, model.Pagination{}, err
	}
	filter.Page = page
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, model.Pagination{}, goerr.Wrap(ErrValidation, "invalid status filter", goerr.V(model.StatusKey, filter.Status))
	}
	if filter.Priority != "" && !filter.Priority.IsValid() {
		return nil, model.Pagination{}, goerr.Wrap(ErrValidation, "invalid priority filter", goerr.V(model.PriorityKey, filter.Priority))
	}

	filter.VisibleTo = ""
	if !actor.IsAdmin() {
		filter.VisibleTo = actor.ID
	}

	tasks, p, err := uc.repo.Task().List(ctx, filter, uc.now())
	if err != nil {
		return nil, model.Pagination{}, goerr.Wrap(err, "failed to list tasks")
	}
	return tasks, p, nil
}

func (uc *TaskUseCase) Get(ctx context.Context, actor model.Actor, id types.TaskID) (*model.Task, error) {
	return uc.load(ctx, actor, id, types.TaskOpRead)
}

// Create stores a new task owned by actor
func (uc *TaskUseCase) Create(ctx context.Context, actor model.Actor, in TaskInput) (*model.Task, error) {
	if actor.IsZero() {
		return nil, goerr.Wrap(ErrUnauthenticated, "actor is required")
	}
	now := uc.now()

	draft := &model.Task{
		Title:          in.Title,
		Description:    in.Description,
		Status:         in.Status,
		Priority:       in.Priority,
		DueDate:        in.DueDate,
		AssignedTo:     in.AssignedTo,
		CreatedBy:      actor.ID,
		EstimatedHours: in.EstimatedHours,
		ActualHours:    in.ActualHours,
		Tags:           model.NormalizeTags(in.Tags),
	}
	model.ApplyTaskTransition(nil, draft, now)
	if err := draft.Validate(now, true); err != nil {
		return nil, err
	}
	if err := uc.checkAssignee(ctx, draft.AssignedTo); err != nil {
		return nil, err
	}

	created, err := uc.repo.Task().Create(ctx, draft)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create task")
	}

	ns := []*model.Notification{model.NewTaskNotification(types.EventTaskCreated, created, created, now)}
	if created.AssignedTo != "" {
		ns = append(ns, model.NewTaskNotification(types.EventTaskAssigned, created, created, now))
	}
	uc.events.publish(ctx, ns...)

	return created, nil
}

// Update applies patch. Changing the assignee additionally needs the
// assign permission.
func (uc *TaskUseCase) Update(ctx context.Context, actor model.Actor, id types.TaskID, patch model.TaskPatch) (*model.Task, error) {
	task, err := uc.load(ctx, actor, id, types.TaskOpUpdate)
	if err != nil {
		return nil, err
	}

	reassigned := patch.ChangesAssignee(task)
	if reassigned && !model.CanAccessTask(actor, task, types.TaskOpAssign) {
		return nil, goerr.Wrap(ErrForbidden, "only the creator can reassign the task",
			goerr.V(TaskIDKey, id), goerr.V(UserIDKey, actor.ID))
	}

	now := uc.now()
	next := patch.Apply(task)
	model.ApplyTaskTransition(task, next, now)
	if err := next.Validate(now, patch.ChangesDueDate(task)); err != nil {
		return nil, err
	}
	if reassigned {
		if err := uc.checkAssignee(ctx, next.AssignedTo); err != nil {
			return nil, err
		}
	}

	updated, err := uc.repo.Task().Update(ctx, next)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, goerr.Wrap(ErrTaskNotFound, "task not found", goerr.V(TaskIDKey, id))
		}
		return nil, goerr.Wrap(err, "failed to update task", goerr.V(TaskIDKey, id))
	}

	ns := []*model.Notification{model.NewTaskNotification(types.EventTaskUpdated, updated, updated, now)}
	if reassigned && updated.AssignedTo != "" {
		ns = append(ns, model.NewTaskNotification(types.EventTaskAssigned, updated, updated, now))
	}
	uc.events.publish(ctx, ns...)

	return updated, nil
}

// Delete removes the task together with its document records
func (uc *TaskUseCase) Delete(ctx context.Context, actor model.Actor, id types.TaskID) error {
	task, err := uc.load(ctx, actor, id, types.TaskOpDelete)
	if err != nil {
		return err
	}

	if err := uc.repo.Task().Delete(ctx, id); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return goerr.Wrap(ErrTaskNotFound, "task not found", goerr.V(TaskIDKey, id))
		}
		return goerr.Wrap(err, "failed to delete task", goerr.V(TaskIDKey, id))
	}

	uc.events.publish(ctx, model.NewTaskNotification(types.EventTaskDeleted, task,
		map[string]types.TaskID{"id": task.ID}, uc.now()))
	return nil
}
