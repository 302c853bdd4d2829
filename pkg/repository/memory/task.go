package memory

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/domain/interfaces"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
)

type taskRepository struct {
	m *Memory
}

func (r *taskRepository) Create(ctx context.Context, t *model.Task) (*model.Task, error) {
	created := t.Copy()
	if created.ID == "" {
		created.ID = types.NewTaskID()
	}
	model.ApplyTaskTransition(nil, created, r.m.now())

	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	r.m.tasks[created.ID] = created
	return created.Copy(), nil
}

func (r *taskRepository) Get(ctx context.Context, id types.TaskID) (*model.Task, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	t, ok := r.m.tasks[id]
	if !ok {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "task not found", goerr.V(model.TaskIDKey, id))
	}
	return t.Copy(), nil
}

func (r *taskRepository) List(ctx context.Context, filter model.TaskFilter, now time.Time) ([]*model.Task, model.Pagination, error) {
	r.m.mu.RLock()
	matched := make([]*model.Task, 0, len(r.m.tasks))
	for _, t := range r.m.tasks {
		if filter.Match(t, now) {
			matched = append(matched, t.Copy())
		}
	}
	r.m.mu.RUnlock()

	model.SortTasks(matched, filter.Page.SortBy, filter.Page.SortDesc)
	page, p := model.Paginate(matched, filter.Page)
	return page, p, nil
}

func (r *taskRepository) Update(ctx context.Context, t *model.Task) (*model.Task, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	existing, ok := r.m.tasks[t.ID]
	if !ok {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "task not found", goerr.V(model.TaskIDKey, t.ID))
	}

	updated := t.Copy()
	updated.CreatedBy = existing.CreatedBy
	updated.CreatedAt = existing.CreatedAt
	model.ApplyTaskTransition(existing, updated, r.m.now())

	r.m.tasks[updated.ID] = updated
	return updated.Copy(), nil
}

func (r *taskRepository) Delete(ctx context.Context, id types.TaskID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.tasks[id]; !ok {
		return goerr.Wrap(interfaces.ErrNotFound, "task not found", goerr.V(model.TaskIDKey, id))
	}

	for docID, doc := range r.m.docs {
		if doc.TaskID == id {
			delete(r.m.docs, docID)
		}
	}
	delete(r.m.tasks, id)
	return nil
}

func (r *taskRepository) ClearAssignee(ctx context.Context, userID types.UserID) ([]*model.Task, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	now := r.m.now()
	var updated []*model.Task
	for id, t := range r.m.tasks {
		if t.AssignedTo != userID {
			continue
		}
		next := t.Copy()
		next.AssignedTo = ""
		model.ApplyTaskTransition(t, next, now)
		r.m.tasks[id] = next
		updated = append(updated, next.Copy())
	}
	return updated, nil
}
