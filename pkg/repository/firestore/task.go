package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/domain/interfaces"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type taskRepository struct {
	f *Firestore
}

func (r *taskRepository) tasks() *firestore.CollectionRef {
	return r.f.collection(collTasks)
}

func decodeTask(snap *firestore.DocumentSnapshot) (*model.Task, error) {
	var t model.Task
	if err := snap.DataTo(&t); err != nil {
		return nil, goerr.Wrap(err, "failed to decode task", goerr.V("doc_id", snap.Ref.ID))
	}
	return &t, nil
}

func (r *taskRepository) Create(ctx context.Context, t *model.Task) (*model.Task, error) {
	created := t.Copy()
	if created.ID == "" {
		created.ID = types.NewTaskID()
	}
	model.ApplyTaskTransition(nil, created, r.f.now())

	if _, err := r.tasks().Doc(created.ID.String()).Create(ctx, created); err != nil {
		return nil, goerr.Wrap(err, "failed to create task", goerr.V(model.TaskIDKey, created.ID))
	}
	return created, nil
}

func (r *taskRepository) Get(ctx context.Context, id types.TaskID) (*model.Task, error) {
	snap, err := r.tasks().Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(interfaces.ErrNotFound, "task not found", goerr.V(model.TaskIDKey, id))
		}
		return nil, goerr.Wrap(err, "failed to get task", goerr.V(model.TaskIDKey, id))
	}
	return decodeTask(snap)
}

// List narrows the scan with equality filters Firestore can serve and
// applies the rest of the filter in process. A non-admin listing is the
// union of the created-by and assigned-to queries.
func (r *taskRepository) List(ctx context.Context, filter model.TaskFilter, now time.Time) ([]*model.Task, model.Pagination, error) {
	base := r.tasks().Query
	if filter.Status != "" {
		base = base.Where("Status", "==", string(filter.Status))
	}
	if filter.Priority != "" {
		base = base.Where("Priority", "==", string(filter.Priority))
	}

	queries := []firestore.Query{base}
	if filter.VisibleTo != "" {
		queries = []firestore.Query{
			base.Where("CreatedBy", "==", filter.VisibleTo.String()),
			base.Where("AssignedTo", "==", filter.VisibleTo.String()),
		}
	}

	seen := make(map[types.TaskID]struct{})
	var tasks []*model.Task
	for _, q := range queries {
		iter := q.Documents(ctx)
		for {
			snap, err := iter.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				iter.Stop()
				return nil, model.Pagination{}, goerr.Wrap(err, "failed to iterate tasks")
			}
			t, err := decodeTask(snap)
			if err != nil {
				iter.Stop()
				return nil, model.Pagination{}, err
			}
			if _, dup := seen[t.ID]; dup || !filter.Match(t, now) {
				continue
			}
			seen[t.ID] = struct{}{}
			tasks = append(tasks, t)
		}
		iter.Stop()
	}

	model.SortTasks(tasks, filter.Page.SortBy, filter.Page.SortDesc)
	page, p := model.Paginate(tasks, filter.Page)
	return page, p, nil
}

func (r *taskRepository) Update(ctx context.Context, t *model.Task) (*model.Task, error) {
	ref := r.tasks().Doc(t.ID.String())
	var updated *model.Task

	err := r.f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(interfaces.ErrNotFound, "task not found", goerr.V(model.TaskIDKey, t.ID))
			}
			return goerr.Wrap(err, "failed to get task", goerr.V(model.TaskIDKey, t.ID))
		}
		existing, err := decodeTask(snap)
		if err != nil {
			return err
		}

		updated = t.Copy()
		updated.CreatedBy = existing.CreatedBy
		updated.CreatedAt = existing.CreatedAt
		model.ApplyTaskTransition(existing, updated, r.f.now())
		return tx.Set(ref, updated)
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to update task", goerr.V(model.TaskIDKey, t.ID))
	}
	return updated, nil
}

func (r *taskRepository) Delete(ctx context.Context, id types.TaskID) error {
	ref := r.tasks().Doc(id.String())
	counterRef := r.f.collection(collTaskCounters).Doc(id.String())
	docsQuery := r.f.collection(collDocuments).Where("TaskID", "==", id.String())

	return r.f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(interfaces.ErrNotFound, "task not found", goerr.V(model.TaskIDKey, id))
			}
			return goerr.Wrap(err, "failed to get task", goerr.V(model.TaskIDKey, id))
		}

		snaps, err := tx.Documents(docsQuery).GetAll()
		if err != nil {
			return goerr.Wrap(err, "failed to list task documents", goerr.V(model.TaskIDKey, id))
		}

		for _, snap := range snaps {
			if err := tx.Delete(snap.Ref); err != nil {
				return goerr.Wrap(err, "failed to delete document record", goerr.V("doc_id", snap.Ref.ID))
			}
		}
		if err := tx.Delete(counterRef); err != nil {
			return goerr.Wrap(err, "failed to delete document counter", goerr.V(model.TaskIDKey, id))
		}
		return tx.Delete(ref)
	})
}

func (r *taskRepository) ClearAssignee(ctx context.Context, userID types.UserID) ([]*model.Task, error) {
	iter := r.tasks().Where("AssignedTo", "==", userID.String()).Documents(ctx)
	snaps, err := iter.GetAll()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list assigned tasks", goerr.V("user_id", userID))
	}

	var updated []*model.Task
	for _, snap := range snaps {
		t, err := decodeTask(snap)
		if err != nil {
			return nil, err
		}
		t.AssignedTo = ""
		u, err := r.Update(ctx, t)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to unassign task", goerr.V(model.TaskIDKey, t.ID))
		}
		updated = append(updated, u)
	}
	return updated, nil
}
