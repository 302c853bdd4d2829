package memory

import (
	"context"
	"slices"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/domain/interfaces"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
)

type documentRepository struct {
	m *Memory
}

func copyDocument(d *model.Document) *model.Document {
	c := *d
	return &c
}

// countActive must be called with the lock held
func (r *documentRepository) countActive(taskID types.TaskID) int {
	n := 0
	for _, d := range r.m.docs {
		if d.TaskID == taskID && d.IsActive {
			n++
		}
	}
	return n
}

func (r *documentRepository) Admit(ctx context.Context, taskID types.TaskID, docs []*model.Document) (model.Admission, []*model.Document, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.tasks[taskID]; !ok {
		return model.Admission{}, nil, goerr.Wrap(interfaces.ErrNotFound, "task not found", goerr.V(model.TaskIDKey, taskID))
	}

	admission := model.AdmitDocuments(len(docs), r.countActive(taskID))
	if !admission.Admitted {
		return admission, nil, nil
	}

	now := r.m.now()
	for _, d := range docs {
		if d.TaskID != taskID {
			return model.Admission{}, nil, goerr.New("document belongs to another task",
				goerr.V(model.TaskIDKey, taskID), goerr.V("document_task_id", d.TaskID))
		}
	}
	stored := make([]*model.Document, 0, len(docs))
	for _, d := range docs {
		created := copyDocument(d)
		created.IsActive = true
		created.CreatedAt = now
		created.UpdatedAt = now
		r.m.docs[created.ID] = created
		stored = append(stored, copyDocument(created))
	}
	return admission, stored, nil
}

func (r *documentRepository) Get(ctx context.Context, id types.DocumentID) (*model.Document, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	d, ok := r.m.docs[id]
	if !ok {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "document not found", goerr.V("id", id))
	}
	return copyDocument(d), nil
}

func (r *documentRepository) ListActiveByTask(ctx context.Context, taskID types.TaskID) ([]*model.Document, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	var docs []*model.Document
	for _, d := range r.m.docs {
		if d.TaskID == taskID && d.IsActive {
			docs = append(docs, copyDocument(d))
		}
	}
	slices.SortFunc(docs, func(a, b *model.Document) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return docs, nil
}

func (r *documentRepository) CountActive(ctx context.Context, taskID types.TaskID) (int, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return r.countActive(taskID), nil
}

func (r *documentRepository) Deactivate(ctx context.Context, id types.DocumentID) (*model.Document, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	d, ok := r.m.docs[id]
	if !ok || !d.IsActive {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "document not found", goerr.V("id", id))
	}
	d.IsActive = false
	d.UpdatedAt = r.m.now()
	return copyDocument(d), nil
}

func (r *documentRepository) IncrementDownloadCount(ctx context.Context, id types.DocumentID) (*model.Document, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	d, ok := r.m.docs[id]
	if !ok || !d.IsActive {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "document not found", goerr.V("id", id))
	}
	d.DownloadCount++
	return copyDocument(d), nil
}
