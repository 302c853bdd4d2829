package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/domain/interfaces"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// admitMaxAttempts bounds retries of transactions contending on one
// task's counter
const admitMaxAttempts = 20

type documentRepository struct {
	f *Firestore
}

// documentCounter tracks the number of active documents of one task. It is
// only written inside the Admit and Deactivate transactions, so contending
// uploads on the same task conflict on this document and are retried.
type documentCounter struct {
	Active int64
}

func (r *documentRepository) documents() *firestore.CollectionRef {
	return r.f.collection(collDocuments)
}

func (r *documentRepository) counterRef(taskID types.TaskID) *firestore.DocumentRef {
	return r.f.collection(collTaskCounters).Doc(taskID.String())
}

func readCounter(tx *firestore.Transaction, ref *firestore.DocumentRef) (int, error) {
	snap, err := tx.Get(ref)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return 0, nil
		}
		return 0, goerr.Wrap(err, "failed to get document counter")
	}

	var c documentCounter
	if err := snap.DataTo(&c); err != nil {
		return 0, goerr.Wrap(err, "failed to decode document counter")
	}
	return int(c.Active), nil
}

func decodeDocument(snap *firestore.DocumentSnapshot) (*model.Document, error) {
	var d model.Document
	if err := snap.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to decode document", goerr.V("doc_id", snap.Ref.ID))
	}
	return &d, nil
}

func (r *documentRepository) Admit(ctx context.Context, taskID types.TaskID, docs []*model.Document) (model.Admission, []*model.Document, error) {
	taskRef := r.f.collection(collTasks).Doc(taskID.String())
	counterRef := r.counterRef(taskID)
	var (
		admission model.Admission
		stored    []*model.Document
	)

	err := r.f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		stored = nil
		if _, err := tx.Get(taskRef); err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(interfaces.ErrNotFound, "task not found", goerr.V(model.TaskIDKey, taskID))
			}
			return goerr.Wrap(err, "failed to get task", goerr.V(model.TaskIDKey, taskID))
		}

		current, err := readCounter(tx, counterRef)
		if err != nil {
			return err
		}

		admission = model.AdmitDocuments(len(docs), current)
		if !admission.Admitted || len(docs) == 0 {
			return nil
		}

		now := r.f.now()
		for _, d := range docs {
			if d.TaskID != taskID {
				return goerr.New("document belongs to another task",
					goerr.V(model.TaskIDKey, taskID), goerr.V("document_task_id", d.TaskID))
			}
			created := *d
			created.IsActive = true
			created.CreatedAt = now
			created.UpdatedAt = now
			if err := tx.Create(r.documents().Doc(created.ID.String()), &created); err != nil {
				return goerr.Wrap(err, "failed to create document record", goerr.V("id", created.ID))
			}
			stored = append(stored, &created)
		}
		return tx.Set(counterRef, documentCounter{Active: int64(current + len(docs))})
	}, firestore.MaxAttempts(admitMaxAttempts))
	if err != nil {
		return model.Admission{}, nil, goerr.Wrap(err, "failed to admit documents", goerr.V(model.TaskIDKey, taskID))
	}

	return admission, stored, nil
}

func (r *documentRepository) Get(ctx context.Context, id types.DocumentID) (*model.Document, error) {
	snap, err := r.documents().Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(interfaces.ErrNotFound, "document not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get document", goerr.V("id", id))
	}
	return decodeDocument(snap)
}

func (r *documentRepository) ListActiveByTask(ctx context.Context, taskID types.TaskID) ([]*model.Document, error) {
	iter := r.documents().
		Where("TaskID", "==", taskID.String()).
		Where("IsActive", "==", true).
		OrderBy("CreatedAt", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	var docs []*model.Document
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate documents", goerr.V(model.TaskIDKey, taskID))
		}
		d, err := decodeDocument(snap)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func (r *documentRepository) CountActive(ctx context.Context, taskID types.TaskID) (int, error) {
	snap, err := r.counterRef(taskID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return 0, nil
		}
		return 0, goerr.Wrap(err, "failed to get document counter", goerr.V(model.TaskIDKey, taskID))
	}

	var c documentCounter
	if err := snap.DataTo(&c); err != nil {
		return 0, goerr.Wrap(err, "failed to decode document counter", goerr.V(model.TaskIDKey, taskID))
	}
	return int(c.Active), nil
}

func (r *documentRepository) Deactivate(ctx context.Context, id types.DocumentID) (*model.Document, error) {
	ref := r.documents().Doc(id.String())
	var updated *model.Document

	err := r.f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(interfaces.ErrNotFound, "document not found", goerr.V("id", id))
			}
			return goerr.Wrap(err, "failed to get document", goerr.V("id", id))
		}
		d, err := decodeDocument(snap)
		if err != nil {
			return err
		}
		if !d.IsActive {
			return goerr.Wrap(interfaces.ErrNotFound, "document not found", goerr.V("id", id))
		}

		counterRef := r.counterRef(d.TaskID)
		current, err := readCounter(tx, counterRef)
		if err != nil {
			return err
		}

		d.IsActive = false
		d.UpdatedAt = r.f.now()
		if err := tx.Set(ref, d); err != nil {
			return goerr.Wrap(err, "failed to deactivate document", goerr.V("id", id))
		}
		updated = d
		return tx.Set(counterRef, documentCounter{Active: int64(max(current-1, 0))})
	}, firestore.MaxAttempts(admitMaxAttempts))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to deactivate document", goerr.V("id", id))
	}
	return updated, nil
}

func (r *documentRepository) IncrementDownloadCount(ctx context.Context, id types.DocumentID) (*model.Document, error) {
	ref := r.documents().Doc(id.String())
	var updated *model.Document

	err := r.f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(interfaces.ErrNotFound, "document not found", goerr.V("id", id))
			}
			return goerr.Wrap(err, "failed to get document", goerr.V("id", id))
		}
		d, err := decodeDocument(snap)
		if err != nil {
			return err
		}
		if !d.IsActive {
			return goerr.Wrap(interfaces.ErrNotFound, "document not found", goerr.V("id", id))
		}

		d.DownloadCount++
		updated = d
		return tx.Update(ref, []firestore.Update{{Path: "DownloadCount", Value: firestore.Increment(1)}})
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to count download", goerr.V("id", id))
	}
	return updated, nil
}
