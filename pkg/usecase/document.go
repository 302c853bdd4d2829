package usecase

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/domain/interfaces"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
	"github.com/secmon-lab/tasklane/pkg/utils/safe"
	"golang.org/x/sync/errgroup"
)

const stageConcurrency = 4

type DocumentUseCase struct {
	repo   interfaces.Repository
	store  interfaces.FileStore
	events *publisher
	policy model.UploadPolicy
	now    func() time.Time
}

func NewDocumentUseCase(repo interfaces.Repository, store interfaces.FileStore, events *publisher, policy model.UploadPolicy, now func() time.Time) *DocumentUseCase {
	return &DocumentUseCase{repo: repo, store: store, events: events, policy: policy, now: now}
}

// UploadFile is one file of an upload request
type UploadFile struct {
	Name     string
	MimeType string
	Size     int64
	Content  io.Reader
}

// loadTask resolves the task and checks op on it
func (uc *DocumentUseCase) loadTask(ctx context.Context, actor model.Actor, id types.TaskID, op types.TaskOp) (*model.Task, error) {
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

// loadDocument resolves an active document with its task and checks op.
// Inactive documents and documents whose task is gone are not found.
func (uc *DocumentUseCase) loadDocument(ctx context.Context, actor model.Actor, id types.DocumentID, op types.DocumentOp) (*model.Document, *model.Task, error) {
	notFound := func() error {
		return goerr.Wrap(ErrDocumentNotFound, "document not found", goerr.V(DocumentIDKey, id))
	}

	doc, err := uc.repo.Document().Get(ctx, id)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, nil, notFound()
		}
		return nil, nil, goerr.Wrap(err, "failed to get document", goerr.V(DocumentIDKey, id))
	}
	if !doc.IsActive {
		return nil, nil, notFound()
	}

	task, err := uc.repo.Task().Get(ctx, doc.TaskID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, nil, notFound()
		}
		return nil, nil, goerr.Wrap(err, "failed to get task", goerr.V(TaskIDKey, doc.TaskID))
	}

	if !model.CanAccessDocument(actor, doc, task, op) {
		return nil, nil, goerr.Wrap(ErrForbidden, "access denied to document",
			goerr.V(DocumentIDKey, id), goerr.V(UserIDKey, actor.ID), goerr.V("op", op))
	}
	return doc, task, nil
}

// Upload stores a batch of files on a task. The batch is admitted as a
// whole or not at all; on rejection every staged byte is removed again.
func (uc *DocumentUseCase) Upload(ctx context.Context, actor model.Actor, taskID types.TaskID, files []UploadFile) ([]*model.Document, error) {
	task, err := uc.loadTask(ctx, actor, taskID, types.TaskOpUploadDocument)
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		return nil, goerr.Wrap(ErrValidation, "no files uploaded")
	}
	if len(files) > uc.policy.MaxFilesPerRequest {
		return nil, goerr.Wrap(ErrValidation, "too many files in one request",
			goerr.V("count", len(files)), goerr.V("limit", uc.policy.MaxFilesPerRequest))
	}
	for _, f := range files {
		if err := uc.policy.CheckFile(f.Name, f.MimeType, f.Size); err != nil {
			return nil, err
		}
	}

	docs := make([]*model.Document, len(files))
	for i, f := range files {
		id := types.NewDocumentID()
		docs[i] = &model.Document{
			ID:           id,
			TaskID:       taskID,
			UploadedBy:   actor.ID,
			OriginalName: f.Name,
			StorageKey:   model.DocumentStorageKey(taskID, id),
			MimeType:     f.MimeType,
			SizeBytes:    f.Size,
		}
	}

	if err := uc.stage(ctx, docs, files); err != nil {
		uc.purge(ctx, docs)
		return nil, err
	}

	admission, created, err := uc.repo.Document().Admit(ctx, taskID, docs)
	if err != nil {
		uc.purge(ctx, docs)
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, goerr.Wrap(ErrTaskNotFound, "task not found", goerr.V(TaskIDKey, taskID))
		}
		return nil, goerr.Wrap(err, "failed to admit documents", goerr.V(TaskIDKey, taskID))
	}
	if !admission.Admitted {
		uc.purge(ctx, docs)
		return nil, goerr.Wrap(&QuotaExceededError{AllowedCount: admission.AllowedCount},
			"document quota exceeded", goerr.V(TaskIDKey, taskID), goerr.V("incoming", len(docs)))
	}

	uc.events.publish(ctx, model.NewTaskNotification(types.EventDocumentUploaded, task, created, uc.now()))
	return created, nil
}

// stage writes every file to the store before the quota decision
func (uc *DocumentUseCase) stage(ctx context.Context, docs []*model.Document, files []UploadFile) error {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(stageConcurrency)

	for i := range docs {
		doc, file := docs[i], files[i]
		eg.Go(func() error {
			if err := uc.store.Put(egCtx, doc.StorageKey, file.Content, doc.MimeType); err != nil {
				return goerr.Wrap(err, "failed to stage document",
					goerr.V(DocumentIDKey, doc.ID), goerr.V(model.FileNameKey, doc.OriginalName))
			}
			return nil
		})
	}
	return eg.Wait()
}

// purge removes staged bytes. Every key is attempted even when the request
// was cancelled, and failures are logged for the orphan sweeper to finish.
func (uc *DocumentUseCase) purge(ctx context.Context, docs []*model.Document) {
	ctx = context.WithoutCancel(ctx)

	var eg errgroup.Group
	eg.SetLimit(stageConcurrency)
	errs := make([]error, len(docs))
	for i, doc := range docs {
		eg.Go(func() error {
			if err := uc.store.Delete(ctx, doc.StorageKey); err != nil {
				errs[i] = goerr.Wrap(err, "failed to purge staged document", goerr.V("key", doc.StorageKey))
			}
			return nil
		})
	}
	_ = eg.Wait()

	safe.Do(ctx, "purge staged documents", func() error {
		return errors.Join(errs...)
	})
}

// ListByTask returns the active documents of a task, newest first
func (uc *DocumentUseCase) ListByTask(ctx context.Context, actor model.Actor, taskID types.TaskID) ([]*model.Document, error) {
	if _, err := uc.loadTask(ctx, actor, taskID, types.TaskOpRead); err != nil {
		return nil, err
	}

	docs, err := uc.repo.Document().ListActiveByTask(ctx, taskID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list documents", goerr.V(TaskIDKey, taskID))
	}
	return docs, nil
}

// Open returns a document and a reader of its bytes. A download is counted;
// an inline view is not.
func (uc *DocumentUseCase) Open(ctx context.Context, actor model.Actor, id types.DocumentID, mode types.OpenMode) (*model.Document, io.ReadCloser, error) {
	doc, _, err := uc.loadDocument(ctx, actor, id, types.DocumentOpRead)
	if err != nil {
		return nil, nil, err
	}

	rc, err := uc.store.Open(ctx, doc.StorageKey)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, nil, goerr.Wrap(ErrDocumentNotFound, "document file not found on server",
				goerr.V(DocumentIDKey, id))
		}
		return nil, nil, goerr.Wrap(err, "failed to open document", goerr.V(DocumentIDKey, id))
	}

	if mode == types.OpenModeDownload {
		counted, err := uc.repo.Document().IncrementDownloadCount(ctx, id)
		if err != nil {
			safe.Close(ctx, rc)
			if errors.Is(err, interfaces.ErrNotFound) {
				return nil, nil, goerr.Wrap(ErrDocumentNotFound, "document not found", goerr.V(DocumentIDKey, id))
			}
			return nil, nil, goerr.Wrap(err, "failed to count download", goerr.V(DocumentIDKey, id))
		}
		doc = counted
	}

	return doc, rc, nil
}

// Delete soft deletes a document, which frees its quota slot. The bytes
// are kept.
func (uc *DocumentUseCase) Delete(ctx context.Context, actor model.Actor, id types.DocumentID) error {
	_, task, err := uc.loadDocument(ctx, actor, id, types.DocumentOpDelete)
	if err != nil {
		return err
	}

	deleted, err := uc.repo.Document().Deactivate(ctx, id)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return goerr.Wrap(ErrDocumentNotFound, "document not found", goerr.V(DocumentIDKey, id))
		}
		return goerr.Wrap(err, "failed to delete document", goerr.V(DocumentIDKey, id))
	}

	uc.events.publish(ctx, model.NewTaskNotification(types.EventDocumentDeleted, task, deleted, uc.now()))
	return nil
}
