package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/domain/interfaces"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
)

type documentRepository struct {
	p *Postgres
}

const documentColumns = `id, task_id, uploaded_by, original_name, storage_key, mime_type,
	size_bytes, download_count, is_active, created_at, updated_at`

func scanDocument(row pgx.Row) (*model.Document, error) {
	var d model.Document
	err := row.Scan(&d.ID, &d.TaskID, &d.UploadedBy, &d.OriginalName, &d.StorageKey, &d.MimeType,
		&d.SizeBytes, &d.DownloadCount, &d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// lockTask takes the row lock every quota decision for the task waits on
func lockTask(ctx context.Context, tx pgx.Tx, taskID types.TaskID) error {
	var id string
	err := tx.QueryRow(ctx, `SELECT id FROM tasks WHERE id = $1 FOR UPDATE`, taskID.String()).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return goerr.Wrap(interfaces.ErrNotFound, "task not found", goerr.V(model.TaskIDKey, taskID))
		}
		return goerr.Wrap(err, "failed to lock task", goerr.V(model.TaskIDKey, taskID))
	}
	return nil
}

func countActive(ctx context.Context, q interface {
	QueryRow(context.Context, string, ...any) pgx.Row
}, taskID types.TaskID) (int, error) {
	var n int
	err := q.QueryRow(ctx, `SELECT count(*) FROM documents WHERE task_id = $1 AND is_active`, taskID.String()).Scan(&n)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to count documents", goerr.V(model.TaskIDKey, taskID))
	}
	return n, nil
}

func (r *documentRepository) Admit(ctx context.Context, taskID types.TaskID, docs []*model.Document) (model.Admission, []*model.Document, error) {
	var (
		admission model.Admission
		stored    []*model.Document
	)

	err := r.p.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockTask(ctx, tx, taskID); err != nil {
			return err
		}
		current, err := countActive(ctx, tx, taskID)
		if err != nil {
			return err
		}

		admission = model.AdmitDocuments(len(docs), current)
		if !admission.Admitted || len(docs) == 0 {
			return nil
		}

		now := r.p.now()
		batch := &pgx.Batch{}
		for _, d := range docs {
			if d.TaskID != taskID {
				return goerr.New("document belongs to another task",
					goerr.V(model.TaskIDKey, taskID), goerr.V("document_task_id", d.TaskID))
			}
			batch.Queue(`INSERT INTO documents (`+documentColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, $9, $9)
				RETURNING `+documentColumns,
				d.ID.String(), taskID.String(), d.UploadedBy.String(), d.OriginalName, d.StorageKey,
				d.MimeType, d.SizeBytes, d.DownloadCount, now)
		}

		results := tx.SendBatch(ctx, batch)
		for range docs {
			d, err := scanDocument(results.QueryRow())
			if err != nil {
				_ = results.Close()
				return goerr.Wrap(err, "failed to insert documents", goerr.V(model.TaskIDKey, taskID))
			}
			stored = append(stored, d)
		}
		if err := results.Close(); err != nil {
			return goerr.Wrap(err, "failed to insert documents", goerr.V(model.TaskIDKey, taskID))
		}
		return nil
	})
	if err != nil {
		return model.Admission{}, nil, err
	}
	return admission, stored, nil
}

func (r *documentRepository) Get(ctx context.Context, id types.DocumentID) (*model.Document, error) {
	d, err := scanDocument(r.p.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, goerr.Wrap(interfaces.ErrNotFound, "document not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get document", goerr.V("id", id))
	}
	return d, nil
}

func (r *documentRepository) ListActiveByTask(ctx context.Context, taskID types.TaskID) ([]*model.Document, error) {
	rows, err := r.p.pool.Query(ctx, `SELECT `+documentColumns+` FROM documents
		WHERE task_id = $1 AND is_active
		ORDER BY created_at DESC, id DESC`, taskID.String())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list documents", goerr.V(model.TaskIDKey, taskID))
	}
	docs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.Document, error) {
		return scanDocument(row)
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to scan documents", goerr.V(model.TaskIDKey, taskID))
	}
	return docs, nil
}

func (r *documentRepository) CountActive(ctx context.Context, taskID types.TaskID) (int, error) {
	return countActive(ctx, r.p.pool, taskID)
}

func (r *documentRepository) Deactivate(ctx context.Context, id types.DocumentID) (*model.Document, error) {
	existing, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var updated *model.Document
	err = r.p.inTx(ctx, func(tx pgx.Tx) error {
		if err := lockTask(ctx, tx, existing.TaskID); err != nil {
			return err
		}

		d, err := scanDocument(tx.QueryRow(ctx, `UPDATE documents SET is_active = FALSE, updated_at = $2
			WHERE id = $1 AND is_active
			RETURNING `+documentColumns, id.String(), r.p.now()))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return goerr.Wrap(interfaces.ErrNotFound, "document not found", goerr.V("id", id))
			}
			return goerr.Wrap(err, "failed to deactivate document", goerr.V("id", id))
		}
		updated = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *documentRepository) IncrementDownloadCount(ctx context.Context, id types.DocumentID) (*model.Document, error) {
	d, err := scanDocument(r.p.pool.QueryRow(ctx, `UPDATE documents SET download_count = download_count + 1
		WHERE id = $1 AND is_active
		RETURNING `+documentColumns, id.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, goerr.Wrap(interfaces.ErrNotFound, "document not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to count download", goerr.V("id", id))
	}
	return d, nil
}
