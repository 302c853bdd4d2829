package interfaces

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
)

// Errors every repository backend wraps so that callers can tell them apart
var (
	ErrNotFound   = goerr.New("not found")
	ErrEmailTaken = goerr.New("email already registered")
)

// Repository defines the interface for data persistence
type Repository interface {
	User() UserRepository
	Task() TaskRepository
	Document() DocumentRepository
	Close() error
}

// UserRepository stores user accounts. Every write applies
// model.PrepareUser before persisting.
type UserRepository interface {
	// Create inserts a new user. It fails with ErrEmailTaken when the
	// normalized email is already registered.
	Create(ctx context.Context, u *model.User) (*model.User, error)

	Get(ctx context.Context, id types.UserID) (*model.User, error)

	// GetByEmail looks up a user by normalized email
	GetByEmail(ctx context.Context, email string) (*model.User, error)

	// List returns one page of users matching filter. filter.Page must be
	// normalized.
	List(ctx context.Context, filter model.UserFilter) ([]*model.User, model.Pagination, error)

	// Update loads the user, applies mutate to it and stores the result in
	// one atomic step, so mutate always sees the latest record. An error
	// from mutate aborts the write and is returned wrapped. Changing the
	// email to one held by another user fails with ErrEmailTaken.
	Update(ctx context.Context, id types.UserID, mutate func(u *model.User) error) (*model.User, error)

	Delete(ctx context.Context, id types.UserID) error
}

// TaskRepository stores tasks. Every write applies model.ApplyTaskTransition
// before persisting.
type TaskRepository interface {
	Create(ctx context.Context, t *model.Task) (*model.Task, error)

	Get(ctx context.Context, id types.TaskID) (*model.Task, error)

	// List returns one page of tasks matching filter. filter.Page must be
	// normalized.
	List(ctx context.Context, filter model.TaskFilter, now time.Time) ([]*model.Task, model.Pagination, error)

	Update(ctx context.Context, t *model.Task) (*model.Task, error)

	// Delete removes the task together with all of its document records,
	// active or not. Stored bytes are left to the orphan sweeper.
	Delete(ctx context.Context, id types.TaskID) error

	// ClearAssignee unassigns every task assigned to the user and returns
	// the updated tasks
	ClearAssignee(ctx context.Context, userID types.UserID) ([]*model.Task, error)
}

// DocumentRepository stores document records. Admit and Deactivate are the
// only operations that change a task's active document count, and both are
// serialized per task.
type DocumentRepository interface {
	// Admit counts the task's active documents, decides with
	// model.AdmitDocuments and inserts every doc only if the whole batch is
	// admitted, in one atomic step per task. The stored records are returned
	// in the order of docs. It fails with ErrNotFound when the task does not
	// exist.
	Admit(ctx context.Context, taskID types.TaskID, docs []*model.Document) (model.Admission, []*model.Document, error)

	// Get returns a document whether active or not
	Get(ctx context.Context, id types.DocumentID) (*model.Document, error)

	// ListActiveByTask returns the task's active documents, newest first
	ListActiveByTask(ctx context.Context, taskID types.TaskID) ([]*model.Document, error)

	CountActive(ctx context.Context, taskID types.TaskID) (int, error)

	// Deactivate soft-deletes an active document. It fails with ErrNotFound
	// when the document is missing or already inactive.
	Deactivate(ctx context.Context, id types.DocumentID) (*model.Document, error)

	// IncrementDownloadCount bumps the counter of an active document
	IncrementDownloadCount(ctx context.Context, id types.DocumentID) (*model.Document, error)
}
