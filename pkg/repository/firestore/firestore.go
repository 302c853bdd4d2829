package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/domain/interfaces"
)

// Collection names. Every name is prefixed when WithCollectionPrefix is set.
const (
	collUsers        = "users"
	collUserEmails   = "user_emails"
	collTasks        = "tasks"
	collDocuments    = "documents"
	collTaskCounters = "task_document_counters"
)

// DocumentsCollection is the base name of the document record collection
const DocumentsCollection = collDocuments

type Firestore struct {
	client           *firestore.Client
	collectionPrefix string
	now              func() time.Time

	user     *userRepository
	task     *taskRepository
	document *documentRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.collectionPrefix = prefix
	}
}

// WithClock replaces the clock used for timestamps
func WithClock(now func() time.Time) Option {
	return func(f *Firestore) {
		f.now = now
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID))
	}

	f := &Firestore{
		client: client,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
	for _, opt := range opts {
		opt(f)
	}

	f.user = &userRepository{f: f}
	f.task = &taskRepository{f: f}
	f.document = &documentRepository{f: f}
	return f, nil
}

func (f *Firestore) collection(name string) *firestore.CollectionRef {
	return f.client.Collection(CollectionName(f.collectionPrefix, name))
}

// CollectionName returns the stored name of a collection under prefix
func CollectionName(prefix, name string) string {
	if prefix != "" {
		return prefix + "_" + name
	}
	return name
}

func (f *Firestore) User() interfaces.UserRepository {
	return f.user
}

func (f *Firestore) Task() interfaces.TaskRepository {
	return f.task
}

func (f *Firestore) Document() interfaces.DocumentRepository {
	return f.document
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}
