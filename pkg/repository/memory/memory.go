package memory

import (
	"sync"
	"time"

	"github.com/secmon-lab/tasklane/pkg/domain/interfaces"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
)

// Memory keeps every record in process. A single lock guards all maps, which
// also makes it the serialization point for document admission.
type Memory struct {
	mu     sync.RWMutex
	users  map[types.UserID]*model.User
	emails map[string]types.UserID
	tasks  map[types.TaskID]*model.Task
	docs   map[types.DocumentID]*model.Document
	now    func() time.Time

	user     *userRepository
	task     *taskRepository
	document *documentRepository
}

var _ interfaces.Repository = &Memory{}

type Option func(*Memory)

// WithClock replaces the clock used for timestamps
func WithClock(now func() time.Time) Option {
	return func(m *Memory) {
		m.now = now
	}
}

func New(opts ...Option) *Memory {
	m := &Memory{
		users:  make(map[types.UserID]*model.User),
		emails: make(map[string]types.UserID),
		tasks:  make(map[types.TaskID]*model.Task),
		docs:   make(map[types.DocumentID]*model.Document),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}

	m.user = &userRepository{m: m}
	m.task = &taskRepository{m: m}
	m.document = &documentRepository{m: m}
	return m
}

func (m *Memory) User() interfaces.UserRepository {
	return m.user
}

func (m *Memory) Task() interfaces.TaskRepository {
	return m.task
}

func (m *Memory) Document() interfaces.DocumentRepository {
	return m.document
}

func (m *Memory) Close() error {
	return nil
}
