package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/tasklane/pkg/domain/interfaces"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
	"github.com/secmon-lab/tasklane/pkg/repository/memory"
	"github.com/secmon-lab/tasklane/pkg/service/storage"
	"github.com/secmon-lab/tasklane/pkg/usecase"
)

// recorder captures notifications and disconnects
type recorder struct {
	events chan *model.Notification

	mu           sync.Mutex
	disconnected []types.UserID
}

func newRecorder() *recorder {
	return &recorder{events: make(chan *model.Notification, 64)}
}

func (r *recorder) Notify(_ context.Context, n *model.Notification) error {
	r.events <- n
	return nil
}

func (r *recorder) Disconnect(_ context.Context, userID types.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnected = append(r.disconnected, userID)
}

func (r *recorder) wasDisconnected(id types.UserID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.disconnected {
		if d == id {
			return true
		}
	}
	return false
}

// waitFor returns the next notification of kind, skipping others
func (r *recorder) waitFor(t *testing.T, kind types.EventKind) *model.Notification {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case n := <-r.events:
			if n.Event == kind {
				return n
			}
		case <-timeout:
			t.Fatalf("no %s notification", kind)
			return nil
		}
	}
}

type fixture struct {
	uc    *usecase.UseCases
	repo  *memory.Memory
	store *storage.Memory
	rec   *recorder
	now   time.Time
	opts  []usecase.Option
}

func setup(t *testing.T, opts ...usecase.Option) *fixture {
	t.Helper()
	f := &fixture{
		repo:  memory.New(),
		store: storage.NewMemory(),
		rec:   newRecorder(),
		now:   time.Now().UTC(),
	}
	base := []usecase.Option{
		usecase.WithFileStore(f.store),
		usecase.WithNotifier(f.rec),
		usecase.WithAuthConfig(usecase.AuthConfig{
			Secret:          []byte("test-secret-test-secret-test-sec"),
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: time.Hour,
		}),
	}
	f.opts = append(base, opts...)
	f.uc = usecase.New(f.repo, f.opts...)
	return f
}

// over builds use cases with the fixture's options on top of repo
func (f *fixture) over(repo interfaces.Repository) *usecase.UseCases {
	return usecase.New(repo, f.opts...)
}

// user stores an account with a placeholder hash so that tests not about
// passwords skip bcrypt
func (f *fixture) user(t *testing.T, name string, role types.Role) model.Actor {
	t.Helper()
	u, err := f.repo.User().Create(context.Background(), &model.User{
		ID:           types.NewUserID(),
		Email:        name + "@example.com",
		FirstName:    name,
		LastName:     "Test",
		Role:         role,
		IsActive:     true,
		PasswordHash: "placeholder",
	})
	gt.NoError(t, err).Required()
	return model.ActorOf(u)
}

func (f *fixture) task(t *testing.T, creator model.Actor, assignee types.UserID) *model.Task {
	t.Helper()
	task, err := f.uc.Task.Create(context.Background(), creator, usecase.TaskInput{
		Title:      "write report",
		AssignedTo: assignee,
	})
	gt.NoError(t, err).Required()
	return task
}
