// Package notifier fans committed changes out to websocket subscribers.
package notifier

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/domain/interfaces"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
	"github.com/secmon-lab/tasklane/pkg/utils/logging"
)

const defaultBufferSize = 32

var (
	ErrTaskNotFound = goerr.New("task not found")
	ErrForbidden    = goerr.New("not allowed to join task")
	ErrClosed       = goerr.New("subscription closed")
)

// TaskLookup resolves the current state of a task when a subscriber asks to
// join its room
type TaskLookup interface {
	Get(ctx context.Context, id types.TaskID) (*model.Task, error)
}

// Hub keeps the subscribers of this process and routes notifications to
// them by scope
type Hub struct {
	tasks      TaskLookup
	bufferSize int

	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

var _ interfaces.Notifier = &Hub{}

type HubOption func(*Hub)

// WithBufferSize sets how many undelivered messages a subscriber may hold
// before it is dropped
func WithBufferSize(n int) HubOption {
	return func(h *Hub) {
		h.bufferSize = n
	}
}

func NewHub(tasks TaskLookup, opts ...HubOption) *Hub {
	h := &Hub{
		tasks:      tasks,
		bufferSize: defaultBufferSize,
		subs:       make(map[*Subscription]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscription is one connected client. It starts in its user room and,
// for admins, the admin room.
type Subscription struct {
	hub   *Hub
	actor model.Actor

	mu    sync.Mutex
	rooms map[model.Scope]struct{}

	send      chan *model.Notification
	done      chan struct{}
	closeOnce sync.Once
}

// Subscribe registers a new subscription for actor
func (h *Hub) Subscribe(actor model.Actor) *Subscription {
	s := &Subscription{
		hub:   h,
		actor: actor,
		rooms: map[model.Scope]struct{}{model.UserScope(actor.ID): {}},
		send:  make(chan *model.Notification, h.bufferSize),
		done:  make(chan struct{}),
	}
	if actor.IsAdmin() {
		s.rooms[model.AdminScope] = struct{}{}
	}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Actor is the identity the subscription was opened with
func (s *Subscription) Actor() model.Actor {
	return s.actor
}

// Messages yields delivered notifications until the subscription closes
func (s *Subscription) Messages() <-chan *model.Notification {
	return s.send
}

// Done is closed when the subscription ends
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// JoinTask enters the task room after checking read access against the
// task's current state
func (s *Subscription) JoinTask(ctx context.Context, taskID types.TaskID) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}

	task, err := s.hub.tasks.Get(ctx, taskID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return goerr.Wrap(ErrTaskNotFound, "cannot join task", goerr.V(model.TaskIDKey, taskID))
		}
		return goerr.Wrap(err, "failed to resolve task", goerr.V(model.TaskIDKey, taskID))
	}
	if !model.CanAccessTask(s.actor, task, types.TaskOpRead) {
		return goerr.Wrap(ErrForbidden, "cannot join task", goerr.V(model.TaskIDKey, taskID))
	}

	s.mu.Lock()
	s.rooms[model.TaskScope(taskID)] = struct{}{}
	s.mu.Unlock()
	return nil
}

// LeaveTask exits the task room
func (s *Subscription) LeaveTask(taskID types.TaskID) {
	s.mu.Lock()
	delete(s.rooms, model.TaskScope(taskID))
	s.mu.Unlock()
}

func (s *Subscription) inAny(scopes []model.Scope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, scope := range scopes {
		if _, ok := s.rooms[scope]; ok {
			return true
		}
	}
	return false
}

// Close ends the subscription and removes it from the hub
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		s.hub.mu.Unlock()
		close(s.done)
	})
}

// Notify delivers n to every subscription in one of its scopes that passes
// the notification's read guard. A subscription whose buffer is full is
// closed instead of blocking the sender.
func (h *Hub) Notify(ctx context.Context, n *model.Notification) error {
	if n == nil {
		return nil
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}

	h.mu.RLock()
	targets := make([]*Subscription, 0, len(h.subs))
	for s := range h.subs {
		if s.inAny(n.Scopes) && n.Allows(s.actor) {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range targets {
		select {
		case <-s.done:
		case s.send <- n:
		default:
			logging.From(ctx).Warn("Dropping slow subscriber",
				slog.String("user_id", s.actor.ID.String()),
				slog.String("event", string(n.Event)))
			s.Close()
		}
	}
	return nil
}

// Disconnect closes every subscription of the user
func (h *Hub) Disconnect(ctx context.Context, userID types.UserID) {
	h.mu.RLock()
	var targets []*Subscription
	for s := range h.subs {
		if s.actor.Is(userID) {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range targets {
		s.Close()
	}
	if len(targets) > 0 {
		logging.From(ctx).Info("Disconnected user subscriptions",
			slog.String("user_id", userID.String()),
			slog.Int("count", len(targets)))
	}
}

// Count returns the number of open subscriptions
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
