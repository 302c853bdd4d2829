package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/secmon-lab/tasklane/pkg/domain/interfaces"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
	"github.com/secmon-lab/tasklane/pkg/utils/async"
)

type UseCases struct {
	repo     interfaces.Repository
	store    interfaces.FileStore
	notifier interfaces.Notifier
	policy   model.UploadPolicy
	auth     AuthConfig
	now      func() time.Time

	Auth     *AuthUseCase
	Task     *TaskUseCase
	Document *DocumentUseCase
	User     *UserUseCase
}

type Option func(*UseCases)

// WithNotifier sets where committed changes are announced
func WithNotifier(n interfaces.Notifier) Option {
	return func(uc *UseCases) {
		uc.notifier = n
	}
}

// WithFileStore sets where document bytes are kept
func WithFileStore(s interfaces.FileStore) Option {
	return func(uc *UseCases) {
		uc.store = s
	}
}

func WithUploadPolicy(p model.UploadPolicy) Option {
	return func(uc *UseCases) {
		uc.policy = p
	}
}

func WithAuthConfig(cfg AuthConfig) Option {
	return func(uc *UseCases) {
		uc.auth = cfg
	}
}

// WithClock replaces the clock used for due date checks and tokens
func WithClock(now func() time.Time) Option {
	return func(uc *UseCases) {
		uc.now = now
	}
}

func New(repo interfaces.Repository, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:   repo,
		policy: model.DefaultUploadPolicy(),
		auth:   DefaultAuthConfig(),
		now:    func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(uc)
	}

	events := &publisher{notifier: uc.notifier}
	uc.Auth = NewAuthUseCase(repo, uc.auth, uc.now)
	uc.Task = NewTaskUseCase(repo, events, uc.now)
	uc.Document = NewDocumentUseCase(repo, uc.store, events, uc.policy, uc.now)
	uc.User = NewUserUseCase(repo, events, uc.now)

	return uc
}

// publisher hands committed changes to the notifier off the request path
type publisher struct {
	notifier interfaces.Notifier
}

// publish sends notifications in order from one background job
func (p *publisher) publish(ctx context.Context, ns ...*model.Notification) {
	if p == nil || p.notifier == nil || len(ns) == 0 {
		return
	}
	async.Dispatch(ctx, "notify:"+ns[0].Event.String(), func(ctx context.Context) error {
		var errs []error
		for _, n := range ns {
			if err := p.notifier.Notify(ctx, n); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

func (p *publisher) disconnect(ctx context.Context, userID types.UserID) {
	if p == nil || p.notifier == nil {
		return
	}
	p.notifier.Disconnect(ctx, userID)
}
