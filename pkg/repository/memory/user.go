package memory

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/domain/interfaces"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
)

type userRepository struct {
	m *Memory
}

func copyUser(u *model.User) *model.User {
	c := *u
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	return &c
}

func (r *userRepository) Create(ctx context.Context, u *model.User) (*model.User, error) {
	created := copyUser(u)
	if created.ID == "" {
		created.ID = types.NewUserID()
	}
	if err := model.PrepareUser(created, r.m.now()); err != nil {
		return nil, goerr.Wrap(err, "failed to prepare user")
	}

	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, taken := r.m.emails[created.Email]; taken {
		return nil, goerr.Wrap(interfaces.ErrEmailTaken, "email already registered", goerr.V(model.EmailKey, created.Email))
	}

	r.m.users[created.ID] = created
	r.m.emails[created.Email] = created.ID
	return copyUser(created), nil
}

func (r *userRepository) Get(ctx context.Context, id types.UserID) (*model.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	u, ok := r.m.users[id]
	if !ok {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "user not found", goerr.V("id", id))
	}
	return copyUser(u), nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = model.NormalizeEmail(email)

	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	id, ok := r.m.emails[email]
	if !ok {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "user not found", goerr.V(model.EmailKey, email))
	}
	return copyUser(r.m.users[id]), nil
}

func (r *userRepository) List(ctx context.Context, filter model.UserFilter) ([]*model.User, model.Pagination, error) {
	r.m.mu.RLock()
	matched := make([]*model.User, 0, len(r.m.users))
	for _, u := range r.m.users {
		if filter.Match(u) {
			matched = append(matched, copyUser(u))
		}
	}
	r.m.mu.RUnlock()

	model.SortUsers(matched, filter.Page.SortBy, filter.Page.SortDesc)
	page, p := model.Paginate(matched, filter.Page)
	return page, p, nil
}

func (r *userRepository) Update(ctx context.Context, id types.UserID, mutate func(u *model.User) error) (*model.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	existing, ok := r.m.users[id]
	if !ok {
		return nil, goerr.Wrap(interfaces.ErrNotFound, "user not found", goerr.V("id", id))
	}

	updated := copyUser(existing)
	if err := mutate(updated); err != nil {
		return nil, goerr.Wrap(err, "user update aborted", goerr.V("id", id))
	}
	updated.ID = id
	updated.CreatedAt = existing.CreatedAt
	if err := model.PrepareUser(updated, r.m.now()); err != nil {
		return nil, goerr.Wrap(err, "failed to prepare user")
	}

	if owner, taken := r.m.emails[updated.Email]; taken && owner != id {
		return nil, goerr.Wrap(interfaces.ErrEmailTaken, "email already registered", goerr.V(model.EmailKey, updated.Email))
	}

	delete(r.m.emails, existing.Email)
	r.m.emails[updated.Email] = id
	r.m.users[id] = updated
	return copyUser(updated), nil
}

func (r *userRepository) Delete(ctx context.Context, id types.UserID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	u, ok := r.m.users[id]
	if !ok {
		return goerr.Wrap(interfaces.ErrNotFound, "user not found", goerr.V("id", id))
	}
	delete(r.m.emails, u.Email)
	delete(r.m.users, id)
	return nil
}
