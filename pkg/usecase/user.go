package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/domain/interfaces"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
)

type UserUseCase struct {
	repo   interfaces.Repository
	events *publisher
	now    func() time.Time
}

func NewUserUseCase(repo interfaces.Repository, events *publisher, now func() time.Time) *UserUseCase {
	return &UserUseCase{repo: repo, events: events, now: now}
}

// load looks the target up and then checks op against it. A missing user
// is reported as not found to every caller.
func (uc *UserUseCase) load(ctx context.Context, actor model.Actor, id types.UserID, op types.UserOp) (*model.User, error) {
	u, err := uc.repo.User().Get(ctx, id)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, goerr.Wrap(ErrUserNotFound, "user not found", goerr.V(UserIDKey, id))
		}
		return nil, goerr.Wrap(err, "failed to get user", goerr.V(UserIDKey, id))
	}

	if !model.CanManageUser(actor, id, op) {
		return nil, goerr.Wrap(ErrForbidden, "access denied to user",
			goerr.V(UserIDKey, id), goerr.V("actor", actor.ID), goerr.V("op", op))
	}
	return u, nil
}

// save applies mutate to the latest stored record of id
func (uc *UserUseCase) save(ctx context.Context, id types.UserID, mutate func(u *model.User) error) (*model.User, error) {
	updated, err := uc.repo.User().Update(ctx, id, mutate)
	if err != nil {
		switch {
		case errors.Is(err, interfaces.ErrEmailTaken):
			return nil, goerr.Wrap(ErrConflict, "email is already in use", goerr.V(UserIDKey, id))
		case errors.Is(err, interfaces.ErrNotFound):
			return nil, goerr.Wrap(ErrUserNotFound, "user not found", goerr.V(UserIDKey, id))
		}
		return nil, goerr.Wrap(err, "failed to update user", goerr.V(UserIDKey, id))
	}
	return updated, nil
}

// List returns one page of users. Admins only.
func (uc *UserUseCase) List(ctx context.Context, actor model.Actor, filter model.UserFilter) ([]*model.User, model.Pagination, error) {
	if !model.CanManageUser(actor, "", types.UserOpViewList) {
		return nil, model.Pagination{}, goerr.Wrap(ErrForbidden, "admin access required", goerr.V("actor", actor.ID))
	}

	page, err := filter.Page.Normalize(model.UserSortFields, "createdAt")
	if err != nil {
		return nil, model.Pagination{}, err
	}
	filter.Page = page
	if filter.Role != "" && !filter.Role.IsValid() {
		return nil, model.Pagination{}, goerr.Wrap(ErrValidation, "invalid role filter", goerr.V(model.RoleKey, filter.Role))
	}

	users, p, err := uc.repo.User().List(ctx, filter)
	if err != nil {
		return nil, model.Pagination{}, goerr.Wrap(err, "failed to list users")
	}
	return users, p, nil
}

func (uc *UserUseCase) Get(ctx context.Context, actor model.Actor, id types.UserID) (*model.User, error) {
	return uc.load(ctx, actor, id, types.UserOpViewOne)
}

// Update applies the part of patch the actor may change. Role and active
// changes force the target's sockets to reconnect under the new rights.
func (uc *UserUseCase) Update(ctx context.Context, actor model.Actor, id types.UserID, patch model.UserPatch) (*model.User, error) {
	if _, err := uc.load(ctx, actor, id, types.UserOpUpdate); err != nil {
		return nil, err
	}

	patch = patch.ProjectFor(actor)
	var privileged bool
	updated, err := uc.save(ctx, id, func(u *model.User) error {
		if patch.Role != nil && *patch.Role != u.Role && !model.CanManageUser(actor, id, types.UserOpChangeRole) {
			return goerr.Wrap(ErrForbidden, "cannot change role", goerr.V(UserIDKey, id))
		}
		if patch.IsActive != nil && *patch.IsActive != u.IsActive && !model.CanManageUser(actor, id, types.UserOpChangeActive) {
			return goerr.Wrap(ErrForbidden, "cannot change active state", goerr.V(UserIDKey, id))
		}

		next, err := patch.Apply(u)
		if err != nil {
			return err
		}
		if !next.IsActive {
			next.RefreshToken = ""
		}
		privileged = patch.ChangesPrivileges(u)
		*u = *next
		return nil
	})
	if err != nil {
		return nil, err
	}

	if privileged {
		uc.events.disconnect(ctx, id)
	}
	uc.events.publish(ctx, model.NewUserNotification(types.EventUserUpdated, id, updated, uc.now()))
	return updated, nil
}

// SetActive activates or deactivates an account. Deactivation revokes the
// refresh token and drops open sockets.
func (uc *UserUseCase) SetActive(ctx context.Context, actor model.Actor, id types.UserID, active bool) (*model.User, error) {
	if _, err := uc.load(ctx, actor, id, types.UserOpChangeActive); err != nil {
		return nil, err
	}

	var changed bool
	updated, err := uc.save(ctx, id, func(u *model.User) error {
		changed = u.IsActive != active
		u.IsActive = active
		if !active {
			u.RefreshToken = ""
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		uc.events.disconnect(ctx, id)
		uc.events.publish(ctx, model.NewUserNotification(types.EventUserUpdated, id, updated, uc.now()))
	}
	return updated, nil
}

// ChangePassword sets a new password. A user changing their own password
// must present the current one; an admin resetting someone else's need not.
func (uc *UserUseCase) ChangePassword(ctx context.Context, actor model.Actor, id types.UserID, current, next string) error {
	if _, err := uc.load(ctx, actor, id, types.UserOpChangePassword); err != nil {
		return err
	}
	if err := model.ValidatePassword(next); err != nil {
		return err
	}

	_, err := uc.save(ctx, id, func(u *model.User) error {
		if actor.Is(id) && !u.VerifyPassword(current) {
			return goerr.Wrap(ErrValidation, "current password is incorrect", goerr.V(UserIDKey, id))
		}
		u.Password = next
		return nil
	})
	return err
}

// Delete removes an account. Tasks assigned to the user become unassigned.
func (uc *UserUseCase) Delete(ctx context.Context, actor model.Actor, id types.UserID) error {
	if _, err := uc.load(ctx, actor, id, types.UserOpDelete); err != nil {
		return err
	}

	unassigned, err := uc.repo.Task().ClearAssignee(ctx, id)
	if err != nil {
		return goerr.Wrap(err, "failed to unassign tasks", goerr.V(UserIDKey, id))
	}

	if err := uc.repo.User().Delete(ctx, id); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return goerr.Wrap(ErrUserNotFound, "user not found", goerr.V(UserIDKey, id))
		}
		return goerr.Wrap(err, "failed to delete user", goerr.V(UserIDKey, id))
	}

	uc.events.disconnect(ctx, id)

	now := uc.now()
	notifications := make([]*model.Notification, 0, len(unassigned))
	for _, task := range unassigned {
		notifications = append(notifications, model.NewTaskNotification(types.EventTaskUpdated, task, task, now))
	}
	uc.events.publish(ctx, notifications...)
	return nil
}

// CreateAdmin bootstraps an administrator account. It is not reachable over
// HTTP.
func (uc *UserUseCase) CreateAdmin(ctx context.Context, in RegisterInput) (*model.User, error) {
	u, err := newAccount(in, types.RoleAdmin, uc.now())
	if err != nil {
		return nil, err
	}
	return createAccount(ctx, uc.repo, u)
}
