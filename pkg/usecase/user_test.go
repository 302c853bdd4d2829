package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
	"github.com/secmon-lab/tasklane/pkg/usecase"
)

func TestUserList(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	admin := f.user(t, "admin", types.RoleAdmin)
	user := f.user(t, "user", types.RoleUser)

	_, _, err := f.uc.User.List(ctx, user, model.UserFilter{})
	gt.Error(t, err).Is(usecase.ErrForbidden)

	users, p, err := f.uc.User.List(ctx, admin, model.UserFilter{Role: types.RoleUser})
	gt.NoError(t, err).Required()
	gt.A(t, users).Length(1)
	gt.Value(t, p.TotalItems).Equal(1)

	_, _, err = f.uc.User.List(ctx, admin, model.UserFilter{Page: model.PageRequest{SortBy: "passwordHash"}})
	gt.Error(t, err).Is(usecase.ErrValidation)
}

func TestUserGet(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	alice := f.user(t, "alice", types.RoleUser)
	bob := f.user(t, "bob", types.RoleUser)
	admin := f.user(t, "admin", types.RoleAdmin)

	_, err := f.uc.User.Get(ctx, alice, alice.ID)
	gt.NoError(t, err)
	_, err = f.uc.User.Get(ctx, admin, bob.ID)
	gt.NoError(t, err)
	_, err = f.uc.User.Get(ctx, alice, bob.ID)
	gt.Error(t, err).Is(usecase.ErrForbidden)
	_, err = f.uc.User.Get(ctx, admin, types.NewUserID())
	gt.Error(t, err).Is(usecase.ErrUserNotFound)

	t.Run("missing user is not found before access is checked", func(t *testing.T) {
		missing := types.NewUserID()
		_, err := f.uc.User.Get(ctx, alice, missing)
		gt.Error(t, err).Is(usecase.ErrUserNotFound)
		gt.B(t, errors.Is(err, usecase.ErrForbidden)).False()

		name := "Ghost"
		_, err = f.uc.User.Update(ctx, alice, missing, model.UserPatch{FirstName: &name})
		gt.Error(t, err).Is(usecase.ErrUserNotFound)
		_, err = f.uc.User.SetActive(ctx, alice, missing, false)
		gt.Error(t, err).Is(usecase.ErrUserNotFound)
		gt.Error(t, f.uc.User.ChangePassword(ctx, alice, missing, "", "Secret2")).Is(usecase.ErrUserNotFound)
		gt.Error(t, f.uc.User.Delete(ctx, alice, missing)).Is(usecase.ErrUserNotFound)
	})
}

func TestUserUpdate(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	alice := f.user(t, "alice", types.RoleUser)
	bob := f.user(t, "bob", types.RoleUser)
	admin := f.user(t, "admin", types.RoleAdmin)

	t.Run("non-admin loses role and active fields", func(t *testing.T) {
		name := "Alicia"
		role := types.RoleAdmin
		inactive := false
		u, err := f.uc.User.Update(ctx, alice, alice.ID, model.UserPatch{FirstName: &name, Role: &role, IsActive: &inactive})
		gt.NoError(t, err).Required()
		gt.Value(t, u.FirstName).Equal("Alicia")
		gt.Value(t, u.Role).Equal(types.RoleUser)
		gt.B(t, u.IsActive).True()
		gt.B(t, f.rec.wasDisconnected(alice.ID)).False()

		n := f.rec.waitFor(t, types.EventUserUpdated)
		gt.B(t, n.Allows(alice)).True()
	})

	t.Run("email taken", func(t *testing.T) {
		email := "BOB@example.com"
		_, err := f.uc.User.Update(ctx, alice, alice.ID, model.UserPatch{Email: &email})
		gt.Error(t, err).Is(usecase.ErrConflict)
	})

	t.Run("other user is forbidden", func(t *testing.T) {
		name := "Robert"
		_, err := f.uc.User.Update(ctx, alice, bob.ID, model.UserPatch{FirstName: &name})
		gt.Error(t, err).Is(usecase.ErrForbidden)
	})

	t.Run("admin promotes and the sockets reconnect", func(t *testing.T) {
		role := types.RoleAdmin
		u, err := f.uc.User.Update(ctx, admin, bob.ID, model.UserPatch{Role: &role})
		gt.NoError(t, err).Required()
		gt.Value(t, u.Role).Equal(types.RoleAdmin)
		gt.B(t, f.rec.wasDisconnected(bob.ID)).True()
	})

	t.Run("admin cannot deactivate itself", func(t *testing.T) {
		inactive := false
		_, err := f.uc.User.Update(ctx, admin, admin.ID, model.UserPatch{IsActive: &inactive})
		gt.Error(t, err).Is(usecase.ErrForbidden)
	})
}

func TestUserSetActive(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	admin := f.user(t, "admin", types.RoleAdmin)
	user := f.user(t, "user", types.RoleUser)

	_, err := f.repo.User().Update(ctx, user.ID, func(u *model.User) error {
		u.RefreshToken = "token"
		return nil
	})
	gt.NoError(t, err).Required()

	u, err := f.uc.User.SetActive(ctx, admin, user.ID, false)
	gt.NoError(t, err).Required()
	gt.B(t, u.IsActive).False()
	gt.Value(t, u.RefreshToken).Equal("")
	gt.B(t, f.rec.wasDisconnected(user.ID)).True()

	_, err = f.uc.User.SetActive(ctx, admin, admin.ID, false)
	gt.Error(t, err).Is(usecase.ErrForbidden)
	_, err = f.uc.User.SetActive(ctx, user, user.ID, true)
	gt.Error(t, err).Is(usecase.ErrForbidden)

	u, err = f.uc.User.SetActive(ctx, admin, user.ID, true)
	gt.NoError(t, err).Required()
	gt.B(t, u.IsActive).True()
}

func TestUserDelete(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	admin := f.user(t, "admin", types.RoleAdmin)
	creator := f.user(t, "creator", types.RoleUser)
	assignee := f.user(t, "assignee", types.RoleUser)
	task := f.task(t, creator, assignee.ID)

	gt.Error(t, f.uc.User.Delete(ctx, creator, assignee.ID)).Is(usecase.ErrForbidden)
	gt.Error(t, f.uc.User.Delete(ctx, admin, admin.ID)).Is(usecase.ErrForbidden)

	gt.NoError(t, f.uc.User.Delete(ctx, admin, assignee.ID)).Required()
	gt.B(t, f.rec.wasDisconnected(assignee.ID)).True()

	got, err := f.uc.Task.Get(ctx, creator, task.ID)
	gt.NoError(t, err).Required()
	gt.Value(t, got.AssignedTo).Equal(types.UserID(""))

	_, err = f.uc.User.Get(ctx, admin, assignee.ID)
	gt.Error(t, err).Is(usecase.ErrUserNotFound)
}

func TestUserChangePassword(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	admin := f.user(t, "admin", types.RoleAdmin)

	u, _, err := f.uc.Auth.Register(ctx, usecase.RegisterInput{
		Email: "pat@example.com", Password: "Secret1", FirstName: "Pat", LastName: "Lee",
	})
	gt.NoError(t, err).Required()
	self := model.ActorOf(u)

	gt.Error(t, f.uc.User.ChangePassword(ctx, self, u.ID, "wrong", "Secret2")).Is(usecase.ErrValidation)
	gt.Error(t, f.uc.User.ChangePassword(ctx, self, u.ID, "Secret1", "weak")).Is(usecase.ErrValidation)
	gt.NoError(t, f.uc.User.ChangePassword(ctx, self, u.ID, "Secret1", "Secret2")).Required()

	_, _, err = f.uc.Auth.Login(ctx, "pat@example.com", "Secret2")
	gt.NoError(t, err)

	// an admin resetting someone else's password skips the current one
	gt.NoError(t, f.uc.User.ChangePassword(ctx, admin, u.ID, "", "Secret3")).Required()
	_, _, err = f.uc.Auth.Login(ctx, "pat@example.com", "Secret3")
	gt.NoError(t, err)
}

func TestCreateAdmin(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	in := usecase.RegisterInput{Email: "root@example.com", Password: "Secret1", FirstName: "Root", LastName: "Admin"}
	u, err := f.uc.User.CreateAdmin(ctx, in)
	gt.NoError(t, err).Required()
	gt.Value(t, u.Role).Equal(types.RoleAdmin)

	_, err = f.uc.User.CreateAdmin(ctx, in)
	gt.Error(t, err).Is(usecase.ErrConflict)
}
