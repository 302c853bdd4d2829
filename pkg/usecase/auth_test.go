package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
	"github.com/secmon-lab/tasklane/pkg/usecase"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var registration = usecase.RegisterInput{
	Email:     "Sam@Example.com",
	Password:  "Secret1",
	FirstName: "Sam",
	LastName:  "Park",
}

func TestAuthRegister(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	u, pair, err := f.uc.Auth.Register(ctx, registration)
	gt.NoError(t, err).Required()
	gt.Value(t, u.Email).Equal("sam@example.com")
	gt.Value(t, u.Role).Equal(types.RoleUser)
	gt.String(t, pair.AccessToken).NotEqual("")
	gt.Value(t, pair.ExpiresIn).Equal(900)

	_, _, err = f.uc.Auth.Register(ctx, registration)
	gt.Error(t, err).Is(usecase.ErrConflict)

	weak := registration
	weak.Email = "other@example.com"
	weak.Password = "password"
	_, _, err = f.uc.Auth.Register(ctx, weak)
	gt.Error(t, err).Is(usecase.ErrValidation)
}

func TestAuthLoginAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	_, _, err := f.uc.Auth.Register(ctx, registration)
	gt.NoError(t, err).Required()

	_, _, err = f.uc.Auth.Login(ctx, "sam@example.com", "Secret2")
	gt.Error(t, err).Is(usecase.ErrUnauthenticated)
	_, _, err = f.uc.Auth.Login(ctx, "nobody@example.com", "Secret1")
	gt.Error(t, err).Is(usecase.ErrUnauthenticated)

	u, pair, err := f.uc.Auth.Login(ctx, "SAM@example.com", "Secret1")
	gt.NoError(t, err).Required()
	gt.Value(t, u.LastLogin).NotNil()

	actor, _, err := f.uc.Auth.Authenticate(ctx, pair.AccessToken)
	gt.NoError(t, err).Required()
	gt.Value(t, actor.ID).Equal(u.ID)

	t.Run("refresh token is not an access token", func(t *testing.T) {
		_, _, err := f.uc.Auth.Authenticate(ctx, pair.RefreshToken)
		gt.Error(t, err).Is(usecase.ErrUnauthenticated)
	})

	t.Run("role change applies on the next request", func(t *testing.T) {
		_, err := f.repo.User().Update(ctx, u.ID, func(u *model.User) error {
			u.Role = types.RoleAdmin
			return nil
		})
		gt.NoError(t, err).Required()

		actor, _, err := f.uc.Auth.Authenticate(ctx, pair.AccessToken)
		gt.NoError(t, err).Required()
		gt.B(t, actor.IsAdmin()).True()
	})

	t.Run("deactivated user is rejected", func(t *testing.T) {
		_, err := f.repo.User().Update(ctx, u.ID, func(u *model.User) error {
			u.IsActive = false
			return nil
		})
		gt.NoError(t, err).Required()

		_, _, err = f.uc.Auth.Authenticate(ctx, pair.AccessToken)
		gt.Error(t, err).Is(usecase.ErrUnauthenticated)
		_, _, err = f.uc.Auth.Login(ctx, "sam@example.com", "Secret1")
		gt.Error(t, err).Is(usecase.ErrUnauthenticated)
	})
}

func TestAuthRefresh(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	u, first, err := f.uc.Auth.Register(ctx, registration)
	gt.NoError(t, err).Required()

	_, second, err := f.uc.Auth.Refresh(ctx, first.RefreshToken)
	gt.NoError(t, err).Required()
	gt.String(t, second.RefreshToken).NotEqual(first.RefreshToken)

	// the rotated token no longer works
	_, _, err = f.uc.Auth.Refresh(ctx, first.RefreshToken)
	gt.Error(t, err).Is(usecase.ErrUnauthenticated)

	_, _, err = f.uc.Auth.Refresh(ctx, second.AccessToken)
	gt.Error(t, err).Is(usecase.ErrUnauthenticated)

	actor, _, err := f.uc.Auth.Authenticate(ctx, second.AccessToken)
	gt.NoError(t, err).Required()
	gt.NoError(t, f.uc.Auth.Logout(ctx, actor)).Required()

	_, _, err = f.uc.Auth.Refresh(ctx, second.RefreshToken)
	gt.Error(t, err).Is(usecase.ErrUnauthenticated)

	me, err := f.uc.Auth.Me(ctx, actor)
	gt.NoError(t, err).Required()
	gt.Value(t, me.ID).Equal(u.ID)
}

func TestAuthTokenExpiry(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Now().UTC()}
	f := setup(t, usecase.WithClock(c.Now))

	_, pair, err := f.uc.Auth.Register(ctx, registration)
	gt.NoError(t, err).Required()

	c.Advance(10 * time.Minute)
	_, _, err = f.uc.Auth.Authenticate(ctx, pair.AccessToken)
	gt.NoError(t, err)

	c.Advance(10 * time.Minute)
	_, _, err = f.uc.Auth.Authenticate(ctx, pair.AccessToken)
	gt.Error(t, err).Is(usecase.ErrUnauthenticated)

	_, _, err = f.uc.Auth.Refresh(ctx, pair.RefreshToken)
	gt.NoError(t, err)
}

func TestAuthRejectsForeignSignature(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	_, pair, err := f.uc.Auth.Register(ctx, registration)
	gt.NoError(t, err).Required()

	other := setup(t, usecase.WithAuthConfig(usecase.AuthConfig{
		Secret:          []byte("another-secret-another-secret-an"),
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	}))
	_, _, err = other.uc.Auth.Authenticate(ctx, pair.AccessToken)
	gt.Error(t, err).Is(usecase.ErrUnauthenticated)
}
