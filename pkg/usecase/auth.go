package usecase

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/domain/interfaces"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
	"github.com/secmon-lab/tasklane/pkg/utils/logging"
)

const (
	tokenTypeClaim   = "typ"
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
	tokenIssuer      = "tasklane"
)

// AuthConfig holds token signing settings
type AuthConfig struct {
	Secret          []byte `masq:"secret"`
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	}
}

// TokenPair is returned on register, login and refresh
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
}

// RegisterInput carries a new account
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type AuthUseCase struct {
	repo   interfaces.Repository
	config AuthConfig
	now    func() time.Time
}

func NewAuthUseCase(repo interfaces.Repository, cfg AuthConfig, now func() time.Time) *AuthUseCase {
	if len(cfg.Secret) == 0 {
		cfg.Secret = make([]byte, 32)
		if _, err := rand.Read(cfg.Secret); err != nil {
			panic("failed to generate token secret: " + err.Error())
		}
		logging.Default().Warn("No JWT secret configured, using an ephemeral one; tokens will not survive a restart")
	}
	return &AuthUseCase{repo: repo, config: cfg, now: now}
}

// newAccount validates input and builds a user ready to be stored
func newAccount(in RegisterInput, role types.Role, now time.Time) (*model.User, error) {
	if err := model.ValidatePassword(in.Password); err != nil {
		return nil, err
	}

	u := &model.User{
		ID:        types.NewUserID(),
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Role:      role,
		IsActive:  true,
		Password:  in.Password,
	}
	u.Email = model.NormalizeEmail(u.Email)
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if err := model.PrepareUser(u, now); err != nil {
		return nil, err
	}
	return u, nil
}

func createAccount(ctx context.Context, repo interfaces.Repository, u *model.User) (*model.User, error) {
	created, err := repo.User().Create(ctx, u)
	if err != nil {
		if errors.Is(err, interfaces.ErrEmailTaken) {
			return nil, goerr.Wrap(ErrConflict, "user already exists with this email", goerr.V(model.EmailKey, u.Email))
		}
		return nil, goerr.Wrap(err, "failed to create user")
	}
	return created, nil
}

// Register creates a regular account and signs it in
func (uc *AuthUseCase) Register(ctx context.Context, in RegisterInput) (*model.User, *TokenPair, error) {
	u, err := newAccount(in, types.RoleUser, uc.now())
	if err != nil {
		return nil, nil, err
	}

	created, err := createAccount(ctx, uc.repo, u)
	if err != nil {
		return nil, nil, err
	}

	return uc.signIn(ctx, created.ID, signInOptions{})
}

// Login checks credentials and issues a new token pair
func (uc *AuthUseCase) Login(ctx context.Context, email, password string) (*model.User, *TokenPair, error) {
	u, err := uc.repo.User().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, nil, goerr.Wrap(ErrUnauthenticated, "invalid credentials")
		}
		return nil, nil, goerr.Wrap(err, "failed to load user")
	}
	if !u.IsActive {
		return nil, nil, goerr.Wrap(ErrUnauthenticated, "account is deactivated", goerr.V(UserIDKey, u.ID))
	}
	if !u.VerifyPassword(password) {
		return nil, nil, goerr.Wrap(ErrUnauthenticated, "invalid credentials")
	}

	return uc.signIn(ctx, u.ID, signInOptions{stampLogin: true})
}

// Refresh exchanges a refresh token for a new pair. The stored refresh
// token is rotated so the old one stops working.
func (uc *AuthUseCase) Refresh(ctx context.Context, refreshToken string) (*model.User, *TokenPair, error) {
	userID, err := uc.verify(refreshToken, tokenTypeRefresh)
	if err != nil {
		return nil, nil, err
	}

	return uc.signIn(ctx, userID, signInOptions{rotate: refreshToken})
}

// Logout revokes the actor's refresh token
func (uc *AuthUseCase) Logout(ctx context.Context, actor model.Actor) error {
	_, err := uc.repo.User().Update(ctx, actor.ID, func(u *model.User) error {
		u.RefreshToken = ""
		return nil
	})
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return goerr.Wrap(ErrUserNotFound, "user not found", goerr.V(UserIDKey, actor.ID))
		}
		return goerr.Wrap(err, "failed to revoke refresh token", goerr.V(UserIDKey, actor.ID))
	}
	return nil
}

// Authenticate verifies an access token and resolves the actor from the
// current user record, so role and active changes apply immediately
func (uc *AuthUseCase) Authenticate(ctx context.Context, accessToken string) (model.Actor, *model.User, error) {
	userID, err := uc.verify(accessToken, tokenTypeAccess)
	if err != nil {
		return model.Actor{}, nil, err
	}

	u, err := uc.loadActive(ctx, userID)
	if err != nil {
		return model.Actor{}, nil, err
	}
	return model.ActorOf(u), u, nil
}

// Me returns the actor's own record
func (uc *AuthUseCase) Me(ctx context.Context, actor model.Actor) (*model.User, error) {
	u, err := uc.repo.User().Get(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, goerr.Wrap(ErrUserNotFound, "user not found", goerr.V(UserIDKey, actor.ID))
		}
		return nil, goerr.Wrap(err, "failed to load user")
	}
	return u, nil
}

func (uc *AuthUseCase) loadActive(ctx context.Context, userID types.UserID) (*model.User, error) {
	u, err := uc.repo.User().Get(ctx, userID)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, goerr.Wrap(ErrUnauthenticated, "token user no longer exists", goerr.V(UserIDKey, userID))
		}
		return nil, goerr.Wrap(err, "failed to load user")
	}
	if !u.IsActive {
		return nil, goerr.Wrap(ErrUnauthenticated, "account is deactivated", goerr.V(UserIDKey, userID))
	}
	return u, nil
}

type signInOptions struct {
	stampLogin bool
	// rotate is the refresh token being exchanged. It must still be the
	// stored one.
	rotate string
}

// signIn issues a token pair and stores the refresh token. The active flag
// is checked again on the record being written, so a deactivation that
// lands after the caller's read still wins.
func (uc *AuthUseCase) signIn(ctx context.Context, id types.UserID, opt signInOptions) (*model.User, *TokenPair, error) {
	now := uc.now()
	pair, err := uc.issue(id, now)
	if err != nil {
		return nil, nil, err
	}

	updated, err := uc.repo.User().Update(ctx, id, func(u *model.User) error {
		if !u.IsActive {
			return goerr.Wrap(ErrUnauthenticated, "account is deactivated", goerr.V(UserIDKey, id))
		}
		if opt.rotate != "" && (u.RefreshToken == "" ||
			subtle.ConstantTimeCompare([]byte(u.RefreshToken), []byte(opt.rotate)) != 1) {
			return goerr.Wrap(ErrUnauthenticated, "refresh token was revoked", goerr.V(UserIDKey, id))
		}
		u.RefreshToken = pair.RefreshToken
		if opt.stampLogin {
			u.LastLogin = &now
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, nil, goerr.Wrap(ErrUnauthenticated, "token user no longer exists", goerr.V(UserIDKey, id))
		}
		return nil, nil, goerr.Wrap(err, "failed to store refresh token", goerr.V(UserIDKey, id))
	}
	return updated, pair, nil
}

func (uc *AuthUseCase) issue(userID types.UserID, now time.Time) (*TokenPair, error) {
	access, err := uc.sign(userID, tokenTypeAccess, now, uc.config.AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := uc.sign(userID, tokenTypeRefresh, now, uc.config.RefreshTokenTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(uc.config.AccessTokenTTL.Seconds()),
	}, nil
}

func (uc *AuthUseCase) sign(userID types.UserID, typ string, now time.Time, ttl time.Duration) (string, error) {
	tok, err := jwt.NewBuilder().
		Issuer(tokenIssuer).
		Subject(userID.String()).
		JwtID(uuid.NewString()).
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		Claim(tokenTypeClaim, typ).
		Build()
	if err != nil {
		return "", goerr.Wrap(err, "failed to build token")
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, uc.config.Secret))
	if err != nil {
		return "", goerr.Wrap(err, "failed to sign token")
	}
	return string(signed), nil
}

// verify checks signature, expiry and token type and returns the subject
func (uc *AuthUseCase) verify(raw, typ string) (types.UserID, error) {
	if raw == "" {
		return "", goerr.Wrap(ErrUnauthenticated, "token is required")
	}

	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256, uc.config.Secret),
		jwt.WithValidate(true),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithClock(jwt.ClockFunc(uc.now)),
	)
	if err != nil {
		return "", goerr.Wrap(ErrUnauthenticated, "invalid token", goerr.V("reason", err.Error()))
	}

	if v, ok := tok.Get(tokenTypeClaim); !ok || v != typ {
		return "", goerr.Wrap(ErrUnauthenticated, "unexpected token type", goerr.V("want", typ))
	}

	userID := types.UserID(tok.Subject())
	if err := userID.Validate(); err != nil {
		return "", goerr.Wrap(ErrUnauthenticated, "invalid token subject")
	}
	return userID, nil
}
