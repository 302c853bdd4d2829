package config

import (
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/usecase"
	"github.com/urfave/cli/v3"
)

const minSecretLength = 32

// Auth holds CLI flags for token signing
type Auth struct {
	secret     string `masq:"secret"`
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// Flags returns CLI flags for authentication configuration
func (a *Auth) Flags() []cli.Flag {
	defaults := usecase.DefaultAuthConfig()
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "jwt-secret",
			Usage:       "HMAC secret for signing tokens (at least 32 bytes); an ephemeral one is generated when empty",
			Category:    "Auth",
			Sources:     cli.EnvVars("TASKLANE_JWT_SECRET"),
			Destination: &a.secret,
		},
		&cli.DurationFlag{
			Name:        "access-token-ttl",
			Usage:       "Lifetime of access tokens",
			Value:       defaults.AccessTokenTTL,
			Category:    "Auth",
			Sources:     cli.EnvVars("TASKLANE_ACCESS_TOKEN_TTL"),
			Destination: &a.accessTTL,
		},
		&cli.DurationFlag{
			Name:        "refresh-token-ttl",
			Usage:       "Lifetime of refresh tokens",
			Value:       defaults.RefreshTokenTTL,
			Category:    "Auth",
			Sources:     cli.EnvVars("TASKLANE_REFRESH_TOKEN_TTL"),
			Destination: &a.refreshTTL,
		},
	}
}

func (a Auth) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("secret_set", a.secret != ""),
		slog.String("access_token_ttl", a.accessTTL.String()),
		slog.String("refresh_token_ttl", a.refreshTTL.String()),
	)
}

// Configure builds the token settings. TTLs set in the policy file take
// precedence over the flags.
func (a *Auth) Configure(policy *Policy) (usecase.AuthConfig, error) {
	cfg := usecase.AuthConfig{
		AccessTokenTTL:  a.accessTTL,
		RefreshTokenTTL: a.refreshTTL,
	}
	if a.secret != "" {
		if len(a.secret) < minSecretLength {
			return cfg, goerr.Wrap(ErrInvalidConfig, "jwt-secret is too short", goerr.V("min_length", minSecretLength))
		}
		cfg.Secret = []byte(a.secret)
	}

	if policy != nil {
		if policy.Auth.AccessTokenTTL > 0 {
			cfg.AccessTokenTTL = policy.Auth.AccessTokenTTL.Duration()
		}
		if policy.Auth.RefreshTokenTTL > 0 {
			cfg.RefreshTokenTTL = policy.Auth.RefreshTokenTTL.Duration()
		}
	}

	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 {
		return cfg, goerr.Wrap(ErrInvalidConfig, "token TTLs must be positive")
	}
	if cfg.RefreshTokenTTL < cfg.AccessTokenTTL {
		return cfg, goerr.Wrap(ErrInvalidConfig, "refresh token TTL must not be shorter than access token TTL")
	}
	return cfg, nil
}
