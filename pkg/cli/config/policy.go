package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/urfave/cli/v3"
)

const (
	defaultSweepInterval = time.Hour
	defaultSweepGrace    = time.Hour
)

// Duration is a TOML string such as "15m" or "168h"
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return goerr.Wrap(ErrInvalidConfig, "invalid duration", goerr.V(ValueKey, string(text)))
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// UploadSection is the [upload] table
type UploadSection struct {
	MaxFileSize        int64    `toml:"max_file_size"`
	MaxFilesPerRequest int      `toml:"max_files_per_request"`
	AllowedMimeTypes   []string `toml:"allowed_mime_types"`
}

// AuthSection is the [auth] table. Zero values leave the flag settings in
// place.
type AuthSection struct {
	AccessTokenTTL  Duration `toml:"access_token_ttl"`
	RefreshTokenTTL Duration `toml:"refresh_token_ttl"`
}

// SweeperSection is the [sweeper] table
type SweeperSection struct {
	Interval Duration `toml:"interval"`
	Grace    Duration `toml:"grace"`
}

// Policy is the operational policy file
type Policy struct {
	Upload  UploadSection  `toml:"upload"`
	Auth    AuthSection    `toml:"auth"`
	Sweeper SweeperSection `toml:"sweeper"`
}

// DefaultPolicy returns the policy used when no file is given
func DefaultPolicy() *Policy {
	up := model.DefaultUploadPolicy()
	return &Policy{
		Upload: UploadSection{
			MaxFileSize:        up.MaxFileSize,
			MaxFilesPerRequest: up.MaxFilesPerRequest,
			AllowedMimeTypes:   up.AllowedMimeTypes,
		},
		Sweeper: SweeperSection{
			Interval: Duration(defaultSweepInterval),
			Grace:    Duration(defaultSweepGrace),
		},
	}
}

// UploadPolicy converts the [upload] table to the domain policy
func (p *Policy) UploadPolicy() model.UploadPolicy {
	return model.UploadPolicy{
		MaxFileSize:        p.Upload.MaxFileSize,
		MaxFilesPerRequest: p.Upload.MaxFilesPerRequest,
		AllowedMimeTypes:   p.Upload.AllowedMimeTypes,
	}
}

// Validate checks every section of the policy
func (p *Policy) Validate() error {
	if err := p.UploadPolicy().Validate(); err != nil {
		return goerr.Wrap(ErrInvalidConfig, "invalid [upload] section", goerr.V("reason", err.Error()))
	}

	if p.Auth.AccessTokenTTL < 0 || p.Auth.RefreshTokenTTL < 0 {
		return goerr.Wrap(ErrInvalidConfig, "token TTLs must not be negative")
	}
	if p.Auth.AccessTokenTTL > 0 && p.Auth.RefreshTokenTTL > 0 && p.Auth.RefreshTokenTTL < p.Auth.AccessTokenTTL {
		return goerr.Wrap(ErrInvalidConfig, "refresh_token_ttl must not be shorter than access_token_ttl")
	}

	if p.Sweeper.Interval <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "sweeper interval must be positive", goerr.V(FieldKey, "sweeper.interval"))
	}
	if p.Sweeper.Grace <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "sweeper grace must be positive", goerr.V(FieldKey, "sweeper.grace"))
	}
	return nil
}

func (p Policy) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("max_file_size", p.Upload.MaxFileSize),
		slog.Int("max_files_per_request", p.Upload.MaxFilesPerRequest),
		slog.Any("allowed_mime_types", p.Upload.AllowedMimeTypes),
		slog.String("sweep_interval", p.Sweeper.Interval.Duration().String()),
		slog.String("sweep_grace", p.Sweeper.Grace.Duration().String()),
	)
}

// LoadPolicy reads a TOML policy file on top of the defaults and validates
// the result
func LoadPolicy(path string) (*Policy, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(ErrConfigNotFound, "policy file does not exist", goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V(ConfigPathKey, path))
	}

	policy := DefaultPolicy()
	if err := toml.Unmarshal(data, policy); err != nil {
		return nil, goerr.Wrap(ErrInvalidConfig, "failed to parse TOML config", goerr.V(ConfigPathKey, path), goerr.V("reason", err.Error()))
	}

	if err := policy.Validate(); err != nil {
		return nil, goerr.Wrap(err, "config validation failed", goerr.V(ConfigPathKey, path))
	}

	return policy, nil
}

// PolicyFile holds the --config flag
type PolicyFile struct {
	path string
}

// Flags returns CLI flags for the policy file
func (f *PolicyFile) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to the TOML policy file",
			Sources:     cli.EnvVars("TASKLANE_CONFIG"),
			Destination: &f.path,
		},
	}
}

// Path returns the configured file path, empty when unset
func (f *PolicyFile) Path() string {
	return f.path
}

// Configure loads the policy file, or returns the defaults when no path is
// set
func (f *PolicyFile) Configure() (*Policy, error) {
	if f.path == "" {
		return DefaultPolicy(), nil
	}
	return LoadPolicy(f.path)
}
