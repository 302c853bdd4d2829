package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/tasklane/pkg/cli/config"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
)

func writePolicy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.toml")
	gt.NoError(t, os.WriteFile(path, []byte(content), 0600)).Required()
	return path
}

func TestLoadPolicy(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
		check   func(t *testing.T, p *config.Policy)
	}{
		{
			name: "full policy",
			content: `
[upload]
max_file_size = 1048576
max_files_per_request = 2
allowed_mime_types = ["application/pdf"]

[auth]
access_token_ttl = "5m"
refresh_token_ttl = "24h"

[sweeper]
interval = "10m"
grace = "30m"
`,
			check: func(t *testing.T, p *config.Policy) {
				gt.Value(t, p.Upload.MaxFileSize).Equal(int64(1 << 20))
				gt.Value(t, p.Upload.MaxFilesPerRequest).Equal(2)
				gt.Value(t, p.Auth.AccessTokenTTL.Duration()).Equal(5 * time.Minute)
				gt.Value(t, p.Auth.RefreshTokenTTL.Duration()).Equal(24 * time.Hour)
				gt.Value(t, p.Sweeper.Interval.Duration()).Equal(10 * time.Minute)
				gt.Value(t, p.Sweeper.Grace.Duration()).Equal(30 * time.Minute)
			},
		},
		{
			name: "missing sections keep defaults",
			content: `
[sweeper]
grace = "2h"
`,
			check: func(t *testing.T, p *config.Policy) {
				def := model.DefaultUploadPolicy()
				gt.Value(t, p.Upload.MaxFileSize).Equal(def.MaxFileSize)
				gt.Value(t, p.Upload.MaxFilesPerRequest).Equal(def.MaxFilesPerRequest)
				gt.Value(t, p.Auth.AccessTokenTTL).Equal(config.Duration(0))
				gt.Value(t, p.Sweeper.Interval.Duration()).Equal(time.Hour)
				gt.Value(t, p.Sweeper.Grace.Duration()).Equal(2 * time.Hour)
			},
		},
		{
			name: "bad duration",
			content: `
[auth]
access_token_ttl = "soon"
`,
			wantErr: config.ErrInvalidConfig,
		},
		{
			name: "refresh shorter than access",
			content: `
[auth]
access_token_ttl = "2h"
refresh_token_ttl = "1h"
`,
			wantErr: config.ErrInvalidConfig,
		},
		{
			name: "zero files per request",
			content: `
[upload]
max_files_per_request = 0
`,
			wantErr: config.ErrInvalidConfig,
		},
		{
			name:    "not toml",
			content: `this is = = not toml`,
			wantErr: config.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := config.LoadPolicy(writePolicy(t, tt.content))
			if tt.wantErr != nil {
				gt.Error(t, err).Is(tt.wantErr)
				return
			}
			gt.NoError(t, err).Required()
			tt.check(t, p)
		})
	}
}

func TestLoadPolicy_NotFound(t *testing.T) {
	_, err := config.LoadPolicy(filepath.Join(t.TempDir(), "missing.toml"))
	gt.Error(t, err).Is(config.ErrConfigNotFound)
}

func TestDefaultPolicyIsValid(t *testing.T) {
	p := config.DefaultPolicy()
	gt.NoError(t, p.Validate())
	gt.Value(t, p.UploadPolicy().MaxFilesPerRequest).Equal(model.MaxDocumentsPerTask)
}
