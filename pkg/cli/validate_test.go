package cli_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/tasklane/pkg/cli"
)

func TestRun_ValidateCommand_ValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")
	content := `
[upload]
max_file_size = 2097152
max_files_per_request = 3
allowed_mime_types = ["application/pdf"]

[auth]
access_token_ttl = "10m"
refresh_token_ttl = "72h"

[sweeper]
interval = "30m"
grace = "2h"
`
	err := os.WriteFile(configPath, []byte(content), 0o600)
	gt.NoError(t, err).Required()

	err = cli.Run(context.Background(), []string{"tasklane", "validate", "--config", configPath}, "test")
	gt.NoError(t, err)
}

func TestRun_ValidateCommand_Defaults(t *testing.T) {
	err := cli.Run(context.Background(), []string{"tasklane", "validate"}, "test")
	gt.NoError(t, err)
}

func TestRun_ValidateCommand_InvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	// Invalid: sweeper interval is not a duration
	content := `
[sweeper]
interval = "every hour"
`
	err := os.WriteFile(configPath, []byte(content), 0o600)
	gt.NoError(t, err).Required()

	err = cli.Run(context.Background(), []string{"tasklane", "validate", "--config", configPath}, "test")
	gt.Value(t, err).NotNil()
}

func TestRun_ValidateCommand_MissingConfig(t *testing.T) {
	err := cli.Run(context.Background(), []string{"tasklane", "validate", "--config", filepath.Join(t.TempDir(), "nope.toml")}, "test")
	gt.Value(t, err).NotNil()
}

func TestRun_ValidateCommand_ShortSecret(t *testing.T) {
	err := cli.Run(context.Background(), []string{"tasklane", "validate", "--jwt-secret", "short"}, "test")
	gt.Value(t, err).NotNil()
}

func TestRun_AdminCreate_Memory(t *testing.T) {
	err := cli.Run(context.Background(), []string{
		"tasklane", "admin", "create",
		"--repository-backend", "memory",
		"--email", "root@example.com",
		"--password", "Secret1",
	}, "test")
	gt.NoError(t, err)

	err = cli.Run(context.Background(), []string{
		"tasklane", "admin", "create",
		"--repository-backend", "memory",
		"--email", "root@example.com",
		"--password", "weak",
	}, "test")
	gt.Value(t, err).NotNil()
}
