package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/tasklane/pkg/cli/config"
	"github.com/secmon-lab/tasklane/pkg/utils/logging"
)

func TestLoggerConfigure(t *testing.T) {
	orig := logging.Default()
	t.Cleanup(func() { logging.SetDefault(orig) })

	t.Run("json to file redacts secrets", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.log")
		closer, err := config.NewLoggerForTest("debug", "json", path).Configure()
		gt.NoError(t, err).Required()

		type credential struct {
			User     string
			Password string
		}
		logging.Default().Info("login", "cred", credential{User: "sam", Password: "Secret1"})
		closer()

		raw, err := os.ReadFile(path)
		gt.NoError(t, err).Required()
		gt.S(t, string(raw)).Contains("sam")
		gt.B(t, strings.Contains(string(raw), "Secret1")).False()
	})

	t.Run("console", func(t *testing.T) {
		closer, err := config.NewLoggerForTest("info", "console", "stderr").Configure()
		gt.NoError(t, err).Required()
		closer()
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := config.NewLoggerForTest("verbose", "json", "stdout").Configure()
		gt.Error(t, err)
	})

	t.Run("invalid format", func(t *testing.T) {
		_, err := config.NewLoggerForTest("info", "xml", "stdout").Configure()
		gt.Error(t, err)
	})
}
