package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/cli/config"
	"github.com/secmon-lab/tasklane/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

var (
	okMark   = color.New(color.FgGreen).SprintFunc()
	failMark = color.New(color.FgRed, color.Bold).SprintFunc()
	label    = color.New(color.FgCyan).SprintFunc()
)

func cmdValidate() *cli.Command {
	var policyFile config.PolicyFile
	var authCfg config.Auth
	var repoCfg config.Repository
	var checkSchema bool

	var flags []cli.Flag
	flags = append(flags, policyFile.Flags()...)
	flags = append(flags, authCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, &cli.BoolFlag{
		Name:        "check-schema",
		Usage:       "Also verify that the PostgreSQL schema is up to date",
		Destination: &checkSchema,
	})

	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate the policy file and optionally the database schema",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			w := c.Root().Writer

			// Step 1: Load and validate the policy file
			policy, err := policyFile.Configure()
			if err != nil {
				fmt.Fprintf(w, "%s policy: %v\n", failMark("✘"), err)
				return goerr.Wrap(err, "configuration validation failed")
			}
			source := policyFile.Path()
			if source == "" {
				source = "(defaults)"
			}
			fmt.Fprintf(w, "%s policy %s\n", okMark("✔"), source)
			printPolicy(w, policy)

			// Step 2: Token settings with the policy applied
			authConfig, err := authCfg.Configure(policy)
			if err != nil {
				fmt.Fprintf(w, "%s auth: %v\n", failMark("✘"), err)
				return goerr.Wrap(err, "auth configuration is invalid")
			}
			fmt.Fprintf(w, "%s auth access=%s refresh=%s\n", okMark("✔"),
				authConfig.AccessTokenTTL, authConfig.RefreshTokenTTL)

			// Step 3: If requested, check the PostgreSQL schema version
			if !checkSchema {
				logging.Default().Debug("Schema check not requested, skipping")
				return nil
			}

			db, err := repoCfg.OpenPostgres(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if err := db.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			status, err := db.MigrationStatus()
			if err != nil {
				return goerr.Wrap(err, "failed to read migration status")
			}
			if status.Dirty || status.Version != status.Latest {
				fmt.Fprintf(w, "%s schema version=%d latest=%d dirty=%v\n", failMark("✘"),
					status.Version, status.Latest, status.Dirty)
				return goerr.New("schema is not up to date",
					goerr.V("version", status.Version), goerr.V("latest", status.Latest))
			}
			fmt.Fprintf(w, "%s schema version=%d\n", okMark("✔"), status.Version)
			return nil
		},
	}
}

func printPolicy(w io.Writer, p *config.Policy) {
	fmt.Fprintf(w, "  %s max_file_size=%d max_files_per_request=%d allowed_mime_types=%s\n",
		label("[upload]"), p.Upload.MaxFileSize, p.Upload.MaxFilesPerRequest,
		strings.Join(p.Upload.AllowedMimeTypes, ","))
	fmt.Fprintf(w, "  %s interval=%s grace=%s\n",
		label("[sweeper]"), p.Sweeper.Interval.Duration(), p.Sweeper.Grace.Duration())
}
