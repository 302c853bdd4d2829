package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/cli/config"
	"github.com/secmon-lab/tasklane/pkg/usecase"
	"github.com/secmon-lab/tasklane/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdAdmin() *cli.Command {
	return &cli.Command{
		Name:  "admin",
		Usage: "Administrative operations",
		Commands: []*cli.Command{
			cmdCreateAdmin(),
		},
	}
}

func cmdCreateAdmin() *cli.Command {
	var in usecase.RegisterInput
	var repoCfg config.Repository

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "email",
			Usage:       "Email of the admin account",
			Required:    true,
			Destination: &in.Email,
		},
		&cli.StringFlag{
			Name:        "password",
			Usage:       "Initial password",
			Required:    true,
			Sources:     cli.EnvVars("TASKLANE_ADMIN_PASSWORD"),
			Destination: &in.Password,
		},
		&cli.StringFlag{
			Name:        "first-name",
			Usage:       "First name",
			Value:       "Admin",
			Destination: &in.FirstName,
		},
		&cli.StringFlag{
			Name:        "last-name",
			Usage:       "Last name",
			Value:       "User",
			Destination: &in.LastName,
		},
	}
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:  "create",
		Usage: "Create an admin account",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			uc := usecase.New(repo)
			u, err := uc.User.CreateAdmin(ctx, in)
			if err != nil {
				return goerr.Wrap(err, "failed to create admin", goerr.V("email", in.Email))
			}

			logging.Default().Info("Admin account created", "user_id", u.ID, "email", u.Email)
			fmt.Fprintf(c.Root().Writer, "%s admin %s (%s)\n", okMark("✔"), u.Email, u.ID)
			return nil
		},
	}
}
