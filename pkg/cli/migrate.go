package cli

import (
	"context"

	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/cli/config"
	"github.com/secmon-lab/tasklane/pkg/repository/firestore"
	"github.com/secmon-lab/tasklane/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdMigrate() *cli.Command {
	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Prepare database indexes and schema",
		Commands: []*cli.Command{
			cmdMigrateFirestore(),
			cmdMigratePostgres(),
		},
	}
}

func cmdMigrateFirestore() *cli.Command {
	var projectID string
	var databaseID string
	var prefix string
	var dryRun bool

	return &cli.Command{
		Name:  "firestore",
		Usage: "Migrate Firestore indexes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "firestore-project-id",
				Usage:       "Firestore Project ID (required)",
				Required:    true,
				Sources:     cli.EnvVars("TASKLANE_FIRESTORE_PROJECT_ID"),
				Destination: &projectID,
			},
			&cli.StringFlag{
				Name:        "firestore-database-id",
				Usage:       "Firestore Database ID",
				Sources:     cli.EnvVars("TASKLANE_FIRESTORE_DATABASE_ID"),
				Destination: &databaseID,
			},
			&cli.StringFlag{
				Name:        "firestore-collection-prefix",
				Usage:       "Prefix added to every Firestore collection name",
				Sources:     cli.EnvVars("TASKLANE_FIRESTORE_COLLECTION_PREFIX"),
				Destination: &prefix,
			},
			&cli.BoolFlag{
				Name:        "dry-run",
				Usage:       "Preview changes without applying",
				Destination: &dryRun,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			logger.Info("Migrate configuration",
				"projectID", projectID,
				"databaseID", databaseID,
				"prefix", prefix,
				"dryRun", dryRun)

			indexConfig := getIndexConfig(prefix)

			client, err := fireconf.NewClient(ctx, projectID, databaseID)
			if err != nil {
				return goerr.Wrap(err, "failed to create fireconf client")
			}
			defer func() {
				if err := client.Close(); err != nil {
					logger.Error("failed to close fireconf client", "error", err.Error())
				}
			}()

			if dryRun {
				logger.Info("Dry run mode - previewing changes")
				plan, err := client.GetMigrationPlan(ctx, indexConfig)
				if err != nil {
					return goerr.Wrap(err, "failed to create migration plan")
				}

				if len(plan.Steps) == 0 {
					logger.Info("No changes required")
					return nil
				}

				for _, step := range plan.Steps {
					logger.Info("Migration step",
						"collection", step.Collection,
						"operation", step.Operation,
						"description", step.Description,
						"destructive", step.Destructive)
				}
				return nil
			}

			logger.Info("Applying migrations")
			if err := client.Migrate(ctx, indexConfig); err != nil {
				return goerr.Wrap(err, "failed to apply migrations")
			}
			logger.Info("Migrations applied successfully")
			return nil
		},
	}
}

// getIndexConfig returns the Firestore index configuration
func getIndexConfig(prefix string) *fireconf.Config {
	return &fireconf.Config{
		Collections: []fireconf.Collection{
			{
				Name: firestore.CollectionName(prefix, firestore.DocumentsCollection),
				Indexes: []fireconf.Index{
					// ListActiveByTask: TaskID ASC, IsActive ASC, CreatedAt DESC
					{
						Fields: []fireconf.IndexField{
							{Path: "TaskID", Order: fireconf.OrderAscending},
							{Path: "IsActive", Order: fireconf.OrderAscending},
							{Path: "CreatedAt", Order: fireconf.OrderDescending},
						},
					},
				},
			},
		},
	}
}

func cmdMigratePostgres() *cli.Command {
	var repoCfg config.Repository
	var statusOnly bool

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "status",
			Usage:       "Report the schema version without applying anything",
			Destination: &statusOnly,
		},
	}
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:  "postgres",
		Usage: "Apply the embedded PostgreSQL schema",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			db, err := repoCfg.OpenPostgres(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if err := db.Close(); err != nil {
					logger.Error("failed to close postgres repository", "error", err.Error())
				}
			}()

			if !statusOnly {
				logger.Info("Applying migrations")
				if err := db.Migrate(); err != nil {
					return goerr.Wrap(err, "failed to apply migrations")
				}
			}

			status, err := db.MigrationStatus()
			if err != nil {
				return goerr.Wrap(err, "failed to read migration status")
			}
			logger.Info("Schema status",
				"version", status.Version,
				"latest", status.Latest,
				"dirty", status.Dirty)

			if status.Dirty {
				return goerr.New("schema is dirty, manual repair required", goerr.V("version", status.Version))
			}
			return nil
		},
	}
}
