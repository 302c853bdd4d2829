package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/cli/config"
	httpctrl "github.com/secmon-lab/tasklane/pkg/controller/http"
	"github.com/secmon-lab/tasklane/pkg/service/notifier"
	"github.com/secmon-lab/tasklane/pkg/service/worker"
	"github.com/secmon-lab/tasklane/pkg/usecase"
	"github.com/secmon-lab/tasklane/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe(version string) *cli.Command {
	var addr string
	var staticDir string
	var origins []string
	var policyFile config.PolicyFile
	var repoCfg config.Repository
	var storageCfg config.Storage
	var authCfg config.Auth
	var notifierCfg config.Notifier
	var sentryCfg config.Sentry

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("TASKLANE_ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "static-dir",
			Usage:       "Directory of prebuilt frontend assets to serve at /",
			Sources:     cli.EnvVars("TASKLANE_STATIC_DIR"),
			Destination: &staticDir,
		},
		&cli.StringSliceFlag{
			Name:        "allowed-origin",
			Usage:       "Origin pattern accepted for websocket connections from other hosts (repeatable)",
			Sources:     cli.EnvVars("TASKLANE_ALLOWED_ORIGINS"),
			Destination: &origins,
		},
	}

	// Add shared config flags
	flags = append(flags, policyFile.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, storageCfg.Flags()...)
	flags = append(flags, authCfg.Flags()...)
	flags = append(flags, notifierCfg.Flags()...)
	flags = append(flags, sentryCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			flush, err := sentryCfg.Configure(version)
			if err != nil {
				return err
			}
			defer flush()

			policy, err := policyFile.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load policy")
			}
			authConfig, err := authCfg.Configure(policy)
			if err != nil {
				return goerr.Wrap(err, "failed to configure authentication")
			}

			// Initialize repository based on backend type
			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			store, closeStore, err := storageCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize document storage")
			}
			defer closeStore()

			hub := notifier.NewHub(repo.Task())
			events, stopNotifier, err := notifierCfg.Configure(ctx, hub)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize notifier")
			}
			defer stopNotifier()

			uploadPolicy := policy.UploadPolicy()
			uc := usecase.New(repo,
				usecase.WithFileStore(store),
				usecase.WithNotifier(events),
				usecase.WithUploadPolicy(uploadPolicy),
				usecase.WithAuthConfig(authConfig),
			)

			sweeper := worker.NewOrphanSweeper(repo, store,
				policy.Sweeper.Interval.Duration(),
				policy.Sweeper.Grace.Duration(),
			)
			if err := sweeper.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start orphan sweeper")
			}

			// Create HTTP server options
			httpOpts := []httpctrl.Options{
				httpctrl.WithHub(hub),
				httpctrl.WithUploadPolicy(uploadPolicy),
			}
			if staticDir != "" {
				httpOpts = append(httpOpts, httpctrl.WithStaticDir(staticDir))
			}
			if len(origins) > 0 {
				httpOpts = append(httpOpts, httpctrl.WithOriginPatterns(origins))
			}

			httpHandler, err := httpctrl.New(uc, httpOpts...)
			if err != nil {
				sweeper.Stop()
				return goerr.Wrap(err, "failed to create http server")
			}
			server := &http.Server{
				Addr:              addr,
				Handler:           httpHandler,
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			// Start server in goroutine
			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server",
					"addr", addr,
					"policy", policy,
					"repository", repoCfg,
					"notifier", notifierCfg,
					"auth", authCfg,
					"sentry", sentryCfg,
				)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			// Wait for shutdown signal or server error
			select {
			case err := <-errCh:
				sweeper.Stop()
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				sweeper.Stop()

				// Create shutdown context with timeout
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				// Attempt graceful shutdown
				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
