package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/domain/interfaces"
	"github.com/secmon-lab/tasklane/pkg/service/storage"
	"github.com/secmon-lab/tasklane/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

const (
	StorageFilesystem = "fs"
	StorageMemory     = "memory"
	StorageGCS        = "gcs"
)

// Storage holds CLI flags for the document byte store
type Storage struct {
	backend      string
	dir          string
	bucket       string
	prefix       string
	identityFile string
}

// Flags returns CLI flags for storage configuration
func (s *Storage) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "storage-backend",
			Usage:       "Document storage backend (fs, memory or gcs)",
			Value:       StorageFilesystem,
			Category:    "Storage",
			Sources:     cli.EnvVars("TASKLANE_STORAGE_BACKEND"),
			Destination: &s.backend,
		},
		&cli.StringFlag{
			Name:        "storage-dir",
			Usage:       "Root directory for the fs storage backend",
			Value:       "./uploads",
			Category:    "Storage",
			Sources:     cli.EnvVars("TASKLANE_STORAGE_DIR"),
			Destination: &s.dir,
		},
		&cli.StringFlag{
			Name:        "storage-gcs-bucket",
			Usage:       "Cloud Storage bucket (required when using gcs backend)",
			Category:    "Storage",
			Sources:     cli.EnvVars("TASKLANE_STORAGE_GCS_BUCKET"),
			Destination: &s.bucket,
		},
		&cli.StringFlag{
			Name:        "storage-gcs-prefix",
			Usage:       "Object name prefix in the Cloud Storage bucket",
			Category:    "Storage",
			Sources:     cli.EnvVars("TASKLANE_STORAGE_GCS_PREFIX"),
			Destination: &s.prefix,
		},
		&cli.StringFlag{
			Name:        "storage-age-identity",
			Usage:       "age X25519 identity file; when set, documents are encrypted at rest",
			Category:    "Storage",
			Sources:     cli.EnvVars("TASKLANE_STORAGE_AGE_IDENTITY"),
			Destination: &s.identityFile,
		},
	}
}

func (s Storage) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("backend", s.backend),
		slog.String("dir", s.dir),
		slog.String("gcs_bucket", s.bucket),
		slog.String("gcs_prefix", s.prefix),
		slog.Bool("encrypted", s.identityFile != ""),
	)
}

// Configure builds the file store. The returned function releases it.
func (s *Storage) Configure(ctx context.Context) (interfaces.FileStore, func(), error) {
	var store interfaces.FileStore
	closer := func() {}

	switch s.backend {
	case StorageFilesystem:
		fs, err := storage.NewFilesystem(s.dir)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to initialize filesystem storage", goerr.V("dir", s.dir))
		}
		store = fs

	case StorageMemory:
		logging.Default().Warn("Using in-memory document storage; uploads are lost on restart")
		store = storage.NewMemory()

	case StorageGCS:
		if s.bucket == "" {
			return nil, nil, goerr.New("storage-gcs-bucket is required when using gcs backend")
		}
		var opts []storage.GCSOption
		if s.prefix != "" {
			opts = append(opts, storage.WithGCSPrefix(s.prefix))
		}
		gcs, err := storage.NewGCS(ctx, s.bucket, opts...)
		if err != nil {
			return nil, nil, goerr.Wrap(err, "failed to initialize gcs storage", goerr.V("bucket", s.bucket))
		}
		store = gcs
		closer = func() {
			if err := gcs.Close(); err != nil {
				logging.Default().Warn("failed to close gcs client", "error", err)
			}
		}

	default:
		return nil, nil, goerr.New("invalid storage backend", goerr.V("backend", s.backend))
	}

	if s.identityFile != "" {
		identity, err := storage.LoadIdentity(s.identityFile)
		if err != nil {
			closer()
			return nil, nil, err
		}
		store = storage.NewEncrypted(store, identity)
	}

	logging.Default().Info("Document storage configured", "storage", s)
	return store, closer, nil
}
