package repository_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/tasklane/pkg/domain/interfaces"
	"github.com/secmon-lab/tasklane/pkg/repository/firestore"
	"github.com/secmon-lab/tasklane/pkg/repository/memory"
	"github.com/secmon-lab/tasklane/pkg/repository/postgres"
)

type repoFactory func(t *testing.T) interfaces.Repository

// runOnBackends runs a repository suite against every backend that is
// available in the current environment
func runOnBackends(t *testing.T, suite func(t *testing.T, newRepo repoFactory)) {
	t.Run("Memory", func(t *testing.T) {
		suite(t, func(t *testing.T) interfaces.Repository {
			return memory.New()
		})
	})

	t.Run("Firestore", func(t *testing.T) {
		suite(t, newFirestoreRepository)
	})

	t.Run("Postgres", func(t *testing.T) {
		suite(t, newPostgresRepository)
	})
}

func newFirestoreRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
	}
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if databaseID == "" {
		t.Skip("TEST_FIRESTORE_DATABASE_ID not set")
	}

	repo, err := firestore.New(context.Background(), projectID, databaseID,
		firestore.WithCollectionPrefix(fmt.Sprintf("test_%d", time.Now().UnixNano())))
	gt.NoError(t, err).Required()

	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("failed to close firestore repository: %v", err)
		}
	})
	return repo
}

func newPostgresRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	repo, err := postgres.New(ctx, dsn)
	gt.NoError(t, err).Required()
	gt.NoError(t, repo.Migrate()).Required()

	pool, err := pgxpool.New(ctx, dsn)
	gt.NoError(t, err).Required()
	_, err = pool.Exec(ctx, `TRUNCATE documents, tasks, users`)
	pool.Close()
	gt.NoError(t, err).Required()

	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("failed to close postgres repository: %v", err)
		}
	})
	return repo
}
