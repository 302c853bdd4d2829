package worker_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/tasklane/pkg/domain/interfaces"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
	"github.com/secmon-lab/tasklane/pkg/repository/memory"
	"github.com/secmon-lab/tasklane/pkg/service/storage"
	"github.com/secmon-lab/tasklane/pkg/service/worker"
)

func TestOrphanSweeper(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	store := storage.NewMemory()
	owner := types.NewUserID()

	task, err := repo.Task().Create(ctx, &model.Task{Title: "files", CreatedBy: owner})
	gt.NoError(t, err).Required()

	put := func(key string, age time.Duration) {
		gt.NoError(t, store.Put(ctx, key, strings.NewReader("%PDF"), model.MimeTypePDF)).Required()
		store.SetUpdatedAt(key, time.Now().Add(-age))
	}

	// an admitted document, a soft deleted one, a stale orphan and an
	// upload still in flight
	active := &model.Document{ID: types.NewDocumentID(), TaskID: task.ID, UploadedBy: owner, OriginalName: "a.pdf", MimeType: model.MimeTypePDF, SizeBytes: 4}
	active.StorageKey = model.DocumentStorageKey(task.ID, active.ID)
	removed := &model.Document{ID: types.NewDocumentID(), TaskID: task.ID, UploadedBy: owner, OriginalName: "b.pdf", MimeType: model.MimeTypePDF, SizeBytes: 4}
	removed.StorageKey = model.DocumentStorageKey(task.ID, removed.ID)

	_, _, err = repo.Document().Admit(ctx, task.ID, []*model.Document{active, removed})
	gt.NoError(t, err).Required()
	_, err = repo.Document().Deactivate(ctx, removed.ID)
	gt.NoError(t, err).Required()

	stale := model.DocumentStorageKey(task.ID, types.NewDocumentID())
	fresh := model.DocumentStorageKey(task.ID, types.NewDocumentID())

	put(active.StorageKey, time.Hour)
	put(removed.StorageKey, time.Hour)
	put(stale, time.Hour)
	put(fresh, time.Second)
	put("documents/"+task.ID.String()+"/not-a-document-id", time.Hour)

	sweeper := worker.NewOrphanSweeper(repo, store, time.Hour, 10*time.Minute)
	deleted, err := sweeper.Sweep(ctx)
	gt.NoError(t, err).Required()
	gt.Value(t, deleted).Equal(1)

	_, err = store.Open(ctx, stale)
	gt.Error(t, err).Is(interfaces.ErrNotFound)

	for _, key := range []string{active.StorageKey, removed.StorageKey, fresh} {
		rc, err := store.Open(ctx, key)
		gt.NoError(t, err).Required()
		_ = rc.Close()
	}
	gt.Value(t, store.Len()).Equal(4)
}

func TestOrphanSweeperStartStop(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	store := storage.NewMemory()

	key := model.DocumentStorageKey(types.NewTaskID(), types.NewDocumentID())
	gt.NoError(t, store.Put(ctx, key, strings.NewReader("%PDF"), model.MimeTypePDF)).Required()
	store.SetUpdatedAt(key, time.Now().Add(-time.Hour))

	sweeper := worker.NewOrphanSweeper(repo, store, 10*time.Millisecond, time.Minute)
	gt.NoError(t, sweeper.Start(ctx)).Required()

	deadline := time.Now().Add(2 * time.Second)
	for store.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	sweeper.Stop()

	gt.Value(t, store.Len()).Equal(0)
}
