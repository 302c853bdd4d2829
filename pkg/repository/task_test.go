package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/tasklane/pkg/domain/interfaces"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
)

func newTestTask(title string, createdBy, assignedTo types.UserID) *model.Task {
	return &model.Task{
		Title:      title,
		CreatedBy:  createdBy,
		AssignedTo: assignedTo,
	}
}

func defaultTaskPage(t *testing.T) model.PageRequest {
	t.Helper()
	page, err := model.PageRequest{}.Normalize(model.TaskSortFields, "createdAt")
	gt.NoError(t, err).Required()
	return page
}

func runTaskRepositoryTest(t *testing.T, newRepo repoFactory) {
	alice := types.NewUserID()
	bob := types.NewUserID()
	carol := types.NewUserID()

	t.Run("Create fills defaults", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Task().Create(ctx, newTestTask("write report", alice, ""))
		gt.NoError(t, err).Required()

		gt.String(t, created.ID.String()).NotEqual("")
		gt.Value(t, created.Status).Equal(types.TaskStatusTodo)
		gt.Value(t, created.Priority).Equal(types.TaskPriorityMedium)
		gt.Value(t, created.Tags).NotNil()
		gt.B(t, created.CreatedAt.IsZero()).False()

		got, err := repo.Task().Get(ctx, created.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.Title).Equal("write report")
		gt.Value(t, got.CreatedBy).Equal(alice)
	})

	t.Run("Get missing task", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Task().Get(context.Background(), types.NewTaskID())
		gt.Error(t, err).Is(interfaces.ErrNotFound)
	})

	t.Run("Update keeps creator and stamps completion", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		created, err := repo.Task().Create(ctx, newTestTask("review", alice, bob))
		gt.NoError(t, err).Required()

		next := created.Copy()
		next.CreatedBy = carol
		next.Status = types.TaskStatusCompleted
		updated, err := repo.Task().Update(ctx, next)
		gt.NoError(t, err).Required()

		gt.Value(t, updated.CreatedBy).Equal(alice)
		gt.Value(t, updated.CompletedAt).NotNil()
		gt.B(t, updated.CreatedAt.Equal(created.CreatedAt)).True()

		reopened := updated.Copy()
		reopened.Status = types.TaskStatusInProgress
		updated, err = repo.Task().Update(ctx, reopened)
		gt.NoError(t, err).Required()
		gt.Value(t, updated.CompletedAt).Nil()

		missing := newTestTask("ghost", alice, "")
		missing.ID = types.NewTaskID()
		_, err = repo.Task().Update(ctx, missing)
		gt.Error(t, err).Is(interfaces.ErrNotFound)
	})

	t.Run("List limits non-admin visibility", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Task().Create(ctx, newTestTask("by alice", alice, ""))
		gt.NoError(t, err).Required()
		_, err = repo.Task().Create(ctx, newTestTask("for alice", bob, alice))
		gt.NoError(t, err).Required()
		_, err = repo.Task().Create(ctx, newTestTask("bob only", bob, carol))
		gt.NoError(t, err).Required()

		page := defaultTaskPage(t)

		tasks, p, err := repo.Task().List(ctx, model.TaskFilter{VisibleTo: alice, Page: page}, time.Now())
		gt.NoError(t, err).Required()
		gt.A(t, tasks).Length(2)
		gt.Value(t, p.TotalItems).Equal(2)

		tasks, _, err = repo.Task().List(ctx, model.TaskFilter{Page: page}, time.Now())
		gt.NoError(t, err).Required()
		gt.A(t, tasks).Length(3)

		tasks, _, err = repo.Task().List(ctx, model.TaskFilter{Search: "ONLY", Page: page}, time.Now())
		gt.NoError(t, err).Required()
		gt.A(t, tasks).Length(1)
		gt.Value(t, tasks[0].Title).Equal("bob only")
	})

	t.Run("List sorts by priority", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		for _, p := range []types.TaskPriority{types.TaskPriorityLow, types.TaskPriorityUrgent, types.TaskPriorityHigh} {
			task := newTestTask(string(p), alice, "")
			task.Priority = p
			_, err := repo.Task().Create(ctx, task)
			gt.NoError(t, err).Required()
		}

		page, err := model.PageRequest{SortBy: "priority", SortDesc: true}.Normalize(model.TaskSortFields, "createdAt")
		gt.NoError(t, err).Required()

		tasks, _, err := repo.Task().List(ctx, model.TaskFilter{Page: page}, time.Now())
		gt.NoError(t, err).Required()
		gt.A(t, tasks).Length(3)
		gt.Value(t, tasks[0].Priority).Equal(types.TaskPriorityUrgent)
		gt.Value(t, tasks[2].Priority).Equal(types.TaskPriorityLow)
	})

	t.Run("Delete cascades document records", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		task, err := repo.Task().Create(ctx, newTestTask("with files", alice, ""))
		gt.NoError(t, err).Required()

		doc := newTestDocument(task.ID, alice)
		_, _, err = repo.Document().Admit(ctx, task.ID, []*model.Document{doc})
		gt.NoError(t, err).Required()

		gt.NoError(t, repo.Task().Delete(ctx, task.ID)).Required()

		_, err = repo.Task().Get(ctx, task.ID)
		gt.Error(t, err).Is(interfaces.ErrNotFound)
		_, err = repo.Document().Get(ctx, doc.ID)
		gt.Error(t, err).Is(interfaces.ErrNotFound)

		gt.Error(t, repo.Task().Delete(ctx, task.ID)).Is(interfaces.ErrNotFound)
	})

	t.Run("ClearAssignee unassigns every task of the user", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		t1, err := repo.Task().Create(ctx, newTestTask("one", alice, bob))
		gt.NoError(t, err).Required()
		_, err = repo.Task().Create(ctx, newTestTask("two", alice, bob))
		gt.NoError(t, err).Required()
		t3, err := repo.Task().Create(ctx, newTestTask("three", alice, carol))
		gt.NoError(t, err).Required()

		cleared, err := repo.Task().ClearAssignee(ctx, bob)
		gt.NoError(t, err).Required()
		gt.A(t, cleared).Length(2)

		got, err := repo.Task().Get(ctx, t1.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.AssignedTo).Equal(types.UserID(""))

		got, err = repo.Task().Get(ctx, t3.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, got.AssignedTo).Equal(carol)
	})
}

func TestTaskRepository(t *testing.T) {
	runOnBackends(t, runTaskRepositoryTest)
}
