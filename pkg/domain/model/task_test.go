package model_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
)

func TestApplyTaskTransition(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	t2 := t1.Add(time.Hour)

	task := &model.Task{Title: "ship", CreatedBy: creatorID}
	model.ApplyTaskTransition(nil, task, t0)
	gt.Value(t, task.Status).Equal(types.TaskStatusTodo)
	gt.Value(t, task.Priority).Equal(types.TaskPriorityMedium)
	gt.Value(t, task.CompletedAt).Nil()
	gt.A(t, task.Tags).Length(0)
	gt.B(t, task.CreatedAt.Equal(t0)).True()

	t.Run("entering completed stamps completedAt", func(t *testing.T) {
		prev := task.Copy()
		next := task.Copy()
		next.Status = types.TaskStatusCompleted
		model.ApplyTaskTransition(prev, next, t1)
		gt.Value(t, next.CompletedAt).NotNil()
		gt.B(t, next.CompletedAt.Equal(t1)).True()

		t.Run("staying completed keeps the original stamp", func(t *testing.T) {
			again := next.Copy()
			again.Title = "ship it"
			model.ApplyTaskTransition(next, again, t2)
			gt.B(t, again.CompletedAt.Equal(t1)).True()
			gt.B(t, again.UpdatedAt.Equal(t2)).True()
		})

		t.Run("leaving completed clears the stamp", func(t *testing.T) {
			reopened := next.Copy()
			reopened.Status = types.TaskStatusReview
			model.ApplyTaskTransition(next, reopened, t2)
			gt.Value(t, reopened.CompletedAt).Nil()
		})
	})

	t.Run("created directly as completed", func(t *testing.T) {
		done := &model.Task{Title: "done", CreatedBy: creatorID, Status: types.TaskStatusCompleted}
		model.ApplyTaskTransition(nil, done, t0)
		gt.B(t, done.CompletedAt.Equal(t0)).True()
	})
}

func TestTaskCopy(t *testing.T) {
	t.Run("empty tags stay non-nil", func(t *testing.T) {
		c := (&model.Task{Title: "ship", Tags: []string{}}).Copy()
		gt.Value(t, c.Tags).NotNil()
		gt.A(t, c.Tags).Length(0)
	})

	t.Run("tags do not share storage", func(t *testing.T) {
		task := &model.Task{Title: "ship", Tags: []string{"a", "b"}}
		c := task.Copy()
		c.Tags[0] = "z"
		gt.Value(t, task.Tags[0]).Equal("a")
	})
}

func TestTaskValidate(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	valid := func() *model.Task {
		return &model.Task{
			Title:     "valid",
			Status:    types.TaskStatusTodo,
			Priority:  types.TaskPriorityLow,
			CreatedBy: creatorID,
		}
	}

	gt.NoError(t, valid().Validate(now, true))

	past := now.Add(-time.Hour)
	tk := valid()
	tk.DueDate = &past
	gt.Error(t, tk.Validate(now, true)).Is(model.ErrValidation)
	gt.NoError(t, tk.Validate(now, false))

	tk = valid()
	tk.Title = "   "
	gt.Error(t, tk.Validate(now, true)).Is(model.ErrValidation)

	tk = valid()
	hours := 1000.0
	tk.EstimatedHours = &hours
	gt.Error(t, tk.Validate(now, true)).Is(model.ErrValidation)

	tk = valid()
	tk.Priority = types.TaskPriority("critical")
	gt.Error(t, tk.Validate(now, true)).Is(model.ErrValidation)
}

func TestTaskPatch(t *testing.T) {
	task := newTask(assigneeID)

	newAssignee := strangerID
	p := model.TaskPatch{AssignedTo: &newAssignee, Tags: []string{" a ", "b", "a", ""}}
	gt.B(t, p.ChangesAssignee(task)).True()

	next := p.Apply(task)
	gt.Value(t, next.AssignedTo).Equal(strangerID)
	gt.Value(t, task.AssignedTo).Equal(assigneeID)
	gt.A(t, next.Tags).Length(2)

	same := assigneeID
	gt.B(t, model.TaskPatch{AssignedTo: &same}.ChangesAssignee(task)).False()

	due := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	withDue := model.TaskPatch{DueDate: &due}.Apply(task)
	gt.B(t, model.TaskPatch{DueDate: &due}.ChangesDueDate(task)).True()
	gt.B(t, model.TaskPatch{DueDate: &due}.ChangesDueDate(withDue)).False()
	cleared := model.TaskPatch{ClearDueDate: true}.Apply(withDue)
	gt.Value(t, cleared.DueDate).Nil()
}

func TestUploadPolicy(t *testing.T) {
	p := model.DefaultUploadPolicy()
	gt.NoError(t, p.Validate())

	gt.NoError(t, p.CheckFile("design.pdf", model.MimeTypePDF, 1024))
	gt.Error(t, p.CheckFile("design.pdf", model.MimeTypePDF, 0)).Is(model.ErrValidation)
	gt.Error(t, p.CheckFile("design.pdf", model.MimeTypePDF, 5<<20+1)).Is(model.ErrValidation)
	gt.Error(t, p.CheckFile("notes.txt", "text/plain", 10)).Is(model.ErrValidation)
	gt.Error(t, p.CheckFile("", model.MimeTypePDF, 10)).Is(model.ErrValidation)
}

func TestDocumentStorageKey(t *testing.T) {
	taskID := types.NewTaskID()
	docID := types.NewDocumentID()
	key := model.DocumentStorageKey(taskID, docID)

	got, ok := model.DocumentIDFromKey(key)
	gt.B(t, ok).True()
	gt.Value(t, got).Equal(docID)

	_, ok = model.DocumentIDFromKey("other/" + docID.String())
	gt.B(t, ok).False()
	_, ok = model.DocumentIDFromKey(model.DocumentKeyPrefix + "x/not-an-id")
	gt.B(t, ok).False()
}
