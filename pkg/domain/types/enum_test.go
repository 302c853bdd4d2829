package types_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
)

func TestTaskStatus_IsValid(t *testing.T) {
	tests := []struct {
		name   string
		status types.TaskStatus
		want   bool
	}{
		{name: "todo", status: types.TaskStatusTodo, want: true},
		{name: "in progress", status: types.TaskStatusInProgress, want: true},
		{name: "review", status: types.TaskStatusReview, want: true},
		{name: "completed", status: types.TaskStatusCompleted, want: true},
		{name: "upper case", status: types.TaskStatus("TODO"), want: false},
		{name: "empty", status: types.TaskStatus(""), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Value(t, tt.status.IsValid()).Equal(tt.want)
		})
	}
}

func TestParseTaskStatus(t *testing.T) {
	s, err := types.ParseTaskStatus("review")
	gt.NoError(t, err)
	gt.Value(t, s).Equal(types.TaskStatusReview)

	_, err = types.ParseTaskStatus("done")
	gt.Error(t, err)

	gt.Value(t, types.TaskStatus("").Normalize()).Equal(types.TaskStatusTodo)
	gt.A(t, types.AllTaskStatuses()).Length(4)
}

func TestTaskPriority(t *testing.T) {
	gt.Value(t, types.TaskPriority("").Normalize()).Equal(types.TaskPriorityMedium)
	gt.B(t, types.TaskPriorityUrgent.Rank() > types.TaskPriorityHigh.Rank()).True()
	gt.B(t, types.TaskPriorityLow.Rank() < types.TaskPriorityMedium.Rank()).True()
	gt.Value(t, types.TaskPriority("asap").Rank()).Equal(-1)

	p, err := types.ParseTaskPriority("urgent")
	gt.NoError(t, err)
	gt.Value(t, p).Equal(types.TaskPriorityUrgent)

	_, err = types.ParseTaskPriority("critical")
	gt.Error(t, err)
}

func TestRole(t *testing.T) {
	gt.Value(t, types.Role("").Normalize()).Equal(types.RoleUser)
	gt.B(t, types.RoleAdmin.IsValid()).True()
	gt.B(t, types.Role("root").IsValid()).False()

	r, err := types.ParseRole("admin")
	gt.NoError(t, err)
	gt.Value(t, r).Equal(types.RoleAdmin)

	_, err = types.ParseRole("owner")
	gt.Error(t, err)
}

func TestIDs(t *testing.T) {
	gt.NoError(t, types.NewUserID().Validate())
	gt.NoError(t, types.NewTaskID().Validate())
	gt.NoError(t, types.NewDocumentID().Validate())

	gt.Error(t, types.UserID("").Validate())
	gt.Error(t, types.TaskID("not-a-uuid").Validate())
	gt.Error(t, types.DocumentID("123").Validate())

	gt.Value(t, types.NewTaskID()).NotEqual(types.NewTaskID())
}
