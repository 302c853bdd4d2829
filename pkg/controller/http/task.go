package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
	"github.com/secmon-lab/tasklane/pkg/usecase"
)

type createTaskRequest struct {
	Title          string             `json:"title"`
	Description    string             `json:"description"`
	Status         types.TaskStatus   `json:"status"`
	Priority       types.TaskPriority `json:"priority"`
	DueDate        *time.Time         `json:"dueDate"`
	AssignedTo     types.UserID       `json:"assignedTo"`
	EstimatedHours *float64           `json:"estimatedHours"`
	ActualHours    *float64           `json:"actualHours"`
	Tags           []string           `json:"tags"`
}

// updateTaskRequest keeps dueDate and assignedTo raw so that an explicit
// null can be told apart from an absent field
type updateTaskRequest struct {
	Title          *string             `json:"title"`
	Description    *string             `json:"description"`
	Status         *types.TaskStatus   `json:"status"`
	Priority       *types.TaskPriority `json:"priority"`
	DueDate        json.RawMessage     `json:"dueDate"`
	AssignedTo     json.RawMessage     `json:"assignedTo"`
	EstimatedHours *float64            `json:"estimatedHours"`
	ActualHours    *float64            `json:"actualHours"`
	Tags           []string            `json:"tags"`
}

func isNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}

func (req updateTaskRequest) patch() (model.TaskPatch, error) {
	p := model.TaskPatch{
		Title:          req.Title,
		Description:    req.Description,
		Status:         req.Status,
		Priority:       req.Priority,
		EstimatedHours: req.EstimatedHours,
		ActualHours:    req.ActualHours,
		Tags:           req.Tags,
	}

	switch {
	case len(req.DueDate) == 0:
	case isNull(req.DueDate):
		p.ClearDueDate = true
	default:
		var due time.Time
		if err := json.Unmarshal(req.DueDate, &due); err != nil {
			return p, goerr.Wrap(usecase.ErrValidation, "invalid due date", goerr.V("reason", err.Error()))
		}
		p.DueDate = &due
	}

	switch {
	case len(req.AssignedTo) == 0:
	case isNull(req.AssignedTo):
		none := types.UserID("")
		p.AssignedTo = &none
	default:
		var id types.UserID
		if err := json.Unmarshal(req.AssignedTo, &id); err != nil {
			return p, goerr.Wrap(usecase.ErrValidation, "invalid assignee", goerr.V("reason", err.Error()))
		}
		p.AssignedTo = &id
	}

	return p, nil
}

type taskResponse struct {
	Task *model.Task `json:"task"`
}

type taskListResponse struct {
	Tasks      []*model.Task    `json:"tasks"`
	Pagination model.Pagination `json:"pagination"`
}

func taskFilterFrom(r *http.Request) (model.TaskFilter, error) {
	qr := &queryReader{q: r.URL.Query()}
	f := model.TaskFilter{
		Status:     types.TaskStatus(qr.str("status")),
		Priority:   types.TaskPriority(qr.str("priority")),
		AssignedTo: types.UserID(qr.str("assignedTo")),
		CreatedBy:  types.UserID(qr.str("createdBy")),
		Search:     qr.str("search"),
		DueFrom:    qr.timeParam("dueDateFrom"),
		DueTo:      qr.timeParam("dueDateTo"),
		Page:       qr.page(),
	}
	if overdue := qr.boolParam("overdue"); overdue != nil {
		f.Overdue = *overdue
	}
	return f, qr.err
}

func listTasksHandler(taskUC *usecase.TaskUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := taskFilterFrom(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		tasks, p, err := taskUC.List(r.Context(), actorFrom(r.Context()), filter)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, r, http.StatusOK, "", taskListResponse{Tasks: tasks, Pagination: p})
	}
}

func getTaskHandler(taskUC *usecase.TaskUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		task, err := taskUC.Get(r.Context(), actorFrom(r.Context()), types.TaskID(chi.URLParam(r, "id")))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, r, http.StatusOK, "", taskResponse{Task: task})
	}
}

func createTaskHandler(taskUC *usecase.TaskUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createTaskRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		task, err := taskUC.Create(r.Context(), actorFrom(r.Context()), usecase.TaskInput{
			Title:          req.Title,
			Description:    req.Description,
			Status:         req.Status,
			Priority:       req.Priority,
			DueDate:        req.DueDate,
			AssignedTo:     req.AssignedTo,
			EstimatedHours: req.EstimatedHours,
			ActualHours:    req.ActualHours,
			Tags:           req.Tags,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, r, http.StatusCreated, "Task created successfully", taskResponse{Task: task})
	}
}

func updateTaskHandler(taskUC *usecase.TaskUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateTaskRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		patch, err := req.patch()
		if err != nil {
			writeError(w, r, err)
			return
		}

		task, err := taskUC.Update(r.Context(), actorFrom(r.Context()), types.TaskID(chi.URLParam(r, "id")), patch)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, r, http.StatusOK, "Task updated successfully", taskResponse{Task: task})
	}
}

func deleteTaskHandler(taskUC *usecase.TaskUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := taskUC.Delete(r.Context(), actorFrom(r.Context()), types.TaskID(chi.URLParam(r, "id"))); err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, r, http.StatusOK, "Task deleted successfully", nil)
	}
}
