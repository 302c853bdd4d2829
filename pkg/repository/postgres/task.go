package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/domain/interfaces"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
)

type taskRepository struct {
	p *Postgres
}

const taskColumns = `id, title, description, status, priority, due_date, assigned_to, created_by,
	completed_at, estimated_hours, actual_hours, tags, created_at, updated_at`

var taskSortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"dueDate":   "due_date",
	"priority":  "CASE priority WHEN 'low' THEN 0 WHEN 'medium' THEN 1 WHEN 'high' THEN 2 WHEN 'urgent' THEN 3 ELSE -1 END",
	"status":    "status",
	"title":     "lower(title)",
}

func scanTask(row pgx.Row) (*model.Task, error) {
	var t model.Task
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.DueDate,
		&t.AssignedTo, &t.CreatedBy, &t.CompletedAt, &t.EstimatedHours, &t.ActualHours,
		&t.Tags, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	return &t, nil
}

func taskArgs(t *model.Task) []any {
	return []any{
		t.ID.String(), t.Title, t.Description, string(t.Status), string(t.Priority), t.DueDate,
		t.AssignedTo.String(), t.CreatedBy.String(), t.CompletedAt, t.EstimatedHours, t.ActualHours,
		t.Tags, t.CreatedAt, t.UpdatedAt,
	}
}

func (r *taskRepository) Create(ctx context.Context, t *model.Task) (*model.Task, error) {
	created := t.Copy()
	if created.ID == "" {
		created.ID = types.NewTaskID()
	}
	model.ApplyTaskTransition(nil, created, r.p.now())

	_, err := r.p.pool.Exec(ctx, `INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`, taskArgs(created)...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to insert task", goerr.V(model.TaskIDKey, created.ID))
	}
	return created, nil
}

func (r *taskRepository) Get(ctx context.Context, id types.TaskID) (*model.Task, error) {
	t, err := scanTask(r.p.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, goerr.Wrap(interfaces.ErrNotFound, "task not found", goerr.V(model.TaskIDKey, id))
		}
		return nil, goerr.Wrap(err, "failed to get task", goerr.V(model.TaskIDKey, id))
	}
	return t, nil
}

func (r *taskRepository) List(ctx context.Context, filter model.TaskFilter, now time.Time) ([]*model.Task, model.Pagination, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.VisibleTo != "" {
		v := arg(filter.VisibleTo.String())
		conds = append(conds, fmt.Sprintf("(created_by = %[1]s OR assigned_to = %[1]s)", v))
	}
	if filter.Status != "" {
		conds = append(conds, "status = "+arg(string(filter.Status)))
	}
	if filter.Priority != "" {
		conds = append(conds, "priority = "+arg(string(filter.Priority)))
	}
	if filter.AssignedTo != "" {
		conds = append(conds, "assigned_to = "+arg(filter.AssignedTo.String()))
	}
	if filter.CreatedBy != "" {
		conds = append(conds, "created_by = "+arg(filter.CreatedBy.String()))
	}
	if filter.Search != "" {
		p := arg("%" + escapeLike(strings.ToLower(filter.Search)) + "%")
		conds = append(conds, fmt.Sprintf("(lower(title) LIKE %[1]s OR lower(description) LIKE %[1]s)", p))
	}
	if filter.DueFrom != nil {
		conds = append(conds, "due_date >= "+arg(*filter.DueFrom))
	}
	if filter.DueTo != nil {
		conds = append(conds, "due_date <= "+arg(*filter.DueTo))
	}
	if filter.Overdue {
		conds = append(conds, fmt.Sprintf("(due_date < %s AND status <> '%s')", arg(now), types.TaskStatusCompleted))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.p.pool.QueryRow(ctx, `SELECT count(*) FROM tasks`+where, args...).Scan(&total); err != nil {
		return nil, model.Pagination{}, goerr.Wrap(err, "failed to count tasks")
	}

	query := fmt.Sprintf(`SELECT %s FROM tasks%s ORDER BY %s LIMIT %s OFFSET %s`,
		taskColumns, where, orderBy(taskSortColumns, filter.Page), arg(filter.Page.Limit), arg(filter.Page.Offset()))

	rows, err := r.p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, model.Pagination{}, goerr.Wrap(err, "failed to list tasks")
	}
	tasks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.Task, error) {
		return scanTask(row)
	})
	if err != nil {
		return nil, model.Pagination{}, goerr.Wrap(err, "failed to scan tasks")
	}

	return tasks, model.NewPagination(filter.Page, total), nil
}

func (r *taskRepository) Update(ctx context.Context, t *model.Task) (*model.Task, error) {
	var updated *model.Task

	err := r.p.inTx(ctx, func(tx pgx.Tx) error {
		existing, err := scanTask(tx.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, t.ID.String()))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return goerr.Wrap(interfaces.ErrNotFound, "task not found", goerr.V(model.TaskIDKey, t.ID))
			}
			return goerr.Wrap(err, "failed to lock task", goerr.V(model.TaskIDKey, t.ID))
		}

		updated = t.Copy()
		updated.CreatedBy = existing.CreatedBy
		updated.CreatedAt = existing.CreatedAt
		model.ApplyTaskTransition(existing, updated, r.p.now())

		_, err = tx.Exec(ctx, `UPDATE tasks SET
				title = $2, description = $3, status = $4, priority = $5, due_date = $6,
				assigned_to = $7, created_by = $8, completed_at = $9, estimated_hours = $10,
				actual_hours = $11, tags = $12, created_at = $13, updated_at = $14
			WHERE id = $1`, taskArgs(updated)...)
		if err != nil {
			return goerr.Wrap(err, "failed to update task", goerr.V(model.TaskIDKey, t.ID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the task. Document rows go with it through the foreign
// key cascade.
func (r *taskRepository) Delete(ctx context.Context, id types.TaskID) error {
	tag, err := r.p.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id.String())
	if err != nil {
		return goerr.Wrap(err, "failed to delete task", goerr.V(model.TaskIDKey, id))
	}
	if tag.RowsAffected() == 0 {
		return goerr.Wrap(interfaces.ErrNotFound, "task not found", goerr.V(model.TaskIDKey, id))
	}
	return nil
}

func (r *taskRepository) ClearAssignee(ctx context.Context, userID types.UserID) ([]*model.Task, error) {
	rows, err := r.p.pool.Query(ctx, `UPDATE tasks SET assigned_to = '', updated_at = $2
		WHERE assigned_to = $1
		RETURNING `+taskColumns, userID.String(), r.p.now())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to unassign tasks", goerr.V("user_id", userID))
	}
	tasks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.Task, error) {
		return scanTask(row)
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to scan unassigned tasks", goerr.V("user_id", userID))
	}
	return tasks, nil
}
