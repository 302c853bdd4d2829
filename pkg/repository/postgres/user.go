package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/domain/interfaces"
	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
)

type userRepository struct {
	p *Postgres
}

const userColumns = `id, email, password_hash, first_name, last_name, role, is_active,
	refresh_token, last_login, created_at, updated_at`

var userSortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"firstName": "lower(first_name)",
	"lastName":  "lower(last_name)",
	"email":     "email",
	"lastLogin": "last_login",
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Role,
		&u.IsActive, &u.RefreshToken, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) Create(ctx context.Context, u *model.User) (*model.User, error) {
	created := *u
	if created.ID == "" {
		created.ID = types.NewUserID()
	}
	if err := model.PrepareUser(&created, r.p.now()); err != nil {
		return nil, goerr.Wrap(err, "failed to prepare user")
	}

	_, err := r.p.pool.Exec(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		created.ID.String(), created.Email, created.PasswordHash, created.FirstName, created.LastName,
		string(created.Role), created.IsActive, created.RefreshToken, created.LastLogin,
		created.CreatedAt, created.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, goerr.Wrap(interfaces.ErrEmailTaken, "email already registered", goerr.V(model.EmailKey, created.Email))
		}
		return nil, goerr.Wrap(err, "failed to insert user", goerr.V("id", created.ID))
	}
	return &created, nil
}

func (r *userRepository) Get(ctx context.Context, id types.UserID) (*model.User, error) {
	u, err := scanUser(r.p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, goerr.Wrap(interfaces.ErrNotFound, "user not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get user", goerr.V("id", id))
	}
	return u, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = model.NormalizeEmail(email)
	u, err := scanUser(r.p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, goerr.Wrap(interfaces.ErrNotFound, "user not found", goerr.V(model.EmailKey, email))
		}
		return nil, goerr.Wrap(err, "failed to get user by email")
	}
	return u, nil
}

func (r *userRepository) List(ctx context.Context, filter model.UserFilter) ([]*model.User, model.Pagination, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Role != "" {
		conds = append(conds, "role = "+arg(string(filter.Role)))
	}
	if filter.IsActive != nil {
		conds = append(conds, "is_active = "+arg(*filter.IsActive))
	}
	if filter.Search != "" {
		p := arg("%" + escapeLike(strings.ToLower(filter.Search)) + "%")
		conds = append(conds, fmt.Sprintf("(lower(first_name) LIKE %[1]s OR lower(last_name) LIKE %[1]s OR email LIKE %[1]s)", p))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.p.pool.QueryRow(ctx, `SELECT count(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, model.Pagination{}, goerr.Wrap(err, "failed to count users")
	}

	order := orderBy(userSortColumns, filter.Page)
	query := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY %s LIMIT %s OFFSET %s`,
		userColumns, where, order, arg(filter.Page.Limit), arg(filter.Page.Offset()))

	rows, err := r.p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, model.Pagination{}, goerr.Wrap(err, "failed to list users")
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.User, error) {
		return scanUser(row)
	})
	if err != nil {
		return nil, model.Pagination{}, goerr.Wrap(err, "failed to scan users")
	}

	return users, model.NewPagination(filter.Page, total), nil
}

func (r *userRepository) Update(ctx context.Context, id types.UserID, mutate func(u *model.User) error) (*model.User, error) {
	var updated *model.User
	err := r.p.inTx(ctx, func(tx pgx.Tx) error {
		existing, err := scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id.String()))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return goerr.Wrap(interfaces.ErrNotFound, "user not found", goerr.V("id", id))
			}
			return goerr.Wrap(err, "failed to lock user", goerr.V("id", id))
		}

		next := *existing
		if err := mutate(&next); err != nil {
			return goerr.Wrap(err, "user update aborted", goerr.V("id", id))
		}
		next.ID = id
		next.CreatedAt = existing.CreatedAt
		if err := model.PrepareUser(&next, r.p.now()); err != nil {
			return goerr.Wrap(err, "failed to prepare user")
		}

		_, err = tx.Exec(ctx, `UPDATE users SET
				email = $2, password_hash = $3, first_name = $4, last_name = $5, role = $6,
				is_active = $7, refresh_token = $8, last_login = $9, updated_at = $10
			WHERE id = $1`,
			id.String(), next.Email, next.PasswordHash, next.FirstName, next.LastName,
			string(next.Role), next.IsActive, next.RefreshToken, next.LastLogin, next.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return goerr.Wrap(interfaces.ErrEmailTaken, "email already registered", goerr.V(model.EmailKey, next.Email))
			}
			return goerr.Wrap(err, "failed to update user", goerr.V("id", id))
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *userRepository) Delete(ctx context.Context, id types.UserID) error {
	tag, err := r.p.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id.String())
	if err != nil {
		return goerr.Wrap(err, "failed to delete user", goerr.V("id", id))
	}
	if tag.RowsAffected() == 0 {
		return goerr.Wrap(interfaces.ErrNotFound, "user not found", goerr.V("id", id))
	}
	return nil
}

// orderBy renders an ORDER BY clause from a normalized page request. The
// column comes from a fixed map so it is never user text. Ties are broken
// by id as the in-process sorters do.
func orderBy(columns map[string]string, page model.PageRequest) string {
	col, ok := columns[page.SortBy]
	if !ok {
		col = "created_at"
	}
	dir := "ASC"
	if page.SortDesc {
		dir = "DESC"
	}
	return fmt.Sprintf("%s %s, id %s", col, dir, dir)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
