package model

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// PageRequest selects one page of a sorted listing
type PageRequest struct {
	Page     int
	Limit    int
	SortBy   string
	SortDesc bool
}

// Normalize fills defaults and rejects out of range values
func (p PageRequest) Normalize(sortable []string, defaultSort string) (PageRequest, error) {
	if p.Page == 0 {
		p.Page = 1
	}
	if p.Limit == 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Page < 1 {
		return p, goerr.Wrap(ErrValidation, "page must be a positive integer", goerr.V("page", p.Page))
	}
	if p.Limit < 1 || p.Limit > MaxPageLimit {
		return p, goerr.Wrap(ErrValidation, "limit must be between 1 and 100", goerr.V("limit", p.Limit))
	}
	if p.SortBy == "" {
		p.SortBy = defaultSort
		p.SortDesc = true
	}
	if !slices.Contains(sortable, p.SortBy) {
		return p, goerr.Wrap(ErrValidation, "unsupported sort field", goerr.V("sort_by", p.SortBy))
	}
	return p, nil
}

// Offset is the number of items skipped before the page
func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Pagination describes where a page sits in the full result
type Pagination struct {
	CurrentPage  int  `json:"currentPage"`
	TotalPages   int  `json:"totalPages"`
	TotalItems   int  `json:"totalItems"`
	ItemsPerPage int  `json:"itemsPerPage"`
	HasNextPage  bool `json:"hasNextPage"`
	HasPrevPage  bool `json:"hasPrevPage"`
}

// NewPagination computes pagination for total items
func NewPagination(req PageRequest, total int) Pagination {
	pages := 0
	if req.Limit > 0 {
		pages = (total + req.Limit - 1) / req.Limit
	}
	return Pagination{
		CurrentPage:  req.Page,
		TotalPages:   pages,
		TotalItems:   total,
		ItemsPerPage: req.Limit,
		HasNextPage:  req.Page < pages,
		HasPrevPage:  req.Page > 1,
	}
}

// Paginate cuts one page out of an already sorted slice
func Paginate[T any](items []T, req PageRequest) ([]T, Pagination) {
	p := NewPagination(req, len(items))
	start := min(req.Offset(), len(items))
	end := min(start+req.Limit, len(items))
	return items[start:end], p
}

// TaskSortFields are the fields a task listing can be sorted by
var TaskSortFields = []string{"createdAt", "updatedAt", "dueDate", "priority", "status", "title"}

// TaskFilter narrows a task listing
type TaskFilter struct {
	Status     types.TaskStatus
	Priority   types.TaskPriority
	AssignedTo types.UserID
	CreatedBy  types.UserID
	Search     string
	DueFrom    *time.Time
	DueTo      *time.Time
	Overdue    bool

	// VisibleTo restricts results to tasks the user created or is assigned
	// to. It is set for every non-admin listing.
	VisibleTo types.UserID

	Page PageRequest
}

// Match reports whether t passes the filter
func (f TaskFilter) Match(t *Task, now time.Time) bool {
	if f.VisibleTo != "" && t.CreatedBy != f.VisibleTo && t.AssignedTo != f.VisibleTo {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.AssignedTo != "" && t.AssignedTo != f.AssignedTo {
		return false
	}
	if f.CreatedBy != "" && t.CreatedBy != f.CreatedBy {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(t.Title), q) && !strings.Contains(strings.ToLower(t.Description), q) {
			return false
		}
	}
	if f.DueFrom != nil && (t.DueDate == nil || t.DueDate.Before(*f.DueFrom)) {
		return false
	}
	if f.DueTo != nil && (t.DueDate == nil || t.DueDate.After(*f.DueTo)) {
		return false
	}
	if f.Overdue && !t.IsOverdue(now) {
		return false
	}
	return true
}

// SortTasks sorts tasks in place by a field from TaskSortFields. Ties are
// broken by ID so that pages are stable.
func SortTasks(tasks []*Task, by string, desc bool) {
	slices.SortStableFunc(tasks, func(a, b *Task) int {
		c := compareTasks(a, b, by)
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if desc {
			return -c
		}
		return c
	})
}

func compareTasks(a, b *Task, by string) int {
	switch by {
	case "updatedAt":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case "dueDate":
		return compareTimePtr(a.DueDate, b.DueDate)
	case "priority":
		return cmp.Compare(a.Priority.Rank(), b.Priority.Rank())
	case "status":
		return cmp.Compare(a.Status, b.Status)
	case "title":
		return cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

// compareTimePtr orders nil after every set time
func compareTimePtr(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return a.Compare(*b)
	}
}

// UserSortFields are the fields a user listing can be sorted by
var UserSortFields = []string{"createdAt", "updatedAt", "firstName", "lastName", "email", "lastLogin"}

// UserFilter narrows a user listing
type UserFilter struct {
	Role     types.Role
	IsActive *bool
	Search   string
	Page     PageRequest
}

// Match reports whether u passes the filter
func (f UserFilter) Match(u *User) bool {
	if f.Role != "" && u.Role != f.Role {
		return false
	}
	if f.IsActive != nil && u.IsActive != *f.IsActive {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(u.FirstName), q) &&
			!strings.Contains(strings.ToLower(u.LastName), q) &&
			!strings.Contains(u.Email, q) {
			return false
		}
	}
	return true
}

// SortUsers sorts users in place by a field from UserSortFields
func SortUsers(users []*User, by string, desc bool) {
	slices.SortStableFunc(users, func(a, b *User) int {
		var c int
		switch by {
		case "updatedAt":
			c = a.UpdatedAt.Compare(b.UpdatedAt)
		case "firstName":
			c = cmp.Compare(strings.ToLower(a.FirstName), strings.ToLower(b.FirstName))
		case "lastName":
			c = cmp.Compare(strings.ToLower(a.LastName), strings.ToLower(b.LastName))
		case "email":
			c = cmp.Compare(a.Email, b.Email)
		case "lastLogin":
			c = compareTimePtr(a.LastLogin, b.LastLogin)
		default:
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if desc {
			return -c
		}
		return c
	})
}
