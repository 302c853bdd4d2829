package model

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
)

// UserPatch is a partial update of a user record. Nil fields are left as is.
type UserPatch struct {
	Email     *string     `json:"email,omitempty"`
	FirstName *string     `json:"firstName,omitempty"`
	LastName  *string     `json:"lastName,omitempty"`
	Role      *types.Role `json:"role,omitempty"`
	IsActive  *bool       `json:"isActive,omitempty"`
}

// ProjectFor returns the subset of the patch actor is allowed to apply.
// Non-admins silently lose the role and active flag fields.
func (p UserPatch) ProjectFor(actor Actor) UserPatch {
	if actor.IsAdmin() {
		return p
	}
	p.Role = nil
	p.IsActive = nil
	return p
}

// IsEmpty reports whether the patch changes nothing
func (p UserPatch) IsEmpty() bool {
	return p.Email == nil && p.FirstName == nil && p.LastName == nil && p.Role == nil && p.IsActive == nil
}

// ChangesPrivileges reports whether applying the patch to u changes role or
// active state
func (p UserPatch) ChangesPrivileges(u *User) bool {
	if p.Role != nil && *p.Role != u.Role {
		return true
	}
	if p.IsActive != nil && *p.IsActive != u.IsActive {
		return true
	}
	return false
}

// Apply returns a copy of u with the patch applied and validated
func (p UserPatch) Apply(u *User) (*User, error) {
	next := *u
	if p.Email != nil {
		next.Email = NormalizeEmail(*p.Email)
	}
	if p.FirstName != nil {
		next.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		next.LastName = *p.LastName
	}
	if p.Role != nil {
		if !p.Role.IsValid() {
			return nil, goerr.Wrap(ErrValidation, "invalid role", goerr.V(RoleKey, *p.Role))
		}
		next.Role = *p.Role
	}
	if p.IsActive != nil {
		next.IsActive = *p.IsActive
	}

	if err := next.Validate(); err != nil {
		return nil, err
	}
	return &next, nil
}
