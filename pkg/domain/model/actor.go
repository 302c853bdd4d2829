package model

import "github.com/secmon-lab/tasklane/pkg/domain/types"

// Actor is the authenticated principal a request runs as. It is resolved
// fresh from the user store on every request and passed explicitly down to
// every use case call.
type Actor struct {
	ID   types.UserID
	Role types.Role
}

// IsAdmin reports whether the actor holds the admin role
func (a Actor) IsAdmin() bool {
	return a.Role == types.RoleAdmin
}

// IsZero reports whether the actor is unauthenticated
func (a Actor) IsZero() bool {
	return a.ID == ""
}

// Is reports whether the actor is the given user. An empty id never matches.
func (a Actor) Is(id types.UserID) bool {
	return id != "" && a.ID == id
}

// ActorOf builds the actor for a user record
func ActorOf(u *User) Actor {
	return Actor{ID: u.ID, Role: u.Role.Normalize()}
}
