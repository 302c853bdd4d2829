package interfaces

import (
	"context"

	"github.com/secmon-lab/tasklane/pkg/domain/model"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
)

// Notifier fans committed changes out to connected subscribers
type Notifier interface {
	// Notify delivers n to every subscriber in one of its scopes that also
	// passes n.Allows. It must only be called after the change committed.
	Notify(ctx context.Context, n *model.Notification) error

	// Disconnect closes every subscription held by the user, forcing a
	// reconnect that re-resolves the user's role and rooms
	Disconnect(ctx context.Context, userID types.UserID)
}
