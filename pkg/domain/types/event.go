package types

// EventKind names a change notification
type EventKind string

const (
	EventTaskCreated      EventKind = "task:created"
	EventTaskUpdated      EventKind = "task:updated"
	EventTaskDeleted      EventKind = "task:deleted"
	EventTaskAssigned     EventKind = "task:assigned"
	EventDocumentUploaded EventKind = "document:uploaded"
	EventDocumentDeleted  EventKind = "document:deleted"
	EventUserUpdated      EventKind = "user:updated"
)

func (e EventKind) String() string {
	return string(e)
}
