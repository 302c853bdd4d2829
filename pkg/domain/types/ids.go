package types

import (
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// UserID identifies a registered user
type UserID string

// NewUserID returns a fresh random UserID
func NewUserID() UserID {
	return UserID(uuid.NewString())
}

// Validate checks if the UserID is a UUID
func (id UserID) Validate() error {
	return validateUUID("user", string(id))
}

func (id UserID) String() string {
	return string(id)
}

// TaskID identifies a task
type TaskID string

// NewTaskID returns a fresh random TaskID
func NewTaskID() TaskID {
	return TaskID(uuid.NewString())
}

// Validate checks if the TaskID is a UUID
func (id TaskID) Validate() error {
	return validateUUID("task", string(id))
}

func (id TaskID) String() string {
	return string(id)
}

// DocumentID identifies a document attached to a task
type DocumentID string

// NewDocumentID returns a fresh random DocumentID
func NewDocumentID() DocumentID {
	return DocumentID(uuid.NewString())
}

// Validate checks if the DocumentID is a UUID
func (id DocumentID) Validate() error {
	return validateUUID("document", string(id))
}

func (id DocumentID) String() string {
	return string(id)
}

func validateUUID(kind, v string) error {
	if v == "" {
		return goerr.New(kind+" ID cannot be empty")
	}
	if _, err := uuid.Parse(v); err != nil {
		return goerr.Wrap(err, kind+" ID must be a UUID", goerr.V("id", v))
	}
	return nil
}
