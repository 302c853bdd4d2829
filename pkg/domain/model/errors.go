package model

import "github.com/m-mizutani/goerr/v2"

// ErrValidation marks input rejected by a domain rule
var ErrValidation = goerr.New("validation failed")

// Context keys for error values
const (
	EmailKey    = "email"
	RoleKey     = "role"
	TaskIDKey   = "task_id"
	StatusKey   = "status"
	PriorityKey = "priority"
	FileNameKey = "file_name"
	SizeKey     = "size"
	MimeTypeKey = "mime_type"
)
