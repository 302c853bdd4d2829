package usecase

import (
	"errors"
	"fmt"

	"github.com/secmon-lab/tasklane/pkg/domain/model"
)

// Sentinel errors for use case layer
var (
	// Not found errors
	ErrTaskNotFound     = errors.New("task not found")
	ErrDocumentNotFound = errors.New("document not found")
	ErrUserNotFound     = errors.New("user not found")

	// Access control errors
	ErrForbidden       = errors.New("access denied")
	ErrUnauthenticated = errors.New("authentication required")

	// Input and state errors
	ErrValidation    = model.ErrValidation
	ErrQuotaExceeded = errors.New("document quota exceeded")
	ErrConflict      = errors.New("conflict")
)

// QuotaExceededError rejects an upload batch that would push a task past
// its document cap. It matches ErrQuotaExceeded with errors.Is.
type QuotaExceededError struct {
	AllowedCount int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("maximum %d documents per task; %d more allowed",
		model.MaxDocumentsPerTask, e.AllowedCount)
}

func (e *QuotaExceededError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// Context keys for error values
const (
	TaskIDKey     = model.TaskIDKey
	DocumentIDKey = "document_id"
	UserIDKey     = "user_id"
)
