package model

import (
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/domain/types"
)

const (
	// MimeTypePDF is the only document type accepted by default
	MimeTypePDF = "application/pdf"

	// DocumentKeyPrefix is the object key prefix of every stored document
	DocumentKeyPrefix = "documents/"
)

// Document is a file attached to a task. TaskID and UploadedBy never change
// after creation.
type Document struct {
	ID            types.DocumentID `json:"id"`
	TaskID        types.TaskID     `json:"taskId"`
	UploadedBy    types.UserID     `json:"uploadedBy"`
	OriginalName  string           `json:"originalName"`
	StorageKey    string           `json:"-"`
	MimeType      string           `json:"mimeType"`
	SizeBytes     int64            `json:"fileSize"`
	DownloadCount int64            `json:"downloadCount"`
	IsActive      bool             `json:"isActive"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// DocumentStorageKey returns the object key for a document's bytes
func DocumentStorageKey(taskID types.TaskID, docID types.DocumentID) string {
	return fmt.Sprintf("%s%s/%s", DocumentKeyPrefix, taskID, docID)
}

// DocumentIDFromKey extracts the document ID from an object key produced by
// DocumentStorageKey
func DocumentIDFromKey(key string) (types.DocumentID, bool) {
	if !strings.HasPrefix(key, DocumentKeyPrefix) {
		return "", false
	}
	id := types.DocumentID(path.Base(key))
	if id.Validate() != nil {
		return "", false
	}
	return id, true
}

// UploadPolicy limits what a single upload request may carry
type UploadPolicy struct {
	MaxFileSize        int64
	MaxFilesPerRequest int
	AllowedMimeTypes   []string
}

// DefaultUploadPolicy accepts up to three PDF files of at most 5MB each
func DefaultUploadPolicy() UploadPolicy {
	return UploadPolicy{
		MaxFileSize:        5 << 20,
		MaxFilesPerRequest: MaxDocumentsPerTask,
		AllowedMimeTypes:   []string{MimeTypePDF},
	}
}

// Validate checks the policy itself
func (p UploadPolicy) Validate() error {
	if p.MaxFileSize <= 0 {
		return goerr.Wrap(ErrValidation, "max file size must be positive", goerr.V(SizeKey, p.MaxFileSize))
	}
	if p.MaxFilesPerRequest <= 0 {
		return goerr.Wrap(ErrValidation, "max files per request must be positive", goerr.V("max_files", p.MaxFilesPerRequest))
	}
	if len(p.AllowedMimeTypes) == 0 {
		return goerr.Wrap(ErrValidation, "at least one mime type must be allowed")
	}
	return nil
}

// CheckFile rejects a single file that breaks the policy
func (p UploadPolicy) CheckFile(name, mimeType string, size int64) error {
	if strings.TrimSpace(name) == "" {
		return goerr.Wrap(ErrValidation, "file name is required")
	}
	if size <= 0 {
		return goerr.Wrap(ErrValidation, "file is empty", goerr.V(FileNameKey, name))
	}
	if size > p.MaxFileSize {
		return goerr.Wrap(ErrValidation, "file is too large",
			goerr.V(FileNameKey, name), goerr.V(SizeKey, size), goerr.V("limit", p.MaxFileSize))
	}
	if !slices.Contains(p.AllowedMimeTypes, mimeType) {
		return goerr.Wrap(ErrValidation, "file type is not allowed",
			goerr.V(FileNameKey, name), goerr.V(MimeTypeKey, mimeType))
	}
	return nil
}
