// Package storage provides object storage abstractions for archived rosters.
package storage

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUploadFailed   = errors.New("upload failed")
	ErrDownloadFailed = errors.New("download failed")
	ErrDeleteFailed   = errors.New("delete failed")
)

// ObjectStorage abstracts the archive destination. Implementations include
// S3 and the local filesystem.
type ObjectStorage interface {
	// Put stores data at objectPath, replacing any existing object.
	Put(ctx context.Context, objectPath string, data []byte) error

	// Get retrieves the object at objectPath.
	Get(ctx context.Context, objectPath string) ([]byte, error)

	// Exists checks whether an object exists at objectPath.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// Delete removes the object at objectPath. Deleting a missing object
	// is not an error.
	Delete(ctx context.Context, objectPath string) error

	// ListObjects returns all object paths under the given prefix.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}
