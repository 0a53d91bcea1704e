// Package storage provides object storage abstractions for cloud storage operations.
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
	ErrListFailed     = errors.New("list failed")

	// ErrStopWalk may be returned by a WalkFunc to end a walk early.
	// Walk itself then returns nil.
	ErrStopWalk = errors.New("stop walk")
)

// WalkFunc is called for every object under a prefix, in lexical order.
type WalkFunc func(objectPath string) error

// ObjectStorage abstracts cloud object storage operations.
// Implementations include S3 and the local filesystem for development and tests.
// No implementation retries; failures are returned to the caller.
type ObjectStorage interface {
	// Put writes body to objectPath in a single request.
	Put(ctx context.Context, objectPath string, body []byte, contentType string) error

	// Get reads the whole object at objectPath.
	// Returns ErrObjectNotFound if it does not exist.
	Get(ctx context.Context, objectPath string) ([]byte, error)

	// UploadMultipart uploads a local file, using multipart for large files.
	// Returns the ETag of the uploaded object.
	UploadMultipart(ctx context.Context, localPath, objectPath, contentType string) (string, error)

	// Delete removes an object from storage. Deleting a missing object is not an error.
	Delete(ctx context.Context, objectPath string) error

	// Exists checks if an object exists in storage.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// Walk calls fn for each object whose path starts with prefix.
	Walk(ctx context.Context, prefix string, fn WalkFunc) error
}

// ListObjects returns all object paths under the given prefix.
func ListObjects(ctx context.Context, s ObjectStorage, prefix string) ([]string, error) {
	var objects []string
	err := s.Walk(ctx, prefix, func(objectPath string) error {
		objects = append(objects, objectPath)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return objects, nil
}

// MultipartUploadConfig holds configuration for multipart uploads.
type MultipartUploadConfig struct {
	// PartSize is the size of each part in bytes (default: 5MB).
	PartSize int64
}

// DefaultMultipartConfig returns the default multipart upload configuration.
func DefaultMultipartConfig() MultipartUploadConfig {
	return MultipartUploadConfig{
		PartSize: 5 * 1024 * 1024, // 5MB
	}
}
