package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStorage implements ObjectStorage using the local filesystem.
// This is primarily used for development and tests. Object paths use
// forward slashes and map onto directories below basePath.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local filesystem storage.
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &LocalStorage{basePath: basePath}, nil
}

// Put writes body to objectPath. The file appears atomically.
func (l *LocalStorage) Put(ctx context.Context, objectPath string, body []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := l.writeAtomic(objectPath, func(w io.Writer) error {
		_, err := w.Write(body)
		return err
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return nil
}

// Get reads the whole object at objectPath.
func (l *LocalStorage) Get(ctx context.Context, objectPath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(l.fullPath(objectPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	return data, nil
}

// UploadMultipart copies a local file into storage and returns its MD5 ETag.
// The filesystem keeps no content type.
func (l *LocalStorage) UploadMultipart(ctx context.Context, localPath, objectPath, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer src.Close()

	etag, err := l.writeAtomic(objectPath, func(w io.Writer) error {
		_, err := io.Copy(w, src)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return etag, nil
}

// writeAtomic writes through a temp file in the destination directory and
// renames it into place, returning the MD5 of the content.
func (l *LocalStorage) writeAtomic(objectPath string, write func(io.Writer) error) (string, error) {
	destPath := l.fullPath(objectPath)

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	hash := md5.New()
	if err := write(io.MultiWriter(tmp, hash)); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), destPath); err != nil {
		return "", err
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// Delete removes an object from local storage.
func (l *LocalStorage) Delete(ctx context.Context, objectPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(l.fullPath(objectPath)); err != nil {
		if os.IsNotExist(err) {
			// S3 Delete is idempotent, so we don't return an error
			return nil
		}
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

// Exists checks if an object exists in local storage.
func (l *LocalStorage) Exists(ctx context.Context, objectPath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := os.Stat(l.fullPath(objectPath))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Walk visits every object whose path starts with prefix, matching S3
// prefix semantics rather than directory semantics.
func (l *LocalStorage) Walk(ctx context.Context, prefix string, fn WalkFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Only the directory part of the prefix narrows the filesystem walk.
	dir := ""
	if i := strings.LastIndex(prefix, "/"); i >= 0 {
		dir = prefix[:i]
	}

	err := filepath.WalkDir(l.fullPath(dir), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil // prefix doesn't exist, nothing to visit
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}

		rel, err := filepath.Rel(l.basePath, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		return fn(key)
	})
	if err != nil {
		if errors.Is(err, ErrStopWalk) {
			return nil
		}
		return err
	}
	return nil
}

// fullPath returns the full filesystem path for an object.
func (l *LocalStorage) fullPath(objectPath string) string {
	return filepath.Join(l.basePath, filepath.FromSlash(path.Clean("/"+objectPath)))
}
