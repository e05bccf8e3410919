// Package storage uploads proof blobs to object storage and deletes them
// again when a submission has to be rolled back.
package storage

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/bloodlink/internal/common"
	"github.com/dmitrijs2005/bloodlink/internal/logging"
)

// Backend is an object store. Put overwrites existing objects; Delete of a
// missing path is not an error.
type Backend interface {
	Put(ctx context.Context, path string, blob []byte, contentType string) error
	Locator(path string) string
	Delete(ctx context.Context, paths []string) error
}

// Uploader adds the pipeline's error taxonomy and logging on top of a Backend.
type Uploader struct {
	backend Backend
	logger  logging.Logger
}

func NewUploader(backend Backend, logger logging.Logger) *Uploader {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Uploader{backend: backend, logger: logger}
}

// Upload stores blob at path and returns its public locator. Re-uploading
// the same path replaces the object, so retries are safe.
func (u *Uploader) Upload(ctx context.Context, path string, blob []byte, contentType string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty object path", common.ErrUploadFailed)
	}
	if err := u.backend.Put(ctx, path, blob, contentType); err != nil {
		return "", fmt.Errorf("%w: %s: %w", common.ErrUploadFailed, path, err)
	}
	u.logger.Debug(ctx, "object uploaded", "path", path, "bytes", len(blob))
	return u.backend.Locator(path), nil
}

// ResolvePublicLocator maps an uploaded path to its locator without I/O.
func (u *Uploader) ResolvePublicLocator(path string) string {
	return u.backend.Locator(path)
}

// Delete removes paths in one batch. It is used only for rollback: empty
// and duplicate paths are skipped, nothing is retried, and the returned
// error (wrapping common.ErrDeleteFailed) is meant to be logged, not acted on.
func (u *Uploader) Delete(ctx context.Context, paths []string) error {
	batch := uniquePaths(paths)
	if len(batch) == 0 {
		return nil
	}
	if err := u.backend.Delete(ctx, batch); err != nil {
		return fmt.Errorf("%w: %v: %w", common.ErrDeleteFailed, batch, err)
	}
	u.logger.Debug(ctx, "objects deleted", "paths", batch)
	return nil
}

func uniquePaths(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
