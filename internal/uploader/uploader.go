// Package uploader copies finished run directories to cloud storage.
package uploader

import (
	"context"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"vqlbench/internal/config"
)

// Uploader publishes a run directory and returns its remote location.
type Uploader interface {
	Enabled() bool
	UploadDir(ctx context.Context, dir string) (string, error)
}

// NoopUploader is used when no storage backend is configured.
type NoopUploader struct{}

// Enabled always reports false.
func (n NoopUploader) Enabled() bool {
	return false
}

// UploadDir does nothing.
func (n NoopUploader) UploadDir(ctx context.Context, dir string) (string, error) {
	return "", nil
}

// New picks the configured backend. GCS wins when both are enabled.
func New(ctx context.Context, storage config.StorageConfig) (Uploader, error) {
	switch {
	case storage.GCS.Enabled:
		up, err := NewGCS(ctx, storage.GCS)
		if err != nil {
			return nil, errors.Wrap(err, "init gcs uploader")
		}
		return up, nil
	case storage.S3.Enabled:
		up, err := NewS3(ctx, storage.S3)
		if err != nil {
			return nil, errors.Wrap(err, "init s3 uploader")
		}
		return up, nil
	default:
		return NoopUploader{}, nil
	}
}

type object struct {
	path string
	key  string
}

// objectsFor lists every file under dir, keyed as prefix/<dir base>/<rel>.
// It also returns the key prefix shared by all objects.
func objectsFor(dir, prefix string) ([]object, string, error) {
	base := filepath.Base(filepath.Clean(dir))
	root := strings.Trim(prefix, "/")
	if root != "" {
		root += "/"
	}
	root += base + "/"
	var out []object
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		out = append(out, object{path: p, key: root + filepath.ToSlash(rel)})
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return out, root, nil
}

func contentType(key string) string {
	switch path.Ext(key) {
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	case ".zst":
		return "application/zstd"
	case ".log":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
