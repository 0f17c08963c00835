// Package storage defines the blob store used to publish finished output files.
// Implementations live in the gcs and memory subpackages.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ContentTypeJSONL is the media type used for uploaded output files.
const ContentTypeJSONL = "application/x-ndjson"

// BlobStore uploads objects and returns their URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// ObjectPath builds <prefix>/<runID>/<base name of localFile>.
func ObjectPath(prefix, runID, localFile string) string {
	parts := make([]string, 0, 3)
	if p := strings.Trim(prefix, "/"); p != "" {
		parts = append(parts, p)
	}
	if runID != "" {
		parts = append(parts, runID)
	}
	parts = append(parts, filepath.Base(localFile))
	return path.Join(parts...)
}

// UploadFile streams localFile to the store under objectPath.
func UploadFile(ctx context.Context, store BlobStore, objectPath, localFile string) (string, error) {
	f, err := os.Open(localFile) //nolint:gosec // path comes from the run config
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localFile, err)
	}
	defer f.Close() //nolint:errcheck // read-only

	uri, err := store.PutObject(ctx, objectPath, ContentTypeJSONL, f)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", localFile, err)
	}
	return uri, nil
}
