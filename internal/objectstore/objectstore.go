// Package objectstore wraps the object storage operations the upload and
// transcode pipelines depend on: presigned URL generation, object transfer,
// and cleanup.
package objectstore

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrKeyRequired is returned before any network call when an operation is
	// invoked with a blank object key.
	ErrKeyRequired = errors.New("objectstore: object key required")
	// ErrBucketRequired is returned before any network call when an operation
	// is invoked with a blank bucket name.
	ErrBucketRequired = errors.New("objectstore: bucket required")
)

// Gateway exposes the object storage operations used by the HTTP facade and
// the transcode worker.
type Gateway interface {
	// PresignUpload returns a time-limited URL callers can PUT an object to.
	PresignUpload(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
	// PresignDownload returns a time-limited URL callers can GET an object from.
	PresignDownload(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
	// Download streams an object into the provided writer.
	Download(ctx context.Context, bucket, key string, dst io.Writer) error
	// Upload stores the reader's contents under the given key with the
	// supplied content type.
	Upload(ctx context.Context, bucket, key, contentType string, body io.Reader) error
	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, bucket, key string) error
}

func validateObjectRef(bucket, key string) error {
	if strings.TrimSpace(bucket) == "" {
		return ErrBucketRequired
	}
	if strings.TrimSpace(key) == "" {
		return ErrKeyRequired
	}
	return nil
}

// ContentTypeForFile maps playlist and segment file extensions to the MIME
// types HLS players expect.
func ContentTypeForFile(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".m3u8":
		return "application/vnd.apple.mpegurl"
	case ".ts":
		return "video/mp2t"
	case ".mp4":
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}
