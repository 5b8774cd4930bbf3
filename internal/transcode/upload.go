package transcode

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"vodforge/internal/objectstore"
)

// UploadResult summarises one rendition set upload.
type UploadResult struct {
	Uploaded int
	Failed   int
}

// UploadRenditionSet walks outputDir and uploads every file to the bucket
// under jobID-prefixed keys, preserving the relative sub-path with forward
// slashes. Per-file failures are counted and logged without aborting the
// batch; only a fully failed batch returns an error.
func UploadRenditionSet(ctx context.Context, store objectstore.Gateway, outputDir, bucket, jobID string, concurrency int, logger *slog.Logger) (UploadResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = 4
	}

	var files []string
	err := filepath.WalkDir(outputDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return UploadResult{}, &UploadError{Err: fmt.Errorf("enumerate output: %w", err)}
	}
	if len(files) == 0 {
		return UploadResult{}, &UploadError{Err: fmt.Errorf("no output files under %s", outputDir)}
	}
	logger.Info("uploading rendition set", "files", len(files), "bucket", bucket)

	var failed atomic.Int64
	var errMu sync.Mutex
	var lastErr error
	recordFailure := func(err error) {
		failed.Add(1)
		errMu.Lock()
		lastErr = err
		errMu.Unlock()
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)
	for _, path := range files {
		path := path
		group.Go(func() error {
			relPath, err := filepath.Rel(outputDir, path)
			if err != nil {
				recordFailure(err)
				return nil
			}
			key := filepath.ToSlash(filepath.Join(jobID, relPath))

			file, err := os.Open(path)
			if err != nil {
				recordFailure(err)
				logger.Error("open output file failed", "path", path, "error", err)
				return nil
			}
			defer file.Close()

			contentType := objectstore.ContentTypeForFile(path)
			if err := store.Upload(groupCtx, bucket, key, contentType, file); err != nil {
				recordFailure(err)
				logger.Error("upload file failed", "key", key, "error", err)
			}
			return nil
		})
	}
	// workers never return errors, so Wait only surfaces context cancellation
	if err := group.Wait(); err != nil {
		return UploadResult{}, &UploadError{Err: err}
	}

	result := UploadResult{
		Failed:   int(failed.Load()),
		Uploaded: len(files) - int(failed.Load()),
	}
	if result.Failed > 0 {
		logger.Warn("some files failed to upload", "failed", result.Failed, "total", len(files))
	}
	if result.Uploaded == 0 {
		return result, &UploadError{Failed: result.Failed, Total: len(files), Err: lastErr}
	}
	return result, nil
}
