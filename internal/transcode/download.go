package transcode

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const downloadTimeout = 30 * time.Minute

// DownloadSource streams the media at sourceURL into destPath. The parent
// directory is created if needed; a partial file is removed on failure.
func DownloadSource(ctx context.Context, client *http.Client, sourceURL, destPath string) error {
	if client == nil {
		client = &http.Client{Timeout: downloadTimeout}
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return &DownloadError{URL: sourceURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return &DownloadError{URL: sourceURL, Err: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		return &DownloadError{URL: sourceURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &DownloadError{URL: sourceURL, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	dest, err := os.Create(destPath)
	if err != nil {
		return &DownloadError{URL: sourceURL, Err: err}
	}

	if _, err := io.Copy(dest, resp.Body); err != nil {
		dest.Close()
		os.Remove(destPath)
		return &DownloadError{URL: sourceURL, Err: err}
	}
	if err := dest.Close(); err != nil {
		os.Remove(destPath)
		return &DownloadError{URL: sourceURL, Err: err}
	}
	return nil
}
