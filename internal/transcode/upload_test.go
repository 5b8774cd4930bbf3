package transcode

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type fakeGateway struct {
	mu      sync.Mutex
	objects map[string]string
	failOn  map[string]bool
	failAll bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{objects: map[string]string{}, failOn: map[string]bool{}}
}

func (g *fakeGateway) Upload(_ context.Context, _, key, contentType string, body io.Reader) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failAll || g.failOn[key] {
		return errors.New("upload refused")
	}
	io.Copy(io.Discard, body)
	g.objects[key] = contentType
	return nil
}

func (g *fakeGateway) PresignUpload(context.Context, string, string, time.Duration) (string, error) {
	return "", errors.New("not implemented")
}

func (g *fakeGateway) PresignDownload(context.Context, string, string, time.Duration) (string, error) {
	return "", errors.New("not implemented")
}

func (g *fakeGateway) Download(context.Context, string, string, io.Writer) error {
	return errors.New("not implemented")
}

func (g *fakeGateway) Delete(context.Context, string, string) error {
	return errors.New("not implemented")
}

func writeOutputTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"master.m3u8":         "#EXTM3U",
		"360p/playlist.m3u8":  "#EXTM3U",
		"360p/segment-000.ts": "segment",
		"480p/playlist.m3u8":  "#EXTM3U",
		"480p/segment-000.ts": "segment",
		"720p/playlist.m3u8":  "#EXTM3U",
		"720p/segment-000.ts": "segment",
		"720p/segment-001.ts": "segment",
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	return dir
}

func TestUploadRenditionSetUploadsEverything(t *testing.T) {
	dir := writeOutputTree(t)
	gateway := newFakeGateway()

	result, err := UploadRenditionSet(context.Background(), gateway, dir, "hls-output", "video-abc123", 2, nil)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if result.Uploaded != 8 || result.Failed != 0 {
		t.Fatalf("unexpected result %+v", result)
	}

	if ct := gateway.objects["video-abc123/master.m3u8"]; ct != "application/vnd.apple.mpegurl" {
		t.Fatalf("master manifest missing or wrong content type %q", ct)
	}
	if ct := gateway.objects["video-abc123/360p/segment-000.ts"]; ct != "video/mp2t" {
		t.Fatalf("segment missing or wrong content type %q", ct)
	}
	if ct := gateway.objects["video-abc123/720p/playlist.m3u8"]; ct != "application/vnd.apple.mpegurl" {
		t.Fatalf("variant playlist missing or wrong content type %q", ct)
	}
}

func TestUploadRenditionSetContinuesPastFailures(t *testing.T) {
	dir := writeOutputTree(t)
	gateway := newFakeGateway()
	gateway.failOn["video-abc123/360p/segment-000.ts"] = true
	gateway.failOn["video-abc123/480p/segment-000.ts"] = true

	result, err := UploadRenditionSet(context.Background(), gateway, dir, "hls-output", "video-abc123", 2, nil)
	if err != nil {
		t.Fatalf("partial failure should not abort the batch: %v", err)
	}
	if result.Failed != 2 {
		t.Fatalf("expected 2 failures, got %+v", result)
	}
	if result.Uploaded != 6 {
		t.Fatalf("expected 6 uploads, got %+v", result)
	}
}

func TestUploadRenditionSetMixedFailureTypes(t *testing.T) {
	dir := writeOutputTree(t)
	if err := os.Symlink(filepath.Join(dir, "missing-source"), filepath.Join(dir, "720p", "segment-002.ts")); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	gateway := newFakeGateway()
	gateway.failOn["video-abc123/360p/segment-000.ts"] = true

	result, err := UploadRenditionSet(context.Background(), gateway, dir, "hls-output", "video-abc123", 2, nil)
	if err != nil {
		t.Fatalf("mixed failures should not abort the batch: %v", err)
	}
	if result.Failed != 2 {
		t.Fatalf("expected 2 failures, got %+v", result)
	}
	if result.Uploaded != 7 {
		t.Fatalf("expected 7 uploads, got %+v", result)
	}
}

func TestUploadRenditionSetAllFailed(t *testing.T) {
	dir := writeOutputTree(t)
	gateway := newFakeGateway()
	gateway.failAll = true

	_, err := UploadRenditionSet(context.Background(), gateway, dir, "hls-output", "video-abc123", 2, nil)

	var uploadErr *UploadError
	if !errors.As(err, &uploadErr) {
		t.Fatalf("expected UploadError when every file fails, got %v", err)
	}
	if uploadErr.Failed != 8 {
		t.Fatalf("unexpected failure count %+v", uploadErr)
	}
}

func TestUploadRenditionSetEmptyOutput(t *testing.T) {
	_, err := UploadRenditionSet(context.Background(), newFakeGateway(), t.TempDir(), "hls-output", "video-abc123", 2, nil)

	var uploadErr *UploadError
	if !errors.As(err, &uploadErr) {
		t.Fatalf("expected UploadError for empty output dir, got %v", err)
	}
}
