package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vodforge/internal/api"
	"vodforge/internal/observability/metrics"
	"vodforge/internal/registry"
)

type stubGateway struct{}

func (stubGateway) PresignUpload(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	return "https://signed.example.com/put/" + bucket + "/" + key, nil
}

func (stubGateway) PresignDownload(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	return "https://signed.example.com/get/" + bucket + "/" + key, nil
}

func (stubGateway) Download(context.Context, string, string, io.Writer) error {
	return errors.New("not implemented")
}

func (stubGateway) Upload(context.Context, string, string, string, io.Reader) error {
	return errors.New("not implemented")
}

func (stubGateway) Delete(context.Context, string, string) error {
	return errors.New("not implemented")
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	uploads := &api.Handler{
		Store:        stubGateway{},
		Registry:     registry.NewMemoryStore(),
		UploadBucket: "uploads",
		UploadTTL:    5 * time.Minute,
		DownloadTTL:  time.Hour,
	}
	health := &api.HealthHandler{Environment: "test", StartedAt: time.Now()}
	srv, err := New(uploads, health, cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv
}

func TestServerRoutesEndToEnd(t *testing.T) {
	srv := newTestServer(t, Config{Metrics: metrics.New()})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	// request an upload slot
	resp, err := http.Get(ts.URL + "/upload/getPresignedUrl")
	if err != nil {
		t.Fatalf("get presigned url: %v", err)
	}
	var slot struct {
		PresignedURL string `json:"presignedUrl"`
		Key          string `json:"key"`
		VideoID      string `json:"videoId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&slot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || slot.VideoID == "" {
		t.Fatalf("unexpected presign response %d %+v", resp.StatusCode, slot)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatal("expected request id header")
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("expected security headers")
	}

	// register the playback link as a worker would
	link := `{"videoId":"` + slot.VideoID + `","videoLink":"https://cdn.example.com/` + slot.VideoID + `/master.m3u8"}`
	resp, err = http.Post(ts.URL+"/upload/upload-video-link", "application/json", strings.NewReader(link))
	if err != nil {
		t.Fatalf("post link: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected link creation status %d", resp.StatusCode)
	}

	// poll the link back
	resp, err = http.Get(ts.URL + "/upload/video-link/" + slot.VideoID)
	if err != nil {
		t.Fatalf("get link: %v", err)
	}
	var got struct {
		Link string `json:"link"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected poll status %d", resp.StatusCode)
	}
	if got.Link != "https://cdn.example.com/"+slot.VideoID+"/master.m3u8" {
		t.Fatalf("unexpected link %q", got.Link)
	}

	// metrics endpoint is wired
	resp, err = http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "vodforge_") {
		t.Fatalf("unexpected metrics response %d %q", resp.StatusCode, body)
	}
}

func TestServerBlocksUnknownOrigin(t *testing.T) {
	srv := newTestServer(t, Config{
		Metrics: metrics.New(),
		CORS:    CORSConfig{AllowedOrigins: []string{"https://app.example.com"}},
	})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/upload/getPresignedUrl", nil)
	req.Header.Set("Origin", "https://evil.example.net")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for unknown origin, got %d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	req.Header.Set("Origin", "https://app.example.com")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected allowed origin to pass, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Fatal("expected allow-origin header for allowed origin")
	}
}

func TestServerPreflight(t *testing.T) {
	srv := newTestServer(t, Config{
		Metrics: metrics.New(),
		CORS:    CORSConfig{AllowedOrigins: []string{"https://app.example.com"}},
	})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/upload/getDownloadUrl", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("unexpected preflight status %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Access-Control-Allow-Methods"), http.MethodPost) {
		t.Fatal("expected POST in allowed methods")
	}
}

func TestServerRejectsBadOriginConfig(t *testing.T) {
	uploads := &api.Handler{Store: stubGateway{}, Registry: registry.NewMemoryStore(), UploadBucket: "uploads"}
	health := &api.HealthHandler{StartedAt: time.Now()}
	if _, err := New(uploads, health, Config{CORS: CORSConfig{AllowedOrigins: []string{"missing-scheme"}}}); err == nil {
		t.Fatal("expected error for origin without scheme")
	}
}
