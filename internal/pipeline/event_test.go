package pipeline

import (
	"errors"
	"testing"
)

func TestParseUploadEvent(t *testing.T) {
	body := `{"Records":[{"s3":{"object":{"key":"uploads/video-abc123.mp4"}}}]}`
	key, err := ParseUploadEvent(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if key != "uploads/video-abc123.mp4" {
		t.Fatalf("unexpected key %q", key)
	}
}

func TestParseUploadEventDecodesKey(t *testing.T) {
	body := `{"Records":[{"s3":{"object":{"key":"uploads/video+with+spaces%28final%29.mp4"}}}]}`
	key, err := ParseUploadEvent(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if key != "uploads/video with spaces(final).mp4" {
		t.Fatalf("unexpected decoded key %q", key)
	}
}

func TestParseUploadEventMalformed(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"not json", "not-json"},
		{"wrong shape", `{"Message":"hello"}`},
		{"no records", `{"Records":[]}`},
		{"missing key", `{"Records":[{"s3":{"object":{}}}]}`},
		{"bad escape", `{"Records":[{"s3":{"object":{"key":"uploads/%zz.mp4"}}}]}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseUploadEvent(tc.body); !errors.Is(err, ErrMalformedEvent) {
				t.Fatalf("expected ErrMalformedEvent, got %v", err)
			}
		})
	}
}

func TestDeriveJobID(t *testing.T) {
	testCases := []struct {
		key  string
		want string
	}{
		{"uploads/video-abc123.mp4", "video-abc123"},
		{"uploads/nested/dir/video-9.mov", "video-9"},
		{"video-plain.mp4", "video-plain"},
		{"uploads/noextension", "noextension"},
	}
	for _, tc := range testCases {
		got, err := DeriveJobID(tc.key)
		if err != nil {
			t.Fatalf("DeriveJobID(%q): %v", tc.key, err)
		}
		if got != tc.want {
			t.Fatalf("DeriveJobID(%q) = %q, want %q", tc.key, got, tc.want)
		}
	}
}

func TestDeriveJobIDRejectsEmptyKeys(t *testing.T) {
	for _, key := range []string{"", "   ", "/"} {
		if _, err := DeriveJobID(key); !errors.Is(err, ErrMalformedEvent) {
			t.Fatalf("DeriveJobID(%q): expected ErrMalformedEvent, got %v", key, err)
		}
	}
}
