package registry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreFirstWriteWins(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := Record{JobID: "video-abc123", PlaybackURL: "https://cdn.example.com/video-abc123/master.m3u8"}
	if err := store.Create(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}

	second := Record{JobID: "video-abc123", PlaybackURL: "https://cdn.example.com/other/master.m3u8"}
	if err := store.Create(ctx, second); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate job id, got %v", err)
	}

	got, err := store.Get(ctx, "video-abc123")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PlaybackURL != first.PlaybackURL {
		t.Fatalf("duplicate create overwrote record: %q", got.PlaybackURL)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("expected CreatedAt to be stamped")
	}
}

func TestMemoryStoreGetUnknownJob(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Get(context.Background(), "video-missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreRejectsBlankFields(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, Record{JobID: "  ", PlaybackURL: "https://cdn.example.com/x/master.m3u8"}); err == nil {
		t.Fatal("expected error for blank job id")
	}
	if err := store.Create(ctx, Record{JobID: "video-1", PlaybackURL: ""}); err == nil {
		t.Fatal("expected error for blank playback url")
	}
}

func TestMemoryStorePreservesExplicitTimestamp(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	stamp := time.Date(2025, time.March, 4, 12, 0, 0, 0, time.UTC)
	if err := store.Create(ctx, Record{JobID: "video-ts", PlaybackURL: "https://cdn.example.com/video-ts/master.m3u8", CreatedAt: stamp}); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := store.Get(ctx, "video-ts")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.CreatedAt.Equal(stamp) {
		t.Fatalf("expected explicit timestamp preserved, got %v", got.CreatedAt)
	}
}
