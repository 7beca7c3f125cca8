package leaderboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/alphabot-ai/threadfeed/internal/discussion"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	cache, err := NewCache("redis://"+s.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache, s
}

var sample = []discussion.RankedParticipant{
	{AuthorID: "agentA", Kind: discussion.KindAgent, Handle: "a", NetVotes: 2, Upvotes: 3, Downvotes: 1, CommentCount: 2},
	{AuthorID: "agentB", Kind: discussion.KindAgent, NetVotes: 1, Upvotes: 1, CommentCount: 5},
}

func TestNewCacheBadURL(t *testing.T) {
	if _, err := NewCache("not-a-url://", time.Minute); err == nil {
		t.Error("expected error for invalid redis url")
	}
}

func TestPutAndGet(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	if _, err := cache.Get(ctx, "d1", true, 10); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected ErrMiss on empty cache, got %v", err)
	}

	if err := cache.Put(ctx, "d1", 0, true, 10, sample); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := cache.Get(ctx, "d1", true, 10)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got) != 2 || got[0] != sample[0] || got[1] != sample[1] {
		t.Errorf("cached ranking mismatch: got %+v", got)
	}

	if _, err := cache.Get(ctx, "d1", false, 10); !errors.Is(err, ErrMiss) {
		t.Errorf("different scope should miss, got %v", err)
	}
	if _, err := cache.Get(ctx, "d1", true, 5); !errors.Is(err, ErrMiss) {
		t.Errorf("different topN should miss, got %v", err)
	}
}

func TestExpiry(t *testing.T) {
	cache, s := setupTestCache(t)
	ctx := context.Background()

	if err := cache.Put(ctx, "d1", 0, false, 0, sample); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	s.FastForward(2 * time.Minute)

	if _, err := cache.Get(ctx, "d1", false, 0); !errors.Is(err, ErrMiss) {
		t.Errorf("expected ErrMiss after TTL, got %v", err)
	}
}

func TestInvalidate(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	cache.Put(ctx, "d1", 0, true, 10, sample)
	cache.Put(ctx, "d1", 0, false, 3, sample)
	cache.Put(ctx, "d2", 0, true, 10, sample)

	if err := cache.Invalidate(ctx, "d1"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	if _, err := cache.Get(ctx, "d1", true, 10); !errors.Is(err, ErrMiss) {
		t.Errorf("d1 agents view should be gone, got %v", err)
	}
	if _, err := cache.Get(ctx, "d1", false, 3); !errors.Is(err, ErrMiss) {
		t.Errorf("d1 all view should be gone, got %v", err)
	}
	if _, err := cache.Get(ctx, "d2", true, 10); err != nil {
		t.Errorf("d2 should survive, got %v", err)
	}
}

func TestGetCorruptEntry(t *testing.T) {
	cache, s := setupTestCache(t)

	s.HSet("leaderboard:d1", "all:0", "{not json")
	if _, err := cache.Get(context.Background(), "d1", false, 0); err == nil || errors.Is(err, ErrMiss) {
		t.Errorf("expected decode error, got %v", err)
	}
}

func TestPutAfterInvalidateIsStale(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	version, err := cache.Version(ctx, "d1")
	if err != nil {
		t.Fatalf("Version failed: %v", err)
	}

	// a write lands between computing the ranking and storing it
	if err := cache.Invalidate(ctx, "d1"); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	if err := cache.Put(ctx, "d1", version, true, 10, sample); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
	if _, err := cache.Get(ctx, "d1", true, 10); !errors.Is(err, ErrMiss) {
		t.Errorf("stale ranking must not be cached, got %v", err)
	}

	fresh, err := cache.Version(ctx, "d1")
	if err != nil {
		t.Fatalf("Version failed: %v", err)
	}
	if fresh != version+1 {
		t.Errorf("version = %d, want %d", fresh, version+1)
	}
	if err := cache.Put(ctx, "d1", fresh, true, 10, sample); err != nil {
		t.Errorf("Put at current version failed: %v", err)
	}
}

func TestPing(t *testing.T) {
	cache, s := setupTestCache(t)

	if err := cache.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	s.Close()
	if err := cache.Ping(context.Background()); err == nil {
		t.Error("expected Ping to fail after redis went away")
	}
}
