package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	w := NewMemoryWindow(func() time.Time { return now })
	ctx := context.Background()

	ok, _, _ := w.Acquire(ctx, "k", time.Minute)
	if !ok {
		t.Fatal("expected first acquire granted")
	}
	ok, remaining, _ := w.Acquire(ctx, "k", time.Minute)
	if ok || remaining != time.Minute {
		t.Fatalf("expected denial with 1m remaining, got ok=%v remaining=%v", ok, remaining)
	}
	if ok, _, _ := w.Acquire(ctx, "other", time.Minute); !ok {
		t.Fatal("keys must be independent")
	}

	now = now.Add(time.Minute)
	if ok, _, _ := w.Acquire(ctx, "k", time.Minute); !ok {
		t.Fatal("expected grant after window")
	}

	_ = w.Release(ctx, "k")
	if ok, _, _ := w.Acquire(ctx, "k", time.Minute); !ok {
		t.Fatal("expected grant after release")
	}
}

func TestRedisWindow(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	w := NewRedisWindow(rdb, "test:cd")
	ctx := context.Background()

	ok, _, err := w.Acquire(ctx, "k", 30*time.Second)
	if err != nil || !ok {
		t.Fatalf("expected grant, got ok=%v err=%v", ok, err)
	}
	ok, remaining, err := w.Acquire(ctx, "k", 30*time.Second)
	if err != nil || ok {
		t.Fatalf("expected denial, got ok=%v err=%v", ok, err)
	}
	if remaining <= 0 || remaining > 30*time.Second {
		t.Fatalf("unexpected remaining %v", remaining)
	}

	mr.FastForward(31 * time.Second)
	if ok, _, _ := w.Acquire(ctx, "k", 30*time.Second); !ok {
		t.Fatal("expected grant after ttl")
	}

	mr.Close()
	if _, _, err := w.Acquire(ctx, "k2", time.Second); !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}
