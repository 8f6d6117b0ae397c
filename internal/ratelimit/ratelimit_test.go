package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreAdmit(t *testing.T) {
	ctx := context.Background()

	t.Run("allows up to limit within window", func(t *testing.T) {
		store := NewMemoryStore()
		for i := 0; i < 3; i++ {
			ok, err := store.Admit(ctx, "chat_rate:1", 3, time.Hour)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !ok {
				t.Fatalf("request %d should be admitted", i+1)
			}
		}
		ok, _ := store.Admit(ctx, "chat_rate:1", 3, time.Hour)
		if ok {
			t.Fatal("request beyond limit should be denied")
		}
	})

	t.Run("window expiry resets the counter", func(t *testing.T) {
		current := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		store := NewMemoryStore()
		store.now = func() time.Time { return current }

		for i := 0; i < 2; i++ {
			store.Admit(ctx, "chat_rate:7", 2, time.Hour)
		}
		if ok, _ := store.Admit(ctx, "chat_rate:7", 2, time.Hour); ok {
			t.Fatal("should be denied at the limit")
		}

		current = current.Add(61 * time.Minute)
		if ok, _ := store.Admit(ctx, "chat_rate:7", 2, time.Hour); !ok {
			t.Fatal("expired window should reset and admit")
		}
	})

	t.Run("keys are independent", func(t *testing.T) {
		store := NewMemoryStore()
		store.Admit(ctx, "chat_rate:1", 1, time.Hour)
		if ok, _ := store.Admit(ctx, "chat_rate:1", 1, time.Hour); ok {
			t.Fatal("first key should be exhausted")
		}
		if ok, _ := store.Admit(ctx, "chat_rate:2", 1, time.Hour); !ok {
			t.Fatal("second key should still be admitted")
		}
	})
}

type failingStore struct{}

func (failingStore) Admit(context.Context, string, int, time.Duration) (bool, error) {
	return false, errors.New("backend down")
}

func TestLimiterFailsOpen(t *testing.T) {
	limiter := NewLimiter(failingStore{}, 50, time.Hour)
	if !limiter.Admit(context.Background(), 42) {
		t.Fatal("limiter should admit when the store errors")
	}
}

func TestLimiterDeniesAtLimit(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore(), 2, time.Hour)
	ctx := context.Background()

	if !limiter.Admit(ctx, 9) || !limiter.Admit(ctx, 9) {
		t.Fatal("first two requests should pass")
	}
	if limiter.Admit(ctx, 9) {
		t.Fatal("third request should be rate limited")
	}
	// 其他用户不受影响
	if !limiter.Admit(ctx, 10) {
		t.Fatal("another user should not be affected")
	}
}
