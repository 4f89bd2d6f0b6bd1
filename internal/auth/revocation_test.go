package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/halcyonlabs/authgate/internal/infrastructure/config"
)

func TestMemoryRevocationStore_RecordAndContains(t *testing.T) {
	store := NewMemoryRevocationStore(time.Minute)
	defer store.Close()

	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	if err := store.Record(ctx, "jti-1", expiry); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	revoked, err := store.Contains(ctx, "jti-1")
	if err != nil {
		t.Fatalf("Contains() error = %v", err)
	}
	if !revoked {
		t.Error("Contains() = false for recorded jti")
	}

	revoked, err = store.Contains(ctx, "jti-other")
	if err != nil {
		t.Fatalf("Contains() error = %v", err)
	}
	if revoked {
		t.Error("Contains() = true for unknown jti")
	}
}

func TestMemoryRevocationStore_RecordIdempotent(t *testing.T) {
	store := NewMemoryRevocationStore(time.Minute)
	defer store.Close()

	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	if err := store.Record(ctx, "jti-1", expiry); err != nil {
		t.Fatalf("first Record() error = %v", err)
	}
	if err := store.Record(ctx, "jti-1", expiry); err != nil {
		t.Fatalf("second Record() error = %v", err)
	}

	if store.Len() != 1 {
		t.Errorf("Len() = %d, want 1", store.Len())
	}
}

func TestMemoryRevocationStore_ExpiredEntryTreatedAsAbsent(t *testing.T) {
	store := NewMemoryRevocationStore(time.Hour) // sweeper won't run during the test
	defer store.Close()

	ctx := context.Background()

	// Entry expires almost immediately
	if err := store.Record(ctx, "jti-short", time.Now().Add(10*time.Millisecond)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	revoked, err := store.Contains(ctx, "jti-short")
	if err != nil {
		t.Fatalf("Contains() error = %v", err)
	}
	if revoked {
		t.Error("Contains() = true after entry expiry")
	}
}

func TestMemoryRevocationStore_SkipsAlreadyExpired(t *testing.T) {
	store := NewMemoryRevocationStore(time.Hour)
	defer store.Close()

	if err := store.Record(context.Background(), "jti-past", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0 (expired entries not stored)", store.Len())
	}
}

func TestMemoryRevocationStore_Sweep(t *testing.T) {
	store := NewMemoryRevocationStore(20 * time.Millisecond)
	defer store.Close()

	ctx := context.Background()
	if err := store.Record(ctx, "jti-sweep", time.Now().Add(10*time.Millisecond)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	// Give the sweeper a couple of cycles to reclaim the entry.
	deadline := time.Now().Add(time.Second)
	for store.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if store.Len() != 0 {
		t.Errorf("Len() = %d after sweep, want 0", store.Len())
	}
}

func TestMemoryRevocationStore_CloseTwice(t *testing.T) {
	store := NewMemoryRevocationStore(time.Minute)

	if err := store.Close(); err != nil {
		t.Errorf("first Close() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestMemoryRevocationStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryRevocationStore(10 * time.Millisecond)
	defer store.Close()

	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			jti := string(rune('a' + n))
			for j := 0; j < 100; j++ {
				if err := store.Record(ctx, jti, expiry); err != nil {
					t.Errorf("Record() error = %v", err)
					return
				}
				if _, err := store.Contains(ctx, jti); err != nil {
					t.Errorf("Contains() error = %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}

// Redis-backed store tests run only when a local Redis is available.

func testRedisStore(t *testing.T) *RedisRevocationStore {
	t.Helper()

	store, err := NewRedisRevocationStore(config.RedisConfig{
		Enabled:     true,
		Addr:        "127.0.0.1:6379",
		DialTimeout: 1,
	})
	if err != nil {
		t.Skip("redis not available, skipping integration test")
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRedisRevocationStore_RecordAndContains(t *testing.T) {
	store := testRedisStore(t)
	ctx := context.Background()

	jti := "test-jti-" + time.Now().Format("150405.000000000")
	if err := store.Record(ctx, jti, time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	revoked, err := store.Contains(ctx, jti)
	if err != nil {
		t.Fatalf("Contains() error = %v", err)
	}
	if !revoked {
		t.Error("Contains() = false for recorded jti")
	}
}

func TestRedisRevocationStore_SkipsAlreadyExpired(t *testing.T) {
	store := testRedisStore(t)
	ctx := context.Background()

	jti := "test-jti-expired-" + time.Now().Format("150405.000000000")
	if err := store.Record(ctx, jti, time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	revoked, err := store.Contains(ctx, jti)
	if err != nil {
		t.Fatalf("Contains() error = %v", err)
	}
	if revoked {
		t.Error("Contains() = true for entry that was never stored")
	}
}
