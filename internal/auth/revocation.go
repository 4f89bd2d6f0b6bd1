package auth

import (
	"context"
	"sync"
	"time"
)

// defaultCleanupInterval is how often the in-memory store sweeps out
// entries whose tokens have expired on their own.
const defaultCleanupInterval = 5 * time.Minute

// RevocationStore records revoked token IDs (jti) until the token's
// natural expiry. A token whose jti is present is rejected even though
// its signature still verifies.
type RevocationStore interface {
	// Record marks a jti as revoked until expiresAt. Recording the same
	// jti twice is a no-op, not an error.
	Record(ctx context.Context, jti string, expiresAt time.Time) error

	// Contains reports whether a jti has been revoked and not yet aged out.
	Contains(ctx context.Context, jti string) (bool, error)

	// Close releases store resources (background sweeper, connections).
	Close() error
}

// MemoryRevocationStore is a process-local RevocationStore backed by a
// mutex-guarded map. Suitable for single-instance deployments; use the
// Redis store when running more than one replica.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type MemoryRevocationStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time // jti -> expiry

	done     chan struct{}
	stopOnce sync.Once
}

// NewMemoryRevocationStore creates an in-memory store and starts a
// background sweeper that removes expired entries.
func NewMemoryRevocationStore(cleanupInterval time.Duration) *MemoryRevocationStore {
	if cleanupInterval <= 0 {
		cleanupInterval = defaultCleanupInterval
	}

	s := &MemoryRevocationStore{
		entries: make(map[string]time.Time),
		done:    make(chan struct{}),
	}

	go s.sweep(cleanupInterval)

	return s
}

// Record marks a jti as revoked until expiresAt.
// Entries already expired are not stored at all.
func (s *MemoryRevocationStore) Record(_ context.Context, jti string, expiresAt time.Time) error {
	if !time.Now().Before(expiresAt) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[jti] = expiresAt
	return nil
}

// Contains reports whether a jti is currently revoked.
// Expired entries are treated as absent even before the sweeper runs.
func (s *MemoryRevocationStore) Contains(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	expiresAt, ok := s.entries[jti]
	s.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if !time.Now().Before(expiresAt) {
		// Aged out; let the sweeper reclaim it.
		return false, nil
	}
	return true, nil
}

// Len returns the number of tracked entries, including any not yet swept.
func (s *MemoryRevocationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the background sweeper. Safe to call more than once.
func (s *MemoryRevocationStore) Close() error {
	s.stopOnce.Do(func() { close(s.done) })
	return nil
}

// sweep periodically removes entries whose tokens have expired.
func (s *MemoryRevocationStore) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for jti, expiresAt := range s.entries {
				if !now.Before(expiresAt) {
					delete(s.entries, jti)
				}
			}
			s.mu.Unlock()
		}
	}
}
