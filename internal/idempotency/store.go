package idempotency

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrInFlight means another request holding the same key has not finished.
var ErrInFlight = errors.New("request with this idempotency key is still in progress")

// Record is a stored response replayed for repeated keys.
type Record struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// Store claims keys and remembers the response produced under them.
type Store interface {
	// Acquire claims key. It returns the stored record for a finished key,
	// ErrInFlight for a claimed one, and (nil, nil) when the caller now owns the key.
	Acquire(ctx context.Context, key string, ttl time.Duration) (*Record, error)
	Complete(ctx context.Context, key string, rec *Record, ttl time.Duration) error
	// Abandon drops the claim so the request can be retried.
	Abandon(ctx context.Context, key string) error
}

type memoryEntry struct {
	record  *Record
	expires time.Time
}

// MemoryStore keeps keys in process. Used when no Redis URL is configured.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]memoryEntry{}, now: time.Now}
}

func (m *MemoryStore) Acquire(_ context.Context, key string, ttl time.Duration) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.entries[key]; ok && now.Before(e.expires) {
		if e.record == nil {
			return nil, ErrInFlight
		}
		return e.record, nil
	}
	m.entries[key] = memoryEntry{expires: now.Add(ttl)}
	m.evictExpired(now)
	return nil, nil
}

func (m *MemoryStore) Complete(_ context.Context, key string, rec *Record, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{record: rec, expires: m.now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Abandon(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryStore) evictExpired(now time.Time) {
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
}
