// Package cache provides an in-memory expiring store for upstream tool
// responses.
//
// The store is policy-agnostic: it never decides how long an entry stays
// valid. Callers pass a freshness window to every read, so the same entry
// can be fresh for one caller and stale for another. Stale entries are
// evicted lazily by the read that discovers them, or in bulk via
// [Store.Sweep].
//
// All operations are total functions over in-memory state — no I/O, no
// blocking, no error returns. The Store is safe for concurrent use.
package cache

import (
	"sync"
	"time"
)

// PreviewLength is the maximum number of bytes of payload included in an
// [EntryInfo] preview before truncation.
const PreviewLength = 200

// entry is a single cached payload with its insertion metadata.
type entry struct {
	payload    string
	category   string
	insertedAt time.Time
}

// EntryInfo is a read-only snapshot of one cache entry, used by the
// inspection surface. The payload is truncated to [PreviewLength] bytes.
type EntryInfo struct {
	Key        string    `json:"key"`
	Category   string    `json:"category"`
	InsertedAt time.Time `json:"timestamp"`
	AgeMinutes int       `json:"age_minutes"`
	Preview    string    `json:"data_preview"`
}

// Store is a concurrency-safe, in-memory keyed store of text payloads with
// per-read freshness checks.
//
// There is at most one entry per key at any time; [Store.Put] replaces
// without merging. The zero value is not usable; create instances with [New].
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry

	// now is the clock used for insertion stamps and age checks.
	// Overridable in tests.
	now func() time.Time
}

// New returns an empty, ready-to-use Store.
func New() *Store {
	return &Store{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Put inserts or replaces the entry under key, resetting its age to zero.
// category is a free-form tag carried through to [Store.Entries]; it does
// not participate in key uniqueness.
func (s *Store) Put(key, payload, category string) {
	inserted := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{
		payload:    payload,
		category:   category,
		insertedAt: inserted,
	}
}

// Get returns the payload stored under key if its age does not exceed
// maxAge. A missing or stale entry reports ok == false; a stale entry is
// evicted as a side effect of the read.
func (s *Store) Get(key string, maxAge time.Duration) (payload string, ok bool) {
	s.mu.RLock()
	e, exists := s.entries[key]
	s.mu.RUnlock()

	if !exists {
		return "", false
	}

	if s.now().UTC().Sub(e.insertedAt) <= maxAge {
		return e.payload, true
	}

	// Stale: evict under the write lock. Re-check the timestamp so a
	// concurrent Put that refreshed the key is not thrown away.
	s.mu.Lock()
	if cur, still := s.entries[key]; still && cur.insertedAt.Equal(e.insertedAt) {
		delete(s.entries, key)
	}
	s.mu.Unlock()

	return "", false
}

// Len returns the number of entries currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Entries returns a snapshot of every entry with its key, category,
// insertion time, age in whole minutes, and a bounded payload preview.
// It never mutates the store.
func (s *Store) Entries() []EntryInfo {
	now := s.now().UTC()

	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]EntryInfo, 0, len(s.entries))
	for key, e := range s.entries {
		preview := e.payload
		if len(preview) > PreviewLength {
			preview = preview[:PreviewLength] + "..."
		}
		infos = append(infos, EntryInfo{
			Key:        key,
			Category:   e.category,
			InsertedAt: e.insertedAt,
			AgeMinutes: int(now.Sub(e.insertedAt).Minutes()),
			Preview:    preview,
		})
	}
	return infos
}

// Sweep evicts every entry whose age exceeds maxAge and returns the number
// of entries removed. Sweeping an empty store returns 0.
func (s *Store) Sweep(maxAge time.Duration) int {
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if now.Sub(e.insertedAt) > maxAge {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}
