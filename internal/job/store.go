package job

import (
	"context"
	"errors"
	"sync"
)

// Static errors for store and orchestrator operations.
var (
	// ErrNotFound is returned when no job exists for a key.
	ErrNotFound = errors.New("job not found")
	// ErrDuplicateKey is returned when inserting a job whose key already exists.
	ErrDuplicateKey = errors.New("job key already exists")
	// ErrNotReady is returned when a download is requested before the job is
	// complete. Distinct from ErrNotFound.
	ErrNotReady = errors.New("job not yet complete")
	// ErrArtifactMissing is returned when a complete job's final artifact is
	// gone from disk. This indicates an invariant violation, not an ordinary
	// not-found.
	ErrArtifactMissing = errors.New("final artifact missing from disk")
)

// Store is the process-wide table of job records. Implementations must
// provide per-key mutual exclusion for Update so that two concurrent
// refreshes of the same job cannot interleave their check-then-mutate
// sequences.
type Store interface {
	// Insert adds a new record. Returns ErrDuplicateKey if the key is taken.
	Insert(ctx context.Context, rec *Record) error

	// Find returns a copy of the record for key, or ErrNotFound.
	Find(ctx context.Context, key string) (*Record, error)

	// Update runs fn on the live record under the key's lock and returns a
	// copy of the record afterwards. fn may block (network, encode); other
	// keys remain accessible meanwhile. An error from fn is propagated to the
	// caller, but mutations fn already made are kept.
	Update(ctx context.Context, key string, fn func(*Record) error) (*Record, error)

	// Delete removes the record for key, or returns ErrNotFound.
	Delete(ctx context.Context, key string) error

	// List returns copies of all records.
	List(ctx context.Context) ([]*Record, error)
}

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// entry pairs a record with its own lock. The per-entry lock serializes
// refreshes of one job without blocking the rest of the table.
type entry struct {
	mu  sync.Mutex
	rec *Record
}

// MemoryStore is the in-memory Store implementation. Job state does not
// survive a process restart; this is a documented limitation of the service.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewMemoryStore creates an empty in-memory job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*entry),
	}
}

// Insert adds a new record, cloning it to avoid external mutation.
func (s *MemoryStore) Insert(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[rec.Key]; ok {
		return ErrDuplicateKey
	}
	s.entries[rec.Key] = &entry{rec: rec.Clone()}
	return nil
}

// Find returns a copy of the record for key.
func (s *MemoryStore) Find(_ context.Context, key string) (*Record, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec.Clone(), nil
}

// Update runs fn on the live record while holding the entry lock.
func (s *MemoryStore) Update(_ context.Context, key string, fn func(*Record) error) (*Record, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	err := fn(e.rec)
	return e.rec.Clone(), err
}

// Delete removes the record for key. It takes the entry lock first so a
// deletion cannot race an in-flight update on the same job.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return ErrNotFound
	}
	delete(s.entries, key)
	return nil
}

// List returns copies of all records.
func (s *MemoryStore) List(_ context.Context) ([]*Record, error) {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	result := make([]*Record, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		result = append(result, e.rec.Clone())
		e.mu.Unlock()
	}
	return result, nil
}
