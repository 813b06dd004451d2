// Package memory is the in-process storage.Repository used by tests and by
// shells that must not touch the disk.
package memory

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/kinboard/kinboard/storage"
)

// records maps record type to record ID to envelope.
type records map[string]map[string]*storage.Envelope

// Repository is safe for concurrent use. Envelopes are copied on the way in
// and on the way out so callers never share backing arrays with the store.
type Repository struct {
	mu      sync.RWMutex
	buckets map[string]records
}

var _ storage.Repository = (*Repository)(nil)

func NewRepository() *Repository {
	return &Repository{buckets: make(map[string]records)}
}

func clone(env *storage.Envelope) *storage.Envelope {
	if env == nil {
		return nil
	}
	return &storage.Envelope{
		Ver:        env.Ver,
		Scheme:     env.Scheme,
		Nonce:      slices.Clone(env.Nonce),
		Ciphertext: slices.Clone(env.Ciphertext),
	}
}

func (r *Repository) Put(bucket, recordType, recordID string, envelope *storage.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bucket(bucket).put(recordType, recordID, envelope)
	return nil
}

// bucket returns the named bucket, creating it. Callers hold the write lock.
func (r *Repository) bucket(name string) records {
	b, ok := r.buckets[name]
	if !ok {
		b = make(records)
		r.buckets[name] = b
	}
	return b
}

func (b records) put(recordType, recordID string, env *storage.Envelope) {
	typed, ok := b[recordType]
	if !ok {
		typed = make(map[string]*storage.Envelope)
		b[recordType] = typed
	}
	typed[recordID] = clone(env)
}

func (b records) remove(recordType, recordID string) bool {
	typed := b[recordType]
	if _, ok := typed[recordID]; !ok {
		return false
	}
	delete(typed, recordID)
	return true
}

func (b records) snapshot() records {
	cp := make(records, len(b))
	for recordType, typed := range b {
		inner := make(map[string]*storage.Envelope, len(typed))
		for id, env := range typed {
			inner[id] = clone(env)
		}
		cp[recordType] = inner
	}
	return cp
}

func (r *Repository) Get(bucket, recordType, recordID string) (*storage.Envelope, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.buckets[bucket]
	if !ok {
		return nil, fmt.Errorf("%s: %w", bucket, storage.ErrBucketNotFound)
	}
	env, ok := b[recordType][recordID]
	if !ok {
		return nil, fmt.Errorf("%s/%s/%s: %w", bucket, recordType, recordID, storage.ErrNotFound)
	}
	return clone(env), nil
}

// List returns the record IDs of recordType in sorted order, matching the
// key order of the BBolt store.
func (r *Repository) List(bucket, recordType string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.buckets[bucket][recordType])), nil
}

func (r *Repository) Delete(bucket, recordType, recordID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buckets[bucket]
	if !ok {
		return fmt.Errorf("%s: %w", bucket, storage.ErrBucketNotFound)
	}
	if !b.remove(recordType, recordID) {
		return fmt.Errorf("%s/%s/%s: %w", bucket, recordType, recordID, storage.ErrNotFound)
	}
	return nil
}

// Batch applies fn to a scratch copy of the bucket and swaps it in only when
// fn succeeds.
func (r *Repository) Batch(bucket string, fn func(tx storage.BatchTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	scratch := r.buckets[bucket].snapshot()
	if err := fn(batch(scratch)); err != nil {
		return err
	}
	r.buckets[bucket] = scratch
	return nil
}

type batch records

func (b batch) Put(recordType, recordID string, envelope *storage.Envelope) error {
	records(b).put(recordType, recordID, envelope)
	return nil
}

// Delete ignores missing records so clearing batches stay idempotent.
func (b batch) Delete(recordType, recordID string) error {
	records(b).remove(recordType, recordID)
	return nil
}
