// Package bbolt keeps kinboard records in a single BBolt file. Each storage
// bucket is a top-level BBolt bucket holding one nested bucket per record
// type, so listing a type is a plain cursor walk in key order.
package bbolt

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/kinboard/kinboard/storage"
)

// DefaultLockTimeout bounds how long Open waits for another process holding
// the file lock.
const DefaultLockTimeout = time.Second

// Store implements storage.Repository on top of a BBolt database.
type Store struct {
	db *bbolt.DB
}

var _ storage.Repository = (*Store)(nil)

// Open opens (or creates) the database file at path with owner-only
// permissions. A zero lockTimeout means DefaultLockTimeout.
func Open(path string, lockTimeout time.Duration) (*Store, error) {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: lockTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening record store %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func encode(env *storage.Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encoding envelope: %w", err)
	}
	return data, nil
}

// typeBucket resolves bucket/recordType for reading. The returned error
// distinguishes an unknown bucket from an unknown record type.
func typeBucket(tx *bbolt.Tx, bucket, recordType string) (*bbolt.Bucket, error) {
	top := tx.Bucket([]byte(bucket))
	if top == nil {
		return nil, fmt.Errorf("%s: %w", bucket, storage.ErrBucketNotFound)
	}
	return top.Bucket([]byte(recordType)), nil
}

func (s *Store) Put(bucket, recordType, recordID string, envelope *storage.Envelope) error {
	data, err := encode(envelope)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		top, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		return putRecord(top, recordType, recordID, data)
	})
}

func putRecord(top *bbolt.Bucket, recordType, recordID string, data []byte) error {
	typed, err := top.CreateBucketIfNotExists([]byte(recordType))
	if err != nil {
		return err
	}
	return typed.Put([]byte(recordID), data)
}

func (s *Store) Get(bucket, recordType, recordID string) (*storage.Envelope, error) {
	var env storage.Envelope
	err := s.db.View(func(tx *bbolt.Tx) error {
		typed, err := typeBucket(tx, bucket, recordType)
		if err != nil {
			return err
		}
		var data []byte
		if typed != nil {
			data = typed.Get([]byte(recordID))
		}
		if data == nil {
			return fmt.Errorf("%s/%s/%s: %w", bucket, recordType, recordID, storage.ErrNotFound)
		}
		// Unmarshal copies out of the mmap'd page before the tx closes.
		return json.Unmarshal(data, &env)
	})
	if err != nil {
		return nil, err
	}
	return &env, nil
}

func (s *Store) Delete(bucket, recordType, recordID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		typed, err := typeBucket(tx, bucket, recordType)
		if err != nil {
			return err
		}
		if typed == nil || typed.Get([]byte(recordID)) == nil {
			return fmt.Errorf("%s/%s/%s: %w", bucket, recordType, recordID, storage.ErrNotFound)
		}
		return typed.Delete([]byte(recordID))
	})
}

// List returns the record IDs of recordType in key order. An unknown bucket
// lists as empty.
func (s *Store) List(bucket, recordType string) ([]string, error) {
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		typed, err := typeBucket(tx, bucket, recordType)
		if err != nil || typed == nil {
			return nil
		}
		return typed.ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, err
}

// Batch runs fn inside one read-write transaction; an error from fn rolls
// back every write made through tx.
func (s *Store) Batch(bucket string, fn func(tx storage.BatchTx) error) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		top, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		return fn(batch{top: top})
	})
}

type batch struct {
	top *bbolt.Bucket
}

func (b batch) Put(recordType, recordID string, envelope *storage.Envelope) error {
	data, err := encode(envelope)
	if err != nil {
		return err
	}
	return putRecord(b.top, recordType, recordID, data)
}

// Delete ignores missing records so clearing batches stay idempotent.
func (b batch) Delete(recordType, recordID string) error {
	typed := b.top.Bucket([]byte(recordType))
	if typed == nil {
		return nil
	}
	return typed.Delete([]byte(recordID))
}
