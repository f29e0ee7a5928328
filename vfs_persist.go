package crucible

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// BlobStore is the persistence contract the VFS depends on. Only
// Get/Put are needed; the backend's own durability and transactions are
// its concern, not the VFS's.
type BlobStore interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
}

const (
	persistBucket = "bavini-fs"
	persistKey    = "filesystem"
)

// BoltBlobStore is a BlobStore backed by go.etcd.io/bbolt. It is an
// optional convenience; the VFS itself only ever talks to the BlobStore
// interface.
type BoltBlobStore struct {
	db     *bolt.DB
	bucket []byte
}

// OpenBoltBlobStore opens (creating if necessary) a bbolt database file
// for use as a VFS persistence backend.
func OpenBoltBlobStore(path string) (*BoltBlobStore, error) {
	db, err := bolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, fmt.Errorf("🔴 open bolt store %s: %w", path, err)
	}
	bucket := []byte(persistBucket)
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("🔴 create bucket %s: %w", persistBucket, err)
	}
	return &BoltBlobStore{db: db, bucket: bucket}, nil
}

func (s *BoltBlobStore) Close() error { return s.db.Close() }

func (s *BoltBlobStore) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, value != nil, nil
}

func (s *BoltBlobStore) Put(key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			var err error
			if b, err = tx.CreateBucket(s.bucket); err != nil {
				return err
			}
		}
		return b.Put([]byte(key), value)
	})
}

// WithBlobStore attaches a persistence backend. Persistence is opt-in:
// a VFS with no store attached still works, Persist/Restore are just
// no-ops returning nil.
func (v *VFS) WithBlobStore(store BlobStore) *VFS {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.store = store
	return v
}

// Persist serializes ToJSON() to the attached blob store keyed by
// "filesystem". Best-effort and idempotent: a failure is
// reported but in-memory state remains valid.
func (v *VFS) Persist() error {
	v.mu.RLock()
	store := v.store
	v.mu.RUnlock()
	if store == nil {
		return nil
	}

	payload, err := json.Marshal(v.ToJSON())
	if err != nil {
		return fmt.Errorf("🔴 marshal filesystem snapshot: %w", err)
	}
	if err := store.Put(persistKey, payload); err != nil {
		return fmt.Errorf("🔴 persist filesystem snapshot: %w", err)
	}
	return nil
}

// Restore loads a previously persisted snapshot and applies it via
// FromJSON. Restoring into a non-empty VFS merges on top of existing
// content (see FromJSON); callers wanting an exact restore should Clear()
// first.
func (v *VFS) Restore() error {
	v.mu.RLock()
	store := v.store
	v.mu.RUnlock()
	if store == nil {
		return nil
	}

	data, ok, err := store.Get(persistKey)
	if err != nil {
		return fmt.Errorf("🔴 restore filesystem snapshot: %w", err)
	}
	if !ok {
		return nil
	}

	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("🔴 decode filesystem snapshot: %w", err)
	}
	return v.FromJSON(m)
}
