package cache

import (
	"bytes"
	"time"

	bolt "go.etcd.io/bbolt"
)

// BoltStore is a persistent Store backed by a single bbolt bucket. It lets
// cached dashboard data survive restarts; the cache layer on top still owns
// all expiry semantics.
type BoltStore struct {
	db     *bolt.DB
	bucket []byte
}

// BoltOptions configures a BoltStore.
type BoltOptions struct {
	// Bucket is the bolt bucket name. Defaults to "cache".
	Bucket string
}

// OpenBolt initializes or opens a BoltStore at the given path.
func OpenBolt(path string, opts BoltOptions) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	bucket := []byte("cache")
	if opts.Bucket != "" {
		bucket = []byte(opts.Bucket)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltStore{db: db, bucket: bucket}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the value stored under key.
func (s *BoltStore) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(s.bucket).Get([]byte(key)); v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, value != nil, nil
}

// Set stores value under key.
func (s *BoltStore) Set(key string, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), value)
	})
}

// Delete removes key from the store.
func (s *BoltStore) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	})
}

// Keys returns all keys starting with prefix.
func (s *BoltStore) Keys(prefix string) ([]string, error) {
	var keys []string
	p := []byte(prefix)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}
