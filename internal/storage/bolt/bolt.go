// Package bolt stores settings in a local BoltDB file.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/jonathan/currency-annotator/internal/storage"
)

const bucketName = "ccx"

// Store implements storage.Store on a BoltDB file. Change notifications are
// delivered to watchers in this process only.
type Store struct {
	db       *bbolt.DB
	watchers storage.Watchers
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get implements storage.Store.
func (s *Store) Get(_ context.Context, key string, dst any) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(key))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, dst)
	})
	if err != nil {
		return found, &storage.StoreError{Op: "get", Key: key, Cause: err}
	}
	return found, nil
}

// Set implements storage.Store.
func (s *Store) Set(_ context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return &storage.StoreError{Op: "set", Key: key, Cause: err}
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(key), data)
	})
	if err != nil {
		return &storage.StoreError{Op: "set", Key: key, Cause: err}
	}
	s.watchers.Notify(key)
	return nil
}

// Delete implements storage.Store.
func (s *Store) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(key))
	})
	if err != nil {
		return &storage.StoreError{Op: "delete", Key: key, Cause: err}
	}
	s.watchers.Notify(key)
	return nil
}

// Watch implements storage.Store.
func (s *Store) Watch(fn func(key string)) func() {
	return s.watchers.Add(fn)
}

// Keys lists every stored key.
func (s *Store) Keys() ([]string, error) {
	keys := make([]string, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	return keys, nil
}
