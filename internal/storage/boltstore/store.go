// Package boltstore keeps the wallet record in a single bbolt file.
package boltstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/olehkaliuzhnyi/shielded-wallet/internal/storage"
)

var (
	bucketName = []byte("wallet")
	recordKey  = []byte("record")
)

const openTimeout = time.Second

// Store is a storage.WalletStore backed by bbolt.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the database file at path, creating parent
// directories as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create datadir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening wallet db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Put(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		// bbolt keeps a reference to the value until commit.
		return tx.Bucket(bucketName).Put(recordKey, append([]byte{}, data...))
	})
}

func (s *Store) Get(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get(recordKey)
		if v == nil {
			return storage.ErrNotFound
		}
		// Values are only valid inside the transaction.
		out = append([]byte{}, v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
