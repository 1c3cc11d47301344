// Package badgerstore keeps the wallet record in a badger database through
// badgerhold.
package badgerstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"
	"github.com/timshannon/badgerhold/v4"

	"github.com/olehkaliuzhnyi/shielded-wallet/internal/storage"
)

const walletKey = "wallet"

type walletRecord struct {
	Data []byte `json:"data"`
}

// Store is a storage.WalletStore backed by badger.
type Store struct {
	db *badgerhold.Store
}

// Open opens or creates the database under dir. An empty dir keeps the
// database in memory.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = newLogger()
	opts.Compression = options.ZSTD

	db, err := badgerhold.Open(badgerhold.Options{
		Encoder:          jsonEncode,
		Decoder:          jsonDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
	if err != nil {
		return nil, fmt.Errorf("opening wallet db: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Put(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec := walletRecord{Data: append([]byte(nil), data...)}
	return s.db.Upsert(walletKey, rec)
}

func (s *Store) Get(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec walletRecord
	if err := s.db.Get(walletKey, &rec); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	if rec.Data == nil {
		rec.Data = []byte{}
	}
	return rec.Data, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func jsonEncode(value interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func jsonDecode(data []byte, value interface{}) error {
	return json.NewDecoder(bytes.NewReader(data)).Decode(value)
}

// logger routes badger's printf-style output to slog.
type logger struct {
	log *slog.Logger
}

func newLogger() badger.Logger {
	return logger{log: slog.Default().With("component", "badgerstore")}
}

func (l logger) Errorf(format string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(format, args...))
}

func (l logger) Warningf(format string, args ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

func (l logger) Infof(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

func (l logger) Debugf(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}
