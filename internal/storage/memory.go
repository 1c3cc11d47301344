package storage

import (
	"context"
	"sync"
)

// MemoryWalletStore is an in-memory WalletStore.
type MemoryWalletStore struct {
	mu     sync.RWMutex
	record []byte
	writes int
}

func NewMemoryWalletStore() *MemoryWalletStore {
	return &MemoryWalletStore{}
}

func (s *MemoryWalletStore) Put(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = cloneBytes(data)
	s.writes++
	return nil
}

func (s *MemoryWalletStore) Get(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.record == nil {
		return nil, ErrNotFound
	}
	return cloneBytes(s.record), nil
}

// Writes returns how many times Put has succeeded.
func (s *MemoryWalletStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}
