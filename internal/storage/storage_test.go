package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// testScryptN keeps key stretching fast in tests.
const testScryptN = 1 << 4

func TestMemoryWalletStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryWalletStore()

	_, err := s.Get(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	data := []byte("record")
	require.NoError(t, s.Put(ctx, data))
	data[0] = 'X'

	got, err := s.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("record"), got)

	got[0] = 'Y'
	again, err := s.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("record"), again)
	require.Equal(t, 1, s.Writes())
}

func TestMemoryWalletStoreCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewMemoryWalletStore()
	require.ErrorIs(t, s.Put(ctx, []byte("x")), context.Canceled)
	require.Equal(t, 0, s.Writes())
}

func TestEncryptedWalletStore(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryWalletStore()
	s, err := NewEncryptedWalletStore(inner, "correct horse", testScryptN)
	require.NoError(t, err)

	plain := []byte(`{"v":1,"seed_phrase":"secret words"}`)
	require.NoError(t, s.Put(ctx, plain))

	raw, err := inner.Get(ctx)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "secret words")

	got, err := s.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, plain, got)

	t.Run("wrong passphrase", func(t *testing.T) {
		other, err := NewEncryptedWalletStore(inner, "battery staple", testScryptN)
		require.NoError(t, err)
		_, err = other.Get(ctx)
		require.ErrorIs(t, err, ErrWrongPassphrase)
	})

	t.Run("corrupted record", func(t *testing.T) {
		raw[0] ^= 0xff
		require.NoError(t, inner.Put(ctx, raw))
		_, err := s.Get(ctx)
		require.ErrorIs(t, err, ErrWrongPassphrase)
	})

	t.Run("truncated record", func(t *testing.T) {
		require.NoError(t, inner.Put(ctx, []byte("short")))
		_, err := s.Get(ctx)
		require.ErrorIs(t, err, ErrWrongPassphrase)
	})
}

func TestEncryptedWalletStoreFreshSalt(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryWalletStore()
	s, err := NewEncryptedWalletStore(inner, "pw", testScryptN)
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, []byte("same")))
	first, _ := inner.Get(ctx)
	require.NoError(t, s.Put(ctx, []byte("same")))
	second, _ := inner.Get(ctx)
	require.NotEqual(t, first, second)
}

func TestEncryptedWalletStoreOptions(t *testing.T) {
	inner := NewMemoryWalletStore()
	_, err := NewEncryptedWalletStore(inner, "", testScryptN)
	require.ErrorIs(t, err, ErrEmptyPassphrase)

	for _, n := range []int{0, 1, 3, 1000} {
		_, err = NewEncryptedWalletStore(inner, "pw", n)
		require.ErrorIs(t, err, ErrInvalidScryptN, "N=%d", n)
	}
}
