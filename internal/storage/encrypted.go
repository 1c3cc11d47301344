package storage

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"

	"golang.org/x/crypto/scrypt"
	"lukechampine.com/frand"
)

const (
	saltSize = 32
	keySize  = 32

	// DefaultScryptN is the recommended work factor for interactive use.
	DefaultScryptN = 1 << 20
)

var (
	ErrEmptyPassphrase = errors.New("passphrase must not be empty")
	ErrInvalidScryptN  = errors.New("scrypt N must be a power of two greater than 1")
	// ErrWrongPassphrase is returned when a stored record fails authentication.
	ErrWrongPassphrase = errors.New("wrong passphrase or corrupted record")
)

// EncryptedWalletStore seals records with AES-256-GCM under a key stretched
// from a passphrase with scrypt before handing them to the inner store.
// Layout: nonce || ciphertext || salt.
type EncryptedWalletStore struct {
	inner      WalletStore
	passphrase []byte
	scryptN    int
}

func NewEncryptedWalletStore(inner WalletStore, passphrase string, scryptN int) (*EncryptedWalletStore, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	if scryptN <= 1 || scryptN&(scryptN-1) != 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidScryptN, scryptN)
	}
	return &EncryptedWalletStore{
		inner:      inner,
		passphrase: []byte(passphrase),
		scryptN:    scryptN,
	}, nil
}

func (s *EncryptedWalletStore) Put(ctx context.Context, data []byte) error {
	salt := frand.Bytes(saltSize)
	gcm, err := s.cipher(salt)
	if err != nil {
		return err
	}
	nonce := frand.Bytes(gcm.NonceSize())
	sealed := gcm.Seal(nonce, nonce, data, nil)
	sealed = append(sealed, salt...)
	return s.inner.Put(ctx, sealed)
}

func (s *EncryptedWalletStore) Get(ctx context.Context) ([]byte, error) {
	sealed, err := s.inner.Get(ctx)
	if err != nil {
		return nil, err
	}
	if len(sealed) < saltSize {
		return nil, ErrWrongPassphrase
	}
	salt, body := sealed[len(sealed)-saltSize:], sealed[:len(sealed)-saltSize]
	gcm, err := s.cipher(salt)
	if err != nil {
		return nil, err
	}
	if len(body) < gcm.NonceSize()+gcm.Overhead() {
		return nil, ErrWrongPassphrase
	}
	nonce, text := body[:gcm.NonceSize()], body[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, text, nil)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return plain, nil
}

// Close closes the inner store when it holds resources.
func (s *EncryptedWalletStore) Close() error {
	if c, ok := s.inner.(Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *EncryptedWalletStore) cipher(salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(s.passphrase, salt, s.scryptN, 8, 1, keySize)
	if err != nil {
		return nil, fmt.Errorf("derive store key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
