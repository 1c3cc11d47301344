package models

import (
	"errors"
	"fmt"
	"log/slog"
)

var errEmptyKey = errors.New("key bytes must not be empty")

// UnifiedSpendingKey is the full spend authority for one account, combining
// transparent and shielded components.
//
// The byte encoding is internal to the backend and unstable. It must never
// be shown to users, exported or imported.
type UnifiedSpendingKey struct {
	account Account
	bytes   secretBytes
}

// NewUnifiedSpendingKey copies b into a new key for account.
func NewUnifiedSpendingKey(account Account, b []byte) (*UnifiedSpendingKey, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: unified spending key: %w", ErrValidation, errEmptyKey)
	}
	return &UnifiedSpendingKey{account: account, bytes: newSecretBytes(b)}, nil
}

// Account returns the account the key spends for.
func (k *UnifiedSpendingKey) Account() Account {
	return k.account
}

// CopyBytes returns a copy of the backend encoding.
func (k *UnifiedSpendingKey) CopyBytes() []byte {
	return k.bytes.copyBytes()
}

// Equal reports structural equality.
func (k *UnifiedSpendingKey) Equal(o *UnifiedSpendingKey) bool {
	if k == nil || o == nil {
		return k == o
	}
	return k.account == o.account && k.bytes.equal(o.bytes)
}

// Wipe zeroes the key material held by k.
func (k *UnifiedSpendingKey) Wipe() {
	k.bytes.wipe()
}

func (k *UnifiedSpendingKey) String() string {
	return fmt.Sprintf("UnifiedSpendingKey(account=%d)", k.account.Value())
}

// LogValue keeps the key out of structured logs.
func (k *UnifiedSpendingKey) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("account", k.account.Value()),
		slog.Any("bytes", redactedValue),
	)
}

// ShieldedSpendingKey is the spend authority for the shielded pool only.
type ShieldedSpendingKey struct {
	account Account
	bytes   secretBytes
}

// NewShieldedSpendingKey copies b into a new key for account.
func NewShieldedSpendingKey(account Account, b []byte) (*ShieldedSpendingKey, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: shielded spending key: %w", ErrValidation, errEmptyKey)
	}
	return &ShieldedSpendingKey{account: account, bytes: newSecretBytes(b)}, nil
}

func (k *ShieldedSpendingKey) Account() Account {
	return k.account
}

// CopyBytes returns a copy of the backend encoding.
func (k *ShieldedSpendingKey) CopyBytes() []byte {
	return k.bytes.copyBytes()
}

func (k *ShieldedSpendingKey) Equal(o *ShieldedSpendingKey) bool {
	if k == nil || o == nil {
		return k == o
	}
	return k.account == o.account && k.bytes.equal(o.bytes)
}

func (k *ShieldedSpendingKey) Wipe() {
	k.bytes.wipe()
}

func (k *ShieldedSpendingKey) String() string {
	return fmt.Sprintf("ShieldedSpendingKey(account=%d)", k.account.Value())
}

func (k *ShieldedSpendingKey) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("account", k.account.Value()),
		slog.Any("bytes", redactedValue),
	)
}

// UnifiedFullViewingKey grants visibility into an account's activity
// without spend authority. It is carried in its string encoding.
type UnifiedFullViewingKey struct {
	encoding string
}

// NewUnifiedFullViewingKey wraps an encoded viewing key. Validation of the
// encoding is left to the backend.
func NewUnifiedFullViewingKey(encoding string) (UnifiedFullViewingKey, error) {
	if encoding == "" {
		return UnifiedFullViewingKey{}, fmt.Errorf("%w: empty unified full viewing key", ErrValidation)
	}
	return UnifiedFullViewingKey{encoding: encoding}, nil
}

// Encoding returns the string form of the key.
func (k UnifiedFullViewingKey) Encoding() string {
	return k.encoding
}

func (k UnifiedFullViewingKey) String() string {
	return k.encoding
}
