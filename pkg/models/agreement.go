package models

import (
	"encoding/hex"
	"fmt"
	"log/slog"
)

// EphemeralPublicKey is the one-time public key sent along with a single
// encrypted message or note. It can always be recomputed from the message.
type EphemeralPublicKey struct {
	bytes secretBytes
}

// NewEphemeralPublicKey copies b. The key is not validated.
func NewEphemeralPublicKey(b []byte) EphemeralPublicKey {
	return EphemeralPublicKey{bytes: newSecretBytes(b)}
}

// EphemeralPublicKeyFromHex decodes a hex encoded key.
func EphemeralPublicKeyFromHex(s string) (EphemeralPublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return EphemeralPublicKey{}, fmt.Errorf("%w: ephemeral public key: %w", ErrValidation, err)
	}
	return EphemeralPublicKey{bytes: secretBytes{b: b}}, nil
}

func (k EphemeralPublicKey) CopyBytes() []byte {
	return k.bytes.copyBytes()
}

// Hex returns the lowercase hex encoding.
func (k EphemeralPublicKey) Hex() string {
	return hex.EncodeToString(k.bytes.b)
}

func (k EphemeralPublicKey) IsEmpty() bool {
	return k.bytes.len() == 0
}

func (k EphemeralPublicKey) Equal(o EphemeralPublicKey) bool {
	return k.bytes.equal(o.bytes)
}

func (k EphemeralPublicKey) String() string {
	return "EphemeralPublicKey(bytes=" + redacted + ")"
}

func (k EphemeralPublicKey) LogValue() slog.Value {
	return redactedValue
}

// SharedSecret is the key-agreement output used as the symmetric key of a
// single message or note.
type SharedSecret struct {
	bytes secretBytes
}

// NewSharedSecret copies b.
func NewSharedSecret(b []byte) SharedSecret {
	return SharedSecret{bytes: newSecretBytes(b)}
}

// SharedSecretFromHex decodes a hex encoded secret.
func SharedSecretFromHex(s string) (SharedSecret, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return SharedSecret{}, fmt.Errorf("%w: symmetric key: %w", ErrValidation, err)
	}
	return SharedSecret{bytes: secretBytes{b: b}}, nil
}

func (s SharedSecret) CopyBytes() []byte {
	return s.bytes.copyBytes()
}

func (s SharedSecret) Hex() string {
	return hex.EncodeToString(s.bytes.b)
}

func (s SharedSecret) IsEmpty() bool {
	return s.bytes.len() == 0
}

func (s SharedSecret) Equal(o SharedSecret) bool {
	return s.bytes.equal(o.bytes)
}

// Wipe zeroes the secret.
func (s SharedSecret) Wipe() {
	s.bytes.wipe()
}

func (s SharedSecret) String() string {
	return "SharedSecret(bytes=" + redacted + ")"
}

func (s SharedSecret) LogValue() slog.Value {
	return redactedValue
}

// KeyAgreement is the sender side result of agreeing on a key with a
// recipient address: the key itself and the ephemeral public key the
// recipient needs to recompute it.
type KeyAgreement struct {
	EphemeralPublicKey EphemeralPublicKey
	SymmetricKey       SharedSecret
}
