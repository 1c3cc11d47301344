package models

import (
	"fmt"
	"log/slog"
)

// ChannelKeys is the identity of one side of a two-party messaging channel.
// The spending key bytes are only present when they were explicitly asked
// for.
type ChannelKeys struct {
	address     string
	xfvk        secretBytes
	ivk         secretBytes
	spendingKey secretBytes
}

// NewChannelKeys copies the key material. A nil or empty sk means the
// spending key was withheld.
func NewChannelKeys(address string, xfvk, ivk, sk []byte) (*ChannelKeys, error) {
	if address == "" {
		return nil, fmt.Errorf("%w: channel address must not be empty", ErrValidation)
	}
	if len(xfvk) == 0 || len(ivk) == 0 {
		return nil, fmt.Errorf("%w: channel viewing keys: %w", ErrValidation, errEmptyKey)
	}
	k := &ChannelKeys{
		address: address,
		xfvk:    newSecretBytes(xfvk),
		ivk:     newSecretBytes(ivk),
	}
	if len(sk) > 0 {
		k.spendingKey = newSecretBytes(sk)
	}
	return k, nil
}

// Address returns the shielded address of the channel.
func (k *ChannelKeys) Address() string {
	return k.address
}

func (k *ChannelKeys) CopyExtendedFullViewingKeyBytes() []byte {
	return k.xfvk.copyBytes()
}

func (k *ChannelKeys) CopyInternalViewingKeyBytes() []byte {
	return k.ivk.copyBytes()
}

// CopySpendingKeyBytes returns nil when the spending key was withheld.
func (k *ChannelKeys) CopySpendingKeyBytes() []byte {
	if !k.HasSpendingKey() {
		return nil
	}
	return k.spendingKey.copyBytes()
}

func (k *ChannelKeys) HasSpendingKey() bool {
	return k.spendingKey.len() > 0
}

func (k *ChannelKeys) Equal(o *ChannelKeys) bool {
	if k == nil || o == nil {
		return k == o
	}
	return k.address == o.address &&
		k.xfvk.equal(o.xfvk) &&
		k.ivk.equal(o.ivk) &&
		k.spendingKey.equal(o.spendingKey)
}

// Wipe zeroes every key held by k. The address is public and kept.
func (k *ChannelKeys) Wipe() {
	k.xfvk.wipe()
	k.ivk.wipe()
	k.spendingKey.wipe()
}

func (k *ChannelKeys) String() string {
	return fmt.Sprintf("ChannelKeys(address=%s)", k.address)
}

func (k *ChannelKeys) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("address", k.address),
		slog.Bool("spending_key", k.HasSpendingKey()),
	)
}

// EncryptedPayload is one encrypted channel message in hex form. An empty
// SymmetricKey means the key was not requested.
type EncryptedPayload struct {
	EphemeralPublicKey string `json:"ephemeral_public_key"`
	Ciphertext         string `json:"ciphertext"`
	SymmetricKey       string `json:"symmetric_key,omitempty"`
}

// HasSymmetricKey reports whether the payload carries its key.
func (p EncryptedPayload) HasSymmetricKey() bool {
	return p.SymmetricKey != ""
}

// DecryptParams selects how a message is decrypted. When SymmetricKeyHex is
// set it is used directly and the viewing key fields are ignored.
type DecryptParams struct {
	FullViewingKeyHex     string
	EphemeralPublicKeyHex string
	CiphertextHex         string
	SymmetricKeyHex       string
}
