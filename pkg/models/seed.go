package models

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

const (
	// SeedPhraseSize is the number of words in a wallet seed phrase.
	SeedPhraseSize = 24
	// SeedPhraseDelimiter separates the words of a joined phrase.
	SeedPhraseDelimiter = " "

	seedPhraseEntropyBits = 256
)

// SeedPhrase is a 24-word BIP-39 mnemonic. Its String form never contains
// the words.
type SeedPhrase struct {
	words []string
}

// NewSeedPhrase splits and validates phrase.
func NewSeedPhrase(phrase string) (SeedPhrase, error) {
	words := strings.Fields(phrase)
	if len(words) != SeedPhraseSize {
		return SeedPhrase{}, fmt.Errorf("%w: seed phrase must split into %d words but was %d", ErrValidation, SeedPhraseSize, len(words))
	}
	if !bip39.IsMnemonicValid(strings.Join(words, SeedPhraseDelimiter)) {
		return SeedPhrase{}, fmt.Errorf("%w: seed phrase is not a valid mnemonic", ErrValidation)
	}
	return SeedPhrase{words: words}, nil
}

// GenerateSeedPhrase returns a fresh phrase backed by 256 bits of entropy.
func GenerateSeedPhrase() (SeedPhrase, error) {
	entropy, err := bip39.NewEntropy(seedPhraseEntropyBits)
	if err != nil {
		return SeedPhrase{}, fmt.Errorf("new entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return SeedPhrase{}, fmt.Errorf("new mnemonic: %w", err)
	}
	return NewSeedPhrase(mnemonic)
}

// Words returns a copy of the words.
func (p SeedPhrase) Words() []string {
	return append([]string(nil), p.words...)
}

// Joined returns the words separated by a single space.
func (p SeedPhrase) Joined() string {
	return strings.Join(p.words, SeedPhraseDelimiter)
}

// IsEmpty reports whether p holds no words.
func (p SeedPhrase) IsEmpty() bool {
	return len(p.words) == 0
}

// ToSeed returns the BIP-39 seed of the phrase with an empty passphrase.
func (p SeedPhrase) ToSeed() []byte {
	return bip39.NewSeed(p.Joined(), "")
}

func (p SeedPhrase) String() string {
	return "SeedPhrase"
}

func (p SeedPhrase) LogValue() slog.Value {
	return redactedValue
}

// SeedMaterial is the wallet entropy: either a seed phrase or a raw blob,
// typically restored from hex.
type SeedMaterial struct {
	phrase SeedPhrase
	raw    secretBytes
}

// SeedFromPhrase wraps a seed phrase.
func SeedFromPhrase(p SeedPhrase) SeedMaterial {
	return SeedMaterial{phrase: p}
}

// SeedFromBytes copies a raw seed.
func SeedFromBytes(b []byte) (SeedMaterial, error) {
	if len(b) == 0 {
		return SeedMaterial{}, fmt.Errorf("%w: empty seed", ErrValidation)
	}
	return SeedMaterial{raw: newSecretBytes(b)}, nil
}

// SeedFromHex decodes a hex encoded raw seed.
func SeedFromHex(s string) (SeedMaterial, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return SeedMaterial{}, fmt.Errorf("%w: hex seed: %w", ErrValidation, err)
	}
	defer secretBytes{b: b}.wipe()
	return SeedFromBytes(b)
}

// Phrase returns the seed phrase and whether the material holds one.
func (s SeedMaterial) Phrase() (SeedPhrase, bool) {
	return s.phrase, !s.phrase.IsEmpty()
}

// IsEmpty reports whether s holds neither a phrase nor raw bytes.
func (s SeedMaterial) IsEmpty() bool {
	return s.phrase.IsEmpty() && s.raw.len() == 0
}

// Bytes returns a fresh copy of the seed bytes handed to the backend.
func (s SeedMaterial) Bytes() []byte {
	if !s.phrase.IsEmpty() {
		return s.phrase.ToSeed()
	}
	return s.raw.copyBytes()
}

// Hex returns the raw seed in hex. Phrase-backed material has no raw form
// and returns an empty string.
func (s SeedMaterial) Hex() string {
	if !s.phrase.IsEmpty() {
		return ""
	}
	return hex.EncodeToString(s.raw.b)
}

func (s SeedMaterial) Equal(o SeedMaterial) bool {
	return s.phrase.Joined() == o.phrase.Joined() && s.raw.equal(o.raw)
}

// Wipe zeroes the raw seed. Phrase words are immutable strings and cannot
// be cleared.
func (s SeedMaterial) Wipe() {
	s.raw.wipe()
}

func (s SeedMaterial) String() string {
	return "SeedMaterial"
}

func (s SeedMaterial) LogValue() slog.Value {
	return redactedValue
}
