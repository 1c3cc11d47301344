package software

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/tyler-smith/go-bip32"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // RIPEMD-160 is required for the transparent receiver (Hash160)
)

const (
	// Purpose of the shielded hierarchy, m/32'/coin'/account'.
	shieldedPurpose = 32
	// Purpose of the transparent hierarchy, m/44'/coin'/account'/0/0.
	transparentPurpose = 44

	keySize        = 32
	diversifierLen = 11
	// xfvk is dk || ivk || ovk.
	xfvkSize = 3 * keySize
	// A shielded address payload is d || pk_d.
	shieldedPayloadSize = diversifierLen + keySize
	// Serialized BIP-32 keys carry a 4-byte checksum.
	serializedKeySize = 82

	minSeedLen = 16
	maxSeedLen = 64
)

// Personalization tags of the PRFs.
const (
	tagIVK         = "ShieldedWallet_ivk"
	tagOVK         = "ShieldedWallet_ovk"
	tagDK          = "ShieldedWallet_dk"
	tagDiversifier = "ShieldedWallet_div"
	tagTransparent = "ShieldedWallet_t"
	tagChannel     = "ShieldedWallet_chan"
	tagKDF         = "ShieldedWallet_kdf"
)

// viewingKeys is the viewing material of one shielded spending key.
type viewingKeys struct {
	dk  [keySize]byte
	ivk [keySize]byte
	ovk [keySize]byte
}

func newViewingKeys(sk, chainCode []byte) viewingKeys {
	return viewingKeys{
		dk:  prf(tagDK, sk, chainCode),
		ivk: prf(tagIVK, sk),
		ovk: prf(tagOVK, sk),
	}
}

func viewingKeysFromXFVK(xfvk []byte) (viewingKeys, error) {
	if len(xfvk) != xfvkSize {
		return viewingKeys{}, fmt.Errorf("%w: xfvk must be %d bytes, got %d", errInvalidViewingKey, xfvkSize, len(xfvk))
	}
	var vk viewingKeys
	copy(vk.dk[:], xfvk[:keySize])
	copy(vk.ivk[:], xfvk[keySize:2*keySize])
	copy(vk.ovk[:], xfvk[2*keySize:])
	return vk, nil
}

func (vk viewingKeys) xfvk() []byte {
	out := make([]byte, 0, xfvkSize)
	out = append(out, vk.dk[:]...)
	out = append(out, vk.ivk[:]...)
	return append(out, vk.ovk[:]...)
}

// payload returns the default shielded address payload d || pk_d.
func (vk viewingKeys) payload() ([]byte, error) {
	pkd, err := curve25519.X25519(vk.ivk[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("transmission key: %w", err)
	}
	d := prf(tagDiversifier, vk.dk[:])
	out := make([]byte, 0, shieldedPayloadSize)
	out = append(out, d[:diversifierLen]...)
	return append(out, pkd...), nil
}

// prf is a keyed BLAKE2b-256 over the concatenated parts.
func prf(tag string, parts ...[]byte) [keySize]byte {
	h, err := blake2b.New256([]byte(tag))
	if err != nil {
		// Tags are constants shorter than the 64 byte key limit.
		panic(err)
	}
	for _, p := range parts {
		h.Write(p)
	}
	var out [keySize]byte
	copy(out[:], h.Sum(nil))
	return out
}

func checkSeed(seed []byte) error {
	if len(seed) < minSeedLen || len(seed) > maxSeedLen {
		return fmt.Errorf("%w: got %d", errSeedLength, len(seed))
	}
	return nil
}

func checkAccount(account int) error {
	if account < 0 || uint64(account) >= uint64(bip32.FirstHardenedChild) {
		return fmt.Errorf("%w: %d", errInvalidAccount, account)
	}
	return nil
}

// deriveShieldedKey walks m/32'/coin'/account'.
func deriveShieldedKey(seed []byte, coinType uint32, account uint32) (*bip32.Key, error) {
	if err := checkSeed(seed); err != nil {
		return nil, err
	}
	return derivePath(seed,
		bip32.FirstHardenedChild+shieldedPurpose,
		bip32.FirstHardenedChild+coinType,
		bip32.FirstHardenedChild+account,
	)
}

// deriveTransparentKey walks m/44'/coin'/account'/0/0 and returns the
// secp256k1 secret.
func deriveTransparentKey(seed []byte, coinType uint32, account uint32) ([]byte, error) {
	if err := checkSeed(seed); err != nil {
		return nil, err
	}
	key, err := derivePath(seed,
		bip32.FirstHardenedChild+transparentPurpose,
		bip32.FirstHardenedChild+coinType,
		bip32.FirstHardenedChild+account,
		0,
		0,
	)
	if err != nil {
		return nil, err
	}
	return secretOf(key), nil
}

func derivePath(seed []byte, path ...uint32) (*bip32.Key, error) {
	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}
	for depth, idx := range path {
		key, err = key.NewChildKey(idx)
		if err != nil {
			return nil, fmt.Errorf("derive depth %d: %w", depth+1, err)
		}
	}
	return key, nil
}

// secretOf returns the private scalar of key left padded to 32 bytes.
func secretOf(key *bip32.Key) []byte {
	k := key.Key
	if len(k) > keySize {
		k = k[len(k)-keySize:]
	}
	out := make([]byte, keySize)
	copy(out[keySize-len(k):], k)
	return out
}

// parseExtendedKey accepts a base58 or hex serialized private extended key.
func parseExtendedKey(s string) (*bip32.Key, error) {
	var (
		key *bip32.Key
		err error
	)
	if raw, hexErr := hex.DecodeString(s); hexErr == nil && len(raw) == serializedKeySize {
		key, err = bip32.Deserialize(raw)
	} else {
		key, err = bip32.B58Deserialize(s)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidSpendingKey, err)
	}
	if !key.IsPrivate {
		return nil, fmt.Errorf("%w: extended key is public", errInvalidSpendingKey)
	}
	return key, nil
}

// channelChild derives the channel key for two correspondent identifiers
// below base.
func channelChild(base *bip32.Key, fromID, toID []byte, encryptionIndex uint32) (*bip32.Key, error) {
	if encryptionIndex >= bip32.FirstHardenedChild {
		return nil, fmt.Errorf("%w: encryption index %d", errInvalidAccount, encryptionIndex)
	}
	tweak := prf(tagChannel, lengthPrefixed(fromID), lengthPrefixed(toID))
	idx := binary.BigEndian.Uint32(tweak[:4]) & 0x7fffffff

	pair, err := base.NewChildKey(bip32.FirstHardenedChild + idx)
	if err != nil {
		return nil, fmt.Errorf("derive channel: %w", err)
	}
	child, err := pair.NewChildKey(bip32.FirstHardenedChild + encryptionIndex)
	if err != nil {
		return nil, fmt.Errorf("derive encryption index: %w", err)
	}
	return child, nil
}

func lengthPrefixed(b []byte) []byte {
	out := make([]byte, 4, 4+len(b))
	binary.BigEndian.PutUint32(out, uint32(len(b)))
	return append(out, b...)
}

// kdf turns a Diffie-Hellman output into a symmetric key bound to epk.
func kdf(shared, epk []byte) []byte {
	k := prf(tagKDF, shared, epk)
	return k[:]
}

func compressedPubKey(privKeyBytes []byte) []byte {
	_, pubKey := btcec.PrivKeyFromBytes(privKeyBytes)
	return pubKey.SerializeCompressed()
}

func hash160(data []byte) []byte {
	sha := sha256.Sum256(data)
	ripe := ripemd160.New()
	ripe.Write(sha[:])
	return ripe.Sum(nil)
}

func isZero(b []byte) bool {
	return bytes.Equal(b, make([]byte, len(b)))
}
