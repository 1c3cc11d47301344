package software

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip32"
	"golang.org/x/crypto/curve25519"
	"lukechampine.com/frand"

	"github.com/olehkaliuzhnyi/shielded-wallet/internal/backend"
	"github.com/olehkaliuzhnyi/shielded-wallet/pkg/models"
)

// Backend implements backend.Backend without native code. It is stateless
// and safe for concurrent use.
type Backend struct{}

var _ backend.Backend = (*Backend)(nil)

// New returns a new software backend.
func New() *Backend {
	return &Backend{}
}

// Loader is a backend.Loader for the software backend.
func Loader(ctx context.Context) (backend.Backend, error) {
	return New(), nil
}

func (b *Backend) DeriveUnifiedAddressFromSeed(seed []byte, account int, networkID int) (string, error) {
	p, err := paramsFor(networkID)
	if err != nil {
		return "", err
	}
	usk, err := b.spendingKeyFromSeed(nil, seed, account, p)
	if err != nil {
		return "", err
	}
	defer models.Zero(usk.transparent)
	return usk.viewingKey().unifiedAddress(p)
}

func (b *Backend) DeriveUnifiedAddressFromViewingKey(ufvk string, networkID int) (string, error) {
	p, err := paramsFor(networkID)
	if err != nil {
		return "", err
	}
	fvk, err := decodeFullViewingKey(ufvk, p)
	if err != nil {
		return "", err
	}
	return fvk.unifiedAddress(p)
}

func (b *Backend) DeriveShieldedAddressFromSeed(seed []byte, account int, networkID int) (string, error) {
	p, err := paramsFor(networkID)
	if err != nil {
		return "", err
	}
	if err := checkAccount(account); err != nil {
		return "", err
	}
	key, err := deriveShieldedKey(seed, p.coinType, uint32(account))
	if err != nil {
		return "", err
	}
	sk := secretOf(key)
	defer models.Zero(sk)
	return shieldedAddress(newViewingKeys(sk, key.ChainCode), p)
}

func (b *Backend) DeriveShieldedAddressFromViewingKey(ufvk string, networkID int) (string, error) {
	p, err := paramsFor(networkID)
	if err != nil {
		return "", err
	}
	fvk, err := decodeFullViewingKey(ufvk, p)
	if err != nil {
		return "", err
	}
	return shieldedAddress(fvk.shielded, p)
}

// DeriveUnifiedSpendingKey builds a key from an imported extended secret key
// when one is given, otherwise from the seed. The transparent component is
// taken from transparentKey when given.
func (b *Backend) DeriveUnifiedSpendingKey(transparentKey []byte, extendedSecretKey string, seed []byte, account int, networkID int) (backend.RawSpendingKey, error) {
	p, err := paramsFor(networkID)
	if err != nil {
		return backend.RawSpendingKey{}, err
	}

	var usk spendingKey
	if extendedSecretKey != "" {
		ext, err := parseExtendedKey(extendedSecretKey)
		if err != nil {
			return backend.RawSpendingKey{}, err
		}
		usk = spendingKey{account: int32(account), extended: ext}
		switch {
		case len(transparentKey) > 0:
			usk.transparent, err = transparentSecret(transparentKey)
		case len(seed) > 0 && account >= 0:
			usk.transparent, err = deriveTransparentKey(seed, p.coinType, uint32(account))
		default:
			t := prf(tagTransparent, secretOf(ext))
			usk.transparent = t[:]
		}
		if err != nil {
			return backend.RawSpendingKey{}, err
		}
	} else {
		usk, err = b.spendingKeyFromSeed(transparentKey, seed, account, p)
		if err != nil {
			return backend.RawSpendingKey{}, err
		}
	}
	defer models.Zero(usk.transparent)

	raw, err := usk.encode()
	if err != nil {
		return backend.RawSpendingKey{}, err
	}
	return backend.RawSpendingKey{Account: account, Bytes: raw}, nil
}

func (b *Backend) DeriveSaplingSpendingKey(seed []byte, account int, networkID int) (backend.RawSpendingKey, error) {
	p, err := paramsFor(networkID)
	if err != nil {
		return backend.RawSpendingKey{}, err
	}
	if err := checkAccount(account); err != nil {
		return backend.RawSpendingKey{}, err
	}
	key, err := deriveShieldedKey(seed, p.coinType, uint32(account))
	if err != nil {
		return backend.RawSpendingKey{}, err
	}
	raw, err := key.Serialize()
	if err != nil {
		return backend.RawSpendingKey{}, fmt.Errorf("serialize extended key: %w", err)
	}
	return backend.RawSpendingKey{Account: account, Bytes: raw}, nil
}

func (b *Backend) DeriveUnifiedFullViewingKey(usk []byte, networkID int) (string, error) {
	p, err := paramsFor(networkID)
	if err != nil {
		return "", err
	}
	key, err := decodeSpendingKey(usk)
	if err != nil {
		return "", err
	}
	defer models.Zero(key.transparent)
	return key.viewingKey().encode(p)
}

// IsValidShieldedAddress reports false for any malformed address. Only an
// unknown network is an error.
func (b *Backend) IsValidShieldedAddress(address string, networkID int) (bool, error) {
	p, err := paramsFor(networkID)
	if err != nil {
		return false, err
	}
	_, err = decodeShieldedAddress(address, p)
	return err == nil, nil
}

// GetSymmetricKey recomputes the key agreed by a sender. viewingKey is a
// unified full viewing key or the hex encoded extended full viewing key.
func (b *Backend) GetSymmetricKey(viewingKey string, ephemeralPublicKey []byte, networkID int) ([]byte, error) {
	p, err := paramsFor(networkID)
	if err != nil {
		return nil, err
	}
	vk, err := parseViewingKey(viewingKey, p)
	if err != nil {
		return nil, err
	}
	shared, err := curve25519.X25519(vk.ivk[:], ephemeralPublicKey)
	if err != nil {
		return nil, fmt.Errorf("key agreement: %w", err)
	}
	defer models.Zero(shared)
	return kdf(shared, ephemeralPublicKey), nil
}

// GenerateSymmetricKey agrees a key with the owner of a shielded address
// under a fresh ephemeral secret.
func (b *Backend) GenerateSymmetricKey(address string, networkID int) (backend.RawKeyAgreement, error) {
	p, err := paramsFor(networkID)
	if err != nil {
		return backend.RawKeyAgreement{}, err
	}
	pkd, err := decodeShieldedAddress(address, p)
	if err != nil {
		return backend.RawKeyAgreement{}, err
	}

	esk := frand.Bytes(keySize)
	defer models.Zero(esk)
	epk, err := curve25519.X25519(esk, curve25519.Basepoint)
	if err != nil {
		return backend.RawKeyAgreement{}, fmt.Errorf("ephemeral key: %w", err)
	}
	shared, err := curve25519.X25519(esk, pkd)
	if err != nil {
		return backend.RawKeyAgreement{}, fmt.Errorf("key agreement: %w", err)
	}
	defer models.Zero(shared)

	return backend.RawKeyAgreement{
		EphemeralPublicKey: epk,
		SymmetricKey:       kdf(shared, epk),
	}, nil
}

// DeriveChannelKeys derives the channel identity for two correspondents
// below either the seed account at HDIndex or an imported extended key.
func (b *Backend) DeriveChannelKeys(req backend.ChannelRequest, networkID int) (backend.RawChannelKeys, error) {
	p, err := paramsFor(networkID)
	if err != nil {
		return backend.RawChannelKeys{}, err
	}

	var base *bip32.Key
	if req.SpendingKey != "" {
		base, err = parseExtendedKey(req.SpendingKey)
	} else {
		if err := checkAccount(int(req.HDIndex)); err != nil {
			return backend.RawChannelKeys{}, err
		}
		base, err = deriveShieldedKey(req.Seed, p.coinType, req.HDIndex)
	}
	if err != nil {
		return backend.RawChannelKeys{}, err
	}

	child, err := channelChild(base, req.FromID, req.ToID, req.EncryptionIndex)
	if err != nil {
		return backend.RawChannelKeys{}, err
	}
	sk := secretOf(child)
	defer models.Zero(sk)

	vk := newViewingKeys(sk, child.ChainCode)
	address, err := shieldedAddress(vk, p)
	if err != nil {
		return backend.RawChannelKeys{}, err
	}
	out := backend.RawChannelKeys{
		Address:                address,
		ExtendedFullViewingKey: vk.xfvk(),
		InternalViewingKey:     append([]byte(nil), vk.ivk[:]...),
	}
	if req.ReturnSecret {
		out.SpendingKey, err = child.Serialize()
		if err != nil {
			return backend.RawChannelKeys{}, fmt.Errorf("serialize channel key: %w", err)
		}
	}
	return out, nil
}

// DeriveEncryptionAddress returns the channel address at encryption index 0
// for the seed account.
func (b *Backend) DeriveEncryptionAddress(seed []byte, fromID, toID []byte, account int, networkID int) (string, error) {
	if err := checkAccount(account); err != nil {
		return "", err
	}
	keys, err := b.DeriveChannelKeys(backend.ChannelRequest{
		Seed:   seed,
		FromID: fromID,
		ToID:   toID,
		// Account indexes are below 2^31, checked above.
		HDIndex: uint32(account),
	}, networkID)
	if err != nil {
		return "", err
	}
	return keys.Address, nil
}

func (b *Backend) spendingKeyFromSeed(transparentKey, seed []byte, account int, p params) (spendingKey, error) {
	if err := checkAccount(account); err != nil {
		return spendingKey{}, err
	}
	ext, err := deriveShieldedKey(seed, p.coinType, uint32(account))
	if err != nil {
		return spendingKey{}, err
	}
	var t []byte
	if len(transparentKey) > 0 {
		t, err = transparentSecret(transparentKey)
	} else {
		t, err = deriveTransparentKey(seed, p.coinType, uint32(account))
	}
	if err != nil {
		return spendingKey{}, err
	}
	return spendingKey{account: int32(account), transparent: t, extended: ext}, nil
}

// transparentSecret copies a 32-byte secp256k1 secret. A trailing
// compression flag as found in WIF payloads is dropped.
func transparentSecret(key []byte) ([]byte, error) {
	if len(key) == keySize+1 && key[keySize] == 0x01 {
		key = key[:keySize]
	}
	if len(key) != keySize || isZero(key) {
		return nil, fmt.Errorf("%w: transparent key must be %d non-zero bytes", errInvalidSpendingKey, keySize)
	}
	return append([]byte(nil), key...), nil
}

func parseViewingKey(s string, p params) (viewingKeys, error) {
	if strings.HasPrefix(s, p.viewingKeyHRP+"1") {
		fvk, err := decodeFullViewingKey(s, p)
		if err != nil {
			return viewingKeys{}, err
		}
		return fvk.shielded, nil
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return viewingKeys{}, fmt.Errorf("%w: %w", errInvalidViewingKey, err)
	}
	return viewingKeysFromXFVK(raw)
}
