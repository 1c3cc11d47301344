package software

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/tyler-smith/go-bip32"
)

const (
	uskVersion  = 0x01
	ufvkVersion = 0x01
	uaVersion   = 0x01

	pubKeySize = 33
	ufvkSize   = 1 + pubKeySize + xfvkSize
	uaSize     = 1 + 20 + shieldedPayloadSize
)

// spendingKey is the decoded form of a unified spending key.
type spendingKey struct {
	account     int32
	transparent []byte
	extended    *bip32.Key
}

// encode lays out version || account || transparent secret || len ||
// serialized extended key.
func (k spendingKey) encode() ([]byte, error) {
	ext, err := k.extended.Serialize()
	if err != nil {
		return nil, fmt.Errorf("serialize extended key: %w", err)
	}
	out := make([]byte, 0, 1+4+keySize+2+len(ext))
	out = append(out, uskVersion)
	out = binary.BigEndian.AppendUint32(out, uint32(k.account))
	out = append(out, k.transparent...)
	out = binary.BigEndian.AppendUint16(out, uint16(len(ext)))
	return append(out, ext...), nil
}

func decodeSpendingKey(b []byte) (spendingKey, error) {
	const head = 1 + 4 + keySize + 2
	if len(b) < head || b[0] != uskVersion {
		return spendingKey{}, fmt.Errorf("%w: malformed unified spending key", errInvalidSpendingKey)
	}
	n := int(binary.BigEndian.Uint16(b[head-2 : head]))
	if len(b) != head+n {
		return spendingKey{}, fmt.Errorf("%w: unified spending key length", errInvalidSpendingKey)
	}
	ext, err := bip32.Deserialize(b[head:])
	if err != nil {
		return spendingKey{}, fmt.Errorf("%w: %w", errInvalidSpendingKey, err)
	}
	if !ext.IsPrivate {
		return spendingKey{}, fmt.Errorf("%w: extended key is public", errInvalidSpendingKey)
	}
	return spendingKey{
		account:     int32(binary.BigEndian.Uint32(b[1:5])),
		transparent: append([]byte(nil), b[5:5+keySize]...),
		extended:    ext,
	}, nil
}

// fullViewingKey is the decoded form of a unified full viewing key.
type fullViewingKey struct {
	transparentPub []byte
	shielded       viewingKeys
}

func (k spendingKey) viewingKey() fullViewingKey {
	return fullViewingKey{
		transparentPub: compressedPubKey(k.transparent),
		shielded:       newViewingKeys(secretOf(k.extended), k.extended.ChainCode),
	}
}

func (f fullViewingKey) encode(p params) (string, error) {
	raw := make([]byte, 0, ufvkSize)
	raw = append(raw, ufvkVersion)
	raw = append(raw, f.transparentPub...)
	raw = append(raw, f.shielded.xfvk()...)
	return encodeBech32m(p.viewingKeyHRP, raw)
}

func decodeFullViewingKey(s string, p params) (fullViewingKey, error) {
	raw, err := decodeBech32(s, p.viewingKeyHRP)
	if err != nil {
		return fullViewingKey{}, fmt.Errorf("%w: %w", errInvalidViewingKey, err)
	}
	if len(raw) != ufvkSize || raw[0] != ufvkVersion {
		return fullViewingKey{}, fmt.Errorf("%w: malformed unified full viewing key", errInvalidViewingKey)
	}
	vk, err := viewingKeysFromXFVK(raw[1+pubKeySize:])
	if err != nil {
		return fullViewingKey{}, err
	}
	return fullViewingKey{
		transparentPub: append([]byte(nil), raw[1:1+pubKeySize]...),
		shielded:       vk,
	}, nil
}

func (f fullViewingKey) unifiedAddress(p params) (string, error) {
	payload, err := f.shielded.payload()
	if err != nil {
		return "", err
	}
	raw := make([]byte, 0, uaSize)
	raw = append(raw, uaVersion)
	raw = append(raw, hash160(f.transparentPub)...)
	raw = append(raw, payload...)
	return encodeBech32m(p.unifiedHRP, raw)
}

func shieldedAddress(vk viewingKeys, p params) (string, error) {
	payload, err := vk.payload()
	if err != nil {
		return "", err
	}
	return encodeBech32(p.shieldedHRP, payload)
}

// decodeShieldedAddress returns the transmission key pk_d of address.
func decodeShieldedAddress(address string, p params) ([]byte, error) {
	raw, err := decodeBech32(address, p.shieldedHRP)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidAddress, err)
	}
	if len(raw) != shieldedPayloadSize {
		return nil, fmt.Errorf("%w: payload must be %d bytes, got %d", errInvalidAddress, shieldedPayloadSize, len(raw))
	}
	pkd := raw[diversifierLen:]
	if isZero(pkd) {
		return nil, fmt.Errorf("%w: zero transmission key", errInvalidAddress)
	}
	return pkd, nil
}

func encodeBech32(hrp string, data []byte) (string, error) {
	conv, err := bech32.ConvertBits(data, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("convert bits: %w", err)
	}
	return bech32.Encode(hrp, conv)
}

func encodeBech32m(hrp string, data []byte) (string, error) {
	conv, err := bech32.ConvertBits(data, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("convert bits: %w", err)
	}
	return bech32.EncodeM(hrp, conv)
}

// decodeBech32 accepts either checksum variant and checks the prefix.
func decodeBech32(s string, wantHRP string) ([]byte, error) {
	hrp, data, err := bech32.DecodeNoLimit(s)
	if err != nil {
		return nil, err
	}
	if hrp != wantHRP {
		return nil, fmt.Errorf("prefix %q, want %q", hrp, wantHRP)
	}
	return bech32.ConvertBits(data, 5, 8, false)
}
