// Package software is a pure Go reference implementation of the
// cryptographic backend. It keeps the structure of the production key
// hierarchy (hardened HD derivation, Diffie-Hellman key agreement on the
// recipient's diversified transmission key, bech32 encodings) on top of
// secp256k1 BIP-32 keys and X25519.
package software

import (
	"errors"
	"fmt"

	"github.com/olehkaliuzhnyi/shielded-wallet/pkg/models"
)

var (
	errUnknownNetwork     = errors.New("unknown network")
	errSeedLength         = errors.New("seed must be between 16 and 64 bytes")
	errInvalidAddress     = errors.New("invalid shielded address")
	errInvalidViewingKey  = errors.New("invalid viewing key")
	errInvalidSpendingKey = errors.New("invalid spending key")
	errInvalidAccount     = errors.New("invalid account index")
)

// params are the per network constants of the key hierarchy.
type params struct {
	coinType      uint32
	shieldedHRP   string
	unifiedHRP    string
	viewingKeyHRP string
}

var networkParams = map[int]params{
	models.NetworkIDMainnet: {
		coinType:      133,
		shieldedHRP:   "zs",
		unifiedHRP:    "u",
		viewingKeyHRP: "uview",
	},
	models.NetworkIDTestnet: {
		coinType:      1,
		shieldedHRP:   "ztestsapling",
		unifiedHRP:    "utest",
		viewingKeyHRP: "uviewtest",
	},
}

func paramsFor(networkID int) (params, error) {
	p, ok := networkParams[networkID]
	if !ok {
		return params{}, fmt.Errorf("%w: %d", errUnknownNetwork, networkID)
	}
	return p, nil
}
