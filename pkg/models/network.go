package models

import "fmt"

// BlockHeight is a height on the chain.
type BlockHeight uint64

// Network holds the chain parameters the wallet needs.
type Network struct {
	ID                      int         `json:"id"`
	Name                    string      `json:"name"`
	SaplingActivationHeight BlockHeight `json:"sapling_activation_height"`
	OrchardActivationHeight BlockHeight `json:"orchard_activation_height"`
}

// Stable network ids understood by the cryptographic backend.
const (
	NetworkIDTestnet = 0
	NetworkIDMainnet = 1
)

// Supported networks.
var (
	NetworkTestnet = Network{
		ID:                      NetworkIDTestnet,
		Name:                    "testnet",
		SaplingActivationHeight: 1,
		OrchardActivationHeight: 999_999_999,
	}
	NetworkMainnet = Network{
		ID:                      NetworkIDMainnet,
		Name:                    "VRSC",
		SaplingActivationHeight: 227_520,
		OrchardActivationHeight: 999_999_999,
	}
)

// NetworkFromID resolves a network id. Unknown ids are rejected.
func NetworkFromID(id int) (Network, error) {
	switch id {
	case NetworkIDTestnet:
		return NetworkTestnet, nil
	case NetworkIDMainnet:
		return NetworkMainnet, nil
	default:
		return Network{}, fmt.Errorf("%w: unknown network id %d", ErrValidation, id)
	}
}

// IsMainnet reports whether n is the main network.
func (n Network) IsMainnet() bool {
	return n.ID == NetworkIDMainnet
}

// IsTestnet reports whether n is the test network.
func (n Network) IsTestnet() bool {
	return n.ID == NetworkIDTestnet
}

func (n Network) String() string {
	return n.Name
}
