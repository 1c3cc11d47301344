package models

import "errors"

// Failure categories shared by every layer of the wallet. Callers match them
// with errors.Is; the concrete cause is joined alongside.
var (
	// ErrDerivation is returned when the cryptographic backend rejects a
	// seed, key or address.
	ErrDerivation = errors.New("derivation failure")
	// ErrValidation is returned for malformed input detected before the
	// backend is reached: bad address, account index, seed phrase, network.
	ErrValidation = errors.New("validation failure")
	// ErrChannelInputConflict is returned when channel key derivation gets
	// both or neither of seed and spending key.
	ErrChannelInputConflict = errors.New("exactly one of seed or spending key must be supplied")
	// ErrConcurrentOperation is returned when a send or shield is requested
	// while another one is still in flight.
	ErrConcurrentOperation = errors.New("another send or shield operation is in flight")
	// ErrPersistence is returned when the wallet record cannot be read or written.
	ErrPersistence = errors.New("persistence failure")
	// ErrDecryption is returned when a ciphertext does not authenticate
	// under the supplied or recomputed key.
	ErrDecryption = errors.New("decryption failure")
)
