// Package backend defines the contract of the cryptographic backend that
// performs key derivation and key agreement, and the process-scoped handle
// that owns it.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrNotInitialized is returned by Handle.Backend before Init or after
// Shutdown.
var ErrNotInitialized = errors.New("backend not initialized")

// RawSpendingKey is a spending key as produced by the backend.
type RawSpendingKey struct {
	Account int
	Bytes   []byte
}

// RawKeyAgreement is the sender side output of a key agreement.
type RawKeyAgreement struct {
	EphemeralPublicKey []byte
	SymmetricKey       []byte
}

// RawChannelKeys is a derived channel identity. SpendingKey is nil unless
// it was requested.
type RawChannelKeys struct {
	Address                string
	ExtendedFullViewingKey []byte
	InternalViewingKey     []byte
	SpendingKey            []byte
}

// ChannelRequest selects a channel keypair. Exactly one of Seed and
// SpendingKey is set.
type ChannelRequest struct {
	Seed            []byte
	SpendingKey     string
	FromID          []byte
	ToID            []byte
	HDIndex         uint32
	EncryptionIndex uint32
	ReturnSecret    bool
}

// Backend performs the cryptographic operations. Every method addresses the
// network by its numeric id and must be deterministic except for
// GenerateSymmetricKey, which draws a fresh ephemeral key.
//
// Implementations must not retain or modify the byte slices they are given.
type Backend interface {
	DeriveUnifiedAddressFromSeed(seed []byte, account int, networkID int) (string, error)
	DeriveUnifiedAddressFromViewingKey(ufvk string, networkID int) (string, error)
	DeriveShieldedAddressFromSeed(seed []byte, account int, networkID int) (string, error)
	DeriveShieldedAddressFromViewingKey(ufvk string, networkID int) (string, error)

	DeriveUnifiedSpendingKey(transparentKey []byte, extendedSecretKey string, seed []byte, account int, networkID int) (RawSpendingKey, error)
	DeriveSaplingSpendingKey(seed []byte, account int, networkID int) (RawSpendingKey, error)
	DeriveUnifiedFullViewingKey(usk []byte, networkID int) (string, error)

	IsValidShieldedAddress(address string, networkID int) (bool, error)

	GetSymmetricKey(viewingKey string, ephemeralPublicKey []byte, networkID int) ([]byte, error)
	GenerateSymmetricKey(address string, networkID int) (RawKeyAgreement, error)

	DeriveChannelKeys(req ChannelRequest, networkID int) (RawChannelKeys, error)
	DeriveEncryptionAddress(seed []byte, fromID, toID []byte, account int, networkID int) (string, error)
}

// Loader creates a backend. It is called at most once per successful Init.
type Loader func(ctx context.Context) (Backend, error)

// Closer is implemented by backends that hold resources.
type Closer interface {
	Close() error
}

// Handle owns the process-wide backend instance. Init and Shutdown are
// idempotent and safe for concurrent use.
type Handle struct {
	mu      sync.RWMutex
	load    Loader
	backend Backend
	logger  *slog.Logger
}

func NewHandle(load Loader) *Handle {
	return &Handle{
		load:   load,
		logger: slog.Default().With("component", "backend"),
	}
}

// Init loads the backend if it is not loaded yet.
func (h *Handle) Init(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.backend != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := h.load(ctx)
	if err != nil {
		return fmt.Errorf("load backend: %w", err)
	}
	h.backend = b
	h.logger.Info("backend loaded")
	return nil
}

// Shutdown releases the backend. Calling it on an unloaded handle is a
// no-op.
func (h *Handle) Shutdown() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.backend == nil {
		return nil
	}
	var err error
	if c, ok := h.backend.(Closer); ok {
		err = c.Close()
	}
	h.backend = nil
	h.logger.Info("backend shut down")
	return err
}

// Backend returns the loaded backend.
func (h *Handle) Backend() (Backend, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.backend == nil {
		return nil, ErrNotInitialized
	}
	return h.backend, nil
}
