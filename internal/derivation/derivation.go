// Package derivation exposes the typed key derivation operations of the
// wallet on top of the cryptographic backend.
//
// Every operation is a pure function of its inputs and the network: the
// same inputs always give the same output, except GenerateSymmetricKey,
// which draws a fresh ephemeral key. Backend failures are reported as
// models.ErrDerivation, malformed input caught before the backend as
// models.ErrValidation. Secrets are never logged.
package derivation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/olehkaliuzhnyi/shielded-wallet/internal/backend"
	"github.com/olehkaliuzhnyi/shielded-wallet/internal/metrics"
	"github.com/olehkaliuzhnyi/shielded-wallet/pkg/models"
)

// Operation names for errors and metrics.
const (
	OpUnifiedAddress             = "derive_unified_address"
	OpUnifiedAddressFromViewKey  = "derive_unified_address_from_viewing_key"
	OpShieldedAddress            = "derive_shielded_address"
	OpShieldedAddressFromViewKey = "derive_shielded_address_from_viewing_key"
	OpUnifiedSpendingKey         = "derive_unified_spending_key"
	OpSaplingSpendingKey         = "derive_sapling_spending_key"
	OpUnifiedFullViewingKey      = "derive_unified_full_viewing_key"
	OpUnifiedFullViewingKeys     = "derive_unified_full_viewing_keys"
	OpIsValidShieldedAddress     = "is_valid_shielded_address"
	OpGetSymmetricKey            = "get_symmetric_key"
	OpGenerateSymmetricKey       = "generate_symmetric_key"
	OpChannelKeys                = "derive_channel_keys"
	OpEncryptionAddress          = "derive_encryption_address"
)

// Tool runs derivation operations against the backend held by a handle.
// It is safe for concurrent use.
type Tool struct {
	handle  *backend.Handle
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures a Tool.
type Option func(*Tool)

// WithMetrics records every operation in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tool) { t.metrics = m }
}

// New returns a Tool using the backend of handle. The handle must be
// initialized before the first operation.
func New(handle *backend.Handle, opts ...Option) *Tool {
	t := &Tool{
		handle: handle,
		logger: slog.Default().With("component", "derivation"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// begin checks the context and the network and returns the backend.
func (t *Tool) begin(ctx context.Context, op string, network models.Network) (backend.Backend, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := models.NetworkFromID(network.ID); err != nil {
		t.metrics.Derivation(op, err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	b, err := t.handle.Backend()
	if err != nil {
		t.metrics.Derivation(op, err)
		return nil, fmt.Errorf("%s: %w: %w", op, models.ErrDerivation, err)
	}
	return b, nil
}

// end records the outcome of a backend call and wraps a failure.
func (t *Tool) end(op string, network models.Network, err error) error {
	t.metrics.Derivation(op, err)
	if err != nil {
		t.logger.Debug("derivation failed", "op", op, "network", network.Name, "error", err)
		return fmt.Errorf("%s: %w: %w", op, models.ErrDerivation, err)
	}
	t.logger.Debug("derivation done", "op", op, "network", network.Name)
	return nil
}

// invalid records and wraps a validation failure.
func (t *Tool) invalid(op string, err error) error {
	t.metrics.Derivation(op, err)
	return fmt.Errorf("%s: %w", op, err)
}

func checkSeed(seed models.SeedMaterial) error {
	if seed.IsEmpty() {
		return fmt.Errorf("%w: seed is required", models.ErrValidation)
	}
	return nil
}

// checkIndexedAccount rejects the imported placeholder for operations that
// walk the seed hierarchy.
func checkIndexedAccount(account models.Account) error {
	if account < models.AccountDefault {
		return fmt.Errorf("%w: seed derivation needs account >= 0, got %d", models.ErrValidation, account.Value())
	}
	return nil
}

func checkSeedAccount(seed models.SeedMaterial, account models.Account) error {
	if err := checkSeed(seed); err != nil {
		return err
	}
	return checkIndexedAccount(account)
}

func (t *Tool) DeriveUnifiedAddress(ctx context.Context, seed models.SeedMaterial, network models.Network, account models.Account) (string, error) {
	b, err := t.begin(ctx, OpUnifiedAddress, network)
	if err != nil {
		return "", err
	}
	if err := checkSeedAccount(seed, account); err != nil {
		return "", t.invalid(OpUnifiedAddress, err)
	}
	raw := seed.Bytes()
	defer models.Zero(raw)

	address, err := b.DeriveUnifiedAddressFromSeed(raw, account.Value(), network.ID)
	if err := t.end(OpUnifiedAddress, network, err); err != nil {
		return "", err
	}
	return address, nil
}

func (t *Tool) DeriveUnifiedAddressFromViewingKey(ctx context.Context, ufvk models.UnifiedFullViewingKey, network models.Network) (string, error) {
	b, err := t.begin(ctx, OpUnifiedAddressFromViewKey, network)
	if err != nil {
		return "", err
	}
	address, err := b.DeriveUnifiedAddressFromViewingKey(ufvk.Encoding(), network.ID)
	if err := t.end(OpUnifiedAddressFromViewKey, network, err); err != nil {
		return "", err
	}
	return address, nil
}

func (t *Tool) DeriveShieldedAddress(ctx context.Context, seed models.SeedMaterial, network models.Network, account models.Account) (string, error) {
	b, err := t.begin(ctx, OpShieldedAddress, network)
	if err != nil {
		return "", err
	}
	if err := checkSeedAccount(seed, account); err != nil {
		return "", t.invalid(OpShieldedAddress, err)
	}
	raw := seed.Bytes()
	defer models.Zero(raw)

	address, err := b.DeriveShieldedAddressFromSeed(raw, account.Value(), network.ID)
	if err := t.end(OpShieldedAddress, network, err); err != nil {
		return "", err
	}
	return address, nil
}

func (t *Tool) DeriveShieldedAddressFromViewingKey(ctx context.Context, ufvk models.UnifiedFullViewingKey, network models.Network) (string, error) {
	b, err := t.begin(ctx, OpShieldedAddressFromViewKey, network)
	if err != nil {
		return "", err
	}
	address, err := b.DeriveShieldedAddressFromViewingKey(ufvk.Encoding(), network.ID)
	if err := t.end(OpShieldedAddressFromViewKey, network, err); err != nil {
		return "", err
	}
	return address, nil
}

// DeriveUnifiedSpendingKey derives the spending key of account. When
// extendedSecretKey is set the shielded component is imported from it and
// seed may be empty; transparentKey, when set, overrides the transparent
// component.
func (t *Tool) DeriveUnifiedSpendingKey(ctx context.Context, transparentKey []byte, extendedSecretKey string, seed models.SeedMaterial, network models.Network, account models.Account) (*models.UnifiedSpendingKey, error) {
	b, err := t.begin(ctx, OpUnifiedSpendingKey, network)
	if err != nil {
		return nil, err
	}
	if extendedSecretKey == "" {
		if err := checkSeedAccount(seed, account); err != nil {
			return nil, t.invalid(OpUnifiedSpendingKey, err)
		}
	}

	var rawSeed []byte
	if !seed.IsEmpty() {
		rawSeed = seed.Bytes()
		defer models.Zero(rawSeed)
	}
	var tkey []byte
	if len(transparentKey) > 0 {
		tkey = append([]byte(nil), transparentKey...)
		defer models.Zero(tkey)
	}

	raw, err := b.DeriveUnifiedSpendingKey(tkey, extendedSecretKey, rawSeed, account.Value(), network.ID)
	if err := t.end(OpUnifiedSpendingKey, network, err); err != nil {
		return nil, err
	}
	defer models.Zero(raw.Bytes)
	return models.NewUnifiedSpendingKey(models.Account(raw.Account), raw.Bytes)
}

func (t *Tool) DeriveSaplingSpendingKey(ctx context.Context, seed models.SeedMaterial, network models.Network, account models.Account) (*models.ShieldedSpendingKey, error) {
	b, err := t.begin(ctx, OpSaplingSpendingKey, network)
	if err != nil {
		return nil, err
	}
	if err := checkSeedAccount(seed, account); err != nil {
		return nil, t.invalid(OpSaplingSpendingKey, err)
	}
	rawSeed := seed.Bytes()
	defer models.Zero(rawSeed)

	raw, err := b.DeriveSaplingSpendingKey(rawSeed, account.Value(), network.ID)
	if err := t.end(OpSaplingSpendingKey, network, err); err != nil {
		return nil, err
	}
	defer models.Zero(raw.Bytes)
	return models.NewShieldedSpendingKey(models.Account(raw.Account), raw.Bytes)
}

func (t *Tool) DeriveUnifiedFullViewingKey(ctx context.Context, usk *models.UnifiedSpendingKey, network models.Network) (models.UnifiedFullViewingKey, error) {
	b, err := t.begin(ctx, OpUnifiedFullViewingKey, network)
	if err != nil {
		return models.UnifiedFullViewingKey{}, err
	}
	if usk == nil {
		return models.UnifiedFullViewingKey{}, t.invalid(OpUnifiedFullViewingKey, fmt.Errorf("%w: spending key is required", models.ErrValidation))
	}
	raw := usk.CopyBytes()
	defer models.Zero(raw)

	encoded, err := b.DeriveUnifiedFullViewingKey(raw, network.ID)
	if err := t.end(OpUnifiedFullViewingKey, network, err); err != nil {
		return models.UnifiedFullViewingKey{}, err
	}
	return models.NewUnifiedFullViewingKey(encoded)
}

// DeriveUnifiedFullViewingKeys returns the viewing keys of accounts
// 0..numberOfAccounts-1 in order.
func (t *Tool) DeriveUnifiedFullViewingKeys(ctx context.Context, seed models.SeedMaterial, network models.Network, numberOfAccounts int) ([]models.UnifiedFullViewingKey, error) {
	if numberOfAccounts < 1 {
		return nil, t.invalid(OpUnifiedFullViewingKeys, fmt.Errorf("%w: number of accounts must be at least 1, got %d", models.ErrValidation, numberOfAccounts))
	}
	if err := checkSeed(seed); err != nil {
		return nil, t.invalid(OpUnifiedFullViewingKeys, err)
	}

	keys := make([]models.UnifiedFullViewingKey, 0, numberOfAccounts)
	for i := 0; i < numberOfAccounts; i++ {
		usk, err := t.DeriveUnifiedSpendingKey(ctx, nil, "", seed, network, models.Account(i))
		if err != nil {
			return nil, fmt.Errorf("%s: account %d: %w", OpUnifiedFullViewingKeys, i, err)
		}
		ufvk, err := t.DeriveUnifiedFullViewingKey(ctx, usk, network)
		usk.Wipe()
		if err != nil {
			return nil, fmt.Errorf("%s: account %d: %w", OpUnifiedFullViewingKeys, i, err)
		}
		keys = append(keys, ufvk)
	}
	return keys, nil
}

// IsValidShieldedAddress reports whether address is a shielded address of
// network. A malformed address is not an error.
func (t *Tool) IsValidShieldedAddress(ctx context.Context, address string, network models.Network) (bool, error) {
	b, err := t.begin(ctx, OpIsValidShieldedAddress, network)
	if err != nil {
		return false, err
	}
	ok, err := b.IsValidShieldedAddress(address, network.ID)
	if err := t.end(OpIsValidShieldedAddress, network, err); err != nil {
		return false, err
	}
	return ok, nil
}
