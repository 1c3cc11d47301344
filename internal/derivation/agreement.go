package derivation

import (
	"context"
	"fmt"

	"github.com/olehkaliuzhnyi/shielded-wallet/internal/backend"
	"github.com/olehkaliuzhnyi/shielded-wallet/pkg/models"
)

// GetSymmetricKey is the receiver side of key agreement: it recomputes the
// key from the viewing key and the ephemeral public key of a message.
// viewingKey is a unified full viewing key or a hex extended full viewing
// key.
func (t *Tool) GetSymmetricKey(ctx context.Context, viewingKey string, epk models.EphemeralPublicKey, network models.Network) (models.SharedSecret, error) {
	b, err := t.begin(ctx, OpGetSymmetricKey, network)
	if err != nil {
		return models.SharedSecret{}, err
	}
	if viewingKey == "" || epk.IsEmpty() {
		return models.SharedSecret{}, t.invalid(OpGetSymmetricKey, fmt.Errorf("%w: viewing key and ephemeral public key are required", models.ErrValidation))
	}

	key, err := b.GetSymmetricKey(viewingKey, epk.CopyBytes(), network.ID)
	if err := t.end(OpGetSymmetricKey, network, err); err != nil {
		return models.SharedSecret{}, err
	}
	defer models.Zero(key)
	return models.NewSharedSecret(key), nil
}

// GenerateSymmetricKey is the sender side of key agreement against a
// shielded address. Every call uses a fresh ephemeral key.
func (t *Tool) GenerateSymmetricKey(ctx context.Context, address string, network models.Network) (models.KeyAgreement, error) {
	b, err := t.begin(ctx, OpGenerateSymmetricKey, network)
	if err != nil {
		return models.KeyAgreement{}, err
	}
	raw, err := b.GenerateSymmetricKey(address, network.ID)
	if err := t.end(OpGenerateSymmetricKey, network, err); err != nil {
		return models.KeyAgreement{}, err
	}
	defer models.Zero(raw.SymmetricKey)
	return models.KeyAgreement{
		EphemeralPublicKey: models.NewEphemeralPublicKey(raw.EphemeralPublicKey),
		SymmetricKey:       models.NewSharedSecret(raw.SymmetricKey),
	}, nil
}

// ChannelKeysRequest selects a channel keypair. Exactly one of Seed and
// SpendingKey must be set. SpendingKey is a serialized extended spending
// key in base58 or hex.
type ChannelKeysRequest struct {
	Seed            models.SeedMaterial
	SpendingKey     string
	FromID          string
	ToID            string
	HDIndex         uint32
	EncryptionIndex uint32
	ReturnSecret    bool
}

// Validate checks the seed and spending key exclusivity.
func (r ChannelKeysRequest) Validate() error {
	hasSeed := !r.Seed.IsEmpty()
	hasKey := r.SpendingKey != ""
	if hasSeed == hasKey {
		return models.ErrChannelInputConflict
	}
	return nil
}

// DeriveChannelKeys derives the deterministic channel identity of the two
// correspondents. The spending key is only included with ReturnSecret.
func (t *Tool) DeriveChannelKeys(ctx context.Context, req ChannelKeysRequest, network models.Network) (*models.ChannelKeys, error) {
	b, err := t.begin(ctx, OpChannelKeys, network)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, t.invalid(OpChannelKeys, err)
	}

	breq := backend.ChannelRequest{
		SpendingKey:     req.SpendingKey,
		FromID:          []byte(req.FromID),
		ToID:            []byte(req.ToID),
		HDIndex:         req.HDIndex,
		EncryptionIndex: req.EncryptionIndex,
		ReturnSecret:    req.ReturnSecret,
	}
	if !req.Seed.IsEmpty() {
		breq.Seed = req.Seed.Bytes()
		defer models.Zero(breq.Seed)
	}

	raw, err := b.DeriveChannelKeys(breq, network.ID)
	if err := t.end(OpChannelKeys, network, err); err != nil {
		return nil, err
	}
	defer models.Zero(raw.SpendingKey)

	var sk []byte
	if req.ReturnSecret {
		sk = raw.SpendingKey
	}
	keys, err := models.NewChannelKeys(raw.Address, raw.ExtendedFullViewingKey, raw.InternalViewingKey, sk)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", OpChannelKeys, models.ErrDerivation, err)
	}
	return keys, nil
}

// DeriveEncryptionAddress returns the address a correspondent publishes to
// receive encrypted messages: the channel address of account at encryption
// index 0.
func (t *Tool) DeriveEncryptionAddress(ctx context.Context, seed models.SeedMaterial, fromID, toID string, account models.Account, network models.Network) (string, error) {
	b, err := t.begin(ctx, OpEncryptionAddress, network)
	if err != nil {
		return "", err
	}
	if err := checkSeedAccount(seed, account); err != nil {
		return "", t.invalid(OpEncryptionAddress, err)
	}
	raw := seed.Bytes()
	defer models.Zero(raw)

	address, err := b.DeriveEncryptionAddress(raw, []byte(fromID), []byte(toID), account.Value(), network.ID)
	if err := t.end(OpEncryptionAddress, network, err); err != nil {
		return "", err
	}
	return address, nil
}
