// Package channel implements the encrypted two-party messaging channel:
// deterministic channel keys for a pair of correspondents, and message
// encryption against a shielded address.
package channel

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/chacha20poly1305"
	"lukechampine.com/frand"

	"github.com/olehkaliuzhnyi/shielded-wallet/internal/derivation"
	"github.com/olehkaliuzhnyi/shielded-wallet/internal/metrics"
	"github.com/olehkaliuzhnyi/shielded-wallet/pkg/models"
)

const (
	directionEncrypt = "encrypt"
	directionDecrypt = "decrypt"
)

var errShortCiphertext = errors.New("ciphertext shorter than nonce and tag")

// KeyRequest selects a channel keypair. Exactly one of Seed and SpendingKey
// must be set.
type KeyRequest struct {
	Seed            models.SeedMaterial
	SpendingKey     string
	FromID          string
	ToID            string
	HDIndex         uint32
	EncryptionIndex uint32
	// ReturnSecret adds the channel spending key to the result.
	ReturnSecret bool
}

// Protocol runs the channel operations on one network.
type Protocol struct {
	tool    *derivation.Tool
	network models.Network
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New returns a Protocol for network.
func New(tool *derivation.Tool, network models.Network, m *metrics.Metrics) *Protocol {
	return &Protocol{
		tool:    tool,
		network: network,
		metrics: m,
		logger:  slog.Default().With("component", "channel", "network", network.Name),
	}
}

// ChannelKeys derives the channel identity of FromID towards ToID. Both
// correspondents compute the same address and viewing keys from the same
// inputs.
func (p *Protocol) ChannelKeys(ctx context.Context, req KeyRequest) (*models.ChannelKeys, error) {
	return p.tool.DeriveChannelKeys(ctx, derivation.ChannelKeysRequest{
		Seed:            req.Seed,
		SpendingKey:     req.SpendingKey,
		FromID:          req.FromID,
		ToID:            req.ToID,
		HDIndex:         req.HDIndex,
		EncryptionIndex: req.EncryptionIndex,
		ReturnSecret:    req.ReturnSecret,
	}, p.network)
}

// Encrypt seals message for the owner of address under a freshly agreed
// key. The symmetric key is only returned when returnSymmetricKey is set.
func (p *Protocol) Encrypt(ctx context.Context, address string, message []byte, returnSymmetricKey bool) (models.EncryptedPayload, error) {
	payload, err := p.encrypt(ctx, address, message, returnSymmetricKey)
	p.metrics.Channel(directionEncrypt, err)
	return payload, err
}

func (p *Protocol) encrypt(ctx context.Context, address string, message []byte, returnSymmetricKey bool) (models.EncryptedPayload, error) {
	ok, err := p.tool.IsValidShieldedAddress(ctx, address, p.network)
	if err != nil {
		return models.EncryptedPayload{}, err
	}
	if !ok {
		return models.EncryptedPayload{}, fmt.Errorf("%w: %q is not a shielded address on %s", models.ErrValidation, address, p.network)
	}

	agreement, err := p.tool.GenerateSymmetricKey(ctx, address, p.network)
	if err != nil {
		return models.EncryptedPayload{}, err
	}
	defer agreement.SymmetricKey.Wipe()

	key := agreement.SymmetricKey.CopyBytes()
	defer models.Zero(key)
	sealed, err := seal(key, message)
	if err != nil {
		return models.EncryptedPayload{}, err
	}

	out := models.EncryptedPayload{
		EphemeralPublicKey: agreement.EphemeralPublicKey.Hex(),
		Ciphertext:         hex.EncodeToString(sealed),
	}
	if returnSymmetricKey {
		out.SymmetricKey = agreement.SymmetricKey.Hex()
	}
	p.logger.Debug("message encrypted", "size", len(message))
	return out, nil
}

// Decrypt opens a message. A symmetric key in params is used directly and
// the viewing key fields are then ignored; otherwise the key is recomputed
// from the viewing key and ephemeral public key. A wrong key or a corrupt
// ciphertext fails with models.ErrDecryption.
func (p *Protocol) Decrypt(ctx context.Context, params models.DecryptParams) ([]byte, error) {
	plaintext, err := p.decrypt(ctx, params)
	p.metrics.Channel(directionDecrypt, err)
	return plaintext, err
}

func (p *Protocol) decrypt(ctx context.Context, params models.DecryptParams) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ciphertext, err := hex.DecodeString(params.CiphertextHex)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext: %w", models.ErrValidation, err)
	}

	var key models.SharedSecret
	if params.SymmetricKeyHex != "" {
		key, err = models.SharedSecretFromHex(params.SymmetricKeyHex)
		if err != nil {
			return nil, err
		}
	} else {
		if params.FullViewingKeyHex == "" || params.EphemeralPublicKeyHex == "" {
			return nil, fmt.Errorf("%w: viewing key and ephemeral public key are required without a symmetric key", models.ErrValidation)
		}
		epk, err := models.EphemeralPublicKeyFromHex(params.EphemeralPublicKeyHex)
		if err != nil {
			return nil, err
		}
		key, err = p.tool.GetSymmetricKey(ctx, params.FullViewingKeyHex, epk, p.network)
		if err != nil {
			return nil, err
		}
	}
	defer key.Wipe()

	raw := key.CopyBytes()
	defer models.Zero(raw)
	return open(raw, ciphertext)
}

// seal encrypts with XChaCha20-Poly1305 under a random nonce. The nonce is
// prepended to the ciphertext.
func seal(key, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrValidation, err)
	}
	nonce := frand.Bytes(aead.NonceSize())
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func open(key, sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDecryption, err)
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, fmt.Errorf("%w: %w", models.ErrDecryption, errShortCiphertext)
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDecryption, err)
	}
	return plaintext, nil
}
