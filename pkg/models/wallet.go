package models

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/btcsuite/btcd/btcutil"
)

// WalletInitMode tells the synchronizer how a persisted wallet was created.
type WalletInitMode string

const (
	WalletInitNew      WalletInitMode = "new"
	WalletInitExisting WalletInitMode = "existing"
	WalletInitRestore  WalletInitMode = "restore"
)

// PersistableWalletVersion1 is the only record layout written today.
const PersistableWalletVersion1 = 1

// PersistableWallet is the single secret record kept by the wallet store.
type PersistableWallet struct {
	Network  Network
	Endpoint string
	Birthday BlockHeight
	Seed     SeedMaterial
	InitMode WalletInitMode
	// WIF is an optional base58check transparent private key.
	WIF string
}

// TransparentKey decodes the WIF into the raw 32-byte transparent secret.
// It returns nil when no WIF is set.
func (w *PersistableWallet) TransparentKey() ([]byte, error) {
	if w.WIF == "" {
		return nil, nil
	}
	wif, err := btcutil.DecodeWIF(w.WIF)
	if err != nil {
		return nil, fmt.Errorf("%w: decode wif: %w", ErrValidation, err)
	}
	return wif.PrivKey.Serialize(), nil
}

func (w *PersistableWallet) String() string {
	return fmt.Sprintf("PersistableWallet(network=%s, birthday=%d)", w.Network, w.Birthday)
}

func (w *PersistableWallet) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("network", w.Network.Name),
		slog.String("endpoint", w.Endpoint),
		slog.Uint64("birthday", uint64(w.Birthday)),
		slog.String("init_mode", string(w.InitMode)),
	)
}

type persistableWalletJSON struct {
	Version    int            `json:"v"`
	NetworkID  int            `json:"network_ID"`
	Endpoint   string         `json:"endpoint,omitempty"`
	Birthday   BlockHeight    `json:"birthday,omitempty"`
	SeedPhrase string         `json:"seed_phrase,omitempty"`
	SeedHex    string         `json:"seed_hex,omitempty"`
	InitMode   WalletInitMode `json:"init_mode,omitempty"`
	WIF        string         `json:"wif,omitempty"`
}

// MarshalJSON writes the version 1 layout.
func (w *PersistableWallet) MarshalJSON() ([]byte, error) {
	rec := persistableWalletJSON{
		Version:   PersistableWalletVersion1,
		NetworkID: w.Network.ID,
		Endpoint:  w.Endpoint,
		Birthday:  w.Birthday,
		InitMode:  w.InitMode,
		WIF:       w.WIF,
	}
	if p, ok := w.Seed.Phrase(); ok {
		rec.SeedPhrase = p.Joined()
	} else {
		rec.SeedHex = w.Seed.Hex()
	}
	return json.Marshal(rec)
}

// UnmarshalJSON reads a version 1 record. Other versions are rejected.
func (w *PersistableWallet) UnmarshalJSON(data []byte) error {
	var rec persistableWalletJSON
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("%w: wallet record: %w", ErrValidation, err)
	}
	if rec.Version != PersistableWalletVersion1 {
		return fmt.Errorf("%w: unsupported wallet record version %d", ErrValidation, rec.Version)
	}
	network, err := NetworkFromID(rec.NetworkID)
	if err != nil {
		return err
	}

	var seed SeedMaterial
	switch {
	case rec.SeedPhrase != "":
		phrase, err := NewSeedPhrase(rec.SeedPhrase)
		if err != nil {
			return err
		}
		seed = SeedFromPhrase(phrase)
	case rec.SeedHex != "":
		seed, err = SeedFromHex(rec.SeedHex)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: wallet record has no seed", ErrValidation)
	}

	initMode := rec.InitMode
	if initMode == "" {
		initMode = WalletInitExisting
	}

	*w = PersistableWallet{
		Network:  network,
		Endpoint: rec.Endpoint,
		Birthday: rec.Birthday,
		Seed:     seed,
		InitMode: initMode,
		WIF:      rec.WIF,
	}
	return nil
}
