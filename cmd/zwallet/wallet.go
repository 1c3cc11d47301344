package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/olehkaliuzhnyi/shielded-wallet/internal/config"
	"github.com/olehkaliuzhnyi/shielded-wallet/internal/orchestrator"
	"github.com/olehkaliuzhnyi/shielded-wallet/internal/storage"
	"github.com/olehkaliuzhnyi/shielded-wallet/internal/storage/badgerstore"
	"github.com/olehkaliuzhnyi/shielded-wallet/internal/storage/boltstore"
	"github.com/olehkaliuzhnyi/shielded-wallet/pkg/models"
)

// openStore opens the configured wallet store, wrapped in encryption when a
// passphrase is set.
func openStore(cfg config.Config) (storage.WalletStore, func() error, error) {
	var (
		store storage.WalletStore
		closeFn = func() error { return nil }
	)
	switch cfg.StoreType {
	case config.StoreMemory:
		store = storage.NewMemoryWalletStore()
	case config.StoreBadger:
		s, err := badgerstore.Open(cfg.StorePath())
		if err != nil {
			return nil, nil, err
		}
		store, closeFn = s, s.Close
	case config.StoreBolt:
		s, err := boltstore.Open(cfg.StorePath())
		if err != nil {
			return nil, nil, err
		}
		store, closeFn = s, s.Close
	default:
		return nil, nil, fmt.Errorf("unknown store type %q", cfg.StoreType)
	}

	if cfg.StorePassphrase == "" {
		return store, closeFn, nil
	}
	enc, err := storage.NewEncryptedWalletStore(store, cfg.StorePassphrase, cfg.ScryptN)
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return enc, closeFn, nil
}

// withOrchestrator runs fn against an orchestrator over the configured
// store.
func withOrchestrator(ctx context.Context, fn func(*orchestrator.Orchestrator) error) error {
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open wallet store: %w", err)
	}
	defer closeStore()

	o := orchestrator.New(cfg.Orchestrator(), store, tool, stats)
	defer o.Close(ctx)

	if err := o.Start(ctx); err != nil {
		return err
	}
	return fn(o)
}

type walletOutput struct {
	Network   string                 `json:"network"`
	Endpoint  string                 `json:"endpoint"`
	Birthday  models.BlockHeight     `json:"birthday"`
	InitMode  models.WalletInitMode  `json:"init_mode"`
	Addresses models.WalletAddresses `json:"addresses"`
	// SeedPhrase is only shown once, when the wallet is created.
	SeedPhrase string `json:"seed_phrase,omitempty"`
}

func describe(ctx context.Context, o *orchestrator.Orchestrator, w *models.PersistableWallet) (walletOutput, error) {
	addrs, err := o.Addresses(ctx)
	if err != nil {
		return walletOutput{}, err
	}
	return walletOutput{
		Network:   w.Network.Name,
		Endpoint:  w.Endpoint,
		Birthday:  w.Birthday,
		InitMode:  w.InitMode,
		Addresses: addrs,
	}, nil
}

func walletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "manage the persisted wallet",
	}
	cmd.AddCommand(walletCreateCmd(), walletRestoreCmd(), walletShowCmd())
	return cmd
}

func walletCreateCmd() *cobra.Command {
	var (
		endpoint string
		birthday uint64
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "create and persist a wallet with a new seed phrase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := cfg.Context(cmd.Context())
			defer cancel()

			return withOrchestrator(ctx, func(o *orchestrator.Orchestrator) error {
				w, err := o.PersistNewWallet(ctx, network, endpoint, models.BlockHeight(birthday))
				if err != nil {
					return err
				}
				out, err := describe(ctx, o, w)
				if err != nil {
					return err
				}
				if p, ok := w.Seed.Phrase(); ok {
					out.SeedPhrase = p.Joined()
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "lightwalletd endpoint host:port")
	cmd.Flags().Uint64Var(&birthday, "birthday", 0, "wallet birthday height; defaults to sapling activation")
	return cmd
}

func walletRestoreCmd() *cobra.Command {
	var (
		seed     seedFlags
		endpoint string
		birthday uint64
		wif      string
	)
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "persist a wallet restored from an existing seed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := cfg.Context(cmd.Context())
			defer cancel()

			s, err := seed.seed()
			if err != nil {
				return err
			}
			w := &models.PersistableWallet{
				Network:  network,
				Endpoint: endpoint,
				Birthday: models.BlockHeight(birthday),
				Seed:     s,
				InitMode: models.WalletInitRestore,
				WIF:      wif,
			}
			if _, err := w.TransparentKey(); err != nil {
				return err
			}

			return withOrchestrator(ctx, func(o *orchestrator.Orchestrator) error {
				if err := o.PersistExistingWallet(ctx, w); err != nil {
					return err
				}
				out, err := describe(ctx, o, w)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	seed.register(cmd)
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "lightwalletd endpoint host:port")
	cmd.Flags().Uint64Var(&birthday, "birthday", 0, "wallet birthday height")
	cmd.Flags().StringVar(&wif, "wif", "", "optional transparent private key in WIF")
	return cmd
}

func walletShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "show the persisted wallet and its addresses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := cfg.Context(cmd.Context())
			defer cancel()

			return withOrchestrator(ctx, func(o *orchestrator.Orchestrator) error {
				w, err := o.Wallet()
				if err != nil {
					return err
				}
				out, err := describe(ctx, o, w)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
}
