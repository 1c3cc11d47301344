package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/olehkaliuzhnyi/shielded-wallet/pkg/models"
)

// seedFlags are shared by every command that needs seed material.
type seedFlags struct {
	phrase string
	hex    string
}

func (f *seedFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.phrase, "seed-phrase", "", "24 word seed phrase")
	cmd.Flags().StringVar(&f.hex, "hex-seed", "", "raw seed in hex")
}

func (f *seedFlags) isSet() bool {
	return f.phrase != "" || f.hex != ""
}

func (f *seedFlags) seed() (models.SeedMaterial, error) {
	switch {
	case f.phrase != "" && f.hex != "":
		return models.SeedMaterial{}, errors.New("--seed-phrase and --hex-seed are mutually exclusive")
	case f.phrase != "":
		p, err := models.NewSeedPhrase(f.phrase)
		if err != nil {
			return models.SeedMaterial{}, err
		}
		return models.SeedFromPhrase(p), nil
	case f.hex != "":
		return models.SeedFromHex(f.hex)
	default:
		return models.SeedMaterial{}, errors.New("one of --seed-phrase or --hex-seed is required")
	}
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "seed phrase utilities",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "new",
		Short: "generate a new 24 word seed phrase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := models.GenerateSeedPhrase()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{"seed_phrase": p.Joined()})
		},
	})
	return cmd
}

func addressCmd() *cobra.Command {
	var (
		seed     seedFlags
		account  int
		shielded bool
		ufvk     string
	)
	cmd := &cobra.Command{
		Use:   "address",
		Short: "derive the unified or shielded address of an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := cfg.Context(cmd.Context())
			defer cancel()

			var address string
			if ufvk != "" {
				vk, err := models.NewUnifiedFullViewingKey(ufvk)
				if err != nil {
					return err
				}
				if shielded {
					address, err = tool.DeriveShieldedAddressFromViewingKey(ctx, vk, network)
				} else {
					address, err = tool.DeriveUnifiedAddressFromViewingKey(ctx, vk, network)
				}
				if err != nil {
					return err
				}
			} else {
				s, err := seed.seed()
				if err != nil {
					return err
				}
				defer s.Wipe()
				acct, err := models.NewAccount(account)
				if err != nil {
					return err
				}
				if shielded {
					address, err = tool.DeriveShieldedAddress(ctx, s, network, acct)
				} else {
					address, err = tool.DeriveUnifiedAddress(ctx, s, network, acct)
				}
				if err != nil {
					return err
				}
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{"address": address})
		},
	}
	seed.register(cmd)
	cmd.Flags().IntVar(&account, "account", 0, "account index")
	cmd.Flags().BoolVar(&shielded, "shielded", false, "derive the shielded address instead of the unified one")
	cmd.Flags().StringVar(&ufvk, "ufvk", "", "derive from a unified full viewing key instead of a seed")
	return cmd
}

func ufvkCmd() *cobra.Command {
	var (
		seed     seedFlags
		accounts int
	)
	cmd := &cobra.Command{
		Use:   "ufvk",
		Short: "derive unified full viewing keys for the first accounts of a seed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := cfg.Context(cmd.Context())
			defer cancel()

			s, err := seed.seed()
			if err != nil {
				return err
			}
			defer s.Wipe()
			keys, err := tool.DeriveUnifiedFullViewingKeys(ctx, s, network, accounts)
			if err != nil {
				return err
			}
			out := make([]string, len(keys))
			for i, k := range keys {
				out[i] = k.Encoding()
			}
			return printJSON(cmd.OutOrStdout(), map[string][]string{"ufvks": out})
		},
	}
	seed.register(cmd)
	cmd.Flags().IntVar(&accounts, "accounts", 1, "number of accounts")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <address>",
		Short: "check whether an address is a valid shielded address on the network",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cfg.Context(cmd.Context())
			defer cancel()

			valid, err := tool.IsValidShieldedAddress(ctx, args[0], network)
			if err != nil {
				return fmt.Errorf("validate address: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), struct {
				Address string `json:"address"`
				Valid   bool   `json:"valid"`
			}{args[0], valid})
		},
	}
}
