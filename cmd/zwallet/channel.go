package main

import (
	"encoding/hex"

	"github.com/spf13/cobra"

	"github.com/olehkaliuzhnyi/shielded-wallet/internal/channel"
	"github.com/olehkaliuzhnyi/shielded-wallet/pkg/models"
)

type channelKeysOutput struct {
	Address                string `json:"address"`
	ExtendedFullViewingKey string `json:"xfvk"`
	InternalViewingKey     string `json:"ivk"`
	SpendingKey            string `json:"spending_key,omitempty"`
}

func channelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channel",
		Short: "encrypted channel between two correspondents",
	}
	cmd.AddCommand(channelKeysCmd(), channelEncryptCmd(), channelDecryptCmd())
	return cmd
}

func channelKeysCmd() *cobra.Command {
	var (
		seed seedFlags
		req  channel.KeyRequest
	)
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "derive the channel keys of --from towards --to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := cfg.Context(cmd.Context())
			defer cancel()

			if seed.isSet() {
				s, err := seed.seed()
				if err != nil {
					return err
				}
				defer s.Wipe()
				req.Seed = s
			}
			keys, err := channel.New(tool, network, stats).ChannelKeys(ctx, req)
			if err != nil {
				return err
			}
			defer keys.Wipe()

			out := channelKeysOutput{
				Address:                keys.Address(),
				ExtendedFullViewingKey: hex.EncodeToString(keys.CopyExtendedFullViewingKeyBytes()),
				InternalViewingKey:     hex.EncodeToString(keys.CopyInternalViewingKeyBytes()),
			}
			if keys.HasSpendingKey() {
				out.SpendingKey = hex.EncodeToString(keys.CopySpendingKeyBytes())
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	seed.register(cmd)
	cmd.Flags().StringVar(&req.SpendingKey, "spending-key", "", "extended spending key to derive from instead of a seed")
	cmd.Flags().StringVar(&req.FromID, "from", "", "identifier of the sending correspondent")
	cmd.Flags().StringVar(&req.ToID, "to", "", "identifier of the receiving correspondent")
	cmd.Flags().Uint32Var(&req.HDIndex, "hd-index", 0, "account index of the base key")
	cmd.Flags().Uint32Var(&req.EncryptionIndex, "encryption-index", 0, "channel key index")
	cmd.Flags().BoolVar(&req.ReturnSecret, "return-secret", false, "include the channel spending key")
	return cmd
}

func channelEncryptCmd() *cobra.Command {
	var (
		address   string
		message   string
		returnKey bool
	)
	cmd := &cobra.Command{
		Use:   "encrypt",
		Short: "encrypt a message for the owner of a shielded address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := cfg.Context(cmd.Context())
			defer cancel()

			payload, err := channel.New(tool, network, stats).Encrypt(ctx, address, []byte(message), returnKey)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), payload)
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "recipient shielded address")
	cmd.Flags().StringVar(&message, "message", "", "message to encrypt")
	cmd.Flags().BoolVar(&returnKey, "return-symmetric-key", false, "include the symmetric key in the output")
	_ = cmd.MarkFlagRequired("address")
	return cmd
}

func channelDecryptCmd() *cobra.Command {
	var params models.DecryptParams
	cmd := &cobra.Command{
		Use:   "decrypt",
		Short: "decrypt a message with a viewing key or a symmetric key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := cfg.Context(cmd.Context())
			defer cancel()

			plain, err := channel.New(tool, network, stats).Decrypt(ctx, params)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{"message": string(plain)})
		},
	}
	cmd.Flags().StringVar(&params.FullViewingKeyHex, "fvk", "", "viewing key of the recipient (ufvk or xfvk hex)")
	cmd.Flags().StringVar(&params.EphemeralPublicKeyHex, "epk", "", "ephemeral public key in hex")
	cmd.Flags().StringVar(&params.CiphertextHex, "ciphertext", "", "ciphertext in hex")
	cmd.Flags().StringVar(&params.SymmetricKeyHex, "symmetric-key", "", "symmetric key in hex; takes precedence over --fvk and --epk")
	_ = cmd.MarkFlagRequired("ciphertext")
	return cmd
}
