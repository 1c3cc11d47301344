package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/olehkaliuzhnyi/shielded-wallet/internal/backend"
	"github.com/olehkaliuzhnyi/shielded-wallet/internal/backend/software"
	"github.com/olehkaliuzhnyi/shielded-wallet/internal/config"
	"github.com/olehkaliuzhnyi/shielded-wallet/internal/derivation"
	"github.com/olehkaliuzhnyi/shielded-wallet/internal/metrics"
	"github.com/olehkaliuzhnyi/shielded-wallet/pkg/models"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	app = &cobra.Command{
		Use:               "zwallet",
		Short:             "shielded wallet key tool",
		Long:              "derives shielded wallet keys and addresses, and encrypts messages between two correspondents",
		Version:           formatVersion(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
		PersistentPostRun: teardown,
	}

	networkID int

	cfg     config.Config
	network models.Network
	handle  *backend.Handle
	tool    *derivation.Tool
	stats   *metrics.Metrics
)

func init() {
	app.PersistentFlags().IntVar(&networkID, "network-id", models.NetworkIDMainnet, "network id: 0 testnet, 1 mainnet (overrides ZWALLET_NETWORK_ID)")

	app.AddCommand(seedCmd(), addressCmd(), ufvkCmd(), validateCmd(), channelCmd(), walletCmd())
}

func main() {
	if err := app.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, _ []string) error {
	cfg = config.FromEnv()
	if cmd.Flags().Changed("network-id") {
		cfg.NetworkID = networkID
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	lvl, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))

	if network, err = cfg.Network(); err != nil {
		return err
	}
	if stats, err = metrics.New(prometheus.NewRegistry()); err != nil {
		return err
	}

	handle = backend.NewHandle(software.Loader)
	ctx, cancel := cfg.Context(cmd.Context())
	defer cancel()
	if err := handle.Init(ctx); err != nil {
		return err
	}
	tool = derivation.New(handle, derivation.WithMetrics(stats))
	return nil
}

func teardown(*cobra.Command, []string) {
	if handle == nil {
		return
	}
	if err := handle.Shutdown(); err != nil {
		slog.Warn("backend shutdown failed", "error", err)
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatVersion() string {
	return fmt.Sprintf(
		"Version: %s\nCommit: %s\nDate: %s",
		version, commit, date,
	)
}
