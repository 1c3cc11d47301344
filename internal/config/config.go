package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/spf13/viper"

	"github.com/olehkaliuzhnyi/shielded-wallet/internal/orchestrator"
	"github.com/olehkaliuzhnyi/shielded-wallet/pkg/models"
)

// Environment keys, read with the ZWALLET_ prefix.
const (
	NetworkIDKey          = "NETWORK_ID"
	DatadirKey            = "DATADIR"
	StoreTypeKey          = "STORE_TYPE"
	StorePassphraseKey    = "STORE_PASSPHRASE"
	ScryptNKey            = "SCRYPT_N"
	SnapshotThrottleKey   = "SNAPSHOT_THROTTLE"
	ShieldingThresholdKey = "SHIELDING_THRESHOLD"
	ReorgPollIntervalKey  = "REORG_POLL_INTERVAL"
	ReorgWindowKey        = "REORG_WINDOW"
	LogLevelKey           = "LOG_LEVEL"
	ContextTimeoutKey     = "CONTEXT_TIMEOUT"

	envPrefix = "ZWALLET"
)

// Store types.
const (
	StoreMemory = "memory"
	StoreBadger = "badger"
	StoreBolt   = "bolt"
)

var defaultDatadir = btcutil.AppDataDir("zwallet", false)

// Config holds all configurable parameters for the wallet.
type Config struct {
	NetworkID int
	Datadir   string

	// Wallet record persistence. An empty passphrase stores the record in
	// the clear.
	StoreType       string
	StorePassphrase string
	ScryptN         int

	// Orchestrator
	SnapshotThrottle   time.Duration
	ShieldingThreshold models.Zatoshi

	// Reorg detection
	ReorgPollInterval time.Duration
	ReorgWindow       int

	LogLevel       string
	ContextTimeout time.Duration
}

// Default returns a Config populated with default values.
func Default() Config {
	return Config{
		NetworkID: models.NetworkIDMainnet,
		Datadir:   defaultDatadir,

		StoreType: StoreBadger,
		ScryptN:   1 << 20,

		SnapshotThrottle:   1 * time.Second,
		ShieldingThreshold: 100_000, // 0.001 coin

		ReorgPollInterval: 30 * time.Second,
		ReorgWindow:       100,

		LogLevel:       "info",
		ContextTimeout: 15 * time.Second,
	}
}

// FromEnv returns a Config populated from ZWALLET_* environment variables,
// falling back to defaults for unset values.
func FromEnv() Config {
	return fromViper(newViper())
}

func newViper() *viper.Viper {
	d := Default()
	vip := viper.New()
	vip.SetEnvPrefix(envPrefix)
	vip.AutomaticEnv()

	vip.SetDefault(NetworkIDKey, d.NetworkID)
	vip.SetDefault(DatadirKey, d.Datadir)
	vip.SetDefault(StoreTypeKey, d.StoreType)
	vip.SetDefault(StorePassphraseKey, d.StorePassphrase)
	vip.SetDefault(ScryptNKey, d.ScryptN)
	vip.SetDefault(SnapshotThrottleKey, d.SnapshotThrottle)
	vip.SetDefault(ShieldingThresholdKey, int64(d.ShieldingThreshold))
	vip.SetDefault(ReorgPollIntervalKey, d.ReorgPollInterval)
	vip.SetDefault(ReorgWindowKey, d.ReorgWindow)
	vip.SetDefault(LogLevelKey, d.LogLevel)
	vip.SetDefault(ContextTimeoutKey, d.ContextTimeout)
	return vip
}

func fromViper(vip *viper.Viper) Config {
	return Config{
		NetworkID:          vip.GetInt(NetworkIDKey),
		Datadir:            vip.GetString(DatadirKey),
		StoreType:          strings.ToLower(vip.GetString(StoreTypeKey)),
		StorePassphrase:    vip.GetString(StorePassphraseKey),
		ScryptN:            vip.GetInt(ScryptNKey),
		SnapshotThrottle:   vip.GetDuration(SnapshotThrottleKey),
		ShieldingThreshold: models.Zatoshi(vip.GetInt64(ShieldingThresholdKey)),
		ReorgPollInterval:  vip.GetDuration(ReorgPollIntervalKey),
		ReorgWindow:        vip.GetInt(ReorgWindowKey),
		LogLevel:           vip.GetString(LogLevelKey),
		ContextTimeout:     vip.GetDuration(ContextTimeoutKey),
	}
}

// Validate rejects values the wallet cannot run with.
func (c Config) Validate() error {
	if _, err := models.NetworkFromID(c.NetworkID); err != nil {
		return err
	}
	switch c.StoreType {
	case StoreMemory:
	case StoreBadger, StoreBolt:
		if c.Datadir == "" {
			return fmt.Errorf("missing datadir for %s store", c.StoreType)
		}
	default:
		return fmt.Errorf("unknown store type %q", c.StoreType)
	}
	if c.SnapshotThrottle <= 0 {
		return fmt.Errorf("%s must be positive", SnapshotThrottleKey)
	}
	if c.ShieldingThreshold < 0 {
		return fmt.Errorf("%s must not be negative", ShieldingThresholdKey)
	}
	if c.ReorgWindow < 1 {
		return fmt.Errorf("%s must be at least 1", ReorgWindowKey)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// Network resolves NetworkID.
func (c Config) Network() (models.Network, error) {
	return models.NetworkFromID(c.NetworkID)
}

// SlogLevel parses LogLevel (debug, info, warn, error).
func (c Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid %s: %w", LogLevelKey, err)
	}
	return lvl, nil
}

// StorePath returns the location of the wallet database for the configured
// store type.
func (c Config) StorePath() string {
	switch c.StoreType {
	case StoreBolt:
		return filepath.Join(c.Datadir, "wallet.db")
	case StoreBadger:
		return filepath.Join(c.Datadir, "db", "wallet")
	}
	return ""
}

// Context bounds parent by ContextTimeout. A nil parent is treated as
// context.Background.
func (c Config) Context(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if c.ContextTimeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, c.ContextTimeout)
}

// Orchestrator returns the orchestrator settings of c.
func (c Config) Orchestrator() orchestrator.Config {
	return orchestrator.Config{
		SnapshotThrottle:   c.SnapshotThrottle,
		ShieldingThreshold: c.ShieldingThreshold,
		ReorgPollInterval:  c.ReorgPollInterval,
		ReorgWindow:        uint64(c.ReorgWindow),
	}
}
