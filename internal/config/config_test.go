package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olehkaliuzhnyi/shielded-wallet/pkg/models"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, time.Second, cfg.SnapshotThrottle)
	assert.Equal(t, models.Zatoshi(100_000), cfg.ShieldingThreshold)

	n, err := cfg.Network()
	require.NoError(t, err)
	assert.True(t, n.IsMainnet())
}

func TestFromEnv(t *testing.T) {
	t.Setenv("ZWALLET_NETWORK_ID", "0")
	t.Setenv("ZWALLET_STORE_TYPE", "Bolt")
	t.Setenv("ZWALLET_DATADIR", "/tmp/zw")
	t.Setenv("ZWALLET_SNAPSHOT_THROTTLE", "250ms")
	t.Setenv("ZWALLET_SHIELDING_THRESHOLD", "5000")
	t.Setenv("ZWALLET_LOG_LEVEL", "debug")

	cfg := FromEnv()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, models.NetworkIDTestnet, cfg.NetworkID)
	assert.Equal(t, StoreBolt, cfg.StoreType)
	assert.Equal(t, 250*time.Millisecond, cfg.SnapshotThrottle)
	assert.Equal(t, models.Zatoshi(5000), cfg.ShieldingThreshold)
	assert.Equal(t, filepath.Join("/tmp/zw", "wallet.db"), cfg.StorePath())
	// unset keys keep their defaults
	assert.Equal(t, Default().ContextTimeout, cfg.ContextTimeout)

	t.Setenv("ZWALLET_REORG_WINDOW", "25")
	t.Setenv("ZWALLET_REORG_POLL_INTERVAL", "5s")
	oc := FromEnv().Orchestrator()
	assert.Equal(t, uint64(25), oc.ReorgWindow)
	assert.Equal(t, 5*time.Second, oc.ReorgPollInterval)
	assert.Equal(t, 250*time.Millisecond, oc.SnapshotThrottle)

	lvl, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown network", func(c *Config) { c.NetworkID = 7 }},
		{"unknown store", func(c *Config) { c.StoreType = "redis" }},
		{"bolt without datadir", func(c *Config) { c.StoreType = StoreBolt; c.Datadir = "" }},
		{"zero throttle", func(c *Config) { c.SnapshotThrottle = 0 }},
		{"negative threshold", func(c *Config) { c.ShieldingThreshold = -1 }},
		{"empty reorg window", func(c *Config) { c.ReorgWindow = 0 }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := Default()
	cfg.StoreType = StoreMemory
	cfg.Datadir = ""
	assert.NoError(t, cfg.Validate())
	assert.Empty(t, cfg.StorePath())
}

func TestContext(t *testing.T) {
	cfg := Default()
	ctx, cancel := cfg.Context(context.Background())
	defer cancel()
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(cfg.ContextTimeout), deadline, time.Second)

	cfg.ContextTimeout = 0
	ctx, cancel = cfg.Context(nil) //nolint:staticcheck
	defer cancel()
	_, ok = ctx.Deadline()
	assert.False(t, ok)
}
