package synchronizer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/olehkaliuzhnyi/shielded-wallet/pkg/models"
)

// Block is the part of a block the reorg detector looks at.
type Block struct {
	Height models.BlockHeight
	Hash   string
}

// BlockFetcher abstracts the chain queries the detector needs.
// In production it wraps the light wallet server's latest-block and
// block-by-height calls.
type BlockFetcher interface {
	LatestBlockHeight(ctx context.Context) (models.BlockHeight, error)
	GetBlock(ctx context.Context, height models.BlockHeight) (*Block, error)
}

// ReorgReporter receives reorg notifications.
type ReorgReporter interface {
	ReportReorg(r Reorg) bool
}

// ReorgConfig holds configuration for the reorg detector.
type ReorgConfig struct {
	// Window is how many recent block hashes are tracked. Reorgs deeper
	// than the window are reported at the window's lower edge.
	Window uint64
	// StartHeight is the first height to track, usually the wallet
	// birthday.
	StartHeight models.BlockHeight
}

// ReorgDetector polls a block source, keeps the hashes of recent blocks and
// reports a Reorg when a tracked hash changes.
type ReorgDetector struct {
	fetcher      BlockFetcher
	reporter     ReorgReporter
	pollInterval time.Duration
	cfg          ReorgConfig

	mu     sync.Mutex
	last   models.BlockHeight
	hashes map[models.BlockHeight]string

	logger *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

func NewReorgDetector(fetcher BlockFetcher, reporter ReorgReporter, pollInterval time.Duration, cfg ReorgConfig) *ReorgDetector {
	if cfg.Window == 0 {
		cfg.Window = 100
	}
	last := models.BlockHeight(0)
	if cfg.StartHeight > 0 {
		last = cfg.StartHeight - 1
	}
	return &ReorgDetector{
		fetcher:      fetcher,
		reporter:     reporter,
		pollInterval: pollInterval,
		cfg:          cfg,
		last:         last,
		hashes:       make(map[models.BlockHeight]string),
		logger:       slog.Default().With("component", "reorg_detector"),
	}
}

// Start runs the poll loop until ctx is done or Stop is called.
func (d *ReorgDetector) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})

	d.logger.Info("starting reorg detector",
		"poll_interval", d.pollInterval,
		"window", d.cfg.Window,
	)
	go d.pollLoop(ctx)
}

// Stop cancels the poll loop and waits for it to exit.
func (d *ReorgDetector) Stop() {
	if d.cancel == nil {
		return
	}
	d.cancel()
	<-d.done
	d.logger.Info("reorg detector stopped")
}

func (d *ReorgDetector) pollLoop(ctx context.Context) {
	defer close(d.done)
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.Poll(ctx); err != nil {
				d.logger.Error("poll failed", "error", err)
			}
		}
	}
}

// Poll checks the chain once. It returns the reorg it reported, if any.
func (d *ReorgDetector) Poll(ctx context.Context) (*Reorg, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tip, err := d.fetcher.LatestBlockHeight(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest block: %w", err)
	}

	reorg, err := d.checkTracked(ctx, tip)
	if err != nil {
		return nil, err
	}

	// Only the last Window blocks are kept, so there is no point in
	// fetching anything older.
	start := d.last + 1
	if window := models.BlockHeight(d.cfg.Window); tip >= window && tip-window+1 > start {
		start = tip - window + 1
		clear(d.hashes)
	}
	for h := start; h <= tip; h++ {
		block, err := d.fetcher.GetBlock(ctx, h)
		if err != nil {
			return reorg, fmt.Errorf("get block %d: %w", h, err)
		}
		d.track(block)
	}
	return reorg, nil
}

// checkTracked walks back from the highest tracked block to find the lowest
// height whose hash changed.
func (d *ReorgDetector) checkTracked(ctx context.Context, tip models.BlockHeight) (*Reorg, error) {
	if len(d.hashes) == 0 {
		return nil, nil
	}

	top := d.last
	if tip < top {
		top = tip
	}
	var fork models.BlockHeight
	forked := tip < d.last
	if forked {
		fork = tip + 1
	}

	for h := top; ; h-- {
		known, ok := d.hashes[h]
		if !ok {
			break
		}
		block, err := d.fetcher.GetBlock(ctx, h)
		if err != nil {
			return nil, fmt.Errorf("get block %d: %w", h, err)
		}
		if block.Hash == known {
			break
		}
		fork, forked = h, true
		if h == 0 {
			break
		}
	}
	if !forked {
		return nil, nil
	}

	for h := fork; h <= d.last; h++ {
		delete(d.hashes, h)
	}
	d.last = fork - 1

	r := Reorg{X: fork, Y: tip}
	d.logger.Warn("chain reorganization detected", "x", r.X, "y", r.Y)
	if d.reporter != nil && !d.reporter.ReportReorg(r) {
		d.logger.Warn("reorg notification dropped, no subscriber")
	}
	return &r, nil
}

func (d *ReorgDetector) track(block *Block) {
	d.hashes[block.Height] = block.Hash
	d.last = block.Height
	if block.Height >= models.BlockHeight(d.cfg.Window) {
		delete(d.hashes, block.Height-models.BlockHeight(d.cfg.Window))
	}
}
