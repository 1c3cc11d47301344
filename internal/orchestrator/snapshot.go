package orchestrator

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/olehkaliuzhnyi/shielded-wallet/internal/flow"
	"github.com/olehkaliuzhnyi/shielded-wallet/internal/metrics"
	"github.com/olehkaliuzhnyi/shielded-wallet/internal/synchronizer"
	"github.com/olehkaliuzhnyi/shielded-wallet/pkg/models"
)

// WalletSnapshot is one consistent view of the synchronizer. Balances are
// never nil: unknown balances are reported as zero.
type WalletSnapshot struct {
	Status             synchronizer.Status
	ProcessorInfo      synchronizer.ProcessorInfo
	OrchardBalance     models.WalletBalance
	SaplingBalance     models.WalletBalance
	TransparentBalance models.Zatoshi
	Progress           models.PercentDecimal
	// SynchronizerError is the most recent error reported by the
	// synchronizer, or nil.
	SynchronizerError *synchronizer.Error
}

// TotalBalance sums the shielded pools and the transparent balance.
func (s *WalletSnapshot) TotalBalance() models.Zatoshi {
	return s.OrchardBalance.Total() + s.SaplingBalance.Total() + s.TransparentBalance
}

// snapshot source indices
const (
	srcStatus = iota
	srcProcessor
	srcOrchard
	srcSapling
	srcTransparent
	srcProgress
	srcError
	numSources
)

const allSources = 1<<numSources - 1

// composer combines the latest value of every source. Nothing is emitted
// until each source has delivered once.
type composer struct {
	mu      sync.Mutex
	cur     WalletSnapshot
	seen    uint8
	changes chan WalletSnapshot
}

func newComposer() *composer {
	return &composer{changes: make(chan WalletSnapshot, 1)}
}

func (c *composer) apply(src int, fn func(*WalletSnapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.cur)
	c.seen |= 1 << src
	if c.seen != allSources {
		return
	}
	// conflate: only the newest pending combination is kept
	select {
	case <-c.changes:
	default:
	}
	c.changes <- c.cur
}

func watch[T any](ctx context.Context, g *errgroup.Group, c *composer, src int, s flow.Source[T], set func(*WalletSnapshot, T)) {
	g.Go(func() error {
		for v := range s.Subscribe(ctx) {
			v := v
			c.apply(src, func(w *WalletSnapshot) { set(w, v) })
		}
		return nil
	})
}

func balanceOrZero(b *models.WalletBalance) models.WalletBalance {
	if b == nil {
		return models.WalletBalance{}
	}
	return *b
}

// composeSnapshots fans the synchronizer streams and the aggregated error
// into out, emitting at most once per interval. It returns when ctx is done.
func composeSnapshots(
	ctx context.Context,
	syn synchronizer.Synchronizer,
	errs flow.Source[*synchronizer.Error],
	out *flow.Value[*WalletSnapshot],
	interval time.Duration,
	m *metrics.Metrics,
) error {
	g, gctx := errgroup.WithContext(ctx)
	c := newComposer()

	watch(gctx, g, c, srcStatus, syn.Status(), func(w *WalletSnapshot, v synchronizer.Status) {
		w.Status = v
	})
	watch(gctx, g, c, srcProcessor, syn.ProcessorInfo(), func(w *WalletSnapshot, v synchronizer.ProcessorInfo) {
		w.ProcessorInfo = v
	})
	watch(gctx, g, c, srcOrchard, syn.OrchardBalances(), func(w *WalletSnapshot, v *models.WalletBalance) {
		w.OrchardBalance = balanceOrZero(v)
	})
	watch(gctx, g, c, srcSapling, syn.SaplingBalances(), func(w *WalletSnapshot, v *models.WalletBalance) {
		w.SaplingBalance = balanceOrZero(v)
	})
	watch(gctx, g, c, srcTransparent, syn.TransparentBalance(), func(w *WalletSnapshot, v *models.Zatoshi) {
		w.TransparentBalance = 0
		if v != nil {
			w.TransparentBalance = *v
		}
	})
	watch(gctx, g, c, srcProgress, syn.Progress(), func(w *WalletSnapshot, v models.PercentDecimal) {
		w.Progress = v
	})
	watch(gctx, g, c, srcError, errs, func(w *WalletSnapshot, v *synchronizer.Error) {
		w.SynchronizerError = v
	})

	g.Go(func() error {
		for snap := range flow.Throttle(gctx, c.changes, interval) {
			snap := snap
			out.Set(&snap)
			m.Snapshot()
		}
		return nil
	})
	return g.Wait()
}
