package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/olehkaliuzhnyi/shielded-wallet/internal/flow"
	"github.com/olehkaliuzhnyi/shielded-wallet/internal/metrics"
	"github.com/olehkaliuzhnyi/shielded-wallet/internal/synchronizer"
)

// errorSubscription holds the error and reorg slots of one synchronizer.
type errorSubscription struct {
	errs        map[synchronizer.ErrorKind]<-chan error
	reorgs      <-chan synchronizer.Reorg
	unsubscribe []func()
}

// subscribeErrors takes every error slot and the reorg slot of syn. Slots
// accept one subscriber, so a second aggregator on the same synchronizer
// fails with flow.ErrSlotTaken and releases whatever it took.
func subscribeErrors(syn synchronizer.Synchronizer) (*errorSubscription, error) {
	sub := &errorSubscription{errs: make(map[synchronizer.ErrorKind]<-chan error, len(synchronizer.ErrorKinds))}
	for _, kind := range synchronizer.ErrorKinds {
		slot := syn.ErrorSlot(kind)
		if slot == nil {
			sub.close()
			return nil, fmt.Errorf("synchronizer has no %s error slot", kind)
		}
		ch, unsubscribe, err := slot.Subscribe()
		if err != nil {
			sub.close()
			return nil, fmt.Errorf("subscribe %s errors: %w", kind, err)
		}
		sub.errs[kind] = ch
		sub.unsubscribe = append(sub.unsubscribe, unsubscribe)
	}

	ch, unsubscribe, err := syn.ReorgSlot().Subscribe()
	if err != nil {
		sub.close()
		return nil, fmt.Errorf("subscribe reorgs: %w", err)
	}
	sub.reorgs = ch
	sub.unsubscribe = append(sub.unsubscribe, unsubscribe)
	return sub, nil
}

func (s *errorSubscription) close() {
	for _, unsubscribe := range s.unsubscribe {
		unsubscribe()
	}
}

// run fans every slot into current until ctx is done.
func (s *errorSubscription) run(ctx context.Context, g *errgroup.Group, current *flow.Value[*synchronizer.Error], m *metrics.Metrics, logger *slog.Logger) {
	for kind, ch := range s.errs {
		kind, ch := kind, ch
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case err, ok := <-ch:
					if !ok {
						return nil
					}
					logger.Error("synchronizer error", "kind", kind.String(), "error", err)
					m.SyncError(kind.String())
					current.Set(synchronizer.NewError(kind, err))
				}
			}
		})
	}

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case r, ok := <-s.reorgs:
				if !ok {
					return nil
				}
				logger.Warn("chain reorganization", "x", r.X, "y", r.Y)
				m.SyncError(synchronizer.KindChain.String())
				current.Set(synchronizer.NewReorgError(r))
			}
		}
	})
}
