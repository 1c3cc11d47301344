// Package flow provides the small set of stream primitives the wallet is
// wired with: observable values, single-subscriber slots and a throttle.
package flow

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/ratelimit"
)

// ErrSlotTaken is returned when a Slot already has a subscriber.
var ErrSlotTaken = errors.New("slot already has a subscriber")

// Source is anything that can be observed as a stream of values.
type Source[T any] interface {
	// Subscribe returns a channel that receives values until ctx is done,
	// after which it is closed.
	Subscribe(ctx context.Context) <-chan T
}

// Value holds a current value and broadcasts changes. Subscribers receive
// the current value first. Delivery is conflated: a slow subscriber only
// sees the latest value.
type Value[T any] struct {
	mu   sync.Mutex
	cur  T
	subs map[chan T]struct{}
}

func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{cur: initial, subs: make(map[chan T]struct{})}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cur
}

// Set replaces the current value and notifies subscribers.
func (v *Value[T]) Set(x T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cur = x
	for ch := range v.subs {
		offer(ch, x)
	}
}

func (v *Value[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)
	v.mu.Lock()
	ch <- v.cur
	v.subs[ch] = struct{}{}
	v.mu.Unlock()

	go func() {
		<-ctx.Done()
		v.mu.Lock()
		delete(v.subs, ch)
		close(ch)
		v.mu.Unlock()
	}()
	return ch
}

// offer replaces whatever is buffered in ch with x. ch has capacity 1 and
// callers hold the lock that serializes senders.
func offer[T any](ch chan T, x T) {
	select {
	case <-ch:
	default:
	}
	ch <- x
}

const slotBuffer = 16

// Slot is a notification stream with at most one subscriber at a time.
// Notifications published while nobody listens, or while the subscriber's
// buffer is full, are dropped.
type Slot[T any] struct {
	mu sync.Mutex
	ch chan T
}

func NewSlot[T any]() *Slot[T] {
	return &Slot[T]{}
}

// Subscribe attaches the single subscriber. The returned function detaches
// it and closes the channel; it is safe to call more than once.
func (s *Slot[T]) Subscribe() (<-chan T, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ch != nil {
		return nil, nil, ErrSlotTaken
	}
	ch := make(chan T, slotBuffer)
	s.ch = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.ch == ch {
				s.ch = nil
			}
			close(ch)
		})
	}
	return ch, unsubscribe, nil
}

// Publish delivers x to the subscriber and reports whether it was taken.
func (s *Slot[T]) Publish(x T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ch == nil {
		return false
	}
	select {
	case s.ch <- x:
		return true
	default:
		return false
	}
}

// Subscribed reports whether the slot has a subscriber.
func (s *Slot[T]) Subscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch != nil
}

// Throttle forwards values from in at most once per interval. Values that
// arrive while waiting are conflated and only the latest is forwarded. The
// first value passes immediately. The output closes when ctx is done or in
// is closed.
func Throttle[T any](ctx context.Context, in <-chan T, interval time.Duration) <-chan T {
	out := make(chan T)
	limiter := ratelimit.New(1, ratelimit.Per(interval), ratelimit.WithoutSlack)

	go func() {
		defer close(out)
		for {
			var latest T
			select {
			case <-ctx.Done():
				return
			case v, ok := <-in:
				if !ok {
					return
				}
				latest = v
			}

			if !take(ctx, limiter) {
				return
			}

			open := true
		drain:
			for {
				select {
				case v, ok := <-in:
					if !ok {
						open = false
						break drain
					}
					latest = v
				default:
					break drain
				}
			}

			select {
			case out <- latest:
			case <-ctx.Done():
				return
			}
			if !open {
				return
			}
		}
	}()
	return out
}

// take waits for the limiter or ctx, whichever comes first.
func take(ctx context.Context, limiter ratelimit.Limiter) bool {
	ready := make(chan struct{})
	go func() {
		limiter.Take()
		close(ready)
	}()
	select {
	case <-ready:
		return true
	case <-ctx.Done():
		return false
	}
}
