// Package binding exposes a lazily-produced method result as observable
// state with scope-tied lifecycle, dependency-triggered re-invocation and
// timed auto-retry.
package binding

import (
	"context"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/methodwatch/internal/method"
	"github.com/vietddude/methodwatch/internal/metrics"
)

// Producer resolves one invocation attempt into a classified result. A
// panic escaping the producer is fatal and is never recovered here.
type Producer[T any] func(ctx context.Context) method.Result[T]

// Options configures a binding.
type Options struct {
	// Reload schedules a re-invocation this long after a failed resolution.
	// Zero disables automatic retry. The interval is flat and retries run
	// until success or teardown.
	Reload time.Duration
	// Name labels logs and metrics for this binding.
	Name string
	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Binding owns the observable state for one producer. All state is owned
// exclusively by the binding and mutated only by its own invocation and
// timer callbacks; bindings share nothing with each other.
//
// Each mount cycle (the span from one dependency set until it changes or
// the scope tears down) carries its own identity. Every state write and
// timer callback is guarded by that identity, so a resolution that settles
// after its cycle was torn down is discarded rather than published.
type Binding[T any] struct {
	producer Producer[T]
	opts     Options
	log      *slog.Logger
	scope    context.Context

	mu       sync.Mutex
	state    method.Result[T]
	resolved bool
	deps     []any
	cycle    uuid.UUID
	cycleCtx context.Context
	cancel   context.CancelFunc
	timer    *time.Timer
	closed   bool
	watchers map[chan method.Result[T]]struct{}
	done     chan struct{}
}

// Bind attaches a binding to the scope ctx and starts its first cycle with
// exactly one automatic invocation. The binding tears down when ctx is
// done; any pending retry timer is cleared and state freezes.
func Bind[T any](ctx context.Context, producer Producer[T], opts Options, deps ...any) *Binding[T] {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	b := &Binding[T]{
		producer: producer,
		opts:     opts,
		log:      opts.Logger.With("binding", opts.Name),
		scope:    ctx,
		done:     make(chan struct{}),
		watchers: make(map[chan method.Result[T]]struct{}),
	}
	metrics.ActiveBindings.Inc()

	b.mu.Lock()
	b.startCycleLocked(deps)
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			b.Close()
		case <-b.done:
		}
	}()
	return b
}

// State returns the latest published result. The second return is false
// before the first resolution of the current cycle.
func (b *Binding[T]) State() (method.Result[T], bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state, b.resolved
}

// Refetch triggers an immediate re-invocation. An in-flight invocation is
// not cancelled; whichever resolution settles last wins.
func (b *Binding[T]) Refetch() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	cycle, ctx := b.cycle, b.cycleCtx
	b.mu.Unlock()
	go b.invoke(cycle, ctx)
}

// Restart begins a fresh cycle when deps differ from the current set. The
// old cycle's retry timer is cancelled synchronously, in-flight resolutions
// for it are discarded, state resets to unresolved, and one automatic
// invocation is issued. Unchanged deps are a no-op.
func (b *Binding[T]) Restart(deps ...any) {
	b.mu.Lock()
	if b.closed || reflect.DeepEqual(b.deps, deps) {
		b.mu.Unlock()
		return
	}
	b.teardownCycleLocked()
	var zero method.Result[T]
	b.state, b.resolved = zero, false
	b.startCycleLocked(deps)
	b.mu.Unlock()
}

// Watch returns a channel carrying each published result, primed with the
// current state if one exists. The channel is conflated: a slow receiver
// observes only the latest value. It closes when the binding closes or ctx
// is done.
func (b *Binding[T]) Watch(ctx context.Context) <-chan method.Result[T] {
	ch := make(chan method.Result[T], 1)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch
	}
	b.watchers[ch] = struct{}{}
	if b.resolved {
		ch <- b.state
	}
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			if _, ok := b.watchers[ch]; ok {
				delete(b.watchers, ch)
				close(ch)
			}
			b.mu.Unlock()
		case <-b.done:
			// Close already closed the channel.
		}
	}()
	return ch
}

// Close tears the binding down: the pending retry timer is cleared
// synchronously, no further state is published, and watcher channels close.
// Closing twice is safe.
func (b *Binding[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.teardownCycleLocked()
	watchers := b.watchers
	b.watchers = nil
	close(b.done)
	b.mu.Unlock()

	metrics.ActiveBindings.Dec()
	for ch := range watchers {
		close(ch)
	}
}

// startCycleLocked installs a fresh cycle identity and fires its one
// automatic invocation. Caller holds b.mu.
func (b *Binding[T]) startCycleLocked(deps []any) {
	id := uuid.New()
	ctx, cancel := context.WithCancel(b.scope)
	b.cycle, b.cycleCtx, b.cancel, b.deps = id, ctx, cancel, deps
	go b.invoke(id, ctx)
}

// teardownCycleLocked cancels the pending retry timer and the cycle
// context. Caller holds b.mu.
func (b *Binding[T]) teardownCycleLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if b.cancel != nil {
		b.cancel()
	}
}

func (b *Binding[T]) invoke(cycle uuid.UUID, ctx context.Context) {
	res := b.producer(ctx)
	b.settle(cycle, res)
}

func (b *Binding[T]) settle(cycle uuid.UUID, res method.Result[T]) {
	b.mu.Lock()
	if b.closed || b.cycle != cycle {
		// Resolution for a torn-down cycle; discard without publishing.
		b.mu.Unlock()
		return
	}
	b.state, b.resolved = res, true

	if res.Err() != nil && b.opts.Reload > 0 {
		b.scheduleRetryLocked(cycle)
	}

	// Publish under the lock: sends are conflated and never block, and
	// watcher channels are only ever closed under the same lock, so a send
	// can never race a close.
	for ch := range b.watchers {
		conflate(ch, res)
	}
	b.mu.Unlock()

	if err := res.Err(); err != nil {
		b.log.Debug("binding settled with error", "error", err)
	}
}

// scheduleRetryLocked arms the single retry timer for the cycle. At most
// one timer is tracked; the callback re-checks cycle liveness and its own
// identity against b.timer, because Stop does not guarantee the callback
// has not already fired. A callback whose handle was replaced while it
// waited for the lock is superseded: it must return without invoking and
// must not clear the newer timer's handle. Caller holds b.mu.
func (b *Binding[T]) scheduleRetryLocked(cycle uuid.UUID) {
	if b.timer != nil {
		b.timer.Stop()
	}
	ctx := b.cycleCtx
	var t *time.Timer
	t = time.AfterFunc(b.opts.Reload, func() {
		b.mu.Lock()
		live := !b.closed && b.cycle == cycle && b.timer == t
		if live {
			b.timer = nil
		}
		b.mu.Unlock()
		if !live {
			return
		}
		metrics.RetriesTotal.WithLabelValues(b.opts.Name).Inc()
		b.invoke(cycle, ctx)
	})
	b.timer = t
}

// conflate delivers res on a capacity-1 channel, displacing an unread
// older value rather than blocking.
func conflate[T any](ch chan method.Result[T], res method.Result[T]) {
	for {
		select {
		case ch <- res:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
