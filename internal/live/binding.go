// Package live mirrors documents and collections of a DocumentStore into
// local state that is replaced on every remote change.
package live

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/showcase/internal/logging"
	"github.com/mesh-intelligence/showcase/internal/metrics"
	"github.com/mesh-intelligence/showcase/pkg/types"
)

// State is a point-in-time view of a binding.
type State[T any] struct {
	// Value is the last value delivered by the store. It is retained
	// across subscription failures.
	Value T

	// Loaded is false until the first value arrives.
	Loaded bool

	// Err is the most recent subscription failure. It wraps
	// types.ErrSubscriptionFailed and is cleared by the next value.
	Err error
}

// SubscribeFunc opens one store listener.
type SubscribeFunc[T any] func(onNext func(T), onError func(error)) (types.Unsubscribe, error)

// Option configures a Binding.
type Option func(*options)

type options struct {
	retry  types.RetryConfig
	jitter bool
	log    zerolog.Logger
}

// WithRetry sets the re-subscribe policy applied after a failure.
func WithRetry(cfg types.RetryConfig) Option {
	return func(o *options) { o.retry = cfg }
}

// WithJitter toggles randomized backoff delays. Enabled by default.
func WithJitter(enabled bool) Option {
	return func(o *options) { o.jitter = enabled }
}

// WithLogger sets the logger used by the binding.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// Binding keeps one store listener open and mirrors what it delivers.
// Only one listener is open at a time: re-subscribing cancels the previous
// listener first, and callbacks from a cancelled listener are dropped.
type Binding[T any] struct {
	kind      string
	name      string
	subscribe SubscribeFunc[T]
	opts      options
	log       zerolog.Logger
	rng       *rand.Rand

	// emitMu serializes state changes with listener fan-out so listeners
	// observe states in delivery order.
	emitMu sync.Mutex

	mu        sync.Mutex
	state     State[T]
	gen       uint64
	unsub     types.Unsubscribe
	started   bool
	closed    bool
	attempt   int
	timer     *time.Timer
	listeners map[int]func(State[T])
	nextID    int
}

// New returns an unstarted binding. kind labels logs and metrics.
func New[T any](kind, name string, subscribe SubscribeFunc[T], opts ...Option) *Binding[T] {
	o := options{
		retry:  types.DefaultRetryConfig,
		jitter: true,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	b := &Binding[T]{
		kind:      kind,
		name:      name,
		subscribe: subscribe,
		opts:      o,
		log:       logging.Component(o.log, "live").With().Str("binding", name).Logger(),
		listeners: make(map[int]func(State[T])),
	}
	if o.jitter {
		b.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return b
}

// Document binds one document.
func Document(store types.DocumentStore, path types.Path, opts ...Option) *Binding[types.DocumentSnapshot] {
	return New(metrics.KindDocument, path.String(),
		func(onNext func(types.DocumentSnapshot), onError func(error)) (types.Unsubscribe, error) {
			return store.SubscribeDocument(path, onNext, onError)
		}, opts...)
}

// Collection binds every item of a collection. Each emission is sorted
// into rendered order (see SortItems).
func Collection(store types.DocumentStore, collection string, opts ...Option) *Binding[[]types.Item] {
	return New(metrics.KindCollection, collection,
		func(onNext func([]types.Item), onError func(error)) (types.Unsubscribe, error) {
			return store.SubscribeCollection(collection, func(items []types.Item) {
				SortItems(items)
				onNext(items)
			}, onError)
		}, opts...)
}

// Name identifies the bound path or collection.
func (b *Binding[T]) Name() string {
	return b.name
}

// Start opens the store listener. A failure to subscribe is recorded in
// the state, scheduled for retry, and returned. Start is idempotent.
func (b *Binding[T]) Start() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return types.ErrBindingClosed
	}
	if b.started {
		b.mu.Unlock()
		return nil
	}
	b.started = true
	b.mu.Unlock()

	metrics.BindingOpened(b.kind)
	b.log.Debug().Msg("binding started")
	return b.connect()
}

// State returns the current state.
func (b *Binding[T]) State() State[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Listen registers fn to receive every state change. If the binding has
// already delivered a value or a failure, fn is first called with the
// current state before Listen returns. Listeners run on the store's
// delivery goroutine and must not call Listen, Start or Reset. The
// returned cancel func is idempotent.
func (b *Binding[T]) Listen(fn func(State[T])) (cancel func()) {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	st := b.state
	b.mu.Unlock()

	if st.Loaded || st.Err != nil {
		fn(st)
	}
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
	}
}

// Reset clears the retained value and error and re-subscribes.
func (b *Binding[T]) Reset() error {
	b.emitMu.Lock()
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.emitMu.Unlock()
		return types.ErrBindingClosed
	}
	b.state = State[T]{}
	b.attempt = 0
	b.stopTimerLocked()
	st, fns := b.state, b.listenerFuncsLocked()
	b.mu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
	b.emitMu.Unlock()

	return b.connect()
}

// Close cancels the store listener and drops every later callback.
// Close is idempotent.
func (b *Binding[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.gen++
	unsub := b.unsub
	b.unsub = nil
	b.stopTimerLocked()
	clear(b.listeners)
	started := b.started
	b.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if started {
		metrics.BindingClosed(b.kind)
	}
	b.log.Debug().Msg("binding closed")
}

// connect cancels the current listener, if any, then opens a new one.
func (b *Binding[T]) connect() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return types.ErrBindingClosed
	}
	old := b.unsub
	b.unsub = nil
	b.gen++
	gen := b.gen
	b.mu.Unlock()

	if old != nil {
		old()
	}

	unsub, err := b.subscribe(
		func(v T) { b.handleValue(gen, v) },
		func(err error) { b.handleError(gen, err) },
	)
	if err != nil {
		return b.handleError(gen, err)
	}

	b.mu.Lock()
	if b.closed || b.gen != gen {
		b.mu.Unlock()
		unsub()
		return nil
	}
	b.unsub = unsub
	b.mu.Unlock()
	return nil
}

func (b *Binding[T]) handleValue(gen uint64, v T) {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	b.mu.Lock()
	if b.closed || gen != b.gen {
		b.mu.Unlock()
		return
	}
	b.state = State[T]{Value: v, Loaded: true}
	b.attempt = 0
	st, fns := b.state, b.listenerFuncsLocked()
	b.mu.Unlock()

	metrics.RecordEmission(b.kind)
	for _, fn := range fns {
		fn(st)
	}
}

// handleError records a subscription failure, keeps the last value, and
// schedules a re-subscribe while attempts remain.
func (b *Binding[T]) handleError(gen uint64, err error) error {
	if !errors.Is(err, types.ErrSubscriptionFailed) {
		err = fmt.Errorf("%w: %w", types.ErrSubscriptionFailed, err)
	}

	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	b.mu.Lock()
	if b.closed || gen != b.gen {
		b.mu.Unlock()
		return err
	}
	b.state.Err = err
	b.attempt++
	attempt := b.attempt
	retry := attempt <= b.opts.retry.MaxAttempts
	var delay time.Duration
	if retry {
		delay = nextBackoffDelay(b.opts.retry, attempt, b.rng)
		b.stopTimerLocked()
		b.timer = time.AfterFunc(delay, b.resubscribe)
	}
	st, fns := b.state, b.listenerFuncsLocked()
	b.mu.Unlock()

	metrics.RecordSubscriptionFailure(b.kind)
	if retry {
		b.log.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("subscription failed, re-subscribing")
	} else {
		b.log.Error().Err(err).Int("attempt", attempt).Msg("subscription failed, giving up")
	}
	for _, fn := range fns {
		fn(st)
	}
	return err
}

func (b *Binding[T]) resubscribe() {
	metrics.RecordResubscribe(b.kind)
	if err := b.connect(); err != nil && !errors.Is(err, types.ErrBindingClosed) {
		b.log.Debug().Err(err).Msg("re-subscribe failed")
	}
}

func (b *Binding[T]) stopTimerLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *Binding[T]) listenerFuncsLocked() []func(State[T]) {
	fns := make([]func(State[T]), 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	return fns
}
