// Package content is the read surface for site content. A Store composes one
// live binding per entity with the bundled defaults and shares each binding
// among every reader of that entity.
package content

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/showcase/internal/defaults"
	"github.com/mesh-intelligence/showcase/internal/docutil"
	"github.com/mesh-intelligence/showcase/internal/live"
	"github.com/mesh-intelligence/showcase/internal/logging"
	"github.com/mesh-intelligence/showcase/pkg/types"
)

// ProfileView is the rendered profile.
type ProfileView struct {
	Profile      types.ProfileConfig
	Loading      bool
	FromDefaults bool
	Err          error
}

// CollectionView is the rendered collection: remote items when the store
// has any, otherwise the bundled defaults. Items are in rendered order.
type CollectionView struct {
	Name         string
	Items        []types.Item
	Loading      bool
	FromDefaults bool
	Err          error
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used by the store and its bindings.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) {
		s.log = logging.Component(log, "content")
		s.bindingOpts = append(s.bindingOpts, live.WithLogger(log))
	}
}

// WithBindingOptions passes options to every binding the store opens.
func WithBindingOptions(opts ...live.Option) Option {
	return func(s *Store) {
		s.bindingOpts = append(s.bindingOpts, opts...)
	}
}

// entry is one shared binding. refs counts open watch handles; pinned is
// set once the entity has been read directly and keeps the binding open
// until the store closes.
type entry[T any] struct {
	binding *live.Binding[T]
	refs    int
	pinned  bool
}

// Store owns every subscription opened on behalf of content readers.
type Store struct {
	docs        types.DocumentStore
	bundle      *defaults.Bundle
	bindingOpts []live.Option
	log         zerolog.Logger

	mu          sync.Mutex
	closed      bool
	profile     *entry[types.DocumentSnapshot]
	collections map[string]*entry[[]types.Item]
}

// New returns a store reading from docs and falling back to bundle.
func New(docs types.DocumentStore, bundle *defaults.Bundle, opts ...Option) *Store {
	s := &Store{
		docs:        docs,
		bundle:      bundle,
		log:         zerolog.Nop(),
		collections: make(map[string]*entry[[]types.Item]),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Defaults returns the fallback bundle.
func (s *Store) Defaults() *defaults.Bundle {
	return s.bundle
}

// Profile returns the rendered profile. The first read opens the profile
// subscription and reports Loading until it delivers.
func (s *Store) Profile() (ProfileView, error) {
	e, created, err := s.acquireProfile(true)
	if err != nil {
		return ProfileView{}, err
	}
	if created {
		s.start(e.binding.Start, types.ProfilePath.String())
	}
	return s.profileView(e.binding.State()), nil
}

// Collection returns the rendered collection name. The first read opens
// the collection subscription and reports Loading until it delivers.
func (s *Store) Collection(name string) (CollectionView, error) {
	if err := types.ValidateCollection(name); err != nil {
		return CollectionView{}, err
	}
	e, created, err := s.acquireCollection(name, true)
	if err != nil {
		return CollectionView{}, err
	}
	if created {
		s.start(e.binding.Start, name)
	}
	return s.collectionView(name, e.binding.State()), nil
}

// WatchProfile calls fn with the rendered profile after every change until
// the handle is closed. Watchers of the same entity share one subscription.
func (s *Store) WatchProfile(fn func(ProfileView)) (*Handle, error) {
	e, created, err := s.acquireProfile(false)
	if err != nil {
		return nil, err
	}
	cancel := e.binding.Listen(func(st live.State[types.DocumentSnapshot]) {
		fn(s.profileView(st))
	})
	if created {
		s.start(e.binding.Start, types.ProfilePath.String())
	}
	return newHandle(func() {
		cancel()
		s.releaseProfile()
	}), nil
}

// WatchCollection calls fn with the rendered collection after every change
// until the handle is closed.
func (s *Store) WatchCollection(name string, fn func(CollectionView)) (*Handle, error) {
	if err := types.ValidateCollection(name); err != nil {
		return nil, err
	}
	e, created, err := s.acquireCollection(name, false)
	if err != nil {
		return nil, err
	}
	cancel := e.binding.Listen(func(st live.State[[]types.Item]) {
		fn(s.collectionView(name, st))
	})
	if created {
		s.start(e.binding.Start, name)
	}
	return newHandle(func() {
		cancel()
		s.releaseCollection(name)
	}), nil
}

// AwaitCollection blocks until the collection has resolved past loading or
// ctx is done. It holds a watch only while waiting, so the subscription is
// released on return unless something else still uses it.
func (s *Store) AwaitCollection(ctx context.Context, name string) (CollectionView, error) {
	views := make(chan CollectionView, 1)
	h, err := s.WatchCollection(name, latest(views, func(v CollectionView) bool { return v.Loading }))
	if err != nil {
		return CollectionView{}, err
	}
	defer h.Close()

	select {
	case v := <-views:
		return v, nil
	case <-ctx.Done():
		return s.collectionView(name, live.State[[]types.Item]{}), ctx.Err()
	}
}

// AwaitProfile blocks until the profile has resolved past loading or ctx
// is done.
func (s *Store) AwaitProfile(ctx context.Context) (ProfileView, error) {
	views := make(chan ProfileView, 1)
	h, err := s.WatchProfile(latest(views, func(v ProfileView) bool { return v.Loading }))
	if err != nil {
		return ProfileView{}, err
	}
	defer h.Close()

	select {
	case v := <-views:
		return v, nil
	case <-ctx.Done():
		return s.profileView(live.State[types.DocumentSnapshot]{}), ctx.Err()
	}
}

// latest returns a watch func that keeps the newest view in ch once
// loading reports false. Watch funcs are called one at a time, so the
// drain and send do not race.
func latest[V any](ch chan V, loading func(V) bool) func(V) {
	return func(v V) {
		if loading(v) {
			return
		}
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}

// Subscriptions returns the number of bindings currently open.
func (s *Store) Subscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.collections)
	if s.profile != nil {
		n++
	}
	return n
}

// Close cancels every subscription. Later reads return ErrContentClosed.
// Close is idempotent.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	profile := s.profile
	collections := s.collections
	s.profile = nil
	s.collections = make(map[string]*entry[[]types.Item])
	s.mu.Unlock()

	if profile != nil {
		profile.binding.Close()
	}
	for _, e := range collections {
		e.binding.Close()
	}
	s.log.Debug().Msg("content store closed")
}

func (s *Store) profileView(st live.State[types.DocumentSnapshot]) ProfileView {
	r := ResolveProfile(st, s.bundle.ProfileDocument())
	return ProfileView{
		Profile:      types.ProfileConfig{Fields: docutil.Clone(r.Value.Fields)},
		Loading:      r.Loading,
		FromDefaults: r.FromDefaults,
		Err:          r.Err,
	}
}

func (s *Store) collectionView(name string, st live.State[[]types.Item]) CollectionView {
	r := ResolveCollection(st, s.bundle.Items(name))
	return CollectionView{
		Name:         name,
		Items:        docutil.Items(r.Value),
		Loading:      r.Loading,
		FromDefaults: r.FromDefaults,
		Err:          r.Err,
	}
}

// acquireProfile returns the profile entry, creating it if needed. A new
// entry is returned unstarted so watchers can listen before the first
// value is delivered.
func (s *Store) acquireProfile(pin bool) (*entry[types.DocumentSnapshot], bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, false, types.ErrContentClosed
	}
	created := s.profile == nil
	if created {
		b := live.Document(s.docs, types.ProfilePath, s.bindingOpts...)
		s.profile = &entry[types.DocumentSnapshot]{binding: b}
	}
	s.profile.hold(pin)
	return s.profile, created, nil
}

func (s *Store) acquireCollection(name string, pin bool) (*entry[[]types.Item], bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, false, types.ErrContentClosed
	}
	e, ok := s.collections[name]
	if !ok {
		b := live.Collection(s.docs, name, s.bindingOpts...)
		e = &entry[[]types.Item]{binding: b}
		s.collections[name] = e
	}
	e.hold(pin)
	return e, !ok, nil
}

func (s *Store) releaseProfile() {
	s.mu.Lock()
	e := s.profile
	if e == nil || !e.release() {
		s.mu.Unlock()
		return
	}
	s.profile = nil
	s.mu.Unlock()
	e.binding.Close()
}

func (s *Store) releaseCollection(name string) {
	s.mu.Lock()
	e, ok := s.collections[name]
	if !ok || !e.release() {
		s.mu.Unlock()
		return
	}
	delete(s.collections, name)
	s.mu.Unlock()
	e.binding.Close()
}

// start opens a binding. A failed first subscribe is kept in the binding
// state and retried there, so it is only logged here.
func (s *Store) start(start func() error, name string) {
	if err := start(); err != nil {
		if errors.Is(err, types.ErrBindingClosed) {
			return
		}
		s.log.Warn().Err(err).Str("entity", name).Msg("subscription not established")
		return
	}
	s.log.Debug().Str("entity", name).Msg("subscription opened")
}

func (e *entry[T]) hold(pin bool) {
	if pin {
		e.pinned = true
		return
	}
	e.refs++
}

// release drops one watch reference and reports whether the binding is no
// longer needed.
func (e *entry[T]) release() bool {
	if e.refs > 0 {
		e.refs--
	}
	return e.refs == 0 && !e.pinned
}

// Handle ends a watch.
type Handle struct {
	once    sync.Once
	release func()
}

func newHandle(release func()) *Handle {
	return &Handle{release: release}
}

// Close stops the watch. It is idempotent.
func (h *Handle) Close() {
	h.once.Do(h.release)
}
