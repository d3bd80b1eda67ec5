// This file implements change listeners: the subscription registry and the
// dispatcher that delivers snapshots to subscribers.
package sqlite

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/mesh-intelligence/showcase/pkg/types"
)

// subscription is one registered listener. Exactly one of onDoc and onItems
// is set.
type subscription struct {
	id         string
	collection string
	docID      string // empty for collection subscriptions
	onDoc      func(types.DocumentSnapshot)
	onItems    func([]types.Item)
	onError    func(error)
	cancelled  atomic.Bool
}

// registry tracks active subscriptions keyed by collection.
type registry struct {
	mu      sync.RWMutex
	counter atomic.Int64
	subs    map[string]map[string]*subscription // collection -> id -> sub
}

func newRegistry() *registry {
	return &registry{subs: make(map[string]map[string]*subscription)}
}

func (r *registry) add(sub *subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub.id = "sub_" + strconv.FormatInt(r.counter.Add(1), 10)
	if r.subs[sub.collection] == nil {
		r.subs[sub.collection] = make(map[string]*subscription)
	}
	r.subs[sub.collection][sub.id] = sub
}

func (r *registry) remove(sub *subscription) {
	sub.cancelled.Store(true)

	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.subs[sub.collection]
	delete(subs, sub.id)
	if len(subs) == 0 {
		delete(r.subs, sub.collection)
	}
}

// forCollection returns a snapshot of the subscriptions on a collection.
func (r *registry) forCollection(collection string) []*subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*subscription, 0, len(r.subs[collection]))
	for _, sub := range r.subs[collection] {
		out = append(out, sub)
	}
	return out
}

// collections returns every collection with at least one subscription.
func (r *registry) collections() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.subs))
	for c := range r.subs {
		out = append(out, c)
	}
	return out
}

// count returns the number of active subscriptions.
func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, subs := range r.subs {
		n += len(subs)
	}
	return n
}

// clear drops every subscription.
func (r *registry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, subs := range r.subs {
		for _, sub := range subs {
			sub.cancelled.Store(true)
		}
	}
	r.subs = make(map[string]map[string]*subscription)
}

// dispatcher runs delivery tasks one at a time on a single goroutine, in the
// order they were enqueued. Enqueue never blocks, so listeners may write to
// the store from inside a callback.
type dispatcher struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	closed  bool
	stopped chan struct{}
}

func newDispatcher() *dispatcher {
	d := &dispatcher{stopped: make(chan struct{})}
	d.cond = sync.NewCond(&d.mu)
	go d.run()
	return d
}

func (d *dispatcher) run() {
	defer close(d.stopped)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 && d.closed {
			d.mu.Unlock()
			return
		}
		task := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		d.mu.Unlock()

		task()
	}
}

// enqueue schedules task. Tasks enqueued after close are dropped.
func (d *dispatcher) enqueue(task func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.queue = append(d.queue, task)
	d.cond.Signal()
}

// flush blocks until every task enqueued before the call has run. It must
// not be called from inside a task.
func (d *dispatcher) flush() {
	done := make(chan struct{})
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, func() { close(done) })
	d.cond.Signal()
	d.mu.Unlock()

	select {
	case <-done:
	case <-d.stopped:
	}
}

// close drains queued tasks and stops the goroutine.
func (d *dispatcher) close() {
	d.mu.Lock()
	d.closed = true
	d.cond.Signal()
	d.mu.Unlock()
	<-d.stopped
}
